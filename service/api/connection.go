package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"
)

type Connection interface {
	Request(ctx context.Context, endpoint *url.URL) (*http.Response, error)
}

type ClientHost struct {
	client  *http.Client
	scheme  string
	host    string
	limiter *rate.Limiter
}

type Client struct {
	Connection Connection
	ApiKey     string
}

// Request waits for the rate limiter, then issues a GET. Any non 2xx status is returned as an error
// with the body already closed.
func (conn *ClientHost) Request(ctx context.Context, endpoint *url.URL) (*http.Response, error) {
	if conn.limiter != nil {
		if err := conn.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter wait for %s: %w", conn.host, err)
		}
	}

	endpoint.Scheme = conn.scheme
	endpoint.Host = conn.host

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("error building request for %s: %w", conn.host, err)
	}

	response, err := conn.client.Do(req)
	if err != nil {
		return nil, err
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		response.Body.Close()
		return nil, fmt.Errorf("unexpected status %d from %s", response.StatusCode, conn.host)
	}

	return response, nil
}

func NewClientHost(scheme, host string, timeout time.Duration, limiter *rate.Limiter) *ClientHost {
	return &ClientHost{
		client:  &http.Client{Timeout: timeout},
		scheme:  scheme,
		host:    host,
		limiter: limiter,
	}
}

func ClientFactory(host string, apiKey string, timeout time.Duration, limiter *rate.Limiter) *Client {
	return &Client{
		Connection: NewClientHost("https", host, timeout, limiter),
		ApiKey:     apiKey,
	}
}

// PerMinute builds a limiter allowing n requests per minute with a burst of one.
// n <= 0 disables limiting.
func PerMinute(n int) *rate.Limiter {
	if n <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
}
