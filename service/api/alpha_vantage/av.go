package alpha_vantage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	e "labfolio/data/extensions"
	m "labfolio/data/models"
	c "labfolio/service/api"
)

// public
const (
	HostDefault = "www.alphavantage.co"
)

// private
const (
	// default query parameters
	outputSizeCompact = "compact"
	outputSizeFull    = "full"
	defaultDataType   = "json"
	defaultTimeout    = time.Second * 30

	// compact responses carry the latest 100 data points
	compactWindow = 100 * 24 * time.Hour

	// api request elements
	query    = "query"
	symbol   = "symbol"
	function = "function"
)

var (
	timeSeriesDateFormats = []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
	}

	// response messages alpha vantage sends with a 200 instead of data
	avErrorKey    = "Error Message"
	avMessageKeys = []string{"Note", "Information"}

	ErrMalformedResponse = errors.New("malformed alpha vantage response")
	ErrUnknownSymbol     = m.ErrUnknownSymbol
)

type AlphaVantageClient struct {
	*c.Client
	series TimeSeries
}

func GetClient(apiKey string, requestsPerMinute int, series TimeSeries) *AlphaVantageClient {
	return NewClient(c.ClientFactory(HostDefault, apiKey, defaultTimeout, c.PerMinute(requestsPerMinute)), series)
}

func NewClient(client *c.Client, series TimeSeries) *AlphaVantageClient {
	return &AlphaVantageClient{Client: client, series: series}
}

// https://www.alphavantage.co/documentation/#daily
func (avc *AlphaVantageClient) GetDailyTimeSeries(ctx context.Context, ticker string, outputSize string) (*m.TimeSeriesResult, error) {
	if avc == nil {
		panic("alpha vantage client has not been set.")
	}

	endpoint := avc.buildRequestPath(map[string]string{
		function:     avc.series.Function(),
		symbol:       ticker,
		"outputsize": outputSize,
	})

	response, err := avc.Client.Connection.Request(ctx, endpoint)
	if err != nil {
		return nil, fmt.Errorf("error requesting %s for %s: %w", avc.series.Function(), ticker, err)
	}
	defer response.Body.Close()

	return parseTimeSeriesResponse(response.Body, avc.series.TimeSeriesKey())
}

// GetDailyCloses returns the closing prices of a symbol with dates in [start, end], oldest first.
// Adjusted series report the adjusted close.
func (avc *AlphaVantageClient) GetDailyCloses(ctx context.Context, ticker string, start, end time.Time) ([]*m.ClosingPrice, error) {
	outputSize := outputSizeCompact
	if time.Since(start) > compactWindow {
		outputSize = outputSizeFull
	}

	tsr, err := avc.GetDailyTimeSeries(ctx, ticker, outputSize)
	if err != nil {
		return nil, err
	}

	start, end = e.DateOnly(start), e.DateOnly(end)
	res := make([]*m.ClosingPrice, 0, len(tsr.TimeSeries))
	for _, ts := range tsr.TimeSeries {
		if ts.Timestamp.Before(start) || ts.Timestamp.After(end) {
			continue
		}

		price := ts.Close
		if avc.series.IsAdjusted() {
			price = ts.AdjustedClose
		}
		if !price.Valid {
			continue
		}

		res = append(res, &m.ClosingPrice{
			Symbol: ticker,
			Date:   ts.Timestamp,
			Close:  price.Float64,
		})
	}

	slices.SortFunc(res, func(a, b *m.ClosingPrice) int { return a.Date.Compare(b.Date) })
	return res, nil
}

func (avc *AlphaVantageClient) buildRequestPath(params map[string]string) *url.URL {
	// build our URL
	endpoint := &url.URL{}
	endpoint.Path = query

	// base parameters
	query := endpoint.Query()
	query.Set("apikey", avc.Client.ApiKey)
	query.Set("datatype", defaultDataType)
	query.Set("outputsize", outputSizeCompact)

	// additional parameters
	for key, value := range params {
		query.Set(key, value)
	}

	endpoint.RawQuery = query.Encode()

	return endpoint
}

func parseTimeSeriesResponse(reader io.Reader, key string) (*m.TimeSeriesResult, error) {
	raw, err := parseRawJson(reader)
	if err != nil {
		return nil, err
	}

	// an unknown symbol is answered with an error message, so is a bad api key
	if msg, ok := raw[avErrorKey]; ok {
		text := strings.Trim(string(msg), `"`)
		if strings.Contains(strings.ToLower(text), "apikey") {
			return nil, fmt.Errorf("%w: %s: %s", ErrMalformedResponse, avErrorKey, text)
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, text)
	}

	for _, k := range avMessageKeys {
		if msg, ok := raw[k]; ok {
			return nil, fmt.Errorf("%w: %s: %s", ErrMalformedResponse, k, strings.Trim(string(msg), `"`))
		}
	}

	metaData, err := parseMetaData(raw)
	if err != nil {
		return nil, err
	}

	timeSeries, err := parseTimeSeriesData(raw, key)
	if err != nil {
		return nil, err
	}

	return &m.TimeSeriesResult{
		Metadata:   metaData,
		TimeSeries: timeSeries,
	}, nil
}

func parseRawJson(reader io.Reader) (raw map[string]json.RawMessage, err error) {
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	// converting to a <string, raw message> map
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: error unmarshaling response: %w", ErrMalformedResponse, err)
	}

	return
}

func parseMetaData(raw map[string]json.RawMessage) (*m.TimeSeriesMetadata, error) {
	var metadataElements map[string]string
	if err := json.Unmarshal(raw["Meta Data"], &metadataElements); err != nil {
		return nil, fmt.Errorf("%w: error unmarshaling meta data: %w", ErrMalformedResponse, err)
	}

	metaDataKeys := slices.Collect(maps.Keys(metadataElements))
	find := func(suffix string) (string, bool) {
		key, err := e.FilterSingle(metaDataKeys, func(s string) bool { return strings.HasSuffix(s, suffix) })
		return key, err == nil
	}

	symbolKey, ok := find(". Symbol")
	if !ok {
		return nil, fmt.Errorf("%w: error extracting symbol for meta data", ErrMalformedResponse)
	}

	timeZone := time.UTC
	timeZoneName := ""
	if timeZoneKey, ok := find(". Time Zone"); ok {
		timeZoneName = metadataElements[timeZoneKey]
		timeZone = getTimeZone(timeZoneName)
	}

	lastRefreshedKey, ok := find(". Last Refreshed")
	if !ok {
		return nil, fmt.Errorf("%w: error extracting last refreshed date", ErrMalformedResponse)
	}

	lastRefreshed, err := parseDate(metadataElements[lastRefreshedKey], timeZone)
	if err != nil {
		return nil, err
	}

	res := m.TimeSeriesMetadata{
		Symbol:        metadataElements[symbolKey],
		LastRefreshed: lastRefreshed,
		TimeZone:      timeZoneName,
	}
	if k, ok := find(". Information"); ok {
		res.Information = null.StringFrom(metadataElements[k])
	}
	if k, ok := find(". Output Size"); ok {
		res.OutputSize = null.StringFrom(metadataElements[k])
	}

	return &res, nil
}

func parseTimeSeriesData(raw map[string]json.RawMessage, key string) ([]*m.TimeSeriesData, error) {
	var timeSeriesElements map[string]map[string]string
	if err := json.Unmarshal(raw[key], &timeSeriesElements); err != nil {
		return nil, fmt.Errorf("%w: error unmarshaling time series %q: %w", ErrMalformedResponse, key, err)
	}

	timeSeries := make([]*m.TimeSeriesData, 0, len(timeSeriesElements))
	for timeSeriesKey, values := range timeSeriesElements {
		// daily bars are calendar dates, the exchange time zone is not carried over
		timestamp, err := parseDate(timeSeriesKey, time.UTC)
		if err != nil {
			return nil, err
		}

		timeSeries = append(timeSeries, &m.TimeSeriesData{
			Timestamp:     e.DateOnly(timestamp),
			Open:          valueBySuffix(values, ". open"),
			High:          valueBySuffix(values, ". high"),
			Low:           valueBySuffix(values, ". low"),
			Close:         valueBySuffix(values, ". close"),
			AdjustedClose: valueBySuffix(values, ". adjusted close"),
			Volume:        valueBySuffix(values, ". volume"),
		})
	}

	return timeSeries, nil
}

// valueBySuffix finds the single key ending in suffix, alpha vantage prefixes every key with its position ("4. close")
func valueBySuffix(values map[string]string, suffix string) null.Float {
	keys := slices.Collect(maps.Keys(values))
	key, err := e.FilterSingle(keys, func(s string) bool {
		return strings.HasSuffix(strings.ToLower(s), suffix)
	})
	if err != nil {
		return null.Float{}
	}
	return parseFloat(values[key])
}

func getTimeZone(location string) *time.Location {
	var loc string
	switch strings.ToUpper(location) {
	case "US/EASTERN":
		loc = "America/New_York"
	default:
		return time.UTC
	}

	res, err := time.LoadLocation(loc)
	if err != nil {
		return time.UTC
	}

	return res
}

func parseDate(dateString string, location *time.Location) (time.Time, error) {
	for _, format := range timeSeriesDateFormats {
		t, err := time.ParseInLocation(format, dateString, location)
		if err != nil {
			continue
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("%w: error converting date %s to time.Time", ErrMalformedResponse, dateString)
}

func parseFloat(val string) null.Float {
	if val != "" {
		if conv, err := strconv.ParseFloat(val, 64); err == nil {
			return null.FloatFrom(conv)
		}
	}
	return null.Float{}
}
