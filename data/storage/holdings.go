package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	m "labfolio/data/models"
)

const (
	tickerColumn   = "yf_ticker"
	quantityColumn = "quantity"
	addressScheme  = "s3://"
)

var ErrMalformedPortfolio = errors.New("malformed portfolio file")

type S3Settings struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string // optional, for S3 compatible stores
}

// ObjectGetter is the part of the s3 client the holdings reader needs
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type HoldingsReader struct {
	client        ObjectGetter
	defaultBucket string
}

func NewS3Client(ctx context.Context, settings S3Settings) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{}
	if settings.Region != "" {
		opts = append(opts, awsconfig.WithRegion(settings.Region))
	}
	if settings.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(settings.AccessKey, settings.SecretKey, "")))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("error loading aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if settings.Endpoint != "" {
			o.BaseEndpoint = aws.String(settings.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// NewHoldingsReader reads portfolio files, bare keys resolve against defaultBucket when it is set
func NewHoldingsReader(client ObjectGetter, defaultBucket string) *HoldingsReader {
	return &HoldingsReader{client: client, defaultBucket: defaultBucket}
}

// ReadHoldings downloads and parses the portfolio file stored at an s3://bucket/key address
func (r *HoldingsReader) ReadHoldings(ctx context.Context, address string) ([]m.PortfolioHolding, error) {
	bucket, key, err := r.resolve(address)
	if err != nil {
		return nil, err
	}

	out, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("error reading portfolio object %s: %w", address, err)
	}
	defer out.Body.Close()

	return ParseHoldingsCSV(out.Body)
}

func (r *HoldingsReader) resolve(address string) (bucket, key string, err error) {
	if r.defaultBucket != "" && !strings.HasPrefix(address, addressScheme) {
		key = strings.TrimPrefix(address, "/")
		if key == "" {
			return "", "", fmt.Errorf("portfolio address %q is missing a key", address)
		}
		return r.defaultBucket, key, nil
	}
	return ParseAddress(address)
}

func ParseAddress(address string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(address, addressScheme)
	if !ok {
		return "", "", fmt.Errorf("portfolio address %q is not an s3 address", address)
	}

	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("portfolio address %q is missing a bucket or key", address)
	}

	return bucket, key, nil
}

// ParseHoldingsCSV accepts exactly the columns yf_ticker and quantity, in either order
func ParseHoldingsCSV(reader io.Reader) ([]m.PortfolioHolding, error) {
	records, err := csv.NewReader(reader).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedPortfolio, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: file is empty", ErrMalformedPortfolio)
	}

	header := make([]string, len(records[0]))
	for i, h := range records[0] {
		header[i] = strings.TrimSpace(h)
	}

	tickerIdx := slices.Index(header, tickerColumn)
	quantityIdx := slices.Index(header, quantityColumn)
	if len(header) != 2 || tickerIdx < 0 || quantityIdx < 0 {
		return nil, fmt.Errorf("%w: expected columns %s and %s, got %v", ErrMalformedPortfolio, tickerColumn, quantityColumn, header)
	}

	holdings := make([]m.PortfolioHolding, 0, len(records)-1)
	for line, record := range records[1:] {
		ticker := strings.TrimSpace(record[tickerIdx])
		if ticker == "" {
			return nil, fmt.Errorf("%w: empty ticker on line %d", ErrMalformedPortfolio, line+2)
		}

		quantity, err := strconv.Atoi(strings.TrimSpace(record[quantityIdx]))
		if err != nil {
			return nil, fmt.Errorf("%w: quantity on line %d is not an integer", ErrMalformedPortfolio, line+2)
		}

		holdings = append(holdings, m.PortfolioHolding{Ticker: ticker, Quantity: quantity})
	}

	return holdings, nil
}
