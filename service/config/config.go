package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	av "labfolio/service/api/alpha_vantage"
	"labfolio/service/core"
)

// Config holds application configuration
type Config struct {
	DatabaseURL string

	AlphaVantageAPIKey            string
	AlphaVantageRequestsPerMinute int
	AlphaVantageSeries            av.TimeSeries

	S3Bucket   string
	S3Region   string
	S3Key      string
	S3Secret   string
	S3Endpoint string

	FactorSource  core.SourceKind
	AssetSource   core.SourceKind
	NullThreshold float64
	LookbackDays  int

	RefreshLookbackYears int
	RefreshSchedule      string
	RefreshWorkers       int

	HTTPAddr    string
	CORSOrigins []string

	LogLevel  string
	LogPretty bool
}

// Load reads the .env file when present, then the environment
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	var errs []error
	env := &reader{errs: &errs}

	cfg := &Config{
		DatabaseURL:                   env.getEnv("DATABASE_URL", ""),
		AlphaVantageAPIKey:            env.getEnv("ALPHAVANTAGE_API_KEY", ""),
		AlphaVantageRequestsPerMinute: env.getEnvAsInt("ALPHAVANTAGE_REQUESTS_PER_MINUTE", 5),
		S3Bucket:                      env.getEnv("S3_BUCKET", ""),
		S3Region:                      env.getEnv("AWS_REGION", "us-east-1"),
		S3Key:                         env.getEnv("S3_KEY", ""),
		S3Secret:                      env.getEnv("S3_SECRET", ""),
		S3Endpoint:                    env.getEnv("S3_ENDPOINT", ""),
		NullThreshold:                 env.getEnvAsFloat("NULL_THRESHOLD", core.DefaultNullThreshold),
		LookbackDays:                  env.getEnvAsInt("LOOKBACK_DAYS", core.DefaultLookbackDays),
		RefreshLookbackYears:          env.getEnvAsInt("REFRESH_LOOKBACK_YEARS", core.DefaultRefreshLookbackYears),
		RefreshSchedule:               env.getEnv("REFRESH_SCHEDULE", "0 0 6 * * MON-FRI"),
		RefreshWorkers:                env.getEnvAsInt("REFRESH_WORKERS", core.DefaultRefreshWorkers),
		HTTPAddr:                      env.getEnv("HTTP_ADDR", ":8080"),
		CORSOrigins:                   env.getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:                      strings.ToLower(env.getEnv("LOG_LEVEL", "info")),
		LogPretty:                     env.getEnvAsBool("LOG_PRETTY", false),
	}

	var err error
	if cfg.FactorSource, err = core.ParseSourceKind(env.getEnv("FACTOR_SOURCE", string(core.SourceInternal))); err != nil {
		errs = append(errs, fmt.Errorf("FACTOR_SOURCE: %w", err))
	}
	if cfg.AssetSource, err = core.ParseSourceKind(env.getEnv("ASSET_SOURCE", string(core.SourceExternal))); err != nil {
		errs = append(errs, fmt.Errorf("ASSET_SOURCE: %w", err))
	}

	series := env.getEnv("ALPHAVANTAGE_SERIES", "daily")
	var ok bool
	if cfg.AlphaVantageSeries, ok = av.ParseTimeSeries(series); !ok {
		errs = append(errs, fmt.Errorf("ALPHAVANTAGE_SERIES: unknown series %q", series))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges, connection settings are checked by the commands that need them
func (c *Config) Validate() error {
	var errs []error

	if c.NullThreshold < 0 || c.NullThreshold > 1 {
		errs = append(errs, fmt.Errorf("NULL_THRESHOLD must be within [0, 1], got %v", c.NullThreshold))
	}
	if c.LookbackDays <= 0 {
		errs = append(errs, fmt.Errorf("LOOKBACK_DAYS must be positive, got %d", c.LookbackDays))
	}
	if c.RefreshLookbackYears <= 0 {
		errs = append(errs, fmt.Errorf("REFRESH_LOOKBACK_YEARS must be positive, got %d", c.RefreshLookbackYears))
	}
	if c.RefreshWorkers <= 0 {
		errs = append(errs, fmt.Errorf("REFRESH_WORKERS must be positive, got %d", c.RefreshWorkers))
	}
	if c.AlphaVantageRequestsPerMinute < 0 {
		errs = append(errs, fmt.Errorf("ALPHAVANTAGE_REQUESTS_PER_MINUTE must not be negative, got %d", c.AlphaVantageRequestsPerMinute))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("LOG_LEVEL must be one of debug, info, warn, error, got %q", c.LogLevel))
	}

	return errors.Join(errs...)
}

// RequireDatabase reports a missing database url
func (c *Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	return nil
}

// RequireAlphaVantage reports a missing api key when any return source reads the feed
func (c *Config) RequireAlphaVantage() error {
	if c.AlphaVantageAPIKey == "" {
		return fmt.Errorf("ALPHAVANTAGE_API_KEY is required")
	}
	return nil
}

// UsesSource is true when either return source is of the given kind
func (c *Config) UsesSource(kind core.SourceKind) bool {
	return c.FactorSource == kind || c.AssetSource == kind
}

// reader collects parse errors instead of silently falling back to defaults
type reader struct {
	errs *[]error
}

func (r *reader) getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (r *reader) getEnvAsInt(key string, defaultValue int) int {
	value := r.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	res, err := strconv.Atoi(value)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return res
}

func (r *reader) getEnvAsFloat(key string, defaultValue float64) float64 {
	value := r.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	res, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return res
}

func (r *reader) getEnvAsBool(key string, defaultValue bool) bool {
	value := r.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	res, err := strconv.ParseBool(value)
	if err != nil {
		*r.errs = append(*r.errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return res
}

func (r *reader) getEnvAsList(key string, defaultValue []string) []string {
	value := r.getEnv(key, "")
	if value == "" {
		return defaultValue
	}
	var res []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			res = append(res, item)
		}
	}
	return res
}
