package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	av "labfolio/service/api/alpha_vantage"
	"labfolio/service/core"
)

var configKeys = []string{
	"DATABASE_URL", "ALPHAVANTAGE_API_KEY", "ALPHAVANTAGE_REQUESTS_PER_MINUTE", "ALPHAVANTAGE_SERIES",
	"S3_BUCKET", "AWS_REGION", "S3_KEY", "S3_SECRET", "S3_ENDPOINT",
	"FACTOR_SOURCE", "ASSET_SOURCE", "NULL_THRESHOLD", "LOOKBACK_DAYS",
	"REFRESH_LOOKBACK_YEARS", "REFRESH_SCHEDULE", "REFRESH_WORKERS",
	"HTTP_ADDR", "CORS_ORIGINS", "LOG_LEVEL", "LOG_PRETTY",
}

// clearEnv blanks every key for the test, godotenv never overrides a set variable
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range configKeys {
		t.Setenv(key, "")
	}
}

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, core.SourceInternal, cfg.FactorSource)
	assert.Equal(t, core.SourceExternal, cfg.AssetSource)
	assert.Equal(t, core.DefaultNullThreshold, cfg.NullThreshold)
	assert.Equal(t, core.DefaultLookbackDays, cfg.LookbackDays)
	assert.Equal(t, 2, cfg.RefreshLookbackYears)
	assert.Equal(t, 5, cfg.AlphaVantageRequestsPerMinute)
	assert.Equal(t, av.TimeSeriesDaily, cfg.AlphaVantageSeries)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.False(t, cfg.LogPretty)

	assert.Error(t, cfg.RequireDatabase())
	assert.Error(t, cfg.RequireAlphaVantage())
	assert.True(t, cfg.UsesSource(core.SourceExternal))
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATABASE_URL", "postgres://labfolio@localhost:5432/labfolio")
	t.Setenv("FACTOR_SOURCE", "external")
	t.Setenv("ASSET_SOURCE", "EXTERNAL")
	t.Setenv("NULL_THRESHOLD", "0.25")
	t.Setenv("LOOKBACK_DAYS", "730")
	t.Setenv("ALPHAVANTAGE_SERIES", "daily_adjusted")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_PRETTY", "true")

	cfg, err := Load(missingEnvFile(t))
	require.NoError(t, err)

	assert.NoError(t, cfg.RequireDatabase())
	assert.Equal(t, core.SourceExternal, cfg.FactorSource)
	assert.False(t, cfg.UsesSource(core.SourceInternal))
	assert.Equal(t, 0.25, cfg.NullThreshold)
	assert.Equal(t, 730, cfg.LookbackDays)
	assert.True(t, cfg.AlphaVantageSeries.IsAdjusted())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.LogPretty)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	os.Unsetenv("LOOKBACK_DAYS")

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LOOKBACK_DAYS=90\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("LOOKBACK_DAYS") })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 90, cfg.LookbackDays)
}

func TestLoad_InvalidValuesAreReported(t *testing.T) {
	clearEnv(t)
	t.Setenv("LOOKBACK_DAYS", "a year")
	t.Setenv("NULL_THRESHOLD", "1.5")
	t.Setenv("FACTOR_SOURCE", "yahoo")

	_, err := Load(missingEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "LOOKBACK_DAYS")
	assert.Contains(t, err.Error(), "FACTOR_SOURCE")

	// range checks run once the values parse
	t.Setenv("LOOKBACK_DAYS", "")
	t.Setenv("FACTOR_SOURCE", "")
	_, err = Load(missingEnvFile(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NULL_THRESHOLD")
}
