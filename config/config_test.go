package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var keys = []string{
	"FOLIO_DB", "FOLIO_CURRENCY", "EODHD_API_KEY", "FOLIO_FEED", "FOLIO_LEGACY_PRICES",
	"FOLIO_CACHE_DIR", "FOLIO_MANUAL_ASSETS", "FOLIO_MANUAL_CLASSES", "FOLIO_EPSILON",
	"FOLIO_HTTP_TIMEOUT", "FOLIO_RECONCILE_DATING", "LOG_LEVEL",
}

// clearEnv unsets every folio variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

// noEnvFile is a .env file that does not exist.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "EUR", cfg.Currency)
	assert.NotEmpty(t, cfg.DatabasePath)
	assert.True(t, cfg.Epsilon.Equal(decimal.New(1, -6)))
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, zerolog.InfoLevel, cfg.LogLevel)
	assert.False(t, cfg.DateSnapshot)
	assert.Empty(t, cfg.ManualAssets)
	assert.Empty(t, cfg.ManualClasses)
	assert.Empty(t, cfg.CacheDir)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("FOLIO_DB", "/tmp/x.db")
	t.Setenv("FOLIO_CURRENCY", "usd")
	t.Setenv("FOLIO_MANUAL_ASSETS", "HOUSE=real-estate, LIFE = wealth-product")
	t.Setenv("FOLIO_MANUAL_CLASSES", "real-estate,,insurance ")
	t.Setenv("FOLIO_EPSILON", "0.001")
	t.Setenv("FOLIO_HTTP_TIMEOUT", "2s")
	t.Setenv("FOLIO_RECONCILE_DATING", "snapshot")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.db", cfg.DatabasePath)
	assert.Equal(t, "USD", cfg.Currency)
	assert.Equal(t, map[string]string{"HOUSE": "real-estate", "LIFE": "wealth-product"}, cfg.ManualAssets)
	assert.Equal(t, []string{"real-estate", "insurance"}, cfg.ManualClasses)
	assert.True(t, cfg.Epsilon.Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, 2*time.Second, cfg.HTTPTimeout)
	assert.True(t, cfg.DateSnapshot)
	assert.Equal(t, zerolog.DebugLevel, cfg.LogLevel)
}

func TestLoad_EnvFile(t *testing.T) {
	clearEnv(t)
	file := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(file, []byte("EODHD_API_KEY=secret\nFOLIO_CURRENCY=GBP\n"), 0o600))
	// the environment wins over the file.
	t.Setenv("FOLIO_CURRENCY", "CHF")

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.EODHDAPIKey)
	assert.Equal(t, "CHF", cfg.Currency)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		key, value, want string
	}{
		{"FOLIO_CURRENCY", "XYZ", "FOLIO_CURRENCY"},
		{"FOLIO_EPSILON", "tiny", "FOLIO_EPSILON"},
		{"FOLIO_EPSILON", "-1", "FOLIO_EPSILON"},
		{"FOLIO_HTTP_TIMEOUT", "10", "FOLIO_HTTP_TIMEOUT"},
		{"FOLIO_HTTP_TIMEOUT", "-1s", "FOLIO_HTTP_TIMEOUT"},
		{"FOLIO_MANUAL_ASSETS", "HOUSE", "FOLIO_MANUAL_ASSETS"},
		{"FOLIO_RECONCILE_DATING", "yesterday", "FOLIO_RECONCILE_DATING"},
		{"LOG_LEVEL", "loud", "LOG_LEVEL"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load(noEnvFile(t))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}
