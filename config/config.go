// Package config reads the folio configuration from the environment, and
// from a .env file when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/etnz/folio"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Config holds the folio configuration.
type Config struct {
	DatabasePath string
	Currency     string // reporting and ledger currency
	EODHDAPIKey  string
	FeedPath     string // JSONL price feed
	LegacyPrices string // CSV price export
	CacheDir     string // EODHD response cache, disabled when empty

	// ManualAssets maps manually tracked asset ids to their external ledger
	// line.
	ManualAssets map[string]string
	// ManualClasses are the asset classes left out of reconciliation.
	ManualClasses []string

	Epsilon      decimal.Decimal
	DateSnapshot bool // date adjustments on the snapshot day
	HTTPTimeout  time.Duration
	LogLevel     zerolog.Level
}

// Load reads the configuration. The given .env files, or ".env" when none is
// given, are loaded first. Variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	// .env files are optional
	_ = godotenv.Load(envFiles...)

	var errs error
	cfg := &Config{
		DatabasePath:  getEnv("FOLIO_DB", defaultDatabasePath()),
		Currency:      strings.ToUpper(getEnv("FOLIO_CURRENCY", "EUR")),
		EODHDAPIKey:   getEnv("EODHD_API_KEY", ""),
		FeedPath:      getEnv("FOLIO_FEED", ""),
		LegacyPrices:  getEnv("FOLIO_LEGACY_PRICES", ""),
		CacheDir:      getEnv("FOLIO_CACHE_DIR", ""),
		ManualClasses: splitList(getEnv("FOLIO_MANUAL_CLASSES", "")),
	}

	var err error
	if cfg.ManualAssets, err = parseManualAssets(getEnv("FOLIO_MANUAL_ASSETS", "")); err != nil {
		errs = errors.Join(errs, err)
	}
	if cfg.Epsilon, err = decimal.NewFromString(getEnv("FOLIO_EPSILON", "0.000001")); err != nil {
		errs = errors.Join(errs, fmt.Errorf("invalid FOLIO_EPSILON: %w", err))
	}
	if cfg.HTTPTimeout, err = time.ParseDuration(getEnv("FOLIO_HTTP_TIMEOUT", "10s")); err != nil {
		errs = errors.Join(errs, fmt.Errorf("invalid FOLIO_HTTP_TIMEOUT: %w", err))
	}
	if cfg.LogLevel, err = zerolog.ParseLevel(strings.ToLower(getEnv("LOG_LEVEL", "info"))); err != nil {
		errs = errors.Join(errs, fmt.Errorf("invalid LOG_LEVEL: %w", err))
	}
	switch dating := getEnv("FOLIO_RECONCILE_DATING", "today"); dating {
	case "today":
	case "snapshot":
		cfg.DateSnapshot = true
	default:
		errs = errors.Join(errs, fmt.Errorf("invalid FOLIO_RECONCILE_DATING %q, want today or snapshot", dating))
	}

	if errs != nil {
		return nil, errs
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration consistency.
func (c *Config) Validate() error {
	var errs error
	if c.DatabasePath == "" {
		errs = errors.Join(errs, errors.New("FOLIO_DB is required"))
	}
	if err := folio.ValidateCurrency(c.Currency); err != nil {
		errs = errors.Join(errs, fmt.Errorf("invalid FOLIO_CURRENCY: %w", err))
	}
	if c.Epsilon.IsNegative() {
		errs = errors.Join(errs, fmt.Errorf("FOLIO_EPSILON must not be negative, got %s", c.Epsilon))
	}
	if c.HTTPTimeout <= 0 {
		errs = errors.Join(errs, fmt.Errorf("FOLIO_HTTP_TIMEOUT must be positive, got %s", c.HTTPTimeout))
	}
	return errs
}

// defaultDatabasePath is folio.db in the user config directory.
func defaultDatabasePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "folio.db"
	}
	return filepath.Join(dir, "folio", "folio.db")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// splitList splits a comma separated list, dropping empty items.
func splitList(s string) []string {
	var items []string
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// parseManualAssets parses "asset=line,asset=line".
func parseManualAssets(s string) (map[string]string, error) {
	m := make(map[string]string)
	for _, item := range splitList(s) {
		asset, line, ok := strings.Cut(item, "=")
		asset, line = strings.TrimSpace(asset), strings.TrimSpace(line)
		if !ok || asset == "" || line == "" {
			return nil, fmt.Errorf("invalid FOLIO_MANUAL_ASSETS entry %q, want asset=line", item)
		}
		m[asset] = line
	}
	return m, nil
}
