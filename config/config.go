package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"
)

// Config holds scraper configuration. Session headers are explicit values
// handed to the fetcher instead of implicit shared client state, so tests
// can build isolated fetchers.
type Config struct {
	BaseURL   string
	ChartPath string

	// Categories maps category name to the txtCLASE id of the source site.
	Categories map[string]int
	DaysBack   int

	MaxAttempts     int
	Timeout         time.Duration
	RetryBackoff    time.Duration
	RetryBackoffMax time.Duration
	CategoryPause   time.Duration

	UserAgent      string
	Accept         string
	AcceptLanguage string

	MarketOutput    string
	DashboardOutput string
	DebugDir        string
	MetricsAddr     string
	Verbose         bool
}

// DefaultConfig returns the production defaults for the source site.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:   "https://www.mercadoagroganadero.com.ar",
		ChartPath: "/php/hacigraf000110.chartjs.php",
		Categories: map[string]int{
			"NOVILLOS":    1,
			"NOVILLITOS":  2,
			"VACAS":       3,
			"VAQUILLONAS": 5,
			"TOROS":       6,
		},
		DaysBack:        15,
		MaxAttempts:     3,
		Timeout:         30 * time.Second,
		RetryBackoff:    time.Second,
		RetryBackoffMax: 30 * time.Second,
		CategoryPause:   time.Second,
		UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36",
		Accept:          "application/json, text/javascript, */*; q=0.01",
		AcceptLanguage:  "es-AR,es;q=0.9",
		MarketOutput:    "output/mercado_agroganadero.json",
		DashboardOutput: "output/dashboard_mag.json",
		DebugDir:        "output/debug",
		MetricsAddr:     "",
		Verbose:         false,
	}
}

// Validate ensures all configuration values are coherent.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("base URL cannot be empty")
	}

	parsedURL, err := url.Parse(c.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base URL: %w", err)
	}
	if parsedURL.Host == "" {
		return fmt.Errorf("base URL must include a host")
	}

	if len(c.Categories) == 0 {
		return fmt.Errorf("category table cannot be empty")
	}
	if c.DaysBack <= 0 {
		return fmt.Errorf("days back must be positive")
	}
	if c.MaxAttempts <= 0 {
		return fmt.Errorf("max attempts must be positive")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry backoff cannot be negative")
	}
	if c.RetryBackoffMax < 0 {
		return fmt.Errorf("retry backoff max cannot be negative")
	}
	if c.RetryBackoffMax > 0 && c.RetryBackoff > c.RetryBackoffMax {
		return fmt.Errorf("retry backoff (%s) cannot exceed retry backoff max (%s)", c.RetryBackoff, c.RetryBackoffMax)
	}
	if c.CategoryPause < 0 {
		return fmt.Errorf("category pause cannot be negative")
	}
	if c.MarketOutput == "" {
		return fmt.Errorf("market output file cannot be empty")
	}
	if c.DashboardOutput == "" {
		return fmt.Errorf("dashboard output file cannot be empty")
	}
	if c.UserAgent == "" {
		return fmt.Errorf("user agent cannot be empty")
	}

	return nil
}

// EnvString reads a string environment override.
func EnvString(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return "", false
	}
	return value, true
}

// EnvInt reads an integer environment override.
func EnvInt(key string) (int, bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return value, true, nil
}

// EnvDuration reads a duration environment override (e.g. "30s").
func EnvDuration(key string) (time.Duration, bool, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, false, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return value, true, nil
}
