package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the fixed transport configuration for markets.ft.com.
// The base URL and default headers are configuration, not something
// negotiated at runtime.
type Config struct {
	BaseURL        string `json:"base_url"`
	UserAgent      string `json:"user_agent"`
	Referer        string `json:"referer"`
	Accept         string `json:"accept"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxRetries     int    `json:"max_retries"`
	Debug          bool   `json:"debug"`
}

// DefaultConfig returns the built-in defaults, overridden by variables
// from a .env file (if present) and the process environment.
func DefaultConfig() *Config {
	cfg := &Config{
		BaseURL: "https://markets.ft.com",
		UserAgent: "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) " +
			"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Referer:        "https://markets.ft.com/data/equities",
		Accept:         "application/json, text/plain, */*",
		TimeoutSeconds: 10,
		MaxRetries:     3,
		Debug:          false,
	}

	// Load environment variables from .env file
	_ = godotenv.Load()

	cfg.loadFromEnv()

	return cfg
}

func (c *Config) loadFromEnv() {
	if val := os.Getenv("FT_BASE_URL"); val != "" {
		c.BaseURL = val
	}
	if val := os.Getenv("FT_USER_AGENT"); val != "" {
		c.UserAgent = val
	}
	if val := os.Getenv("FT_REFERER"); val != "" {
		c.Referer = val
	}
	if val := os.Getenv("FT_ACCEPT"); val != "" {
		c.Accept = val
	}
	if val := os.Getenv("FT_TIMEOUT_SECONDS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			c.TimeoutSeconds = n
		}
	}
	if val := os.Getenv("FT_MAX_RETRIES"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n >= 0 {
			c.MaxRetries = n
		}
	}
	if val := os.Getenv("FT_DEBUG"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Debug = b
		}
	}
}
