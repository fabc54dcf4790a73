package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// ErrMissingDatabaseURL is returned when no database DSN is configured.
var ErrMissingDatabaseURL = errors.New("DATABASE_URL is required")

// Config holds application configuration: storage, HTTP server, fetcher and
// probe tuning.
type Config struct {
	DatabaseURL string
	RedisURL    string
	ServerPort  string
	LogLevel    string

	UserAgent string
	Timeout   time.Duration

	ProbeTimeout     time.Duration
	ProbeConcurrency int
	ProbePacing      time.Duration
	IngestWorkers    int
}

func defaults() *Config {
	return &Config{
		ServerPort:       "8080",
		LogLevel:         "info",
		UserAgent:        "TarlanTV/1.0",
		Timeout:          30 * time.Second,
		ProbeTimeout:     8 * time.Second,
		ProbeConcurrency: 8,
		ProbePacing:      100 * time.Millisecond,
		IngestWorkers:    4,
	}
}

// Load builds config from environment variables.
// If DATABASE_URL is not set, Load tries to load .env.local and .env from the current directory.
// DATABASE_URL is required; everything else has a default.
func Load() (*Config, error) {
	if os.Getenv("DATABASE_URL") == "" {
		loadEnvFiles()
	}
	c := defaults()
	c.DatabaseURL = os.Getenv("DATABASE_URL")
	c.RedisURL = os.Getenv("REDIS_URL")
	setString(&c.ServerPort, "SERVER_PORT")
	setString(&c.LogLevel, "LOG_LEVEL")
	setString(&c.UserAgent, "FETCHER_USER_AGENT")
	setDuration(&c.Timeout, "FETCHER_TIMEOUT")
	setDuration(&c.ProbeTimeout, "PROBE_TIMEOUT")
	setInt(&c.ProbeConcurrency, "PROBE_CONCURRENCY")
	setDuration(&c.ProbePacing, "PROBE_PACING")
	setInt(&c.IngestWorkers, "INGEST_WORKERS")
	if c.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	return c, nil
}

func setString(dst *string, key string) {
	if s := os.Getenv(key); s != "" {
		*dst = s
	}
}

func setDuration(dst *time.Duration, key string) {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			*dst = d
		}
	}
}

func setInt(dst *int, key string) {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			*dst = n
		}
	}
}
