package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type fileConfig struct {
	DatabaseURL      string `yaml:"database_url"`
	RedisURL         string `yaml:"redis_url"`
	ServerPort       string `yaml:"server_port"`
	LogLevel         string `yaml:"log_level"`
	UserAgent        string `yaml:"user_agent"`
	Timeout          string `yaml:"timeout"`
	ProbeTimeout     string `yaml:"probe_timeout"`
	ProbeConcurrency int    `yaml:"probe_concurrency"`
	ProbePacing      string `yaml:"probe_pacing"`
	IngestWorkers    int    `yaml:"ingest_workers"`
}

// LoadFromFile loads config from a YAML file. database_url is required.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	if f.DatabaseURL == "" {
		return nil, ErrMissingDatabaseURL
	}
	c := defaults()
	c.DatabaseURL = f.DatabaseURL
	c.RedisURL = f.RedisURL
	if f.ServerPort != "" {
		c.ServerPort = f.ServerPort
	}
	if f.LogLevel != "" {
		c.LogLevel = f.LogLevel
	}
	if f.UserAgent != "" {
		c.UserAgent = f.UserAgent
	}
	parseDuration(&c.Timeout, f.Timeout)
	parseDuration(&c.ProbeTimeout, f.ProbeTimeout)
	parseDuration(&c.ProbePacing, f.ProbePacing)
	if f.ProbeConcurrency > 0 {
		c.ProbeConcurrency = f.ProbeConcurrency
	}
	if f.IngestWorkers > 0 {
		c.IngestWorkers = f.IngestWorkers
	}
	return c, nil
}

func parseDuration(dst *time.Duration, s string) {
	if s == "" {
		return
	}
	if d, err := time.ParseDuration(s); err == nil {
		*dst = d
	}
}
