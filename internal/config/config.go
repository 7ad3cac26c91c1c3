// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all prober configuration.
type Config struct {
	// Endpoint is the base URL of the remote search service.
	Endpoint string `envconfig:"ESPROBE_API_URL" yaml:"endpoint"`

	// APIKey is attached to every request when set.
	APIKey string `envconfig:"ESPROBE_API_KEY" yaml:"api_key"`

	// QueriesFile is the query-definition document.
	QueriesFile string `envconfig:"ESPROBE_QUERIES_FILE" yaml:"queries_file"`

	// LedgerFile is the append-only result log.
	LedgerFile string `envconfig:"ESPROBE_CSV_FILENAME" yaml:"ledger_file"`

	// IntervalSeconds is the pacing sleep after every probe. Floor 1.
	IntervalSeconds float64 `envconfig:"ESPROBE_QUERY_INTERVAL" yaml:"interval_seconds"`

	// TestDurationSeconds bounds the total run. 0 means run indefinitely.
	TestDurationSeconds float64 `envconfig:"ESPROBE_TEST_DURATION" yaml:"test_duration_seconds"`

	// RequestTimeoutSeconds bounds each search call. Floor 1.
	RequestTimeoutSeconds float64 `envconfig:"ESPROBE_REQUEST_TIMEOUT" yaml:"request_timeout_seconds"`

	// RedisURL enables the optional stats mirror when set.
	RedisURL string `envconfig:"ESPROBE_REDIS_URL" yaml:"redis_url"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"ESPROBE_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"ESPROBE_LOG_FORMAT" yaml:"format"`
	File   string `envconfig:"ESPROBE_LOG_FILENAME" yaml:"file"`
}

// Load loads configuration from environment variables and optional config file.
// Precedence: defaults < file < environment.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	setDefaults(cfg)

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	cfg.clamp()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Endpoint = "http://localhost:9200"
	cfg.QueriesFile = "queries.yaml"
	cfg.LedgerFile = "esprobe.csv"
	cfg.IntervalSeconds = 60
	cfg.TestDurationSeconds = 0
	cfg.RequestTimeoutSeconds = 120

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// clamp applies the documented floors rather than rejecting low values.
func (c *Config) clamp() {
	if c.IntervalSeconds < 1 {
		c.IntervalSeconds = 1
	}
	if c.RequestTimeoutSeconds < 1 {
		c.RequestTimeoutSeconds = 1
	}
	if c.TestDurationSeconds < 0 {
		c.TestDurationSeconds = 0
	}
	c.Endpoint = strings.TrimRight(strings.TrimSpace(c.Endpoint), "/")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Endpoint == "" {
		errs = append(errs, "endpoint must not be empty")
	} else if !strings.HasPrefix(c.Endpoint, "http://") && !strings.HasPrefix(c.Endpoint, "https://") {
		errs = append(errs, fmt.Sprintf("endpoint must be an http(s) URL, got %q", c.Endpoint))
	}

	if c.QueriesFile == "" {
		errs = append(errs, "queries_file must not be empty")
	}

	if c.LedgerFile == "" {
		errs = append(errs, "ledger_file must not be empty")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// Interval returns the pacing interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds * float64(time.Second))
}

// TestDuration returns the total run bound, or 0 for an indefinite run.
func (c *Config) TestDuration() time.Duration {
	return time.Duration(c.TestDurationSeconds * float64(time.Second))
}

// RequestTimeout returns the per-request timeout as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds * float64(time.Second))
}
