// Package config loads migration settings from an optional YAML file and
// fills in defaults for everything left unset.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from YAML strings like
// "10s" or "24h".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config holds every tunable of a migration run.
type Config struct {
	// Concurrency is the number of posts processed in parallel.
	Concurrency int `yaml:"concurrency"`
	// RequestsPerSecond throttles all outbound requests to the site.
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	// Burst is the politeness limiter's burst allowance.
	Burst int `yaml:"burst"`
	// FetchTimeout bounds each page request.
	FetchTimeout Duration `yaml:"fetch_timeout"`
	// MediaTimeout bounds each media download; media files are larger.
	MediaTimeout Duration `yaml:"media_timeout"`
	// Retries is the attempt count for transient fetch failures.
	Retries int `yaml:"retries"`
	// MaxArchivePages bounds pagination per archive root.
	MaxArchivePages int `yaml:"max_archive_pages"`
	// TodayWindow is how close to the run start a date must be to be
	// treated as a rendering timestamp rather than a publish date.
	TodayWindow Duration `yaml:"today_window"`
	// UserAgent identifies the tool to the site.
	UserAgent string `yaml:"user_agent"`
	// SkipHosts lists media hosts never downloaded from.
	SkipHosts []string `yaml:"skip_hosts"`
}

// Default returns the configuration used when no file overrides it.
func Default() *Config {
	return &Config{
		Concurrency:       4,
		RequestsPerSecond: 2,
		Burst:             1,
		FetchTimeout:      Duration(10 * time.Second),
		MediaTimeout:      Duration(30 * time.Second),
		Retries:           3,
		MaxArchivePages:   50,
		TodayWindow:       Duration(24 * time.Hour),
		UserAgent:         "blogmirror/1.0 (blog migration; +https://github.com/netjoints/blogmirror)",
	}
}

// Load reads the config file at path and merges it over the defaults. An
// empty path yields the defaults; a file that exists but cannot be parsed
// is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file %s does not exist", path)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate rejects values no run could work with.
func (c *Config) validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency)
	}
	if c.RequestsPerSecond <= 0 {
		return fmt.Errorf("requests_per_second must be positive, got %v", c.RequestsPerSecond)
	}
	if c.Retries < 1 {
		return fmt.Errorf("retries must be at least 1, got %d", c.Retries)
	}
	return nil
}
