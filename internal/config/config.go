// Package config holds the client configuration: built-in defaults, an
// optional YAML file and environment overrides, applied in that order.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	EnvAPIURL   = "UNIP_API_URL"
	EnvEnv      = "UNIP_ENV"
	EnvLogLevel = "UNIP_LOG_LEVEL"
	EnvDB       = "UNIP_DB"

	DefaultAPIURL = "http://localhost:8000"
)

// Duration is a time.Duration written as "300ms" or "2s" in YAML.
type Duration time.Duration

func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

type Config struct {
	APIURL   string   `yaml:"api_url"`
	Env      string   `yaml:"env"`
	LogLevel string   `yaml:"log_level"`
	DBPath   string   `yaml:"db_path"`
	Timeout  Duration `yaml:"timeout"`

	Limits   LimitsConfig   `yaml:"limits"`
	Progress ProgressConfig `yaml:"progress"`
	Audit    AuditConfig    `yaml:"audit"`
	Logging  LoggingConfig  `yaml:"logging"`
	Watch    WatchConfig    `yaml:"watch"`
	Health   HealthConfig   `yaml:"health"`
}

type LimitsConfig struct {
	MaxTextLength     int      `yaml:"max_text_length"`
	MaxFileSize       int64    `yaml:"max_file_size"`
	MaxBatchSize      int      `yaml:"max_batch_size"`
	AllowedExtensions []string `yaml:"allowed_extensions"`
	RateLimitRequests int      `yaml:"rate_limit_requests"`
	RateLimitWindow   Duration `yaml:"rate_limit_window"`
}

type ProgressConfig struct {
	StageDelay   Duration `yaml:"stage_delay"`
	TickInterval Duration `yaml:"tick_interval"`
	ClearDelay   Duration `yaml:"clear_delay"`
	RevealDelay  Duration `yaml:"reveal_delay"`
}

type AuditConfig struct {
	Enabled      bool   `yaml:"enabled"`
	Dir          string `yaml:"dir"`
	MaxShardSize int64  `yaml:"max_shard_size"`
	Compress     bool   `yaml:"compress"`
}

type LoggingConfig struct {
	Ship          bool     `yaml:"ship"`
	BatchSize     int      `yaml:"batch_size"`
	FlushInterval Duration `yaml:"flush_interval"`
	QueueSize     int      `yaml:"queue_size"`
}

type WatchConfig struct {
	Debounce      Duration `yaml:"debounce"`
	BatchSize     int      `yaml:"batch_size"`
	FlushInterval Duration `yaml:"flush_interval"`
	Tasks         []string `yaml:"tasks"`
}

type HealthConfig struct {
	// Every is a duration ("30s") or a cron expression.
	Every string `yaml:"every"`
}

func DefaultConfig() *Config {
	return &Config{
		APIURL:  DefaultAPIURL,
		Env:     "production",
		Timeout: Duration(30 * time.Second),
		Limits: LimitsConfig{
			MaxTextLength:     100000,
			MaxFileSize:       10 * 1024 * 1024,
			MaxBatchSize:      100,
			AllowedExtensions: []string{".txt", ".csv", ".pdf", ".md", ".srt"},
			RateLimitRequests: 10,
			RateLimitWindow:   Duration(time.Minute),
		},
		Progress: ProgressConfig{
			StageDelay:   Duration(300 * time.Millisecond),
			TickInterval: Duration(2 * time.Second),
			ClearDelay:   Duration(500 * time.Millisecond),
			RevealDelay:  Duration(100 * time.Millisecond),
		},
		Audit: AuditConfig{
			Enabled:      true,
			MaxShardSize: 10 * 1024 * 1024,
			Compress:     true,
		},
		Logging: LoggingConfig{
			BatchSize:     50,
			FlushInterval: Duration(5 * time.Second),
			QueueSize:     1000,
		},
		Watch: WatchConfig{
			Debounce:      Duration(500 * time.Millisecond),
			BatchSize:     10,
			FlushInterval: Duration(2 * time.Second),
		},
		Health: HealthConfig{Every: "30s"},
	}
}

// Dir returns ~/.unip.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".unip"), nil
}

func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load builds the configuration. An empty path reads the default file if it
// exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		p, err := DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.UnmarshalStrict(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from UNIP_* variables.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if v := getenv(EnvAPIURL); v != "" {
		c.APIURL = v
	}
	if v := getenv(EnvEnv); v != "" {
		c.Env = v
	}
	if v := getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := getenv(EnvDB); v != "" {
		c.DBPath = v
	}
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid api_url %q", c.APIURL)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("api_url must be http or https, got %q", u.Scheme)
	}
	if c.Limits.RateLimitRequests < 0 {
		return errors.New("limits.rate_limit_requests must not be negative")
	}
	if c.Watch.BatchSize < 0 {
		return errors.New("watch.batch_size must not be negative")
	}
	return nil
}

// Development reports whether the client runs in development mode, which
// raises the default log level and keeps raw server error payloads.
func (c *Config) Development() bool {
	switch strings.ToLower(c.Env) {
	case "dev", "development", "local":
		return true
	}
	return false
}

// Save writes c as YAML, creating the parent directory.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
