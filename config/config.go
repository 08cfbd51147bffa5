// Package config handles loading and managing application configuration
// from YAML files, .env files and environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DownloadConfig controls how generated images are fetched.
type DownloadConfig struct {
	// Timeout of zero means downloads never time out.
	Timeout Duration `yaml:"timeout"`
	Dir     string   `yaml:"dir"`
}

// DefaultsConfig holds the values a new widget starts with.
type DefaultsConfig struct {
	Size    int    `yaml:"size"`
	Format  string `yaml:"format"`
	Color   string `yaml:"color"`
	BgColor string `yaml:"bgcolor"`
}

// HistoryConfig toggles the SQLite generation/download log.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StandInConfig runs the local stand-in image endpoint next to the server.
type StandInConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// SessionsConfig bounds the mounted widget sessions.
type SessionsConfig struct {
	// Max of zero means no limit.
	Max int `yaml:"max"`
	// IdleTimeout of zero disables expiry.
	IdleTimeout Duration `yaml:"idle_timeout"`
}

// Config holds all application configuration values.
type Config struct {
	Port         int            `yaml:"port"`
	DataDir      string         `yaml:"data_dir"`
	BaseEndpoint string         `yaml:"base_endpoint"`
	LogLevel     string         `yaml:"log_level"`
	LogFile      string         `yaml:"log_file"`
	Download     DownloadConfig `yaml:"download"`
	Defaults     DefaultsConfig `yaml:"defaults"`
	History      HistoryConfig  `yaml:"history"`
	StandIn      StandInConfig  `yaml:"stand_in"`
	Sessions     SessionsConfig `yaml:"sessions"`
}

// Duration is a wrapper around time.Duration that supports YAML unmarshalling
// from human-readable strings like "30s", "5m", "1h".
type Duration struct {
	time.Duration
}

// UnmarshalYAML implements the yaml.Unmarshaler interface for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

// MarshalYAML implements the yaml.Marshaler interface for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

// defaults returns a Config populated with sensible default values.
func defaults() *Config {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}
	return &Config{
		Port:     8600,
		DataDir:  filepath.Join(homeDir, ".openclaw-qrgen"),
		LogLevel: "info",
		Download: DownloadConfig{Dir: "."},
		Defaults: DefaultsConfig{
			Size:    200,
			Format:  "png",
			Color:   "FFFFFF",
			BgColor: "000000",
		},
		History: HistoryConfig{Enabled: true},
		StandIn: StandInConfig{Port: 8601},
		Sessions: SessionsConfig{
			Max:         1000,
			IdleTimeout: Duration{30 * time.Minute},
		},
	}
}

// Load reads configuration from the YAML file at path, falling back to
// defaults if the file does not exist. Variables from envFiles are added to
// the environment (existing variables win), then OC_QR_* environment
// variables override file and default values. Missing env files are skipped.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reading env file %s: %w", f, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides applies OC_QR_* environment variable overrides to cfg.
// VITE_BASE_URL is honored when OC_QR_BASE_URL is unset.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OC_QR_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("OC_QR_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("OC_QR_BASE_URL"); v != "" {
		cfg.BaseEndpoint = v
	} else if v := os.Getenv("VITE_BASE_URL"); v != "" {
		cfg.BaseEndpoint = v
	}
	if v := os.Getenv("OC_QR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("OC_QR_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv("OC_QR_DOWNLOAD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Download.Timeout = Duration{d}
		}
	}
	if v := os.Getenv("OC_QR_DOWNLOAD_DIR"); v != "" {
		cfg.Download.Dir = v
	}
	if v := os.Getenv("OC_QR_MAX_SESSIONS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sessions.Max = n
		}
	}
	if v := os.Getenv("OC_QR_SESSION_IDLE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Sessions.IdleTimeout = Duration{d}
		}
	}
	if v := os.Getenv("OC_QR_HISTORY"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.History.Enabled = b
		}
	}
	if v := os.Getenv("OC_QR_STAND_IN"); v != "" {
		if b, ok := parseBool(v); ok {
			cfg.StandIn.Enabled = b
		}
	}
}

func parseBool(v string) (bool, bool) {
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true, true
	case "false", "0", "no":
		return false, true
	}
	return false, false
}

// Validate checks the values the service cannot start without. The base
// endpoint itself is parsed by the request builder.
func (c *Config) Validate() error {
	if c.BaseEndpoint == "" {
		return errors.New("base_endpoint is required (or set OC_QR_BASE_URL)")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.StandIn.Enabled && (c.StandIn.Port <= 0 || c.StandIn.Port > 65535 || c.StandIn.Port == c.Port) {
		return fmt.Errorf("invalid stand_in port %d", c.StandIn.Port)
	}
	if c.Sessions.Max < 0 {
		return fmt.Errorf("invalid sessions max %d", c.Sessions.Max)
	}
	if c.Sessions.IdleTimeout.Duration < 0 {
		return fmt.Errorf("invalid session idle timeout %s", c.Sessions.IdleTimeout)
	}
	if c.Download.Timeout.Duration < 0 {
		return fmt.Errorf("invalid download timeout %s", c.Download.Timeout)
	}
	return nil
}

// EnsureDataDir creates the DataDir if it does not already exist.
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir %s: %w", c.DataDir, err)
	}
	return nil
}

// HistoryPath is the SQLite file history is kept in.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.DataDir, "history.db")
}
