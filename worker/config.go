package worker

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the full worker and server configuration.
type Config struct {
	Listen      string `yaml:"listen"`
	DBPath      string `yaml:"db_path"`
	BlobDir     string `yaml:"blob_dir"`
	BaseURL     string `yaml:"base_url"`
	MaxFileMB   int    `yaml:"max_file_mb"`
	PollSeconds int    `yaml:"poll_seconds"`
	TempDir     string `yaml:"temp_dir"`

	// ExtendedChecks enables the extended warning detectors (excessive
	// whitespace, chapter heading format inconsistency).
	ExtendedChecks bool `yaml:"extended_checks"`
	// LegacySeverities emits warning severities in the older
	// error/warning/info vocabulary.
	LegacySeverities bool `yaml:"legacy_severities"`
	// AttachMatches adds per-block match diagnostics to each warning.
	AttachMatches bool `yaml:"attach_matches"`
}

// DefaultConfig returns sane defaults.
func DefaultConfig() *Config {
	return &Config{
		Listen:      ":8080",
		DBPath:      "inkwell.db",
		BlobDir:     "blobs",
		BaseURL:     "http://localhost:8080/v1/artifacts",
		MaxFileMB:   100,
		PollSeconds: 5,
	}
}

// LoadConfig reads and parses a YAML config file. Returns DefaultConfig merged with the file.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that required fields are present and values are sane.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db_path is required")
	}
	if c.BlobDir == "" {
		return fmt.Errorf("blob_dir is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}
	if c.MaxFileMB <= 0 {
		return fmt.Errorf("max_file_mb must be > 0")
	}
	if c.PollSeconds <= 0 {
		return fmt.Errorf("poll_seconds must be > 0")
	}
	return nil
}

// MaxFileBytes returns max file size in bytes.
func (c *Config) MaxFileBytes() int64 { return int64(c.MaxFileMB) * 1024 * 1024 }

// PollInterval returns the queue poll interval.
func (c *Config) PollInterval() time.Duration { return time.Duration(c.PollSeconds) * time.Second }
