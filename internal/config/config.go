package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout is the request timeout in seconds when none is configured
const DefaultTimeout = 30

// Config holds all application configuration
type Config struct {
	TestRail      TestRailConfig      `toml:"testrail" yaml:"testrail"`
	Upload        UploadConfig        `toml:"upload" yaml:"upload"`
	Notifications NotificationsConfig `toml:"notifications" yaml:"notifications"`
	History       HistoryConfig       `toml:"history" yaml:"history"`
}

// TestRailConfig holds connection settings for the TestRail instance
type TestRailConfig struct {
	Host     string  `toml:"host" yaml:"host" validate:"required,url"`
	Project  string  `toml:"project" yaml:"project" validate:"required"`
	Username string  `toml:"username" yaml:"username" validate:"required"`
	Password string  `toml:"password" yaml:"password" validate:"required_without=Key"`
	Key      string  `toml:"key" yaml:"key" validate:"required_without=Password"`
	Timeout  float64 `toml:"timeout" yaml:"timeout" validate:"gte=0"`
}

// UploadConfig holds settings for a single upload
type UploadConfig struct {
	File       string `toml:"file" yaml:"file" validate:"required"`
	Title      string `toml:"title" yaml:"title"`
	SuiteID    int    `toml:"suite_id" yaml:"suite_id" validate:"gte=0"`
	RunID      int    `toml:"run_id" yaml:"run_id" validate:"gte=0"`
	AutoCreate string `toml:"auto_create" yaml:"auto_create" validate:"omitempty,oneof=yes no"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop" yaml:"desktop"`
	SlackWebhook string `toml:"slack_webhook" yaml:"slack_webhook" validate:"omitempty,url"`
}

// HistoryConfig holds settings for the local upload history
type HistoryConfig struct {
	Enabled      bool   `toml:"enabled" yaml:"enabled"`
	DatabasePath string `toml:"database_path" yaml:"database_path"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		TestRail: TestRailConfig{
			Timeout: DefaultTimeout,
		},
		Upload: UploadConfig{
			Title: "Automated Test Run",
		},
		History: HistoryConfig{
			Enabled:      true,
			DatabasePath: filepath.Join(home, ".config", "trupload", "history.db"),
		},
	}
}

// Load reads configuration from a TOML or YAML file, falling back to defaults
// when the file does not exist
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = toml.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	cfg.Upload.File = ExpandPath(cfg.Upload.File)
	cfg.History.DatabasePath = ExpandPath(cfg.History.DatabasePath)

	return cfg, nil
}

// RequestTimeout returns the configured timeout as a duration
func (c *Config) RequestTimeout() time.Duration {
	if c.TestRail.Timeout <= 0 {
		return DefaultTimeout * time.Second
	}
	return time.Duration(c.TestRail.Timeout * float64(time.Second))
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "trupload", "config.toml")
}
