package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Backend BackendConfig `mapstructure:"backend"`
	Stream  StreamConfig  `mapstructure:"stream"`
	History HistoryConfig `mapstructure:"history"`
}

type BackendConfig struct {
	URL            string `mapstructure:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	Agentic        bool   `mapstructure:"agentic"`
}

type StreamConfig struct {
	ThrottleMs int `mapstructure:"throttle_ms"`
}

type HistoryConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	MaxCount   int  `mapstructure:"max_count"`
	MaxAgeDays int  `mapstructure:"max_age_days"`
}

func Load() (*Config, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config dir: %w", err)
	}

	configPath := filepath.Join(configDir, "docchat")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(configPath)
	viper.AddConfigPath(".")

	// Set defaults
	viper.SetDefault("backend.url", "http://localhost:8000")
	viper.SetDefault("backend.timeout_seconds", 120)
	viper.SetDefault("backend.agentic", false)
	viper.SetDefault("stream.throttle_ms", 50)
	viper.SetDefault("history.enabled", true)
	viper.SetDefault("history.max_count", 500)
	viper.SetDefault("history.max_age_days", 90)

	// Read config file (optional - won't error if missing)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Environment wins over the config file for the backend address.
	if url := os.Getenv("DOCCHAT_BACKEND_URL"); url != "" {
		cfg.Backend.URL = url
	}

	return &cfg, nil
}

// ApplyOverrides layers command-line flag values on top of the loaded
// configuration. Empty or zero values leave the existing setting alone.
func (c *Config) ApplyOverrides(backendURL string, agentic bool, timeoutSeconds int) {
	if backendURL != "" {
		c.Backend.URL = backendURL
	}
	if agentic {
		c.Backend.Agentic = true
	}
	if timeoutSeconds > 0 {
		c.Backend.TimeoutSeconds = timeoutSeconds
	}
}

// Timeout returns the backend request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	if c.Backend.TimeoutSeconds <= 0 {
		return 120 * time.Second
	}
	return time.Duration(c.Backend.TimeoutSeconds) * time.Second
}

// Throttle returns the minimum interval between display updates.
func (c *Config) Throttle() time.Duration {
	if c.Stream.ThrottleMs <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(c.Stream.ThrottleMs) * time.Millisecond
}

// GetConfigPath returns the path where the config file should be located
func GetConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "docchat", "config.yaml"), nil
}

// Exists returns true if a config file exists
func Exists() bool {
	path, err := GetConfigPath()
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// Save writes the config to disk
func Save(cfg *Config) error {
	path, err := GetConfigPath()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	content := fmt.Sprintf(`backend:
  url: %s
  timeout_seconds: %d
  agentic: %t

stream:
  throttle_ms: %d

history:
  enabled: %t
  max_count: %d
  max_age_days: %d
`, cfg.Backend.URL, cfg.Backend.TimeoutSeconds, cfg.Backend.Agentic,
		cfg.Stream.ThrottleMs,
		cfg.History.Enabled, cfg.History.MaxCount, cfg.History.MaxAgeDays)

	return os.WriteFile(path, []byte(content), 0600)
}
