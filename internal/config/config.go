package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the entire application configuration
type Config struct {
	Cache    CacheConfig    `mapstructure:"cache"`
	Download DownloadConfig `mapstructure:"download"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
}

// CacheConfig contains cache directory settings
type CacheConfig struct {
	RootDir string `mapstructure:"root_dir"`
	TempDir string `mapstructure:"temp_dir"`
}

// DownloadConfig contains transfer settings
type DownloadConfig struct {
	Timeout          string `mapstructure:"timeout"`
	ProgressInterval string `mapstructure:"progress_interval"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig contains fetch-history database settings
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// setDefaults registers defaults for every key
func setDefaults(v *viper.Viper) {
	v.SetDefault("cache.root_dir", filepath.Join(os.TempDir(), "appfetch", "cache"))
	v.SetDefault("cache.temp_dir", filepath.Join(os.TempDir(), "appfetch", "tmp"))
	v.SetDefault("download.timeout", "5m")
	v.SetDefault("download.progress_interval", "250ms")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("database.path", "")
}

// Default returns the configuration used when no config file is given
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var config Config
	// Unmarshal of pure defaults cannot fail
	_ = v.Unmarshal(&config)
	return &config
}

// Load loads configuration from the specified file path
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Cache.RootDir == "" {
		return fmt.Errorf("cache.root_dir is required")
	}
	if c.Cache.TempDir == "" {
		return fmt.Errorf("cache.temp_dir is required")
	}

	if _, err := time.ParseDuration(c.Download.Timeout); err != nil {
		return fmt.Errorf("invalid download.timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Download.ProgressInterval); err != nil {
		return fmt.Errorf("invalid download.progress_interval: %w", err)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
		// Valid levels
	default:
		return fmt.Errorf("invalid logging.level: %s", c.Logging.Level)
	}

	switch c.Logging.Format {
	case "json", "text":
		// Valid formats
	default:
		return fmt.Errorf("invalid logging.format: %s", c.Logging.Format)
	}

	return nil
}

// GetTimeout returns the download timeout as time.Duration
func (c *DownloadConfig) GetTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	if d == 0 {
		return 5 * time.Minute
	}
	return d
}

// GetProgressInterval returns the progress throttle interval as time.Duration
func (c *DownloadConfig) GetProgressInterval() time.Duration {
	d, _ := time.ParseDuration(c.ProgressInterval)
	if d == 0 {
		return 250 * time.Millisecond
	}
	return d
}

// DatabasePath returns the fetch-history database path, defaulting to a
// file inside the cache root
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Cache.RootDir, "history.db")
}
