package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Environment variables that override values from the config file
const (
	EnvServiceURL = "SETLIST_SERVICE_URL"
	EnvLogLevel   = "SETLIST_LOG_LEVEL"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Storage  StorageConfig  `toml:"storage"`
	Logging  LoggingConfig  `toml:"logging"`
	Redis    RedisConfig    `toml:"redis"`
	Ngrok    NgrokConfig    `toml:"ngrok"`
	Client   ClientConfig   `toml:"client"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Port           string `toml:"port"`
	Host           string `toml:"host"`
	EnableCORS     bool   `toml:"enable_cors"`
	ReadTimeout    int    `toml:"read_timeout_seconds"`
	WriteTimeout   int    `toml:"write_timeout_seconds"`
	RequestLogging bool   `toml:"request_logging"`
}

// DatabaseConfig contains database-related configuration
type DatabaseConfig struct {
	Path           string `toml:"path"`
	MaxConnections int    `toml:"max_connections"`
}

// StorageConfig controls where and how playlist thumbnails are kept
type StorageConfig struct {
	ThumbnailDir     string `toml:"thumbnail_dir"`
	MaxUploadSizeMB  int64  `toml:"max_upload_size_mb"`
	MaxThumbnailEdge int    `toml:"max_thumbnail_edge"`
	// MaxSourcePixels caps width*height of an upload before it is decoded
	MaxSourcePixels  int    `toml:"max_source_pixels"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	File   string `toml:"file"`
}

// RedisConfig configures playlist event publishing. An empty Addr disables it.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Channel  string `toml:"channel"`
}

// NgrokConfig contains ngrok tunnel configuration
type NgrokConfig struct {
	Enabled      bool   `toml:"enabled"`
	AuthToken    string `toml:"auth_token"`
	Domain       string `toml:"domain"`
	Region       string `toml:"region"`
	EnableAuth   bool   `toml:"enable_auth"`
	AuthProvider string `toml:"auth_provider"`
}

// ClientConfig is used by the setlist CLI to reach the playlist service
type ClientConfig struct {
	ServiceURL     string `toml:"service_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	StorageFile    string `toml:"storage_file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:           "8080",
			Host:           "0.0.0.0",
			EnableCORS:     true,
			ReadTimeout:    30,
			WriteTimeout:   30,
			RequestLogging: true,
		},
		Database: DatabaseConfig{
			Path:           "./setlist.db",
			MaxConnections: 5,
		},
		Storage: StorageConfig{
			ThumbnailDir:     "./thumbnails",
			MaxUploadSizeMB:  10,
			MaxThumbnailEdge: 512,
			MaxSourcePixels:  20_000_000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			File:   "",
		},
		Redis: RedisConfig{
			Addr:    "",
			Channel: "broadcast",
		},
		Ngrok: NgrokConfig{
			Enabled:      false,
			Region:       "us",
			AuthProvider: "google",
		},
		Client: ClientConfig{
			ServiceURL:     "http://localhost:8080",
			TimeoutSeconds: 30,
			StorageFile:    "./.setlist/storage.json",
		},
	}
}

// LoadConfig loads configuration from a TOML file, then applies .env and
// environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	// .env is optional; a missing file is not an error
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("failed to load .env file: %w", err)
		}
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		// Config file doesn't exist, create it with defaults
		if err := cfg.SaveToFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config file: %w", err)
		}
	} else if _, err := toml.DecodeFile(configPath, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides config values with any SETLIST_* environment variables.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvServiceURL); v != "" {
		c.Client.ServiceURL = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}

// SaveToFile saves the configuration to a TOML file
func (c *Config) SaveToFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	file, err := os.Create(configPath)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer file.Close()

	header := `# setlist configuration
# [server], [database], [storage], [redis] and [ngrok] are read by setlistd.
# [client] is read by the setlist CLI.

`
	if _, err := file.WriteString(header); err != nil {
		return fmt.Errorf("failed to write config header: %w", err)
	}

	encoder := toml.NewEncoder(file)
	if err := encoder.Encode(c); err != nil {
		return fmt.Errorf("failed to encode config to TOML: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}
	if c.Server.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server timeouts must be positive")
	}

	// Validate database config
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database max connections must be at least 1")
	}

	// Validate storage config
	if c.Storage.ThumbnailDir == "" {
		return fmt.Errorf("thumbnail directory cannot be empty")
	}
	if c.Storage.MaxUploadSizeMB < 1 {
		return fmt.Errorf("max upload size must be at least 1 MB")
	}
	if c.Storage.MaxThumbnailEdge < 16 {
		return fmt.Errorf("max thumbnail edge must be at least 16 pixels")
	}
	if c.Storage.MaxSourcePixels < c.Storage.MaxThumbnailEdge*c.Storage.MaxThumbnailEdge {
		return fmt.Errorf("max source pixels must cover at least one full-size thumbnail")
	}

	// Validate logging config
	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"text": true, "json": true,
	}
	if !validLogFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.Logging.Format)
	}

	if c.Redis.Addr != "" && c.Redis.Channel == "" {
		return fmt.Errorf("redis channel cannot be empty when redis is enabled")
	}

	// Validate client config
	u, err := url.Parse(c.Client.ServiceURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid service url: %q (must be an http or https URL)", c.Client.ServiceURL)
	}
	if c.Client.TimeoutSeconds < 1 {
		return fmt.Errorf("client timeout must be at least 1 second")
	}
	if c.Client.StorageFile == "" {
		return fmt.Errorf("client storage file cannot be empty")
	}

	return nil
}

// GetAddress returns the full server address
func (c *Config) GetAddress() string {
	return c.Server.Host + ":" + c.Server.Port
}

// ClientTimeout returns the configured service call timeout
func (c *Config) ClientTimeout() time.Duration {
	return time.Duration(c.Client.TimeoutSeconds) * time.Second
}

// MaxUploadBytes returns the upload size limit in bytes
func (c *Config) MaxUploadBytes() int64 {
	return c.Storage.MaxUploadSizeMB * 1024 * 1024
}
