package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Ingest   IngestConfig   `yaml:"ingest"`
	Query    QueryConfig    `yaml:"query"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port int    `yaml:"port"`
	Host string `yaml:"host"`
}

// GetHost returns the server host, with container detection
func (c ServerConfig) GetHost() string {
	// In a container, listen on all interfaces
	if os.Getenv("ECS_CONTAINER_METADATA_URI") != "" || os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "0.0.0.0"
	}
	if host := os.Getenv("SERVER_HOST"); host != "" {
		return host
	}
	return c.Host
}

// Addr returns the host:port the server listens on.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.GetHost(), c.Port)
}

// DatabaseConfig holds the shared-store connection settings
type DatabaseConfig struct {
	URL                   string `yaml:"url"`
	ConnectTimeoutSeconds int    `yaml:"connect_timeout_seconds"`
	MaxOpenConns          int    `yaml:"max_open_conns"`
}

// RedisConfig holds the report-cache settings. Addr empty disables caching.
type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	CacheTTLSeconds int    `yaml:"cache_ttl_seconds"`
}

// CacheTTL returns the report cache TTL as a duration
func (c RedisConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheTTLSeconds) * time.Second
}

// AuthConfig holds session authentication configuration
type AuthConfig struct {
	Enabled      bool   `yaml:"enabled"`
	CookieName   string `yaml:"cookie_name"`
	CookieMaxAge int    `yaml:"cookie_max_age"`
}

// IngestConfig holds ingestion pipeline settings
type IngestConfig struct {
	// BatchSize caps records per upsert round trip to stay under payload limits.
	BatchSize int `yaml:"batch_size"`
	// ReferenceTimezone is the single fixed zone used to interpret the
	// wall-clock date/time text of uploaded files before UTC conversion.
	ReferenceTimezone string `yaml:"reference_timezone"`
}

// QueryConfig holds range-read pagination settings
type QueryConfig struct {
	PageSize int `yaml:"page_size"`
	// MaxPages is a defensive cap on the page loop, not expected behavior;
	// hitting it is surfaced as a truncation warning.
	MaxPages int `yaml:"max_pages"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "console"
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.ConnectTimeoutSeconds == 0 {
		cfg.Database.ConnectTimeoutSeconds = 5
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 10
	}
	if cfg.Redis.CacheTTLSeconds == 0 {
		cfg.Redis.CacheTTLSeconds = 60
	}
	if cfg.Auth.CookieName == "" {
		cfg.Auth.CookieName = "turnos_session"
	}
	if cfg.Auth.CookieMaxAge == 0 {
		cfg.Auth.CookieMaxAge = 8 * 3600
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = 500
	}
	if cfg.Ingest.ReferenceTimezone == "" {
		cfg.Ingest.ReferenceTimezone = "America/Argentina/Buenos_Aires"
	}
	if cfg.Query.PageSize == 0 {
		cfg.Query.PageSize = 5000
	}
	if cfg.Query.MaxPages == 0 {
		cfg.Query.MaxPages = 40
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in production.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
	}
	if pw := os.Getenv("REDIS_PASSWORD"); pw != "" {
		cfg.Redis.Password = pw
	}
	if tz := os.Getenv("REFERENCE_TIMEZONE"); tz != "" {
		cfg.Ingest.ReferenceTimezone = tz
	}
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		cfg.Log.Level = lvl
	}

	return cfg, nil
}
