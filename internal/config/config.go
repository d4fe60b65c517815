// Package config loads configuration from environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Delivery modes.
const (
	ModeProxy    = "proxy"
	ModeRedirect = "redirect"
)

// SessionSpec describes one backend session. Config is passed verbatim to
// the storage backend factory for Type.
type SessionSpec struct {
	Name   string          `json:"name"`
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config"`
}

// Config holds all gateway configuration.
type Config struct {
	// Server
	ListenAddr    string
	MetricsAddr   string
	PublicBaseURL string

	// Logging
	LogLevel  string
	LogFormat string

	// TLS (optional, both must be set)
	TLSCertFile string
	TLSKeyFile  string

	// Delivery
	DeliveryMode           string
	MaxConcurrentPerClient int
	ChunkSize              int64
	BackendTimeout         time.Duration
	RedirectURLTTL         time.Duration
	RateLimitRPM           int

	// Status / landing
	ProjectURL  string
	BotUsername string

	// Catalog ("postgres" or "redis")
	CatalogDriver string
	DatabaseURL   string
	RedisAddr     string
	RedisDB       int
	RedisPassword string

	// Sessions
	Sessions []SessionSpec
}

// Load reads configuration from environment variables with defaults. A .env
// file in the working directory is loaded first when present.
func Load() (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}
	return FromViper(newViper())
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("LISTEN_ADDR", ":8080")
	v.SetDefault("METRICS_ADDR", ":9090")
	v.SetDefault("PUBLIC_BASE_URL", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("TLS_CERT_FILE", "")
	v.SetDefault("TLS_KEY_FILE", "")
	v.SetDefault("DELIVERY_MODE", ModeProxy)
	v.SetDefault("MAX_CONCURRENT_PER_CLIENT", 8)
	v.SetDefault("CHUNK_SIZE", 1024*1024) // 1 MiB
	v.SetDefault("BACKEND_TIMEOUT", 30*time.Second)
	v.SetDefault("REDIRECT_URL_TTL", time.Hour)
	v.SetDefault("RATE_LIMIT_RPM", 0) // 0 = unlimited
	v.SetDefault("PROJECT_URL", "https://github.com/fyaz05/FileToLink")
	v.SetDefault("BOT_USERNAME", "")
	v.SetDefault("CATALOG_DRIVER", "postgres")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("BACKEND_SESSIONS", "")
	return v
}

// FromViper builds and validates a Config from v.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		ListenAddr:             v.GetString("LISTEN_ADDR"),
		MetricsAddr:            v.GetString("METRICS_ADDR"),
		PublicBaseURL:          strings.TrimRight(v.GetString("PUBLIC_BASE_URL"), "/"),
		LogLevel:               v.GetString("LOG_LEVEL"),
		LogFormat:              v.GetString("LOG_FORMAT"),
		TLSCertFile:            v.GetString("TLS_CERT_FILE"),
		TLSKeyFile:             v.GetString("TLS_KEY_FILE"),
		DeliveryMode:           strings.ToLower(v.GetString("DELIVERY_MODE")),
		MaxConcurrentPerClient: v.GetInt("MAX_CONCURRENT_PER_CLIENT"),
		ChunkSize:              v.GetInt64("CHUNK_SIZE"),
		BackendTimeout:         v.GetDuration("BACKEND_TIMEOUT"),
		RedirectURLTTL:         v.GetDuration("REDIRECT_URL_TTL"),
		RateLimitRPM:           v.GetInt("RATE_LIMIT_RPM"),
		ProjectURL:             v.GetString("PROJECT_URL"),
		BotUsername:            strings.TrimPrefix(v.GetString("BOT_USERNAME"), "@"),
		CatalogDriver:          strings.ToLower(v.GetString("CATALOG_DRIVER")),
		DatabaseURL:            v.GetString("DATABASE_URL"),
		RedisAddr:              v.GetString("REDIS_ADDR"),
		RedisDB:                v.GetInt("REDIS_DB"),
		RedisPassword:          v.GetString("REDIS_PASSWORD"),
	}

	if raw := v.GetString("BACKEND_SESSIONS"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &cfg.Sessions); err != nil {
			return nil, fmt.Errorf("BACKEND_SESSIONS: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.Sessions) == 0 {
		return fmt.Errorf("BACKEND_SESSIONS must define at least one session")
	}
	seen := make(map[string]bool, len(c.Sessions))
	for i, s := range c.Sessions {
		if s.Name == "" {
			return fmt.Errorf("BACKEND_SESSIONS[%d]: name is required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("BACKEND_SESSIONS: duplicate session name %q", s.Name)
		}
		seen[s.Name] = true
	}

	switch c.DeliveryMode {
	case ModeProxy, ModeRedirect:
	default:
		return fmt.Errorf("DELIVERY_MODE must be %q or %q, got %q", ModeProxy, ModeRedirect, c.DeliveryMode)
	}

	switch c.CatalogDriver {
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres catalog")
		}
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required for the redis catalog")
		}
	default:
		return fmt.Errorf("unknown CATALOG_DRIVER %q", c.CatalogDriver)
	}

	if c.MaxConcurrentPerClient <= 0 {
		return fmt.Errorf("MAX_CONCURRENT_PER_CLIENT must be positive")
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("CHUNK_SIZE must be positive")
	}
	if c.BackendTimeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be positive")
	}
	return nil
}
