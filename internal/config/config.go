package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config carries everything the service needs at startup. Nothing in the
// request path reads the environment; secrets and TTLs are injected into
// the token service at construction.
type Config struct {
	HTTP     HTTPConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Audit    AuditConfig
	Log      LogConfig
}

type HTTPConfig struct {
	Addr          string
	MaxBodyBytes  int64
	RateBurst     int
	RatePerSecond int
}

type DatabaseConfig struct {
	DSN string
}

type AuthConfig struct {
	Issuer        string
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

type AuditConfig struct {
	QueueDepth int
}

type LogConfig struct {
	Level string
}

// Load reads configuration from the environment (TALLO_* keys), applying
// defaults for everything except the token secrets, which are required.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TALLO")
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("HTTP_MAX_BODY_BYTES", int64(1<<20))
	v.SetDefault("HTTP_RATE_BURST", 10)
	v.SetDefault("HTTP_RATE_PER_SECOND", 5)
	v.SetDefault("PG_DSN", "")
	v.SetDefault("AUTH_ISSUER", "tallo")
	v.SetDefault("AUTH_ACCESS_TTL", 15*time.Minute)
	v.SetDefault("AUTH_REFRESH_TTL", 7*24*time.Hour)
	v.SetDefault("AUDIT_QUEUE_DEPTH", 1024)
	v.SetDefault("LOG_LEVEL", "info")

	cfg := &Config{
		HTTP: HTTPConfig{
			Addr:          v.GetString("HTTP_ADDR"),
			MaxBodyBytes:  v.GetInt64("HTTP_MAX_BODY_BYTES"),
			RateBurst:     v.GetInt("HTTP_RATE_BURST"),
			RatePerSecond: v.GetInt("HTTP_RATE_PER_SECOND"),
		},
		Database: DatabaseConfig{
			DSN: v.GetString("PG_DSN"),
		},
		Auth: AuthConfig{
			Issuer:        v.GetString("AUTH_ISSUER"),
			AccessSecret:  v.GetString("AUTH_ACCESS_SECRET"),
			RefreshSecret: v.GetString("AUTH_REFRESH_SECRET"),
			AccessTTL:     v.GetDuration("AUTH_ACCESS_TTL"),
			RefreshTTL:    v.GetDuration("AUTH_REFRESH_TTL"),
		},
		Audit: AuditConfig{
			QueueDepth: v.GetInt("AUDIT_QUEUE_DEPTH"),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Auth.AccessSecret == "" {
		return errors.New("config: TALLO_AUTH_ACCESS_SECRET is required")
	}
	if c.Auth.RefreshSecret == "" {
		return errors.New("config: TALLO_AUTH_REFRESH_SECRET is required")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("config: access and refresh secrets must differ")
	}
	if c.Auth.AccessTTL <= 0 || c.Auth.RefreshTTL <= 0 {
		return errors.New("config: token TTLs must be positive")
	}
	if c.Auth.AccessTTL >= c.Auth.RefreshTTL {
		return fmt.Errorf("config: access TTL %s must be shorter than refresh TTL %s", c.Auth.AccessTTL, c.Auth.RefreshTTL)
	}
	if c.Audit.QueueDepth <= 0 {
		return errors.New("config: audit queue depth must be positive")
	}
	return nil
}
