// Package config loads arena server settings from ARENA_* environment
// variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr            string        `env:"ARENA_ADDR"             envDefault:":42069"`
	RedisURL        string        `env:"ARENA_REDIS_URL"`
	SQLitePath      string        `env:"ARENA_SQLITE_PATH"      envDefault:"arena.db"`
	JWTSecret       string        `env:"ARENA_JWT_SECRET"`
	JWTIssuer       string        `env:"ARENA_JWT_ISSUER"       envDefault:"showdown-arena"`
	CatalogPath     string        `env:"ARENA_CATALOG_PATH"`
	ActionTimeout   time.Duration `env:"ARENA_ACTION_TIMEOUT"   envDefault:"30s"`
	DisconnectGrace time.Duration `env:"ARENA_DISCONNECT_GRACE" envDefault:"15s"`
	ChallengeTTL    time.Duration `env:"ARENA_CHALLENGE_TTL"    envDefault:"60s"`
	RoomTTL         time.Duration `env:"ARENA_ROOM_TTL"         envDefault:"30m"`
	LogLevel        string        `env:"ARENA_LOG_LEVEL"        envDefault:"info"`
	LogFormat       string        `env:"ARENA_LOG_FORMAT"       envDefault:"text"`
	OTelEndpoint    string        `env:"ARENA_OTEL_ENDPOINT"`
	SeedDemo        bool          `env:"ARENA_SEED_DEMO"`
}

// Load parses the environment and validates the result.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.JWTSecret) == "" {
		return fmt.Errorf("ARENA_JWT_SECRET is required")
	}
	for name, d := range map[string]time.Duration{
		"ARENA_ACTION_TIMEOUT":   c.ActionTimeout,
		"ARENA_DISCONNECT_GRACE": c.DisconnectGrace,
		"ARENA_CHALLENGE_TTL":    c.ChallengeTTL,
		"ARENA_ROOM_TTL":         c.RoomTTL,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("ARENA_LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("ARENA_LOG_LEVEL: %w", err)
	}
	return level, nil
}
