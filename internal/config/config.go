package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/caarlos0/env/v11"
)

const (
	StateMemory   = "memory"
	StateDatabase = "database"
	StateRedis    = "redis"
)

type Config struct {
	Port      int    `env:"PORT" envDefault:"9090"`
	ModelType string `env:"MODEL_TYPE" envDefault:"dummy"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`

	DatabaseURL  string `env:"DATABASE_URL" envDefault:"./data/ml-backend.db"`
	StateBackend string `env:"STATE_BACKEND" envDefault:"database"`
	RedisURL     string `env:"REDIS_URL"`

	// Empty selects the in-memory queue.
	RabbitMQURL string `env:"RABBITMQ_URL"`

	BasicAuthUser string `env:"BASIC_AUTH_USER"`
	BasicAuthPass string `env:"BASIC_AUTH_PASS"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("error parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.StateBackend {
	case StateMemory, StateDatabase:
	case StateRedis:
		if c.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when STATE_BACKEND=%s", StateRedis)
		}
	default:
		return fmt.Errorf("invalid STATE_BACKEND '%s': must be one of %s, %s, %s", c.StateBackend, StateMemory, StateDatabase, StateRedis)
	}

	if (c.BasicAuthUser == "") != (c.BasicAuthPass == "") {
		return fmt.Errorf("BASIC_AUTH_USER and BASIC_AUTH_PASS must be set together")
	}

	if _, err := c.SlogLevel(); err != nil {
		return err
	}

	return nil
}

func (c *Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		return level, fmt.Errorf("invalid LOG_LEVEL '%s': %w", c.LogLevel, err)
	}
	return level, nil
}
