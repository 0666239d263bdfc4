package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Port     int    `env:"FC_PORT" envDefault:"2323"`
	LogLevel string `env:"FC_LOG_LEVEL" envDefault:"info"`

	// Shared HTTP client
	Proxy          string `env:"FC_PROXY"`
	TimeoutSeconds int    `env:"FC_TIMEOUT_SECONDS" envDefault:"15"`
	TLSProfile     string `env:"FC_TLS_PROFILE" envDefault:"chrome_133"`

	// Task pool
	TaskTimeout time.Duration `env:"FC_TASK_TIMEOUT" envDefault:"30s"`
	TaskTTL     time.Duration `env:"FC_TASK_TTL" envDefault:"5m"`
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config - %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return Config{}, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.TaskTimeout <= 0 || cfg.TaskTTL <= 0 {
		return Config{}, fmt.Errorf("task timeout and ttl must be positive")
	}
	return cfg, nil
}
