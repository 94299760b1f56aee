// Package config provides application configuration management.
// Process settings come from environment variables following 12-factor
// principles; per-community settings come from the projects file.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"

	"github.com/listkeeper/listkeeper/internal/auth"
)

// Store drivers.
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Config holds all application configuration.
// All fields are populated from environment variables.
type Config struct {
	// Application settings
	AppEnv   string `env:"APP_ENV" envDefault:"development"`
	HTTPPort int    `env:"HTTP_PORT" envDefault:"8080"`

	// Chat gateway
	DiscordToken  string `env:"DISCORD_TOKEN,required"`
	CommandPrefix string `env:"COMMAND_PREFIX" envDefault:"!"`
	ProjectsFile  string `env:"PROJECTS_FILE" envDefault:"projects.yaml"`

	// Entry store
	StoreDriver  string        `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL  string        `env:"DATABASE_URL"`
	StoreTimeout time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`

	// Cache (Redis)
	RedisURL      string        `env:"REDIS_URL,required"`
	CountCacheTTL time.Duration `env:"COUNT_CACHE_TTL" envDefault:"30s"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	// Server timeouts
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" envDefault:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Admin API. An empty hash disables /api/v1.
	AdminTokenHash string `env:"ADMIN_TOKEN_HASH"`

	// Rate limiting
	RateLimitAdminEnabled bool `env:"RATE_LIMIT_ADMIN_ENABLED" envDefault:"true"`
	RateLimitAdminRPS     int  `env:"RATE_LIMIT_ADMIN_RPS" envDefault:"10"`
	RateLimitAdminBurst   int  `env:"RATE_LIMIT_ADMIN_BURST" envDefault:"20"`
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AdminAPIEnabled reports whether an admin token hash is configured.
func (c *Config) AdminAPIEnabled() bool {
	return c.AdminTokenHash != ""
}

// Validate checks constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var errs []error

	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres"))
		}
	case StoreDriverMemory:
		if c.IsProduction() {
			errs = append(errs, errors.New("STORE_DRIVER=memory is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver))
	}

	if c.CommandPrefix == "" {
		errs = append(errs, errors.New("COMMAND_PREFIX must not be empty"))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, errors.New("STORE_TIMEOUT must be positive"))
	}
	if c.RateLimitAdminRPS <= 0 || c.RateLimitAdminBurst <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_ADMIN_RPS and RATE_LIMIT_ADMIN_BURST must be positive"))
	}
	if c.AdminTokenHash != "" {
		if err := auth.ValidateHash(c.AdminTokenHash); err != nil {
			errs = append(errs, fmt.Errorf("ADMIN_TOKEN_HASH: %w", err))
		}
	}

	return errors.Join(errs...)
}

// Load parses environment variables and returns a validated Config.
// Returns an error if required variables are missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
