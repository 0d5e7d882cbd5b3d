// Package config assembles service configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/abhisek/lessonpath/internal/llm"
	"github.com/abhisek/lessonpath/internal/store"
	"github.com/abhisek/lessonpath/internal/validator"
)

// Config is the full service configuration.
type Config struct {
	DBDriver string
	// DatabaseURL is a PostgreSQL DSN or a SQLite path/DSN. Empty selects
	// the default SQLite path.
	DatabaseURL string

	HTTPAddr    string
	CORSOrigins []string

	RunnerURL     string
	RunnerTimeout time.Duration

	LogMode string

	LLM llm.Config
}

// DefaultConfig returns a Config for a local SQLite deployment.
func DefaultConfig() Config {
	return Config{
		DBDriver:      store.DriverSQLite,
		HTTPAddr:      ":8080",
		CORSOrigins:   []string{"*"},
		RunnerTimeout: validator.DefaultRunnerTimeout,
		LogMode:       "dev",
		LLM:           llm.DefaultConfig(),
	}
}

// LoadDotEnv loads variables from the given files, or ./.env when none are
// given. Missing files are ignored and existing variables are never
// overridden.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// FromEnv reads LESSONPATH_* variables over the defaults.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()

	setString(&cfg.DBDriver, "LESSONPATH_DB_DRIVER")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.HTTPAddr, "LESSONPATH_HTTP_ADDR")
	setString(&cfg.RunnerURL, "LESSONPATH_RUNNER_URL")
	setString(&cfg.LogMode, "LESSONPATH_LOG_MODE")

	if v := strings.TrimSpace(os.Getenv("LESSONPATH_RUNNER_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("LESSONPATH_RUNNER_TIMEOUT: %w", err)
		}
		cfg.RunnerTimeout = d
	}
	if v := strings.TrimSpace(os.Getenv("LESSONPATH_CORS_ORIGINS")); v != "" {
		cfg.CORSOrigins = splitList(v)
	}

	cfg.LLM = llm.ConfigFromEnv()
	return cfg, nil
}

// Validate checks the configuration for values the service cannot start
// with.
func (c Config) Validate() error {
	switch c.DBDriver {
	case store.DriverSQLite:
	case store.DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown database driver: %q", c.DBDriver)
	}
	if c.HTTPAddr == "" {
		return fmt.Errorf("LESSONPATH_HTTP_ADDR must not be empty")
	}
	if c.RunnerTimeout <= 0 {
		return fmt.Errorf("runner timeout must be positive, got %s", c.RunnerTimeout)
	}
	if err := c.LLM.Validate(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	return nil
}

// DSN resolves the database location, falling back to the default SQLite
// path.
func (c Config) DSN() (string, error) {
	if c.DatabaseURL != "" {
		return c.DatabaseURL, nil
	}
	if c.DBDriver != store.DriverSQLite {
		return "", fmt.Errorf("DATABASE_URL is required for the %s driver", c.DBDriver)
	}
	return store.DefaultDBPath()
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
