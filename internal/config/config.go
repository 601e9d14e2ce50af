// Package config loads server settings from the environment.
//
// WHERE SETTINGS COME FROM (highest priority first):
//  1. Real environment variables
//  2. A .env file in the working directory, if one exists
//  3. The envDefault tags below
//
// godotenv never overrides a variable that is already set, so a .env file is
// safe to keep around in development while production injects real env vars.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds every setting the server reads at start-up.
type Config struct {
	Port            int           `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Storage. DATABASE_URL wins over DB_PATH when both are set.
	DBPath      string `env:"DB_PATH" envDefault:"data/stardylog.db"`
	DatabaseURL string `env:"DATABASE_URL"`

	// Authentication. FIREBASE_PROJECT_ID selects the Firebase verifier;
	// without it, tokens are checked against JWT_SECRET (local development).
	FirebaseProjectID string        `env:"FIREBASE_PROJECT_ID"`
	JWTSecret         string        `env:"JWT_SECRET"`
	AuthVerifyTimeout time.Duration `env:"AUTH_VERIFY_TIMEOUT" envDefault:"5s"`

	RateLimitPerMinute int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	RateLimitBurst     int `env:"RATE_LIMIT_BURST" envDefault:"120"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// Load reads the optional .env files (default ".env") and then parses the
// environment into a Config.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: loading %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("config: parsing environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects malformed settings. Whether a verifier can be built from
// FIREBASE_PROJECT_ID / JWT_SECRET is left to the serve command, so migrate
// and healthcheck run without auth settings.
func (c *Config) Validate() error {
	switch {
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: PORT %d out of range", c.Port)
	case c.AuthVerifyTimeout <= 0:
		return errors.New("config: AUTH_VERIFY_TIMEOUT must be positive")
	case c.RateLimitPerMinute <= 0 || c.RateLimitBurst <= 0:
		return errors.New("config: RATE_LIMIT_PER_MINUTE and RATE_LIMIT_BURST must be positive")
	}
	if _, err := c.level(); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("config: LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// UsesPostgres reports whether DATABASE_URL selects the Postgres store.
func (c *Config) UsesPostgres() bool {
	return c.DatabaseURL != ""
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
// An unparseable level falls back to info; Load has already rejected it.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func (c *Config) level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: invalid LOG_LEVEL %q", c.LogLevel)
	}
	return l, nil
}
