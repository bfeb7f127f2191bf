// Package config reads choregate settings from CHOREGATE_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dukerupert/choregate/internal/database"
	"github.com/dukerupert/choregate/internal/logging"
)

const Prefix = "CHOREGATE_"

// Router modes.
const (
	RouterNone = "none"
	RouterSSH  = "ssh"
	RouterHTTP = "http"
)

type Config struct {
	Addr     string `env:"ADDR" envDefault:":8080"`
	Timezone string `env:"TIMEZONE" envDefault:"UTC"`

	DBDriver string `env:"DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"DB_DSN" envDefault:"choregate.db"`

	LogLevel      string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat     string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile       string `env:"LOG_FILE"`
	LogMaxSizeMB  int    `env:"LOG_MAX_SIZE_MB" envDefault:"10"`
	LogMaxBackups int    `env:"LOG_MAX_BACKUPS" envDefault:"3"`
	LogMaxAgeDays int    `env:"LOG_MAX_AGE_DAYS" envDefault:"28"`

	RouterMode        string        `env:"ROUTER_MODE" envDefault:"none"`
	RouterTimeout     time.Duration `env:"ROUTER_TIMEOUT" envDefault:"10s"`
	RouterSSHAddr     string        `env:"ROUTER_SSH_ADDR"`
	RouterSSHUser     string        `env:"ROUTER_SSH_USER" envDefault:"admin"`
	RouterSSHPassword string        `env:"ROUTER_SSH_PASSWORD"`
	RouterSSHKeyFile  string        `env:"ROUTER_SSH_KEY_FILE"`
	RouterSSHHostKey  string        `env:"ROUTER_SSH_HOST_KEY"`
	RouterURL         string        `env:"ROUTER_URL"`
	RouterUsername    string        `env:"ROUTER_USERNAME"`
	RouterPassword    string        `env:"ROUTER_PASSWORD"`

	PostmarkToken string        `env:"POSTMARK_TOKEN"`
	EmailFrom     string        `env:"EMAIL_FROM"`
	AppURL        string        `env:"APP_URL" envDefault:"http://localhost:8080"`
	EmailTimeout  time.Duration `env:"EMAIL_TIMEOUT" envDefault:"10s"`

	RecurrenceOncePerDay bool `env:"RECURRENCE_ONCE_PER_DAY" envDefault:"false"`

	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS" envDefault:"120"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Load reads envFile when it exists, then the environment. Variables already
// set in the environment win over the file.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}
	return Parse(env.Options{Prefix: Prefix})
}

// Parse reads the configuration with the given env options and validates it.
func Parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch database.Dialect(c.DBDriver) {
	case database.DialectSQLite, database.DialectPostgres:
	default:
		return fmt.Errorf("unknown DB_DRIVER %q", c.DBDriver)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.RouterMode {
	case RouterNone:
	case RouterSSH:
		if c.RouterSSHAddr == "" {
			return errors.New("ROUTER_SSH_ADDR is required for ssh router mode")
		}
	case RouterHTTP:
		if c.RouterURL == "" {
			return errors.New("ROUTER_URL is required for http router mode")
		}
	default:
		return fmt.Errorf("unknown ROUTER_MODE %q", c.RouterMode)
	}
	return nil
}

// Location resolves Timezone. Sweep cadences are evaluated in it.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) Logging() logging.Config {
	return logging.Config{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		File:       c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxBackups: c.LogMaxBackups,
		MaxAgeDays: c.LogMaxAgeDays,
	}
}
