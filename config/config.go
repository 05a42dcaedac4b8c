// Package config loads process configuration from the environment. An
// optional .env file in the working directory is read first.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Database drivers accepted by DATABASE_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMemory   = "memory"
)

var ErrInvalid = errors.New("invalid configuration")

// Server configures cmd/server.
type Server struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	DatabaseDriver  string        `env:"DATABASE_DRIVER" envDefault:"sqlite"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	SQLitePath      string        `env:"SQLITE_PATH" envDefault:"tufngate.db"`
	RedisAddr       string        `env:"REDIS_ADDR"`
	RedisPassword   string        `env:"REDIS_PASSWORD"`
	RedisDB         int           `env:"REDIS_DB" envDefault:"0"`
	GateConfig      string        `env:"GATE_CONFIG"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"json"`
	MaxBodyBytes    int64         `env:"MAX_BODY_BYTES" envDefault:"16384"`
	APIKeys         []string      `env:"API_KEYS" envSeparator:","`
	DownloadsURL    string        `env:"DOWNLOADS_URL"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Client configures the tufn CLI.
type Client struct {
	Endpoint   string `env:"TUFN_ENDPOINT" envDefault:"http://localhost:8080"`
	APIKey     string `env:"TUFN_API_KEY"`
	StateFile  string `env:"TUFN_STATE_FILE"`
	GateConfig string `env:"TUFN_GATE_CONFIG"`
	LogLevel   string `env:"TUFN_LOG_LEVEL" envDefault:"warn"`
}

// LoadServer reads .env (if present) and parses the server environment.
func LoadServer() (Server, error) {
	_ = godotenv.Load()
	return parseServer(env.Options{})
}

// ServerFromMap parses a server config from vars instead of the process
// environment.
func ServerFromMap(vars map[string]string) (Server, error) {
	return parseServer(env.Options{Environment: vars})
}

func parseServer(opts env.Options) (Server, error) {
	var cfg Server
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Server{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Server{}, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c Server) Validate() error {
	switch c.DatabaseDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("%w: DATABASE_URL is required for postgres", ErrInvalid)
		}
	case DriverSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("%w: SQLITE_PATH is required for sqlite", ErrInvalid)
		}
	case DriverMemory:
	default:
		return fmt.Errorf("%w: unknown DATABASE_DRIVER %q", ErrInvalid, c.DatabaseDriver)
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: MAX_BODY_BYTES must be positive", ErrInvalid)
	}
	return nil
}

// Addr is the listen address.
func (c Server) Addr() string { return ":" + c.Port }

// APIKeySet returns the configured keys as a set. Blank entries are ignored.
func (c Server) APIKeySet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.APIKeys))
	for _, k := range c.APIKeys {
		if k = strings.TrimSpace(k); k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

// LoadClient reads .env (if present) and parses the CLI environment.
func LoadClient() (Client, error) {
	_ = godotenv.Load()
	return parseClient(env.Options{})
}

// ClientFromMap parses a client config from vars.
func ClientFromMap(vars map[string]string) (Client, error) {
	return parseClient(env.Options{Environment: vars})
}

func parseClient(opts env.Options) (Client, error) {
	var cfg Client
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Client{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.StateFile == "" {
		cfg.StateFile = DefaultStateFile()
	}
	return cfg, nil
}

// DefaultStateFile is where the CLI keeps its local state when
// TUFN_STATE_FILE is unset.
func DefaultStateFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "tufn", "state.json")
}
