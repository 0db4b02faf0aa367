/*
config.go - Runtime configuration

PURPOSE:
  One Config value drives every vendorctl command: where the input files
  are, which database to use, where logs and metrics go and how the report
  server listens.

SOURCES (later wins):
  1. Defaults from the `default` struct tags
  2. A .env file in the working directory, never overriding variables
     already set in the process environment
  3. Environment, read through envconfig. Each variable is looked up as
     VENDOR_<NAME> first and then as plain <NAME> (DATABASE_URL, INPUT_DIR)
  4. The YAML file passed with --config, if any
  5. Command-line flags (applied by the cli package)

DATABASE URL:
  postgres://... or postgresql://...  PostgreSQL through pgx
  sqlite://<path> or a plain path     SQLite file (":memory:" allowed)

SEE ALSO:
  - cli/root.go: flag overrides
  - logging/logging.go: LogDir and LogLevel
*/
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable.
const EnvPrefix = "VENDOR"

// Config holds all settings.
type Config struct {
	DatabaseURL string        `yaml:"database_url" envconfig:"DATABASE_URL" default:"inventory.db" validate:"required"`
	InputDir    string        `yaml:"input_dir" envconfig:"INPUT_DIR" default:"data" validate:"required"`
	LogDir      string        `yaml:"log_dir" envconfig:"LOG_DIR" default:"logs" validate:"required"`
	LogLevel    string        `yaml:"log_level" envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LoadWorkers int           `yaml:"load_workers" envconfig:"LOAD_WORKERS" default:"1" validate:"min=1,max=64"`
	RunTimeout  time.Duration `yaml:"run_timeout" envconfig:"RUN_TIMEOUT" default:"0s" validate:"gte=0s"`
	MetricsFile string        `yaml:"metrics_file" envconfig:"METRICS_FILE"`
	Server      ServerConfig  `yaml:"server" envconfig:"SERVER"`
}

// ServerConfig configures `vendorctl serve`.
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" default:":8080" validate:"required"`
	AllowedOrigins  []string      `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s" validate:"gt=0s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s" validate:"gt=0s"`
}

// Load builds the configuration. path names an optional YAML file; an
// empty path skips the file step, a missing named file is an error.
func Load(path string) (*Config, error) {
	// A missing .env is the normal case.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path != "" {
		fileCfg, err := loadFromFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
		cfg = mergeConfigs(cfg, *fileCfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadFromFile reads a YAML config file.
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeConfigs overlays every non-zero field of file onto base.
func mergeConfigs(base, file Config) Config {
	setString(&base.DatabaseURL, file.DatabaseURL)
	setString(&base.InputDir, file.InputDir)
	setString(&base.LogDir, file.LogDir)
	setString(&base.LogLevel, file.LogLevel)
	setString(&base.MetricsFile, file.MetricsFile)
	if file.LoadWorkers != 0 {
		base.LoadWorkers = file.LoadWorkers
	}
	if file.RunTimeout != 0 {
		base.RunTimeout = file.RunTimeout
	}

	setString(&base.Server.Addr, file.Server.Addr)
	if len(file.Server.AllowedOrigins) > 0 {
		base.Server.AllowedOrigins = file.Server.AllowedOrigins
	}
	if file.Server.ReadTimeout != 0 {
		base.Server.ReadTimeout = file.Server.ReadTimeout
	}
	if file.Server.WriteTimeout != 0 {
		base.Server.WriteTimeout = file.Server.WriteTimeout
	}
	if file.Server.ShutdownTimeout != 0 {
		base.Server.ShutdownTimeout = file.Server.ShutdownTimeout
	}
	return base
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// Validate checks field constraints and the database URL.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s fails %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}
	if _, _, err := ParseDatabaseURL(c.DatabaseURL); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// =============================================================================
// DATABASE URL
// =============================================================================

// Database drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ParseDatabaseURL splits a database URL into a driver and the string that
// driver opens: a file path for SQLite, the URL itself for PostgreSQL.
func ParseDatabaseURL(url string) (driver, dsn string, err error) {
	url = strings.TrimSpace(url)
	switch {
	case url == "":
		return "", "", errors.New("empty database url")
	case strings.HasPrefix(url, "postgres://"), strings.HasPrefix(url, "postgresql://"):
		return DriverPostgres, url, nil
	case strings.HasPrefix(url, "sqlite://"):
		path := strings.TrimPrefix(url, "sqlite://")
		if path == "" {
			return "", "", fmt.Errorf("database url %q has no path", url)
		}
		return DriverSQLite, path, nil
	case strings.Contains(url, "://"):
		return "", "", fmt.Errorf("unsupported database url scheme in %q", url)
	}
	return DriverSQLite, url, nil
}
