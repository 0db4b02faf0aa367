package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vendorctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("VENDOR_DATABASE_URL", "")
	os.Unsetenv("VENDOR_DATABASE_URL")
	t.Setenv("DATABASE_URL", "")
	os.Unsetenv("DATABASE_URL")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "inventory.db", cfg.DatabaseURL)
	assert.Equal(t, "data", cfg.InputDir)
	assert.Equal(t, "logs", cfg.LogDir)
	assert.Equal(t, 1, cfg.LoadWorkers)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, []string{"http://localhost:5173", "http://localhost:8080"}, cfg.Server.AllowedOrigins)
}

func TestLoad_PrefixedEnvWins(t *testing.T) {
	// GIVEN: Both the prefixed and the plain variable
	t.Setenv("VENDOR_DATABASE_URL", "postgres://u:p@db/inventory")
	t.Setenv("DATABASE_URL", "plain.db")
	t.Setenv("VENDOR_LOAD_WORKERS", "4")

	// WHEN: Loading
	cfg, err := Load("")

	// THEN: The prefixed one is used
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@db/inventory", cfg.DatabaseURL)
	assert.Equal(t, 4, cfg.LoadWorkers)
}

func TestLoad_PlainEnvFallback(t *testing.T) {
	t.Setenv("VENDOR_INPUT_DIR", "")
	os.Unsetenv("VENDOR_INPUT_DIR")
	t.Setenv("INPUT_DIR", "/srv/inventory")

	cfg, err := Load("")

	require.NoError(t, err)
	assert.Equal(t, "/srv/inventory", cfg.InputDir)
}

func TestLoad_FileOverridesEnv(t *testing.T) {
	// GIVEN: Env and a YAML file that disagree
	t.Setenv("VENDOR_LOG_LEVEL", "warn")
	t.Setenv("VENDOR_INPUT_DIR", "from-env")
	path := writeYAML(t, `
log_level: debug
run_timeout: 90s
server:
  addr: ":9090"
  allowed_origins: ["https://reports.example.com"]
`)

	// WHEN: Loading with the file
	cfg, err := Load(path)

	// THEN: File values win, untouched fields keep env values
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.RunTimeout)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, []string{"https://reports.example.com"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "from-env", cfg.InputDir)
	assert.Equal(t, 30*time.Second, cfg.Server.WriteTimeout)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Setenv("VENDOR_LOG_LEVEL", "verbose")

	_, err := Load("")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "LogLevel")
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			DatabaseURL: "inventory.db",
			InputDir:    "data",
			LogDir:      "logs",
			LogLevel:    "info",
			LoadWorkers: 1,
			Server: ServerConfig{
				Addr:            ":8080",
				ReadTimeout:     time.Second,
				WriteTimeout:    time.Second,
				ShutdownTimeout: time.Second,
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		cfg := base()
		assert.NoError(t, cfg.Validate())
	})
	t.Run("zero workers", func(t *testing.T) {
		cfg := base()
		cfg.LoadWorkers = 0
		assert.Error(t, cfg.Validate())
	})
	t.Run("negative timeout", func(t *testing.T) {
		cfg := base()
		cfg.RunTimeout = -time.Second
		assert.Error(t, cfg.Validate())
	})
	t.Run("bad database scheme", func(t *testing.T) {
		cfg := base()
		cfg.DatabaseURL = "mysql://db/inventory"
		assert.Error(t, cfg.Validate())
	})
}

func TestParseDatabaseURL(t *testing.T) {
	tests := []struct {
		url     string
		driver  string
		dsn     string
		wantErr bool
	}{
		{"inventory.db", DriverSQLite, "inventory.db", false},
		{":memory:", DriverSQLite, ":memory:", false},
		{"sqlite:///var/lib/inventory.db", DriverSQLite, "/var/lib/inventory.db", false},
		{"postgres://u:p@localhost:5432/inv", DriverPostgres, "postgres://u:p@localhost:5432/inv", false},
		{"postgresql://localhost/inv", DriverPostgres, "postgresql://localhost/inv", false},
		{"sqlite://", "", "", true},
		{"mysql://localhost/inv", "", "", true},
		{"  ", "", "", true},
	}
	for _, tt := range tests {
		driver, dsn, err := ParseDatabaseURL(tt.url)
		if tt.wantErr {
			assert.Error(t, err, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		assert.Equal(t, tt.driver, driver, tt.url)
		assert.Equal(t, tt.dsn, dsn, tt.url)
	}
}
