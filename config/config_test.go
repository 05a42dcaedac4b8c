package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerDefaults(t *testing.T) {
	cfg, err := ServerFromMap(map[string]string{})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, DriverSQLite, cfg.DatabaseDriver)
	assert.Equal(t, "tufngate.db", cfg.SQLitePath)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, int64(16384), cfg.MaxBodyBytes)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.APIKeySet())
}

func TestServerFromEnv(t *testing.T) {
	cfg, err := ServerFromMap(map[string]string{
		"PORT":            "9090",
		"DATABASE_DRIVER": "postgres",
		"DATABASE_URL":    "postgres://localhost/tufn",
		"REDIS_ADDR":      "localhost:6379",
		"REDIS_DB":        "2",
		"API_KEYS":        "anon, service ,",
		"LOG_FORMAT":      "console",
	})
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, DriverPostgres, cfg.DatabaseDriver)
	assert.Equal(t, 2, cfg.RedisDB)
	assert.Equal(t, map[string]struct{}{"anon": {}, "service": {}}, cfg.APIKeySet())
}

func TestServerValidate(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
	}{
		{"postgres without url", map[string]string{"DATABASE_DRIVER": "postgres"}},
		{"unknown driver", map[string]string{"DATABASE_DRIVER": "mysql"}},
		{"zero body limit", map[string]string{"MAX_BODY_BYTES": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ServerFromMap(tt.vars)
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestServerParseError(t *testing.T) {
	_, err := ServerFromMap(map[string]string{"REDIS_DB": "two"})
	assert.Error(t, err)
}

func TestClient(t *testing.T) {
	cfg, err := ClientFromMap(map[string]string{
		"TUFN_ENDPOINT":   "https://api.tufn.app",
		"TUFN_API_KEY":    "anon",
		"TUFN_STATE_FILE": "/tmp/tufn.json",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://api.tufn.app", cfg.Endpoint)
	assert.Equal(t, "anon", cfg.APIKey)
	assert.Equal(t, "/tmp/tufn.json", cfg.StateFile)
	assert.Equal(t, "warn", cfg.LogLevel)

	cfg, err = ClientFromMap(map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", cfg.Endpoint)
	assert.Equal(t, DefaultStateFile(), cfg.StateFile)
}
