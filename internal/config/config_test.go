package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "0.0.0.0", cfg.ServerHost)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 64*1024, cfg.CryptoChunkSize)
	assert.Equal(t, 4096, cfg.RSAKeySize)
	assert.Equal(t, "X-Auth-User", cfg.AuthUserHeader)
	assert.Equal(t, "transcribe", cfg.MetricsNamespace)
	assert.Equal(t, time.Hour, cfg.StaleJobMaxAge)
	assert.Equal(t, 30*time.Second, cfg.NotificationPollInterval)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DB_DRIVER", "mysql")
	t.Setenv("CRYPTO_CHUNK_SIZE", "4096")
	t.Setenv("RSA_KEY_SIZE", "2048")
	t.Setenv("STORAGE_BUCKET_URL", "mem://")

	cfg := Load()

	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, "mysql", cfg.DBDriver)
	assert.Equal(t, 4096, cfg.CryptoChunkSize)
	assert.Equal(t, 2048, cfg.RSAKeySize)
	assert.Equal(t, "mem://", cfg.StorageBucketURL)
}

func TestGetGinMode(t *testing.T) {
	tests := []struct {
		logLevel string
		expected string
	}{
		{"debug", "debug"},
		{"info", "release"},
		{"warn", "release"},
		{"error", "release"},
		{"unknown", "release"},
	}

	for _, tt := range tests {
		t.Run(tt.logLevel, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.logLevel}
			assert.Equal(t, tt.expected, cfg.GetGinMode())
		})
	}
}
