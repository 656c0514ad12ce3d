package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rostersync/internal/factory"
	"github.com/mcoot/rostersync/internal/testutil"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddress)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, factory.StorageTypeMemory, cfg.StorageType)
	assert.Equal(t, factory.BroadcastTypeLocal, cfg.BroadcastType)
	assert.Equal(t, time.Minute, cfg.JanitorInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ROSTERSYNC_STORAGE_TYPE", "SQL")
	t.Setenv("ROSTERSYNC_DATABASE_DSN", "/tmp/roster.db")
	t.Setenv("ROSTERSYNC_HTTP_ADDRESS", "127.0.0.1:9000")

	cfg, err := Load(NewViper())
	require.NoError(t, err)

	assert.Equal(t, factory.StorageTypeSQL, cfg.StorageType)
	assert.Equal(t, "/tmp/roster.db", cfg.DatabaseDSN)
	assert.Equal(t, "127.0.0.1:9000", cfg.HTTPAddress)

	fc := cfg.FactoryConfig(testutil.NopLogger())
	require.NotNil(t, fc.SQLConfig)
	assert.Equal(t, "sqlite", fc.SQLConfig.Driver)
	assert.Nil(t, fc.RedisConfig)
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
	}{
		{"unknown storage", map[string]any{"storage.type": "postgres"}},
		{"unknown broadcast", map[string]any{"broadcast.type": "kafka"}},
		{"redis storage without url", map[string]any{"storage.type": "redis"}},
		{"redis broadcast without url", map[string]any{"broadcast.type": "redis"}},
		{"sql without dsn", map[string]any{"storage.type": "sql", "database.dsn": " "}},
		{"empty address", map[string]any{"http.address": ""}},
		{"zero janitor interval", map[string]any{"broadcast.janitor_interval": "0s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewViper()
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := Load(v)
			assert.Error(t, err)
		})
	}
}

func TestFactoryConfigRedis(t *testing.T) {
	v := NewViper()
	v.Set("storage.type", "redis")
	v.Set("broadcast.type", "redis")
	v.Set("redis.url", "redis://localhost:6379/0")

	cfg, err := Load(v)
	require.NoError(t, err)

	fc := cfg.FactoryConfig(testutil.NopLogger())
	require.NotNil(t, fc.RedisConfig)
	assert.Equal(t, "redis://localhost:6379/0", fc.RedisConfig.URL)
	assert.Equal(t, factory.BroadcastTypeRedis, fc.BroadcastType)
}
