// Package config loads the server's runtime configuration from flags,
// environment (ROSTERSYNC_*) and an optional config file via viper.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/mcoot/rostersync/internal/factory"
	redisstorage "github.com/mcoot/rostersync/internal/storage/redis"
	sqlstorage "github.com/mcoot/rostersync/internal/storage/sql"
)

const (
	envPrefix              = "ROSTERSYNC"
	defaultHTTPAddress     = ":8080"
	defaultLogLevel        = "info"
	defaultStorageType     = factory.StorageTypeMemory
	defaultBroadcastType   = factory.BroadcastTypeLocal
	defaultDatabaseDriver  = sqlstorage.DriverSQLite
	defaultDatabaseDSN     = "rostersync.db"
	defaultJanitorInterval = time.Minute
)

// AppConfig captures runtime configuration for the server
type AppConfig struct {
	HTTPAddress     string
	LogLevel        string
	StorageType     string
	BroadcastType   string
	RedisURL        string
	DatabaseDriver  string
	DatabaseDSN     string
	JanitorInterval time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured
func NewViper() *viper.Viper {
	v := viper.New()
	ApplyDefaults(v)
	return v
}

// ApplyDefaults configures defaults and env bindings on v
func ApplyDefaults(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("http.address", defaultHTTPAddress)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("storage.type", defaultStorageType)
	v.SetDefault("broadcast.type", defaultBroadcastType)
	v.SetDefault("redis.url", "")
	v.SetDefault("database.driver", defaultDatabaseDriver)
	v.SetDefault("database.dsn", defaultDatabaseDSN)
	v.SetDefault("broadcast.janitor_interval", defaultJanitorInterval)
}

// Load parses runtime configuration from v
func Load(v *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:     v.GetString("http.address"),
		LogLevel:        v.GetString("log.level"),
		StorageType:     strings.ToLower(v.GetString("storage.type")),
		BroadcastType:   strings.ToLower(v.GetString("broadcast.type")),
		RedisURL:        v.GetString("redis.url"),
		DatabaseDriver:  strings.ToLower(v.GetString("database.driver")),
		DatabaseDSN:     v.GetString("database.dsn"),
		JanitorInterval: v.GetDuration("broadcast.janitor_interval"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.HTTPAddress) == "" {
		return fmt.Errorf("http.address is required")
	}
	switch c.StorageType {
	case factory.StorageTypeMemory, factory.StorageTypeRedis, factory.StorageTypeSQL:
	default:
		return fmt.Errorf("storage.type must be memory, redis or sql, got %q", c.StorageType)
	}
	switch c.BroadcastType {
	case factory.BroadcastTypeLocal, factory.BroadcastTypeRedis:
	default:
		return fmt.Errorf("broadcast.type must be local or redis, got %q", c.BroadcastType)
	}
	if c.needsRedis() && strings.TrimSpace(c.RedisURL) == "" {
		return fmt.Errorf("redis.url is required when storage.type or broadcast.type is redis")
	}
	if c.StorageType == factory.StorageTypeSQL && strings.TrimSpace(c.DatabaseDSN) == "" {
		return fmt.Errorf("database.dsn is required when storage.type is sql")
	}
	if c.JanitorInterval <= 0 {
		return fmt.Errorf("broadcast.janitor_interval must be positive")
	}
	return nil
}

func (c AppConfig) needsRedis() bool {
	return c.StorageType == factory.StorageTypeRedis || c.BroadcastType == factory.BroadcastTypeRedis
}

// FactoryConfig converts the loaded settings into the application factory's config
func (c AppConfig) FactoryConfig(logger *slog.Logger) factory.Config {
	cfg := factory.Config{
		Logger:        logger,
		StorageType:   c.StorageType,
		BroadcastType: c.BroadcastType,
	}
	if c.needsRedis() {
		redisCfg := redisstorage.DefaultConfig()
		redisCfg.URL = c.RedisURL
		cfg.RedisConfig = &redisCfg
	}
	if c.StorageType == factory.StorageTypeSQL {
		cfg.SQLConfig = &sqlstorage.Config{Driver: c.DatabaseDriver, DSN: c.DatabaseDSN}
	}
	return cfg
}
