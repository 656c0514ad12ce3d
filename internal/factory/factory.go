package factory

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/mcoot/rostersync/internal/broadcast"
	"github.com/mcoot/rostersync/internal/dependencies/clock"
	"github.com/mcoot/rostersync/internal/dependencies/ids"
	"github.com/mcoot/rostersync/internal/dependencies/random"
	"github.com/mcoot/rostersync/internal/services/roster"
	"github.com/mcoot/rostersync/internal/storage"
	"github.com/mcoot/rostersync/internal/storage/memory"
	redisstorage "github.com/mcoot/rostersync/internal/storage/redis"
	sqlstorage "github.com/mcoot/rostersync/internal/storage/sql"
)

// Storage type constants
const (
	StorageTypeMemory = "memory"
	StorageTypeRedis  = "redis"
	StorageTypeSQL    = "sql"
)

// Broadcast type constants
const (
	BroadcastTypeLocal = "local"
	BroadcastTypeRedis = "redis"
)

// App contains all wired application components
type App struct {
	// Storage
	Storage storage.Storage

	// External dependencies
	Clock  clock.Clock
	Random random.Random
	IDs    ids.Provider

	// Broadcast
	Broadcast broadcast.Channel
	Hubs      *broadcast.Local

	// Services
	RosterController *roster.Controller

	closers []io.Closer
}

// Config holds configuration for the application factory
type Config struct {
	// Logger is the application logger (optional)
	// If nil, a no-op logger is used
	Logger *slog.Logger
	// StorageType selects the storage backend ("memory", "redis" or "sql")
	// If empty, defaults to "memory"
	StorageType string
	// RedisConfig holds Redis connection settings (required if StorageType
	// or BroadcastType is "redis")
	RedisConfig *redisstorage.Config
	// SQLConfig holds database settings (required if StorageType is "sql")
	SQLConfig *sqlstorage.Config
	// BroadcastType selects "local" (single instance) or "redis" fan-out
	// If empty, defaults to "local"
	BroadcastType string
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// New creates a new application with all dependencies wired
func New(ctx context.Context, cfg Config) (*App, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}

	var closers []io.Closer
	fail := func(err error) (*App, error) {
		closeAll(closers, logger)
		return nil, err
	}

	// Create storage based on type
	var store storage.Storage
	switch cfg.StorageType {
	case StorageTypeMemory, "":
		store = memory.New()
	case StorageTypeRedis:
		if cfg.RedisConfig == nil {
			return nil, errors.New("RedisConfig required when StorageType is redis")
		}
		redisStore, err := redisstorage.New(*cfg.RedisConfig)
		if err != nil {
			return nil, err
		}
		closers = append(closers, redisStore)
		store = redisStore
	case StorageTypeSQL:
		if cfg.SQLConfig == nil {
			return nil, errors.New("SQLConfig required when StorageType is sql")
		}
		sqlStore, err := sqlstorage.Open(*cfg.SQLConfig, logger)
		if err != nil {
			return nil, err
		}
		closers = append(closers, sqlStore)
		store = sqlStore
	default:
		return nil, fmt.Errorf("invalid StorageType %q: must be memory, redis or sql", cfg.StorageType)
	}

	// Create broadcast channel based on type
	hubs := broadcast.NewLocal(logger)
	closers = append(closers, closerFunc(func() error { hubs.Close(); return nil }))

	var channel broadcast.Channel = hubs
	switch cfg.BroadcastType {
	case BroadcastTypeLocal, "":
	case BroadcastTypeRedis:
		if cfg.RedisConfig == nil {
			return fail(errors.New("RedisConfig required when BroadcastType is redis"))
		}
		client, err := redisstorage.NewClient(*cfg.RedisConfig)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, client)
		bridge, err := startRedisBroadcast(ctx, client, hubs, logger)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, bridge)
		channel = bridge
	default:
		return fail(fmt.Errorf("invalid BroadcastType %q: must be local or redis", cfg.BroadcastType))
	}

	app := newWithDependencies(store, channel, hubs, clock.New(), random.New(), ids.New(), logger)
	app.closers = closers
	return app, nil
}

func startRedisBroadcast(ctx context.Context, client *goredis.Client, hubs *broadcast.Local, logger *slog.Logger) (*broadcast.Redis, error) {
	bridge := broadcast.NewRedis(client, hubs, logger)
	if err := bridge.Start(ctx); err != nil {
		return nil, err
	}
	return bridge, nil
}

// newWithDependencies creates an App with the given dependencies (useful for testing)
func newWithDependencies(
	store storage.Storage,
	channel broadcast.Channel,
	hubs *broadcast.Local,
	clk clock.Clock,
	rnd random.Random,
	idp ids.Provider,
	logger *slog.Logger,
) *App {
	return &App{
		Storage:          store,
		Clock:            clk,
		Random:           rnd,
		IDs:              idp,
		Broadcast:        channel,
		Hubs:             hubs,
		RosterController: roster.NewController(store, channel, clk, rnd, idp, logger),
	}
}

// Close releases every resource opened by New, most recent first
func (a *App) Close(logger *slog.Logger) {
	closeAll(a.closers, logger)
	a.closers = nil
}

func closeAll(closers []io.Closer, logger *slog.Logger) {
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].Close(); err != nil {
			logger.Warn("failed to close resource", slog.Any("error", err))
		}
	}
}
