package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/storage"
)

// maxTxAttempts bounds optimistic retries of a WATCH transaction. Each
// failed attempt means another writer committed to the same record.
const maxTxAttempts = 50

// Storage is a Redis-backed implementation of the storage interface
type Storage struct {
	client *redis.Client
	cfg    Config
}

// New creates a new Redis storage instance
func New(cfg Config) (*Storage, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, err
	}
	return NewWithClient(client, cfg), nil
}

// NewClient opens and pings a Redis client for cfg
func NewClient(cfg Config) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, err
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns

	client := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// NewWithClient creates a Redis storage with an existing client
func NewWithClient(client *redis.Client, cfg Config) *Storage {
	return &Storage{
		client: client,
		cfg:    cfg,
	}
}

// Close closes the Redis connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Roster operations

func (s *Storage) SaveRoster(ctx context.Context, roster *model.Roster) error {
	data, err := json.Marshal(roster)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, rosterKey(roster.Slug), data, 0).Err()
}

func (s *Storage) GetRoster(ctx context.Context, slug model.RosterSlug) (*model.Roster, error) {
	var roster model.Roster
	if err := s.getJSON(ctx, rosterKey(slug), &roster, model.ErrRosterNotFound); err != nil {
		return nil, err
	}
	return &roster, nil
}

func (s *Storage) RosterExists(ctx context.Context, slug model.RosterSlug) (bool, error) {
	n, err := s.client.Exists(ctx, rosterKey(slug)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Player operations

func (s *Storage) SavePlayer(ctx context.Context, player *model.Player) error {
	data, err := json.Marshal(player)
	if err != nil {
		return err
	}

	// Pipeline keeps the record and the roster index in step
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, playerKey(player.ID), data, 0)
	pipe.SAdd(ctx, rosterPlayersIndexKey(player.RosterSlug), string(player.ID))
	_, err = pipe.Exec(ctx)
	return err
}

func (s *Storage) UpdatePlayer(ctx context.Context, id model.PlayerID, patch storage.PlayerPatch) (*model.Player, error) {
	key := playerKey(id)
	var result model.Player
	err := s.update(ctx, key, func(tx *redis.Tx) (any, error) {
		var player model.Player
		if err := getJSON(ctx, tx, key, &player, model.ErrPlayerNotFound); err != nil {
			return nil, err
		}
		patch.Apply(&player)
		result = player
		return player, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *Storage) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var player model.Player
	if err := s.getJSON(ctx, playerKey(id), &player, model.ErrPlayerNotFound); err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *Storage) ListPlayers(ctx context.Context, slug model.RosterSlug, active bool) ([]model.Player, error) {
	ids, err := s.client.SMembers(ctx, rosterPlayersIndexKey(slug)).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Player{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = playerKey(model.PlayerID(id))
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	players := make([]model.Player, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			continue // index entry whose record has gone
		}
		var p model.Player
		if err := json.Unmarshal([]byte(str), &p); err != nil {
			return nil, err
		}
		if p.IsActive() == active {
			players = append(players, p)
		}
	}
	storage.SortPlayers(players)
	return players, nil
}

// Gear choice operations

func (s *Storage) GetGearChoice(ctx context.Context, playerID model.PlayerID) (*model.GearChoice, error) {
	var gear model.GearChoice
	if err := s.getJSON(ctx, gearKey(playerID), &gear, model.ErrGearChoiceNotFound); err != nil {
		return nil, err
	}
	return &gear, nil
}

func (s *Storage) CreateGearChoiceIfAbsent(ctx context.Context, gear *model.GearChoice) (*model.GearChoice, error) {
	data, err := json.Marshal(gear)
	if err != nil {
		return nil, err
	}
	created, err := s.client.SetNX(ctx, gearKey(gear.PlayerID), data, 0).Result()
	if err != nil {
		return nil, err
	}
	if created {
		result := *gear
		return &result, nil
	}
	return s.GetGearChoice(ctx, gear.PlayerID)
}

func (s *Storage) UpdateGearChoice(ctx context.Context, initial *model.GearChoice, update model.GearChoiceUpdate) (*model.GearChoice, error) {
	key := gearKey(initial.PlayerID)
	var result model.GearChoice
	err := s.update(ctx, key, func(tx *redis.Tx) (any, error) {
		current := *initial
		err := getJSON(ctx, tx, key, &current, model.ErrGearChoiceNotFound)
		if err != nil && !errors.Is(err, model.ErrGearChoiceNotFound) {
			return nil, err
		}
		result = current.Merge(update)
		result.UpdatedAt = initial.UpdatedAt
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// update runs a read-modify-write of one JSON record under WATCH. apply
// reads through tx and returns the record to store; the write commits only
// if nobody else wrote key in between, otherwise the whole step is retried.
func (s *Storage) update(ctx context.Context, key string, apply func(tx *redis.Tx) (any, error)) error {
	txf := func(tx *redis.Tx) error {
		record, err := apply(tx)
		if err != nil {
			return err
		}
		data, err := json.Marshal(record)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("update %s: %w", key, redis.TxFailedErr)
}

func (s *Storage) getJSON(ctx context.Context, key string, into any, notFound error) error {
	return getJSON(ctx, s.client, key, into, notFound)
}

// getter is the read half shared by *redis.Client and *redis.Tx
type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func getJSON(ctx context.Context, g getter, key string, into any, notFound error) error {
	data, err := g.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return notFound
		}
		return err
	}
	return json.Unmarshal(data, into)
}
