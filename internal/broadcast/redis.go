package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/mcoot/rostersync/internal/model"
)

// channelPrefix namespaces the Redis pub/sub channels, one per roster
const channelPrefix = "rostersync:events:"

func redisChannel(topic model.RosterSlug) string {
	return channelPrefix + string(topic)
}

// Redis shares topics between server instances. Publish goes to Redis;
// a pattern subscription relays every message into a Local channel that
// serves this instance's subscribers.
type Redis struct {
	client *redis.Client
	local  *Local
	logger *slog.Logger

	mu     sync.Mutex
	pubsub *redis.PubSub
	done   chan struct{}
}

var _ Channel = (*Redis)(nil)

// NewRedis creates a Redis-backed channel relaying into local
func NewRedis(client *redis.Client, local *Local, logger *slog.Logger) *Redis {
	return &Redis{
		client: client,
		local:  local,
		logger: logger.With(slog.String("component", "broadcast-redis")),
	}
}

// Start subscribes to every roster channel and begins relaying. It returns
// once the subscription is confirmed by the server.
func (r *Redis) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pubsub != nil {
		return fmt.Errorf("redis broadcast already started")
	}

	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return fmt.Errorf("psubscribe: %w", err)
	}

	r.pubsub = pubsub
	r.done = make(chan struct{})
	go r.relay(pubsub.Channel(), r.done)
	r.logger.Info("redis broadcast started", slog.String("pattern", channelPrefix+"*"))
	return nil
}

func (r *Redis) relay(messages <-chan *redis.Message, done chan struct{}) {
	defer close(done)
	for msg := range messages {
		topic := model.RosterSlug(strings.TrimPrefix(msg.Channel, channelPrefix))
		event, err := model.DecodeEvent([]byte(msg.Payload))
		if err != nil {
			r.logger.Warn("dropping undecodable event",
				slog.String("roster", string(topic)),
				slog.Any("error", err))
			continue
		}
		if event.Topic() != topic {
			r.logger.Warn("dropping event published on wrong channel",
				slog.String("channel", msg.Channel),
				slog.String("roster", string(event.Topic())))
			continue
		}
		r.local.Publish(context.Background(), event)
	}
}

// Publish sends event to every instance via Redis. Failures are logged.
func (r *Redis) Publish(ctx context.Context, event model.Event) {
	data, err := model.EncodeEvent(event)
	if err != nil {
		r.logger.Warn("failed to encode event", slog.String("event", string(event.Type())), slog.Any("error", err))
		return
	}
	if err := r.client.Publish(ctx, redisChannel(event.Topic()), data).Err(); err != nil {
		r.logger.Warn("failed to publish event",
			slog.String("event", string(event.Type())),
			slog.String("roster", string(event.Topic())),
			slog.Any("error", err))
	}
}

// Subscribe registers a subscription on this instance's local hub
func (r *Redis) Subscribe(ctx context.Context, topic model.RosterSlug) *Subscription {
	return r.local.Subscribe(ctx, topic)
}

// Close stops relaying and waits for the relay goroutine to exit
func (r *Redis) Close() error {
	r.mu.Lock()
	pubsub, done := r.pubsub, r.done
	r.pubsub = nil
	r.mu.Unlock()

	if pubsub == nil {
		return nil
	}
	err := pubsub.Close()
	<-done
	return err
}
