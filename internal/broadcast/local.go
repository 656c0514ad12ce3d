package broadcast

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/rostersync/internal/model"
)

// Local is an in-process Channel with one hub per topic
type Local struct {
	hubs   map[model.RosterSlug]*managedHub
	mu     sync.Mutex
	logger *slog.Logger
}

// managedHub tracks live subscriptions so the janitor never reaps a hub
// that a subscriber is in the middle of joining
type managedHub struct {
	hub  *Hub
	refs int
}

var _ Channel = (*Local)(nil)

// NewLocal creates an empty Local channel
func NewLocal(logger *slog.Logger) *Local {
	return &Local{
		hubs:   make(map[model.RosterSlug]*managedHub),
		logger: logger.With(slog.String("component", "broadcast")),
	}
}

// Publish delivers event to the subscribers of its topic, if any
func (l *Local) Publish(ctx context.Context, event model.Event) {
	hub := l.GetHub(event.Topic())
	if hub == nil {
		return
	}
	hub.Publish(event)
}

// Subscribe registers a new subscription on topic
func (l *Local) Subscribe(ctx context.Context, topic model.RosterSlug) *Subscription {
	hub := l.acquire(topic)
	sub := newSubscriber()
	if !hub.Register(sub) {
		// hub was shut down underneath us
		close(sub.send)
	}

	s := newSubscription(sub.send, func() {
		hub.Unregister(sub)
		l.release(topic, hub)
	})
	s.watch(ctx)
	return s
}

// acquire returns the hub for topic, creating one if needed, and counts a reference
func (l *Local) acquire(topic model.RosterSlug) *Hub {
	l.mu.Lock()
	defer l.mu.Unlock()

	if mh, ok := l.hubs[topic]; ok {
		mh.refs++
		return mh.hub
	}

	hub := NewHub(topic, l.logger)
	l.hubs[topic] = &managedHub{hub: hub, refs: 1}
	go hub.Run()
	return hub
}

func (l *Local) release(topic model.RosterSlug, hub *Hub) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if mh, ok := l.hubs[topic]; ok && mh.hub == hub && mh.refs > 0 {
		mh.refs--
	}
}

// GetHub returns the hub for a topic, or nil if it doesn't exist
func (l *Local) GetHub(topic model.RosterSlug) *Hub {
	l.mu.Lock()
	defer l.mu.Unlock()
	if mh, ok := l.hubs[topic]; ok {
		return mh.hub
	}
	return nil
}

// HubCount returns the number of live hubs
func (l *Local) HubCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hubs)
}

// RemoveHub closes a hub, ending all of its subscriptions
func (l *Local) RemoveHub(topic model.RosterSlug) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if mh, ok := l.hubs[topic]; ok {
		mh.hub.Close()
		delete(l.hubs, topic)
		l.logger.Info("hub removed", slog.String("roster", string(topic)))
	}
}

// CleanupEmptyHubs removes hubs with no subscriptions
func (l *Local) CleanupEmptyHubs() {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for topic, mh := range l.hubs {
		if mh.refs == 0 {
			mh.hub.Close()
			delete(l.hubs, topic)
			removed++
		}
	}
	if removed > 0 {
		l.logger.Info("empty hubs cleaned up", slog.Int("removed", removed))
	}
}

// RunJanitor calls CleanupEmptyHubs every interval until ctx is done
func (l *Local) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.CleanupEmptyHubs()
		}
	}
}

// Close shuts down every hub
func (l *Local) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for topic, mh := range l.hubs {
		mh.hub.Close()
		delete(l.hubs, topic)
	}
}
