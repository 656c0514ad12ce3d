package broadcast

import (
	"log/slog"
	"sync"
	"time"

	"github.com/mcoot/rostersync/internal/model"
)

const (
	// Buffer size for each subscriber's outgoing events
	subscriberBufferSize = 64

	// Buffer size for events waiting to be fanned out
	hubBufferSize = 256
)

// subscriber is one registered listener on a hub
type subscriber struct {
	send        chan model.Event
	connectedAt time.Time
}

func newSubscriber() *subscriber {
	return &subscriber{
		send:        make(chan model.Event, subscriberBufferSize),
		connectedAt: time.Now(),
	}
}

// Hub fans events out to the subscribers of a single topic
type Hub struct {
	topic       model.RosterSlug
	subscribers map[*subscriber]bool
	mu          sync.RWMutex
	logger      *slog.Logger

	// Channels for managing subscribers
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan model.Event
	done       chan struct{}
	closeOnce  sync.Once
}

// NewHub creates a new Hub for a topic
func NewHub(topic model.RosterSlug, logger *slog.Logger) *Hub {
	return &Hub{
		topic:       topic,
		subscribers: make(map[*subscriber]bool),
		logger:      logger.With(slog.String("roster", string(topic))),
		register:    make(chan *subscriber),
		unregister:  make(chan *subscriber),
		broadcast:   make(chan model.Event, hubBufferSize),
		done:        make(chan struct{}),
	}
}

// Run starts the hub's event loop
func (h *Hub) Run() {
	h.logger.Debug("hub started")
	for {
		select {
		case sub := <-h.register:
			h.mu.Lock()
			h.subscribers[sub] = true
			count := len(h.subscribers)
			h.mu.Unlock()
			h.logger.Debug("subscriber registered", slog.Int("total_subscribers", count))

		case sub := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.subscribers[sub]; ok {
				delete(h.subscribers, sub)
				close(sub.send)
				count := len(h.subscribers)
				h.mu.Unlock()
				h.logger.Debug("subscriber unregistered",
					slog.Duration("connection_duration", time.Since(sub.connectedAt)),
					slog.Int("total_subscribers", count))
			} else {
				h.mu.Unlock()
			}

		case event := <-h.broadcast:
			h.mu.RLock()
			sent, dropped := 0, 0
			for sub := range h.subscribers {
				select {
				case sub.send <- event:
					sent++
				default:
					dropped++
				}
			}
			h.mu.RUnlock()
			if dropped > 0 {
				h.logger.Warn("broadcast partial failure, subscriber buffers full",
					slog.String("event", string(event.Type())),
					slog.Int("sent", sent),
					slog.Int("dropped", dropped))
			}

		case <-h.done:
			h.mu.Lock()
			count := len(h.subscribers)
			for sub := range h.subscribers {
				close(sub.send)
				delete(h.subscribers, sub)
			}
			h.mu.Unlock()
			h.logger.Debug("hub stopped", slog.Int("disconnected_subscribers", count))
			return
		}
	}
}

// Register adds a subscriber. It reports false if the hub has already stopped.
func (h *Hub) Register(sub *subscriber) bool {
	select {
	case h.register <- sub:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a subscriber and closes its stream. Safe after Close.
func (h *Hub) Unregister(sub *subscriber) {
	select {
	case h.unregister <- sub:
	case <-h.done:
	}
}

// Publish queues an event for fan-out without blocking
func (h *Hub) Publish(event model.Event) {
	select {
	case h.broadcast <- event:
	case <-h.done:
	default:
		h.logger.Warn("broadcast dropped, hub buffer full", slog.String("event", string(event.Type())))
	}
}

// Close shuts down the hub and ends every subscriber's stream
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

// SubscriberCount returns the number of registered subscribers
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
