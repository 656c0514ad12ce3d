package transport

import (
	"context"

	"github.com/mcoot/rostersync/internal/broadcast"
	"github.com/mcoot/rostersync/internal/model"
)

// Feed is an open stream of a roster's events
type Feed interface {
	// Events is closed when the stream ends, for any reason
	Events() <-chan model.Event
	// Close stops the stream. Calling it more than once is a no-op.
	Close()
}

// Source opens event feeds for rosters
type Source interface {
	Open(ctx context.Context, slug model.RosterSlug) (Feed, error)
}

// LocalSource reads events straight from an in-process broadcast channel
type LocalSource struct {
	Channel broadcast.Channel
}

// Open subscribes to slug's topic
func (s LocalSource) Open(ctx context.Context, slug model.RosterSlug) (Feed, error) {
	return s.Channel.Subscribe(context.WithoutCancel(ctx), slug), nil
}

var _ Feed = (*broadcast.Subscription)(nil)
