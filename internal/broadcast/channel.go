// Package broadcast fans roster events out to every subscriber of a topic.
// Topics are roster slugs. Delivery is best effort: there is no replay and a
// subscriber that falls behind loses events.
package broadcast

import (
	"context"

	"github.com/mcoot/rostersync/internal/model"
)

// Channel is a per-topic publish/subscribe bus
type Channel interface {
	// Publish sends event to every current subscriber of event.Topic().
	// It never blocks on slow subscribers and never fails the caller.
	Publish(ctx context.Context, event model.Event)

	// Subscribe starts a stream of events for topic. The stream ends when
	// ctx is cancelled or the subscription is closed.
	Subscribe(ctx context.Context, topic model.RosterSlug) *Subscription
}

// Publisher is the publish half of a Channel
type Publisher interface {
	Publish(ctx context.Context, event model.Event)
}
