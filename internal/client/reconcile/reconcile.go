// Package reconcile turns broadcast events into cache writes.
// The rules look only at the event, never at who caused it, so applying an
// event a client already settled locally is harmless.
package reconcile

import (
	"context"
	"log/slog"

	"github.com/mcoot/rostersync/internal/client/cache"
	"github.com/mcoot/rostersync/internal/model"
)

// OpKind is the kind of cache operation
type OpKind int

const (
	OpSet OpKind = iota
	OpInvalidate
)

// Op is one cache operation derived from an event
type Op struct {
	Kind     OpKind
	Key      cache.QueryKey // for OpSet
	Value    any            // for OpSet
	Selector cache.Selector // for OpInvalidate
}

func set(key cache.QueryKey, value any) Op {
	return Op{Kind: OpSet, Key: key, Value: value}
}

func invalidate(sel cache.Selector) Op {
	return Op{Kind: OpInvalidate, Selector: sel}
}

// Plan returns the cache operations for event, in the order they apply
func Plan(event model.Event) []Op {
	switch e := event.(type) {
	case model.PlayerUpdated:
		return []Op{
			set(cache.PlayerKey(e.Player.RosterSlug, e.Player.ID), e.Player),
		}
	case model.PlayerDeleted:
		return []Op{
			invalidate(cache.PlayerListKey(e.RosterSlug, true)),
			invalidate(cache.PlayerListKey(e.RosterSlug, false)),
			set(cache.PlayerKey(e.RosterSlug, e.Player.ID), e.Player),
		}
	case model.PlayerActivated:
		return []Op{
			invalidate(cache.PlayerLists(e.RosterSlug)),
			set(cache.PlayerKey(e.RosterSlug, e.Player.ID), e.Player),
		}
	case model.PlayerGearChoiceUpdated:
		return []Op{
			set(cache.GearChoiceKey(e.GearChoice.RosterSlug, e.GearChoice.PlayerID), e.GearChoice),
		}
	case model.RosterUpdated:
		return []Op{
			invalidate(cache.PlayerListKey(e.Roster.Slug, true)),
			set(cache.RosterKey(e.Roster.Slug), e.Roster),
		}
	default:
		return nil
	}
}

// Apply executes the plan for event against c
func Apply(c *cache.Cache, event model.Event) {
	for _, op := range Plan(event) {
		switch op.Kind {
		case OpSet:
			c.Set(op.Key, op.Value)
		case OpInvalidate:
			c.Invalidate(op.Selector)
		}
	}
}

// Reconciler feeds a stream of events into a cache
type Reconciler struct {
	cache  *cache.Cache
	logger *slog.Logger
}

// New creates a reconciler writing to c
func New(c *cache.Cache, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		cache:  c,
		logger: logger.With(slog.String("component", "reconciler")),
	}
}

// Handle applies one event
func (r *Reconciler) Handle(event model.Event) {
	ops := Plan(event)
	if len(ops) == 0 {
		r.logger.Warn("ignoring event with no reconciliation rule", slog.String("type", string(event.Type())))
		return
	}
	r.logger.Debug("reconciling event",
		slog.String("type", string(event.Type())),
		slog.String("roster", string(event.Topic())),
	)
	Apply(r.cache, event)
}

// Run applies events until the channel closes or ctx is done
func (r *Reconciler) Run(ctx context.Context, events <-chan model.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			r.Handle(event)
		}
	}
}
