package transport

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/mcoot/rostersync/internal/model"
)

// Reconnecting wraps a Source so that a dropped feed is reopened with
// exponential backoff. OnReconnect runs after each successful reopen, since
// events sent while disconnected are lost.
type Reconnecting struct {
	Source      Source
	OnReconnect func(slug model.RosterSlug)
	// NewBackOff overrides the retry schedule
	NewBackOff func() backoff.BackOff
	Logger     *slog.Logger
}

func (r *Reconnecting) newBackOff() backoff.BackOff {
	if r.NewBackOff != nil {
		return r.NewBackOff()
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 15 * time.Second
	b.MaxElapsedTime = 0 // Retry until closed
	return b
}

func (r *Reconnecting) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

// Open opens the first feed directly, so its error is returned to the
// caller. Later drops are retried in the background.
func (r *Reconnecting) Open(ctx context.Context, slug model.RosterSlug) (Feed, error) {
	inner, err := r.Source.Open(ctx, slug)
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	feed := &reconnectingFeed{
		events: make(chan model.Event),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go feed.run(runCtx, r, slug, inner)
	return feed, nil
}

type reconnectingFeed struct {
	events chan model.Event
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func (f *reconnectingFeed) run(ctx context.Context, r *Reconnecting, slug model.RosterSlug, inner Feed) {
	defer close(f.done)
	defer close(f.events)
	logger := r.logger().With(slog.String("roster", string(slug)))

	for {
		if !f.forward(ctx, inner) {
			inner.Close()
			return
		}
		inner.Close()

		logger.Warn("event feed dropped, reconnecting")
		next, err := backoff.RetryWithData(func() (Feed, error) {
			feed, err := r.Source.Open(ctx, slug)
			if err != nil && (errors.Is(err, model.ErrRosterNotFound) || ctx.Err() != nil) {
				return nil, backoff.Permanent(err)
			}
			return feed, err
		}, backoff.WithContext(r.newBackOff(), ctx))
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("giving up on event feed", slog.Any("error", err))
			}
			return
		}

		inner = next
		logger.Info("event feed reconnected")
		if r.OnReconnect != nil {
			r.OnReconnect(slug)
		}
	}
}

// forward copies events until the inner feed ends (true) or the feed is
// closed (false)
func (f *reconnectingFeed) forward(ctx context.Context, inner Feed) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case event, ok := <-inner.Events():
			if !ok {
				return true
			}
			select {
			case f.events <- event:
			case <-ctx.Done():
				return false
			}
		}
	}
}

func (f *reconnectingFeed) Events() <-chan model.Event {
	return f.events
}

func (f *reconnectingFeed) Close() {
	f.once.Do(func() {
		f.cancel()
		<-f.done
	})
}
