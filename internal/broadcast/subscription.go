package broadcast

import (
	"context"
	"sync"

	"github.com/mcoot/rostersync/internal/model"
)

// Subscription is a live stream of events for one topic
type Subscription struct {
	events  <-chan model.Event
	cleanup func()
	once    sync.Once
	done    chan struct{}
}

func newSubscription(events <-chan model.Event, cleanup func()) *Subscription {
	return &Subscription{
		events:  events,
		cleanup: cleanup,
		done:    make(chan struct{}),
	}
}

// watch closes the subscription when ctx ends
func (s *Subscription) watch(ctx context.Context) {
	go func() {
		select {
		case <-ctx.Done():
			s.Close()
		case <-s.done:
		}
	}()
}

// Events returns the stream. It is closed once the subscription ends.
func (s *Subscription) Events() <-chan model.Event {
	return s.events
}

// Done is closed when Close has been called
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close ends the subscription. Calling it more than once is a no-op.
func (s *Subscription) Close() {
	s.once.Do(func() {
		close(s.done)
		if s.cleanup != nil {
			s.cleanup()
		}
	})
}
