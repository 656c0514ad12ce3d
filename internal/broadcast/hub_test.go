package broadcast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/testutil"
)

func playerUpdated(slug model.RosterSlug, name string) model.Event {
	return model.PlayerUpdated{Player: model.Player{ID: "p1", RosterSlug: slug, Name: name, Role: model.RoleTank}}
}

func receive(t *testing.T, ch <-chan model.Event) model.Event {
	t.Helper()
	select {
	case e, ok := <-ch:
		require.True(t, ok, "stream closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return nil
	}
}

func TestHub_RegisterAndPublish(t *testing.T) {
	hub := NewHub("abc", testutil.NopLogger())
	go hub.Run()
	defer hub.Close()

	sub := newSubscriber()
	require.True(t, hub.Register(sub))
	assert.Equal(t, 1, hub.SubscriberCount())

	hub.Publish(playerUpdated("abc", "Tank1"))

	got := receive(t, sub.send)
	assert.Equal(t, model.EventPlayerUpdated, got.Type())
}

func TestHub_PublishToMultipleSubscribers(t *testing.T) {
	hub := NewHub("abc", testutil.NopLogger())
	go hub.Run()
	defer hub.Close()

	subs := []*subscriber{newSubscriber(), newSubscriber(), newSubscriber()}
	for _, sub := range subs {
		require.True(t, hub.Register(sub))
	}

	hub.Publish(playerUpdated("abc", "Tank1"))

	for _, sub := range subs {
		got := receive(t, sub.send)
		assert.Equal(t, "Tank1", got.(model.PlayerUpdated).Player.Name)
	}
}

func TestHub_UnregisterClosesStream(t *testing.T) {
	hub := NewHub("abc", testutil.NopLogger())
	go hub.Run()
	defer hub.Close()

	sub := newSubscriber()
	require.True(t, hub.Register(sub))
	hub.Unregister(sub)

	_, ok := <-sub.send
	assert.False(t, ok)
	assert.Equal(t, 0, hub.SubscriberCount())
}

func TestHub_SlowSubscriberDropsWithoutBlockingOthers(t *testing.T) {
	hub := NewHub("abc", testutil.NopLogger())
	go hub.Run()
	defer hub.Close()

	slow := newSubscriber()
	fast := newSubscriber()
	require.True(t, hub.Register(slow))
	require.True(t, hub.Register(fast))

	total := subscriberBufferSize + 10
	received := make(chan int)
	go func() {
		n := 0
		for range fast.send {
			n++
			if n == total {
				break
			}
		}
		received <- n
	}()

	for i := 0; i < total; i++ {
		hub.Publish(playerUpdated("abc", "x"))
		time.Sleep(time.Millisecond)
	}

	select {
	case n := <-received:
		assert.Equal(t, total, n)
	case <-time.After(5 * time.Second):
		t.Fatal("fast subscriber was blocked")
	}
	assert.Len(t, slow.send, subscriberBufferSize)
}

func TestHub_OperationsAfterCloseDoNotBlock(t *testing.T) {
	hub := NewHub("abc", testutil.NopLogger())
	go hub.Run()

	sub := newSubscriber()
	require.True(t, hub.Register(sub))
	hub.Close()
	hub.Close()

	_, ok := <-sub.send
	assert.False(t, ok, "close should end every stream")

	done := make(chan struct{})
	go func() {
		hub.Unregister(sub)
		assert.False(t, hub.Register(newSubscriber()))
		hub.Publish(playerUpdated("abc", "late"))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub operations blocked after close")
	}
}
