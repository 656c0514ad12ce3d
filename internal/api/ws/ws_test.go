package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/rostersync/internal/broadcast"
	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/testutil"
)

func TestServeWSStreamsEnvelopes(t *testing.T) {
	local := broadcast.NewLocal(testutil.NopLogger())
	defer local.Close()

	subscribed := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := local.Subscribe(context.Background(), "abc")
		defer sub.Close()
		close(subscribed)
		ServeWS(w, r, sub, testutil.NopLogger())
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	<-subscribed
	local.Publish(context.Background(), model.PlayerDeleted{RosterSlug: "abc", Player: model.Player{ID: "p1", RosterSlug: "abc"}})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, msgType)

	event, err := model.DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, model.EventPlayerDeleted, event.Type())
	assert.Equal(t, model.RosterSlug("abc"), event.Topic())
}

func TestServeWSClosesWhenSubscriptionEnds(t *testing.T) {
	local := broadcast.NewLocal(testutil.NopLogger())
	defer local.Close()

	subscribed := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sub := local.Subscribe(context.Background(), "abc")
		defer sub.Close()
		close(subscribed)
		ServeWS(w, r, sub, testutil.NopLogger())
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	<-subscribed
	local.RemoveHub("abc")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
