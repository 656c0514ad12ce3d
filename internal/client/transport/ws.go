package transport

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mcoot/rostersync/internal/model"
)

const wsWriteWait = 10 * time.Second

// WSSource reads a roster's events over the WebSocket endpoint
type WSSource struct {
	baseURL string
	dialer  *websocket.Dialer
	logger  *slog.Logger
}

// NewWSSource creates a WebSocket source for the server at baseURL
// (http:// and https:// are rewritten to ws:// and wss://)
func NewWSSource(baseURL string, logger *slog.Logger) *WSSource {
	u := strings.TrimSuffix(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return &WSSource{
		baseURL: u,
		dialer:  websocket.DefaultDialer,
		logger:  logger.With(slog.String("component", "ws-source")),
	}
}

// Open dials slug's event socket. The server subscribes before upgrading,
// so the feed is live once Open returns.
func (s *WSSource) Open(ctx context.Context, slug model.RosterSlug) (Feed, error) {
	url := s.baseURL + apiPrefix + rosterPath(slug) + "/ws"

	conn, resp, err := s.dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			defer func() { _ = resp.Body.Close() }()
			body, _ := io.ReadAll(resp.Body)
			return nil, decodeError(resp.StatusCode, body)
		}
		return nil, fmt.Errorf("%w: dial failed: %w", model.ErrTransient, err)
	}

	feed := &wsFeed{
		conn:   conn,
		events: make(chan model.Event),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go feed.read(s.logger)
	return feed, nil
}

type wsFeed struct {
	conn   *websocket.Conn
	events chan model.Event
	once   sync.Once
	stop   chan struct{}
	done   chan struct{}
}

func (f *wsFeed) read(logger *slog.Logger) {
	defer close(f.done)
	defer close(f.events)

	for {
		_, data, err := f.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && !f.stopped() {
				logger.Warn("websocket read error", slog.Any("error", err))
			}
			return
		}

		event, err := model.DecodeEvent(data)
		if err != nil {
			logger.Warn("websocket malformed message", slog.Any("error", err))
			continue
		}

		select {
		case f.events <- event:
		case <-f.stop:
			return
		}
	}
}

func (f *wsFeed) stopped() bool {
	select {
	case <-f.stop:
		return true
	default:
		return false
	}
}

func (f *wsFeed) Events() <-chan model.Event {
	return f.events
}

func (f *wsFeed) Close() {
	f.once.Do(func() {
		close(f.stop)
		_ = f.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(wsWriteWait))
		_ = f.conn.Close()
		<-f.done
	})
}
