package transport

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/mcoot/rostersync/internal/model"
)

// connectedEvent is the first message the server sends on a new stream
const connectedEvent = "connected"

// SSESource reads a roster's events from the server-sent events endpoint
type SSESource struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewSSESource creates an SSE source for the server at baseURL
func NewSSESource(baseURL string, logger *slog.Logger) *SSESource {
	return &SSESource{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 0}, // No timeout for SSE
		logger:     logger.With(slog.String("component", "sse-source")),
	}
}

// sseMessage is one parsed server-sent event
type sseMessage struct {
	Event string
	Data  string
}

// sseReader splits a stream into messages. Comment lines are skipped.
type sseReader struct {
	scanner *bufio.Scanner
}

func newSSEReader(r io.Reader) *sseReader {
	return &sseReader{scanner: bufio.NewScanner(r)}
}

// Next returns the next complete message, or io.EOF
func (r *sseReader) Next() (sseMessage, error) {
	var currentEvent string
	var dataLines []string

	for r.scanner.Scan() {
		line := r.scanner.Text()

		if strings.HasPrefix(line, "event: ") {
			currentEvent = strings.TrimPrefix(line, "event: ")
		} else if strings.HasPrefix(line, "data: ") {
			dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		} else if line == "" {
			// End of event
			if currentEvent != "" {
				return sseMessage{Event: currentEvent, Data: strings.Join(dataLines, "\n")}, nil
			}
			currentEvent = ""
			dataLines = nil
		}
	}

	if err := r.scanner.Err(); err != nil {
		return sseMessage{}, err
	}
	return sseMessage{}, io.EOF
}

// Open connects to slug's event stream. It returns once the server has
// confirmed the subscription.
func (s *SSESource) Open(ctx context.Context, slug model.RosterSlug) (Feed, error) {
	url := s.baseURL + apiPrefix + rosterPath(slug) + "/events"

	streamCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, url, nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: connection failed: %w", model.ErrTransient, err)
	}

	if resp.StatusCode != http.StatusOK {
		defer cancel()
		defer func() { _ = resp.Body.Close() }()
		body, _ := io.ReadAll(resp.Body)
		return nil, decodeError(resp.StatusCode, body)
	}

	reader := newSSEReader(resp.Body)
	first, err := reader.Next()
	if err != nil || first.Event != connectedEvent {
		cancel()
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: stream did not confirm subscription", model.ErrTransient)
	}

	feed := &sseFeed{
		events: make(chan model.Event),
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go feed.read(streamCtx, reader, resp.Body, s.logger)
	return feed, nil
}

type sseFeed struct {
	events chan model.Event
	cancel context.CancelFunc
	once   sync.Once
	done   chan struct{}
}

func (f *sseFeed) read(ctx context.Context, reader *sseReader, body io.Closer, logger *slog.Logger) {
	defer close(f.done)
	defer close(f.events)
	defer func() { _ = body.Close() }()

	for {
		msg, err := reader.Next()
		if err != nil {
			if ctx.Err() == nil && err != io.EOF {
				logger.Warn("sse stream error", slog.Any("error", err))
			}
			return
		}

		var env model.Envelope
		if err := json.Unmarshal([]byte(msg.Data), &env); err != nil {
			logger.Warn("sse malformed message", slog.String("event", msg.Event), slog.Any("error", err))
			continue
		}
		event, err := env.Event()
		if err != nil {
			logger.Warn("sse unknown event", slog.String("event", msg.Event), slog.Any("error", err))
			continue
		}

		select {
		case f.events <- event:
		case <-ctx.Done():
			return
		}
	}
}

func (f *sseFeed) Events() <-chan model.Event {
	return f.events
}

func (f *sseFeed) Close() {
	f.once.Do(func() {
		f.cancel()
		<-f.done
	})
}

