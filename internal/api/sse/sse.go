// Package sse streams broadcast events to HTTP clients as server-sent events.
package sse

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mcoot/rostersync/internal/broadcast"
	"github.com/mcoot/rostersync/internal/model"
)

const (
	// Time between keepalive comments
	pingPeriod = 30 * time.Second

	// ConnectedEvent is sent once when the stream opens
	ConnectedEvent = "connected"
)

// ServeSSE writes every event from sub as `event: <type>` followed by the
// JSON envelope on the data line, until the client goes away or the
// subscription ends
func ServeSSE(w http.ResponseWriter, r *http.Request, sub *broadcast.Subscription, logger *slog.Logger) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering
	w.WriteHeader(http.StatusOK)

	_, _ = w.Write(FormatMessage(ConnectedEvent, `{"status":"connected"}`))
	flusher.Flush()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case event, ok := <-sub.Events():
			if !ok {
				return
			}
			msg, err := encode(event)
			if err != nil {
				logger.Warn("sse failed to encode event", slog.String("event", string(event.Type())), slog.Any("error", err))
				continue
			}
			if _, err := w.Write(msg); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

func encode(event model.Event) ([]byte, error) {
	data, err := model.EncodeEvent(event)
	if err != nil {
		return nil, err
	}
	return FormatMessage(string(event.Type()), string(data)), nil
}

// FormatMessage formats an SSE message with an event name and data.
// Every line of data gets its own "data: " prefix.
func FormatMessage(eventName, data string) []byte {
	var b strings.Builder
	b.WriteString("event: ")
	b.WriteString(eventName)
	b.WriteString("\n")
	for _, line := range splitLines(data) {
		b.WriteString("data: ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	b.WriteString("\n")
	return []byte(b.String())
}

// splitLines splits a string into lines, handling \r\n endings
func splitLines(s string) []string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.TrimSuffix(s, "\n")
	return strings.Split(s, "\n")
}
