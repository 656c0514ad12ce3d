package handler

import (
	"log/slog"
	"net/http"

	"github.com/mcoot/rostersync/internal/api/sse"
	"github.com/mcoot/rostersync/internal/api/ws"
	"github.com/mcoot/rostersync/internal/broadcast"
	"github.com/mcoot/rostersync/internal/services/roster"
)

// EventsHandler streams a roster's broadcast events to remote subscribers
type EventsHandler struct {
	controller *roster.Controller
	channel    broadcast.Channel
	logger     *slog.Logger
}

// NewEventsHandler creates a new events handler
func NewEventsHandler(controller *roster.Controller, channel broadcast.Channel, logger *slog.Logger) *EventsHandler {
	return &EventsHandler{
		controller: controller,
		channel:    channel,
		logger:     logger,
	}
}

// subscribe checks the roster exists before opening a subscription
func (h *EventsHandler) subscribe(w http.ResponseWriter, r *http.Request) (*broadcast.Subscription, bool) {
	slug := slugVar(r)
	if _, err := h.controller.GetRoster(r.Context(), slug); err != nil {
		WriteError(w, err)
		return nil, false
	}
	return h.channel.Subscribe(r.Context(), slug), true
}

// SSE handles GET /api/v1/rosters/{slug}/events
func (h *EventsHandler) SSE(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subscribe(w, r)
	if !ok {
		return
	}
	defer sub.Close()
	sse.ServeSSE(w, r, sub, h.logger)
}

// WebSocket handles GET /api/v1/rosters/{slug}/ws
func (h *EventsHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.subscribe(w, r)
	if !ok {
		return
	}
	defer sub.Close()
	ws.ServeWS(w, r, sub, h.logger)
}
