package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mcoot/rostersync/internal/api/handler"
	"github.com/mcoot/rostersync/internal/api/middleware"
	"github.com/mcoot/rostersync/internal/api/response"
	"github.com/mcoot/rostersync/internal/broadcast"
	"github.com/mcoot/rostersync/internal/services/roster"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger           *slog.Logger
	RosterController *roster.Controller
	Broadcast        broadcast.Channel
}

// NewRouter creates a new API router with all routes configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	rosterHandler := handler.NewRosterHandler(cfg.RosterController)
	eventsHandler := handler.NewEventsHandler(cfg.RosterController, cfg.Broadcast, cfg.Logger.With(slog.String("component", "events")))

	// API subrouter with common middleware
	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	// Roster routes
	api.HandleFunc("/rosters", rosterHandler.CreateRoster).Methods(http.MethodPost)
	api.HandleFunc("/rosters/{slug}", rosterHandler.GetRoster).Methods(http.MethodGet)
	api.HandleFunc("/rosters/{slug}", rosterHandler.UpdateRoster).Methods(http.MethodPatch)
	api.HandleFunc("/rosters/{slug}/players", rosterHandler.ListPlayers).Methods(http.MethodGet)
	api.HandleFunc("/rosters/{slug}/players", rosterHandler.CreatePlayer).Methods(http.MethodPost)

	// Broadcast streams
	api.HandleFunc("/rosters/{slug}/events", eventsHandler.SSE).Methods(http.MethodGet)
	api.HandleFunc("/rosters/{slug}/ws", eventsHandler.WebSocket).Methods(http.MethodGet)

	// Player routes
	api.HandleFunc("/players/{id}", rosterHandler.GetPlayer).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}", rosterHandler.UpdatePlayer).Methods(http.MethodPatch)
	api.HandleFunc("/players/{id}", rosterHandler.DeletePlayer).Methods(http.MethodDelete)
	api.HandleFunc("/players/{id}/activate", rosterHandler.ActivatePlayer).Methods(http.MethodPost)
	api.HandleFunc("/players/{id}/gear", rosterHandler.GetGear).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}/gear", rosterHandler.UpdateGear).Methods(http.MethodPatch)

	// Health check endpoint
	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Health{Status: "ok"})
}
