package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/rostersync/internal/api/request"
	"github.com/mcoot/rostersync/internal/api/response"
	"github.com/mcoot/rostersync/internal/model"
	"github.com/mcoot/rostersync/internal/services/roster"
)

// RosterHandler handles roster and player endpoints
type RosterHandler struct {
	controller *roster.Controller
}

// NewRosterHandler creates a new roster handler
func NewRosterHandler(controller *roster.Controller) *RosterHandler {
	return &RosterHandler{controller: controller}
}

func slugVar(r *http.Request) model.RosterSlug {
	return model.RosterSlug(mux.Vars(r)["slug"])
}

func playerVar(r *http.Request) model.PlayerID {
	return model.PlayerID(mux.Vars(r)["id"])
}

func decode(r *http.Request, into any) error {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		return NewInvalidRequestError("Invalid request body")
	}
	return nil
}

// CreateRoster handles POST /api/v1/rosters
func (h *RosterHandler) CreateRoster(w http.ResponseWriter, r *http.Request) {
	var req request.CreateRosterRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	created, err := h.controller.CreateRoster(r.Context(), req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, created)
}

// GetRoster handles GET /api/v1/rosters/{slug}
func (h *RosterHandler) GetRoster(w http.ResponseWriter, r *http.Request) {
	found, err := h.controller.GetRoster(r.Context(), slugVar(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, found)
}

// UpdateRoster handles PATCH /api/v1/rosters/{slug}
func (h *RosterHandler) UpdateRoster(w http.ResponseWriter, r *http.Request) {
	var req request.UpdateRosterRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	updated, err := h.controller.UpdateRoster(r.Context(), slugVar(r), req.Name)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, updated)
}

// ListPlayers handles GET /api/v1/rosters/{slug}/players?active=true|false
func (h *RosterHandler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	active := true
	if v := r.URL.Query().Get("active"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(w, NewInvalidRequestError("active must be true or false"))
			return
		}
		active = parsed
	}

	players, err := h.controller.ListPlayers(r.Context(), slugVar(r), active)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.PlayerList{Players: players})
}

// CreatePlayer handles POST /api/v1/rosters/{slug}/players
func (h *RosterHandler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var req request.CreatePlayerRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	player, err := h.controller.CreatePlayer(r.Context(), slugVar(r), req.Name, req.Role)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, player)
}

// GetPlayer handles GET /api/v1/players/{id}
func (h *RosterHandler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := h.controller.GetPlayer(r.Context(), playerVar(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player)
}

// UpdatePlayer handles PATCH /api/v1/players/{id}
func (h *RosterHandler) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	var req request.UpdatePlayerRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	player, err := h.controller.UpdatePlayer(r.Context(), playerVar(r), req)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player)
}

// DeletePlayer handles DELETE /api/v1/players/{id} (soft delete)
func (h *RosterHandler) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	player, err := h.controller.SoftDeletePlayer(r.Context(), playerVar(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player)
}

// ActivatePlayer handles POST /api/v1/players/{id}/activate
func (h *RosterHandler) ActivatePlayer(w http.ResponseWriter, r *http.Request) {
	player, err := h.controller.ActivatePlayer(r.Context(), playerVar(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, player)
}

// GetGear handles GET /api/v1/players/{id}/gear
func (h *RosterHandler) GetGear(w http.ResponseWriter, r *http.Request) {
	gear, err := h.controller.GetOrCreateGearChoice(r.Context(), playerVar(r))
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, gear)
}

// UpdateGear handles PATCH /api/v1/players/{id}/gear
func (h *RosterHandler) UpdateGear(w http.ResponseWriter, r *http.Request) {
	var req request.UpdateGearRequest
	if err := decode(r, &req); err != nil {
		WriteError(w, err)
		return
	}

	gear, err := h.controller.UpdateGearChoice(r.Context(), playerVar(r), req)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, gear)
}
