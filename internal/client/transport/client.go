// Package transport connects a client to a rostersync server: an HTTP
// client for mutations and reads, and event sources for the broadcast
// stream.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mcoot/rostersync/internal/api/apierr"
	"github.com/mcoot/rostersync/internal/api/request"
	"github.com/mcoot/rostersync/internal/api/response"
	"github.com/mcoot/rostersync/internal/model"
)

const apiPrefix = "/api/v1"

// Client is an HTTP client for the API
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new API client
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// NewClientWithHTTP creates a client that uses the given http.Client
func NewClientWithHTTP(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// BaseURL returns the server address the client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Do performs an HTTP request against the API. Error bodies are mapped back
// to model errors; failures to reach the server wrap model.ErrTransient.
func (c *Client) Do(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+apiPrefix+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", model.ErrTransient, method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", model.ErrTransient, err)
	}

	if resp.StatusCode >= 400 {
		return decodeError(resp.StatusCode, respBody)
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to parse response: %w", err)
		}
	}

	return nil
}

func decodeError(status int, body []byte) error {
	var errResp apierr.ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Code != "" {
		return apierr.ToModelError(status, errResp)
	}
	if status >= http.StatusInternalServerError {
		return fmt.Errorf("%w: HTTP %d", model.ErrTransient, status)
	}
	return fmt.Errorf("HTTP %d: %s", status, string(body))
}

func rosterPath(slug model.RosterSlug) string {
	return "/rosters/" + url.PathEscape(string(slug))
}

func playerPath(id model.PlayerID) string {
	return "/players/" + url.PathEscape(string(id))
}

// Health checks the server's health endpoint
func (c *Client) Health(ctx context.Context) (*response.Health, error) {
	var result response.Health
	if err := c.Do(ctx, http.MethodGet, "/health", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// CreateRoster creates a roster with a generated slug
func (c *Client) CreateRoster(ctx context.Context, name string) (*model.Roster, error) {
	var result model.Roster
	if err := c.Do(ctx, http.MethodPost, "/rosters", request.CreateRosterRequest{Name: name}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetRoster fetches a roster
func (c *Client) GetRoster(ctx context.Context, slug model.RosterSlug) (*model.Roster, error) {
	var result model.Roster
	if err := c.Do(ctx, http.MethodGet, rosterPath(slug), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateRoster renames a roster
func (c *Client) UpdateRoster(ctx context.Context, slug model.RosterSlug, name string) (*model.Roster, error) {
	var result model.Roster
	if err := c.Do(ctx, http.MethodPatch, rosterPath(slug), request.UpdateRosterRequest{Name: name}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListPlayers lists a roster's active or soft-deleted players
func (c *Client) ListPlayers(ctx context.Context, slug model.RosterSlug, active bool) ([]model.Player, error) {
	var result response.PlayerList
	path := rosterPath(slug) + "/players?active=" + strconv.FormatBool(active)
	if err := c.Do(ctx, http.MethodGet, path, nil, &result); err != nil {
		return nil, err
	}
	return result.Players, nil
}

// CreatePlayer adds a player to a roster
func (c *Client) CreatePlayer(ctx context.Context, slug model.RosterSlug, name string, role model.Role) (*model.Player, error) {
	var result model.Player
	body := request.CreatePlayerRequest{Name: name, Role: role}
	if err := c.Do(ctx, http.MethodPost, rosterPath(slug)+"/players", body, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetPlayer fetches a player
func (c *Client) GetPlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var result model.Player
	if err := c.Do(ctx, http.MethodGet, playerPath(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdatePlayer applies a partial update to a player
func (c *Client) UpdatePlayer(ctx context.Context, id model.PlayerID, update model.PlayerUpdate) (*model.Player, error) {
	var result model.Player
	if err := c.Do(ctx, http.MethodPatch, playerPath(id), update, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SoftDeletePlayer marks a player deleted
func (c *Client) SoftDeletePlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var result model.Player
	if err := c.Do(ctx, http.MethodDelete, playerPath(id), nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ActivatePlayer restores a soft-deleted player
func (c *Client) ActivatePlayer(ctx context.Context, id model.PlayerID) (*model.Player, error) {
	var result model.Player
	if err := c.Do(ctx, http.MethodPost, playerPath(id)+"/activate", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// GetOrCreateGearChoice fetches a player's gear choice, creating the default
// one on first access
func (c *Client) GetOrCreateGearChoice(ctx context.Context, id model.PlayerID) (*model.GearChoice, error) {
	var result model.GearChoice
	if err := c.Do(ctx, http.MethodGet, playerPath(id)+"/gear", nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateGearChoice applies a partial update to a player's gear choice
func (c *Client) UpdateGearChoice(ctx context.Context, id model.PlayerID, update model.GearChoiceUpdate) (*model.GearChoice, error) {
	var result model.GearChoice
	if err := c.Do(ctx, http.MethodPatch, playerPath(id)+"/gear", update, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
