// Package xivgear imports gear plans from xivgear.app set links.
package xivgear

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/mcoot/rostersync/internal/model"
)

const (
	// Host is the only site set links are accepted from
	Host = "xivgear.app"

	DefaultAPIURL  = "https://api.xivgear.app"
	DefaultDataURL = "https://data.xivgear.app"
)

// Set is a single exported gear set. Items is keyed by xivgear's slot names.
type Set struct {
	Name  string                  `json:"name"`
	Job   string                  `json:"job"`
	Items map[string]EquippedItem `json:"items"`
}

// EquippedItem is the item chosen for one slot
type EquippedItem struct {
	ID int `json:"id"`
}

// Item is an entry in a job's item catalogue
type Item struct {
	PrimaryKey        int    `json:"primaryKey"`
	AcquisitionSource string `json:"acquisitionSource"`
}

type itemsResponse struct {
	Items []Item `json:"items"`
}

// ParseSetURL validates a set link and returns the set's id. The id is the
// second "|" separated part of the page query parameter.
func ParseSetURL(raw string) (uuid.UUID, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Hostname() != Host {
		return uuid.Nil, model.NewValidationError("url", "not an xivgear.app link")
	}
	parts := strings.Split(u.Query().Get("page"), "|")
	if len(parts) < 2 {
		return uuid.Nil, model.NewValidationError("url", "link does not name a set")
	}
	id, err := uuid.Parse(parts[1])
	if err != nil {
		return uuid.Nil, model.NewValidationError("url", "invalid set id")
	}
	return id, nil
}

// Client fetches sets and job item catalogues. Catalogues are cached per job
// for the life of the client.
type Client struct {
	apiURL     string
	dataURL    string
	httpClient *http.Client

	mu      sync.Mutex
	catalog map[string]map[int]string
	fetches singleflight.Group
}

// NewClient creates a client against the given API and data hosts. Empty
// URLs fall back to the public ones.
func NewClient(apiURL, dataURL string) *Client {
	return NewClientWithHTTP(apiURL, dataURL, &http.Client{Timeout: 30 * time.Second})
}

// NewClientWithHTTP creates a client that uses the given http.Client
func NewClientWithHTTP(apiURL, dataURL string, httpClient *http.Client) *Client {
	if apiURL == "" {
		apiURL = DefaultAPIURL
	}
	if dataURL == "" {
		dataURL = DefaultDataURL
	}
	return &Client{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		dataURL:    strings.TrimSuffix(dataURL, "/"),
		httpClient: httpClient,
		catalog:    make(map[string]map[int]string),
	}
}

// Import fetches the set behind a link and maps it to a gear update
func (c *Client) Import(ctx context.Context, rawURL string) (model.GearChoiceUpdate, error) {
	id, err := ParseSetURL(rawURL)
	if err != nil {
		return nil, err
	}
	set, err := c.GetSet(ctx, id)
	if err != nil {
		return nil, err
	}
	sources, err := c.JobItems(ctx, set.Job)
	if err != nil {
		return nil, err
	}
	update := MapGearChoice(set, sources)
	if len(update) == 0 {
		return nil, model.NewValidationError("url", "set has no equipped items")
	}
	return update, nil
}

// GetSet fetches a shortlinked set. Sheets are rejected: only a single
// exported set decodes to an object with a job.
func (c *Client) GetSet(ctx context.Context, id uuid.UUID) (*Set, error) {
	body, err := c.get(ctx, c.apiURL+"/shortlink/"+id.String())
	if err != nil {
		return nil, fmt.Errorf("failed to fetch set: %w", err)
	}
	var set Set
	if err := json.Unmarshal(body, &set); err != nil || set.Job == "" {
		return nil, model.NewValidationError("url", "export a single set instead of a sheet")
	}
	return &set, nil
}

// JobItems returns item id to acquisition source for a job
func (c *Client) JobItems(ctx context.Context, job string) (map[int]string, error) {
	c.mu.Lock()
	cached, ok := c.catalog[job]
	c.mu.Unlock()
	if ok {
		return cached, nil
	}

	v, err, _ := c.fetches.Do(job, func() (any, error) {
		body, err := c.get(ctx, c.dataURL+"/Items?job="+url.QueryEscape(job))
		if err != nil {
			return nil, fmt.Errorf("failed to fetch items for %s: %w", job, err)
		}
		var resp itemsResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("failed to parse items for %s: %w", job, err)
		}
		sources := make(map[int]string, len(resp.Items))
		for _, item := range resp.Items {
			sources[item.PrimaryKey] = item.AcquisitionSource
		}
		c.mu.Lock()
		c.catalog[job] = sources
		c.mu.Unlock()
		return sources, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[int]string), nil
}

func (c *Client) get(ctx context.Context, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrTransient, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrTransient, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("%w: HTTP %d", model.ErrTransient, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return body, nil
}
