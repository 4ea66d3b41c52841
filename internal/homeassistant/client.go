package homeassistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jgoulah/mindergas/internal/config"
)

// ErrEntityNotFound is returned when Home Assistant does not know the entity
var ErrEntityNotFound = errors.New("entity not found")

// EntityState is the subset of the /api/states response we use
type EntityState struct {
	EntityID    string                 `json:"entity_id"`
	State       string                 `json:"state"`
	Attributes  map[string]interface{} `json:"attributes"`
	LastChanged time.Time              `json:"last_changed"`
	LastUpdated time.Time              `json:"last_updated"`
}

// Client reads entity states through the Home Assistant REST API
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewClient creates a Home Assistant client
func NewClient(cfg config.HAConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("Home Assistant URL is required")
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("Home Assistant token is required")
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// GetEntity fetches the full state object of entityID
func (c *Client) GetEntity(ctx context.Context, entityID string) (*EntityState, error) {
	apiURL := fmt.Sprintf("%s/api/states/%s", c.baseURL, url.PathEscape(entityID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%s: %w", entityID, ErrEntityNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("HTTP error: status %d, response: %s", resp.StatusCode, string(respBody))
	}

	var state EntityState
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return nil, fmt.Errorf("decoding state: %w", err)
	}
	return &state, nil
}

// GetState returns the raw state string of entityID
func (c *Client) GetState(ctx context.Context, entityID string) (string, error) {
	state, err := c.GetEntity(ctx, entityID)
	if err != nil {
		return "", err
	}
	return state.State, nil
}
