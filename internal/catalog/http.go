package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultLimit is the page size requested from the catalog API.
const DefaultLimit = 1000

// Client fetches entries from the buildings API.
type Client struct {
	BaseURL    string
	APIKey     string
	Limit      int
	httpClient *http.Client
}

// NewClient creates a catalog API client.
func NewClient(baseURL, apiKey string, limit int) *Client {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Limit:   limit,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// building is the API's wire shape.
type building struct {
	UUID     string  `json:"uuid"`
	Title    string  `json:"title"`
	ImageURL *string `json:"imageUrl"`
	HasImage bool    `json:"hasImage"`
}

// Entries requests one page of buildings.
func (c *Client) Entries(ctx context.Context) ([]Entry, error) {
	q := url.Values{}
	q.Set("skip", "0")
	q.Set("limit", fmt.Sprint(c.Limit))
	listURL := c.BaseURL + "/buildings/?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create catalog request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.APIKey != "" {
		req.Header.Set("x-api-key", c.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("catalog API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var buildings []building
	if err := json.NewDecoder(resp.Body).Decode(&buildings); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}

	entries := make([]Entry, 0, len(buildings))
	for _, b := range buildings {
		e := Entry{ID: b.UUID, DisplayName: b.Title, HasExistingAsset: b.HasImage}
		if b.ImageURL != nil {
			e.AssetURL = *b.ImageURL
		}
		entries = append(entries, e)
	}
	return validate(entries)
}
