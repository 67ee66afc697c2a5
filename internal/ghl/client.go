package ghl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// Config holds the CRM API credentials. The location id scopes every request
// to one sub-account.
type Config struct {
	APIKey     string `toml:"api_key" mapstructure:"api_key"`
	LocationID string `toml:"location_id" mapstructure:"location_id"`
	APIVersion string `toml:"api_version" mapstructure:"api_version"`
}

// Client talks to the GoHighLevel REST API for the CRM summary route.
type Client struct {
	cfg  Config
	http *http.Client
	base string
}

func New(cfg Config) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2021-07-28"
	}
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: 20 * time.Second},
		base: "https://services.leadconnectorhq.com",
	}
}

// ContactsSummary returns the contact search result for the configured
// location, newest first, capped at limit.
func (c *Client) ContactsSummary(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{
		"locationId": {c.cfg.LocationID},
		"limit":      {fmt.Sprint(limit)},
	}
	return c.getJSON(ctx, "/contacts/?"+q.Encode())
}

// OpportunitiesSummary returns the opportunity search result for the
// configured location.
func (c *Client) OpportunitiesSummary(ctx context.Context, limit int) (json.RawMessage, error) {
	q := url.Values{
		"location_id": {c.cfg.LocationID},
		"limit":       {fmt.Sprint(limit)},
	}
	return c.getJSON(ctx, "/opportunities/search?"+q.Encode())
}

func (c *Client) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Version", c.cfg.APIVersion)
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ghl api status %d: %s", resp.StatusCode, truncate(out, 256))
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
