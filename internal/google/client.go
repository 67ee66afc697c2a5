package google

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// Config holds the OAuth client plus the properties this dashboard reads.
// The refresh token is a long-lived offline grant; access tokens are minted
// and cached by the oauth2 token source.
type Config struct {
	ClientID     string `toml:"client_id" mapstructure:"client_id"`
	ClientSecret string `toml:"client_secret" mapstructure:"client_secret"`
	RefreshToken string `toml:"refresh_token" mapstructure:"refresh_token"`

	GA4Property    string `toml:"ga4_property" mapstructure:"ga4_property"`       // e.g. "properties/123456"
	GSCSite        string `toml:"gsc_site" mapstructure:"gsc_site"`               // e.g. "sc-domain:example.com"
	AdsCustomerID  string `toml:"ads_customer_id" mapstructure:"ads_customer_id"` // digits only
	AdsDevToken    string `toml:"ads_dev_token" mapstructure:"ads_dev_token"`
	AdsLoginCustID string `toml:"ads_login_customer_id" mapstructure:"ads_login_customer_id"`
}

// Client wraps the Google marketing APIs this dashboard proxies: GA4
// runReport, Search Console searchAnalytics and Ads searchStream. Responses
// are opaque JSON passed through to the UI.
type Client struct {
	cfg  Config
	http *http.Client

	ga4Base string
	gscBase string
	adsBase string
}

func New(ctx context.Context, cfg Config) *Client {
	oc := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL: "https://oauth2.googleapis.com/token",
		},
	}
	ts := oc.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	hc := oauth2.NewClient(ctx, ts)
	hc.Timeout = 30 * time.Second
	return &Client{
		cfg:     cfg,
		http:    hc,
		ga4Base: "https://analyticsdata.googleapis.com",
		gscBase: "https://www.googleapis.com",
		adsBase: "https://googleads.googleapis.com",
	}
}

// RunGA4Report posts a runReport body for the configured property.
// The report body shape is owned by the caller.
func (c *Client) RunGA4Report(ctx context.Context, body any) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/v1beta/%s:runReport", c.ga4Base, c.cfg.GA4Property)
	return c.postJSON(ctx, u, body, nil)
}

// QuerySearchAnalytics posts a searchAnalytics/query body for the configured
// site.
func (c *Client) QuerySearchAnalytics(ctx context.Context, body any) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/webmasters/v3/sites/%s/searchAnalytics/query", c.gscBase, c.cfg.GSCSite)
	return c.postJSON(ctx, u, body, nil)
}

// SearchAds runs a GAQL query through searchStream for the configured
// customer.
func (c *Client) SearchAds(ctx context.Context, gaql string) (json.RawMessage, error) {
	u := fmt.Sprintf("%s/v18/customers/%s/googleAds:searchStream", c.adsBase, c.cfg.AdsCustomerID)
	hdr := map[string]string{"developer-token": c.cfg.AdsDevToken}
	if c.cfg.AdsLoginCustID != "" {
		hdr["login-customer-id"] = c.cfg.AdsLoginCustID
	}
	return c.postJSON(ctx, u, map[string]string{"query": gaql}, hdr)
}

func (c *Client) postJSON(ctx context.Context, url string, body any, headers map[string]string) (json.RawMessage, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("google api status %d: %s", resp.StatusCode, truncate(out, 256))
	}
	return out, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
