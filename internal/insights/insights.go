package insights

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Config points at an OpenAI-compatible chat completions endpoint.
type Config struct {
	APIKey  string `toml:"api_key" mapstructure:"api_key"`
	BaseURL string `toml:"base_url" mapstructure:"base_url"`
	Model   string `toml:"model" mapstructure:"model"`
}

// Client turns an aggregated metrics payload into a short narrative via a
// chat completions call.
type Client struct {
	cfg  Config
	http *http.Client
}

const systemPrompt = "You are an analyst for a local service business. " +
	"Summarize the supplied marketing and CRM metrics in plain language: " +
	"call out notable changes, then give two or three concrete recommendations."

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: 60 * time.Second}}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Summarize sends the metrics payload and returns the model's narrative.
func (c *Client) Summarize(ctx context.Context, metrics json.RawMessage) (string, error) {
	body := chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: string(metrics)},
		},
		Temperature: 0.3,
	}
	b, err := json.Marshal(body)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()
	out, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	var parsed chatResponse
	if err := json.Unmarshal(out, &parsed); err != nil {
		return "", fmt.Errorf("insights response parse: %w", err)
	}
	if resp.StatusCode >= 300 {
		msg := ""
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("insights api status %d: %s", resp.StatusCode, msg)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("insights response had no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
