package insights

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSummarize(t *testing.T) {
	var auth string
	var req chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&req)
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"Sessions are up 12%."}}]}`))
	}))
	defer srv.Close()

	c := New(Config{APIKey: "sk-test", BaseURL: srv.URL, Model: "test-model"})
	got, err := c.Summarize(context.Background(), json.RawMessage(`{"sessions":120}`))
	if err != nil {
		t.Fatalf("Summarize: %v", err)
	}
	if got != "Sessions are up 12%." {
		t.Fatalf("narrative: %q", got)
	}
	if auth != "Bearer sk-test" {
		t.Fatalf("auth header: %q", auth)
	}
	if req.Model != "test-model" || len(req.Messages) != 2 || req.Messages[1].Content != `{"sessions":120}` {
		t.Fatalf("request body: %+v", req)
	}
}

func TestSummarizeAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"rate limited"}}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	_, err := c.Summarize(context.Background(), json.RawMessage(`{}`))
	if err == nil || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("want api error, got %v", err)
	}
}

func TestSummarizeEmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL})
	if _, err := c.Summarize(context.Background(), json.RawMessage(`{}`)); err == nil {
		t.Fatal("want error on empty choices")
	}
}
