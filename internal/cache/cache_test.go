package cache

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestSetGetRoundTrip(t *testing.T) {
	c, err := New(t.TempDir(), time.Minute)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	payload := json.RawMessage(`{"sessions":120}`)
	if err := c.Set("ga4:overview:7d", payload); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := c.Get("ga4:overview:7d")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("payload mangled: %s", got)
	}
}

func TestMissOnUnknownKey(t *testing.T) {
	c, _ := New(t.TempDir(), time.Minute)
	if _, err := c.Get("never-set"); !errors.Is(err, ErrMiss) {
		t.Fatalf("want ErrMiss, got %v", err)
	}
}

func TestExpiry(t *testing.T) {
	c, _ := New(t.TempDir(), time.Minute)
	base := time.Now()
	c.now = func() time.Time { return base }
	if err := c.Set("k", json.RawMessage(`1`)); err != nil {
		t.Fatal(err)
	}
	c.now = func() time.Time { return base.Add(2 * time.Minute) }
	if _, err := c.Get("k"); !errors.Is(err, ErrMiss) {
		t.Fatalf("expired entry served: %v", err)
	}
}

func TestKeysAreFilesystemSafe(t *testing.T) {
	c, _ := New(t.TempDir(), time.Minute)
	key := "gsc:/performance?site=https://example.com&days=28"
	if err := c.Set(key, json.RawMessage(`{}`)); err != nil {
		t.Fatalf("Set with URL-ish key: %v", err)
	}
	if _, err := c.Get(key); err != nil {
		t.Fatalf("Get with URL-ish key: %v", err)
	}
}
