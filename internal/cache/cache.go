package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Cache is a TTL'd JSON file cache for upstream API responses: one file per
// key under Dir. Entries carry their own stored-at stamp; staleness is
// checked on read, and a missing or expired entry is reported as ErrMiss.
type Cache struct {
	dir string
	ttl time.Duration

	now func() time.Time // test hook
}

var ErrMiss = errors.New("cache miss")

type envelope struct {
	StoredAt time.Time       `json:"stored_at"`
	Payload  json.RawMessage `json:"payload"`
}

func New(dir string, ttl time.Duration) (*Cache, error) {
	if dir == "" {
		return nil, errors.New("cache dir required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Cache{dir: dir, ttl: ttl, now: time.Now}, nil
}

// Get returns the cached payload for key, or ErrMiss when absent or older
// than the TTL.
func (c *Cache) Get(key string) (json.RawMessage, error) {
	b, err := os.ReadFile(c.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrMiss
		}
		return nil, err
	}
	var env envelope
	if err := json.Unmarshal(b, &env); err != nil {
		// corrupt entries behave like misses so callers refetch
		return nil, ErrMiss
	}
	if c.now().Sub(env.StoredAt) > c.ttl {
		return nil, ErrMiss
	}
	return env.Payload, nil
}

// Set stores the payload under key. Writes go through a temp file + rename
// so a concurrent reader never sees a partial entry.
func (c *Cache) Set(key string, payload json.RawMessage) error {
	env := envelope{StoredAt: c.now(), Payload: payload}
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(c.dir, "entry-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), c.path(key))
}

// path hashes the key so arbitrary query strings stay filesystem-safe.
func (c *Cache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(c.dir, hex.EncodeToString(sum[:16])+".json")
}
