package run

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"sync"
	"time"
)

// DefaultTTL bounds how long a record stays queryable after creation.
// Eviction is age-based regardless of finished state, so a late-connecting
// stream can still replay a finished run's history.
const DefaultTTL = 30 * time.Minute

// Registry is the process-wide collection of run records. It is constructed
// exactly once per server process and shared by the launch, stop and stream
// handlers.
type Registry struct {
	mu   sync.Mutex
	runs map[string]*Record
	ttl  time.Duration

	now func() time.Time // test hook
}

func NewRegistry() *Registry {
	return &Registry{
		runs: make(map[string]*Record),
		ttl:  DefaultTTL,
		now:  time.Now,
	}
}

// NewRegistryTTL creates a registry with a custom eviction TTL.
func NewRegistryTTL(ttl time.Duration) *Registry {
	r := NewRegistry()
	if ttl > 0 {
		r.ttl = ttl
	}
	return r
}

// Create allocates a fresh record with the given metadata and stores it.
// Records older than the TTL are evicted opportunistically before insertion;
// there is no background sweeper. Create never fails.
func (g *Registry) Create(meta map[string]string) string {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for id, rec := range g.runs {
		if now.Sub(rec.CreatedAt) > g.ttl {
			delete(g.runs, id)
		}
	}

	id := newRunID(now)
	m := make(map[string]string, len(meta))
	for k, v := range meta {
		m[k] = v
	}
	g.runs[id] = &Record{ID: id, CreatedAt: now, Meta: m}
	return id
}

// Exists reports whether a record is currently tracked.
func (g *Registry) Exists(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.runs[id]
	return ok
}

// Snapshot returns a copy of the record's state, or ok=false for unknown or
// evicted ids.
func (g *Registry) Snapshot(id string) (Snapshot, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.runs[id]
	if !ok {
		return Snapshot{}, false
	}
	return rec.snapshot(), true
}

// LinesSince returns a copy of the lines appended after the given watermark
// together with the new total. ok=false means the record is gone.
func (g *Registry) LinesSince(id string, from int) (lines []string, total int, ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, okr := g.runs[id]
	if !okr {
		return nil, 0, false
	}
	total = len(rec.lines)
	if from < 0 {
		from = 0
	}
	if from > total {
		from = total
	}
	if from < total {
		lines = make([]string, total-from)
		copy(lines, rec.lines[from:])
	}
	return lines, total, true
}

// PatchMeta merges additional metadata into an existing record.
func (g *Registry) PatchMeta(id string, meta map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.runs[id]
	if !ok {
		return
	}
	for k, v := range meta {
		rec.Meta[k] = v
	}
}

// Len reports the number of tracked records.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.runs)
}

// newRunID builds an opaque id from the creation time plus random suffix.
// Uniqueness is the only contract.
func newRunID(now time.Time) string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return strconv.FormatInt(now.UnixMilli(), 36) + "-" + hex.EncodeToString(b)
}
