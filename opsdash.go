// Package opsdash assembles the dashboard backend: a run registry, a job
// launcher and the HTTP surface, built from one Config. It is the embedding
// API; cmd/opsdash is a thin CLI over it.
package opsdash

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/cache"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/config"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/env"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/ghl"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/google"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/history"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/history/factory"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/insights"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/job"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/run"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/server"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = config.Config

type JobRequest = job.Request

type JobDefinition = job.Definition

type Snapshot = run.Snapshot

type HistorySink = history.Sink

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config { return config.Default() }

// LoadConfig reads a TOML config file on top of the defaults.
func LoadConfig(path string) (Config, error) { return config.Load(path) }

// Service is the assembled backend. Construct it once per process; the run
// registry it owns is the only shared state between the launch, stop and
// stream handlers.
type Service struct {
	registry *run.Registry
	launcher *job.Launcher
	router   *server.Router
	sink     history.Sink
}

func New(cfg Config) (*Service, error) {
	e := env.New()
	e.FromOS()
	if err := e.LoadFiles(cfg.EnvFiles...); err != nil {
		return nil, fmt.Errorf("env files: %w", err)
	}
	for _, kv := range cfg.Env {
		if i := strings.IndexByte(kv, '='); i > 0 {
			e.Set(kv[:i], kv[i+1:])
		}
	}

	var sink history.Sink
	if cfg.History.DSN != "" {
		var err error
		sink, err = factory.NewSinkFromDSN(cfg.History.DSN)
		if err != nil {
			return nil, fmt.Errorf("history sink: %w", err)
		}
	}

	registry := run.NewRegistryTTL(cfg.Registry.TTL)
	launcher := job.NewLauncher(registry, job.NewCatalog(cfg.Jobs), e, cfg.Log, sink)

	dash, err := buildDashboard(cfg)
	if err != nil {
		return nil, err
	}

	return &Service{
		registry: registry,
		launcher: launcher,
		router:   server.NewRouter(registry, launcher, dash, cfg.Server.BasePath),
		sink:     sink,
	}, nil
}

// Handler returns the HTTP surface for mounting in any server/mux.
func (s *Service) Handler() http.Handler { return s.router.Handler() }

// Launch validates the request and starts the job, returning the run id.
func (s *Service) Launch(req JobRequest) (string, error) { return s.launcher.Launch(req) }

// Stop requests cancellation of a run. False means the id is unknown.
func (s *Service) Stop(id string) bool { return s.registry.Stop(id) }

// Snapshot returns a copy of a run's current state.
func (s *Service) Snapshot(id string) (Snapshot, bool) { return s.registry.Snapshot(id) }

// Close releases the history sink, if any.
func (s *Service) Close() error {
	if c, ok := s.sink.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func buildDashboard(cfg Config) (*server.Dashboard, error) {
	dash := &server.Dashboard{}
	if cfg.Upstream.Google.ClientID != "" {
		dash.Analytics = google.New(context.Background(), cfg.Upstream.Google)
	}
	if cfg.Upstream.GHL.APIKey != "" {
		dash.CRM = ghl.New(cfg.Upstream.GHL)
	}
	if cfg.Upstream.Insights.APIKey != "" {
		dash.Narrator = insights.New(cfg.Upstream.Insights)
	}
	if cfg.Upstream.Cache.Dir != "" {
		store, err := cache.New(cfg.Upstream.Cache.Dir, cfg.Upstream.Cache.TTL)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		dash.Cache = store
	}
	return dash, nil
}
