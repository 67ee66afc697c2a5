package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/job"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/metrics"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/run"
)

// Router provides the dashboard's HTTP surface.
// Endpoints:
//
//	POST {basePath}/run          body: job launch request JSON
//	GET  {basePath}/stream/:id   SSE log/progress stream for a run
//	POST {basePath}/stop/:id     request cancellation of a run
//	GET  {basePath}/analytics/overview, /search/performance,
//	     /ads/performance, /crm/summary; POST {basePath}/insights
//	GET  /healthz, /metrics
//
// basePath may be empty or start with '/'; no trailing slash.
type Router struct {
	registry *run.Registry
	launcher *job.Launcher
	dash     *Dashboard
	basePath string
	poll     time.Duration
}

// NewRouter constructs a Router with configurable basePath, e.g. "/api"
// results in /api/run, /api/stream/:id, /api/stop/:id.
func NewRouter(reg *run.Registry, l *job.Launcher, dash *Dashboard, basePath string) *Router {
	return &Router{
		registry: reg,
		launcher: l,
		dash:     dash,
		basePath: sanitizeBase(basePath),
		poll:     streamPollInterval,
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in any
// server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", func(c *gin.Context) { writeJSON(c, http.StatusOK, okResp{OK: true}) })
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	group := g.Group(r.basePath)
	group.POST("/run", r.handleRun)
	group.GET("/stream/:id", r.handleStream)
	group.POST("/stop/:id", r.handleStop)
	group.GET("/stream", missingID)
	group.POST("/stop", missingID)
	if r.dash != nil {
		r.dash.mount(group)
	}
	return g
}

// NewHTTPServer starts a standalone HTTP server on addr with the given
// handler. WriteTimeout stays unset: stream connections are held open for the
// lifetime of the run they watch.
func NewHTTPServer(addr string, h http.Handler) *http.Server {
	server := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

func missingID(c *gin.Context) {
	writeJSON(c, http.StatusBadRequest, errorResp{Error: "runId required"})
}

func (r *Router) handleRun(c *gin.Context) {
	var req job.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: "invalid JSON: " + err.Error()})
		return
	}
	id, err := r.launcher.Launch(req)
	if err != nil {
		var ve *job.ValidationError
		if errors.As(err, &ve) {
			writeJSON(c, http.StatusBadRequest, errorResp{Error: ve.Msg})
			return
		}
		// a run id was allocated; its record already holds the failure
		writeJSON(c, http.StatusInternalServerError, gin.H{"error": err.Error(), "runId": id})
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"runId": id})
}

func (r *Router) handleStop(c *gin.Context) {
	id := c.Param("id")
	// Stop itself is the existence check; a separate lookup first could see
	// a record that is evicted before the stop lands.
	if !r.registry.Stop(id) {
		writeJSON(c, http.StatusNotFound, errorResp{Error: "run not found"})
		return
	}
	if snap, ok := r.registry.Snapshot(id); ok {
		metrics.IncStopRequest(snap.Meta["job"])
	}
	writeJSON(c, http.StatusOK, gin.H{"ok": true, "runId": id})
}
