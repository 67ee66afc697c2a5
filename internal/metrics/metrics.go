package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	runStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsdash",
			Subsystem: "run",
			Name:      "starts_total",
			Help:      "Number of launched job runs.",
		}, []string{"job"},
	)
	runFinishes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsdash",
			Subsystem: "run",
			Name:      "finishes_total",
			Help:      "Number of finished job runs by outcome.",
		}, []string{"job", "outcome"},
	)
	runStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opsdash",
			Subsystem: "run",
			Name:      "stop_requests_total",
			Help:      "Number of stop requests accepted.",
		}, []string{"job"},
	)
	runDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "opsdash",
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of finished runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"job"},
	)
	activeRuns = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "opsdash",
			Subsystem: "run",
			Name:      "active",
			Help:      "Currently running jobs.",
		},
	)
	openStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "opsdash",
			Subsystem: "stream",
			Name:      "open_connections",
			Help:      "Currently open log stream connections.",
		},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{runStarts, runFinishes, runStops, runDuration, activeRuns, openStreams}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler serving Prometheus metrics for the
// DefaultGatherer.
func Handler() http.Handler { return promhttp.Handler() }

// Helpers below no-op until Register has been called.

func IncRunStart(job string) {
	if regOK.Load() {
		runStarts.WithLabelValues(job).Inc()
		activeRuns.Inc()
	}
}

func IncRunFinish(job string, ok bool) {
	if regOK.Load() {
		outcome := "ok"
		if !ok {
			outcome = "error"
		}
		runFinishes.WithLabelValues(job, outcome).Inc()
		activeRuns.Dec()
	}
}

func IncStopRequest(job string) {
	if regOK.Load() {
		runStops.WithLabelValues(job).Inc()
	}
}

func ObserveRunDuration(job string, seconds float64) {
	if regOK.Load() {
		runDuration.WithLabelValues(job).Observe(seconds)
	}
}

func StreamOpened() {
	if regOK.Load() {
		openStreams.Inc()
	}
}

func StreamClosed() {
	if regOK.Load() {
		openStreams.Dec()
	}
}
