package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/metrics"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/run"
)

// streamPollInterval paces the registry poll loop. Polling decouples the
// stream connection from the process's output cadence and makes
// replay-from-offset per connection trivial.
const streamPollInterval = 800 * time.Millisecond

type endPayload struct {
	OK       bool    `json:"ok"`
	ExitCode *int    `json:"exitCode"`
	Error    *string `json:"error"`
}

// handleStream serves the SSE log/progress stream for one run. The response
// is always 200 once headers go out; an unknown run is reported in-band as a
// terminal end event with reason "not_found". Each connection tracks its own
// watermark into the run's line buffer, so concurrent viewers each replay the
// full backlog.
func (r *Router) handleStream(c *gin.Context) {
	id := c.Param("id")
	w := c.Writer

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	metrics.StreamOpened()
	defer metrics.StreamClosed()

	// reconnect hint precedes any named event
	_, _ = fmt.Fprint(w, "retry: 1500\n\n")
	writeEvent(w, "hello", jsonPayload(gin.H{"runId": id}))
	w.Flush()

	watermark := 0
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for {
		if done := r.streamTick(w, id, &watermark); done {
			return
		}
		select {
		case <-c.Request.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// streamTick runs one poll cycle: replay unseen lines, heartbeat, then check
// for the terminal state. Returns true once the end event has been written.
//
// The terminal snapshot is taken BEFORE the line read. Appends are dropped
// once a run is finished, so when the snapshot already says finished the line
// read that follows is guaranteed complete; reading lines first would let a
// finish that lands between the two reads strand its tail output behind an
// end event that closes the loop.
func (r *Router) streamTick(w gin.ResponseWriter, id string, watermark *int) bool {
	snap, ok := r.registry.Snapshot(id)
	if !ok {
		writeEvent(w, "end", jsonPayload(gin.H{"ok": false, "reason": "not_found"}))
		w.Flush()
		return true
	}
	lines, total, ok := r.registry.LinesSince(id, *watermark)
	if !ok {
		writeEvent(w, "end", jsonPayload(gin.H{"ok": false, "reason": "not_found"}))
		w.Flush()
		return true
	}
	for _, line := range lines {
		if payload, isProgress := run.ParseProgress(line); isProgress {
			// already-serialized JSON; forward as-is, not double-encoded
			writeEvent(w, "progress", payload)
		} else {
			writeEvent(w, "line", jsonPayload(line))
		}
	}
	*watermark = total

	writeEvent(w, "ping", jsonPayload(time.Now().UnixMilli()))

	if snap.Finished {
		end := endPayload{OK: snap.Error == "", ExitCode: snap.ExitCode}
		if snap.Error != "" {
			e := snap.Error
			end.Error = &e
		}
		writeEvent(w, "end", jsonPayload(end))
		w.Flush()
		return true
	}
	w.Flush()
	return false
}

func writeEvent(w io.Writer, name, payload string) {
	_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, payload)
}

func jsonPayload(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}
