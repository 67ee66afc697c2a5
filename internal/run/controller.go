package run

import (
	"fmt"
	"log/slog"
	"os/exec"
	"time"
)

// killGrace is how long a stop request waits after the graceful signal before
// escalating to a forceful kill.
const killGrace = 1200 * time.Millisecond

// Attach records the spawned process handle so later stop requests can signal
// it. No-op if the record is missing; the caller may race with TTL eviction.
func (g *Registry) Attach(id string, cmd *exec.Cmd) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.runs[id]
	if !ok {
		return
	}
	rec.cmd = cmd
}

// AppendLine appends one output line to the record's buffer, applying the
// bounded trim. Appends after the terminal transition are dropped so a stream
// that saw the end event never misses output.
func (g *Registry) AppendLine(id, text string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.runs[id]
	if !ok || rec.finished {
		return
	}
	rec.appendLine(text)
}

// End marks the run finished with the given exit code. A non-zero exit with no
// recorded error synthesizes one, both on the record and as a visible log
// line. Calling End on an already-finished record is a no-op.
func (g *Registry) End(id string, exitCode int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.runs[id]
	if !ok || rec.finished {
		return
	}
	if exitCode != 0 && rec.errMsg == "" {
		rec.errMsg = fmt.Sprintf("Process exited with code %d", exitCode)
		rec.appendLine(rec.errMsg)
	}
	code := exitCode
	rec.exitCode = &code
	rec.finished = true
}

// Error records a failure message and appends it as a log line. When no
// process handle is attached there is nothing left to wait on, so the run is
// finalized immediately with exit code 1; otherwise the process's own exit is
// the authoritative terminal signal.
func (g *Registry) Error(id string, err error) {
	if err == nil {
		return
	}
	g.mu.Lock()
	rec, ok := g.runs[id]
	if !ok || rec.finished {
		g.mu.Unlock()
		return
	}
	rec.errMsg = err.Error()
	rec.appendLine(rec.errMsg)
	noProc := rec.cmd == nil || rec.cmd.Process == nil
	if noProc {
		code := 1
		rec.exitCode = &code
		rec.finished = true
	}
	g.mu.Unlock()
}

// Stop requests cancellation of a running job: marks the record stopped,
// appends a visible line, signals the process group and escalates to a kill
// after the grace window if the run has not reached its terminal state.
// Returns false for unknown ids. Stop is requested, not confirmed; callers
// observe the finished transition via the stream.
func (g *Registry) Stop(id string) bool {
	g.mu.Lock()
	rec, ok := g.runs[id]
	if !ok {
		g.mu.Unlock()
		return false
	}
	rec.stopped = true
	if !rec.finished {
		rec.appendLine("Stop requested")
	}
	cmd := rec.cmd
	finished := rec.finished
	g.mu.Unlock()

	if cmd == nil || cmd.Process == nil || finished {
		return true
	}

	if err := terminate(cmd); err != nil {
		slog.Debug("terminate signal failed", "run", id, "error", err)
	}
	go func() {
		time.Sleep(killGrace)
		snap, ok := g.Snapshot(id)
		if !ok || snap.Finished {
			return
		}
		if err := kill(cmd); err != nil {
			slog.Debug("kill signal failed", "run", id, "error", err)
		}
	}()
	return true
}
