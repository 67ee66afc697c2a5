package run

import (
	"os/exec"
	"time"
)

// Buffer watermarks for a record's line buffer. When the buffer grows past
// highWater it is trimmed from the front down to lowWater, preserving recency.
const (
	highWater = 5000
	lowWater  = 4000
)

// Record tracks one job execution from launch to termination.
// All fields are guarded by the owning Registry's mutex; consumers only see
// copies taken through Registry accessors.
type Record struct {
	ID        string
	CreatedAt time.Time
	Meta      map[string]string

	lines    []string
	stopped  bool
	finished bool
	exitCode *int
	errMsg   string

	// cmd is owned by the record once attached. It is used for signaling only;
	// the stream side never touches it.
	cmd *exec.Cmd
}

// Snapshot is a read-only copy of a record's terminal state handed to the
// stream endpoint.
type Snapshot struct {
	ID       string
	Meta     map[string]string
	Stopped  bool
	Finished bool
	ExitCode *int
	Error    string
}

func (r *Record) appendLine(text string) {
	r.lines = append(r.lines, text)
	if len(r.lines) > highWater {
		// drop from the front, keep the newest lowWater lines
		kept := make([]string, lowWater)
		copy(kept, r.lines[len(r.lines)-lowWater:])
		r.lines = kept
	}
}

func (r *Record) snapshot() Snapshot {
	meta := make(map[string]string, len(r.Meta))
	for k, v := range r.Meta {
		meta[k] = v
	}
	var code *int
	if r.exitCode != nil {
		c := *r.exitCode
		code = &c
	}
	return Snapshot{
		ID:       r.ID,
		Meta:     meta,
		Stopped:  r.stopped,
		Finished: r.finished,
		ExitCode: code,
		Error:    r.errMsg,
	}
}
