package history

import (
	"context"
	"time"
)

// EventType defines the kind of run lifecycle event.
type EventType string

const (
	EventStarted  EventType = "started"
	EventFinished EventType = "finished"
)

// Event is a run lifecycle record exported to external audit/analytics
// systems. Export is best-effort and never blocks the run itself.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	RunID      string    `json:"run_id"`
	Job        string    `json:"job"`
	Mode       string    `json:"mode,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	Stopped    bool      `json:"stopped,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Sink is a destination for run history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
