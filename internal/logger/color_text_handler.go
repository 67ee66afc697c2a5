package logger

import (
	"context"
	"io"
	"log/slog"
)

// ColorTextHandler wraps slog.TextHandler to prefix messages with a short
// ANSI-colored level tag for console output. The file handler stays plain
// JSON; color never reaches rotated logs.
type ColorTextHandler struct {
	*slog.TextHandler
}

// levelTags maps levels to fixed-width bracketed tags so console lines align.
var levelTags = map[slog.Level]string{
	slog.LevelDebug: "\033[36m[DBG]\033[0m", // cyan
	slog.LevelInfo:  "\033[32m[INF]\033[0m", // green
	slog.LevelWarn:  "\033[33m[WRN]\033[0m", // yellow
	slog.LevelError: "\033[31m[ERR]\033[0m", // red
}

func NewColorTextHandler(w io.Writer, opts *slog.HandlerOptions) *ColorTextHandler {
	return &ColorTextHandler{TextHandler: slog.NewTextHandler(w, opts)}
}

// Handle implements slog.Handler.
func (h *ColorTextHandler) Handle(ctx context.Context, r slog.Record) error {
	tag, ok := levelTags[r.Level]
	if !ok {
		tag = "[" + r.Level.String() + "]"
	}
	r.Message = tag + " " + r.Message
	return h.TextHandler.Handle(ctx, r)
}

// fanout duplicates records to multiple handlers (console + file).
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
