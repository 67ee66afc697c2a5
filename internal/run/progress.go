package run

import (
	"encoding/json"
	"strings"
)

// Job scripts multiplex structured progress payloads into their plain-text
// output by prefixing a line with one of these markers (trailing space
// included). The JSON document after the marker is owned by the scripts and
// passed through opaquely.
const (
	ProgressInitPrefix = "__PROGRESS_INIT__ "
	ProgressPrefix     = "__PROGRESS__ "
	ProgressEndPrefix  = "__PROGRESS_END__ "
)

// ParseProgress reports whether the line is a progress message and, if so,
// returns its raw JSON payload. A line whose prefix matches but whose
// remainder is not valid JSON is not a progress message; the caller forwards
// it as a plain line so no output is ever dropped.
func ParseProgress(line string) (payload string, ok bool) {
	var rest string
	switch {
	case strings.HasPrefix(line, ProgressInitPrefix):
		rest = line[len(ProgressInitPrefix):]
	case strings.HasPrefix(line, ProgressPrefix):
		rest = line[len(ProgressPrefix):]
	case strings.HasPrefix(line, ProgressEndPrefix):
		rest = line[len(ProgressEndPrefix):]
	default:
		return "", false
	}
	if !json.Valid([]byte(rest)) {
		return "", false
	}
	return rest, true
}
