package job

import (
	"fmt"
	"slices"
	"strings"
)

// Request is the client's launch payload.
type Request struct {
	Job   string `json:"job"`
	Mode  string `json:"mode"`  // "dry" or "live"
	Debug bool   `json:"debug"` // verbose script output
	State string `json:"state"` // delta state scope, e.g. "tx"
	LocID string `json:"locId"` // CRM location id
	Kind  string `json:"kind"`
}

// ValidationError marks a launch request the endpoint must reject before any
// run record exists.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationErrf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// Definition maps a job name to a concrete executable script.
type Definition struct {
	Name       string   `toml:"name" mapstructure:"name"`
	Script     string   `toml:"script" mapstructure:"script"`
	Args       []string `toml:"args" mapstructure:"args"`
	WorkDir    string   `toml:"workdir" mapstructure:"workdir"`
	Env        []string `toml:"env" mapstructure:"env"`
	NeedsLocID bool     `toml:"needs_loc_id" mapstructure:"needs_loc_id"`
	NeedsState bool     `toml:"needs_state" mapstructure:"needs_state"`
	Kinds      []string `toml:"kinds" mapstructure:"kinds"` // allowed kinds; empty = any
}

// Catalog resolves job names to definitions.
type Catalog struct {
	defs map[string]Definition
}

func NewCatalog(defs []Definition) *Catalog {
	m := make(map[string]Definition, len(defs))
	for _, d := range defs {
		if d.Name == "" {
			continue
		}
		m[d.Name] = d
	}
	return &Catalog{defs: m}
}

// Names lists the registered job names.
func (c *Catalog) Names() []string {
	out := make([]string, 0, len(c.defs))
	for name := range c.defs {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

// Resolve validates the request against the catalog and returns the matching
// definition. All failures here happen before a run record is created.
func (c *Catalog) Resolve(req Request) (Definition, error) {
	name := strings.TrimSpace(req.Job)
	if name == "" {
		return Definition{}, validationErrf("job is required")
	}
	def, ok := c.defs[name]
	if !ok {
		return Definition{}, validationErrf("unknown job %q", name)
	}
	if req.Mode != "" && req.Mode != "dry" && req.Mode != "live" {
		return Definition{}, validationErrf("invalid mode %q: must be dry or live", req.Mode)
	}
	if def.NeedsLocID && strings.TrimSpace(req.LocID) == "" {
		return Definition{}, validationErrf("job %q requires locId", name)
	}
	if def.NeedsState && strings.TrimSpace(req.State) == "" {
		return Definition{}, validationErrf("job %q requires state", name)
	}
	if req.Kind != "" && len(def.Kinds) > 0 && !slices.Contains(def.Kinds, req.Kind) {
		return Definition{}, validationErrf("job %q does not support kind %q", name, req.Kind)
	}
	return def, nil
}

// Overrides builds the per-run environment entries derived from the request.
func (req Request) Overrides() []string {
	mode := req.Mode
	if mode == "" {
		mode = "dry"
	}
	out := []string{"MODE=" + mode}
	if req.Debug {
		out = append(out, "DEBUG=true")
	}
	if req.LocID != "" {
		out = append(out, "LOC_ID="+req.LocID)
	}
	if req.Kind != "" {
		out = append(out, "KIND="+req.Kind)
	}
	if req.State != "" {
		out = append(out, "STATE="+req.State, "DELTA_STATE="+req.State)
	}
	return out
}
