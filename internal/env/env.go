package env

import (
	"os"
	"path/filepath"
	"strings"
)

type Var map[string]string

// Env composes the environment handed to spawned job processes:
// OS environment as the base, then values loaded from repo .env files,
// then per-job overrides.
type Env struct {
	Var Var // file/global variables (K->V)
	env Var // cached base from OS environment
}

func New() *Env {
	return &Env{Var: make(Var)}
}

// FromOS caches the current process environment as the base.
func (e *Env) FromOS() {
	base := make(Var)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			if k == "" {
				continue
			}
			base[k] = kv[i+1:]
		}
	}
	e.env = base
}

// Set sets a global variable K=V.
func (e *Env) Set(k, v string) {
	if e.Var == nil {
		e.Var = make(Var)
	}
	e.Var[k] = v
}

// LoadFiles reads simple KEY=VALUE env files in order; later files override
// earlier ones. Missing files are skipped so `.env.local` stays optional.
func (e *Env) LoadFiles(paths ...string) error {
	for _, p := range paths {
		pairs, err := ParseFile(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return err
		}
		for k, v := range pairs {
			e.Set(k, v)
		}
	}
	return nil
}

// Merge composes the final environment list applying order:
// base = OS env (or cached), then file/global vars, then perJob "K=V"
// overrides. ${VAR} expansion is performed against the composed map
// (single pass, no recursion).
func (e *Env) Merge(perJob []string) []string {
	if e.env == nil {
		e.FromOS()
	}
	m := make(Var, len(e.env)+len(e.Var)+len(perJob))
	for k, v := range e.env {
		m[k] = v
	}
	for k, v := range e.Var {
		if k == "" {
			continue
		}
		m[k] = v
	}
	for _, kv := range perJob {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			if k == "" {
				continue
			}
			m[k] = kv[i+1:]
		}
	}
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+expand(v, m))
	}
	return out
}

// ParseFile parses a KEY=VALUE env file. Blank lines and #-comments are
// ignored; a leading "export " is tolerated and single/double quotes around
// values are stripped.
func ParseFile(path string) (Var, error) {
	b, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	m := make(Var)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")
		i := strings.IndexByte(line, '=')
		if i < 0 {
			continue
		}
		k := strings.TrimSpace(line[:i])
		v := strings.TrimSpace(line[i+1:])
		if n := len(v); n >= 2 {
			if (v[0] == '\'' && v[n-1] == '\'') || (v[0] == '"' && v[n-1] == '"') {
				v = v[1 : n-1]
			}
		}
		if k != "" {
			m[k] = v
		}
	}
	return m, nil
}

func expand(s string, m Var) string {
	if !strings.Contains(s, "${") {
		return s
	}
	res := s
	for k, v := range m {
		res = strings.ReplaceAll(res, "${"+k+"}", v)
	}
	return res
}
