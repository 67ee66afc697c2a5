package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "opsdash.toml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestLoadEmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8787" || cfg.Server.BasePath != "/api" {
		t.Fatalf("server defaults: %+v", cfg.Server)
	}
	if cfg.Registry.TTL != 30*time.Minute {
		t.Fatalf("registry ttl default: %v", cfg.Registry.TTL)
	}
}

func TestLoadFullFile(t *testing.T) {
	p := writeConfig(t, `
[server]
addr = ":9000"
base_path = "/dash"

[log]
level = "debug"
file = "/tmp/opsdash.log"

[registry]
ttl = "10m"

[history]
dsn = "sqlite:///tmp/history.db"

[upstream.google]
client_id = "cid"
ga4_property = "properties/42"

[upstream.cache]
dir = "/tmp/cache"
ttl = "5m"

[[jobs]]
name = "sync-contacts"
script = "./scripts/sync-contacts.sh"
needs_loc_id = true
kinds = ["full", "delta"]

[[jobs]]
name = "rebuild-index"
script = "./scripts/rebuild.sh"
args = ["--fast"]
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":9000" || cfg.Server.BasePath != "/dash" {
		t.Fatalf("server: %+v", cfg.Server)
	}
	if cfg.Log.Level != "debug" || cfg.Log.File != "/tmp/opsdash.log" {
		t.Fatalf("log: %+v", cfg.Log)
	}
	if cfg.Registry.TTL != 10*time.Minute {
		t.Fatalf("registry ttl: %v", cfg.Registry.TTL)
	}
	if cfg.History.DSN != "sqlite:///tmp/history.db" {
		t.Fatalf("history dsn: %q", cfg.History.DSN)
	}
	if cfg.Upstream.Google.GA4Property != "properties/42" {
		t.Fatalf("google: %+v", cfg.Upstream.Google)
	}
	if cfg.Upstream.Cache.TTL != 5*time.Minute {
		t.Fatalf("cache ttl: %v", cfg.Upstream.Cache.TTL)
	}
	if len(cfg.Jobs) != 2 || cfg.Jobs[0].Name != "sync-contacts" || !cfg.Jobs[0].NeedsLocID {
		t.Fatalf("jobs: %+v", cfg.Jobs)
	}
	if len(cfg.Jobs[1].Args) != 1 || cfg.Jobs[1].Args[0] != "--fast" {
		t.Fatalf("job args: %+v", cfg.Jobs[1])
	}
}

func TestLoadRejectsDuplicateJob(t *testing.T) {
	p := writeConfig(t, `
[[jobs]]
name = "a"
script = "/bin/true"

[[jobs]]
name = "a"
script = "/bin/true"
`)
	if _, err := Load(p); err == nil {
		t.Fatal("duplicate job accepted")
	}
}

func TestLoadRejectsJobWithoutScript(t *testing.T) {
	p := writeConfig(t, `
[[jobs]]
name = "broken"
`)
	if _, err := Load(p); err == nil {
		t.Fatal("job without script accepted")
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.toml")); err == nil {
		t.Fatal("missing file accepted")
	}
}
