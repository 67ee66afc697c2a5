//go:build !windows

package job

import (
	"strings"
	"testing"
	"time"

	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/env"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/logger"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/run"
)

func launcherWith(defs ...Definition) (*Launcher, *run.Registry) {
	reg := run.NewRegistry()
	return NewLauncher(reg, NewCatalog(defs), env.New(), logger.Config{}, nil), reg
}

func waitFinished(t *testing.T, reg *run.Registry, id string) run.Snapshot {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if snap, ok := reg.Snapshot(id); ok && snap.Finished {
			return snap
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("run %s did not finish", id)
	return run.Snapshot{}
}

func TestLaunchCapturesOutput(t *testing.T) {
	l, reg := launcherWith(Definition{Name: "hello", Script: "/bin/sh", Args: []string{"-c", "echo hello"}})
	id, err := l.Launch(Request{Job: "hello"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	snap := waitFinished(t, reg, id)
	if snap.ExitCode == nil || *snap.ExitCode != 0 {
		t.Fatalf("exit code: %v", snap.ExitCode)
	}
	if snap.Error != "" {
		t.Fatalf("unexpected error: %q", snap.Error)
	}
	lines, _, _ := reg.LinesSince(id, 0)
	if len(lines) != 1 || lines[0] != "hello" {
		t.Fatalf("lines: %v", lines)
	}
	if snap.Meta["job"] != "hello" || snap.Meta["command"] == "" || snap.Meta["pid"] == "" {
		t.Fatalf("meta incomplete: %v", snap.Meta)
	}
}

func TestLaunchNonZeroExitSynthesizesError(t *testing.T) {
	l, reg := launcherWith(Definition{Name: "fail", Script: "/bin/sh", Args: []string{"-c", "exit 2"}})
	id, err := l.Launch(Request{Job: "fail"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	snap := waitFinished(t, reg, id)
	if *snap.ExitCode != 2 {
		t.Fatalf("exit code: %d", *snap.ExitCode)
	}
	if snap.Error != "Process exited with code 2" {
		t.Fatalf("error: %q", snap.Error)
	}
	lines, _, _ := reg.LinesSince(id, 0)
	if len(lines) == 0 || lines[len(lines)-1] != "Process exited with code 2" {
		t.Fatalf("terminal line missing: %v", lines)
	}
}

func TestLaunchInterleavesStderr(t *testing.T) {
	l, reg := launcherWith(Definition{Name: "both", Script: "/bin/sh", Args: []string{"-c", "echo out; echo err 1>&2"}})
	id, err := l.Launch(Request{Job: "both"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitFinished(t, reg, id)
	lines, _, _ := reg.LinesSince(id, 0)
	joined := strings.Join(lines, "\n")
	if !strings.Contains(joined, "out") || !strings.Contains(joined, "err") {
		t.Fatalf("stdout/stderr not both captured: %v", lines)
	}
}

func TestLaunchSpawnFailureFinalizes(t *testing.T) {
	l, reg := launcherWith(Definition{Name: "ghost", Script: "/nonexistent/bin/ghost"})
	id, err := l.Launch(Request{Job: "ghost"})
	if err == nil {
		t.Fatal("expected spawn error")
	}
	if id == "" {
		t.Fatal("spawn failure must still return the allocated run id")
	}
	snap, ok := reg.Snapshot(id)
	if !ok || !snap.Finished {
		t.Fatal("spawn failure must finalize the record")
	}
	if snap.ExitCode == nil || *snap.ExitCode != 1 {
		t.Fatalf("want exit 1, got %v", snap.ExitCode)
	}
	if snap.Error == "" {
		t.Fatal("spawn failure must record an error")
	}
}

func TestLaunchValidationCreatesNoRecord(t *testing.T) {
	l, reg := launcherWith(Definition{Name: "build", Script: "/bin/true"})
	id, err := l.Launch(Request{Job: "unknown"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if id != "" {
		t.Fatalf("validation failure allocated a run id: %q", id)
	}
	if reg.Len() != 0 {
		t.Fatal("validation failure created a record")
	}
}

func TestLaunchPassesEnvOverrides(t *testing.T) {
	l, reg := launcherWith(Definition{Name: "envcheck", Script: "/bin/sh", Args: []string{"-c", `echo "mode=$MODE state=$DELTA_STATE"`}})
	id, err := l.Launch(Request{Job: "envcheck", Mode: "live", State: "tx"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	waitFinished(t, reg, id)
	lines, _, _ := reg.LinesSince(id, 0)
	if len(lines) == 0 || lines[0] != "mode=live state=tx" {
		t.Fatalf("env overrides not applied: %v", lines)
	}
}

func TestLaunchThenStop(t *testing.T) {
	l, reg := launcherWith(Definition{Name: "sleeper", Script: "/bin/sh", Args: []string{"-c", "echo started; sleep 30"}})
	id, err := l.Launch(Request{Job: "sleeper"})
	if err != nil {
		t.Fatalf("launch: %v", err)
	}
	// wait for the child to come up
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, total, _ := reg.LinesSince(id, 0); total > 0 {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if !reg.Stop(id) {
		t.Fatal("stop rejected")
	}
	snap := waitFinished(t, reg, id)
	if !snap.Stopped {
		t.Fatal("stopped flag missing")
	}
	lines, _, _ := reg.LinesSince(id, 0)
	if !strings.Contains(strings.Join(lines, "\n"), "Stop requested") {
		t.Fatalf("stop line missing: %v", lines)
	}
}
