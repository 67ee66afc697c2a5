//go:build !windows

package run

import (
	"os/exec"
	"syscall"
	"testing"
	"time"
)

// Spawns a real child and verifies staged cancellation reaches the terminal
// state within the grace window.
func TestStopSignalsRunningProcess(t *testing.T) {
	g := NewRegistry()
	id := g.Create(map[string]string{"job": "sleeper"})

	cmd := exec.Command("sleep", "30")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	g.Attach(id, cmd)
	done := make(chan struct{})
	go func() {
		err := cmd.Wait()
		code := 0
		if err != nil {
			code = 1
			if ee, ok := err.(*exec.ExitError); ok {
				code = ee.ExitCode()
			}
		}
		g.End(id, code)
		close(done)
	}()

	if !g.Stop(id) {
		t.Fatal("Stop returned false for running process")
	}

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		_ = kill(cmd)
		t.Fatal("process did not exit within grace window")
	}

	snap, _ := g.Snapshot(id)
	if !snap.Stopped || !snap.Finished {
		t.Fatalf("want stopped and finished, got stopped=%v finished=%v", snap.Stopped, snap.Finished)
	}
	lines, _, _ := g.LinesSince(id, 0)
	if len(lines) == 0 || lines[0] != "Stop requested" {
		t.Fatalf("stop line missing: %v", lines)
	}
}
