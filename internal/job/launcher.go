package job

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/env"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/history"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/logger"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/metrics"
	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/run"
)

// Scanner buffer sizing for child output; long minified lines from build
// scripts can exceed bufio's default.
const maxLineBytes = 1 << 20

// Launcher spawns job processes and wires their output into the run registry.
type Launcher struct {
	registry *run.Registry
	catalog  *Catalog
	env      *env.Env
	logCfg   logger.Config
	sink     history.Sink // optional, best-effort
}

func NewLauncher(reg *run.Registry, cat *Catalog, e *env.Env, logCfg logger.Config, sink history.Sink) *Launcher {
	if e == nil {
		e = env.New()
	}
	return &Launcher{registry: reg, catalog: cat, env: e, logCfg: logCfg, sink: sink}
}

// Launch validates the request, creates a run record and starts the job
// process. The run id is returned as soon as the process has been started;
// everything after that is reported through the record, never through this
// call. A *ValidationError return means no record was created; any other
// error return carries a run id whose record already holds the failure.
func (l *Launcher) Launch(req Request) (string, error) {
	def, err := l.catalog.Resolve(req)
	if err != nil {
		return "", err
	}

	command := strings.TrimSpace(def.Script + " " + strings.Join(def.Args, " "))
	meta := map[string]string{
		"job":     def.Name,
		"mode":    modeOrDefault(req.Mode),
		"command": command,
	}
	if req.State != "" {
		meta["state"] = req.State
	}
	if req.LocID != "" {
		meta["locId"] = req.LocID
	}
	if req.Kind != "" {
		meta["kind"] = req.Kind
	}
	id := l.registry.Create(meta)

	cmd := exec.Command(def.Script, def.Args...) // #nosec G204 -- script paths come from operator config, not the request
	if def.WorkDir != "" {
		cmd.Dir = def.WorkDir
	}
	cmd.Env = l.env.Merge(append(append([]string{}, def.Env...), req.Overrides()...))
	setProcGroup(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		l.registry.Error(id, fmt.Errorf("stdout pipe: %w", err))
		return id, err
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		l.registry.Error(id, fmt.Errorf("stderr pipe: %w", err))
		return id, err
	}

	tee := l.logCfg.RunWriter(def.Name + "-" + id)

	started := time.Now()
	if err := cmd.Start(); err != nil {
		if tee != nil {
			_ = tee.Close()
		}
		err = fmt.Errorf("failed to start %s: %w", def.Script, err)
		l.registry.Error(id, err)
		return id, err
	}

	l.registry.Attach(id, cmd)
	l.registry.PatchMeta(id, map[string]string{"pid": strconv.Itoa(cmd.Process.Pid)})
	metrics.IncRunStart(def.Name)
	l.emit(history.Event{
		Type:       history.EventStarted,
		OccurredAt: started,
		RunID:      id,
		Job:        def.Name,
		Mode:       modeOrDefault(req.Mode),
	})
	slog.Info("job launched", "run", id, "job", def.Name, "pid", cmd.Process.Pid, "command", command)

	var wg sync.WaitGroup
	wg.Add(2)
	go l.scanLines(id, stdout, tee, &wg)
	go l.scanLines(id, stderr, tee, &wg)

	go func() {
		wg.Wait()
		err := cmd.Wait()
		code := exitCode(err)
		if code < 0 {
			// signaled or unknown: the original tracker treats a missing
			// code as a clean exit
			code = 0
		}
		l.registry.End(id, code)
		if tee != nil {
			_ = tee.Close()
		}

		snap, ok := l.registry.Snapshot(id)
		okRun := ok && snap.Error == ""
		metrics.IncRunFinish(def.Name, okRun)
		metrics.ObserveRunDuration(def.Name, time.Since(started).Seconds())
		ev := history.Event{
			Type:       history.EventFinished,
			OccurredAt: time.Now(),
			RunID:      id,
			Job:        def.Name,
			Mode:       modeOrDefault(req.Mode),
			ExitCode:   &code,
		}
		if ok {
			ev.Stopped = snap.Stopped
			ev.Error = snap.Error
		}
		l.emit(ev)
		slog.Info("job finished", "run", id, "job", def.Name, "exitCode", code, "duration", time.Since(started))
	}()

	return id, nil
}

func (l *Launcher) scanLines(id string, r io.Reader, tee io.Writer, wg *sync.WaitGroup) {
	defer wg.Done()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		line := sc.Text()
		l.registry.AppendLine(id, line)
		if tee != nil {
			_, _ = tee.Write(append([]byte(line), '\n'))
		}
	}
	if err := sc.Err(); err != nil {
		slog.Debug("output scan ended", "run", id, "error", err)
	}
}

func (l *Launcher) emit(e history.Event) {
	if l.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.sink.Send(ctx, e); err != nil {
			slog.Warn("history sink send failed", "run", e.RunID, "event", e.Type, "error", err)
		}
	}()
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	if ee, ok := err.(*exec.ExitError); ok {
		return ee.ExitCode()
	}
	return 1
}

func modeOrDefault(mode string) string {
	if mode == "" {
		return "dry"
	}
	return mode
}
