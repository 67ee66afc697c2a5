package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Rotation defaults for file-backed logs.
const (
	DefaultMaxSizeMB  = 10
	DefaultMaxBackups = 3
	DefaultMaxAgeDays = 7
)

// Config describes the server's structured logging plus the directory used
// for per-run child output tees. Rotation parameters follow lumberjack
// semantics.
type Config struct {
	Level      string `toml:"level" mapstructure:"level"`             // debug|info|warn|error
	Format     string `toml:"format" mapstructure:"format"`           // text|json
	File       string `toml:"file" mapstructure:"file"`               // optional server log file
	RunLogDir  string `toml:"run_log_dir" mapstructure:"run_log_dir"` // optional per-run output tee dir
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

// Setup installs the process-wide slog default according to cfg.
// Console output goes through the color handler; when File is set, a
// rotating JSON handler writes there as well.
func Setup(cfg Config) error {
	level := parseLevel(cfg.Level)
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		h = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		h = NewColorTextHandler(os.Stderr, opts)
	}

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0o750); err != nil {
			return fmt.Errorf("create log dir: %w", err)
		}
		fileW := &lj.Logger{
			Filename:   cfg.File,
			MaxSize:    valOr(cfg.MaxSizeMB, DefaultMaxSizeMB),
			MaxBackups: valOr(cfg.MaxBackups, DefaultMaxBackups),
			MaxAge:     valOr(cfg.MaxAgeDays, DefaultMaxAgeDays),
			Compress:   cfg.Compress,
		}
		h = fanout{h, slog.NewJSONHandler(fileW, opts)}
	}

	slog.SetDefault(slog.New(h))
	return nil
}

// RunWriter returns a rotating writer that tees one run's child output to
// RunLogDir/<name>.log, or nil when no dir is configured.
func (c Config) RunWriter(name string) io.WriteCloser {
	if c.RunLogDir == "" {
		return nil
	}
	_ = os.MkdirAll(c.RunLogDir, 0o750)
	return &lj.Logger{
		Filename:   filepath.Join(c.RunLogDir, name+".log"),
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func valOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
