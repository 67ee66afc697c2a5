package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/mydripnurse-lab/devasks-delta-system-sub001/internal/history"
)

// Sink writes run history events to a SQLite database.
type Sink struct {
	db *sql.DB
}

// New creates a new SQLite history sink.
// DSN format:
//   - "sqlite:///path/to/file.db"
//   - "sqlite://:memory:"
//   - "/path/to/file.db" (without prefix)
//   - ":memory:" (in-memory database)
func New(dsn string) (*Sink, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("empty SQLite DSN")
	}
	if strings.HasPrefix(strings.ToLower(dsn), "sqlite://") {
		dsn = strings.TrimPrefix(dsn, "sqlite://")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	sink := &Sink{db: db}
	if err := sink.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sink, nil
}

func (s *Sink) ensureSchema(ctx context.Context) error {
	// Simple audit table, no primary key.
	stmt := `CREATE TABLE IF NOT EXISTS run_history(
		occurred_at TIMESTAMP NOT NULL DEFAULT (CURRENT_TIMESTAMP),
		event TEXT NOT NULL,
		run_id TEXT NOT NULL,
		job TEXT NOT NULL,
		mode TEXT,
		exit_code INTEGER,
		stopped BOOLEAN NOT NULL DEFAULT 0,
		error TEXT
	);`
	if _, err := s.db.ExecContext(ctx, stmt); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_run_history_run_id ON run_history(run_id);`)
	return err
}

func (s *Sink) Send(ctx context.Context, e history.Event) error {
	exitCode := any(nil)
	if e.ExitCode != nil {
		exitCode = *e.ExitCode
	}
	errMsg := any(nil)
	if e.Error != "" {
		errMsg = e.Error
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO run_history(occurred_at, event, run_id, job, mode, exit_code, stopped, error)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?);`,
		e.OccurredAt.UTC(), string(e.Type), e.RunID, e.Job, e.Mode, exitCode, e.Stopped, errMsg)
	return err
}

func (s *Sink) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
