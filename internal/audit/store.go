// Package audit keeps an append-only history of rotation runs in an embedded
// libSQL database. The out-of-scope dashboard reads this history; the
// pipeline only appends.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/vaultsmith/vaultsmith/pkg/schema"
)

// Notifier status values recorded per run.
const (
	NotifierOK      = "ok"
	NotifierFailed  = "failed"
	NotifierSkipped = "skipped"
)

// RotationRun is one row of rotation history.
type RotationRun struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	VaultPath      string
	Rotated        int
	Failed         int
	Checked        int
	NotifierStatus string
	Error          string
}

// Log is the rotation-run audit store.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the audit database at the given path and applies
// pending migrations. The path should be a file URI, e.g. "file:audit.db".
func Open(ctx context.Context, dbPath string) (*Log, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Apply connection-level PRAGMAs. Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, schema.NewErrorf(schema.ErrCodeStore, "audit migrations: %s", err.Error()).WithCause(err)
	}
	return &Log{db: db}, nil
}

// Close closes the database.
func (l *Log) Close() error { return l.db.Close() }

// AppendRun records one finished rotation run.
func (l *Log) AppendRun(ctx context.Context, run *RotationRun) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO rotation_runs (id, started_at, finished_at, vault_path, rotated, failed, checked, notifier_status, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.VaultPath,
		run.Rotated, run.Failed, run.Checked, run.NotifierStatus, nullableString(run.Error),
	)
	if err != nil {
		return schema.NewErrorf(schema.ErrCodeStore, "append rotation run: %s", err.Error()).WithCause(err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (l *Log) ListRuns(ctx context.Context, limit int) ([]*RotationRun, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, vault_path, rotated, failed, checked, notifier_status, COALESCE(error, '')
		 FROM rotation_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeStore, "list rotation runs: %s", err.Error()).WithCause(err)
	}
	defer rows.Close()

	var runs []*RotationRun
	for rows.Next() {
		var run RotationRun
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.VaultPath,
			&run.Rotated, &run.Failed, &run.Checked, &run.NotifierStatus, &run.Error); err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeStore, "scan rotation run: %s", err.Error()).WithCause(err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
