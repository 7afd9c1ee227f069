// Package sqlite provides a SQLite-backed implementation of
// workflowlog.Repository.
//
// WAL mode is enabled on Open so that readers never block the writer.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jcmexdev/storefront-fulfillment/internal/workflow/workflowlog"

	// Pure-Go driver, no CGO.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup. The table is append-only.
const schema = `
CREATE TABLE IF NOT EXISTS workflow_logs (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    -- usually the order ID; one row per transition
    workflow_id     TEXT        NOT NULL,
    status          TEXT        NOT NULL,
    current_step    TEXT        NOT NULL DEFAULT '',
    error_messages  TEXT        NOT NULL DEFAULT '[]',
    trace_id        TEXT        NOT NULL DEFAULT '',
    span_id         TEXT        NOT NULL DEFAULT '',
    -- RFC3339 as TEXT
    updated_at      TEXT        NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_workflow_logs_workflow_id ON workflow_logs(workflow_id, updated_at);
CREATE INDEX IF NOT EXISTS idx_workflow_logs_trace_id ON workflow_logs(trace_id);
`

var _ workflowlog.Repository = (*Repository)(nil)

type Repository struct {
	db *sqlx.DB
}

// row mirrors the table; timestamps are stored as TEXT.
type row struct {
	workflowlog.Entry
	UpdatedAt string `db:"updated_at"`
}

// Open opens (or creates) the SQLite database at path and applies the schema.
//
//	repo, err := sqlite.Open("./data/workflow.db")
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)", path)

	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save inserts a new entry. It is safe to call concurrently.
func (r *Repository) Save(ctx context.Context, entry *workflowlog.Entry) error {
	const q = `
		INSERT INTO workflow_logs
			(workflow_id, status, current_step, error_messages, trace_id, span_id, updated_at)
		VALUES
			(:workflow_id, :status, :current_step, :error_messages, :trace_id, :span_id, :updated_at)`

	rec := row{Entry: *entry, UpdatedAt: formatTime(entry.UpdatedAt)}
	if _, err := r.db.NamedExecContext(ctx, q, rec); err != nil {
		return fmt.Errorf("sqlite: save workflow log for %q: %w", entry.WorkflowID, err)
	}
	return nil
}

// Latest returns the most recent entry for a workflow.
func (r *Repository) Latest(ctx context.Context, workflowID string) (*workflowlog.Entry, error) {
	const q = `
		SELECT workflow_id, status, current_step, error_messages, trace_id, span_id, updated_at
		FROM   workflow_logs
		WHERE  workflow_id = ?
		ORDER  BY updated_at DESC, id DESC
		LIMIT  1`

	var rec row
	err := r.db.GetContext(ctx, &rec, q, workflowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sqlite: workflow %q not found", workflowID)
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: latest for %q: %w", workflowID, err)
	}

	entry := rec.Entry
	entry.UpdatedAt, err = parseTime(rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
