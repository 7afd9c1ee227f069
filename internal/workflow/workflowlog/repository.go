package workflowlog

import "context"

// Repository persists workflow log entries. The table is append-only: each
// Save adds a row.
type Repository interface {
	Save(ctx context.Context, entry *Entry) error
	Latest(ctx context.Context, workflowID string) (*Entry, error)
}
