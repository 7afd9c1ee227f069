// Package workflowlog defines the durable audit trail of workflow executions.
//
// Every state transition of a workflow (a shipment booking, for instance) is
// appended as one row. The rows answer "where did this execution stop and
// why", and carry the trace and span IDs so a row can be joined with the
// distributed trace of the request that produced it.
package workflowlog

import "time"

// Status represents the lifecycle state of a workflow execution.
type Status string

const (
	StatusStarted      Status = "STARTED"
	StatusStepDone     Status = "STEP_DONE"
	StatusCompleted    Status = "COMPLETED"
	StatusCompensating Status = "COMPENSATING"
	StatusFailed       Status = "FAILED"
)

// Entry is a single row in the workflow_logs table.
type Entry struct {
	WorkflowID string `db:"workflow_id"`
	Status     Status `db:"status"`

	// CurrentStep is the step that was just executed or failed.
	CurrentStep string `db:"current_step"`

	// ErrorMessages is a JSON array, one element per failed step or
	// compensation.
	ErrorMessages string `db:"error_messages"`

	TraceID   string    `db:"trace_id"`
	SpanID    string    `db:"span_id"`
	UpdatedAt time.Time `db:"-"`
}
