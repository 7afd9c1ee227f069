// Package workflow runs a sequence of steps and undoes the completed ones,
// newest first, when a later step fails.
package workflow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jcmexdev/storefront-fulfillment/internal/workflow/workflowlog"
)

// Step represents a single unit of work in a workflow.
// Each step must have a compensating action to undo its effects.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
	Compensate(ctx context.Context) error
}

// Orchestrator manages the execution of a collection of Steps.
type Orchestrator struct {
	id    string
	steps []Step
	log   workflowlog.Repository // nil-safe
}

// NewOrchestrator builds an orchestrator for one execution. id ties the log
// rows together, usually the order ID.
func NewOrchestrator(id string, steps []Step, log workflowlog.Repository) *Orchestrator {
	return &Orchestrator{id: id, steps: steps, log: log}
}

// Start runs the steps sequentially.
// If a step fails, it triggers the compensation of all previously successful steps.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.record(ctx, workflowlog.StatusStarted, "", nil)

	var done []Step
	for _, step := range o.steps {
		slog.DebugContext(ctx, "executing step", "workflow_id", o.id, "step", step.Name())
		if err := step.Execute(ctx); err != nil {
			slog.ErrorContext(ctx, "step failed, compensating", "workflow_id", o.id, "step", step.Name(), "error", err)
			errs := []string{fmt.Sprintf("step %s failed: %v", step.Name(), err)}
			o.record(ctx, workflowlog.StatusCompensating, step.Name(), errs)

			errs = append(errs, o.rollback(ctx, done)...)
			o.record(ctx, workflowlog.StatusFailed, step.Name(), errs)
			return err
		}
		done = append(done, step)
		o.record(ctx, workflowlog.StatusStepDone, step.Name(), nil)
	}

	o.record(ctx, workflowlog.StatusCompleted, "", nil)
	return nil
}

func (o *Orchestrator) rollback(ctx context.Context, steps []Step) []string {
	var errs []string
	for i := len(steps) - 1; i >= 0; i-- {
		step := steps[i]
		if err := step.Compensate(ctx); err != nil {
			slog.ErrorContext(ctx, "CRITICAL: failed to compensate step", "workflow_id", o.id, "step", step.Name(), "error", err)
			errs = append(errs, fmt.Sprintf("compensation of %s failed: %v", step.Name(), err))
		}
	}
	return errs
}

func (o *Orchestrator) record(ctx context.Context, status workflowlog.Status, step string, errs []string) {
	if o.log == nil {
		return
	}
	entry := workflowlog.NewEntry(ctx, o.id, status, step, errs)
	if err := o.log.Save(ctx, entry); err != nil {
		slog.WarnContext(ctx, "workflow log write failed", "workflow_id", o.id, "status", status, "error", err)
	}
}

// FuncStep adapts a pair of closures to the Step interface.
type FuncStep struct {
	StepName string
	Do       func(ctx context.Context) error
	Undo     func(ctx context.Context) error
}

func (s FuncStep) Name() string { return s.StepName }

func (s FuncStep) Execute(ctx context.Context) error { return s.Do(ctx) }

func (s FuncStep) Compensate(ctx context.Context) error {
	if s.Undo == nil {
		return nil
	}
	return s.Undo(ctx)
}
