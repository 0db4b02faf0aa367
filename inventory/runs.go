package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Track records a run of kind around fn: a "running" row first, then
// "succeeded" or "failed" with the row count fn reports. Failing to record
// the run does not fail it; fn's error is what Track returns.
func Track(ctx context.Context, rec RunRecorder, id string, kind RunKind, fn func(ctx context.Context) (int64, error)) (Run, error) {
	if id == "" {
		id = NewRunID()
	}
	run := Run{
		ID:        id,
		Kind:      kind,
		Status:    RunRunning,
		StartedAt: time.Now().UTC(),
	}
	if rec != nil {
		_ = rec.SaveRun(ctx, run)
	}

	rows, err := fn(ctx)

	done := time.Now().UTC()
	run.CompletedAt = &done
	run.Rows = rows
	run.Status = RunSucceeded
	if err != nil {
		run.Status = RunFailed
		run.Error = err.Error()
	}
	if rec != nil {
		// The run context may already be past its deadline.
		_ = rec.SaveRun(context.WithoutCancel(ctx), run)
	}
	return run, err
}
