// Package jobs admits benchmark submissions and runs advanced jobs in the background.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sevigo/archnet/internal/core"
	"github.com/sevigo/archnet/internal/storage"
)

// Dispatcher is the submission entry point. It charges credits, records the
// job and either scores it inline (quick) or hands it to the executor
// (advanced).
type Dispatcher struct {
	store    storage.Store
	scorer   core.Scorer
	executor core.Executor
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store storage.Store, scorer core.Scorer, executor core.Executor, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		scorer:   scorer,
		executor: executor,
		logger:   logger,
	}
}

// Submit validates, debits, and creates a job, in that order. An advanced job
// is returned pending as soon as it is queued. A quick job is returned
// completed, or failed together with an error wrapping
// core.ErrExecutionFailure.
func (d *Dispatcher) Submit(ctx context.Context, email string, kind core.JobKind, params core.JobParams) (*core.Job, error) {
	params, err := ValidateSubmission(d.scorer, kind, params)
	if err != nil {
		return nil, err
	}

	cost := kind.Cost()
	if cost > 0 {
		remaining, err := d.store.TryDebit(ctx, email, cost)
		if err != nil {
			if errors.Is(err, core.ErrInsufficientBalance) {
				d.logger.Info("submission rejected, not enough credits", "user", email, "balance", remaining, "cost", cost)
			}
			return nil, err
		}
		d.logger.Info("credits debited for job", "user", email, "cost", cost, "remaining", remaining)
	}

	job := &core.Job{UserEmail: email, Kind: kind, Params: params}
	if err := d.store.CreateJob(ctx, job); err != nil {
		d.refund(ctx, email, cost)
		return nil, fmt.Errorf("failed to create job: %w", err)
	}
	d.logger.Info("job created", "job_id", job.ID, "user", email, "kind", kind, "dataset", params.Dataset)

	if kind == core.JobKindAdvanced {
		if err := d.executor.Enqueue(ctx, job.ID); err != nil {
			// The recovery sweep picks the job up later.
			d.logger.Warn("failed to enqueue advanced job, leaving it pending", "job_id", job.ID, "error", err)
		}
		return job, nil
	}

	return d.runInline(ctx, job)
}

func (d *Dispatcher) runInline(ctx context.Context, job *core.Job) (*core.Job, error) {
	result, err := d.scorer.Score(ctx, job.Params.Dataset, job.Kind)
	if err != nil {
		d.logger.Error("quick benchmark failed", "job_id", job.ID, "error", err)
		// The caller's context may be the reason the scorer stopped.
		failed, terr := d.store.TransitionJob(context.WithoutCancel(ctx), job.ID, core.JobStatusFailed, nil, err.Error())
		if terr != nil {
			return job, fmt.Errorf("%w: %w (marking job failed: %w)", core.ErrExecutionFailure, err, terr)
		}
		return failed, fmt.Errorf("%w: %w", core.ErrExecutionFailure, err)
	}

	completed, err := d.store.TransitionJob(ctx, job.ID, core.JobStatusCompleted, result, "")
	if err != nil {
		return job, fmt.Errorf("failed to complete job %d: %w", job.ID, err)
	}
	d.logger.Info("quick job completed", "job_id", job.ID, "processing_time", result.ProcessingTime)
	return completed, nil
}

// refund returns credits taken for a job that was never recorded.
func (d *Dispatcher) refund(ctx context.Context, email string, amount int) {
	if amount <= 0 {
		return
	}
	if _, err := d.store.Credit(context.WithoutCancel(ctx), email, amount); err != nil {
		d.logger.Error("failed to refund credits after job creation error", "user", email, "amount", amount, "error", err)
	}
}
