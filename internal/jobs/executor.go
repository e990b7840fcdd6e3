package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sevigo/archnet/internal/config"
	"github.com/sevigo/archnet/internal/core"
	"github.com/sevigo/archnet/internal/storage"
)

// InterruptedMessage is recorded on jobs that were in flight when the process died.
const InterruptedMessage = "interrupted by restart"

const recoverBatch = core.MaxJobListLimit

const defaultLease = 5 * time.Minute

// Executor implements core.Executor with a pool of worker goroutines reading
// job ids from a bounded queue.
type Executor struct {
	store         storage.JobStore
	scorer        core.Scorer
	jobQueue      chan int64
	maxWorkers    int
	sweepInterval time.Duration
	staleAfter    time.Duration
	lease         time.Duration
	wg            sync.WaitGroup
	mu            sync.RWMutex // guards stopped against sends on a closed queue
	stopped       bool
	queuedMu      sync.Mutex
	queued        map[int64]struct{} // ids sitting in jobQueue
	logger        *slog.Logger
}

var _ core.Executor = (*Executor)(nil)

// NewExecutor starts the worker pool. If MaxWorkers or QueueSize is 0 or
// negative, it defaults to 1. A non-positive Lease defaults to five minutes.
func NewExecutor(store storage.JobStore, scorer core.Scorer, cfg *config.JobsConfig, logger *slog.Logger) *Executor {
	e := &Executor{
		store:         store,
		scorer:        scorer,
		jobQueue:      make(chan int64, max(cfg.QueueSize, 1)),
		maxWorkers:    max(cfg.MaxWorkers, 1),
		sweepInterval: cfg.SweepInterval,
		staleAfter:    cfg.StaleAfter,
		lease:         cfg.Lease,
		queued:        make(map[int64]struct{}),
		logger:        logger,
	}
	if e.lease <= 0 {
		e.lease = defaultLease
	}
	e.startWorkers()
	return e
}

func (e *Executor) startWorkers() {
	for i := range e.maxWorkers {
		e.wg.Add(1)
		go e.startWorker(i)
	}
}

func (e *Executor) startWorker(workerID int) {
	defer e.wg.Done()
	e.logger.Info("starting benchmark worker", "id", workerID)

	for jobID := range e.jobQueue {
		e.queuedMu.Lock()
		delete(e.queued, jobID)
		e.queuedMu.Unlock()

		if err := e.Execute(context.Background(), jobID); err != nil {
			e.logger.Error("benchmark job failed", "worker_id", workerID, "job_id", jobID, "error", err)
		}
	}

	e.logger.Info("shutting down benchmark worker", "id", workerID)
}

// Enqueue queues a job id without waiting. An id that is already waiting in
// the queue is accepted without taking a second slot. It returns
// core.ErrQueueFull when the queue is saturated or the executor is stopping.
func (e *Executor) Enqueue(_ context.Context, jobID int64) error {
	_, err := e.enqueue(jobID)
	return err
}

// enqueue reports whether jobID took a new slot in the queue.
func (e *Executor) enqueue(jobID int64) (bool, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.stopped {
		return false, fmt.Errorf("%w: executor is stopped", core.ErrQueueFull)
	}

	e.queuedMu.Lock()
	defer e.queuedMu.Unlock()
	if _, ok := e.queued[jobID]; ok {
		return false, nil
	}
	select {
	case e.jobQueue <- jobID:
		e.queued[jobID] = struct{}{}
		e.logger.Debug("advanced job queued", "job_id", jobID)
		return true, nil
	default:
		return false, fmt.Errorf("%w: cannot accept job %d", core.ErrQueueFull, jobID)
	}
}

// Execute runs one delivery of an advanced job. Quick jobs are scored inline
// by their submit request and are rejected with core.ErrValidation. A delivery
// for a job that already left pending is dropped. A scorer error marks the job
// failed; spent credits are not refunded.
func (e *Executor) Execute(ctx context.Context, jobID int64) error {
	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		return fmt.Errorf("failed to load job %d: %w", jobID, err)
	}
	if job.Kind != core.JobKindAdvanced {
		return fmt.Errorf("%w: job %d is a %s job and runs inline", core.ErrValidation, jobID, job.Kind)
	}

	job, err = e.store.TransitionJob(ctx, jobID, core.JobStatusProcessing, nil, "")
	if err != nil {
		if errors.Is(err, core.ErrInvalidTransition) {
			e.logger.Info("dropping duplicate job delivery", "job_id", jobID, "status", statusOf(job))
			return nil
		}
		return fmt.Errorf("failed to start job %d: %w", jobID, err)
	}

	e.logger.Info("processing benchmark job", "job_id", job.ID, "kind", job.Kind, "dataset", job.Params.Dataset)
	start := time.Now()

	result, err := e.scorer.Score(ctx, job.Params.Dataset, job.Kind)
	if err != nil {
		if _, terr := e.store.TransitionJob(context.WithoutCancel(ctx), jobID, core.JobStatusFailed, nil, err.Error()); terr != nil {
			e.logger.Error("failed to mark job failed", "job_id", jobID, "error", terr)
		}
		return fmt.Errorf("%w: job %d: %w", core.ErrExecutionFailure, jobID, err)
	}

	if _, err := e.store.TransitionJob(ctx, jobID, core.JobStatusCompleted, result, ""); err != nil {
		if errors.Is(err, core.ErrInvalidTransition) {
			e.logger.Info("job already finished by another delivery", "job_id", jobID)
			return nil
		}
		return fmt.Errorf("failed to complete job %d: %w", jobID, err)
	}

	e.logger.Info("benchmark job completed", "job_id", jobID, "duration", time.Since(start))
	return nil
}

// Recover runs once at startup. Other processes may share the store, so only
// jobs idle for longer than Lease are treated as abandoned. Such jobs left
// processing can never finish and are failed. Such pending quick jobs were
// being scored inline by a request that no longer exists and are failed too.
// Pending advanced jobs of any age are queued again.
func (e *Executor) Recover(ctx context.Context) error {
	now := time.Now()
	cutoff := now.Add(-e.lease)

	orphans, err := e.store.ListJobsByStatus(ctx, core.JobStatusProcessing, cutoff, recoverBatch)
	if err != nil {
		return fmt.Errorf("failed to list processing jobs: %w", err)
	}
	for _, job := range orphans {
		e.failInterrupted(ctx, job)
	}

	pending, err := e.store.ListJobsByStatus(ctx, core.JobStatusPending, now, recoverBatch)
	if err != nil {
		return fmt.Errorf("failed to list pending jobs: %w", err)
	}
	failed, requeued := len(orphans), 0
	for _, job := range pending {
		if job.Kind != core.JobKindAdvanced {
			if job.LastActivity().Before(cutoff) {
				e.failInterrupted(ctx, job)
				failed++
			}
			continue
		}
		added, err := e.enqueue(job.ID)
		if err != nil {
			e.logger.Warn("queue full during recovery, sweep will retry", "job_id", job.ID)
			break
		}
		if added {
			requeued++
		}
	}

	e.logger.Info("job recovery finished", "failed", failed, "requeued", requeued)
	return nil
}

func (e *Executor) failInterrupted(ctx context.Context, job *core.Job) {
	if _, err := e.store.TransitionJob(ctx, job.ID, core.JobStatusFailed, nil, InterruptedMessage); err != nil &&
		!errors.Is(err, core.ErrInvalidTransition) {
		e.logger.Error("failed to mark interrupted job failed", "job_id", job.ID, "error", err)
	}
}

// Sweep re-queues advanced jobs that have been pending longer than StaleAfter,
// such as jobs whose enqueue hit a full queue. Jobs still waiting in the queue
// are skipped. It returns the number newly queued.
func (e *Executor) Sweep(ctx context.Context) (int, error) {
	stale, err := e.store.ListJobsByStatus(ctx, core.JobStatusPending, time.Now().Add(-e.staleAfter), recoverBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list stale jobs: %w", err)
	}

	queued := 0
	for _, job := range stale {
		if job.Kind != core.JobKindAdvanced {
			continue
		}
		added, err := e.enqueue(job.ID)
		if err != nil {
			break
		}
		if added {
			queued++
		}
	}
	if queued > 0 {
		e.logger.Info("re-queued stale pending jobs", "count", queued)
	}
	return queued, nil
}

// Run sweeps periodically until ctx is cancelled. A zero SweepInterval
// disables the sweep.
func (e *Executor) Run(ctx context.Context) error {
	if e.sweepInterval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(e.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := e.Sweep(ctx); err != nil && ctx.Err() == nil {
				e.logger.Error("stale job sweep failed", "error", err)
			}
		}
	}
}

// Stop closes the queue and waits for in-flight jobs to finish. Jobs still
// queued are drained first.
func (e *Executor) Stop() {
	e.mu.Lock()
	if e.stopped {
		e.mu.Unlock()
		return
	}
	e.stopped = true
	close(e.jobQueue)
	e.mu.Unlock()

	e.logger.Info("stopping executor and waiting for jobs to finish")
	e.wg.Wait()
	e.logger.Info("all benchmark jobs have finished")
}

func statusOf(job *core.Job) core.JobStatus {
	if job == nil {
		return ""
	}
	return job.Status
}
