package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sevigo/archnet/internal/core"
	"github.com/sevigo/archnet/internal/jobs"
	"github.com/sevigo/archnet/internal/storage"
)

// JobsHandler serves job submission and history.
type JobsHandler struct {
	dispatcher *jobs.Dispatcher
	executor   core.Executor
	store      storage.JobStore
	scorer     core.Scorer
	logger     *slog.Logger
}

// NewJobsHandler creates a JobsHandler.
func NewJobsHandler(dispatcher *jobs.Dispatcher, executor core.Executor, store storage.JobStore, scorer core.Scorer, logger *slog.Logger) *JobsHandler {
	return &JobsHandler{
		dispatcher: dispatcher,
		executor:   executor,
		store:      store,
		scorer:     scorer,
		logger:     logger,
	}
}

type submitRequest struct {
	Kind    core.JobKind   `json:"kind" validate:"required"`
	Dataset string         `json:"dataset" validate:"max=64"`
	Params  map[string]any `json:"params"`
}

// Submit admits a job. Quick jobs answer 201 with the finished job, advanced
// jobs answer 202 while they wait for a worker.
func (h *JobsHandler) Submit(w http.ResponseWriter, r *http.Request) {
	email, _ := UserFromContext(r.Context())

	var req submitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	job, err := h.dispatcher.Submit(r.Context(), email, req.Kind, core.JobParams{Dataset: req.Dataset, Extra: req.Params})
	switch {
	case err == nil:
	case errors.Is(err, core.ErrExecutionFailure) && job != nil:
		// The job exists and is failed; report it like any other finished job.
		h.logger.Warn("quick job failed", "job_id", job.ID, "error", err)
	default:
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusCreated
	if job.Kind == core.JobKindAdvanced {
		status = http.StatusAccepted
	}
	writeJSON(w, status, job)
}

type listResponse struct {
	Jobs []*core.Job `json:"jobs"`
}

// List returns the acting user's jobs, newest first.
func (h *JobsHandler) List(w http.ResponseWriter, r *http.Request) {
	email, _ := UserFromContext(r.Context())

	filter, err := parseFilter(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	list, err := h.store.ListJobsByUser(r.Context(), email, filter)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if list == nil {
		list = []*core.Job{}
	}
	writeJSON(w, http.StatusOK, listResponse{Jobs: list})
}

func parseFilter(r *http.Request) (core.JobFilter, error) {
	var f core.JobFilter
	q := r.URL.Query()

	if s := q.Get("status"); s != "" {
		f.Status = core.JobStatus(s)
		if !f.Status.Valid() {
			return f, fmt.Errorf("%w: unknown status %q", core.ErrValidation, s)
		}
	}
	if l := q.Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("%w: limit must be a positive integer", core.ErrValidation)
		}
		f.Limit = n
	}
	return f.Normalize(), nil
}

// Get returns one job. Jobs of other users are reported as missing.
func (h *JobsHandler) Get(w http.ResponseWriter, r *http.Request) {
	email, _ := UserFromContext(r.Context())

	id, err := jobID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err == nil && job.UserEmail != email {
		err = fmt.Errorf("job %d: %w", id, core.ErrNotFound)
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// Datasets lists the catalog.
func (h *JobsHandler) Datasets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"datasets": h.scorer.Datasets()})
}

// Execute performs one delivery of a job on behalf of an external queue. A
// scorer failure is a finished delivery and is not reported as an error, so
// the queue does not retry it.
func (h *JobsHandler) Execute(w http.ResponseWriter, r *http.Request) {
	id, err := jobID(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.executor.Execute(r.Context(), id); err != nil && !errors.Is(err, core.ErrExecutionFailure) {
		writeError(w, h.logger, err)
		return
	}

	job, err := h.store.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func jobID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid job id %q", core.ErrValidation, raw)
	}
	return id, nil
}
