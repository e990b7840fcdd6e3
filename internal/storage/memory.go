package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/sevigo/archnet/internal/core"
)

// memoryStore keeps everything in maps guarded by a single mutex. Every
// operation is atomic with respect to every other.
type memoryStore struct {
	mu        sync.Mutex
	users     map[string]*core.User
	jobs      map[int64]*core.Job
	checkouts map[string]*core.Checkout
	nextJobID int64
	now       func() time.Time
}

// NewMemoryStore creates a Store that lives in process memory.
func NewMemoryStore() Store {
	return &memoryStore{
		users:     make(map[string]*core.User),
		jobs:      make(map[int64]*core.Job),
		checkouts: make(map[string]*core.Checkout),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStore) Ping(_ context.Context) error { return nil }

func (s *memoryStore) CreateUser(_ context.Context, email string) (*core.User, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if u, ok := s.users[email]; ok {
		c := *u
		return &c, false, nil
	}
	u := &core.User{
		Email:     email,
		Credits:   core.SignupCredits,
		Tier:      core.UserTierFree,
		CreatedAt: s.now(),
	}
	s.users[email] = u
	c := *u
	return &c, true, nil
}

func (s *memoryStore) GetUser(_ context.Context, email string) (*core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return nil, fmt.Errorf("user %q: %w", email, core.ErrNotFound)
	}
	c := *u
	return &c, nil
}

func (s *memoryStore) GetBalance(ctx context.Context, email string) (int, error) {
	u, err := s.GetUser(ctx, email)
	if err != nil {
		return 0, err
	}
	return u.Credits, nil
}

func (s *memoryStore) TryDebit(_ context.Context, email string, amount int) (int, error) {
	if !validAmount(amount) {
		return 0, fmt.Errorf("%w: debit amount must be positive, got %d", core.ErrValidation, amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return 0, fmt.Errorf("user %q: %w", email, core.ErrNotFound)
	}
	if u.Credits < amount {
		return u.Credits, core.ErrInsufficientBalance
	}
	u.Credits -= amount
	return u.Credits, nil
}

func (s *memoryStore) Credit(_ context.Context, email string, amount int) (int, error) {
	if !validAmount(amount) {
		return 0, fmt.Errorf("%w: credit amount must be positive, got %d", core.ErrValidation, amount)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[email]
	if !ok {
		return 0, fmt.Errorf("user %q: %w", email, core.ErrNotFound)
	}
	u.Credits += amount
	return u.Credits, nil
}

func (s *memoryStore) CreateJob(_ context.Context, job *core.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[job.UserEmail]; !ok {
		return fmt.Errorf("user %q: %w", job.UserEmail, core.ErrNotFound)
	}
	s.nextJobID++
	job.ID = s.nextJobID
	job.Status = core.JobStatusPending
	job.CreatedAt = s.now()
	job.Result = nil
	job.CompletedAt = nil
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

func (s *memoryStore) TransitionJob(_ context.Context, id int64, to core.JobStatus, result *core.Result, errMsg string) (*core.Job, error) {
	if to == core.JobStatusCompleted && result == nil {
		return nil, fmt.Errorf("%w: job %d cannot complete without a result", core.ErrValidation, id)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %d: %w", id, core.ErrNotFound)
	}
	if !core.CanTransition(j.Status, to) {
		return cloneJob(j), fmt.Errorf("job %d %s -> %s: %w", id, j.Status, to, core.ErrInvalidTransition)
	}

	j.Status = to
	switch to {
	case core.JobStatusProcessing:
		now := s.now()
		j.StartedAt = &now
	case core.JobStatusCompleted:
		j.Result = cloneResult(result)
		now := s.now()
		j.CompletedAt = &now
	case core.JobStatusFailed:
		j.Error = errMsg
		now := s.now()
		j.CompletedAt = &now
	}
	return cloneJob(j), nil
}

func (s *memoryStore) GetJob(_ context.Context, id int64) (*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %d: %w", id, core.ErrNotFound)
	}
	return cloneJob(j), nil
}

func (s *memoryStore) ListJobsByUser(_ context.Context, email string, filter core.JobFilter) ([]*core.Job, error) {
	filter = filter.Normalize()
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*core.Job
	for _, j := range s.jobs {
		if j.UserEmail != email {
			continue
		}
		if filter.Status != "" && j.Status != filter.Status {
			continue
		}
		out = append(out, cloneJob(j))
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID > out[b].ID })
	if len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *memoryStore) ListJobsByStatus(_ context.Context, status core.JobStatus, idleBefore time.Time, limit int) ([]*core.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*core.Job
	for _, j := range s.jobs {
		if j.Status == status && j.LastActivity().Before(idleBefore) {
			out = append(out, cloneJob(j))
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) CreateCheckout(_ context.Context, c *core.Checkout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[c.UserEmail]; !ok {
		return fmt.Errorf("user %q: %w", c.UserEmail, core.ErrNotFound)
	}
	if _, ok := s.checkouts[c.Reference]; ok {
		return fmt.Errorf("%w: checkout %q already exists", core.ErrValidation, c.Reference)
	}
	c.Status = core.CheckoutStatusPending
	c.CreatedAt = s.now()
	stored := *c
	s.checkouts[c.Reference] = &stored
	return nil
}

func (s *memoryStore) GetCheckout(_ context.Context, reference string) (*core.Checkout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checkouts[reference]
	if !ok {
		return nil, fmt.Errorf("checkout %q: %w", reference, core.ErrNotFound)
	}
	out := *c
	return &out, nil
}

func (s *memoryStore) ApplyCheckout(_ context.Context, reference string) (*core.Checkout, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.checkouts[reference]
	if !ok {
		return nil, false, fmt.Errorf("checkout %q: %w", reference, core.ErrNotFound)
	}
	if c.Status == core.CheckoutStatusCompleted {
		out := *c
		return &out, false, nil
	}
	u, ok := s.users[c.UserEmail]
	if !ok {
		return nil, false, fmt.Errorf("user %q: %w", c.UserEmail, core.ErrNotFound)
	}
	if !validAmount(c.Credits) {
		return nil, false, fmt.Errorf("%w: checkout %q grants %d credits", core.ErrValidation, reference, c.Credits)
	}

	u.Credits += c.Credits
	now := s.now()
	c.Status = core.CheckoutStatusCompleted
	c.CompletedAt = &now
	out := *c
	return &out, true, nil
}

func cloneJob(j *core.Job) *core.Job {
	c := *j
	c.Params.Extra = maps.Clone(j.Params.Extra)
	c.Result = cloneResult(j.Result)
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func cloneResult(r *core.Result) *core.Result {
	if r == nil {
		return nil
	}
	c := *r
	c.Models = slices.Clone(r.Models)
	return &c
}
