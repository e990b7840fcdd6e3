package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/sevigo/archnet/internal/core"
)

type postgresStore struct {
	db *sqlx.DB
}

// NewStore creates a Postgres backed Store.
func NewStore(db *sqlx.DB) Store {
	return &postgresStore{db: db}
}

// jobRow mirrors the jobs table. params and result are JSONB.
type jobRow struct {
	ID          int64        `db:"id"`
	UserEmail   string       `db:"user_email"`
	Kind        string       `db:"kind"`
	Params      []byte       `db:"params"`
	Status      string       `db:"status"`
	Result      []byte       `db:"result"`
	Error       string       `db:"error"`
	CreatedAt   time.Time    `db:"created_at"`
	StartedAt   sql.NullTime `db:"started_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
}

func (r *jobRow) toJob() (*core.Job, error) {
	j := &core.Job{
		ID:        r.ID,
		UserEmail: r.UserEmail,
		Kind:      core.JobKind(r.Kind),
		Status:    core.JobStatus(r.Status),
		Error:     r.Error,
		CreatedAt: r.CreatedAt,
	}
	if len(r.Params) > 0 {
		if err := json.Unmarshal(r.Params, &j.Params); err != nil {
			return nil, fmt.Errorf("decode params of job %d: %w", r.ID, err)
		}
	}
	if len(r.Result) > 0 {
		var res core.Result
		if err := json.Unmarshal(r.Result, &res); err != nil {
			return nil, fmt.Errorf("decode result of job %d: %w", r.ID, err)
		}
		j.Result = &res
	}
	if r.StartedAt.Valid {
		t := r.StartedAt.Time
		j.StartedAt = &t
	}
	if r.CompletedAt.Valid {
		t := r.CompletedAt.Time
		j.CompletedAt = &t
	}
	return j, nil
}

const jobColumns = `id, user_email, kind, params, status, result, error, created_at, started_at, completed_at`

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *postgresStore) CreateUser(ctx context.Context, email string) (*core.User, bool, error) {
	var u core.User
	err := s.db.GetContext(ctx, &u, `
		INSERT INTO users (email, credits, tier)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
		RETURNING email, credits, tier, created_at`,
		email, core.SignupCredits, core.UserTierFree)
	if err == nil {
		return &u, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, false, fmt.Errorf("create user: %w", err)
	}

	existing, err := s.GetUser(ctx, email)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (s *postgresStore) GetUser(ctx context.Context, email string) (*core.User, error) {
	var u core.User
	err := s.db.GetContext(ctx, &u, `SELECT email, credits, tier, created_at FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %q: %w", email, core.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *postgresStore) GetBalance(ctx context.Context, email string) (int, error) {
	var credits int
	err := s.db.GetContext(ctx, &credits, `SELECT credits FROM users WHERE email = $1`, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("user %q: %w", email, core.ErrNotFound)
		}
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return credits, nil
}

// TryDebit relies on the row lock taken by a conditional UPDATE, so concurrent
// debits against the same user serialize inside Postgres.
func (s *postgresStore) TryDebit(ctx context.Context, email string, amount int) (int, error) {
	if !validAmount(amount) {
		return 0, fmt.Errorf("%w: debit amount must be positive, got %d", core.ErrValidation, amount)
	}

	var remaining int
	err := s.db.GetContext(ctx, &remaining, `
		UPDATE users SET credits = credits - $2
		WHERE email = $1 AND credits >= $2
		RETURNING credits`, email, amount)
	if err == nil {
		return remaining, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("debit credits: %w", err)
	}

	balance, err := s.GetBalance(ctx, email)
	if err != nil {
		return 0, err
	}
	return balance, core.ErrInsufficientBalance
}

func (s *postgresStore) Credit(ctx context.Context, email string, amount int) (int, error) {
	if !validAmount(amount) {
		return 0, fmt.Errorf("%w: credit amount must be positive, got %d", core.ErrValidation, amount)
	}
	return creditTx(ctx, s.db, email, amount)
}

func creditTx(ctx context.Context, q sqlx.QueryerContext, email string, amount int) (int, error) {
	var balance int
	err := sqlx.GetContext(ctx, q, &balance, `
		UPDATE users SET credits = credits + $2
		WHERE email = $1
		RETURNING credits`, email, amount)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("user %q: %w", email, core.ErrNotFound)
		}
		return 0, fmt.Errorf("credit credits: %w", err)
	}
	return balance, nil
}

func (s *postgresStore) CreateJob(ctx context.Context, job *core.Job) error {
	params, err := json.Marshal(job.Params)
	if err != nil {
		return fmt.Errorf("encode job params: %w", err)
	}

	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO jobs (user_email, kind, params, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		job.UserEmail, job.Kind, params, core.JobStatusPending)
	if err := row.Scan(&job.ID, &job.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return fmt.Errorf("user %q: %w", job.UserEmail, core.ErrNotFound)
		}
		return fmt.Errorf("create job: %w", err)
	}
	job.Status = core.JobStatusPending
	job.Result = nil
	job.StartedAt = nil
	job.CompletedAt = nil
	return nil
}

// TransitionJob is a compare-and-set on the status column. When no row is
// updated the current record is read back to tell a missing job from a
// forbidden move. Claiming a job for processing stamps started_at, which
// recovery uses to tell a live claim from an abandoned one.
func (s *postgresStore) TransitionJob(ctx context.Context, id int64, to core.JobStatus, result *core.Result, errMsg string) (*core.Job, error) {
	from := sourceStatusNames(to)

	var resultJSON []byte
	if to == core.JobStatusCompleted {
		if result == nil {
			return nil, fmt.Errorf("%w: job %d cannot complete without a result", core.ErrValidation, id)
		}
		var err error
		if resultJSON, err = json.Marshal(result); err != nil {
			return nil, fmt.Errorf("encode job result: %w", err)
		}
	}
	if to != core.JobStatusFailed {
		errMsg = ""
	}

	var row jobRow
	err := s.db.GetContext(ctx, &row, `
		UPDATE jobs SET
			status = $2,
			result = CASE WHEN $2 = 'completed' THEN $3::jsonb ELSE result END,
			error = CASE WHEN $2 = 'failed' THEN $4 ELSE error END,
			started_at = CASE WHEN $2 = 'processing' THEN NOW() ELSE started_at END,
			completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN NOW() ELSE completed_at END
		WHERE id = $1 AND status = ANY($5)
		RETURNING `+jobColumns,
		id, string(to), resultJSON, errMsg, pq.Array(from))
	if err == nil {
		return row.toJob()
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition job: %w", err)
	}

	current, err := s.GetJob(ctx, id)
	if err != nil {
		return nil, err
	}
	return current, fmt.Errorf("job %d %s -> %s: %w", id, current.Status, to, core.ErrInvalidTransition)
}

func (s *postgresStore) GetJob(ctx context.Context, id int64) (*core.Job, error) {
	var row jobRow
	err := s.db.GetContext(ctx, &row, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("job %d: %w", id, core.ErrNotFound)
		}
		return nil, fmt.Errorf("get job: %w", err)
	}
	return row.toJob()
}

func (s *postgresStore) ListJobsByUser(ctx context.Context, email string, filter core.JobFilter) ([]*core.Job, error) {
	filter = filter.Normalize()

	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+jobColumns+` FROM jobs
		WHERE user_email = $1 AND ($2 = '' OR status = $2)
		ORDER BY id DESC
		LIMIT $3`, email, string(filter.Status), filter.Limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return toJobs(rows)
}

func (s *postgresStore) ListJobsByStatus(ctx context.Context, status core.JobStatus, idleBefore time.Time, limit int) ([]*core.Job, error) {
	if limit <= 0 {
		limit = core.MaxJobListLimit
	}
	var rows []jobRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = $1 AND COALESCE(started_at, created_at) < $2
		ORDER BY id ASC
		LIMIT $3`, string(status), idleBefore, limit)
	if err != nil {
		return nil, fmt.Errorf("list jobs by status: %w", err)
	}
	return toJobs(rows)
}

func toJobs(rows []jobRow) ([]*core.Job, error) {
	jobs := make([]*core.Job, 0, len(rows))
	for i := range rows {
		j, err := rows[i].toJob()
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

func (s *postgresStore) CreateCheckout(ctx context.Context, c *core.Checkout) error {
	row := s.db.QueryRowxContext(ctx, `
		INSERT INTO checkouts (reference, user_email, credits, price_cents, status, checkout_url)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at`,
		c.Reference, c.UserEmail, c.Credits, c.PriceCents, core.CheckoutStatusPending, c.CheckoutURL)
	if err := row.Scan(&c.CreatedAt); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) {
			switch pqErr.Code {
			case "23505":
				return fmt.Errorf("%w: checkout %q already exists", core.ErrValidation, c.Reference)
			case "23503":
				return fmt.Errorf("user %q: %w", c.UserEmail, core.ErrNotFound)
			}
		}
		return fmt.Errorf("create checkout: %w", err)
	}
	c.Status = core.CheckoutStatusPending
	return nil
}

const checkoutColumns = `reference, user_email, credits, price_cents, status, checkout_url, created_at, completed_at`

func (s *postgresStore) GetCheckout(ctx context.Context, reference string) (*core.Checkout, error) {
	var c core.Checkout
	err := s.db.GetContext(ctx, &c, `SELECT `+checkoutColumns+` FROM checkouts WHERE reference = $1`, reference)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("checkout %q: %w", reference, core.ErrNotFound)
		}
		return nil, fmt.Errorf("get checkout: %w", err)
	}
	return &c, nil
}

// ApplyCheckout flips the checkout to completed and grants its credits in one
// transaction. The status guard on the UPDATE makes replays a no-op.
func (s *postgresStore) ApplyCheckout(ctx context.Context, reference string) (*core.Checkout, bool, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var c core.Checkout
	err = tx.GetContext(ctx, &c, `
		UPDATE checkouts SET status = $2, completed_at = NOW()
		WHERE reference = $1 AND status = $3
		RETURNING `+checkoutColumns,
		reference, core.CheckoutStatusCompleted, core.CheckoutStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		existing, getErr := s.GetCheckout(ctx, reference)
		if getErr != nil {
			return nil, false, getErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("complete checkout: %w", err)
	}

	if _, err := creditTx(ctx, tx, c.UserEmail, c.Credits); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit checkout: %w", err)
	}
	return &c, true, nil
}

// sourceStatusNames returns the textual source statuses for a transition.
func sourceStatusNames(to core.JobStatus) []string {
	from := core.SourceStatuses(to)
	names := make([]string, len(from))
	for i, s := range from {
		names[i] = string(s)
	}
	return names
}
