// Package storage is the single mutation authority for users, credit balances,
// jobs and checkouts.
package storage

import (
	"context"
	"time"

	"github.com/sevigo/archnet/internal/core"
)

// Ledger owns per-user credit balances. Every balance change goes through it.
type Ledger interface {
	// CreateUser inserts a user with the signup credit grant. It returns the
	// existing user and created=false if the email is already registered.
	CreateUser(ctx context.Context, email string) (*core.User, bool, error)
	GetUser(ctx context.Context, email string) (*core.User, error)
	GetBalance(ctx context.Context, email string) (int, error)
	// TryDebit atomically checks balance >= amount and decrements. On
	// core.ErrInsufficientBalance the balance is untouched.
	TryDebit(ctx context.Context, email string, amount int) (int, error)
	// Credit atomically increments the balance and returns the new value.
	Credit(ctx context.Context, email string, amount int) (int, error)
}

// JobStore owns job records and their status transitions.
type JobStore interface {
	CreateJob(ctx context.Context, job *core.Job) error
	// TransitionJob moves a job to a new status. It returns
	// core.ErrInvalidTransition without touching the record when the move is
	// not allowed from the current status.
	TransitionJob(ctx context.Context, id int64, to core.JobStatus, result *core.Result, errMsg string) (*core.Job, error)
	GetJob(ctx context.Context, id int64) (*core.Job, error)
	ListJobsByUser(ctx context.Context, email string, filter core.JobFilter) ([]*core.Job, error)
	// ListJobsByStatus returns jobs in status whose last activity (start of
	// processing, else creation) is before idleBefore, oldest id first.
	ListJobsByStatus(ctx context.Context, status core.JobStatus, idleBefore time.Time, limit int) ([]*core.Job, error)
}

// CheckoutStore persists payment intents so success callbacks can be deduplicated.
type CheckoutStore interface {
	CreateCheckout(ctx context.Context, c *core.Checkout) error
	GetCheckout(ctx context.Context, reference string) (*core.Checkout, error)
	// ApplyCheckout marks a pending checkout completed and credits its user in
	// one atomic step. applied is false when the checkout was already completed.
	ApplyCheckout(ctx context.Context, reference string) (checkout *core.Checkout, applied bool, err error)
}

// Store defines the interface for all database operations.
type Store interface {
	Ledger
	JobStore
	CheckoutStore
	Ping(ctx context.Context) error
}

func validAmount(amount int) bool {
	return amount > 0
}
