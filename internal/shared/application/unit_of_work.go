package application

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/felixgeelhaar/skinsight/internal/shared/domain"
)

// UnitOfWork provides transactional support for aggregating multiple operations.
type UnitOfWork interface {
	Begin(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionInspector is implemented by units of work that can tell whether
// the context already carries an open transaction.
type TransactionInspector interface {
	InTransaction(ctx context.Context) bool
}

// UnitOfWorkFunc is a function that executes within a unit of work.
type UnitOfWorkFunc func(ctx context.Context) error

// WithUnitOfWork executes the given function within a unit of work.
func WithUnitOfWork(ctx context.Context, uow UnitOfWork, fn UnitOfWorkFunc) error {
	txCtx, err := uow.Begin(ctx)
	if err != nil {
		return err
	}

	if err := fn(txCtx); err != nil {
		_ = uow.Rollback(txCtx)
		return err
	}

	return uow.Commit(txCtx)
}

// RetryPolicy bounds how often a conflicting unit of work is replayed.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Retryable classifies errors that warrant a fresh transaction.
	Retryable func(error) bool
}

// DefaultRetryPolicy retries optimistic concurrency conflicts up to five times.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		BaseDelay:   5 * time.Millisecond,
		MaxDelay:    100 * time.Millisecond,
		Retryable: func(err error) bool {
			return errors.Is(err, domain.ErrConcurrencyConflict)
		},
	}
}

// WithRetryingUnitOfWork runs fn in a fresh transaction, replaying it when the
// policy classifies the failure as a conflict. When ctx already carries a
// transaction the function runs once and conflicts surface to the owner of
// the outer transaction.
func WithRetryingUnitOfWork(ctx context.Context, uow UnitOfWork, policy RetryPolicy, fn UnitOfWorkFunc) error {
	if inspector, ok := uow.(TransactionInspector); ok && inspector.InTransaction(ctx) {
		return WithUnitOfWork(ctx, uow, fn)
	}

	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		err = WithUnitOfWork(ctx, uow, fn)
		if err == nil || policy.Retryable == nil || !policy.Retryable(err) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		timer := time.NewTimer(policy.backoff(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}

func (p RetryPolicy) backoff(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		return 0
	}
	delay := base << attempt
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	// Full jitter keeps competing writers from replaying in lockstep.
	return time.Duration(rand.Int64N(int64(delay) + 1))
}
