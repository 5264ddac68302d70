package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"openvault/internal/models"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const DefaultMaxAttempts = 5

var ErrRetryLimitExceeded = errors.New("transaction retry limit exceeded")

type TxRunner interface {
	WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error
}

// Options tune a runner. MaxAttempts of 1 disables retries; LockTimeout,
// when set, is applied with SET LOCAL so a blocked row lock fails instead
// of waiting forever.
type Options struct {
	MaxAttempts int
	LockTimeout time.Duration
}

type SQLXTxRunner struct {
	db   *sqlx.DB
	opts Options
}

func NewTxRunner(db *sqlx.DB, opts Options) SQLXTxRunner {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	return SQLXTxRunner{db: db, opts: opts}
}

func (r SQLXTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	return WithTxOptions(ctx, r.db, r.opts, fn)
}

func Connect(databaseURL string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func WithTx(ctx context.Context, db *sqlx.DB, fn func(*sqlx.Tx) error) error {
	return WithTxOptions(ctx, db, Options{MaxAttempts: DefaultMaxAttempts}, fn)
}

func WithTxOptions(ctx context.Context, db *sqlx.DB, opts Options, fn func(*sqlx.Tx) error) error {
	maxAttempts := opts.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		tx, err := db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
		if err != nil {
			return err
		}
		if opts.LockTimeout > 0 {
			if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL lock_timeout = %d", opts.LockTimeout.Milliseconds())); err != nil {
				_ = tx.Rollback()
				return err
			}
		}
		if err := fn(tx); err != nil {
			_ = tx.Rollback()
			if isRetryablePGError(err) && attempt < maxAttempts {
				sleepWithBackoff(ctx, attempt)
				continue
			}
			return err
		}
		if err := tx.Commit(); err != nil {
			if isRetryablePGError(err) && attempt < maxAttempts {
				sleepWithBackoff(ctx, attempt)
				continue
			}
			return err
		}
		return nil
	}
	return ErrRetryLimitExceeded
}

// ClassifyError maps driver errors onto the ledger taxonomy. Serialization
// failures, deadlocks and lock timeouts mean another operation touched the
// same rows: the caller may retry. Everything else is a persistence failure.
func ClassifyError(err error) error {
	if err == nil || models.IsKnown(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || IsConflict(err) {
		return fmt.Errorf("%w: %w", models.ErrConcurrentModification, err)
	}
	return fmt.Errorf("%w: %w", models.ErrPersistenceFailure, err)
}

func IsConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch pqErr.Code {
	case "40001", "40P01", "55P03":
		return true
	}
	return false
}

func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func isRetryablePGError(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == "40001" || pqErr.Code == "40P01"
}

func sleepWithBackoff(ctx context.Context, attempt int) {
	base := 20 * time.Millisecond
	backoff := time.Duration(attempt*attempt) * base
	jitter := time.Duration(rand.Int63n(int64(10 * time.Millisecond)))
	timer := time.NewTimer(backoff + jitter)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
