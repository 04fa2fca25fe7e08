package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/mortuary-api/internal/repository"
	"github.com/jwalitptl/mortuary-api/pkg/errors"
	"github.com/jwalitptl/mortuary-api/pkg/logger"
	"github.com/jwalitptl/mortuary-api/pkg/metrics"
)

// Store is the Postgres unit of work. Outside WithTx its repositories run
// directly on the pool.
type Store struct {
	queries
	db         *sqlx.DB
	maxRetries int
	backoff    func() backoff.BackOff
	metrics    *metrics.Metrics
	log        *logger.Logger
}

var _ repository.Store = (*Store)(nil)

// NewStore wraps db. maxRetries bounds how often a transaction that hit a
// serialization failure or deadlock is replayed.
func NewStore(db *sqlx.DB, maxRetries int, m *metrics.Metrics, log *logger.Logger) *Store {
	if log == nil {
		log = logger.Nop()
	}
	return &Store{
		queries:    newQueries(db),
		db:         db,
		maxRetries: maxRetries,
		backoff:    defaultBackoff,
		metrics:    m,
		log:        log,
	}
}

func defaultBackoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 25 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = 5 * time.Second
	return b
}

// WithTx executes fn within a transaction. Retryable failures replay the
// whole of fn, so fn must not have effects outside the transaction.
func (s *Store) WithTx(ctx context.Context, fn func(q repository.Queries) error) error {
	attempt := 0
	op := func() error {
		attempt++
		err := s.runTx(ctx, fn)
		if err == nil {
			return nil
		}
		if isRetryable(err) {
			s.metrics.TxRetry(sqlState(err))
			s.log.Warn("retrying transaction", "attempt", attempt, "sqlstate", sqlState(err))
			return err
		}
		return backoff.Permanent(err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(s.backoff(), uint64(s.maxRetries)), ctx)
	err := backoff.Retry(op, policy)
	if err != nil && isRetryable(err) {
		return errors.Storage(fmt.Errorf("transaction failed after %d attempts: %w", attempt, err))
	}
	return err
}

func (s *Store) runTx(ctx context.Context, fn func(q repository.Queries) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Storage(fmt.Errorf("failed to begin transaction: %w", err))
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	var after []func()
	if err := fn(newTxQueries(tx, &after)); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		if isRetryable(err) {
			return err
		}
		return errors.Storage(fmt.Errorf("failed to commit transaction: %w", err))
	}
	for _, f := range after {
		f()
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the pool for migrations.
func (s *Store) DB() *sqlx.DB {
	return s.db
}
