// Package postgres is the production Repository. It is pure I/O: lifecycle
// rules live in the service, and the schema's keys enforce lock atomicity.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"matchcore/internal/matching/ports"
	"matchcore/pkg/platform/sentinel"
	"matchcore/pkg/platform/tx"
)

const (
	pqUniqueViolation      = "23505"
	pqSerializationFailure = "40001"
	pqDeadlockDetected     = "40P01"
)

// Store implements ports.Repository on PostgreSQL via lib/pq.
type Store struct {
	db *sql.DB
}

var _ ports.Repository = (*Store)(nil)

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// RunInTx runs fn in a REPEATABLE READ transaction bound to ctx. A nested
// call joins the outer transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context, repo ports.Repository) error) error {
	if _, ok := tx.From(ctx); ok {
		return fn(ctx, s)
	}
	sqlTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx.WithTx(ctx, sqlTx), s); err != nil {
		_ = sqlTx.Rollback()
		return translate(err)
	}
	if err := sqlTx.Commit(); err != nil {
		return translate(fmt.Errorf("commit transaction: %w", err))
	}
	return nil
}

func (s *Store) exec(ctx context.Context) tx.Executor {
	return tx.Resolve(ctx, s.db)
}

// forUpdate row-locks reads made inside a transaction.
func forUpdate(ctx context.Context) string {
	if _, ok := tx.From(ctx); ok {
		return " FOR UPDATE"
	}
	return ""
}

// translate maps concurrency failures to sentinel.ErrConflict.
func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqUniqueViolation, pqSerializationFailure, pqDeadlockDetected:
			return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
		}
	}
	return err
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
