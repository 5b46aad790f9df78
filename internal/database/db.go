package database

import (
	"context"
	"errors"
	"hash/fnv"

	"github.com/google/uuid"
	"github.com/ignitionhq/ignition/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func MapPostgresError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return models.ErrNotFound
	}

	if pgErr, ok := err.(*pgconn.PgError); ok {
		switch pgErr.Code {
		case "23505": // unique_violation
			return models.ErrConflict
		case "23503": // foreign_key_violation
			return models.ErrBadRequest
		case "23502": // not_null_violation
			return models.ErrBadRequest
		}
	}

	return err
}

func (db *DB) WithTransaction(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	err = fn(tx)
	return err
}

// AdvisoryLockKey derives a stable 63-bit key for pg_advisory_xact_lock from
// a user id. Advisory lock keys are signed 64-bit; the top bit is cleared so
// the same id always maps to a non-negative key.
func AdvisoryLockKey(userID uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write(userID[:])
	return int64(h.Sum64() & 0x7FFFFFFFFFFFFFFF)
}

// AcquireUserLock takes the transaction-scoped advisory lock for a user.
// It blocks until the lock is granted; the lock releases with the
// transaction on commit, rollback, or connection loss.
func AcquireUserLock(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, AdvisoryLockKey(userID))
	return err
}
