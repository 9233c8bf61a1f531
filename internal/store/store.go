package store

import (
	"context"
	"database/sql"
	"errors"

	"campaign-engine/pkg/utils"
)

// Store wraps the Postgres connection pool. It holds no in-memory state;
// every method round-trips to the database, matching the "no process-local
// caches of campaign state" rule of spec.md §4.1.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

var (
	ErrNotFound         = errors.New("store: not found")
	ErrAlreadyExists    = errors.New("store: already exists")
	ErrInvalidArgument  = errors.New("store: invalid argument")
	ErrConcurrentUpdate = errors.New("store: concurrent update lost the race")
)

// WithTx runs fn inside a transaction using the teacher's panic-safe
// rollback/commit helper (pkg/utils.WithTx).
func WithTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, tx *sql.Tx) error) error {
	return utils.WithTx(ctx, db, &sql.TxOptions{}, fn)
}
