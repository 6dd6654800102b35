package datastore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/mcdev12/scoreboard/go/internal/sqlutil"
)

// ErrMissingUpdatedAt is returned when an update omits the updated-at timestamp
var ErrMissingUpdatedAt = errors.New("datastore: update requires updated_at")

// DBTX is satisfied by both *sql.DB and *sql.Tx
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is the Postgres-backed data access layer for tournaments, teams and matches
type Store struct {
	conn *sql.DB
	db   DBTX
}

// New creates a Store over an open database handle
func New(conn *sql.DB) *Store {
	return &Store{conn: conn, db: conn}
}

// RunInTx runs fn with a Store bound to a single transaction
func (s *Store) RunInTx(ctx context.Context, fn func(tx *Store) error) error {
	if s.conn == nil {
		// already inside a transaction
		return fn(s)
	}
	return sqlutil.Run(ctx, s.conn, nil, func(tx *sql.Tx) error {
		return fn(&Store{db: tx})
	})
}

// Ping checks the database connection
func (s *Store) Ping(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.PingContext(ctx)
}

func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNoRows
	}
	return nil
}
