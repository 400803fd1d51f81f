package database

import (
	"context"
	"database/sql"
	"fmt"
)

// noCopy makes `go vet -copylocks` reject copies of the containing struct.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Handle is a dedicated database connection for a single caller. It is
// deliberately not safe for concurrent use and must not be copied, stored,
// or handed to another goroutine: sharing one handle across concurrently
// executing callers is the failure mode that aborts the whole process in
// embedded SQLite. Acquire a fresh Handle per operation and Close it when
// the operation completes.
type Handle struct {
	noCopy noCopy
	conn   *sql.Conn
}

// Query runs a parametrized query on the handle's connection.
func (h *Handle) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return h.conn.QueryContext(ctx, query, args...)
}

// QueryRow runs a parametrized single-row query.
func (h *Handle) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return h.conn.QueryRowContext(ctx, query, args...)
}

// Exec runs a parametrized statement.
func (h *Handle) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return h.conn.ExecContext(ctx, query, args...)
}

// Tx runs fn inside a transaction on the handle's connection, committing on
// nil return and rolling back otherwise.
func (h *Handle) Tx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed (%v) after: %w", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close returns the connection to the pool.
func (h *Handle) Close() error {
	return h.conn.Close()
}

// Queryer is the common query surface of a Handle and a transaction, so
// lookups and meta updates can run either standalone or inside the
// importer's year-replacement transaction.
type Queryer interface {
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
}

var _ Queryer = (*Handle)(nil)

type txQueryer struct {
	tx *sql.Tx
}

// TxQueryer adapts a transaction to the Queryer surface.
func TxQueryer(tx *sql.Tx) Queryer {
	return txQueryer{tx: tx}
}

func (t txQueryer) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

func (t txQueryer) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.tx.QueryRowContext(ctx, query, args...)
}

func (t txQueryer) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}
