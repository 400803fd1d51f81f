package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fleetlens-io/fleetlens-engine/pkg/config"
)

// DB wraps the embedded SQLite store. All engine state lives in a single
// database file.
type DB struct {
	sqlDB *sql.DB
	path  string
}

// Open opens (creating if necessary) the store file and applies the
// connection pragmas. The pool is capped at MaxReaders; writers use the
// same pool but the engine only ever runs one writer (the importer).
func Open(ctx context.Context, cfg *config.DatabaseConfig) (*DB, error) {
	dsn := buildDSN(cfg)

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", cfg.Path, err)
	}

	maxReaders := cfg.MaxReaders
	if maxReaders <= 0 {
		maxReaders = 16
	}
	sqlDB.SetMaxOpenConns(maxReaders)
	sqlDB.SetMaxIdleConns(maxReaders)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{sqlDB: sqlDB, path: cfg.Path}, nil
}

// buildDSN assembles the modernc.org/sqlite DSN with pragmas applied per
// connection. In-memory databases get a shared cache so every connection
// sees the same store.
func buildDSN(cfg *config.DatabaseConfig) string {
	busyTimeout := cfg.BusyTimeoutMS
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}

	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout))
	q.Add("_pragma", "foreign_keys(1)")

	if cfg.Path == ":memory:" || strings.Contains(cfg.Path, "mode=memory") {
		q.Set("cache", "shared")
		path := cfg.Path
		if path == ":memory:" {
			path = ":memory:"
		}
		return "file:" + path + "?" + q.Encode()
	}

	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return "file:" + cfg.Path + "?" + q.Encode()
}

// SQLDB exposes the raw pool for the migration runner only. Engine code
// must go through Acquire.
func (db *DB) SQLDB() *sql.DB {
	return db.sqlDB
}

// Path returns the store file path.
func (db *DB) Path() string {
	return db.path
}

// Acquire returns a Handle bound to a dedicated connection. Every
// concurrently executing caller must hold its own Handle; a Handle must
// never be shared across goroutines. Callers must Close the Handle when
// done.
func (db *DB) Acquire(ctx context.Context) (*Handle, error) {
	conn, err := db.sqlDB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	return &Handle{conn: conn}, nil
}

// Close closes the pool.
func (db *DB) Close() error {
	return db.sqlDB.Close()
}
