// Package store provides SQLite persistence for Loupe session history.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/loupe-view/loupe/internal/logging"
)

// Options configures database behavior.
type Options struct {
	// MaxConnections is the maximum number of open connections.
	MaxConnections int

	// BusyTimeoutMs is how long SQLite waits on a locked database.
	BusyTimeoutMs int
}

func (o Options) withDefaults() Options {
	if o.MaxConnections <= 0 {
		o.MaxConnections = 10
	}
	if o.BusyTimeoutMs <= 0 {
		o.BusyTimeoutMs = 5000
	}
	return o
}

// DB wraps the SQLite connection pool.
type DB struct {
	conn   *sql.DB
	logger zerolog.Logger
}

// Open opens (creating if needed) the database at path.
func Open(path string, opts Options) (*DB, error) {
	opts = opts.withDefaults()

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", path, opts.BusyTimeoutMs)
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(opts.MaxConnections)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		conn:   conn,
		logger: logging.Component("store"),
	}, nil
}

// OpenInMemory opens an in-memory database, used mostly by tests.
func OpenInMemory() (*DB, error) {
	conn, err := sql.Open("sqlite", "file::memory:?_pragma=foreign_keys(ON)")
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}

	// A single connection keeps every statement on the same in-memory schema.
	conn.SetMaxOpenConns(1)

	return &DB{
		conn:   conn,
		logger: logging.Component("store"),
	}, nil
}

// Close closes the database.
func (db *DB) Close() error {
	return db.conn.Close()
}

// ExecContext executes a statement.
func (db *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return db.conn.ExecContext(ctx, query, args...)
}

// QueryContext executes a query returning rows.
func (db *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return db.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext executes a query returning at most one row.
func (db *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return db.conn.QueryRowContext(ctx, query, args...)
}

// Transaction runs fn inside a transaction, rolling back on error.
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
