package store

import (
	"context"
	"database/sql"
	"fmt"
)

// migration is one schema step, applied in order.
type migration struct {
	version int
	name    string
	up      string
}

var migrations = []migration{
	{
		version: 1,
		name:    "create sessions",
		up: `
			CREATE TABLE IF NOT EXISTS sessions (
				id TEXT PRIMARY KEY,
				transcript_path TEXT NOT NULL,
				started_at TEXT NOT NULL,
				last_opened_at TEXT NOT NULL
			)
		`,
	},
	{
		version: 2,
		name:    "create messages",
		up: `
			CREATE TABLE IF NOT EXISTS messages (
				session_id TEXT NOT NULL REFERENCES sessions(id),
				seq INTEGER NOT NULL,
				id TEXT NOT NULL,
				type TEXT NOT NULL,
				content TEXT NOT NULL,
				timestamp TEXT NOT NULL,
				tool_name TEXT,
				tool_input TEXT,
				tool_output TEXT,
				tool_duration_ms INTEGER,
				input_tokens INTEGER NOT NULL DEFAULT 0,
				output_tokens INTEGER NOT NULL DEFAULT 0,
				PRIMARY KEY (session_id, seq),
				UNIQUE (session_id, id)
			)
		`,
	},
	{
		version: 3,
		name:    "index messages by timestamp",
		up: `
			CREATE INDEX IF NOT EXISTS idx_messages_session_timestamp
			ON messages (session_id, timestamp)
		`,
	},
}

// MigrateUp applies pending migrations and returns the number applied.
func (db *DB) MigrateUp(ctx context.Context) (int, error) {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return 0, fmt.Errorf("failed to create schema_migrations: %w", err)
	}

	current, err := db.schemaVersion(ctx)
	if err != nil {
		return 0, err
	}

	applied := 0
	for _, m := range migrations {
		if m.version <= current {
			continue
		}

		err := db.Transaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, m.up); err != nil {
				return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
				m.version, m.name,
			); err != nil {
				return fmt.Errorf("failed to record migration %d: %w", m.version, err)
			}
			return nil
		})
		if err != nil {
			return applied, err
		}

		db.logger.Debug().Int("version", m.version).Str("name", m.name).Msg("applied migration")
		applied++
	}

	return applied, nil
}

func (db *DB) schemaVersion(ctx context.Context) (int, error) {
	var version sql.NullInt64
	err := db.QueryRowContext(ctx, `SELECT MAX(version) FROM schema_migrations`).Scan(&version)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	if !version.Valid {
		return 0, nil
	}
	return int(version.Int64), nil
}
