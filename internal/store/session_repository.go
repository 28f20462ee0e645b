package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Session repository errors.
var (
	ErrSessionNotFound = errors.New("session not found")
)

// SessionRecord is a persisted session.
type SessionRecord struct {
	ID             string
	TranscriptPath string
	StartedAt      time.Time
	LastOpenedAt   time.Time
}

// SessionRepository handles session persistence.
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Upsert inserts the session or refreshes its last-opened time.
// Assigns an ID when missing.
func (r *SessionRepository) Upsert(ctx context.Context, record *SessionRecord) error {
	if record.TranscriptPath == "" {
		return fmt.Errorf("session transcript path is required")
	}
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if record.StartedAt.IsZero() {
		record.StartedAt = now
	}
	record.LastOpenedAt = now

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sessions (id, transcript_path, started_at, last_opened_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			transcript_path = excluded.transcript_path,
			last_opened_at = excluded.last_opened_at
	`,
		record.ID,
		record.TranscriptPath,
		record.StartedAt.UTC().Format(time.RFC3339),
		record.LastOpenedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID.
func (r *SessionRepository) Get(ctx context.Context, id string) (*SessionRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, transcript_path, started_at, last_opened_at
		FROM sessions WHERE id = ?
	`, id)
	return scanSession(row)
}

// FindByTranscript retrieves the session for a transcript path, if any.
func (r *SessionRepository) FindByTranscript(ctx context.Context, path string) (*SessionRecord, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, transcript_path, started_at, last_opened_at
		FROM sessions WHERE transcript_path = ?
		ORDER BY last_opened_at DESC
		LIMIT 1
	`, path)
	return scanSession(row)
}

func scanSession(row *sql.Row) (*SessionRecord, error) {
	var record SessionRecord
	var startedAt, lastOpenedAt string

	err := row.Scan(&record.ID, &record.TranscriptPath, &startedAt, &lastOpenedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to scan session: %w", err)
	}

	if t, err := time.Parse(time.RFC3339, startedAt); err == nil {
		record.StartedAt = t
	}
	if t, err := time.Parse(time.RFC3339, lastOpenedAt); err == nil {
		record.LastOpenedAt = t
	}

	return &record, nil
}
