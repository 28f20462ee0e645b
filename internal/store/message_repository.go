package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loupe-view/loupe/internal/session"
)

// Message repository errors.
var (
	ErrMessageNotFound = errors.New("message not found")
)

// MessageRepository handles message persistence. Messages are stored
// append-only in arrival order; seq is the paging cursor.
type MessageRepository struct {
	db *DB
}

// NewMessageRepository creates a new MessageRepository.
func NewMessageRepository(db *DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// MessagePage is one window of session history, oldest first.
type MessagePage struct {
	Messages []session.Message

	// OldestSeq is the cursor for the next older page.
	OldestSeq int64

	// HasMore reports whether older history remains before OldestSeq.
	HasMore bool
}

// SaveBatch appends messages in order, assigning sequence numbers.
// Messages whose ID is already stored for the session are skipped.
func (r *MessageRepository) SaveBatch(ctx context.Context, sessionID string, messages []session.Message) error {
	if sessionID == "" {
		return fmt.Errorf("session id is required")
	}
	if len(messages) == 0 {
		return nil
	}

	return r.db.TransactionWithRetry(ctx, 0, 0, func(tx *sql.Tx) error {
		var next int64
		if err := tx.QueryRowContext(ctx,
			`SELECT COALESCE(MAX(seq), 0) + 1 FROM messages WHERE session_id = ?`,
			sessionID,
		).Scan(&next); err != nil {
			return fmt.Errorf("failed to read next seq: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO messages (
				session_id, seq, id, type, content, timestamp,
				tool_name, tool_input, tool_output, tool_duration_ms,
				input_tokens, output_tokens
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (session_id, id) DO NOTHING
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare insert: %w", err)
		}
		defer stmt.Close()

		for _, msg := range messages {
			if msg.ID == "" {
				continue
			}
			result, err := stmt.ExecContext(ctx,
				sessionID,
				next,
				msg.ID,
				string(msg.Type),
				msg.Content,
				msg.Timestamp.UTC().Format(time.RFC3339Nano),
				nullString(msg.ToolName),
				nullString(msg.ToolInput),
				nullString(msg.ToolOutput),
				nullInt64(msg.ToolDurationMs),
				msg.InputTokens,
				msg.OutputTokens,
			)
			if err != nil {
				return fmt.Errorf("failed to insert message %s: %w", msg.ID, err)
			}
			if n, err := result.RowsAffected(); err == nil && n > 0 {
				next++
			}
		}
		return nil
	})
}

// ListBefore retrieves up to limit messages older than the cursor, oldest
// first. A cursor <= 0 means "from the newest message".
func (r *MessageRepository) ListBefore(ctx context.Context, sessionID string, cursor int64, limit int) (*MessagePage, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT seq, id, type, content, timestamp,
			tool_name, tool_input, tool_output, tool_duration_ms,
			input_tokens, output_tokens
		FROM messages
		WHERE session_id = ?`
	args := []any{sessionID}

	if cursor > 0 {
		query += ` AND seq < ?`
		args = append(args, cursor)
	}

	query += ` ORDER BY seq DESC LIMIT ?`
	args = append(args, limit+1) // One extra to detect older history

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var (
		descending []session.Message
		seqs       []int64
	)
	for rows.Next() {
		msg, seq, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		descending = append(descending, msg)
		seqs = append(seqs, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}

	page := &MessagePage{}
	if len(descending) > limit {
		descending = descending[:limit]
		seqs = seqs[:limit]
		page.HasMore = true
	}
	if len(seqs) > 0 {
		page.OldestSeq = seqs[len(seqs)-1]
	}

	// Reverse into chronological order.
	page.Messages = make([]session.Message, len(descending))
	for i, msg := range descending {
		page.Messages[len(descending)-1-i] = msg
	}

	return page, nil
}

// Get retrieves one message by ID.
func (r *MessageRepository) Get(ctx context.Context, sessionID, id string) (session.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT seq, id, type, content, timestamp,
			tool_name, tool_input, tool_output, tool_duration_ms,
			input_tokens, output_tokens
		FROM messages
		WHERE session_id = ? AND id = ?
	`, sessionID, id)
	if err != nil {
		return session.Message{}, fmt.Errorf("failed to query message: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return session.Message{}, fmt.Errorf("error reading message: %w", err)
		}
		return session.Message{}, ErrMessageNotFound
	}
	msg, _, err := scanMessage(rows)
	return msg, err
}

// Count returns the number of stored messages for a session.
func (r *MessageRepository) Count(ctx context.Context, sessionID string) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM messages WHERE session_id = ?`, sessionID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}

func scanMessage(rows *sql.Rows) (session.Message, int64, error) {
	var (
		msg        session.Message
		seq        int64
		msgType    string
		timestamp  string
		toolName   sql.NullString
		toolInput  sql.NullString
		toolOutput sql.NullString
		durationMs sql.NullInt64
	)

	if err := rows.Scan(
		&seq,
		&msg.ID,
		&msgType,
		&msg.Content,
		&timestamp,
		&toolName,
		&toolInput,
		&toolOutput,
		&durationMs,
		&msg.InputTokens,
		&msg.OutputTokens,
	); err != nil {
		return session.Message{}, 0, fmt.Errorf("failed to scan message: %w", err)
	}

	msg.Type = session.MessageType(msgType)
	if t, err := time.Parse(time.RFC3339Nano, timestamp); err == nil {
		msg.Timestamp = t
	}
	msg.ToolName = toolName.String
	msg.ToolInput = toolInput.String
	msg.ToolOutput = toolOutput.String
	msg.ToolDurationMs = durationMs.Int64

	return msg, seq, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullInt64(n int64) any {
	if n == 0 {
		return nil
	}
	return n
}
