// Package ingest reads agent session transcripts (JSONL, one record per
// line) into the session domain model.
package ingest

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/loupe-view/loupe/internal/logging"
	"github.com/loupe-view/loupe/internal/session"
)

// Scanner capacity for large tool outputs embedded in one line.
const maxLineBytes = 8 * 1024 * 1024

// Parser decodes transcript records. Malformed lines are skipped with a
// warning, never fatal: a live transcript can always contain a half-written
// tail line.
type Parser struct {
	logger zerolog.Logger
}

// NewParser creates a parser.
func NewParser() *Parser {
	return &Parser{logger: logging.Component("ingest")}
}

// Result is a parsed transcript.
type Result struct {
	Messages []session.Message
	Turns    []session.TurnSummary

	// SkippedLines counts malformed records that were dropped.
	SkippedLines int
}

type rawRecord struct {
	ID        string        `json:"id"`
	Type      string        `json:"type"`
	Content   string        `json:"content"`
	Timestamp string        `json:"timestamp"`
	Tool      *toolPayload  `json:"tool,omitempty"`
	Usage     *usagePayload `json:"usage,omitempty"`
}

type toolPayload struct {
	Name       string          `json:"name"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     string          `json:"output,omitempty"`
	DurationMs int64           `json:"duration_ms,omitempty"`
}

type usagePayload struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ParseLine decodes one transcript record. Records without an ID get a
// generated one; records without a timestamp keep the zero time.
func (p *Parser) ParseLine(raw []byte) (session.Message, error) {
	var rec rawRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return session.Message{}, fmt.Errorf("unmarshal record: %w", err)
	}

	msgType := session.MessageType(rec.Type)
	switch msgType {
	case session.MessageTypeUser, session.MessageTypeAssistant,
		session.MessageTypeTool, session.MessageTypeSystem:
	default:
		return session.Message{}, fmt.Errorf("unknown record type %q", rec.Type)
	}

	msg := session.Message{
		ID:      rec.ID,
		Type:    msgType,
		Content: rec.Content,
	}
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}

	if rec.Timestamp != "" {
		ts, err := parseTimestamp(rec.Timestamp)
		if err != nil {
			return session.Message{}, err
		}
		msg.Timestamp = ts
	}

	if rec.Tool != nil {
		msg.ToolName = rec.Tool.Name
		msg.ToolInput = string(rec.Tool.Input)
		msg.ToolOutput = rec.Tool.Output
		msg.ToolDurationMs = rec.Tool.DurationMs
	}
	if rec.Usage != nil {
		msg.InputTokens = rec.Usage.InputTokens
		msg.OutputTokens = rec.Usage.OutputTokens
	}

	return msg, nil
}

// ParseReader decodes every record in r, deriving turns from the result.
func (p *Parser) ParseReader(r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024), maxLineBytes)

	result := &Result{}
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		msg, err := p.ParseLine(raw)
		if err != nil {
			p.logger.Warn().
				Err(err).
				Int("line", line).
				Str("excerpt", logging.Redact(excerpt(raw))).
				Msg("skipping malformed transcript line")
			result.SkippedLines++
			continue
		}
		result.Messages = append(result.Messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan transcript: %w", err)
	}

	result.Turns = DeriveTurns(result.Messages)
	return result, nil
}

// ParseFile decodes the transcript at path.
func (p *Parser) ParseFile(path string) (*Result, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer file.Close()

	return p.ParseReader(file)
}

// DeriveTurns groups messages into turns. A user message opens a new turn;
// everything until the next user message belongs to it. Turn identity
// follows the first message's ID, so loading older history never re-keys
// turns that are already on screen.
func DeriveTurns(messages []session.Message) []session.TurnSummary {
	if len(messages) == 0 {
		return nil
	}

	var turns []session.TurnSummary
	var current *session.TurnSummary

	open := func(msg session.Message) {
		turns = append(turns, session.TurnSummary{
			ID:         "turn-" + msg.ID,
			TurnNumber: len(turns),
			StartedAt:  msg.Timestamp,
			Status:     session.TurnStatusInProgress,
		})
		current = &turns[len(turns)-1]
	}

	for _, msg := range messages {
		if current == nil || (msg.Type == session.MessageTypeUser && len(current.Messages) > 0) {
			open(msg)
		}

		current.Messages = append(current.Messages, msg)
		current.EndedAt = msg.Timestamp
		current.TokensUsed += msg.InputTokens + msg.OutputTokens

		if msg.IsTool() && msg.ToolName != "" && !containsString(current.ToolsUsed, msg.ToolName) {
			current.ToolsUsed = append(current.ToolsUsed, msg.ToolName)
		}
	}

	// Settle statuses: a turn that got an assistant reply is complete; a
	// non-final turn without one was interrupted by the next prompt.
	for i := range turns {
		answered := false
		for _, msg := range turns[i].Messages {
			if msg.Type == session.MessageTypeAssistant {
				answered = true
				break
			}
		}
		switch {
		case answered:
			turns[i].Status = session.TurnStatusCompleted
		case i < len(turns)-1:
			turns[i].Status = session.TurnStatusInterrupted
		default:
			turns[i].Status = session.TurnStatusInProgress
		}
	}

	return turns
}

func containsString(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}

func excerpt(raw []byte) string {
	const max = 120
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}

func parseTimestamp(value string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", value, err)
	}
	return ts, nil
}
