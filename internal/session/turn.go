package session

import (
	"time"
)

// TurnStatus tracks the lifecycle of one request/response cycle.
type TurnStatus string

const (
	TurnStatusInProgress  TurnStatus = "in_progress"
	TurnStatusCompleted   TurnStatus = "completed"
	TurnStatusInterrupted TurnStatus = "interrupted"
	TurnStatusFailed      TurnStatus = "failed"
)

// TurnSummary groups a contiguous run of messages under one user request
// plus the agent's resulting work. Turns are a derived grouping; they must
// never reference messages absent from the transcript.
type TurnSummary struct {
	// ID is the unique identifier for the turn.
	ID string `json:"id"`

	// TurnNumber is monotonic within a session.
	TurnNumber int `json:"turn_number"`

	// StartedAt and EndedAt bound the turn.
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`

	// Messages are the transcript entries contained in this turn.
	Messages []Message `json:"messages"`

	// ToolsUsed lists tool names invoked during the turn.
	ToolsUsed []string `json:"tools_used,omitempty"`

	// ChangedFiles lists files the agent touched during the turn.
	ChangedFiles []string `json:"changed_files,omitempty"`

	// Status is the turn lifecycle state.
	Status TurnStatus `json:"status"`

	// Diff is an opaque, pre-computed unified-diff blob for the turn.
	// It is passed through to display untouched.
	Diff string `json:"diff,omitempty"`

	// TokensUsed and TokenDelta carry token accounting when known.
	TokensUsed int `json:"tokens_used,omitempty"`
	TokenDelta int `json:"token_delta,omitempty"`
}

// Validate checks required turn fields.
func (t TurnSummary) Validate() error {
	v := &ValidationErrors{}
	if t.ID == "" {
		v.AddMessage("id", "turn id is required")
	}
	if t.TurnNumber < 0 {
		v.AddMessage("turn_number", "turn number must not be negative")
	}
	switch t.Status {
	case TurnStatusInProgress, TurnStatusCompleted, TurnStatusInterrupted, TurnStatusFailed:
	default:
		v.AddMessage("status", "unknown turn status "+string(t.Status))
	}
	for _, msg := range t.Messages {
		if err := msg.Validate(); err != nil {
			v.Add("messages", err)
		}
	}
	return v.Err()
}

// ContainsOnly reports whether every message in the turn is present in the
// given transcript ID set. Used to enforce the turns-derive-from-messages
// invariant at ingest boundaries.
func (t TurnSummary) ContainsOnly(known map[string]struct{}) bool {
	for _, msg := range t.Messages {
		if _, ok := known[msg.ID]; !ok {
			return false
		}
	}
	return true
}

// SessionMetadata carries session-level display context.
type SessionMetadata struct {
	// ViewMode selects verbose or focused flattening.
	ViewMode ViewMode `json:"view_mode"`

	// SessionActive is true while the agent session is still running.
	SessionActive bool `json:"session_active"`

	// WorkStatus is a short human-readable description of current work.
	WorkStatus string `json:"work_status,omitempty"`

	// CurrentTool is the tool currently in flight, if any.
	CurrentTool string `json:"current_tool,omitempty"`

	// PendingToolName and PendingToolInput describe a tool call awaiting
	// execution or approval.
	PendingToolName  string `json:"pending_tool_name,omitempty"`
	PendingToolInput string `json:"pending_tool_input,omitempty"`

	// CurrentPrompt is the user prompt driving the in-progress turn.
	CurrentPrompt string `json:"current_prompt,omitempty"`

	// MessageCount is the total number of loaded messages.
	MessageCount int `json:"message_count"`

	// UnloadedCount is how many older messages exist but are not loaded.
	UnloadedCount int `json:"unloaded_count,omitempty"`

	// HasMoreHistory is true when older history can still be fetched.
	HasMoreHistory bool `json:"has_more_history,omitempty"`
}
