// Package session defines the transcript domain model for loupe.
package session

import (
	"time"
)

// MessageType categorizes transcript messages.
type MessageType string

const (
	MessageTypeUser      MessageType = "user"
	MessageTypeAssistant MessageType = "assistant"
	MessageTypeTool      MessageType = "tool"
	MessageTypeSystem    MessageType = "system"
)

// ViewMode selects how the transcript is flattened for display.
type ViewMode string

const (
	// ViewModeVerbose shows every message chronologically with no grouping.
	ViewModeVerbose ViewMode = "verbose"

	// ViewModeFocused groups messages under turn headers and rolls up
	// long tool-call runs.
	ViewModeFocused ViewMode = "focused"
)

// Message is one transcript entry. Messages are the single source of truth
// for content; IDs are globally unique and immutable once assigned.
type Message struct {
	// ID is the unique identifier for the message.
	ID string `json:"id"`

	// Type categorizes the message.
	Type MessageType `json:"type"`

	// Content is the message text.
	Content string `json:"content"`

	// Timestamp is when the message was recorded.
	Timestamp time.Time `json:"timestamp"`

	// ToolName is set for tool messages.
	ToolName string `json:"tool_name,omitempty"`

	// ToolInput is the opaque serialized tool input, if any.
	ToolInput string `json:"tool_input,omitempty"`

	// ToolOutput is the opaque serialized tool output, if any.
	ToolOutput string `json:"tool_output,omitempty"`

	// ToolDurationMs is how long the tool call took, in milliseconds.
	ToolDurationMs int64 `json:"tool_duration_ms,omitempty"`

	// InputTokens and OutputTokens carry token accounting when known.
	InputTokens  int `json:"input_tokens,omitempty"`
	OutputTokens int `json:"output_tokens,omitempty"`
}

// IsTool reports whether the message is a tool call.
func (m Message) IsTool() bool {
	return m.Type == MessageTypeTool
}

// Validate checks required message fields.
func (m Message) Validate() error {
	v := &ValidationErrors{}
	if m.ID == "" {
		v.AddMessage("id", "message id is required")
	}
	switch m.Type {
	case MessageTypeUser, MessageTypeAssistant, MessageTypeTool, MessageTypeSystem:
	default:
		v.AddMessage("type", "unknown message type "+string(m.Type))
	}
	return v.Err()
}
