package timeline

import (
	"github.com/loupe-view/loupe/internal/session"
)

// SourceState is the transcript-derived state bucket. It is mutated only by
// the reducer; the projector treats it as read-only input.
type SourceState struct {
	// Messages is the chronological transcript, the single source of truth
	// for content.
	Messages []session.Message

	// Turns is the derived grouping of messages into request/response
	// cycles. It must never reference messages absent from Messages.
	Turns []session.TurnSummary

	// Metadata is session-level display context.
	Metadata session.SessionMetadata

	// ids tracks known message IDs for duplicate rejection. Rebuilt lazily
	// when nil.
	ids map[string]struct{}
}

// NewSourceState returns an empty source state with the given metadata.
func NewSourceState(meta session.SessionMetadata) *SourceState {
	return &SourceState{
		Metadata: meta,
		ids:      make(map[string]struct{}),
	}
}

// HasMessage reports whether a message with the given ID is loaded.
func (s *SourceState) HasMessage(id string) bool {
	s.ensureIndex()
	_, ok := s.ids[id]
	return ok
}

func (s *SourceState) ensureIndex() {
	if s.ids != nil {
		return
	}
	s.ids = make(map[string]struct{}, len(s.Messages))
	for _, msg := range s.Messages {
		s.ids[msg.ID] = struct{}{}
	}
}

// UIState is the transient, view-only state bucket. It is never persisted
// and is mutated only by the reducer in response to user interactions.
type UIState struct {
	// ExpandedToolCards holds message IDs whose tool detail is expanded.
	ExpandedToolCards map[string]struct{}

	// ExpandedRollups holds rollup keys that are expanded. Keys that no
	// longer correspond to a current rollup group are inert, not an error.
	ExpandedRollups map[string]struct{}

	// WidthBucket is the discretized horizontal space available for layout,
	// used only to decide when cached heights are stale.
	WidthBucket int
}

// NewUIState returns an empty UI state.
func NewUIState() *UIState {
	return &UIState{
		ExpandedToolCards: make(map[string]struct{}),
		ExpandedRollups:   make(map[string]struct{}),
	}
}

// ToolCardExpanded reports whether the tool detail for a message is open.
func (u *UIState) ToolCardExpanded(messageID string) bool {
	_, ok := u.ExpandedToolCards[messageID]
	return ok
}

// RollupExpanded reports whether a rollup group is expanded.
func (u *UIState) RollupExpanded(key string) bool {
	_, ok := u.ExpandedRollups[key]
	return ok
}
