package timeline

import (
	"github.com/loupe-view/loupe/internal/session"
)

// Action is a discrete edit applied to the two state buckets through Reduce.
// External events (transcript updates, user interaction, resizes) are
// serialized into actions by the caller; the engine applies them one at a
// time in submission order.
type Action interface {
	isAction()
}

// AppendMessages appends new messages to the end of the transcript.
// Messages whose ID is already loaded are dropped, which makes the action
// idempotent against replays.
type AppendMessages struct {
	Messages []session.Message
}

// PrependMessages inserts older history at the start of the transcript,
// preserving the relative order of the batch. Duplicate IDs are dropped.
type PrependMessages struct {
	Messages []session.Message
}

// UpdateMessage replaces a loaded message in place, matched by ID. Used for
// streaming content updates; unknown IDs are ignored.
type UpdateMessage struct {
	Message session.Message
}

// ToggleToolCard flips the expansion of one tool message's detail card.
type ToggleToolCard struct {
	MessageID string
}

// ToggleRollup flips the expansion of one rollup group.
type ToggleRollup struct {
	Key string
}

// WidthChanged records a new raw layout width; the reducer stores its
// bucketed value.
type WidthChanged struct {
	Width int
}

// SetTurns replaces the derived turn grouping. Used when the ingest layer
// finalizes or re-derives turn boundaries.
type SetTurns struct {
	Turns []session.TurnSummary
}

// SetMetadata replaces the session-level display context.
type SetMetadata struct {
	Metadata session.SessionMetadata
}

// SetViewMode switches between verbose and focused flattening.
type SetViewMode struct {
	Mode session.ViewMode
}

func (AppendMessages) isAction()  {}
func (PrependMessages) isAction() {}
func (UpdateMessage) isAction()   {}
func (ToggleToolCard) isAction()  {}
func (ToggleRollup) isAction()    {}
func (WidthChanged) isAction()    {}
func (SetTurns) isAction()        {}
func (SetMetadata) isAction()     {}
func (SetViewMode) isAction()     {}
