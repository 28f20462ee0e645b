// Package timeline turns a mutating transcript plus transient UI state into
// an identity-stable row list a virtualized list view can render, along with
// a minimal diff against the previous projection.
package timeline

import (
	"strconv"

	"github.com/loupe-view/loupe/internal/session"
)

// RowKind is the closed set of renderable row variants.
type RowKind int

const (
	RowKindTurnHeader RowKind = iota
	RowKindMessage
	RowKindTool
	RowKindRollupSummary
	RowKindBottomSpacer
)

// String returns the row kind label.
func (k RowKind) String() string {
	switch k {
	case RowKindTurnHeader:
		return "turn_header"
	case RowKindMessage:
		return "message"
	case RowKindTool:
		return "tool"
	case RowKindRollupSummary:
		return "rollup_summary"
	case RowKindBottomSpacer:
		return "bottom_spacer"
	default:
		return "unknown"
	}
}

// RowID is the stable identity of one renderable unit, independent of its
// position in the list. The encoded form is kind-prefixed so IDs from
// different variants can never collide.
type RowID string

// MessageRowID identifies a non-tool message row.
func MessageRowID(messageID string) RowID { return RowID("msg:" + messageID) }

// ToolRowID identifies a tool message row.
func ToolRowID(messageID string) RowID { return RowID("tool:" + messageID) }

// TurnHeaderRowID identifies a turn header row.
func TurnHeaderRowID(turnID string) RowID { return RowID("turn:" + turnID) }

// RollupRowID identifies a rollup summary row.
func RollupRowID(rollupKey string) RowID { return RowID("rollup:" + rollupKey) }

// BottomSpacerRowID is the fixed identity of the trailing spacer row.
const BottomSpacerRowID RowID = "spacer:bottom"

// RollupKey derives the stable identifier of the k-th rollup group within a
// turn, zero-indexed left to right. The key is stable as long as grouping
// boundaries for the turn do not shift.
func RollupKey(turnID string, groupIndex int) string {
	return turnID + ":g" + strconv.Itoa(groupIndex)
}

// RollupInfo describes one collapsed run of consecutive tool messages.
type RollupInfo struct {
	// Key is the rollup identifier, see RollupKey.
	Key string

	// TurnID owns the rollup group.
	TurnID string

	// GroupIndex is the zero-based position of the group within its turn.
	GroupIndex int

	// HiddenCount is how many interior tool messages the summary stands for.
	HiddenCount int

	// ToolNames are the distinct tool names across the whole run, in
	// first-use order.
	ToolNames []string

	// Expanded is true when the interior rows are emitted alongside the
	// summary.
	Expanded bool
}

// TimelineRow is one renderable unit of the projection.
type TimelineRow struct {
	// ID is the stable row identity.
	ID RowID

	// Kind selects the row variant.
	Kind RowKind

	// RenderHash changes iff the row's visual content changes.
	RenderHash uint64

	// LayoutHash changes iff anything affecting measured height changes.
	// It covers every RenderHash input plus the width bucket.
	LayoutHash uint64

	// Message is set for message and tool rows.
	Message *session.Message

	// Turn is set for turn header rows.
	Turn *session.TurnSummary

	// Rollup is set for rollup summary rows.
	Rollup *RollupInfo

	// ToolExpanded is set for tool rows whose detail card is open.
	ToolExpanded bool
}
