package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/loupe-view/loupe/internal/session"
)

// fiveToolTurn builds a focused-mode source with one turn shaped
// user, tool x5, assistant.
func fiveToolTurn() *SourceState {
	start := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	msgs := []session.Message{
		testMessage("u1", session.MessageTypeUser, "do the thing"),
		testToolMessage("t1", "read_file", "a"),
		testToolMessage("t2", "read_file", "b"),
		testToolMessage("t3", "grep", "c"),
		testToolMessage("t4", "edit_file", "d"),
		testToolMessage("t5", "bash", "e"),
		testMessage("a1", session.MessageTypeAssistant, "done"),
	}
	src := NewSourceState(session.SessionMetadata{ViewMode: session.ViewModeFocused})
	src.Messages = append(src.Messages, msgs...)
	src.Turns = []session.TurnSummary{
		{
			ID:         "turn-1",
			TurnNumber: 1,
			StartedAt:  start,
			Messages:   msgs,
			Status:     session.TurnStatusCompleted,
		},
	}
	return src
}

func rowKinds(rows []TimelineRow) []RowKind {
	kinds := make([]RowKind, len(rows))
	for i, row := range rows {
		kinds[i] = row.Kind
	}
	return kinds
}

func TestProjectVerboseEmitsEveryMessageChronologically(t *testing.T) {
	engine := NewEngine(Options{})
	src := NewSourceState(session.SessionMetadata{ViewMode: session.ViewModeVerbose})
	src.Messages = []session.Message{
		testMessage("m1", session.MessageTypeUser, "hi"),
		testToolMessage("m2", "bash", "ok"),
		testMessage("m3", session.MessageTypeAssistant, "hello"),
	}
	ui := NewUIState()

	proj := engine.Project(src, ui, nil)

	require.Equal(t, []RowID{
		MessageRowID("m1"),
		ToolRowID("m2"),
		MessageRowID("m3"),
		BottomSpacerRowID,
	}, proj.RowIDs())
	require.True(t, proj.Diff.Empty())
	require.Empty(t, proj.DirtyRowIDs)
}

func TestProjectCollapsesLongToolRuns(t *testing.T) {
	engine := NewEngine(Options{})
	src := fiveToolTurn()
	ui := NewUIState()

	proj := engine.Project(src, ui, nil)

	require.Equal(t, []RowID{
		TurnHeaderRowID("turn-1"),
		MessageRowID("u1"),
		RollupRowID(RollupKey("turn-1", 0)),
		ToolRowID("t1"),
		ToolRowID("t5"),
		MessageRowID("a1"),
		BottomSpacerRowID,
	}, proj.RowIDs())
	require.Equal(t, []RowKind{
		RowKindTurnHeader,
		RowKindMessage,
		RowKindRollupSummary,
		RowKindTool,
		RowKindTool,
		RowKindMessage,
		RowKindBottomSpacer,
	}, rowKinds(proj.Rows))

	rollup := proj.Rows[2].Rollup
	require.NotNil(t, rollup)
	require.Equal(t, 3, rollup.HiddenCount)
	require.Equal(t, []string{"read_file", "grep", "edit_file", "bash"}, rollup.ToolNames)
	require.False(t, rollup.Expanded)
}

func TestProjectExpandedRollupEmitsSummaryAndAllRows(t *testing.T) {
	engine := NewEngine(Options{})
	src := fiveToolTurn()
	ui := NewUIState()
	key := RollupKey("turn-1", 0)

	engine.Reduce(src, ui, ToggleRollup{Key: key})
	expanded := engine.Project(src, ui, nil)

	require.Equal(t, []RowID{
		TurnHeaderRowID("turn-1"),
		MessageRowID("u1"),
		RollupRowID(key),
		ToolRowID("t1"),
		ToolRowID("t2"),
		ToolRowID("t3"),
		ToolRowID("t4"),
		ToolRowID("t5"),
		MessageRowID("a1"),
		BottomSpacerRowID,
	}, expanded.RowIDs())

	// Collapsing again restores the original shape and identities.
	engine.Reduce(src, ui, ToggleRollup{Key: key})
	collapsed := engine.Project(src, ui, nil)
	require.Equal(t, []RowID{
		TurnHeaderRowID("turn-1"),
		MessageRowID("u1"),
		RollupRowID(key),
		ToolRowID("t1"),
		ToolRowID("t5"),
		MessageRowID("a1"),
		BottomSpacerRowID,
	}, collapsed.RowIDs())
}

func TestProjectShortToolRunsStayInline(t *testing.T) {
	engine := NewEngine(Options{})
	start := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	msgs := []session.Message{
		testMessage("u1", session.MessageTypeUser, "quick one"),
		testToolMessage("t1", "read_file", "a"),
		testToolMessage("t2", "bash", "b"),
		testMessage("a1", session.MessageTypeAssistant, "done"),
	}
	src := NewSourceState(session.SessionMetadata{ViewMode: session.ViewModeFocused})
	src.Messages = msgs
	src.Turns = []session.TurnSummary{{
		ID: "turn-1", TurnNumber: 1, StartedAt: start,
		Messages: msgs, Status: session.TurnStatusCompleted,
	}}

	proj := engine.Project(src, NewUIState(), nil)
	require.Equal(t, []RowID{
		TurnHeaderRowID("turn-1"),
		MessageRowID("u1"),
		ToolRowID("t1"),
		ToolRowID("t2"),
		MessageRowID("a1"),
		BottomSpacerRowID,
	}, proj.RowIDs())
}

func TestProjectSecondRollupGroupGetsNextKey(t *testing.T) {
	engine := NewEngine(Options{})
	start := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	msgs := []session.Message{
		testToolMessage("t1", "a", ""),
		testToolMessage("t2", "a", ""),
		testToolMessage("t3", "a", ""),
		testMessage("m1", session.MessageTypeAssistant, "between"),
		testToolMessage("t4", "b", ""),
		testToolMessage("t5", "b", ""),
		testToolMessage("t6", "b", ""),
		testToolMessage("t7", "b", ""),
	}
	src := NewSourceState(session.SessionMetadata{ViewMode: session.ViewModeFocused})
	src.Messages = msgs
	src.Turns = []session.TurnSummary{{
		ID: "turn-1", TurnNumber: 1, StartedAt: start,
		Messages: msgs, Status: session.TurnStatusInProgress,
	}}

	proj := engine.Project(src, NewUIState(), nil)
	require.Equal(t, []RowID{
		TurnHeaderRowID("turn-1"),
		RollupRowID(RollupKey("turn-1", 0)),
		ToolRowID("t1"),
		ToolRowID("t3"),
		MessageRowID("m1"),
		RollupRowID(RollupKey("turn-1", 1)),
		ToolRowID("t4"),
		ToolRowID("t7"),
		BottomSpacerRowID,
	}, proj.RowIDs())
}

func TestProjectIsDeterministicRegardlessOfPrevious(t *testing.T) {
	engine := NewEngine(Options{})
	src := fiveToolTurn()
	ui := NewUIState()
	ui.WidthBucket = 80

	base := engine.Project(src, ui, nil)

	other := NewSourceState(session.SessionMetadata{ViewMode: session.ViewModeVerbose})
	other.Messages = []session.Message{testMessage("x", session.MessageTypeUser, "unrelated")}
	unrelated := engine.Project(other, NewUIState(), nil)

	again := engine.Project(src, ui, &unrelated)
	require.Equal(t, base.Rows, again.Rows)

	third := engine.Project(src, ui, &base)
	require.Equal(t, base.Rows, third.Rows)
	require.True(t, third.Diff.Empty())
	require.Empty(t, third.DirtyRowIDs)
}

func TestProjectPrependShowsUpAsLeadingInsertion(t *testing.T) {
	engine := NewEngine(Options{})
	src := NewSourceState(session.SessionMetadata{ViewMode: session.ViewModeVerbose})
	ui := NewUIState()
	engine.Reduce(src, ui, AppendMessages{Messages: []session.Message{
		testMessage("m2", session.MessageTypeAssistant, "present"),
	}})
	before := engine.Project(src, ui, nil)

	engine.Reduce(src, ui, PrependMessages{Messages: []session.Message{
		testMessage("m1", session.MessageTypeUser, "older"),
	}})
	after := engine.Project(src, ui, &before)

	require.Equal(t, []int{0}, after.Diff.Insertions)
	require.Empty(t, after.Diff.Deletions)
	require.Empty(t, after.Diff.Reloads)
	require.True(t, IsPrependTransition(before.RowIDs(), after.RowIDs()))
}

func TestProjectWidthChangeTouchesLayoutHashOnly(t *testing.T) {
	engine := NewEngine(Options{})
	src := fiveToolTurn()
	ui := NewUIState()

	engine.Reduce(src, ui, WidthChanged{Width: 80})
	narrow := engine.Project(src, ui, nil)

	engine.Reduce(src, ui, WidthChanged{Width: 120})
	wide := engine.Project(src, ui, &narrow)

	require.Empty(t, wide.Diff.Insertions)
	require.Empty(t, wide.Diff.Deletions)
	require.Empty(t, wide.Diff.Reloads)
	require.Empty(t, wide.DirtyRowIDs)
	for i := range wide.Rows {
		require.Equal(t, narrow.Rows[i].RenderHash, wide.Rows[i].RenderHash, "render hash for %s", wide.Rows[i].ID)
		require.NotEqual(t, narrow.Rows[i].LayoutHash, wide.Rows[i].LayoutHash, "layout hash for %s", wide.Rows[i].ID)
	}
}

func TestProjectToolCardToggleDirtiesWithoutMoving(t *testing.T) {
	engine := NewEngine(Options{})
	src := fiveToolTurn()
	ui := NewUIState()
	before := engine.Project(src, ui, nil)

	engine.Reduce(src, ui, ToggleToolCard{MessageID: "t1"})
	after := engine.Project(src, ui, &before)

	require.Equal(t, before.RowIDs(), after.RowIDs())
	require.Empty(t, after.Diff.Insertions)
	require.Empty(t, after.Diff.Deletions)
	require.Equal(t, []int{3}, after.Diff.Reloads)
	require.Contains(t, after.DirtyRowIDs, ToolRowID("t1"))
	require.Len(t, after.DirtyRowIDs, 1)
}

func TestProjectContentChangeReloadsInPlace(t *testing.T) {
	engine := NewEngine(Options{})
	src := NewSourceState(session.SessionMetadata{ViewMode: session.ViewModeVerbose})
	ui := NewUIState()
	engine.Reduce(src, ui, AppendMessages{Messages: []session.Message{
		testMessage("m1", session.MessageTypeAssistant, "streaming..."),
	}})
	before := engine.Project(src, ui, nil)

	updated := src.Messages[0]
	updated.Content = "streaming... done"
	engine.Reduce(src, ui, UpdateMessage{Message: updated})
	after := engine.Project(src, ui, &before)

	require.Equal(t, []int{0}, after.Diff.Reloads)
	require.Contains(t, after.DirtyRowIDs, MessageRowID("m1"))
}

func TestProjectStaleExpandedRollupKeyIsInert(t *testing.T) {
	engine := NewEngine(Options{})
	src := fiveToolTurn()
	ui := NewUIState()
	engine.Reduce(src, ui, ToggleRollup{Key: RollupKey("turn-gone", 7)})

	proj := engine.Project(src, ui, nil)
	require.Equal(t, []RowID{
		TurnHeaderRowID("turn-1"),
		MessageRowID("u1"),
		RollupRowID(RollupKey("turn-1", 0)),
		ToolRowID("t1"),
		ToolRowID("t5"),
		MessageRowID("a1"),
		BottomSpacerRowID,
	}, proj.RowIDs())
}

func TestProjectMissingToolDetailStillProjects(t *testing.T) {
	engine := NewEngine(Options{})
	src := NewSourceState(session.SessionMetadata{ViewMode: session.ViewModeVerbose})
	ui := NewUIState()
	bare := session.Message{
		ID:        "t1",
		Type:      session.MessageTypeTool,
		Timestamp: time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}
	engine.Reduce(src, ui, AppendMessages{Messages: []session.Message{bare}})

	proj := engine.Project(src, ui, nil)
	require.Equal(t, []RowID{ToolRowID("t1"), BottomSpacerRowID}, proj.RowIDs())
	require.Equal(t, RowKindTool, proj.Rows[0].Kind)
}
