package viewtui

import (
	"context"
	"fmt"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/loupe-view/loupe/internal/session"
	"github.com/loupe-view/loupe/internal/timeline"
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func newTestView(mode session.ViewMode, messages []session.Message) *sessionView {
	engine := timeline.NewEngine(timeline.Options{})
	renderer := newRowRenderer(DefaultPalette, false)
	v := newSessionView(engine, session.SessionMetadata{ViewMode: mode}, renderer)
	v.SetSize(80, 10)
	v.SetInitial(messages)
	return v
}

func shortMessage(id string, msgType session.MessageType) session.Message {
	return session.Message{
		ID:        id,
		Type:      msgType,
		Content:   "content of " + id,
		Timestamp: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func toolRunFixture() []session.Message {
	msgs := []session.Message{shortMessage("u1", session.MessageTypeUser)}
	for i := 1; i <= 5; i++ {
		msg := shortMessage(fmt.Sprintf("t%d", i), session.MessageTypeTool)
		msg.ToolName = "bash"
		msgs = append(msgs, msg)
	}
	return append(msgs, shortMessage("a1", session.MessageTypeAssistant))
}

func rowKinds(v *sessionView) []timeline.RowKind {
	kinds := make([]timeline.RowKind, len(v.proj.Rows))
	for i, row := range v.proj.Rows {
		kinds[i] = row.Kind
	}
	return kinds
}

func TestSessionViewCollapsesToolRuns(t *testing.T) {
	v := newTestView(session.ViewModeFocused, toolRunFixture())

	require.Equal(t, []timeline.RowKind{
		timeline.RowKindTurnHeader,
		timeline.RowKindMessage,
		timeline.RowKindRollupSummary,
		timeline.RowKindTool,
		timeline.RowKindTool,
		timeline.RowKindMessage,
		timeline.RowKindBottomSpacer,
	}, rowKinds(v))
}

func TestSessionViewToggleRollupThroughKeys(t *testing.T) {
	v := newTestView(session.ViewModeFocused, toolRunFixture())
	collapsed := len(v.proj.Rows)

	// Select the rollup summary row and expand it.
	v.setSelection(2)
	require.Equal(t, timeline.RowKindRollupSummary, v.proj.Rows[v.selectedIdx].Kind)
	require.Nil(t, v.handleKey(tea.KeyMsg{Type: tea.KeyEnter}))
	require.Len(t, v.proj.Rows, collapsed+3)

	// Selection sticks to the summary row by identity.
	require.Equal(t, timeline.RowKindRollupSummary, v.proj.Rows[v.selectedIdx].Kind)

	// Collapse back to the original shape.
	require.Nil(t, v.handleKey(tea.KeyMsg{Type: tea.KeyEnter}))
	require.Len(t, v.proj.Rows, collapsed)
}

func TestSessionViewToggleToolCard(t *testing.T) {
	v := newTestView(session.ViewModeFocused, toolRunFixture())

	v.setSelection(3)
	row := v.proj.Rows[v.selectedIdx]
	require.Equal(t, timeline.RowKindTool, row.Kind)
	require.False(t, row.ToolExpanded)

	require.Nil(t, v.handleKey(tea.KeyMsg{Type: tea.KeyEnter}))

	row = v.proj.Rows[v.selectedIdx]
	require.Equal(t, timeline.RowKindTool, row.Kind)
	require.True(t, row.ToolExpanded)

	// Row count is unchanged; expansion only changes content.
	require.Len(t, v.proj.Rows, 7)
}

func TestSessionViewViewModeToggleKey(t *testing.T) {
	v := newTestView(session.ViewModeFocused, toolRunFixture())
	require.Len(t, v.proj.Rows, 7)

	require.Nil(t, v.handleKey(runeKey('v')))
	// Verbose: 7 messages plus the spacer, no headers or rollups.
	require.Len(t, v.proj.Rows, 8)
	mode, _, _, _ := v.Status()
	require.Equal(t, session.ViewModeVerbose, mode)

	require.Nil(t, v.handleKey(runeKey('v')))
	require.Len(t, v.proj.Rows, 7)
}

func TestSessionViewFollowsTailOnAppend(t *testing.T) {
	var msgs []session.Message
	for i := 0; i < 20; i++ {
		msgs = append(msgs, shortMessage(fmt.Sprintf("m%02d", i), session.MessageTypeAssistant))
	}
	v := newTestView(session.ViewModeVerbose, msgs)
	v.SetSize(80, 5)

	require.True(t, v.followTail)
	require.Equal(t, v.contentHeight()-5, v.top)

	require.Nil(t, v.Update(appendedMsg{messages: []session.Message{
		shortMessage("m99", session.MessageTypeAssistant),
	}}))
	require.Equal(t, v.contentHeight()-5, v.top)
	_, loaded, _, _ := v.Status()
	require.Equal(t, 21, loaded)
}

func TestSessionViewScrollUpStopsFollowingTail(t *testing.T) {
	var msgs []session.Message
	for i := 0; i < 20; i++ {
		msgs = append(msgs, shortMessage(fmt.Sprintf("m%02d", i), session.MessageTypeAssistant))
	}
	v := newTestView(session.ViewModeVerbose, msgs)
	v.SetSize(80, 5)
	v.setSelection(10)

	require.Nil(t, v.handleKey(runeKey('k')))
	require.False(t, v.followTail)

	topBefore := v.top
	require.Nil(t, v.Update(appendedMsg{messages: []session.Message{
		shortMessage("m99", session.MessageTypeAssistant),
	}}))
	require.Equal(t, topBefore, v.top)
}

type stubHistoryLoader struct {
	page  HistoryPage
	calls int
}

func (s *stubHistoryLoader) LoadBefore(_ context.Context, cursor int64, limit int) (HistoryPage, error) {
	s.calls++
	return s.page, nil
}

func TestSessionViewPrependRestoresViewport(t *testing.T) {
	var msgs []session.Message
	for i := 10; i < 20; i++ {
		msgs = append(msgs, shortMessage(fmt.Sprintf("m%02d", i), session.MessageTypeAssistant))
	}
	v := newTestView(session.ViewModeVerbose, msgs)
	v.SetSize(80, 5)

	// Scroll so row m13 sits at the viewport top. Single-line rows make
	// content Y equal the row index.
	v.followTail = false
	v.top = 3
	anchorID := v.proj.Rows[3].ID

	var older []session.Message
	for i := 5; i < 10; i++ {
		older = append(older, shortMessage(fmt.Sprintf("m%02d", i), session.MessageTypeAssistant))
	}
	require.Nil(t, v.Update(historyLoadedMsg{page: HistoryPage{
		Messages: older,
		Cursor:   5,
		HasMore:  true,
	}}))

	// The anchor row moved down by the five prepended rows, and the
	// viewport moved with it.
	rowTop, ok := v.rowTopByID(anchorID)
	require.True(t, ok)
	require.Equal(t, 8, rowTop)
	require.Equal(t, 8, v.top)
	require.True(t, v.hasMore)
	require.Equal(t, int64(5), v.historyCursor)
}

func TestSessionViewLazyLoadTriggersOnceNearTop(t *testing.T) {
	loader := &stubHistoryLoader{page: HistoryPage{}}

	var msgs []session.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, shortMessage(fmt.Sprintf("m%02d", i), session.MessageTypeAssistant))
	}
	v := newTestView(session.ViewModeVerbose, msgs)
	v.SetHistory(loader, 42, true, 3)
	v.setSelection(2)

	cmd := v.moveSelection(-1)
	require.NotNil(t, cmd)
	require.True(t, v.loadingOlder)

	// A second trigger while the first load is in flight is suppressed.
	require.Nil(t, v.moveSelection(-1))

	msg, ok := cmd().(historyLoadedMsg)
	require.True(t, ok)
	require.NoError(t, msg.err)
	require.Equal(t, 1, loader.calls)

	require.Nil(t, v.Update(msg))
	require.False(t, v.loadingOlder)
	require.False(t, v.hasMore)
}

func TestSessionViewHeightsComeFromCache(t *testing.T) {
	v := newTestView(session.ViewModeVerbose, []session.Message{
		shortMessage("m1", session.MessageTypeUser),
	})

	before := v.cache.Len()
	_ = v.contentHeight()
	require.Equal(t, before, v.cache.Len(), "repeated measurement must hit the cache")

	// A width change re-buckets and re-measures under new keys.
	v.SetSize(96, 10)
	_ = v.contentHeight()
	require.Greater(t, v.cache.Len(), before)
}

func TestSessionViewRendersOnlyViewportWindow(t *testing.T) {
	var msgs []session.Message
	for i := 0; i < 30; i++ {
		msgs = append(msgs, shortMessage(fmt.Sprintf("m%02d", i), session.MessageTypeAssistant))
	}
	v := newTestView(session.ViewModeVerbose, msgs)
	v.SetSize(80, 6)
	v.followTail = false
	v.top = 10

	out := v.View(80, 6, DefaultPalette)
	require.Contains(t, out, "content of m10")
	require.Contains(t, out, "content of m15")
	require.NotContains(t, out, "content of m09")
	require.NotContains(t, out, "content of m16")
}
