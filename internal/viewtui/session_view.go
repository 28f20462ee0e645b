package viewtui

import (
	"context"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/loupe-view/loupe/internal/ingest"
	"github.com/loupe-view/loupe/internal/logging"
	"github.com/loupe-view/loupe/internal/session"
	"github.com/loupe-view/loupe/internal/timeline"
)

const (
	// Trigger older-history loading when the viewport top enters the
	// first few rows.
	historyLoadThresholdRows = 4

	historyLoadTimeout = 5 * time.Second
)

// HistoryPage is one batch of older messages fetched behind the viewport.
type HistoryPage struct {
	Messages []session.Message
	Cursor   int64
	HasMore  bool
}

// HistoryLoader fetches older history pages, newest window first.
type HistoryLoader interface {
	LoadBefore(ctx context.Context, cursor int64, limit int) (HistoryPage, error)
}

type appendedMsg struct {
	messages []session.Message
}

type historyLoadedMsg struct {
	page HistoryPage
	err  error
}

// sessionView owns one projection engine instance and runs the explicit
// reduce+project cycle for a single session. All transcript and UI state
// lives in the engine's state buckets; the view only keeps scroll geometry.
type sessionView struct {
	engine   *timeline.Engine
	src      *timeline.SourceState
	ui       *timeline.UIState
	proj     timeline.Projection
	cache    *timeline.HeightCache
	renderer *rowRenderer
	logger   zerolog.Logger

	history       HistoryLoader
	historyCursor int64
	pageSize      int
	loadingOlder  bool
	hasMore       bool

	width  int
	height int

	top         int
	selectedIdx int
	selectedID  timeline.RowID
	followTail  bool

	lastErr error
}

func newSessionView(engine *timeline.Engine, meta session.SessionMetadata, renderer *rowRenderer) *sessionView {
	return &sessionView{
		engine:     engine,
		src:        timeline.NewSourceState(meta),
		ui:         timeline.NewUIState(),
		cache:      timeline.NewHeightCache(),
		renderer:   renderer,
		logger:     logging.Component("viewtui"),
		pageSize:   200,
		followTail: true,
	}
}

// SetHistory wires lazy older-history loading.
func (v *sessionView) SetHistory(loader HistoryLoader, cursor int64, hasMore bool, pageSize int) {
	v.history = loader
	v.historyCursor = cursor
	v.hasMore = hasMore
	if pageSize > 0 {
		v.pageSize = pageSize
	}

	meta := v.src.Metadata
	meta.HasMoreHistory = hasMore
	v.engine.Reduce(v.src, v.ui, timeline.SetMetadata{Metadata: meta})
}

// SetInitial loads the already-parsed transcript into the state buckets.
func (v *sessionView) SetInitial(messages []session.Message) {
	v.engine.Reduce(v.src, v.ui, timeline.AppendMessages{Messages: messages})
	v.engine.Reduce(v.src, v.ui, timeline.SetTurns{Turns: ingest.DeriveTurns(v.src.Messages)})
	v.reproject()
	v.scrollToBottom()
}

// SetSize records the layout size and re-buckets the width.
func (v *sessionView) SetSize(width, height int) {
	v.width = width
	v.height = height
	v.engine.Reduce(v.src, v.ui, timeline.WidthChanged{Width: width})
	v.reproject()
	if v.followTail {
		v.scrollToBottom()
	} else {
		v.clampTop()
	}
}

func (v *sessionView) Init() tea.Cmd {
	return nil
}

func (v *sessionView) Update(msg tea.Msg) tea.Cmd {
	switch typed := msg.(type) {
	case appendedMsg:
		v.applyAppend(typed.messages)
		return nil
	case historyLoadedMsg:
		v.loadingOlder = false
		if typed.err != nil {
			v.lastErr = typed.err
			v.logger.Warn().Err(typed.err).Msg("older history load failed")
			return nil
		}
		v.applyHistory(typed.page)
		return nil
	case tea.KeyMsg:
		return v.handleKey(typed)
	}
	return nil
}

func (v *sessionView) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "up", "k":
		return v.moveSelection(-1)
	case "down", "j":
		return v.moveSelection(1)
	case "pgup":
		return v.moveSelection(-v.pageRows())
	case "pgdown":
		return v.moveSelection(v.pageRows())
	case "g", "home":
		v.followTail = false
		v.setSelection(0)
		return v.maybeLoadOlder()
	case "G", "end":
		v.followTail = true
		v.setSelection(len(v.proj.Rows) - 1)
		v.scrollToBottom()
		return nil
	case "enter", " ":
		v.toggleSelected()
		return nil
	case "v":
		v.toggleViewMode()
		return nil
	}
	return nil
}

// moveSelection shifts the selected row, keeps it visible, and triggers a
// lazy history load when the viewport approaches the top.
func (v *sessionView) moveSelection(delta int) tea.Cmd {
	if len(v.proj.Rows) == 0 {
		return nil
	}
	if delta < 0 {
		v.followTail = false
	}
	v.setSelection(v.selectedIdx + delta)
	if v.selectedIdx >= len(v.proj.Rows)-1 {
		v.followTail = true
	}
	if v.selectedIdx < historyLoadThresholdRows {
		return v.maybeLoadOlder()
	}
	return nil
}

func (v *sessionView) setSelection(idx int) {
	last := len(v.proj.Rows) - 1
	if last < 0 {
		v.selectedIdx = 0
		v.selectedID = ""
		return
	}
	// The trailing spacer is not selectable.
	if last > 0 && v.proj.Rows[last].Kind == timeline.RowKindBottomSpacer {
		last--
	}
	if idx < 0 {
		idx = 0
	}
	if idx > last {
		idx = last
	}
	v.selectedIdx = idx
	v.selectedID = v.proj.Rows[idx].ID
	v.ensureSelectionVisible()
}

func (v *sessionView) toggleSelected() {
	if v.selectedIdx < 0 || v.selectedIdx >= len(v.proj.Rows) {
		return
	}
	row := v.proj.Rows[v.selectedIdx]
	switch row.Kind {
	case timeline.RowKindTool:
		if row.Message != nil {
			v.engine.Reduce(v.src, v.ui, timeline.ToggleToolCard{MessageID: row.Message.ID})
		}
	case timeline.RowKindRollupSummary:
		if row.Rollup != nil {
			v.engine.Reduce(v.src, v.ui, timeline.ToggleRollup{Key: row.Rollup.Key})
		}
	default:
		return
	}
	v.reproject()
	v.ensureSelectionVisible()
}

func (v *sessionView) toggleViewMode() {
	mode := session.ViewModeFocused
	if v.src.Metadata.ViewMode == session.ViewModeFocused {
		mode = session.ViewModeVerbose
	}
	v.engine.Reduce(v.src, v.ui, timeline.SetViewMode{Mode: mode})
	v.reproject()
	v.clampTop()
}

func (v *sessionView) applyAppend(messages []session.Message) {
	v.engine.Reduce(v.src, v.ui, timeline.AppendMessages{Messages: messages})
	v.engine.Reduce(v.src, v.ui, timeline.SetTurns{Turns: ingest.DeriveTurns(v.src.Messages)})
	v.reproject()
	if v.followTail {
		v.setSelection(len(v.proj.Rows) - 1)
		v.scrollToBottom()
	}
}

// applyHistory prepends older messages and restores the viewport so the
// previously visible content does not move on screen.
func (v *sessionView) applyHistory(page HistoryPage) {
	v.historyCursor = page.Cursor
	v.hasMore = page.HasMore

	meta := v.src.Metadata
	meta.HasMoreHistory = page.HasMore
	v.engine.Reduce(v.src, v.ui, timeline.SetMetadata{Metadata: meta})

	if len(page.Messages) == 0 {
		v.reproject()
		return
	}

	oldIDs := v.proj.RowIDs()
	anchorID, delta := v.captureAnchor()

	v.engine.Reduce(v.src, v.ui, timeline.PrependMessages{Messages: page.Messages})
	v.engine.Reduce(v.src, v.ui, timeline.SetTurns{Turns: ingest.DeriveTurns(v.src.Messages)})
	v.reproject()

	if anchorID != "" && timeline.IsPrependTransition(oldIDs, v.proj.RowIDs()) {
		if rowTop, ok := v.rowTopByID(anchorID); ok {
			v.top = timeline.RestoredViewportTop(rowTop, delta, v.contentHeight(), v.height)
		}
	}
	v.followTail = false
}

// captureAnchor picks the first row intersecting the viewport top and the
// offset of the viewport into it.
func (v *sessionView) captureAnchor() (timeline.RowID, int) {
	tops := v.rowTops()
	for i := range v.proj.Rows {
		if tops[i+1] > v.top {
			return v.proj.Rows[i].ID, timeline.CaptureDelta(v.top, tops[i])
		}
	}
	return "", 0
}

func (v *sessionView) maybeLoadOlder() tea.Cmd {
	if v.history == nil || v.loadingOlder || !v.hasMore {
		return nil
	}
	v.loadingOlder = true

	loader := v.history
	cursor := v.historyCursor
	limit := v.pageSize
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), historyLoadTimeout)
		defer cancel()
		page, err := loader.LoadBefore(ctx, cursor, limit)
		return historyLoadedMsg{page: page, err: err}
	}
}

// reproject runs the projector against the previous projection, then drops
// cached heights for every row whose content changed.
func (v *sessionView) reproject() {
	prev := v.proj
	v.proj = v.engine.Project(v.src, v.ui, &prev)
	for id := range v.proj.DirtyRowIDs {
		v.cache.InvalidateRow(id)
	}
	v.restoreSelection()
}

// restoreSelection re-finds the selected row by identity after the row list
// changed shape.
func (v *sessionView) restoreSelection() {
	if v.selectedID != "" {
		for i := range v.proj.Rows {
			if v.proj.Rows[i].ID == v.selectedID {
				v.selectedIdx = i
				return
			}
		}
	}
	if v.selectedIdx >= len(v.proj.Rows) {
		v.setSelection(len(v.proj.Rows) - 1)
	}
}

func (v *sessionView) rowHeight(row timeline.TimelineRow) int {
	key := timeline.HeightCacheKey{
		RowID:       row.ID,
		WidthBucket: v.ui.WidthBucket,
		LayoutHash:  row.LayoutHash,
	}
	if height, ok := v.cache.Height(key); ok {
		return height
	}
	height := v.renderer.Height(row, v.renderWidth())
	if height < 1 {
		height = 1
	}
	v.cache.Store(height, key)
	return height
}

// rowTops returns the content-space Y of every row plus a trailing total.
func (v *sessionView) rowTops() []int {
	tops := make([]int, len(v.proj.Rows)+1)
	y := 0
	for i := range v.proj.Rows {
		tops[i] = y
		y += v.rowHeight(v.proj.Rows[i])
	}
	tops[len(v.proj.Rows)] = y
	return tops
}

func (v *sessionView) contentHeight() int {
	total := 0
	for i := range v.proj.Rows {
		total += v.rowHeight(v.proj.Rows[i])
	}
	return total
}

func (v *sessionView) rowTopByID(id timeline.RowID) (int, bool) {
	tops := v.rowTops()
	for i := range v.proj.Rows {
		if v.proj.Rows[i].ID == id {
			return tops[i], true
		}
	}
	return 0, false
}

// renderWidth is the bucketed width every row renders and measures at, so
// equal widths always reproduce equal heights.
func (v *sessionView) renderWidth() int {
	if v.ui.WidthBucket > 0 {
		return v.ui.WidthBucket
	}
	return v.width
}

func (v *sessionView) pageRows() int {
	if v.height > 2 {
		return v.height - 2
	}
	return 1
}

func (v *sessionView) scrollToBottom() {
	v.top = v.contentHeight() - v.height
	if v.top < 0 {
		v.top = 0
	}
}

func (v *sessionView) clampTop() {
	max := v.contentHeight() - v.height
	if max < 0 {
		max = 0
	}
	if v.top > max {
		v.top = max
	}
	if v.top < 0 {
		v.top = 0
	}
}

func (v *sessionView) ensureSelectionVisible() {
	if v.height <= 0 || v.selectedIdx < 0 || v.selectedIdx >= len(v.proj.Rows) {
		return
	}
	tops := v.rowTops()
	rowTop := tops[v.selectedIdx]
	rowBottom := tops[v.selectedIdx+1]

	if rowTop < v.top {
		v.top = rowTop
	}
	if rowBottom > v.top+v.height {
		v.top = rowBottom - v.height
	}
	v.clampTop()
}

// View renders only the rows intersecting the viewport window.
func (v *sessionView) View(width, height int, palette Palette) string {
	if width <= 0 || height <= 0 || len(v.proj.Rows) == 0 {
		return ""
	}

	tops := v.rowTops()
	viewportBottom := v.top + height

	lines := make([]string, 0, height)
	for i := range v.proj.Rows {
		rowTop := tops[i]
		rowBottom := tops[i+1]
		if rowBottom <= v.top {
			continue
		}
		if rowTop >= viewportBottom {
			break
		}

		rendered := v.renderer.Render(v.proj.Rows[i], v.renderWidth(), i == v.selectedIdx)
		for j, line := range strings.Split(rendered, "\n") {
			y := rowTop + j
			if y < v.top || y >= viewportBottom {
				continue
			}
			lines = append(lines, line)
		}
	}

	for len(lines) < height {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}

// Status summarizes scroll and load state for the chrome line.
func (v *sessionView) Status() (mode session.ViewMode, loaded int, hasMore, loading bool) {
	return v.src.Metadata.ViewMode, len(v.src.Messages), v.hasMore, v.loadingOlder
}
