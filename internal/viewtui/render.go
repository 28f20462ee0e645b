package viewtui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/loupe-view/loupe/internal/session"
	"github.com/loupe-view/loupe/internal/timeline"
)

const (
	userPrefix      = "> "
	assistantPrefix = "  "
	systemPrefix    = "~ "
	toolPrefix      = "* "
	toolDetailPad   = "    "
)

// rowRenderer turns projection rows into styled terminal text. Output is a
// pure function of (row content, width, palette, timestamps), which is what
// lets measured heights be cached by {rowID, widthBucket, layoutHash}.
type rowRenderer struct {
	palette        Palette
	showTimestamps bool
}

func newRowRenderer(palette Palette, showTimestamps bool) *rowRenderer {
	return &rowRenderer{palette: palette, showTimestamps: showTimestamps}
}

// Render renders one row at the given width. Selection only recolors; it
// never changes the number of lines a row occupies.
func (r *rowRenderer) Render(row timeline.TimelineRow, width int, selected bool) string {
	if width <= 0 {
		return ""
	}

	switch row.Kind {
	case timeline.RowKindTurnHeader:
		return r.renderTurnHeader(row, width, selected)
	case timeline.RowKindMessage:
		return r.renderMessage(row, width, selected)
	case timeline.RowKindTool:
		return r.renderTool(row, width, selected)
	case timeline.RowKindRollupSummary:
		return r.renderRollup(row, width, selected)
	case timeline.RowKindBottomSpacer:
		return ""
	default:
		return ""
	}
}

func (r *rowRenderer) renderTurnHeader(row timeline.TimelineRow, width int, selected bool) string {
	turn := row.Turn
	if turn == nil {
		return ""
	}

	label := fmt.Sprintf(" turn %d · %s", turn.TurnNumber+1, turn.Status)
	if len(turn.ToolsUsed) > 0 {
		label += fmt.Sprintf(" · %d tools", len(turn.ToolsUsed))
	}
	if turn.TokensUsed > 0 {
		label += fmt.Sprintf(" · %d tok", turn.TokensUsed)
	}
	if r.showTimestamps && !turn.StartedAt.IsZero() {
		label += " · " + turn.StartedAt.Format("15:04:05")
	}
	label += " "

	rule := width - lipgloss.Width(label) - 2
	if rule < 0 {
		rule = 0
	}
	line := "──" + label + strings.Repeat("─", rule)

	color := r.palette.Chrome.TurnHeader
	if selected {
		color = r.palette.Chrome.SelectedItem
	}
	return r.palette.roleStyle(color).Render(truncateLine(line, width))
}

func (r *rowRenderer) renderMessage(row timeline.TimelineRow, width int, selected bool) string {
	msg := row.Message
	if msg == nil {
		return ""
	}

	prefix := assistantPrefix
	color := r.palette.Role.Assistant
	switch msg.Type {
	case session.MessageTypeUser:
		prefix = userPrefix
		color = r.palette.Role.User
	case session.MessageTypeSystem:
		prefix = systemPrefix
		color = r.palette.Role.System
	}
	if selected {
		color = r.palette.Chrome.SelectedItem
	}

	text := msg.Content
	if r.showTimestamps && !msg.Timestamp.IsZero() {
		text = msg.Timestamp.Format("15:04:05") + "  " + text
	}

	return r.palette.roleStyle(color).Width(width).Render(prefix + text)
}

func (r *rowRenderer) renderTool(row timeline.TimelineRow, width int, selected bool) string {
	msg := row.Message
	if msg == nil {
		return ""
	}

	color := r.palette.Role.Tool
	if selected {
		color = r.palette.Chrome.SelectedItem
	}
	style := r.palette.roleStyle(color).Width(width)

	head := toolPrefix
	if msg.ToolName != "" {
		head += msg.ToolName
	} else {
		head += "tool"
	}
	if msg.ToolDurationMs > 0 {
		head += fmt.Sprintf(" (%dms)", msg.ToolDurationMs)
	}
	if msg.Content != "" {
		head += "  " + firstLine(msg.Content)
	}

	if !row.ToolExpanded {
		return style.Render(truncateLine(head, width))
	}

	parts := []string{style.Render(truncateLine(head, width))}
	detail := r.palette.mutedStyle().Width(width)
	if msg.ToolInput != "" {
		parts = append(parts, detail.Render(toolDetailPad+"in:  "+msg.ToolInput))
	}
	if msg.ToolOutput != "" {
		parts = append(parts, detail.Render(toolDetailPad+"out: "+msg.ToolOutput))
	}
	// Missing input/output simply renders less detail.
	return strings.Join(parts, "\n")
}

func (r *rowRenderer) renderRollup(row timeline.TimelineRow, width int, selected bool) string {
	rollup := row.Rollup
	if rollup == nil {
		return ""
	}

	marker := "+"
	if rollup.Expanded {
		marker = "-"
	}
	line := fmt.Sprintf("%s %d tool calls hidden", marker, rollup.HiddenCount)
	if len(rollup.ToolNames) > 0 {
		line += " (" + strings.Join(rollup.ToolNames, ", ") + ")"
	}

	color := r.palette.Chrome.Rollup
	if selected {
		color = r.palette.Chrome.SelectedItem
	}
	return r.palette.roleStyle(color).Render(truncateLine(line, width))
}

// Height measures the rendered height of a row at the given width.
func (r *rowRenderer) Height(row timeline.TimelineRow, width int) int {
	return lipgloss.Height(r.Render(row, width, false))
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	return s
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return ""
	}
	if lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return string(runes[:width])
	}
	return string(runes[:width-1]) + "…"
}
