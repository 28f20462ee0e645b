// Package viewtui renders an agent session transcript as a scrollable,
// incrementally-updated timeline.
package viewtui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"

	"github.com/loupe-view/loupe/internal/logging"
	"github.com/loupe-view/loupe/internal/session"
	"github.com/loupe-view/loupe/internal/timeline"
)

const persistTimeout = 5 * time.Second

// Config assembles a viewer around already-loaded session data.
type Config struct {
	TranscriptPath string
	Theme          string
	ViewMode       string
	ShowTimestamps bool

	// Engine tuning.
	EngineOptions timeline.Options

	// InitialMessages is the transcript parsed at startup.
	InitialMessages []session.Message

	// Batches delivers live-appended message batches, usually from an
	// ingest watcher. Optional.
	Batches <-chan []session.Message

	// History pages in older messages on demand. Optional.
	History         HistoryLoader
	HistoryCursor   int64
	HistoryHasMore  bool
	HistoryPageSize int

	// OnAppend persists newly appended messages. Optional.
	OnAppend func(context.Context, []session.Message) error
}

func (c Config) normalize() (Config, error) {
	if strings.TrimSpace(c.Theme) == "" {
		c.Theme = DefaultPalette.Name
	}
	if _, ok := Palettes[c.Theme]; !ok {
		return Config{}, fmt.Errorf("invalid theme %q", c.Theme)
	}
	if strings.TrimSpace(c.ViewMode) == "" {
		c.ViewMode = string(session.ViewModeFocused)
	}
	switch session.ViewMode(c.ViewMode) {
	case session.ViewModeVerbose, session.ViewModeFocused:
	default:
		return Config{}, fmt.Errorf("invalid view mode %q", c.ViewMode)
	}
	return c, nil
}

type watcherClosedMsg struct{}

type persistFailedMsg struct {
	err error
}

// Model is the root bubbletea model: chrome plus one session view.
type Model struct {
	transcript string
	palette    Palette
	view       *sessionView
	batches    <-chan []session.Message
	onAppend   func(context.Context, []session.Message) error
	logger     zerolog.Logger

	width    int
	height   int
	showHelp bool
	live     bool
	lastErr  error
}

// NewModel builds the viewer model.
func NewModel(cfg Config) (*Model, error) {
	normalized, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	palette := Palettes[normalized.Theme]
	engine := timeline.NewEngine(normalized.EngineOptions)
	renderer := newRowRenderer(palette, normalized.ShowTimestamps)

	meta := session.SessionMetadata{
		ViewMode:      session.ViewMode(normalized.ViewMode),
		SessionActive: normalized.Batches != nil,
	}
	view := newSessionView(engine, meta, renderer)
	if normalized.History != nil {
		view.SetHistory(normalized.History, normalized.HistoryCursor, normalized.HistoryHasMore, normalized.HistoryPageSize)
	}
	view.SetInitial(normalized.InitialMessages)

	return &Model{
		transcript: normalized.TranscriptPath,
		palette:    palette,
		view:       view,
		batches:    normalized.Batches,
		onAppend:   normalized.OnAppend,
		logger:     logging.Component("viewtui"),
		live:       normalized.Batches != nil,
	}, nil
}

// Run starts the viewer and blocks until it exits. It returns the final
// model so callers can persist viewer state, like the active view mode.
func Run(cfg Config) (*Model, error) {
	model, err := NewModel(cfg)
	if err != nil {
		return nil, err
	}

	program := tea.NewProgram(model, tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return nil, err
	}
	if m, ok := final.(*Model); ok {
		return m, nil
	}
	return model, nil
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.view.Init(), m.waitForBatchCmd())
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = typed.Width
		m.height = typed.Height
		m.view.SetSize(typed.Width, m.contentHeight())
		return m, nil

	case appendedMsg:
		cmd := m.view.Update(typed)
		return m, tea.Batch(cmd, m.persistCmd(typed.messages), m.waitForBatchCmd())

	case watcherClosedMsg:
		m.live = false
		return m, nil

	case persistFailedMsg:
		m.lastErr = typed.err
		m.logger.Warn().Err(typed.err).Msg("failed to persist appended messages")
		return m, nil

	case tea.KeyMsg:
		switch typed.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "?":
			m.showHelp = !m.showHelp
			return m, nil
		}
	}

	return m, m.view.Update(msg)
}

func (m *Model) View() string {
	header := m.renderHeader()
	footer := m.renderFooter()
	body := m.view.View(m.width, m.contentHeight(), m.palette)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// ViewMode exposes the current flattening mode, for saving viewer context
// on exit.
func (m *Model) ViewMode() session.ViewMode {
	mode, _, _, _ := m.view.Status()
	return mode
}

func (m *Model) contentHeight() int {
	// One header line, one footer line.
	h := m.height - 2
	if h < 0 {
		return 0
	}
	return h
}

func (m *Model) renderHeader() string {
	mode, loaded, hasMore, loading := m.view.Status()

	name := filepath.Base(m.transcript)
	status := "closed"
	if m.live {
		status = "live"
	}
	older := "start"
	if loading {
		older = "loading"
	} else if hasMore {
		older = "more"
	}

	head := fmt.Sprintf("LOUPE  %s  %s  %d msgs  older:%s  %s", name, mode, loaded, older, status)
	style := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.palette.Chrome.Header))
	return style.Render(truncateLine(head, maxInt(0, m.width)))
}

func (m *Model) renderFooter() string {
	hints := "j/k scroll  enter toggle  v mode  G tail  ? help  q quit"
	if m.showHelp {
		hints = "up/down,j/k select  pgup/pgdn page  g/G top/bottom  enter/space expand tool or rollup  v verbose/focused  q quit"
	}
	if m.lastErr != nil {
		hints = "error: " + m.lastErr.Error()
	}
	style := lipgloss.NewStyle().Foreground(lipgloss.Color(m.palette.Chrome.Footer))
	return style.Render(truncateLine(hints, maxInt(0, m.width)))
}

func (m *Model) waitForBatchCmd() tea.Cmd {
	ch := m.batches
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		batch, ok := <-ch
		if !ok {
			return watcherClosedMsg{}
		}
		return appendedMsg{messages: batch}
	}
}

func (m *Model) persistCmd(messages []session.Message) tea.Cmd {
	if m.onAppend == nil || len(messages) == 0 {
		return nil
	}
	persist := m.onAppend
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := persist(ctx, messages); err != nil {
			return persistFailedMsg{err: err}
		}
		return nil
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
