package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/loupe-view/loupe/internal/config"
	"github.com/loupe-view/loupe/internal/ingest"
	"github.com/loupe-view/loupe/internal/logging"
	"github.com/loupe-view/loupe/internal/session"
	"github.com/loupe-view/loupe/internal/store"
	"github.com/loupe-view/loupe/internal/viewtui"
)

type runOptions struct {
	transcript string
	configFile string
	theme      string
	viewMode   string
	logLevel   string
	logFormat  string
	timestamps bool
	noFollow   bool
	pageSize   int
}

// historyBackend bundles everything persistence contributes to a viewer
// run. When the database is unavailable the viewer runs without one,
// showing the full parsed transcript instead of a paged window.
type historyBackend struct {
	db        *store.DB
	sessionID string
	loader    viewtui.HistoryLoader
	onAppend  func(context.Context, []session.Message) error
	initial   []session.Message
	cursor    int64
	hasMore   bool
}

func (b *historyBackend) Close() {
	if b != nil && b.db != nil {
		b.db.Close()
	}
}

func runViewer(opts runOptions) error {
	cfg, loader, err := loadConfig(opts.configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}
	if opts.logFormat != "" {
		cfg.Logging.Format = opts.logFormat
	}
	if opts.theme != "" {
		cfg.TUI.Theme = opts.theme
	}
	if opts.pageSize > 0 {
		cfg.Timeline.HistoryPageSize = opts.pageSize
	}

	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}

	initLogging(cfg)
	logger := logging.Component("cli")
	if cfgUsed := loader.ConfigFileUsed(); cfgUsed != "" {
		logger.Debug().Str("config_file", cfgUsed).Msg("loaded config file")
	}

	ctxStore := contextStore(cfg)
	viewerCtx, err := ctxStore.Load()
	if err != nil {
		logger.Warn().Err(err).Msg("failed to load viewer context")
		viewerCtx = &config.Context{}
	}

	transcript, err := resolveTranscript(opts.transcript, viewerCtx)
	if err != nil {
		return err
	}
	logger = logging.WithTranscript(transcript).With().Str("component", "cli").Logger()

	result, offset, err := ingest.LoadFile(transcript)
	if err != nil {
		return fmt.Errorf("failed to load transcript: %w", err)
	}
	if result.SkippedLines > 0 {
		logger.Warn().Int("skipped_lines", result.SkippedLines).Msg("transcript contains malformed lines")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openHistory(ctx, cfg, transcript, result.Messages)
	if err != nil {
		logger.Warn().Err(err).Msg("history database unavailable, running without persistence")
		backend = &historyBackend{initial: result.Messages}
	}
	defer backend.Close()
	if backend.sessionID != "" {
		sessionLogger := logging.WithSession(backend.sessionID)
		sessionLogger.Debug().
			Int("window", len(backend.initial)).
			Bool("has_more", backend.hasMore).
			Msg("session history attached")
	}

	var batches <-chan []session.Message
	if cfg.Ingest.Follow && !opts.noFollow {
		watcher, err := ingest.NewWatcher(transcript, offset, cfg.Ingest.DebounceInterval)
		if err != nil {
			logger.Warn().Err(err).Msg("failed to watch transcript, live updates disabled")
		} else {
			defer watcher.Close()
			go watcher.Run(ctx)
			batches = watcher.Batches()
		}
	}

	viewMode := resolveViewMode(opts.viewMode, viewerCtx, cfg)

	final, err := viewtui.Run(viewtui.Config{
		TranscriptPath:  transcript,
		Theme:           cfg.TUI.Theme,
		ViewMode:        viewMode,
		ShowTimestamps:  opts.timestamps || cfg.TUI.ShowTimestamps,
		EngineOptions:   cfg.EngineOptions(),
		InitialMessages: backend.initial,
		Batches:         batches,
		History:         backend.loader,
		HistoryCursor:   backend.cursor,
		HistoryHasMore:  backend.hasMore,
		HistoryPageSize: cfg.Timeline.HistoryPageSize,
		OnAppend:        backend.onAppend,
	})
	if err != nil {
		return err
	}

	viewerCtx.SetSession(transcript, backend.sessionID)
	viewerCtx.SetViewMode(string(final.ViewMode()))
	if err := ctxStore.Save(viewerCtx); err != nil {
		logger.Warn().Err(err).Msg("failed to save viewer context")
	}
	return nil
}

func loadConfig(path string) (*config.Config, *config.Loader, error) {
	loader := config.NewLoader()
	if path != "" {
		loader.SetConfigFile(path)
	}
	cfg, err := loader.Load()
	if err != nil {
		return nil, nil, err
	}
	return cfg, loader, nil
}

// initLogging routes logs to a file so they never bleed into the
// alternate screen the TUI owns.
func initLogging(cfg *config.Config) {
	logPath := cfg.Logging.File
	if logPath == "" {
		logPath = filepath.Join(cfg.Global.DataDir, "loupe.log")
	}

	logCfg := logging.Config{
		Level:        cfg.Logging.Level,
		Format:       cfg.Logging.Format,
		EnableCaller: cfg.Logging.EnableCaller,
	}
	if f, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644); err == nil {
		logCfg.Output = f
	}
	logging.Init(logCfg)
}

func contextStore(cfg *config.Config) *config.ContextStore {
	if cfg.Global.ConfigDir != "" {
		return config.NewContextStore(filepath.Join(cfg.Global.ConfigDir, "context.yaml"))
	}
	return config.DefaultContextStore()
}

// resolveTranscript picks the transcript to open: the CLI argument, or
// the last viewed session when invoked bare.
func resolveTranscript(arg string, viewerCtx *config.Context) (string, error) {
	path := arg
	if path == "" {
		path = viewerCtx.Transcript
	}
	if path == "" {
		return "", fmt.Errorf("no transcript given and no previous session to reopen")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve transcript path: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("transcript not readable: %w", err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("transcript %s is a directory", abs)
	}
	return abs, nil
}

// resolveViewMode applies precedence: flag, then the mode the session was
// last viewed in, then the configured default.
func resolveViewMode(flag string, viewerCtx *config.Context, cfg *config.Config) string {
	if flag != "" {
		return flag
	}
	if viewerCtx.ViewMode != "" {
		return viewerCtx.ViewMode
	}
	return cfg.Timeline.InitialViewMode
}

// openHistory opens the session database, records the session, persists
// the parsed transcript, and returns the newest page as the initial
// window.
func openHistory(ctx context.Context, cfg *config.Config, transcript string, parsed []session.Message) (*historyBackend, error) {
	db, err := store.Open(cfg.DatabasePath(), store.Options{
		MaxConnections: cfg.Database.MaxConnections,
		BusyTimeoutMs:  cfg.Database.BusyTimeoutMs,
	})
	if err != nil {
		return nil, err
	}

	backend := &historyBackend{db: db}
	if _, err := db.MigrateUp(ctx); err != nil {
		backend.Close()
		return nil, err
	}

	sessions := store.NewSessionRepository(db)
	record, err := sessions.FindByTranscript(ctx, transcript)
	if errors.Is(err, store.ErrSessionNotFound) {
		record = &store.SessionRecord{TranscriptPath: transcript}
		err = nil
	}
	if err == nil {
		err = sessions.Upsert(ctx, record)
	}
	if err != nil {
		backend.Close()
		return nil, err
	}
	backend.sessionID = record.ID

	messages := store.NewMessageRepository(db)
	if err := messages.SaveBatch(ctx, record.ID, parsed); err != nil {
		backend.Close()
		return nil, err
	}

	page, err := messages.ListBefore(ctx, record.ID, 0, cfg.Timeline.HistoryPageSize)
	if err != nil {
		backend.Close()
		return nil, err
	}

	backend.initial = page.Messages
	backend.cursor = page.OldestSeq
	backend.hasMore = page.HasMore
	backend.loader = &storeHistory{repo: messages, sessionID: record.ID}
	backend.onAppend = func(ctx context.Context, batch []session.Message) error {
		return messages.SaveBatch(ctx, record.ID, batch)
	}
	return backend, nil
}
