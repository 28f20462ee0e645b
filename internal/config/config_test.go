package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/loupe-view/loupe/internal/timeline"
)

func TestDefaultConfigIsValid(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"zero connections", func(c *Config) { c.Database.MaxConnections = 0 }, "max_connections"},
		{"zero rollup threshold", func(c *Config) { c.Timeline.RollupThreshold = 0 }, "rollup_threshold"},
		{"zero width stride", func(c *Config) { c.Timeline.WidthStride = 0 }, "width_stride"},
		{"zero page size", func(c *Config) { c.Timeline.HistoryPageSize = 0 }, "history_page_size"},
		{"bad view mode", func(c *Config) { c.Timeline.InitialViewMode = "spread" }, "initial_view_mode"},
		{"negative debounce", func(c *Config) { c.Ingest.DebounceInterval = -1 }, "debounce_interval"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(cfg)
			require.ErrorContains(t, cfg.Validate(), tc.wantErr)
		})
	}
}

func TestDatabasePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Global.DataDir = "/data/loupe"
	require.Equal(t, filepath.Join("/data/loupe", "loupe.db"), cfg.DatabasePath())

	cfg.Database.Path = "/elsewhere/sessions.db"
	require.Equal(t, "/elsewhere/sessions.db", cfg.DatabasePath())
}

func TestEngineOptionsFromTimelineSection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeline.RollupThreshold = 5
	cfg.Timeline.WidthStride = 16

	require.Equal(t, timeline.Options{RollupThreshold: 5, WidthStride: 16}, cfg.EngineOptions())
}

func TestLoaderReadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
timeline:
  rollup_threshold: 4
  initial_view_mode: verbose
tui:
  theme: high-contrast
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	require.Equal(t, 4, cfg.Timeline.RollupThreshold)
	require.Equal(t, "verbose", cfg.Timeline.InitialViewMode)
	require.Equal(t, "high-contrast", cfg.TUI.Theme)

	// Unset keys keep their defaults.
	require.Equal(t, timeline.DefaultWidthStride, cfg.Timeline.WidthStride)
	require.True(t, cfg.Ingest.Follow)
}

func TestLoaderEnvOverrides(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("LOUPE_LOGGING_LEVEL", "debug")
	t.Setenv("LOUPE_TIMELINE_HISTORY_PAGE_SIZE", "50")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, 50, cfg.Timeline.HistoryPageSize)
}
