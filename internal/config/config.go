// Package config handles Loupe configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/loupe-view/loupe/internal/session"
	"github.com/loupe-view/loupe/internal/timeline"
)

// Config is the root configuration structure for Loupe.
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global" mapstructure:"global"`

	// Database settings
	Database DatabaseConfig `yaml:"database" mapstructure:"database"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`

	// Timeline projection settings
	Timeline TimelineConfig `yaml:"timeline" mapstructure:"timeline"`

	// Ingest settings
	Ingest IngestConfig `yaml:"ingest" mapstructure:"ingest"`

	// TUI settings
	TUI TUIConfig `yaml:"tui" mapstructure:"tui"`
}

// GlobalConfig contains global Loupe settings.
type GlobalConfig struct {
	// DataDir is where Loupe stores its data (default: ~/.local/share/loupe).
	DataDir string `yaml:"data_dir" mapstructure:"data_dir"`

	// ConfigDir is where config files are stored (default: ~/.config/loupe).
	ConfigDir string `yaml:"config_dir" mapstructure:"config_dir"`
}

// DatabaseConfig contains database settings.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `yaml:"path" mapstructure:"path"`

	// MaxConnections is the maximum number of database connections.
	MaxConnections int `yaml:"max_connections" mapstructure:"max_connections"`

	// BusyTimeoutMs is how long to wait for a locked database (milliseconds).
	BusyTimeoutMs int `yaml:"busy_timeout_ms" mapstructure:"busy_timeout_ms"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string `yaml:"level" mapstructure:"level"`

	// Format is the output format (json, console).
	Format string `yaml:"format" mapstructure:"format"`

	// File is an optional log file path.
	File string `yaml:"file" mapstructure:"file"`

	// EnableCaller adds caller information to logs.
	EnableCaller bool `yaml:"enable_caller" mapstructure:"enable_caller"`
}

// TimelineConfig tunes the projection engine.
type TimelineConfig struct {
	// RollupThreshold is the tool-run length above which runs collapse.
	RollupThreshold int `yaml:"rollup_threshold" mapstructure:"rollup_threshold"`

	// WidthStride is the bucketing stride for layout widths.
	WidthStride int `yaml:"width_stride" mapstructure:"width_stride"`

	// HistoryPageSize is how many older messages each lazy-load fetches.
	HistoryPageSize int `yaml:"history_page_size" mapstructure:"history_page_size"`

	// InitialViewMode is the flattening mode at startup (verbose, focused).
	InitialViewMode string `yaml:"initial_view_mode" mapstructure:"initial_view_mode"`
}

// IngestConfig contains transcript ingest settings.
type IngestConfig struct {
	// Follow enables live tailing of the transcript file.
	Follow bool `yaml:"follow" mapstructure:"follow"`

	// DebounceInterval coalesces bursts of file-change events.
	DebounceInterval time.Duration `yaml:"debounce_interval" mapstructure:"debounce_interval"`
}

// TUIConfig contains TUI settings.
type TUIConfig struct {
	// Theme is the color theme (default, high-contrast).
	Theme string `yaml:"theme" mapstructure:"theme"`

	// ShowTimestamps shows timestamps in the UI.
	ShowTimestamps bool `yaml:"show_timestamps" mapstructure:"show_timestamps"`

	// CompactMode uses a more compact layout.
	CompactMode bool `yaml:"compact_mode" mapstructure:"compact_mode"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Global: GlobalConfig{
			DataDir:   filepath.Join(homeDir, ".local", "share", "loupe"),
			ConfigDir: filepath.Join(homeDir, ".config", "loupe"),
		},
		Database: DatabaseConfig{
			Path:           "", // Will be set to DataDir/loupe.db
			MaxConnections: 10,
			BusyTimeoutMs:  5000,
		},
		Logging: LoggingConfig{
			Level:        "info",
			Format:       "console",
			EnableCaller: false,
		},
		Timeline: TimelineConfig{
			RollupThreshold: timeline.DefaultRollupThreshold,
			WidthStride:     timeline.DefaultWidthStride,
			HistoryPageSize: 200,
			InitialViewMode: string(session.ViewModeFocused),
		},
		Ingest: IngestConfig{
			Follow:           true,
			DebounceInterval: 100 * time.Millisecond,
		},
		TUI: TUIConfig{
			Theme:          "default",
			ShowTimestamps: true,
			CompactMode:    false,
		},
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.MaxConnections < 1 {
		return fmt.Errorf("database.max_connections must be at least 1")
	}

	if c.Timeline.RollupThreshold < 1 {
		return fmt.Errorf("timeline.rollup_threshold must be at least 1")
	}

	if c.Timeline.WidthStride < 1 {
		return fmt.Errorf("timeline.width_stride must be at least 1")
	}

	if c.Timeline.HistoryPageSize < 1 {
		return fmt.Errorf("timeline.history_page_size must be at least 1")
	}

	switch session.ViewMode(c.Timeline.InitialViewMode) {
	case session.ViewModeVerbose, session.ViewModeFocused:
		// ok
	default:
		return fmt.Errorf("timeline.initial_view_mode must be one of verbose, focused")
	}

	if c.Ingest.DebounceInterval < 0 {
		return fmt.Errorf("ingest.debounce_interval must not be negative")
	}

	return nil
}

// EnsureDirectories creates required directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{
		c.Global.DataDir,
		c.Global.ConfigDir,
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// DatabasePath returns the full database path.
func (c *Config) DatabasePath() string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(c.Global.DataDir, "loupe.db")
}

// EngineOptions converts the timeline section into engine options.
func (c *Config) EngineOptions() timeline.Options {
	return timeline.Options{
		RollupThreshold: c.Timeline.RollupThreshold,
		WidthStride:     c.Timeline.WidthStride,
	}
}
