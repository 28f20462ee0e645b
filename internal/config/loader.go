package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	v          *viper.Viper
	configFile string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v: viper.New(),
	}
}

// SetConfigFile sets an explicit config file path.
func (l *Loader) SetConfigFile(path string) {
	l.configFile = path
}

// Load loads configuration with proper precedence:
// defaults < config file < env vars < CLI flags
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := DefaultConfig()

	l.setupViper(cfg)

	// Load config file
	if err := l.loadConfigFile(); err != nil {
		// Config file is optional, only error if explicitly specified
		if l.configFile != "" {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Apply env var overrides (Viper's Unmarshal doesn't properly merge env vars for nested structs)
	l.applyEnvOverrides(cfg)

	expandPaths(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// expandTilde expands ~ to the user's home directory.
func expandTilde(path string) string {
	if path == "" {
		return path
	}
	if path == "~" {
		home, _ := os.UserHomeDir()
		return home
	}
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// expandPaths expands ~ in all path-related config fields.
func expandPaths(cfg *Config) {
	cfg.Global.DataDir = expandTilde(cfg.Global.DataDir)
	cfg.Global.ConfigDir = expandTilde(cfg.Global.ConfigDir)
	cfg.Database.Path = expandTilde(cfg.Database.Path)
	cfg.Logging.File = expandTilde(cfg.Logging.File)
}

// setupViper configures Viper with defaults and environment bindings.
func (l *Loader) setupViper(cfg *Config) {
	v := l.v

	// Config file settings
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		v.AddConfigPath(filepath.Join(xdgConfig, "loupe"))
	}

	homeDir, _ := os.UserHomeDir()
	if homeDir != "" {
		v.AddConfigPath(filepath.Join(homeDir, ".config", "loupe"))
	}

	// Current directory
	v.AddConfigPath(".")

	v.SetEnvPrefix("LOUPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set defaults from config struct
	l.setDefaults(cfg)

	// Explicitly bind environment variables (Viper's Unmarshal has issues without this)
	bindEnvVars(v)

	// AutomaticEnv for any keys not explicitly bound
	v.AutomaticEnv()
}

// setDefaults sets all default values in Viper.
func (l *Loader) setDefaults(cfg *Config) {
	v := l.v

	// Global
	v.SetDefault("global.data_dir", cfg.Global.DataDir)
	v.SetDefault("global.config_dir", cfg.Global.ConfigDir)

	// Database
	v.SetDefault("database.path", cfg.Database.Path)
	v.SetDefault("database.max_connections", cfg.Database.MaxConnections)
	v.SetDefault("database.busy_timeout_ms", cfg.Database.BusyTimeoutMs)

	// Logging
	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.file", cfg.Logging.File)
	v.SetDefault("logging.enable_caller", cfg.Logging.EnableCaller)

	// Timeline
	v.SetDefault("timeline.rollup_threshold", cfg.Timeline.RollupThreshold)
	v.SetDefault("timeline.width_stride", cfg.Timeline.WidthStride)
	v.SetDefault("timeline.history_page_size", cfg.Timeline.HistoryPageSize)
	v.SetDefault("timeline.initial_view_mode", cfg.Timeline.InitialViewMode)

	// Ingest
	v.SetDefault("ingest.follow", cfg.Ingest.Follow)
	v.SetDefault("ingest.debounce_interval", cfg.Ingest.DebounceInterval)

	// TUI
	v.SetDefault("tui.theme", cfg.TUI.Theme)
	v.SetDefault("tui.show_timestamps", cfg.TUI.ShowTimestamps)
	v.SetDefault("tui.compact_mode", cfg.TUI.CompactMode)
}

// loadConfigFile attempts to load the configuration file.
func (l *Loader) loadConfigFile() error {
	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			return nil
		}
		return err
	}

	return nil
}

// ConfigFileUsed returns the config file that was loaded.
func (l *Loader) ConfigFileUsed() string {
	return l.v.ConfigFileUsed()
}

// Get returns a Viper value by key.
func (l *Loader) Get(key string) interface{} {
	return l.v.Get(key)
}

// Set sets a Viper value by key.
func (l *Loader) Set(key string, value interface{}) {
	l.v.Set(key, value)
}

// BindEnv binds an environment variable to a config key.
func (l *Loader) BindEnv(key string, envVar string) error {
	return l.v.BindEnv(key, envVar)
}

// Viper returns the underlying Viper instance for advanced use.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// LoadFromFile loads configuration from a specific file.
func LoadFromFile(path string) (*Config, error) {
	loader := NewLoader()
	loader.SetConfigFile(path)
	return loader.Load()
}

// LoadDefault loads configuration with default search paths.
func LoadDefault() (*Config, error) {
	loader := NewLoader()
	return loader.Load()
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := LoadDefault()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// bindEnvVars binds environment variables for config keys.
// Viper's Unmarshal has issues with env vars on nested structs unless explicitly bound.
func bindEnvVars(v *viper.Viper) {
	// All configurable keys that support environment variable overrides
	envBindings := []string{
		// Global
		"global.data_dir",
		"global.config_dir",
		// Database
		"database.path",
		"database.max_connections",
		"database.busy_timeout_ms",
		// Logging
		"logging.level",
		"logging.format",
		"logging.file",
		"logging.enable_caller",
		// Timeline
		"timeline.rollup_threshold",
		"timeline.width_stride",
		"timeline.history_page_size",
		"timeline.initial_view_mode",
		// Ingest
		"ingest.follow",
		"ingest.debounce_interval",
		// TUI
		"tui.theme",
		"tui.show_timestamps",
		"tui.compact_mode",
	}

	for _, key := range envBindings {
		// Convert key to env var format: database.path -> LOUPE_DATABASE_PATH
		envSuffix := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, "LOUPE_"+envSuffix)
	}
}

// applyEnvOverrides manually applies env var overrides to the config struct.
// This is needed because Viper's Unmarshal doesn't properly merge env vars
// for nested struct fields when a config file is present.
func (l *Loader) applyEnvOverrides(cfg *Config) {
	v := l.v

	// Database
	if path := v.GetString("database.path"); path != "" {
		cfg.Database.Path = path
	}

	// Global
	if dataDir := v.GetString("global.data_dir"); dataDir != "" {
		cfg.Global.DataDir = dataDir
	}
	if configDir := v.GetString("global.config_dir"); configDir != "" {
		cfg.Global.ConfigDir = configDir
	}

	// Logging
	if level := v.GetString("logging.level"); level != "" && level != "info" { // "info" is default
		cfg.Logging.Level = level
	}
	if format := v.GetString("logging.format"); format != "" && format != "console" { // "console" is default
		cfg.Logging.Format = format
	}
	if file := v.GetString("logging.file"); file != "" {
		cfg.Logging.File = file
	}

	// Timeline
	if mode := v.GetString("timeline.initial_view_mode"); mode != "" {
		cfg.Timeline.InitialViewMode = mode
	}
}
