package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Context remembers what the viewer was looking at, so launching with no
// arguments reopens the previous session where it was left.
type Context struct {
	// Transcript is the path of the last opened transcript file.
	Transcript string `yaml:"transcript,omitempty"`
	// SessionID is the last viewed session.
	SessionID string `yaml:"session,omitempty"`
	// ViewMode is the flattening mode in effect when the viewer closed.
	ViewMode string `yaml:"view_mode,omitempty"`
	// UpdatedAt is when the context was last modified.
	UpdatedAt time.Time `yaml:"updated_at,omitempty"`
}

// IsEmpty returns true if no context is set.
func (c *Context) IsEmpty() bool {
	return c.Transcript == "" && c.SessionID == ""
}

// Clear removes all context.
func (c *Context) Clear() {
	c.Transcript = ""
	c.SessionID = ""
	c.ViewMode = ""
	c.UpdatedAt = time.Now()
}

// SetSession records the session being viewed.
func (c *Context) SetSession(transcript, sessionID string) {
	c.Transcript = transcript
	c.SessionID = sessionID
	c.UpdatedAt = time.Now()
}

// SetViewMode records the flattening mode.
func (c *Context) SetViewMode(mode string) {
	c.ViewMode = mode
	c.UpdatedAt = time.Now()
}

// String returns a human-readable representation of the context.
func (c *Context) String() string {
	if c.IsEmpty() {
		return "(no session open)"
	}
	name := filepath.Base(c.Transcript)
	if name == "." || name == "" {
		name = shortID(c.SessionID)
	}
	if c.ViewMode != "" {
		return fmt.Sprintf("%s (%s)", name, c.ViewMode)
	}
	return name
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// ContextStore manages loading and saving context.
type ContextStore struct {
	path string
	mu   sync.RWMutex
}

// NewContextStore creates a new context store.
// If path is empty, uses the default path (~/.config/loupe/context.yaml).
func NewContextStore(path string) *ContextStore {
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, ".config", "loupe", "context.yaml")
	}
	return &ContextStore{path: path}
}

// DefaultContextStore returns a context store using the default path.
func DefaultContextStore() *ContextStore {
	return NewContextStore("")
}

// Path returns the context file path.
func (s *ContextStore) Path() string {
	return s.path
}

// Load reads the context from disk.
// Returns an empty context if the file doesn't exist.
func (s *ContextStore) Load() (*Context, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := &Context{}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ctx, nil
		}
		return nil, fmt.Errorf("failed to read context file: %w", err)
	}

	if err := yaml.Unmarshal(data, ctx); err != nil {
		return nil, fmt.Errorf("failed to parse context file: %w", err)
	}

	return ctx, nil
}

// Save writes the context to disk.
func (s *ContextStore) Save(ctx *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Ensure directory exists
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create context directory: %w", err)
	}

	data, err := yaml.Marshal(ctx)
	if err != nil {
		return fmt.Errorf("failed to serialize context: %w", err)
	}

	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write context file: %w", err)
	}

	return nil
}

// Clear removes the context file.
func (s *ContextStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove context file: %w", err)
	}
	return nil
}
