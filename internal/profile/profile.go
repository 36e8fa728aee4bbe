// Package profile loads the persona definitions that shape agent behavior.
//
// Personas live in a personas.yml file as a top-level list of entries with
// a name and a system-prompt. A small built-in table keeps spawn and ask
// working when no file exists; entries from the file are merged over it.
package profile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/RyanLisse/opencode-rs/internal/config"
	"github.com/RyanLisse/opencode-rs/internal/errors"
	"github.com/RyanLisse/opencode-rs/internal/logging"
)

// Profile represents a persona with a name and system prompt.
type Profile struct {
	// Name is the persona's identifier (e.g., "rusty")
	Name string `yaml:"name"`
	// SystemPrompt is prepended as the system message for agents and asks
	SystemPrompt string `yaml:"system-prompt"`
}

// Builtins returns the built-in profiles available without a personas file.
func Builtins() []Profile {
	return []Profile{
		{
			Name:         "default",
			SystemPrompt: "You are a helpful assistant.",
		},
		{
			Name: "rusty",
			SystemPrompt: "You are Rusty, a pragmatic senior Rust engineer. " +
				"You write safe, idiomatic, well-tested code and explain tradeoffs clearly.",
		},
	}
}

// Table is a thread-safe mapping of profile name to Profile.
// The zero value is not usable; construct one with NewTable or Load.
type Table struct {
	mu       sync.RWMutex
	profiles map[string]Profile
	path     string
	logger   *logging.Logger
}

// NewTable returns a Table containing only the built-in profiles.
func NewTable(logger *logging.Logger) *Table {
	if logger == nil {
		logger = logging.NopLogger()
	}
	t := &Table{
		profiles: make(map[string]Profile),
		logger:   logger.WithComponent("profile"),
	}
	for _, p := range Builtins() {
		t.profiles[p.Name] = p
	}
	return t
}

// Load returns a Table populated from the personas file at path, merged over
// the built-ins. A missing file is not an error; a malformed one is.
func Load(path string, logger *logging.Logger) (*Table, error) {
	t := NewTable(logger)
	t.path = path
	if _, err := t.Reload(); err != nil {
		return nil, err
	}
	return t, nil
}

// Get looks up a profile by name.
func (t *Table) Get(name string) (Profile, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	p, ok := t.profiles[name]
	return p, ok
}

// Names returns the profile names in sorted order.
func (t *Table) Names() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	names := make([]string, 0, len(t.profiles))
	for name := range t.profiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of profiles in the table.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.profiles)
}

// Path returns the personas file path this table was loaded from.
func (t *Table) Path() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.path
}

// Reload re-reads the personas file and replaces the table contents with the
// built-ins merged with the file's entries. A missing file resets the table
// to the built-ins alone. Returns the resulting profile count.
func (t *Table) Reload() (int, error) {
	loaded, err := LoadFile(t.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return 0, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.profiles = make(map[string]Profile)
	for _, p := range Builtins() {
		t.profiles[p.Name] = p
	}
	for _, p := range loaded {
		t.profiles[p.Name] = p
	}
	return len(t.profiles), nil
}

// LoadFile loads profiles from a YAML file containing a top-level list of
// name/system-prompt entries.
func LoadFile(path string) ([]Profile, error) {
	if path == "" {
		return nil, fs.ErrNotExist
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var profiles []Profile
	if err := yaml.Unmarshal(data, &profiles); err != nil {
		return nil, fmt.Errorf("parsing personas file: %w", err)
	}

	for i, p := range profiles {
		if p.Name == "" {
			return nil, fmt.Errorf("invalid persona at index %d: name is required", i)
		}
		if p.SystemPrompt == "" {
			return nil, fmt.Errorf("invalid persona %q: system-prompt is required", p.Name)
		}
	}

	return profiles, nil
}

// ResolvePath determines the personas file location. The override (from
// profile.path) wins, then $OPENCODE_PROFILES, then an existing file in the
// config directory or the working directory. When no file exists anywhere,
// the config directory path is returned so a watcher has a place to look.
func ResolvePath(override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv("OPENCODE_PROFILES"); env != "" {
		return env
	}
	if p := config.PersonasFile(); fileExists(p) {
		return p
	}
	if local := "personas.yml"; fileExists(local) {
		abs, err := filepath.Abs(local)
		if err == nil {
			return abs
		}
		return local
	}
	return config.PersonasFile()
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
