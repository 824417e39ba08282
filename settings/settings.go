// Package settings persists the editor settings document.
//
// The document is yaml. Keys missing from the stored document keep their
// default values, so older files keep working as settings are added.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"sync"

	"gopkg.in/yaml.v3"

	"wick_editor/wickfs"
)

// Themes accepted by Validate.
var Themes = []string{"vs-dark", "vs", "hc-black"}

// DefaultTerminalHome is the terminal app's home directory on device.
const DefaultTerminalHome = "/data/data/com.termux/files/home"

// Settings is the persisted settings document.
type Settings struct {
	WorkspacePath  string `yaml:"workspace_path" json:"workspace_path"`
	Theme          string `yaml:"theme" json:"theme"`
	FontSize       int    `yaml:"font_size" json:"font_size"`
	TabSize        int    `yaml:"tab_size" json:"tab_size"`
	InsertSpaces   bool   `yaml:"insert_spaces" json:"insert_spaces"`
	AutoSave       bool   `yaml:"auto_save" json:"auto_save"`
	UseTerminalApp bool   `yaml:"use_terminal_app" json:"use_terminal_app"`
	TerminalHome   string `yaml:"terminal_home" json:"terminal_home"`
	LineNumbers    bool   `yaml:"line_numbers" json:"line_numbers"`
	WordWrap       bool   `yaml:"word_wrap" json:"word_wrap"`
	AutoIndent     bool   `yaml:"auto_indent" json:"auto_indent"`
	ShowMinimap    bool   `yaml:"show_minimap" json:"show_minimap"`
}

// Defaults returns the settings used for every key not stored.
func Defaults() Settings {
	return Settings{
		Theme:          "vs-dark",
		FontSize:       14,
		TabSize:        4,
		InsertSpaces:   true,
		AutoSave:       true,
		UseTerminalApp: true,
		TerminalHome:   DefaultTerminalHome,
		LineNumbers:    true,
		AutoIndent:     true,
	}
}

// Validate checks value ranges.
func (s Settings) Validate() error {
	valid := false
	for _, t := range Themes {
		if s.Theme == t {
			valid = true
			break
		}
	}
	if !valid {
		return fmt.Errorf("invalid theme %q", s.Theme)
	}
	if s.FontSize < 8 || s.FontSize > 40 {
		return fmt.Errorf("font_size must be between 8 and 40, got %d", s.FontSize)
	}
	if s.TabSize < 1 || s.TabSize > 16 {
		return fmt.Errorf("tab_size must be between 1 and 16, got %d", s.TabSize)
	}
	return nil
}

// Parse decodes a yaml document over the defaults.
func Parse(data []byte) (Settings, error) {
	s := Defaults()
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Defaults(), fmt.Errorf("failed to parse settings: %w", err)
	}
	return s, nil
}

// Store loads and persists one settings document through a FileSystem.
type Store struct {
	fsys wickfs.FileSystem
	res  wickfs.Resource

	mu  sync.RWMutex
	cur Settings
}

// NewStore creates a store holding the defaults. Call Load to read the
// stored document.
func NewStore(fsys wickfs.FileSystem, res wickfs.Resource) *Store {
	return &Store{fsys: fsys, res: res, cur: Defaults()}
}

// Load reads the stored document. A missing document leaves the defaults in
// place and is not an error. On a parse error the current settings are kept.
func (st *Store) Load(ctx context.Context) (Settings, error) {
	data, err := st.fsys.ReadFile(ctx, st.res)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return st.Get(), nil
		}
		return st.Get(), err
	}
	s, err := Parse(data)
	if err != nil {
		return st.Get(), fmt.Errorf("%s: %w", st.res, err)
	}

	st.mu.Lock()
	st.cur = s
	st.mu.Unlock()
	return s, nil
}

// Save persists s and makes it current.
func (st *Store) Save(ctx context.Context, s Settings) error {
	if err := s.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	if err := st.fsys.WriteFile(ctx, st.res, data); err != nil {
		return err
	}

	st.mu.Lock()
	st.cur = s
	st.mu.Unlock()
	return nil
}

// Get returns the current settings.
func (st *Store) Get() Settings {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.cur
}

// Update applies a partial JSON document to the current settings and saves
// the result. Keys not present in patch are unchanged.
func (st *Store) Update(ctx context.Context, patch []byte) (Settings, error) {
	s := st.Get()
	if err := json.Unmarshal(patch, &s); err != nil {
		return st.Get(), fmt.Errorf("invalid settings patch: %w", err)
	}
	if err := st.Save(ctx, s); err != nil {
		return st.Get(), err
	}
	return s, nil
}
