package editor

import (
	"errors"
	"strings"

	"go.uber.org/zap"
)

// ErrInvalidExtension is returned for an empty extension id.
var ErrInvalidExtension = errors.New("extension id is required")

// Extension is an installed extension record.
type Extension struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Version     string `json:"version"`
	Activated   bool   `json:"activated"`
	Description string `json:"description"`
}

// DefaultExtensions returns the extensions every session starts with.
func DefaultExtensions() []Extension {
	return []Extension{
		{ID: "vscode.javascript", Name: "JavaScript", Version: "1.0.0", Activated: true, Description: "JavaScript language support"},
		{ID: "vscode.typescript", Name: "TypeScript", Version: "1.0.0", Activated: true, Description: "TypeScript language support"},
		{ID: "vscode.json", Name: "JSON", Version: "1.0.0", Activated: true, Description: "JSON language support"},
		{ID: "vscode.markdown", Name: "Markdown", Version: "1.0.0", Activated: true, Description: "Markdown language support"},
	}
}

// InstallExtension installs id, activated. Installing an id that is already
// present re-activates the existing record instead of adding a second one.
func (s *Session) InstallExtension(id string) (Extension, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return Extension{}, ErrInvalidExtension
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.extensionIndex(id); i >= 0 {
		s.extensions[i].Activated = true
		return s.extensions[i], nil
	}
	ext := Extension{
		ID:          id,
		Name:        "Extension " + id,
		Version:     "1.0.0",
		Activated:   true,
		Description: "Extension " + id + " description",
	}
	s.extensions = append(s.extensions, ext)
	s.log.Info("extension installed", zap.String("extension", id))
	return ext, nil
}

// ActivateExtension activates id. It reports false, changing nothing, when
// no extension with that id is installed.
func (s *Session) ActivateExtension(id string) bool {
	return s.setActivated(id, true)
}

// DeactivateExtension deactivates id. It reports false, changing nothing,
// when no extension with that id is installed.
func (s *Session) DeactivateExtension(id string) bool {
	return s.setActivated(id, false)
}

func (s *Session) setActivated(id string, on bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.extensionIndex(id)
	if i < 0 {
		return false
	}
	s.extensions[i].Activated = on
	return true
}

// Extensions returns the installed extensions in install order.
func (s *Session) Extensions() []Extension {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Extension(nil), s.extensions...)
}

// Extension returns the installed extension id.
func (s *Session) Extension(id string) (Extension, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.extensionIndex(id); i >= 0 {
		return s.extensions[i], true
	}
	return Extension{}, false
}

func (s *Session) extensionIndex(id string) int {
	for i, e := range s.extensions {
		if e.ID == id {
			return i
		}
	}
	return -1
}
