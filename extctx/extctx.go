// Package extctx supplies the per-workspace context handed to extensions:
// key/value state, secret storage and path resolution.
package extctx

import (
	"path/filepath"
	"sync"
)

// Context is scoped to one extension install path and one workspace.
type Context struct {
	extensionPath string
	workspacePath string

	workspaceState *Memento
	globalState    *Memento
	secrets        *SecretStorage
}

// WorkspaceFolder is one root folder of the workspace.
type WorkspaceFolder struct {
	Path  string `json:"path"`
	Name  string `json:"name"`
	Index int    `json:"index"`
}

// New creates a context. Secrets are sealed under a fresh random key, so
// they do not outlive the context.
func New(extensionPath, workspacePath string) (*Context, error) {
	secrets, err := NewSecretStorage()
	if err != nil {
		return nil, err
	}
	return &Context{
		extensionPath:  extensionPath,
		workspacePath:  workspacePath,
		workspaceState: NewMemento(),
		globalState:    NewMemento(),
		secrets:        secrets,
	}, nil
}

func (c *Context) ExtensionPath() string { return c.extensionPath }
func (c *Context) WorkspacePath() string { return c.workspacePath }

// WorkspaceState returns the workspace-scoped state. It is the same Memento
// on every call.
func (c *Context) WorkspaceState() *Memento { return c.workspaceState }

// GlobalState returns the global state. It is the same Memento on every call.
func (c *Context) GlobalState() *Memento { return c.globalState }

func (c *Context) Secrets() *SecretStorage { return c.secrets }

func (c *Context) StoragePath() string {
	return filepath.Join(c.workspacePath, ".vscode")
}

func (c *Context) GlobalStoragePath() string {
	return filepath.Join(c.workspacePath, ".vscode", "globalStorage")
}

func (c *Context) LogPath() string {
	return filepath.Join(c.workspacePath, ".vscode", "logs")
}

// SettingsPath is where the workspace settings document lives.
func (c *Context) SettingsPath() string {
	return filepath.Join(c.workspacePath, ".vscode", "settings.yaml")
}

func (c *Context) WorkspaceFile() string {
	return filepath.Join(c.workspacePath, "workspace.code-workspace")
}

func (c *Context) WorkspaceFolders() []WorkspaceFolder {
	return []WorkspaceFolder{{
		Path:  c.workspacePath,
		Name:  filepath.Base(c.workspacePath),
		Index: 0,
	}}
}

// AsAbsolutePath resolves rel against the extension path.
func (c *Context) AsAbsolutePath(rel string) string {
	return filepath.Join(c.extensionPath, rel)
}

// Memento is an in-memory key/value store that keeps insertion order.
type Memento struct {
	mu    sync.RWMutex
	items map[string]any
	keys  []string
}

func NewMemento() *Memento {
	return &Memento{items: make(map[string]any)}
}

// Get returns the value for key, or def when it is not set.
func (m *Memento) Get(key string, def any) any {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.items[key]; ok {
		return v
	}
	return def
}

// Update sets key to value. A nil value removes the key.
func (m *Memento) Update(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if value == nil {
		if _, ok := m.items[key]; ok {
			delete(m.items, key)
			for i, k := range m.keys {
				if k == key {
					m.keys = append(m.keys[:i], m.keys[i+1:]...)
					break
				}
			}
		}
		return
	}
	if _, ok := m.items[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.items[key] = value
}

// Keys returns the stored keys in insertion order.
func (m *Memento) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.keys...)
}
