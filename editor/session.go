// Package editor holds the state of one editing session: the loaded
// workspace, the open files with their modification flags, and the installed
// extensions.
//
// All reads and writes go through a wickfs.FileSystem. I/O runs outside the
// session lock and state is committed only after it succeeds, so a failed
// operation leaves the session exactly as it was.
package editor

import (
	"context"
	"errors"
	"fmt"
	pathpkg "path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wick_editor/logging"
	"wick_editor/metrics"
	"wick_editor/wickfs"
)

// ErrUnknownFile is returned when an operation names a file that is not open.
var ErrUnknownFile = errors.New("file is not open")

// Version is reported in session state.
const Version = "1.0.0"

// Workspace is the result of loading a workspace root.
type Workspace struct {
	Name    string   `json:"name"`
	Path    string   `json:"path"`
	Folders []string `json:"folders"`
	Files   []string `json:"files"`
}

// File is an open file.
type File struct {
	Path     string `json:"path"`
	Content  string `json:"content"`
	Language string `json:"language"`
	Modified bool   `json:"modified"`

	// rev counts in-memory edits. Writes and reads that ran outside the
	// lock commit only if rev is unchanged.
	rev uint64
}

// State is a copy of the whole session state.
type State struct {
	ID             string      `json:"id"`
	Version        string      `json:"version"`
	Workspace      *Workspace  `json:"workspace"`
	ActiveFile     string      `json:"active_file,omitempty"`
	Files          []File      `json:"files"`
	UnsavedChanges bool        `json:"unsaved_changes"`
	Extensions     []Extension `json:"extensions"`
}

// Option configures a Session.
type Option func(*Session)

// WithDiscoverOptions bounds the workspace walk done by LoadWorkspace.
func WithDiscoverOptions(opts wickfs.DiscoverOptions) Option {
	return func(s *Session) { s.discover = opts }
}

// WithID sets the session id instead of generating one.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// Session is one editing session. It is safe for concurrent use.
type Session struct {
	id       string
	fsys     wickfs.FileSystem
	discover wickfs.DiscoverOptions
	log      *zap.Logger

	mu         sync.RWMutex
	workspace  *Workspace
	root       wickfs.Resource // resource of the loaded workspace root
	activeFile string
	files      map[string]*File
	order      []string // open order of files
	unsaved    bool
	extensions []Extension
}

// NewSession creates a session over fsys with the default extensions
// installed.
func NewSession(fsys wickfs.FileSystem, opts ...Option) *Session {
	s := &Session{
		id:         uuid.NewString(),
		fsys:       fsys,
		files:      make(map[string]*File),
		extensions: DefaultExtensions(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.Named("editor").With(zap.String("session", s.id))
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// explicitResource parses p when it carries a scheme or is absolute.
func explicitResource(p string) (wickfs.Resource, bool) {
	if strings.HasPrefix(p, wickfs.SchemeFile+":") {
		return wickfs.ParseResource(p), true
	}
	if r := wickfs.ParseResource(p); r.Scheme != wickfs.SchemeFile {
		return r, true
	}
	if filepath.IsAbs(p) {
		return wickfs.File(p), true
	}
	return wickfs.Resource{}, false
}

// resource maps a caller path to a resource. Relative paths resolve against
// the loaded workspace root or, with no workspace, the configured root.
func (s *Session) resource(p string) wickfs.Resource {
	if r, ok := explicitResource(p); ok {
		return r
	}

	s.mu.RLock()
	loaded := s.workspace != nil
	root := s.root
	s.mu.RUnlock()
	if loaded {
		return wickfs.Resource{Scheme: root.Scheme, Path: pathpkg.Join(root.Path, filepath.ToSlash(p))}
	}
	return wickfs.Workspace(p)
}

func rootResource(p string) wickfs.Resource {
	if r, ok := explicitResource(p); ok {
		return r
	}
	return wickfs.Workspace(p)
}

// LoadWorkspace replaces the current workspace with the one at p. The first
// discovered file becomes the active file; no file is opened. Open files are
// kept.
func (s *Session) LoadWorkspace(ctx context.Context, p string) (*Workspace, error) {
	root := rootResource(p)
	d, err := wickfs.Discover(ctx, s.fsys, root, s.discover)
	if err != nil {
		return nil, fmt.Errorf("load workspace %s: %w", p, err)
	}

	ws := &Workspace{
		Name:    workspaceName(root.Path),
		Path:    p,
		Folders: d.Folders,
		Files:   d.Files,
	}

	s.mu.Lock()
	s.workspace = ws
	s.root = root
	s.activeFile = ""
	if len(ws.Files) > 0 {
		s.activeFile = ws.Files[0]
	}
	s.mu.Unlock()

	s.log.Info("workspace loaded",
		zap.String("path", p),
		zap.Int("folders", len(ws.Folders)),
		zap.Int("files", len(ws.Files)),
		zap.Bool("truncated", d.Truncated),
	)
	return copyWorkspace(ws), nil
}

func workspaceName(p string) string {
	name := pathpkg.Base(filepath.ToSlash(p))
	if name == "/" || name == "." {
		return "workspace"
	}
	return name
}

// OpenFile reads p and makes it the active file. An already open file is
// replaced with the content on storage and Modified cleared, unless it was
// edited while the read was in flight; then the edit is kept.
func (s *Session) OpenFile(ctx context.Context, p string) (File, error) {
	s.mu.RLock()
	before, wasOpen := s.files[p]
	var beforeRev uint64
	if wasOpen {
		beforeRev = before.rev
	}
	s.mu.RUnlock()

	data, err := s.fsys.ReadFile(ctx, s.resource(p))
	if err != nil {
		return File{}, fmt.Errorf("open %s: %w", p, err)
	}

	f := &File{
		Path:     p,
		Content:  string(data),
		Language: LanguageFor(p),
	}

	s.mu.Lock()
	if cur, ok := s.files[p]; ok {
		if cur.Modified && (cur != before || cur.rev != beforeRev) {
			f = cur
		}
		s.removeOrder(p)
	}
	s.files[p] = f
	s.order = append(s.order, p)
	s.activeFile = p
	s.recompute()
	n := len(s.files)
	out := *f
	s.mu.Unlock()

	metrics.SetOpenFiles(n)
	return out, nil
}

// UpdateFileContent replaces the in-memory content of an open file and marks
// it modified.
func (s *Session) UpdateFileContent(p, content string) (File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[p]
	if !ok {
		return File{}, fmt.Errorf("%w: %s", ErrUnknownFile, p)
	}
	f.Content = content
	f.Modified = true
	f.rev++
	s.recompute()
	return *f, nil
}

// SaveFile writes content to p. If p is open its content is replaced and
// Modified cleared. An edit made while the write was in flight is newer than
// what was written, so it is kept and the file stays modified. Saving a path
// that is not open just writes it.
func (s *Session) SaveFile(ctx context.Context, p, content string) error {
	s.mu.RLock()
	before, wasOpen := s.files[p]
	var beforeRev uint64
	if wasOpen {
		beforeRev = before.rev
	}
	s.mu.RUnlock()

	if err := s.fsys.WriteFile(ctx, s.resource(p), []byte(content)); err != nil {
		metrics.RecordFileSave(false)
		s.log.Warn("save failed", zap.String("path", p), zap.Error(err))
		return fmt.Errorf("save %s: %w", p, err)
	}
	metrics.RecordFileSave(true)

	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.files[p]
	if !ok {
		return nil
	}
	if (f != before || f.rev != beforeRev) && f.Modified {
		s.log.Debug("file edited during save, keeping newer content", zap.String("path", p))
		return nil
	}
	f.Content = content
	f.Modified = false
	s.recompute()
	return nil
}

// recompute must be called with s.mu held.
func (s *Session) recompute() {
	s.unsaved = false
	for _, f := range s.files {
		if f.Modified {
			s.unsaved = true
			return
		}
	}
}

func (s *Session) removeOrder(p string) {
	for i, q := range s.order {
		if q == p {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

// Workspace returns the loaded workspace, if any.
func (s *Session) Workspace() (*Workspace, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.workspace == nil {
		return nil, false
	}
	return copyWorkspace(s.workspace), true
}

// ActiveFile returns the active file path, or "" when unset.
func (s *Session) ActiveFile() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeFile
}

// File returns the open file p.
func (s *Session) File(p string) (File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, ok := s.files[p]
	if !ok {
		return File{}, false
	}
	return *f, true
}

// Files returns the open files in the order they were opened.
func (s *Session) Files() []File {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filesLocked()
}

func (s *Session) filesLocked() []File {
	out := make([]File, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, *s.files[p])
	}
	return out
}

// UnsavedChanges reports whether any open file is modified.
func (s *Session) UnsavedChanges() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.unsaved
}

// State returns a copy of the whole session state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := State{
		ID:             s.id,
		Version:        Version,
		ActiveFile:     s.activeFile,
		Files:          s.filesLocked(),
		UnsavedChanges: s.unsaved,
		Extensions:     append([]Extension(nil), s.extensions...),
	}
	if s.workspace != nil {
		st.Workspace = copyWorkspace(s.workspace)
	}
	return st
}

func copyWorkspace(ws *Workspace) *Workspace {
	c := *ws
	c.Folders = append([]string(nil), ws.Folders...)
	c.Files = append([]string(nil), ws.Files...)
	return &c
}
