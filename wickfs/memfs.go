package wickfs

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

type memNode struct {
	data  []byte
	dir   bool
	ctime time.Time
	mtime time.Time
}

// MemFS is an in-memory FileSystem keyed by resolved path. It follows the same
// rules as LocalFS (only WriteFile creates parents) and can be told to fail the
// next operation of a given kind.
type MemFS struct {
	mu       sync.Mutex
	resolver Resolver
	nodes    map[string]*memNode
	fail     map[Kind]error
	now      func() time.Time
}

// NewMemFS creates an empty in-memory filesystem whose workspace root exists.
func NewMemFS(root string) *MemFS {
	m := &MemFS{
		resolver: Resolver{root: filepath.Clean(root)},
		nodes:    make(map[string]*memNode),
		fail:     make(map[Kind]error),
		now:      time.Now,
	}
	m.mkdirAll(m.resolver.root)
	return m
}

// Resolver returns the resolver used to map resources to paths.
func (m *MemFS) Resolver() Resolver { return m.resolver }

// AddFile stores data at the storage path p, creating parents.
func (m *MemFS) AddFile(p string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p = filepath.Clean(p)
	m.mkdirAll(filepath.Dir(p))
	now := m.now()
	m.nodes[p] = &memNode{data: append([]byte(nil), data...), ctime: now, mtime: now}
}

// AddDir creates the directory p and its parents.
func (m *MemFS) AddDir(p string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mkdirAll(filepath.Clean(p))
}

// Exists reports whether the storage path p exists.
func (m *MemFS) Exists(p string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.nodes[filepath.Clean(p)]
	return ok
}

// FailNext makes the next operation of the given kind fail with err.
func (m *MemFS) FailNext(kind Kind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fail[kind] = err
}

func (m *MemFS) injected(kind Kind) error {
	if err, ok := m.fail[kind]; ok {
		delete(m.fail, kind)
		return err
	}
	return nil
}

func (m *MemFS) mkdirAll(p string) {
	for {
		if _, ok := m.nodes[p]; !ok {
			now := m.now()
			m.nodes[p] = &memNode{dir: true, ctime: now, mtime: now}
		}
		parent := filepath.Dir(p)
		if parent == p {
			return
		}
		p = parent
	}
}

func (m *MemFS) path(r Resource) string {
	return filepath.Clean(m.resolver.Resolve(r))
}

func (m *MemFS) parentIsDir(p string) error {
	parent := filepath.Dir(p)
	n, ok := m.nodes[parent]
	if !ok {
		return &fs.PathError{Op: "stat", Path: parent, Err: fs.ErrNotExist}
	}
	if !n.dir {
		return fmt.Errorf("%s is not a directory", parent)
	}
	return nil
}

func (m *MemFS) ReadFile(_ context.Context, r Resource) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(KindRead); err != nil {
		return nil, opError(KindRead, r, err)
	}
	p := m.path(r)
	n, ok := m.nodes[p]
	if !ok {
		return nil, opError(KindRead, r, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist})
	}
	if n.dir {
		return nil, opError(KindRead, r, fmt.Errorf("%s is a directory", p))
	}
	return append([]byte(nil), n.data...), nil
}

func (m *MemFS) WriteFile(_ context.Context, r Resource, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(KindWrite); err != nil {
		return opError(KindWrite, r, err)
	}
	p := m.path(r)
	if n, ok := m.nodes[p]; ok && n.dir {
		return opError(KindWrite, r, fmt.Errorf("%s is a directory", p))
	}
	m.mkdirAll(filepath.Dir(p))
	now := m.now()
	if n, ok := m.nodes[p]; ok {
		n.data = append([]byte(nil), data...)
		n.mtime = now
		return nil
	}
	m.nodes[p] = &memNode{data: append([]byte(nil), data...), ctime: now, mtime: now}
	return nil
}

func (m *MemFS) Delete(_ context.Context, r Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(KindDelete); err != nil {
		return opError(KindDelete, r, err)
	}
	p := m.path(r)
	n, ok := m.nodes[p]
	if !ok {
		return opError(KindDelete, r, &fs.PathError{Op: "remove", Path: p, Err: fs.ErrNotExist})
	}
	if n.dir {
		return opError(KindDelete, r, fmt.Errorf("%s is a directory", p))
	}
	delete(m.nodes, p)
	return nil
}

func (m *MemFS) Rename(_ context.Context, from, to Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(KindRename); err != nil {
		return pairError(KindRename, from, to, err)
	}
	src, dst := m.path(from), m.path(to)
	n, ok := m.nodes[src]
	if !ok {
		return pairError(KindRename, from, to, &fs.PathError{Op: "rename", Path: src, Err: fs.ErrNotExist})
	}
	if err := m.parentIsDir(dst); err != nil {
		return pairError(KindRename, from, to, err)
	}
	delete(m.nodes, src)
	m.nodes[dst] = n
	if n.dir {
		prefix := src + string(filepath.Separator)
		moved := make(map[string]*memNode)
		for p, child := range m.nodes {
			if strings.HasPrefix(p, prefix) {
				moved[filepath.Join(dst, strings.TrimPrefix(p, prefix))] = child
				delete(m.nodes, p)
			}
		}
		for p, child := range moved {
			m.nodes[p] = child
		}
	}
	return nil
}

func (m *MemFS) Copy(_ context.Context, from, to Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(KindCopy); err != nil {
		return pairError(KindCopy, from, to, err)
	}
	src, dst := m.path(from), m.path(to)
	n, ok := m.nodes[src]
	if !ok {
		return pairError(KindCopy, from, to, &fs.PathError{Op: "open", Path: src, Err: fs.ErrNotExist})
	}
	if n.dir {
		return pairError(KindCopy, from, to, fmt.Errorf("%s is a directory", src))
	}
	if err := m.parentIsDir(dst); err != nil {
		return pairError(KindCopy, from, to, err)
	}
	now := m.now()
	m.nodes[dst] = &memNode{data: append([]byte(nil), n.data...), ctime: now, mtime: now}
	return nil
}

func (m *MemFS) Mkdir(_ context.Context, r Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(KindCreateDirectory); err != nil {
		return opError(KindCreateDirectory, r, err)
	}
	p := m.path(r)
	if _, ok := m.nodes[p]; ok {
		return opError(KindCreateDirectory, r, &fs.PathError{Op: "mkdir", Path: p, Err: fs.ErrExist})
	}
	if err := m.parentIsDir(p); err != nil {
		return opError(KindCreateDirectory, r, err)
	}
	now := m.now()
	m.nodes[p] = &memNode{dir: true, ctime: now, mtime: now}
	return nil
}

func (m *MemFS) Rmdir(_ context.Context, r Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(KindDelete); err != nil {
		return opError(KindDelete, r, err)
	}
	p := m.path(r)
	n, ok := m.nodes[p]
	if !ok {
		return opError(KindDelete, r, &fs.PathError{Op: "rmdir", Path: p, Err: fs.ErrNotExist})
	}
	if !n.dir {
		return opError(KindDelete, r, fmt.Errorf("%s is not a directory", p))
	}
	if len(m.children(p)) > 0 {
		return opError(KindDelete, r, fmt.Errorf("%s: directory not empty", p))
	}
	delete(m.nodes, p)
	return nil
}

func (m *MemFS) Ls(_ context.Context, r Resource) ([]FileStat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.injected(KindReadDirectory); err != nil {
		return nil, opError(KindReadDirectory, r, err)
	}
	p := m.path(r)
	n, ok := m.nodes[p]
	if !ok {
		return nil, opError(KindReadDirectory, r, &fs.PathError{Op: "open", Path: p, Err: fs.ErrNotExist})
	}
	if !n.dir {
		return nil, opError(KindReadDirectory, r, fmt.Errorf("%s is not a directory", p))
	}

	names := m.children(p)
	result := make([]FileStat, 0, len(names))
	for _, name := range names {
		cp := filepath.Join(p, name)
		c := m.nodes[cp]
		result = append(result, FileStat{
			Name:  name,
			Path:  cp,
			Size:  int64(len(c.data)),
			CTime: c.ctime,
			MTime: c.mtime,
			IsDir: c.dir,
		})
	}
	return result, nil
}

// children returns the sorted names directly under dir.
func (m *MemFS) children(dir string) []string {
	var names []string
	for p := range m.nodes {
		if p != dir && filepath.Dir(p) == dir {
			names = append(names, filepath.Base(p))
		}
	}
	sort.Strings(names)
	return names
}
