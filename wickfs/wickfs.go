// Package wickfs maps resource identifiers onto on-device storage.
//
// A Resource is a scheme plus a path. Two schemes are understood:
//   - "vscode": workspace-internal, resolved relative to the configured workspace root.
//   - "file": native, used as an already-absolute path.
//
// Any other scheme falls back to treating the path as absolute.
//
// Two implementations are provided:
//   - LocalFS: direct Go stdlib calls against the resolved path.
//   - MemFS: an in-memory tree with the same rules, used as a test double.
package wickfs

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// Resource schemes.
const (
	SchemeWorkspace = "vscode"
	SchemeFile      = "file"
)

// FileSystem is the interface for resource-addressed storage operations.
type FileSystem interface {
	ReadFile(ctx context.Context, r Resource) ([]byte, error)
	WriteFile(ctx context.Context, r Resource, data []byte) error
	Delete(ctx context.Context, r Resource) error
	Rename(ctx context.Context, from, to Resource) error
	Copy(ctx context.Context, from, to Resource) error
	Mkdir(ctx context.Context, r Resource) error
	Rmdir(ctx context.Context, r Resource) error
	Ls(ctx context.Context, r Resource) ([]FileStat, error)
}

// FileStat describes a single directory listing entry.
type FileStat struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"` // resolved storage path
	Size      int64     `json:"size"`
	CTime     time.Time `json:"ctime"`
	MTime     time.Time `json:"mtime"`
	IsDir     bool      `json:"is_dir"`
	IsSymlink bool      `json:"is_symlink"`
}

// Resource identifies a storage location as a scheme tag plus a path.
type Resource struct {
	Scheme string `json:"scheme"`
	Path   string `json:"path"`
}

// Workspace returns a workspace-internal resource for path.
func Workspace(path string) Resource {
	return Resource{Scheme: SchemeWorkspace, Path: "/" + strings.TrimPrefix(filepath.ToSlash(path), "/")}
}

// File returns a native resource for path.
func File(path string) Resource {
	return Resource{Scheme: SchemeFile, Path: path}
}

// ParseResource parses "vscode:/src/a.js", "file:///tmp/a.js" or a bare path.
// Bare paths are native.
func ParseResource(s string) Resource {
	scheme, rest, ok := strings.Cut(s, ":")
	if !ok || scheme == "" || strings.ContainsAny(scheme, "/\\.") || len(scheme) == 1 {
		// no scheme, or a Windows drive letter
		return File(s)
	}
	if strings.HasPrefix(rest, "//") {
		// authority form: file:///abs or vscode://host/path
		rest = rest[2:]
		if i := strings.Index(rest, "/"); i >= 0 {
			rest = rest[i:]
		} else {
			rest = "/"
		}
	}
	return Resource{Scheme: scheme, Path: rest}
}

func (r Resource) String() string {
	if r.Scheme == "" {
		return r.Path
	}
	if r.Scheme == SchemeFile {
		return "file://" + r.Path
	}
	return r.Scheme + ":" + r.Path
}

// Resolver turns resources into real storage paths.
type Resolver struct {
	root string
}

// NewResolver creates a resolver for the given workspace root.
func NewResolver(root string) Resolver {
	if root != "" && !filepath.IsAbs(root) {
		if abs, err := filepath.Abs(root); err == nil {
			root = abs
		}
	}
	return Resolver{root: root}
}

// Root returns the workspace root.
func (rv Resolver) Root() string { return rv.root }

// Resolve maps r to a storage path.
func (rv Resolver) Resolve(r Resource) string {
	switch r.Scheme {
	case SchemeWorkspace:
		rel := strings.TrimPrefix(r.Path, "/")
		return filepath.Join(rv.root, filepath.FromSlash(rel))
	default:
		// SchemeFile and anything unrecognised are taken as absolute paths.
		return filepath.FromSlash(r.Path)
	}
}
