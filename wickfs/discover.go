package wickfs

import (
	"context"
	"path"
	"strings"
)

// DiscoverOptions bounds a workspace walk.
type DiscoverOptions struct {
	MaxDepth int
	MaxFiles int
}

const (
	defaultDiscoverDepth = 4
	defaultDiscoverFiles = 500
)

// Discovery is the result of walking a workspace root.
type Discovery struct {
	Folders   []string // top-level directory names
	Files     []string // slash-separated, relative to the root
	Truncated bool
}

// skipDirs are never descended into during discovery.
var skipDirs = map[string]bool{
	"node_modules": true,
	"__pycache__":  true,
	"vendor":       true,
}

func skipDir(name string) bool {
	return strings.HasPrefix(name, ".") || skipDirs[name]
}

// Discover walks root depth-first in listing order. Only the root listing is
// required to succeed; unreadable subdirectories are skipped.
func Discover(ctx context.Context, fsys FileSystem, root Resource, opts DiscoverOptions) (*Discovery, error) {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = defaultDiscoverDepth
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = defaultDiscoverFiles
	}

	entries, err := fsys.Ls(ctx, root)
	if err != nil {
		return nil, err
	}

	d := &Discovery{Folders: []string{}, Files: []string{}}
	for _, e := range entries {
		if e.IsDir {
			d.Folders = append(d.Folders, e.Name)
		}
	}
	d.walk(ctx, fsys, root, "", entries, 1, opts)
	return d, nil
}

func (d *Discovery) walk(ctx context.Context, fsys FileSystem, root Resource, rel string, entries []FileStat, depth int, opts DiscoverOptions) {
	for _, e := range entries {
		if d.Truncated || ctx.Err() != nil {
			return
		}
		name := path.Join(rel, e.Name)
		if !e.IsDir {
			d.Files = append(d.Files, name)
			if len(d.Files) >= opts.MaxFiles {
				d.Truncated = true
			}
			continue
		}
		if skipDir(e.Name) || depth >= opts.MaxDepth {
			continue
		}
		child := Resource{Scheme: root.Scheme, Path: path.Join(root.Path, name)}
		sub, err := fsys.Ls(ctx, child)
		if err != nil {
			continue
		}
		d.walk(ctx, fsys, root, name, sub, depth+1, opts)
	}
}
