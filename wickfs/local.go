package wickfs

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// LocalFS implements FileSystem using direct Go stdlib calls on resolved paths.
type LocalFS struct {
	resolver Resolver
}

// NewLocalFS creates a local filesystem rooted at the given workspace root.
func NewLocalFS(root string) *LocalFS {
	return &LocalFS{resolver: NewResolver(root)}
}

// Resolver returns the resolver used to map resources to paths.
func (fs *LocalFS) Resolver() Resolver { return fs.resolver }

// ReadFile reads the full contents of r.
func (fs *LocalFS) ReadFile(_ context.Context, r Resource) ([]byte, error) {
	data, err := os.ReadFile(fs.resolver.Resolve(r))
	if err != nil {
		return nil, opError(KindRead, r, err)
	}
	return data, nil
}

// WriteFile atomically writes data to r, creating parent directories as needed.
func (fs *LocalFS) WriteFile(_ context.Context, r Resource, data []byte) error {
	path := fs.resolver.Resolve(r)
	if err := writeAtomic(path, data); err != nil {
		return opError(KindWrite, r, err)
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".wickfs-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	_, err = tmp.Write(data)
	tmp.Close()
	if err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to write: %w", err)
	}

	if err := os.Chmod(tmpName, 0666); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to rename: %w", err)
	}
	return nil
}

// Delete removes the file at r.
func (fs *LocalFS) Delete(_ context.Context, r Resource) error {
	path := fs.resolver.Resolve(r)
	info, err := os.Lstat(path)
	if err == nil && info.IsDir() {
		return opError(KindDelete, r, fmt.Errorf("%s is a directory", path))
	}
	if err := os.Remove(path); err != nil {
		return opError(KindDelete, r, err)
	}
	return nil
}

// Rename moves from to to. The destination's parent must exist.
func (fs *LocalFS) Rename(_ context.Context, from, to Resource) error {
	if err := os.Rename(fs.resolver.Resolve(from), fs.resolver.Resolve(to)); err != nil {
		return pairError(KindRename, from, to, err)
	}
	return nil
}

// Copy copies the file at from to to. The destination's parent must exist.
func (fs *LocalFS) Copy(_ context.Context, from, to Resource) error {
	if err := copyFile(fs.resolver.Resolve(from), fs.resolver.Resolve(to)); err != nil {
		return pairError(KindCopy, from, to, err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", src)
	}

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Mkdir creates the directory at r. Its parent must already exist.
func (fs *LocalFS) Mkdir(_ context.Context, r Resource) error {
	if err := os.Mkdir(fs.resolver.Resolve(r), 0755); err != nil {
		return opError(KindCreateDirectory, r, err)
	}
	return nil
}

// Rmdir removes the empty directory at r.
func (fs *LocalFS) Rmdir(_ context.Context, r Resource) error {
	path := fs.resolver.Resolve(r)
	info, err := os.Lstat(path)
	if err != nil {
		return opError(KindDelete, r, err)
	}
	if !info.IsDir() {
		return opError(KindDelete, r, fmt.Errorf("%s is not a directory", path))
	}
	if err := os.Remove(path); err != nil {
		return opError(KindDelete, r, err)
	}
	return nil
}

// Ls lists directory entries at r.
func (fs *LocalFS) Ls(_ context.Context, r Resource) ([]FileStat, error) {
	dir := fs.resolver.Resolve(r)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, opError(KindReadDirectory, r, err)
	}

	result := make([]FileStat, 0, len(entries))
	for _, e := range entries {
		p := filepath.Join(dir, e.Name())
		isLink := e.Type()&os.ModeSymlink != 0

		info, err := os.Stat(p)
		if err != nil {
			// dangling symlink: report the link itself
			info, err = os.Lstat(p)
			if err != nil {
				return nil, opError(KindReadDirectory, r, err)
			}
		}
		result = append(result, FileStat{
			Name:      e.Name(),
			Path:      p,
			Size:      info.Size(),
			CTime:     changeTime(info),
			MTime:     info.ModTime(),
			IsDir:     info.IsDir(),
			IsSymlink: isLink,
		})
	}
	return result, nil
}
