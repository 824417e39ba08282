package wickfs

import "context"

// Observer is called after every operation with its kind and result.
type Observer func(op string, err error)

// Observed wraps a FileSystem and reports each operation to an Observer.
type Observed struct {
	FileSystem
	observe Observer
}

// Observe returns fsys wrapped so that every call is reported to fn.
func Observe(fsys FileSystem, fn Observer) *Observed {
	return &Observed{FileSystem: fsys, observe: fn}
}

func (o *Observed) ReadFile(ctx context.Context, r Resource) ([]byte, error) {
	data, err := o.FileSystem.ReadFile(ctx, r)
	o.observe("read", err)
	return data, err
}

func (o *Observed) WriteFile(ctx context.Context, r Resource, data []byte) error {
	err := o.FileSystem.WriteFile(ctx, r, data)
	o.observe("write", err)
	return err
}

func (o *Observed) Delete(ctx context.Context, r Resource) error {
	err := o.FileSystem.Delete(ctx, r)
	o.observe("delete", err)
	return err
}

func (o *Observed) Rename(ctx context.Context, from, to Resource) error {
	err := o.FileSystem.Rename(ctx, from, to)
	o.observe("rename", err)
	return err
}

func (o *Observed) Copy(ctx context.Context, from, to Resource) error {
	err := o.FileSystem.Copy(ctx, from, to)
	o.observe("copy", err)
	return err
}

func (o *Observed) Mkdir(ctx context.Context, r Resource) error {
	err := o.FileSystem.Mkdir(ctx, r)
	o.observe("mkdir", err)
	return err
}

func (o *Observed) Rmdir(ctx context.Context, r Resource) error {
	err := o.FileSystem.Rmdir(ctx, r)
	o.observe("rmdir", err)
	return err
}

func (o *Observed) Ls(ctx context.Context, r Resource) ([]FileStat, error) {
	entries, err := o.FileSystem.Ls(ctx, r)
	o.observe("ls", err)
	return entries, err
}
