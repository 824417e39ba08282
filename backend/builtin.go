package backend

import (
	"context"
	"fmt"
	"strings"
	"time"

	"wick_editor/wickfs"
)

// HelpText is the fixed usage string of the built-in interpreter.
const HelpText = "Available commands: help, clear, echo, ls, pwd, date, cd"

// Builtin is a small in-process command interpreter. It never starts
// processes; ls reads through the filesystem abstraction.
type Builtin struct {
	fsys  wickfs.FileSystem
	clock func() time.Time
}

// BuiltinOption configures a Builtin.
type BuiltinOption func(*Builtin)

// WithClock sets the clock used by date.
func WithClock(fn func() time.Time) BuiltinOption {
	return func(b *Builtin) { b.clock = fn }
}

// NewBuiltin creates the built-in backend. fsys may be nil, in which case
// ls lists nothing.
func NewBuiltin(fsys wickfs.FileSystem, opts ...BuiltinOption) *Builtin {
	b := &Builtin{fsys: fsys, clock: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Builtin) ID() string { return "builtin" }

// Execute runs one built-in command. Unknown commands are not errors; they
// produce a "command not found" result.
func (b *Builtin) Execute(ctx context.Context, req Request) (Result, error) {
	command := strings.TrimSpace(req.Command)
	if command == "" {
		return Result{}, ErrCommandRejected
	}

	name, rest := splitCommand(command)
	switch name {
	case "help":
		return Result{Output: HelpText}, nil
	case "clear":
		return Result{ClearTranscript: true}, nil
	case "echo":
		return Result{Output: rest}, nil
	case "pwd":
		return Result{Output: req.Workdir}, nil
	case "date":
		return Result{Output: b.clock().Format(time.UnixDate)}, nil
	case "cd":
		dir := ChangeDir(req.Workdir, rest)
		return Result{Output: ChangedDirMessage(dir), Workdir: dir}, nil
	case "ls":
		return b.ls(ctx, ChangeDir(req.Workdir, rest))
	}
	return Result{Output: "command not found: " + command}, nil
}

func (b *Builtin) ls(ctx context.Context, dir string) (Result, error) {
	if b.fsys == nil {
		return Result{}, nil
	}
	entries, err := b.fsys.Ls(ctx, wickfs.File(dir))
	if err != nil {
		return Result{}, fmt.Errorf("ls: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if e.IsDir {
			name += "/"
		}
		names = append(names, name)
	}
	return Result{Output: strings.Join(names, "  ")}, nil
}
