package backend

import (
	"context"
	"errors"
	"path"
	"strings"
)

var (
	// ErrToolUnavailable is returned by a backend whose external tool could
	// not be reached when it was last probed.
	ErrToolUnavailable = errors.New("terminal app not available")

	// ErrCommandRejected is returned for empty or whitespace-only input.
	ErrCommandRejected = errors.New("command rejected: empty input")
)

// Backend is the interface for executing terminal commands.
type Backend interface {
	// ID returns the backend identifier.
	ID() string

	// Execute runs one command. Effects on the working directory and the
	// transcript are returned in the Result, never applied directly.
	Execute(ctx context.Context, req Request) (Result, error)
}

// Prober is implemented by backends whose availability must be checked.
type Prober interface {
	Probe(ctx context.Context) (bool, error)
}

// AppStatus is implemented by backends fronting a separate terminal app.
type AppStatus interface {
	Version() string
	Running() bool
}

// Request is a single command invocation.
type Request struct {
	Command string `json:"command"`
	Workdir string `json:"workdir"`
}

// Result holds the outcome of a command.
type Result struct {
	Output string `json:"output"`

	// Workdir is the directory after the command. Empty means unchanged.
	Workdir string `json:"workdir,omitempty"`

	// ClearTranscript asks the caller to empty its transcript.
	ClearTranscript bool `json:"clear_transcript,omitempty"`
}

// splitCommand returns the lowercased command name and the raw remainder.
func splitCommand(command string) (name, rest string) {
	command = strings.TrimSpace(command)
	i := strings.IndexAny(command, " \t")
	if i < 0 {
		return strings.ToLower(command), ""
	}
	return strings.ToLower(command[:i]), strings.TrimSpace(command[i+1:])
}

// ChangeDir applies a cd argument to cur. Paths are normalized lexically:
// absolute arguments replace cur, relative ones are joined to it, "." and
// ".." are resolved without touching the filesystem and trailing slashes are
// dropped. An empty argument leaves cur unchanged.
func ChangeDir(cur, arg string) string {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return cur
	}
	if path.IsAbs(arg) {
		return path.Clean(arg)
	}
	if cur == "" {
		cur = "/"
	}
	return path.Join(cur, arg)
}

// ChangedDirMessage is the confirmation returned after a cd.
func ChangedDirMessage(dir string) string {
	return "Changed directory to: " + dir
}
