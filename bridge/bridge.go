// Package bridge is the boundary to the external terminal application.
//
// The editor never runs processes itself. It talks to a terminal app through a
// Bridge: fallible asynchronous capabilities (probe, launch, send a command,
// open at a directory, report its version, stop) plus a stream of
// command-executed notifications.
//
// Client speaks the bridge protocol over a websocket. Host is the other end of
// that protocol and delegates to a Runner; PTYRunner runs commands inside a
// pseudo-terminal the way a terminal app would.
package bridge

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrClosed is returned when the bridge connection is gone.
var ErrClosed = errors.New("bridge connection closed")

// Bridge is the capability set the editor depends on.
type Bridge interface {
	// Available probes whether the terminal app can be reached.
	Available(ctx context.Context) (bool, error)

	// Launch brings the terminal app up.
	Launch(ctx context.Context) error

	// Send runs command in dir and returns its textual result.
	Send(ctx context.Context, command, dir string) (string, error)

	// OpenAt opens the terminal app at dir.
	OpenAt(ctx context.Context, dir string) error

	// Version returns the terminal app's version string.
	Version(ctx context.Context) (string, error)

	// Stop ends the terminal app's session. Stopping a session that is not
	// running is not an error.
	Stop(ctx context.Context) error

	// Events delivers command-executed notifications.
	Events() <-chan Event
}

// Event is a command-executed notification.
type Event struct {
	Command  string    `json:"command"`
	Dir      string    `json:"dir,omitempty"`
	ExitCode int       `json:"exit_code"`
	At       time.Time `json:"at"`
}

// shellQuote safely quotes a string for shell use.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}
