package backend

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"wick_editor/bridge"
	"wick_editor/logging"
)

// Bridge executes commands in the external terminal app.
//
// Availability is probed explicitly and cached; until a probe succeeds every
// call fails with ErrToolUnavailable. cd is resolved locally so the working
// directory stays owned by the caller.
type Bridge struct {
	bridge bridge.Bridge

	mu        sync.RWMutex
	available bool
	probed    bool
	version   string
	running   bool
}

// InstallURL is where the terminal app can be installed from.
const InstallURL = "https://f-droid.org/en/packages/com.termux/"

var (
	_ Backend   = (*Bridge)(nil)
	_ Prober    = (*Bridge)(nil)
	_ AppStatus = (*Bridge)(nil)
)

// NewBridge wraps b. Call Probe before the first Execute.
func NewBridge(b bridge.Bridge) *Bridge {
	return &Bridge{bridge: b}
}

func (b *Bridge) ID() string { return "terminal-app" }

// Probe re-checks availability and caches the result. A probe error counts
// as unavailable. When the app is available its version is fetched too; a
// version failure leaves the version empty.
func (b *Bridge) Probe(ctx context.Context) (bool, error) {
	ok, err := b.bridge.Available(ctx)
	if err != nil {
		ok = false
	}
	var version string
	if ok {
		v, verr := b.bridge.Version(ctx)
		if verr != nil {
			logging.Debug("terminal app version unknown", zap.Error(verr))
		}
		version = v
	}
	b.mu.Lock()
	b.available = ok
	b.probed = true
	b.version = version
	if !ok {
		b.running = false
	}
	b.mu.Unlock()

	logging.Debug("terminal app probed", zap.Bool("available", ok), zap.Error(err))
	return ok, err
}

// Available returns the cached probe result.
func (b *Bridge) Available() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.probed && b.available
}

// Execute sends the command to the terminal app with the current directory.
func (b *Bridge) Execute(ctx context.Context, req Request) (Result, error) {
	command := strings.TrimSpace(req.Command)
	if command == "" {
		return Result{}, ErrCommandRejected
	}
	if !b.Available() {
		return Result{}, ErrToolUnavailable
	}

	if name, rest := splitCommand(command); name == "cd" {
		dir := ChangeDir(req.Workdir, rest)
		return Result{Output: ChangedDirMessage(dir), Workdir: dir}, nil
	}

	out, err := b.bridge.Send(ctx, command, req.Workdir)
	if err != nil {
		return Result{}, fmt.Errorf("send to terminal app: %w", err)
	}
	return Result{Output: out}, nil
}

// Version returns the terminal app version from the last successful check.
func (b *Bridge) Version() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.version
}

// Running reports whether the app was launched and not stopped since.
func (b *Bridge) Running() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.running
}

func (b *Bridge) setRunning(v bool) {
	b.mu.Lock()
	b.running = v
	b.mu.Unlock()
}

// Launch brings the terminal app up.
func (b *Bridge) Launch(ctx context.Context) error {
	if !b.Available() {
		return ErrToolUnavailable
	}
	if err := b.bridge.Launch(ctx); err != nil {
		return err
	}
	b.setRunning(true)
	return nil
}

// OpenAt opens the terminal app at dir, launching it if needed.
func (b *Bridge) OpenAt(ctx context.Context, dir string) error {
	if !b.Available() {
		return ErrToolUnavailable
	}
	if err := b.bridge.OpenAt(ctx, dir); err != nil {
		return err
	}
	b.setRunning(true)
	return nil
}

// Stop ends the terminal app session.
func (b *Bridge) Stop(ctx context.Context) error {
	if !b.Available() {
		return ErrToolUnavailable
	}
	if err := b.bridge.Stop(ctx); err != nil {
		return err
	}
	b.setRunning(false)
	return nil
}

// Events returns the terminal app's command-executed notifications.
func (b *Bridge) Events() <-chan bridge.Event {
	return b.bridge.Events()
}
