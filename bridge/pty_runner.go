package bridge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/creack/pty"
	"go.uber.org/zap"

	"wick_editor/logging"
)

// outputGrace bounds how long Run keeps draining the terminal after the
// command has exited (background children may hold it open).
const outputGrace = 200 * time.Millisecond

const versionTimeout = 5 * time.Second

// PTYRunner runs commands inside pseudo-terminals on the host.
type PTYRunner struct {
	shell          string
	home           string
	timeout        time.Duration
	maxOutputBytes int

	mu      sync.Mutex
	session *os.File
	cmd     *exec.Cmd
}

var _ Runner = (*PTYRunner)(nil)

// NewPTYRunner creates a runner rooted at home. Zero values pick defaults:
// 120s timeout and 100000 bytes of output.
func NewPTYRunner(home string, timeout time.Duration, maxOutputBytes int) *PTYRunner {
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	if maxOutputBytes <= 0 {
		maxOutputBytes = 100_000
	}
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "sh"
	}
	return &PTYRunner{
		shell:          shell,
		home:           home,
		timeout:        timeout,
		maxOutputBytes: maxOutputBytes,
	}
}

// Probe reports whether a shell can be started in the home directory.
func (r *PTYRunner) Probe(ctx context.Context) bool {
	if _, err := exec.LookPath(r.shell); err != nil {
		return false
	}
	info, err := os.Stat(r.home)
	return err == nil && info.IsDir()
}

// Run executes command with "sh -c" in dir, or in home when dir is empty.
func (r *PTYRunner) Run(ctx context.Context, command, dir string) (string, int, error) {
	if dir == "" {
		dir = r.home
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	f, err := pty.Start(cmd)
	if err != nil {
		return "", 1, fmt.Errorf("start command: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		// Reads end with EIO once the child side is closed.
		io.Copy(&buf, f)
		close(done)
	}()

	waitErr := cmd.Wait()
	select {
	case <-done:
	case <-time.After(outputGrace):
		f.Close()
		<-done
	}

	return r.buildResult(buf.String(), waitErr, ctx)
}

// buildResult normalizes terminal output and maps the wait error.
func (r *PTYRunner) buildResult(raw string, err error, ctx context.Context) (string, int, error) {
	output := strings.ReplaceAll(raw, "\r\n", "\n")
	output = strings.TrimRight(output, "\n")

	if len(output) > r.maxOutputBytes {
		output = output[:r.maxOutputBytes]
		output += fmt.Sprintf("\n\n... Output truncated at %d bytes.", r.maxOutputBytes)
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if ctx.Err() == context.DeadlineExceeded {
			return output, 124, fmt.Errorf("command timed out after %.1f seconds", r.timeout.Seconds())
		} else if errors.As(err, &exitErr) {
			exitCode = exitErr.ExitCode()
		} else {
			return output, 1, fmt.Errorf("exec: %w", err)
		}
	}

	if exitCode != 0 {
		output += fmt.Sprintf("\n\nExit code: %d", exitCode)
	}
	return output, exitCode, nil
}

// Launch starts the persistent interactive shell if it is not running.
func (r *PTYRunner) Launch(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.launchLocked()
}

func (r *PTYRunner) launchLocked() error {
	if r.session != nil {
		return nil
	}
	cmd := exec.Command(r.shell)
	cmd.Dir = r.home
	f, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("launch shell: %w", err)
	}
	r.session = f
	r.cmd = cmd

	go io.Copy(io.Discard, f)
	go func() {
		cmd.Wait()
		r.mu.Lock()
		if r.cmd == cmd {
			r.session.Close()
			r.session = nil
			r.cmd = nil
		}
		r.mu.Unlock()
		logging.Info("terminal session ended", zap.Int("pid", cmd.Process.Pid))
	}()

	logging.Info("terminal session started", zap.String("shell", r.shell), zap.Int("pid", cmd.Process.Pid))
	return nil
}

// Open moves the persistent shell to dir, launching it first if needed.
func (r *PTYRunner) Open(ctx context.Context, dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.launchLocked(); err != nil {
		return err
	}
	if _, err := io.WriteString(r.session, "cd "+shellQuote(dir)+" && clear\n"); err != nil {
		return fmt.Errorf("open %s: %w", dir, err)
	}
	return nil
}

// Version returns the first line of "<shell> --version", or the shell's name
// when the shell does not report one.
func (r *PTYRunner) Version(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionTimeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, r.shell, "--version").Output()
	if line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n"); err == nil && line != "" {
		return line, nil
	}
	if _, err := exec.LookPath(r.shell); err != nil {
		return "", fmt.Errorf("shell %s: %w", r.shell, err)
	}
	return filepath.Base(r.shell), nil
}

// Stop ends the persistent shell.
func (r *PTYRunner) Stop(ctx context.Context) error {
	return r.Close()
}

// Close stops the persistent shell.
func (r *PTYRunner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cmd == nil {
		return nil
	}
	r.cmd.Process.Kill()
	err := r.session.Close()
	r.session = nil
	r.cmd = nil
	return err
}
