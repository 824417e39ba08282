// Package terminal routes shell commands to a backend and keeps the
// resulting transcript.
//
// A Dispatcher runs one command at a time. Submissions are queued and
// executed in submission order by a single worker, so the transcript entries
// of one command (its "$ cmd" line and its result) are always contiguous and
// appear before those of any later command.
package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"wick_editor/backend"
	"wick_editor/bridge"
	"wick_editor/logging"
	"wick_editor/metrics"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("dispatcher closed")

// Mode controls backend selection.
type Mode string

const (
	// ModeAuto uses the external backend whenever its last probe succeeded.
	ModeAuto Mode = "auto"
	// ModeExternal always uses the external backend, even when unavailable.
	ModeExternal Mode = "external"
	// ModeBuiltin always uses the built-in backend.
	ModeBuiltin Mode = "builtin"
)

// ParseMode parses a mode name. Empty means ModeAuto.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return ModeAuto, nil
	case ModeAuto, ModeExternal, ModeBuiltin:
		return m, nil
	}
	return "", fmt.Errorf("unknown terminal mode %q (want auto, external or builtin)", s)
}

// State is the dispatcher's execution state.
type State string

const (
	StateIdle      State = "idle"
	StateExecuting State = "executing"
)

// Banner texts appended at start-up.
const (
	BannerAvailable   = "Terminal app available"
	BannerUnavailable = "Terminal app not found. Using built-in terminal."
	BannerMissing     = "Terminal app not found."
)

// Options configures a Dispatcher.
type Options struct {
	External backend.Backend // optional; probed when it implements backend.Prober
	Builtin  backend.Backend // required
	Mode     Mode
	Workdir  string
	Clock    func() time.Time
}

// Snapshot is a point-in-time view of the dispatcher.
type Snapshot struct {
	State     State  `json:"state"`
	Mode      Mode   `json:"mode"`
	Backend   string `json:"backend"`
	Available bool   `json:"available"`
	Workdir   string `json:"workdir"`
	Input     string `json:"input"`
	Queued    int    `json:"queued"`
	Version   string `json:"version,omitempty"`
	Running   bool   `json:"running"`
}

type job struct {
	ctx   context.Context
	raw   string
	reply chan error
}

// Dispatcher owns the working directory, the pending input and the
// transcript of one terminal session.
type Dispatcher struct {
	external   backend.Backend
	builtin    backend.Backend
	mode       Mode
	transcript *Transcript
	log        *zap.Logger

	mu        sync.Mutex
	workdir   string
	input     string
	available bool
	selected  backend.Backend
	state     State

	jobs     chan job
	quit     chan struct{}
	stopped  chan struct{}
	quitOnce sync.Once
}

// New creates a dispatcher, probes the external backend once, appends the
// start-up banner and starts the worker.
func New(ctx context.Context, opts Options) (*Dispatcher, error) {
	if opts.Builtin == nil {
		return nil, errors.New("terminal: builtin backend is required")
	}
	if opts.Mode == "" {
		opts.Mode = ModeAuto
	}
	if opts.Workdir == "" {
		opts.Workdir = "/"
	}

	d := &Dispatcher{
		external:   opts.External,
		builtin:    opts.Builtin,
		mode:       opts.Mode,
		transcript: NewTranscript(opts.Clock),
		log:        logging.Named("terminal"),
		workdir:    opts.Workdir,
		state:      StateIdle,
		jobs:       make(chan job, 64),
		quit:       make(chan struct{}),
		stopped:    make(chan struct{}),
	}

	available := d.probe(ctx)
	d.mu.Lock()
	d.available = available
	d.selected = d.choose(available)
	d.mu.Unlock()

	switch {
	case available:
		d.transcript.Append(KindSuccess, BannerAvailable)
		d.transcript.Append(KindInfo, "Current directory: "+opts.Workdir)
	case d.selected == d.builtin:
		d.transcript.Append(KindWarning, BannerUnavailable)
	default:
		d.transcript.Append(KindWarning, BannerMissing)
	}

	d.log.Info("terminal ready",
		zap.String("mode", string(d.mode)),
		zap.String("backend", d.selected.ID()),
		zap.Bool("external_available", available),
	)

	go d.worker()
	if src, ok := opts.External.(interface{ Events() <-chan bridge.Event }); ok {
		go d.watch(src.Events())
	}
	return d, nil
}

func (d *Dispatcher) probe(ctx context.Context) bool {
	p, ok := d.external.(backend.Prober)
	if !ok {
		return false
	}
	available, err := p.Probe(ctx)
	if err != nil {
		d.log.Warn("terminal app probe failed", zap.Error(err))
		return false
	}
	return available
}

// choose returns the backend for the given availability and the mode.
func (d *Dispatcher) choose(available bool) backend.Backend {
	if d.external == nil {
		return d.builtin
	}
	switch d.mode {
	case ModeExternal:
		return d.external
	case ModeBuiltin:
		return d.builtin
	}
	if available {
		return d.external
	}
	return d.builtin
}

// Refresh re-probes the external backend and reselects. It returns the new
// availability.
func (d *Dispatcher) Refresh(ctx context.Context) bool {
	available := d.probe(ctx)
	d.mu.Lock()
	d.available = available
	prev := d.selected
	d.selected = d.choose(available)
	cur := d.selected
	d.mu.Unlock()

	if prev != cur {
		d.log.Info("terminal backend changed", zap.String("from", prev.ID()), zap.String("to", cur.ID()))
	}
	return available
}

// Execute queues raw for execution and waits for it to finish. Empty input
// is rejected without touching the transcript. Backend failures are both
// appended to the transcript and returned.
func (d *Dispatcher) Execute(ctx context.Context, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return backend.ErrCommandRejected
	}

	j := job{
		ctx:   context.WithoutCancel(ctx),
		raw:   raw,
		reply: make(chan error, 1),
	}
	select {
	case <-d.quit:
		return ErrClosed
	default:
	}
	select {
	case d.jobs <- j:
	case <-d.quit:
		return ErrClosed
	}

	select {
	case err := <-j.reply:
		return err
	case <-d.stopped:
		select {
		case err := <-j.reply:
			return err
		default:
			return ErrClosed
		}
	}
}

// SetInput replaces the pending-input buffer.
func (d *Dispatcher) SetInput(s string) {
	d.mu.Lock()
	d.input = s
	d.mu.Unlock()
}

// Input returns the pending-input buffer.
func (d *Dispatcher) Input() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.input
}

// ExecuteInput executes the pending-input buffer.
func (d *Dispatcher) ExecuteInput(ctx context.Context) error {
	return d.Execute(ctx, d.Input())
}

// Clear empties the transcript.
func (d *Dispatcher) Clear() {
	d.transcript.Clear()
}

// Transcript returns the dispatcher's transcript.
func (d *Dispatcher) Transcript() *Transcript { return d.transcript }

// Workdir returns the current working directory.
func (d *Dispatcher) Workdir() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.workdir
}

// Backend returns the currently selected backend.
func (d *Dispatcher) Backend() backend.Backend {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected
}

// State returns idle or executing.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Snapshot returns the current dispatcher state.
func (d *Dispatcher) Snapshot() Snapshot {
	d.mu.Lock()
	snap := Snapshot{
		State:     d.state,
		Mode:      d.mode,
		Backend:   d.selected.ID(),
		Available: d.available,
		Workdir:   d.workdir,
		Input:     d.input,
		Queued:    len(d.jobs),
	}
	d.mu.Unlock()

	if app, ok := d.external.(backend.AppStatus); ok {
		snap.Version = app.Version()
		snap.Running = app.Running()
	}
	return snap
}

// Close stops the worker after the command in flight, if any. Queued
// commands that have not started fail with ErrClosed.
func (d *Dispatcher) Close() error {
	d.quitOnce.Do(func() { close(d.quit) })
	<-d.stopped
	return nil
}

func (d *Dispatcher) worker() {
	defer close(d.stopped)
	for {
		select {
		case <-d.quit:
			return
		case j := <-d.jobs:
			j.reply <- d.run(j.ctx, j.raw)
		}
	}
}

func (d *Dispatcher) run(ctx context.Context, raw string) error {
	d.mu.Lock()
	d.state = StateExecuting
	b := d.selected
	workdir := d.workdir
	d.mu.Unlock()

	d.transcript.Append(KindCommand, "$ "+raw)

	command := strings.TrimSpace(raw)
	start := time.Now()
	res, err := b.Execute(ctx, backend.Request{Command: command, Workdir: workdir})
	metrics.RecordCommand(b.ID(), time.Since(start), err == nil)

	if err != nil {
		d.transcript.Append(KindError, "Error: "+err.Error())
		d.log.Warn("command failed",
			zap.String("backend", b.ID()),
			zap.String("command", command),
			zap.Error(err),
		)
	} else if res.ClearTranscript {
		d.transcript.Clear()
	} else {
		d.transcript.Append(KindSuccess, res.Output)
		d.log.Debug("command executed",
			zap.String("backend", b.ID()),
			zap.String("command", command),
			zap.Duration("duration", time.Since(start)),
		)
	}

	d.mu.Lock()
	if err == nil && res.Workdir != "" {
		d.workdir = res.Workdir
	}
	d.input = ""
	d.state = StateIdle
	d.mu.Unlock()
	return err
}

// watch records command-executed notifications from the terminal app.
func (d *Dispatcher) watch(events <-chan bridge.Event) {
	for {
		select {
		case <-d.quit:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			metrics.RecordBridgeEvent()
			d.log.Debug("terminal app executed command",
				zap.String("command", ev.Command),
				zap.String("dir", ev.Dir),
				zap.Int("exit_code", ev.ExitCode),
			)
		}
	}
}
