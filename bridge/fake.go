package bridge

import (
	"context"
	"sync"
	"time"
)

// DefaultFakeOutput is what Fake.Send returns for commands without a
// scripted output.
const DefaultFakeOutput = "Command sent to terminal app"

// Fake is an in-process Bridge for tests.
type Fake struct {
	mu sync.Mutex

	Avail      bool
	ProbeErr   error
	SendErr    error
	VersionErr error
	Outputs    map[string]string
	AppVersion string

	Probes   int
	Launched int
	Stopped  int
	Opened   []string
	Sent     []SentCommand

	events chan Event
}

// SentCommand records one Send call.
type SentCommand struct {
	Command string
	Dir     string
}

var _ Bridge = (*Fake)(nil)

// NewFake creates a fake that reports avail from Available.
func NewFake(avail bool) *Fake {
	return &Fake{
		Avail:   avail,
		Outputs: make(map[string]string),
		events:  make(chan Event, eventBufSize),
	}
}

func (f *Fake) Available(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Probes++
	if f.ProbeErr != nil {
		return false, f.ProbeErr
	}
	return f.Avail, nil
}

// SetAvailable changes the probe result.
func (f *Fake) SetAvailable(v bool) {
	f.mu.Lock()
	f.Avail = v
	f.mu.Unlock()
}

func (f *Fake) Launch(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Launched++
	return nil
}

func (f *Fake) Send(ctx context.Context, command, dir string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sent = append(f.Sent, SentCommand{Command: command, Dir: dir})
	if f.SendErr != nil {
		return "", f.SendErr
	}
	if out, ok := f.Outputs[command]; ok {
		return out, nil
	}
	return DefaultFakeOutput, nil
}

func (f *Fake) OpenAt(ctx context.Context, dir string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Opened = append(f.Opened, dir)
	return nil
}

func (f *Fake) Version(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.VersionErr != nil {
		return "", f.VersionErr
	}
	return f.AppVersion, nil
}

func (f *Fake) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Stopped++
	return nil
}

func (f *Fake) Events() <-chan Event {
	return f.events
}

// Emit injects a command-executed notification.
func (f *Fake) Emit(command string) {
	f.events <- Event{Command: command, At: time.Now()}
}

// SentCommands returns a copy of the recorded Send calls.
func (f *Fake) SentCommands() []SentCommand {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]SentCommand, len(f.Sent))
	copy(out, f.Sent)
	return out
}
