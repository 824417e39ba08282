package backend

import (
	"context"
	"sync"
)

// Fake is a deterministic table-driven Backend for tests.
type Fake struct {
	mu sync.Mutex

	id      string
	avail   bool
	results map[string]Result
	errs    map[string]error
	calls   []Request

	// Gate, when set, holds every Execute until a value is received.
	Gate chan struct{}
}

var (
	_ Backend = (*Fake)(nil)
	_ Prober  = (*Fake)(nil)
)

// NewFake creates a fake with the given id that probes as available.
func NewFake(id string) *Fake {
	return &Fake{
		id:      id,
		avail:   true,
		results: make(map[string]Result),
		errs:    make(map[string]error),
	}
}

func (f *Fake) ID() string { return f.id }

// On scripts the result for command.
func (f *Fake) On(command string, r Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[command] = r
	return f
}

// Fail scripts an error for command.
func (f *Fake) Fail(command string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[command] = err
	return f
}

// SetAvailable sets what Probe reports.
func (f *Fake) SetAvailable(v bool) {
	f.mu.Lock()
	f.avail = v
	f.mu.Unlock()
}

func (f *Fake) Probe(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.avail, nil
}

// Execute records the call and returns the scripted outcome. Unscripted
// commands echo themselves back.
func (f *Fake) Execute(ctx context.Context, req Request) (Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	gate := f.Gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.errs[req.Command]; ok {
		return Result{}, err
	}
	if r, ok := f.results[req.Command]; ok {
		return r, nil
	}
	return Result{Output: req.Command}, nil
}

// Calls returns a copy of the recorded requests.
func (f *Fake) Calls() []Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Request, len(f.calls))
	copy(out, f.calls)
	return out
}
