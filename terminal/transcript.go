package terminal

import (
	"sync"
	"time"
)

// Kind classifies a transcript line.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindWarning Kind = "warning"
	KindError   Kind = "error"
	KindCommand Kind = "command"
)

// Line is one transcript entry, stamped when appended.
type Line struct {
	Kind Kind      `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Change types published to subscribers.
const (
	ChangeAppend = "append"
	ChangeClear  = "clear"
)

// Change describes one transcript mutation.
type Change struct {
	Type string `json:"type"`
	Line *Line  `json:"line,omitempty"`
}

// Transcript is an append-only list of lines that can be cleared as a whole.
// Subscribers receive every change; slow subscribers miss changes rather
// than block appends.
type Transcript struct {
	mu    sync.Mutex
	lines []Line
	clock func() time.Time
	subs  map[chan Change]struct{}
}

// NewTranscript creates an empty transcript. A nil clock uses time.Now.
func NewTranscript(clock func() time.Time) *Transcript {
	if clock == nil {
		clock = time.Now
	}
	return &Transcript{
		clock: clock,
		subs:  make(map[chan Change]struct{}),
	}
}

// Append adds a line and returns it.
func (t *Transcript) Append(kind Kind, text string) Line {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := Line{Kind: kind, Text: text, At: t.clock()}
	t.lines = append(t.lines, l)
	t.publish(Change{Type: ChangeAppend, Line: &l})
	return l
}

// Clear removes every line.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = nil
	t.publish(Change{Type: ChangeClear})
}

// Lines returns a copy of the current lines.
func (t *Transcript) Lines() []Line {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Line, len(t.lines))
	copy(out, t.lines)
	return out
}

// Len returns the number of lines.
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.lines)
}

// Subscribe returns a channel that receives transcript changes.
func (t *Transcript) Subscribe() chan Change {
	ch := make(chan Change, 64)
	t.mu.Lock()
	t.subs[ch] = struct{}{}
	t.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel.
func (t *Transcript) Unsubscribe(ch chan Change) {
	t.mu.Lock()
	delete(t.subs, ch)
	t.mu.Unlock()
}

// publish must be called with t.mu held.
func (t *Transcript) publish(c Change) {
	for ch := range t.subs {
		select {
		case ch <- c:
		default:
			// Drop if buffer full
		}
	}
}
