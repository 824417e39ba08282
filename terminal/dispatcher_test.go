package terminal

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"wick_editor/backend"
	"wick_editor/bridge"
)

var fixedTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func newDispatcher(t *testing.T, opts Options) *Dispatcher {
	t.Helper()
	if opts.Builtin == nil {
		opts.Builtin = backend.NewBuiltin(nil, backend.WithClock(fixedClock))
	}
	if opts.Clock == nil {
		opts.Clock = fixedClock
	}
	d, err := New(context.Background(), opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// after returns the lines appended after the first n.
func after(d *Dispatcher, n int) []Line {
	return d.Transcript().Lines()[n:]
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for condition")
		}
		time.Sleep(time.Millisecond)
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeAuto, "auto": ModeAuto, "External": ModeExternal, " builtin ": ModeBuiltin} {
		got, err := ParseMode(in)
		if err != nil || got != want {
			t.Errorf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseMode("termux"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestNew_Banner(t *testing.T) {
	t.Run("external available", func(t *testing.T) {
		d := newDispatcher(t, Options{
			External: backend.NewFake("terminal-app"),
			Workdir:  "/data/home",
		})
		lines := d.Transcript().Lines()
		if len(lines) != 2 {
			t.Fatalf("expected 2 banner lines, got %+v", lines)
		}
		if lines[0].Kind != KindSuccess || lines[0].Text != BannerAvailable {
			t.Errorf("line 0 = %+v", lines[0])
		}
		if lines[1].Kind != KindInfo || lines[1].Text != "Current directory: /data/home" {
			t.Errorf("line 1 = %+v", lines[1])
		}
		if d.Backend().ID() != "terminal-app" {
			t.Errorf("selected %q", d.Backend().ID())
		}
	})

	t.Run("external unavailable", func(t *testing.T) {
		ext := backend.NewFake("terminal-app")
		ext.SetAvailable(false)
		d := newDispatcher(t, Options{External: ext})
		lines := d.Transcript().Lines()
		if len(lines) != 1 || lines[0].Kind != KindWarning || lines[0].Text != BannerUnavailable {
			t.Fatalf("banner = %+v", lines)
		}
		if d.Backend().ID() != "builtin" {
			t.Errorf("selected %q", d.Backend().ID())
		}
	})

	t.Run("builtin required", func(t *testing.T) {
		if _, err := New(context.Background(), Options{}); err == nil {
			t.Fatal("expected error")
		}
	})
}

func TestExecute_Echo(t *testing.T) {
	d := newDispatcher(t, Options{})
	n := d.Transcript().Len()

	if err := d.Execute(context.Background(), "echo hello"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	got := after(d, n)
	want := []Line{
		{Kind: KindCommand, Text: "$ echo hello", At: fixedTime},
		{Kind: KindSuccess, Text: "hello", At: fixedTime},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestExecute_CommandLineKeepsRawInput(t *testing.T) {
	d := newDispatcher(t, Options{})
	n := d.Transcript().Len()

	d.Execute(context.Background(), "  echo hi  ")
	got := after(d, n)
	if got[0].Text != "$   echo hi  " || got[1].Text != "hi" {
		t.Errorf("got %+v", got)
	}
}

func TestExecute_Clear(t *testing.T) {
	d := newDispatcher(t, Options{})
	d.Execute(context.Background(), "echo one")

	if err := d.Execute(context.Background(), "clear"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if n := d.Transcript().Len(); n != 0 {
		t.Fatalf("expected empty transcript, got %+v", d.Transcript().Lines())
	}

	d.Execute(context.Background(), "echo two")
	if n := d.Transcript().Len(); n != 2 {
		t.Errorf("expected 2 lines after clear, got %d", n)
	}
}

func TestExecute_ExternalUnavailable(t *testing.T) {
	d := newDispatcher(t, Options{
		External: backend.NewBridge(bridge.NewFake(false)),
		Mode:     ModeExternal,
		Workdir:  "/data/home",
	})
	n := d.Transcript().Len()

	for _, cmd := range []string{"ls", "cd src"} {
		err := d.Execute(context.Background(), cmd)
		if !errors.Is(err, backend.ErrToolUnavailable) {
			t.Fatalf("Execute(%q): expected ErrToolUnavailable, got %v", cmd, err)
		}
	}

	got := after(d, n)
	if len(got) != 4 {
		t.Fatalf("got %+v", got)
	}
	for _, l := range []Line{got[1], got[3]} {
		if l.Kind != KindError || !strings.Contains(l.Text, "not available") {
			t.Errorf("expected tool-unavailable error line, got %+v", l)
		}
	}
	if d.Workdir() != "/data/home" {
		t.Errorf("workdir changed to %q", d.Workdir())
	}
}

func TestExecute_AutoFallsBackToBuiltin(t *testing.T) {
	d := newDispatcher(t, Options{External: backend.NewBridge(bridge.NewFake(false))})
	n := d.Transcript().Len()

	if err := d.Execute(context.Background(), "help"); err != nil {
		t.Fatal(err)
	}
	if got := after(d, n); got[1].Text != backend.HelpText {
		t.Errorf("got %+v", got)
	}
}

func TestExecute_ExternalSend(t *testing.T) {
	fb := bridge.NewFake(true)
	fb.Outputs["ls"] = "README.md  main.js"
	d := newDispatcher(t, Options{External: backend.NewBridge(fb), Workdir: "/data/home"})

	d.Execute(context.Background(), "cd src")
	d.Execute(context.Background(), "ls")

	if d.Workdir() != "/data/home/src" {
		t.Errorf("workdir = %q", d.Workdir())
	}
	sent := fb.SentCommands()
	if len(sent) != 1 || sent[0] != (bridge.SentCommand{Command: "ls", Dir: "/data/home/src"}) {
		t.Errorf("sent = %+v", sent)
	}
	lines := d.Transcript().Lines()
	if last := lines[len(lines)-1]; last.Text != "README.md  main.js" {
		t.Errorf("last line = %+v", last)
	}
}

func TestExecute_Rejected(t *testing.T) {
	d := newDispatcher(t, Options{})
	n := d.Transcript().Len()
	d.SetInput("   ")

	if err := d.ExecuteInput(context.Background()); !errors.Is(err, backend.ErrCommandRejected) {
		t.Fatalf("expected ErrCommandRejected, got %v", err)
	}
	if d.Transcript().Len() != n {
		t.Error("rejected input must not touch the transcript")
	}
}

func TestExecute_FailureKeepsWorkdirAndClearsInput(t *testing.T) {
	ext := backend.NewFake("terminal-app").
		Fail("cd /x", errors.New("boom")).
		On("cd /y", backend.Result{Output: "ok", Workdir: "/y"})
	d := newDispatcher(t, Options{External: ext, Workdir: "/start"})

	d.SetInput("cd /x")
	if err := d.ExecuteInput(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if d.Workdir() != "/start" {
		t.Errorf("workdir = %q after failure", d.Workdir())
	}
	if d.Input() != "" {
		t.Errorf("input = %q after failure", d.Input())
	}
	lines := d.Transcript().Lines()
	if last := lines[len(lines)-1]; last.Kind != KindError || last.Text != "Error: boom" {
		t.Errorf("last line = %+v", last)
	}

	d.SetInput("cd /y")
	if err := d.ExecuteInput(context.Background()); err != nil {
		t.Fatal(err)
	}
	if d.Workdir() != "/y" || d.Input() != "" {
		t.Errorf("workdir = %q, input = %q", d.Workdir(), d.Input())
	}
}

func TestExecute_Ordering(t *testing.T) {
	ext := backend.NewFake("terminal-app")
	ext.Gate = make(chan struct{})
	d := newDispatcher(t, Options{External: ext})
	n := d.Transcript().Len()
	ctx := context.Background()

	errs := make(chan error, 2)
	go func() { errs <- d.Execute(ctx, "c1") }()
	waitFor(t, func() bool { return len(ext.Calls()) == 1 })
	if d.State() != StateExecuting {
		t.Errorf("state = %q while c1 in flight", d.State())
	}

	go func() { errs <- d.Execute(ctx, "c2") }()
	waitFor(t, func() bool { return d.Snapshot().Queued == 1 })
	if len(ext.Calls()) != 1 {
		t.Fatal("c2 must not start while c1 is in flight")
	}

	close(ext.Gate)
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatal(err)
		}
	}

	var texts []string
	for _, l := range after(d, n) {
		texts = append(texts, l.Text)
	}
	if got := strings.Join(texts, "|"); got != "$ c1|c1|$ c2|c2" {
		t.Errorf("transcript order = %s", got)
	}
	if d.State() != StateIdle {
		t.Errorf("state = %q after completion", d.State())
	}
}

func TestRefresh(t *testing.T) {
	fb := bridge.NewFake(false)
	d := newDispatcher(t, Options{External: backend.NewBridge(fb)})
	if d.Backend().ID() != "builtin" {
		t.Fatalf("selected %q", d.Backend().ID())
	}

	fb.SetAvailable(true)
	if !d.Refresh(context.Background()) {
		t.Fatal("expected available after refresh")
	}
	if d.Backend().ID() != "terminal-app" {
		t.Errorf("selected %q after refresh", d.Backend().ID())
	}
	if !d.Snapshot().Available {
		t.Error("snapshot should report available")
	}
}

func TestSnapshot_AppStatus(t *testing.T) {
	fb := bridge.NewFake(true)
	fb.AppVersion = "0.118.0"
	ext := backend.NewBridge(fb)
	d := newDispatcher(t, Options{External: ext})

	snap := d.Snapshot()
	if snap.Version != "0.118.0" || snap.Running {
		t.Fatalf("snapshot = %+v", snap)
	}
	ext.Launch(context.Background())
	if !d.Snapshot().Running {
		t.Error("expected running after launch")
	}
	ext.Stop(context.Background())
	if d.Snapshot().Running {
		t.Error("expected stopped")
	}

	t.Run("builtin only", func(t *testing.T) {
		snap := newDispatcher(t, Options{}).Snapshot()
		if snap.Version != "" || snap.Running {
			t.Errorf("snapshot = %+v", snap)
		}
	})
}

func TestModeBuiltin(t *testing.T) {
	d := newDispatcher(t, Options{External: backend.NewFake("terminal-app"), Mode: ModeBuiltin})
	if d.Backend().ID() != "builtin" {
		t.Errorf("selected %q", d.Backend().ID())
	}
}

func TestClose(t *testing.T) {
	d := newDispatcher(t, Options{})
	d.Close()
	if err := d.Execute(context.Background(), "echo x"); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
}

func TestTranscript_Subscribe(t *testing.T) {
	tr := NewTranscript(fixedClock)
	ch := tr.Subscribe()
	defer tr.Unsubscribe(ch)

	tr.Append(KindInfo, "hello")
	tr.Clear()

	c := <-ch
	if c.Type != ChangeAppend || c.Line == nil || c.Line.Text != "hello" || !c.Line.At.Equal(fixedTime) {
		t.Errorf("first change = %+v", c)
	}
	if c := <-ch; c.Type != ChangeClear {
		t.Errorf("second change = %+v", c)
	}
	if tr.Len() != 0 {
		t.Error("expected empty transcript")
	}
}
