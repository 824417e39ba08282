package bridge

import (
	"context"
	"errors"
	"net/http/httptest"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"
)

type scriptRunner struct {
	mu       sync.Mutex
	avail    bool
	outputs  map[string]string
	runErr   error
	launched int
	stopped  int
	opened   []string
	runs     []string
	version  string
}

func (r *scriptRunner) Probe(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.avail
}

func (r *scriptRunner) Launch(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.launched++
	return nil
}

func (r *scriptRunner) Run(ctx context.Context, command, dir string) (string, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, dir+"|"+command)
	if r.runErr != nil {
		return "", 1, r.runErr
	}
	return r.outputs[command], 0, nil
}

func (r *scriptRunner) Open(ctx context.Context, dir string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.opened = append(r.opened, dir)
	return nil
}

func (r *scriptRunner) Version(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.version == "" {
		return "", errors.New("no version")
	}
	return r.version, nil
}

func (r *scriptRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopped++
	return nil
}

func startHost(t *testing.T, runner Runner, secret []byte) string {
	t.Helper()
	srv := httptest.NewServer(NewHost(runner, secret))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestClientHostRoundTrip(t *testing.T) {
	secret := []byte("bridge-secret")
	runner := &scriptRunner{avail: true, outputs: map[string]string{"ls": "a.txt  b.txt"}, version: "0.118.0"}
	url := startHost(t, runner, secret)

	c := NewClient(url, secret)
	defer c.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	t.Run("available", func(t *testing.T) {
		ok, err := c.Available(ctx)
		if err != nil {
			t.Fatalf("Available: %v", err)
		}
		if !ok {
			t.Error("expected available")
		}
	})

	t.Run("send", func(t *testing.T) {
		out, err := c.Send(ctx, "ls", "/data/home")
		if err != nil {
			t.Fatalf("Send: %v", err)
		}
		if out != "a.txt  b.txt" {
			t.Errorf("output = %q", out)
		}
		runner.mu.Lock()
		got := runner.runs[len(runner.runs)-1]
		runner.mu.Unlock()
		if got != "/data/home|ls" {
			t.Errorf("runner saw %q", got)
		}
	})

	t.Run("event after exec", func(t *testing.T) {
		select {
		case ev := <-c.Events():
			if ev.Command != "ls" || ev.Dir != "/data/home" {
				t.Errorf("event = %+v", ev)
			}
		case <-ctx.Done():
			t.Fatal("no event received")
		}
	})

	t.Run("launch and open", func(t *testing.T) {
		if err := c.Launch(ctx); err != nil {
			t.Fatalf("Launch: %v", err)
		}
		if err := c.OpenAt(ctx, "/data/proj"); err != nil {
			t.Fatalf("OpenAt: %v", err)
		}
		runner.mu.Lock()
		defer runner.mu.Unlock()
		if runner.launched != 1 {
			t.Errorf("launched = %d", runner.launched)
		}
		if len(runner.opened) != 1 || runner.opened[0] != "/data/proj" {
			t.Errorf("opened = %v", runner.opened)
		}
	})

	t.Run("version", func(t *testing.T) {
		v, err := c.Version(ctx)
		if err != nil {
			t.Fatalf("Version: %v", err)
		}
		if v != "0.118.0" {
			t.Errorf("version = %q", v)
		}
	})

	t.Run("stop", func(t *testing.T) {
		for i := 0; i < 2; i++ {
			if err := c.Stop(ctx); err != nil {
				t.Fatalf("Stop %d: %v", i+1, err)
			}
		}
		runner.mu.Lock()
		defer runner.mu.Unlock()
		if runner.stopped != 2 {
			t.Errorf("stopped = %d", runner.stopped)
		}
	})
}

func TestClientVersionError(t *testing.T) {
	c := NewClient(startHost(t, &scriptRunner{avail: true}, nil), nil)
	defer c.Close()

	_, err := c.Version(context.Background())
	if err == nil || !strings.Contains(err.Error(), "no version") {
		t.Fatalf("expected runner error, got %v", err)
	}
}

func TestClientSendError(t *testing.T) {
	runner := &scriptRunner{avail: true, runErr: errors.New("boom")}
	c := NewClient(startHost(t, runner, nil), nil)
	defer c.Close()

	_, err := c.Send(context.Background(), "false", "/")
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected runner error, got %v", err)
	}
}

func TestClientUnavailable(t *testing.T) {
	t.Run("host reports unavailable", func(t *testing.T) {
		c := NewClient(startHost(t, &scriptRunner{}, nil), nil)
		defer c.Close()
		ok, err := c.Available(context.Background())
		if err != nil || ok {
			t.Errorf("Available = %v, %v", ok, err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		url := startHost(t, &scriptRunner{avail: true}, []byte("right"))
		c := NewClient(url, []byte("wrong"))
		ok, err := c.Available(context.Background())
		if err != nil || ok {
			t.Errorf("Available = %v, %v", ok, err)
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(NewHost(&scriptRunner{avail: true}, nil))
		url := "ws" + strings.TrimPrefix(srv.URL, "http")
		srv.Close()

		c := NewClient(url, nil)
		ok, err := c.Available(context.Background())
		if err != nil || ok {
			t.Errorf("Available = %v, %v", ok, err)
		}
		if _, err := c.Send(context.Background(), "ls", "/"); err == nil {
			t.Error("expected Send to fail")
		}
	})
}

func TestFake(t *testing.T) {
	f := NewFake(true)
	f.Outputs["pwd"] = "/data/home"
	ctx := context.Background()

	if ok, _ := f.Available(ctx); !ok {
		t.Error("expected available")
	}
	if out, _ := f.Send(ctx, "pwd", "/x"); out != "/data/home" {
		t.Errorf("pwd = %q", out)
	}
	if out, _ := f.Send(ctx, "make", "/x"); out != DefaultFakeOutput {
		t.Errorf("default output = %q", out)
	}
	if got := f.SentCommands(); len(got) != 2 || got[1].Command != "make" {
		t.Errorf("sent = %+v", got)
	}

	f.AppVersion = "0.118.0"
	if v, _ := f.Version(ctx); v != "0.118.0" {
		t.Errorf("version = %q", v)
	}
	f.Stop(ctx)
	if f.Stopped != 1 {
		t.Errorf("stopped = %d", f.Stopped)
	}

	f.Emit("make")
	if ev := <-f.Events(); ev.Command != "make" {
		t.Errorf("event = %+v", ev)
	}
}

func TestShellQuote(t *testing.T) {
	tests := []struct{ in, want string }{
		{"/data/home", "'/data/home'"},
		{"it's", `'it'\''s'`},
		{"", "''"},
	}
	for _, tt := range tests {
		if got := shellQuote(tt.in); got != tt.want {
			t.Errorf("shellQuote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestPTYRunnerBuildResult(t *testing.T) {
	r := NewPTYRunner(t.TempDir(), time.Second, 10)
	ctx := context.Background()

	out, code, err := r.buildResult("a\r\nb\r\n", nil, ctx)
	if err != nil || code != 0 || out != "a\nb" {
		t.Errorf("got %q, %d, %v", out, code, err)
	}

	out, _, _ = r.buildResult(strings.Repeat("x", 20), nil, ctx)
	if !strings.HasPrefix(out, strings.Repeat("x", 10)+"\n\n... Output truncated at 10 bytes.") {
		t.Errorf("truncated output = %q", out)
	}

	expired, cancel := context.WithTimeout(ctx, 0)
	defer cancel()
	<-expired.Done()
	_, code, err = r.buildResult("", errors.New("signal: killed"), expired)
	if code != 124 || err == nil || !strings.Contains(err.Error(), "timed out") {
		t.Errorf("timeout: %d, %v", code, err)
	}
}

func TestPTYRunnerRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := t.TempDir()
	r := NewPTYRunner(dir, 5*time.Second, 0)

	out, code, err := r.Run(context.Background(), "echo hello", "")
	if err != nil {
		t.Skipf("pty unavailable: %v", err)
	}
	if code != 0 || out != "hello" {
		t.Errorf("got %q, %d", out, code)
	}

	out, code, err = r.Run(context.Background(), "exit 3", dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if code != 3 || !strings.HasSuffix(out, "Exit code: 3") {
		t.Errorf("got %q, %d", out, code)
	}
}

func TestPTYRunnerVersionAndStop(t *testing.T) {
	t.Setenv("SHELL", "sh")
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	r := NewPTYRunner(t.TempDir(), time.Second, 0)

	v, err := r.Version(context.Background())
	if err != nil || v == "" {
		t.Errorf("Version = %q, %v", v, err)
	}
	if err := r.Stop(context.Background()); err != nil {
		t.Errorf("Stop without session: %v", err)
	}
}
