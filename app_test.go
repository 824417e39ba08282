package wickeditor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"wick_editor/bridge"
	"wick_editor/terminal"
	"wick_editor/token"
	"wick_editor/wickfs"
)

func newTestServer(t *testing.T, opts ...Option) (*Server, http.Handler) {
	t.Helper()
	fsys := wickfs.NewMemFS("/ws")
	fsys.AddFile("/ws/proj/main.go", []byte("package main"))
	fsys.AddFile("/ws/.vscode/settings.yaml", []byte("workspace_path: vscode:/proj\nterminal_home: /ws/proj\n"))

	s := New(append([]Option{
		WithFileSystem(fsys),
		WithBridge(bridge.NewFake(false)),
		WithStaticPath(t.TempDir() + "/missing"),
	}, opts...)...)
	h, err := s.Handler(context.Background())
	if err != nil {
		t.Fatalf("Handler: %v", err)
	}
	t.Cleanup(s.Close)
	return s, h
}

func get(h http.Handler, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t)
	w := get(h, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var out map[string]any
	json.Unmarshal(w.Body.Bytes(), &out)
	if out["terminal"] != "builtin" || out["terminal_app"] != false {
		t.Errorf("health = %v", out)
	}
}

func TestStartupLoadsSettings(t *testing.T) {
	s, h := newTestServer(t)

	if ws, ok := s.deps.Session.Workspace(); !ok || ws.Name != "proj" {
		t.Fatalf("workspace not loaded from settings: %+v", ws)
	}
	if s.deps.Session.ActiveFile() != "main.go" {
		t.Errorf("active file = %q", s.deps.Session.ActiveFile())
	}
	if got := s.deps.Terminal.Workdir(); got != "/ws/proj" {
		t.Errorf("terminal workdir = %q", got)
	}
	lines := s.deps.Terminal.Transcript().Lines()
	if len(lines) != 1 || lines[0].Text != terminal.BannerUnavailable {
		t.Errorf("banner = %+v", lines)
	}

	w := get(h, "/api/session", "")
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), `"active_file":"main.go"`) {
		t.Errorf("session = %d %s", w.Code, w.Body.String())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, h := newTestServer(t)
	w := get(h, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}

func TestAPIAuth(t *testing.T) {
	_, h := newTestServer(t, WithAPISecret("s3cret"))

	tok, err := token.Issue([]byte("s3cret"), "phone", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	wrong, _ := token.Issue([]byte("other"), "phone", time.Minute)

	tests := []struct {
		name   string
		auth   string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + wrong, http.StatusUnauthorized},
		{"valid", "Bearer " + tok, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if w := get(h, "/api/settings", tt.auth); w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
		})
	}

	t.Run("query token", func(t *testing.T) {
		if w := get(h, "/api/terminal?access_token="+tok, ""); w.Code != http.StatusOK {
			t.Errorf("status = %d", w.Code)
		}
	})

	t.Run("health stays open", func(t *testing.T) {
		if w := get(h, "/health", ""); w.Code != http.StatusOK {
			t.Errorf("status = %d", w.Code)
		}
	})
}

func TestResolveUser(t *testing.T) {
	var got string
	h := authMiddleware(nil, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = ResolveUser(r)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	if got != "local" {
		t.Errorf("user = %q", got)
	}
}

func TestLoadAppConfig(t *testing.T) {
	t.Setenv("PORT", "9100")
	t.Setenv("WORKSPACE_ROOT", "/sdcard/code")
	t.Setenv("TERMINAL_MODE", "builtin")
	t.Setenv("BRIDGE_URL", "")

	cfg, err := LoadAppConfig([]string{"-host", "127.0.0.1"})
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Host != "127.0.0.1" || cfg.Port != 9100 || cfg.WorkspaceRoot != "/sdcard/code" || cfg.TerminalMode != terminal.ModeBuiltin {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Run("flag overrides env", func(t *testing.T) {
		cfg, err := LoadAppConfig([]string{"-port", "7000", "-terminal-mode", "external"})
		if err != nil {
			t.Fatal(err)
		}
		if cfg.Port != 7000 || cfg.TerminalMode != terminal.ModeExternal {
			t.Errorf("cfg = %+v", cfg)
		}
	})

	t.Run("bad mode", func(t *testing.T) {
		if _, err := LoadAppConfig([]string{"-terminal-mode", "shell"}); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("bridge needs secret", func(t *testing.T) {
		t.Setenv("BRIDGE_URL", "ws://127.0.0.1:9090/bridge")
		t.Setenv("BRIDGE_SECRET", "")
		if _, err := LoadAppConfig(nil); err == nil {
			t.Error("expected error")
		}
	})
}

func TestSettingsResource(t *testing.T) {
	tests := map[string]wickfs.Resource{
		".vscode/settings.yaml":   wickfs.Workspace(".vscode/settings.yaml"),
		"/etc/wick/settings.yaml": wickfs.File("/etc/wick/settings.yaml"),
		"vscode:/s.yaml":          {Scheme: wickfs.SchemeWorkspace, Path: "/s.yaml"},
	}
	for in, want := range tests {
		if got := settingsResource(in); got != want {
			t.Errorf("settingsResource(%q) = %+v, want %+v", in, got, want)
		}
	}
}
