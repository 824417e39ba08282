package extctx

import (
	"bytes"
	"path/filepath"
	"reflect"
	"testing"
)

func TestContextPaths(t *testing.T) {
	c, err := New("/ext/acme", "/data/proj")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct{ name, got, want string }{
		{"storage", c.StoragePath(), filepath.Join("/data/proj", ".vscode")},
		{"global storage", c.GlobalStoragePath(), filepath.Join("/data/proj", ".vscode", "globalStorage")},
		{"logs", c.LogPath(), filepath.Join("/data/proj", ".vscode", "logs")},
		{"workspace file", c.WorkspaceFile(), filepath.Join("/data/proj", "workspace.code-workspace")},
		{"absolute", c.AsAbsolutePath("media/icon.png"), filepath.Join("/ext/acme", "media/icon.png")},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
		}
	}

	folders := c.WorkspaceFolders()
	if len(folders) != 1 || folders[0] != (WorkspaceFolder{Path: "/data/proj", Name: "proj"}) {
		t.Errorf("folders = %+v", folders)
	}
}

func TestStateIsStable(t *testing.T) {
	c, _ := New("/ext", "/ws")
	c.WorkspaceState().Update("k", 1)
	if got := c.WorkspaceState().Get("k", nil); got != 1 {
		t.Errorf("workspace state lost value: %v", got)
	}
	if c.GlobalState() != c.GlobalState() {
		t.Error("global state must be the same instance")
	}
	if c.GlobalState().Get("k", "none") != "none" {
		t.Error("global and workspace state must be separate")
	}
}

func TestMemento(t *testing.T) {
	m := NewMemento()
	m.Update("b", "2")
	m.Update("a", "1")
	m.Update("b", "3")

	if !reflect.DeepEqual(m.Keys(), []string{"b", "a"}) {
		t.Errorf("keys = %v", m.Keys())
	}
	if m.Get("b", nil) != "3" {
		t.Errorf("b = %v", m.Get("b", nil))
	}
	m.Update("b", nil)
	if m.Get("b", "gone") != "gone" || !reflect.DeepEqual(m.Keys(), []string{"a"}) {
		t.Errorf("after delete: keys = %v", m.Keys())
	}
}

func TestSecretStorage(t *testing.T) {
	s, err := NewSecretStorage()
	if err != nil {
		t.Fatal(err)
	}

	if err := s.Store("token", "hunter2"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := s.Get("token")
	if err != nil || !ok || v != "hunter2" {
		t.Fatalf("Get = %q, %v, %v", v, ok, err)
	}

	t.Run("sealed at rest", func(t *testing.T) {
		if bytes.Contains(s.sealed["token"], []byte("hunter2")) {
			t.Error("plaintext stored")
		}
	})

	t.Run("bound to name", func(t *testing.T) {
		s.sealed["other"] = s.sealed["token"]
		if _, _, err := s.Get("other"); err == nil {
			t.Error("expected open to fail under a different name")
		}
		s.Delete("other")
	})

	t.Run("missing", func(t *testing.T) {
		if _, ok, err := s.Get("nope"); ok || err != nil {
			t.Errorf("Get(nope) = %v, %v", ok, err)
		}
	})

	s.Delete("token")
	if _, ok, _ := s.Get("token"); ok {
		t.Error("expected deleted")
	}
}
