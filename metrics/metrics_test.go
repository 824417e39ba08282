package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestRecorders(t *testing.T) {
	RecordCommand("builtin", 5*time.Millisecond, true)
	RecordCommand("terminal-app", time.Millisecond, false)
	RecordFSOperation("write", errors.New("full"))
	RecordFileSave(true)
	SetOpenFiles(3)
	RecordBridgeEvent()

	out := scrape(t)
	for _, want := range []string{
		`wick_editor_commands_total{backend="builtin",status="success"}`,
		`wick_editor_commands_total{backend="terminal-app",status="error"}`,
		`wick_editor_command_duration_seconds_count{backend="builtin"}`,
		`wick_editor_fs_operations_total{op="write",status="error"}`,
		`wick_editor_file_saves_total{status="success"}`,
		"wick_editor_open_files 3",
		"wick_editor_bridge_events_total",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}
