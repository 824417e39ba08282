package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(zap.NewNop()) })

	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/session", nil))

	entries := logs.FilterMessage("request completed").All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["path"] != "/api/session" || fields["status"] != int64(http.StatusTeapot) || fields["size"] != int64(15) {
		t.Errorf("fields = %v", fields)
	}
}

func TestMiddlewareFlushes(t *testing.T) {
	Set(zap.NewNop())
	rec := httptest.NewRecorder()
	Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("wrapped writer lost http.Flusher")
		}
		f.Flush()
	})).ServeHTTP(rec, httptest.NewRequest("GET", "/api/terminal/events", nil))
	if !rec.Flushed {
		t.Error("flush not forwarded")
	}
}

func TestSetLevel(t *testing.T) {
	SetLevel("debug")
	if globalLevel.Level() != zapcore.DebugLevel {
		t.Errorf("level = %v", globalLevel.Level())
	}
	SetLevel("nonsense")
	if globalLevel.Level() != zapcore.DebugLevel {
		t.Error("invalid level should be ignored")
	}
	SetLevel("info")
}
