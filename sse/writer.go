// Package sse streams editor and terminal changes as Server-Sent Events.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// Writer sends numbered Server-Sent Events to an http.ResponseWriter.
// Each event carries an increasing id so a client can tell when its
// subscription dropped changes.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	nextID  uint64
}

// NewWriter creates a new SSE writer and tells the client to reconnect after
// retryMillis. Returns nil if the ResponseWriter doesn't support http.Flusher.
func NewWriter(w http.ResponseWriter, retryMillis int) *Writer {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // nginx
	if retryMillis > 0 {
		fmt.Fprintf(w, "retry: %d\n\n", retryMillis)
	}
	flusher.Flush()

	return &Writer{w: w, flusher: flusher, nextID: 1}
}

// SendEvent writes a named event with JSON data.
func (s *Writer) SendEvent(event string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal SSE data: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.nextID, event, jsonData); err != nil {
		return err
	}
	s.nextID++
	s.flusher.Flush()
	return nil
}

// SendComment writes an SSE comment (for keep-alive pings).
func (s *Writer) SendComment(text string) {
	fmt.Fprintf(s.w, ": %s\n\n", text)
	s.flusher.Flush()
}
