package handlers

import "sync"

// Event is a session change notification relayed over SSE.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Session event types.
const (
	EventWorkspaceLoaded  = "workspace_loaded"
	EventFileOpened       = "file_opened"
	EventFileSaved        = "file_saved"
	EventExtensionChanged = "extension_changed"
	EventSettingsChanged  = "settings_changed"
)

// EventBus is a simple pub/sub for broadcasting session events.
type EventBus struct {
	mu      sync.Mutex
	clients map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		clients: make(map[chan Event]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast events.
func (eb *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	eb.mu.Lock()
	eb.clients[ch] = struct{}{}
	eb.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel.
func (eb *EventBus) Unsubscribe(ch chan Event) {
	eb.mu.Lock()
	delete(eb.clients, ch)
	eb.mu.Unlock()
}

// Broadcast sends an event to all subscribers.
func (eb *EventBus) Broadcast(typ string, data any) {
	ev := Event{Type: typ, Data: data}
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for ch := range eb.clients {
		select {
		case ch <- ev:
		default:
			// Drop if buffer full
		}
	}
}
