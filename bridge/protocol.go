package bridge

// Protocol (JSON text frames over one websocket):
//
//	Request:  {"id":"…","op":"exec","cmd":"ls","dir":"/data/home"}
//	Response: {"type":"response","id":"…","ok":true,"output":"…","exit_code":0}
//	Event:    {"type":"event","event":{"command":"ls","dir":"/data/home","exit_code":0,"at":"…"}}
//
// Requests on one connection are answered in order. Events may be interleaved
// with responses at any point.

// Operations.
const (
	OpProbe   = "probe"
	OpLaunch  = "launch"
	OpExec    = "exec"
	OpOpen    = "open"
	OpVersion = "version"
	OpStop    = "stop"
)

// Frame types.
const (
	FrameResponse = "response"
	FrameEvent    = "event"
)

// Request is sent by the client.
type Request struct {
	ID  string `json:"id"`
	Op  string `json:"op"`
	Cmd string `json:"cmd,omitempty"`
	Dir string `json:"dir,omitempty"`
}

// Frame is sent by the host.
type Frame struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	OK        bool   `json:"ok"`
	Output    string `json:"output,omitempty"`
	ExitCode  int    `json:"exit_code"`
	Available bool   `json:"available,omitempty"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
	Event     *Event `json:"event,omitempty"`
}
