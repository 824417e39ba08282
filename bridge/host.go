package bridge

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wick_editor/logging"
	"wick_editor/token"
)

// Runner does the real work behind a Host.
type Runner interface {
	Probe(ctx context.Context) bool
	Launch(ctx context.Context) error
	Run(ctx context.Context, command, dir string) (output string, exitCode int, err error)
	Open(ctx context.Context, dir string) error
	Version(ctx context.Context) (string, error)
	Stop(ctx context.Context) error
}

// Host serves the bridge protocol over websocket connections.
// Requests on a connection are handled sequentially; connections are
// independent of each other.
type Host struct {
	runner   Runner
	secret   []byte
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns map[*hostConn]struct{}
}

type hostConn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

func (c *hostConn) send(f Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(f)
}

// NewHost creates a host that delegates to runner. A nil or empty secret
// disables token validation.
func NewHost(runner Runner, secret []byte) *Host {
	return &Host{
		runner: runner,
		secret: secret,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		conns: make(map[*hostConn]struct{}),
	}
}

// ServeHTTP authenticates and upgrades the request, then serves frames
// until the connection closes.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if len(h.secret) > 0 {
		tok, ok := token.FromHeader(r.Header.Get("Authorization"))
		if !ok {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		if _, err := token.Validate(h.secret, tok); err != nil {
			http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
			return
		}
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Warn("bridge upgrade failed", zap.Error(err))
		return
	}
	conn := &hostConn{ws: ws}
	h.add(conn)
	defer h.remove(conn)

	logging.Info("bridge client connected", zap.String("remote", r.RemoteAddr))
	h.serve(r.Context(), conn)
}

func (h *Host) add(c *hostConn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Host) remove(c *hostConn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
	c.ws.Close()
}

func (h *Host) serve(ctx context.Context, c *hostConn) {
	for {
		var req Request
		if err := c.ws.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logging.Debug("bridge read ended", zap.Error(err))
			}
			return
		}

		resp := h.handle(ctx, req)
		if err := c.send(resp); err != nil {
			return
		}
		if req.Op == OpExec && resp.OK {
			h.broadcast(Event{
				Command:  req.Cmd,
				Dir:      req.Dir,
				ExitCode: resp.ExitCode,
				At:       time.Now(),
			})
		}
	}
}

func (h *Host) handle(ctx context.Context, req Request) Frame {
	resp := Frame{Type: FrameResponse, ID: req.ID}
	switch req.Op {
	case OpProbe:
		resp.OK = true
		resp.Available = h.runner.Probe(ctx)
	case OpLaunch:
		if err := h.runner.Launch(ctx); err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.OK = true
	case OpExec:
		if req.Cmd == "" {
			resp.Error = "empty command"
			resp.ExitCode = 1
			return resp
		}
		out, code, err := h.runner.Run(ctx, req.Cmd, req.Dir)
		if err != nil {
			resp.Error = err.Error()
			resp.ExitCode = code
			return resp
		}
		resp.OK = true
		resp.Output = out
		resp.ExitCode = code
	case OpOpen:
		if err := h.runner.Open(ctx, req.Dir); err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.OK = true
	case OpVersion:
		v, err := h.runner.Version(ctx)
		if err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.OK = true
		resp.Version = v
	case OpStop:
		if err := h.runner.Stop(ctx); err != nil {
			resp.Error = err.Error()
			return resp
		}
		resp.OK = true
	default:
		resp.Error = "unknown op: " + req.Op
	}
	return resp
}

// broadcast sends ev to every connected client. Failed writes are ignored;
// the reader side of that connection will notice and clean up.
func (h *Host) broadcast(ev Event) {
	h.mu.Lock()
	conns := make([]*hostConn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		c.send(Frame{Type: FrameEvent, Event: &ev})
	}
}
