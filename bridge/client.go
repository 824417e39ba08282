package bridge

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"wick_editor/logging"
	"wick_editor/token"
)

const (
	tokenTTL     = 10 * time.Minute
	dialTimeout  = 5 * time.Second
	eventBufSize = 64
)

// Client implements Bridge over a websocket connection to a Host.
// It connects lazily and reconnects on the next call after a failure.
// It is safe for concurrent use.
type Client struct {
	url    string
	secret []byte
	dialer *websocket.Dialer

	mu      sync.Mutex
	conn    *websocket.Conn
	pending map[string]chan Frame

	writeMu sync.Mutex
	events  chan Event
}

// errUnreachable wraps dial failures.
var errUnreachable = errors.New("bridge unreachable")

// Compile-time check that Client satisfies Bridge.
var _ Bridge = (*Client)(nil)

// NewClient creates a client for the host at url (ws:// or wss://).
// A nil secret sends no Authorization header.
func NewClient(url string, secret []byte) *Client {
	return &Client{
		url:     url,
		secret:  secret,
		dialer:  &websocket.Dialer{HandshakeTimeout: dialTimeout},
		pending: make(map[string]chan Frame),
		events:  make(chan Event, eventBufSize),
	}
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil {
		return c.conn, nil
	}

	header := http.Header{}
	if len(c.secret) > 0 {
		tok, err := token.Issue(c.secret, "wick-editor", tokenTTL)
		if err != nil {
			return nil, fmt.Errorf("bridge token: %w", err)
		}
		header.Set("Authorization", "Bearer "+tok)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.url, header)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", errUnreachable, c.url, err)
	}
	c.conn = conn
	go c.readLoop(conn)

	logging.Info("connected to terminal bridge", zap.String("url", c.url))
	return conn, nil
}

// readLoop routes responses to waiting calls and events to the event channel.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			c.drop(conn, err)
			return
		}
		switch f.Type {
		case FrameEvent:
			if f.Event == nil {
				continue
			}
			select {
			case c.events <- *f.Event:
			default:
				// Drop if buffer full
			}
		default:
			c.mu.Lock()
			ch, ok := c.pending[f.ID]
			delete(c.pending, f.ID)
			c.mu.Unlock()
			if ok {
				ch <- f
			}
		}
	}
}

// drop discards a broken connection and fails every pending call.
func (c *Client) drop(conn *websocket.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != conn {
		return
	}
	conn.Close()
	c.conn = nil
	for id, ch := range c.pending {
		close(ch)
		delete(c.pending, id)
	}
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		logging.Warn("terminal bridge connection lost", zap.Error(err))
	}
}

func (c *Client) call(ctx context.Context, req Request) (Frame, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return Frame{}, err
	}

	req.ID = uuid.NewString()
	ch := make(chan Frame, 1)
	c.mu.Lock()
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err = conn.WriteJSON(req)
	c.writeMu.Unlock()
	if err != nil {
		c.drop(conn, err)
		return Frame{}, fmt.Errorf("bridge send: %w", err)
	}

	select {
	case f, ok := <-ch:
		if !ok {
			return Frame{}, ErrClosed
		}
		return f, nil
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
		return Frame{}, ctx.Err()
	}
}

func frameError(op string, f Frame) error {
	msg := f.Error
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Errorf("bridge %s: %s", op, msg)
}

// Available reports whether the host is reachable and its terminal usable.
// An unreachable host is "not available", not an error.
func (c *Client) Available(ctx context.Context) (bool, error) {
	f, err := c.call(ctx, Request{Op: OpProbe})
	if err != nil {
		if errors.Is(err, errUnreachable) || errors.Is(err, ErrClosed) {
			logging.Debug("terminal bridge unreachable", zap.Error(err))
			return false, nil
		}
		return false, err
	}
	return f.OK && f.Available, nil
}

// Launch asks the host to start its terminal session.
func (c *Client) Launch(ctx context.Context) error {
	f, err := c.call(ctx, Request{Op: OpLaunch})
	if err != nil {
		return err
	}
	if !f.OK {
		return frameError(OpLaunch, f)
	}
	return nil
}

// Send executes command in dir and returns the host's output unchanged.
func (c *Client) Send(ctx context.Context, command, dir string) (string, error) {
	f, err := c.call(ctx, Request{Op: OpExec, Cmd: command, Dir: dir})
	if err != nil {
		return "", err
	}
	if !f.OK {
		return "", frameError(OpExec, f)
	}
	return f.Output, nil
}

// OpenAt asks the host to move its terminal session to dir.
func (c *Client) OpenAt(ctx context.Context, dir string) error {
	f, err := c.call(ctx, Request{Op: OpOpen, Dir: dir})
	if err != nil {
		return err
	}
	if !f.OK {
		return frameError(OpOpen, f)
	}
	return nil
}

// Version asks the host for its terminal's version string.
func (c *Client) Version(ctx context.Context) (string, error) {
	f, err := c.call(ctx, Request{Op: OpVersion})
	if err != nil {
		return "", err
	}
	if !f.OK {
		return "", frameError(OpVersion, f)
	}
	return f.Version, nil
}

// Stop asks the host to end its terminal session.
func (c *Client) Stop(ctx context.Context) error {
	f, err := c.call(ctx, Request{Op: OpStop})
	if err != nil {
		return err
	}
	if !f.OK {
		return frameError(OpStop, f)
	}
	return nil
}

// Events returns the command-executed notification stream.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Close closes the connection. Later calls reconnect.
func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return nil
	}
	c.writeMu.Lock()
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	c.drop(conn, &websocket.CloseError{Code: websocket.CloseNormalClosure})
	return nil
}
