package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/entrhq/tabwire/pkg/types"
)

// Transport opens connections to the server.
type Transport interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// Conn is one open connection. Write must be safe for concurrent use; Read is
// only called from a single goroutine.
type Conn interface {
	// Read blocks for the next frame. An error wrapping ErrMalformedFrame leaves
	// the connection usable; any other error means it is gone.
	Read(ctx context.Context) (types.Frame, error)
	Write(ctx context.Context, f types.Frame) error
	Close() error
}

// WebSocketTransport dials text-frame websocket connections carrying one JSON
// frame per message.
type WebSocketTransport struct {
	// Header is sent with the opening handshake.
	Header http.Header
	// ReadLimit caps the size of one inbound message. Zero keeps the library default.
	ReadLimit int64
}

// Dial implements Transport.
func (t WebSocketTransport) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPHeader: t.Header})
	if err != nil {
		return nil, fmt.Errorf("websocket dial %s: %w", url, err)
	}
	if t.ReadLimit > 0 {
		c.SetReadLimit(t.ReadLimit)
	}
	return &wsConn{conn: c}, nil
}

type wsConn struct {
	conn *websocket.Conn
}

func (c *wsConn) Read(ctx context.Context) (types.Frame, error) {
	typ, data, err := c.conn.Read(ctx)
	if err != nil {
		return types.Frame{}, err
	}
	if typ != websocket.MessageText {
		return types.Frame{}, fmt.Errorf("%w: unexpected %v message", ErrMalformedFrame, typ)
	}
	var f types.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return types.Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if f.Event == "" {
		return types.Frame{}, fmt.Errorf("%w: missing event name", ErrMalformedFrame)
	}
	return f, nil
}

func (c *wsConn) Write(ctx context.Context, f types.Frame) error {
	return wsjson.Write(ctx, c.conn, f)
}

func (c *wsConn) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "closing")
}
