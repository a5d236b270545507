package ws

import (
	"sync"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
)

// Feed subscribers that cannot keep up are dropped rather than allowed to
// stall the broadcast loop.
const sendTimeout = 10 * time.Second

// Client adapts a websocket connection to the report feed.
type Client struct {
	conn      *websocket.Conn
	log       *slog.Logger
	closeOnce sync.Once
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn, logger *slog.Logger) *Client {
	return &Client{conn: conn, log: logger}
}

// Send writes a report payload to the connection. A slow or dead peer fails
// the write deadline and the connection is torn down.
func (c *Client) Send(payload []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(sendTimeout))
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		c.log.Warn("report feed send failed", "error", err)
		c.Close()
		return err
	}
	return nil
}

// Close sends a close frame to the peer, then terminates the connection.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		_ = c.conn.Close()
	})
}
