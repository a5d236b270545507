package ws

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"log/slog"

	"github.com/gorilla/websocket"
)

func dialTestClient(t *testing.T, serve func(*Client)) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		serve(NewClient(conn, logger))
	}))
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestClientSendDeliversPayload(t *testing.T) {
	conn := dialTestClient(t, func(c *Client) {
		if err := c.Send([]byte("report")); err != nil {
			t.Errorf("send: %v", err)
		}
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage || string(payload) != "report" {
		t.Fatalf("unexpected message: kind=%d payload=%q", kind, payload)
	}
}

func TestClientCloseSendsCloseFrame(t *testing.T) {
	conn := dialTestClient(t, func(c *Client) {
		c.Close()
	})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Fatalf("expected normal close frame, got %v", err)
	}
}
