package transport

import (
	"context"

	"github.com/coder/websocket"
)

// WebSocket sends each payload as one text message. Message-oriented
// transports carry whole frames natively, so no header framing is
// applied on this channel.
type WebSocket struct {
	conn *websocket.Conn
}

// NewWebSocket wraps an accepted WebSocket connection.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

func (t *WebSocket) Write(p []byte) error {
	return t.conn.Write(context.Background(), websocket.MessageText, p)
}

// MessageOriented marks the channel as carrying whole messages.
func (t *WebSocket) MessageOriented() {}

func (t *WebSocket) Close() error {
	return t.conn.Close(websocket.StatusNormalClosure, "server shutting down")
}
