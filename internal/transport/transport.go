// Package transport abstracts the byte channels a language server can
// speak over: a stdio pipe, an accepted TCP connection, a WebSocket
// connection, or a host-embedded byte pump.
package transport

import (
	"fmt"
	"io"
)

// Transport is one physical channel to the client. Implementations must
// be safe for concurrent writes.
type Transport interface {
	// Write sends raw bytes to the client.
	Write(p []byte) error
	// Close shuts the channel down. Closing twice is allowed.
	Close() error
}

// MessageOriented marks transports whose channel carries whole
// messages natively. WriteMessage sends bare payloads on them instead
// of synthesizing a Content-Length header.
type MessageOriented interface {
	MessageOriented()
}

// WriteMessage frames payload with a Content-Length header and writes
// the whole frame to t in one call. Message-oriented transports get
// the payload as-is.
func WriteMessage(t Transport, payload []byte) error {
	if _, ok := t.(MessageOriented); ok {
		return t.Write(payload)
	}
	frame := make([]byte, 0, len(payload)+32)
	frame = fmt.Appendf(frame, "Content-Length: %d\r\n\r\n", len(payload))
	frame = append(frame, payload...)
	return t.Write(frame)
}

func closeIfCloser(v any) error {
	if c, ok := v.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
