package transport

import (
	"io"
	"sync"
)

// Conn adapts a bidirectional byte stream, typically an accepted TCP
// connection, to the Transport interface.
type Conn struct {
	mu  sync.Mutex
	rwc io.ReadWriteCloser
}

// NewConn wraps an established connection.
func NewConn(rwc io.ReadWriteCloser) *Conn {
	return &Conn{rwc: rwc}
}

// Input returns the read side of the connection for the frame reader.
func (t *Conn) Input() io.Reader { return t.rwc }

func (t *Conn) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := t.rwc.Write(p)
	return err
}

func (t *Conn) Close() error {
	return t.rwc.Close()
}
