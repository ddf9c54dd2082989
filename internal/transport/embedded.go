package transport

import (
	"io"
	"sync"
)

// Embedded is the host-embedded byte pump: the enclosing runtime pulls
// output from the writer it supplied and pushes input elsewhere. Writes
// carry the body only; the host owns any framing it needs.
type Embedded struct {
	mu sync.Mutex
	w  io.Writer
}

// NewEmbedded wraps the output writer supplied by the host.
func NewEmbedded(w io.Writer) *Embedded {
	return &Embedded{w: w}
}

func (t *Embedded) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.w.Write(p); err != nil {
		return err
	}
	if f, ok := t.w.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// MessageOriented marks the channel as carrying whole messages.
func (t *Embedded) MessageOriented() {}

func (t *Embedded) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return closeIfCloser(t.w)
}
