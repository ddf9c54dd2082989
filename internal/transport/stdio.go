package transport

import (
	"bufio"
	"io"
	"sync"
)

// Stdio writes to the process output pipe. Writes are flushed
// immediately so the client never waits on a partially buffered frame.
type Stdio struct {
	in io.Reader

	mu sync.Mutex
	w  *bufio.Writer
	// raw keeps the unbuffered writer so Close can reach it.
	raw io.Writer
}

// NewStdio wraps a stdin/stdout pair.
func NewStdio(in io.Reader, out io.Writer) *Stdio {
	return &Stdio{in: in, w: bufio.NewWriter(out), raw: out}
}

// Input returns the read side of the pipe for the frame reader.
func (t *Stdio) Input() io.Reader { return t.in }

func (t *Stdio) Write(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.w.Write(p); err != nil {
		return err
	}
	return t.w.Flush()
}

// Close closes both halves of the pipe when they support closing.
func (t *Stdio) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_ = t.w.Flush()
	err := closeIfCloser(t.in)
	if werr := closeIfCloser(t.raw); err == nil {
		err = werr
	}
	return err
}
