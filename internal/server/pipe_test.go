package server

import (
	"bytes"
	"io"
	"sync"
)

// memPipe is an in-memory byte stream for driving a server in tests.
// Reads block until data arrives or the stream is closed.
type memPipe struct {
	mu     sync.Mutex
	data   bytes.Buffer
	closed bool
	ready  chan struct{}
}

func newMemPipe() *memPipe {
	return &memPipe{ready: make(chan struct{})}
}

func (p *memPipe) Read(b []byte) (int, error) {
	for {
		p.mu.Lock()
		if p.data.Len() > 0 {
			n, _ := p.data.Read(b)
			p.mu.Unlock()
			return n, nil
		}
		if p.closed {
			p.mu.Unlock()
			return 0, io.EOF
		}
		ready := p.ready
		p.mu.Unlock()
		<-ready
	}
}

func (p *memPipe) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return 0, io.ErrClosedPipe
	}
	n, err := p.data.Write(b)
	p.wake()
	return n, err
}

func (p *memPipe) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.closed {
		p.closed = true
		p.wake()
	}
	return nil
}

// wake releases every blocked Read. Callers hold mu.
func (p *memPipe) wake() {
	close(p.ready)
	p.ready = make(chan struct{})
}

// snapshot copies everything written and not yet read.
func (p *memPipe) snapshot() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.data.Bytes()...)
}
