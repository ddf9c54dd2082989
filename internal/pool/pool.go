// Package pool provides a fixed-size goroutine pool for controlled
// concurrency.
package pool

import (
	"errors"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by Submit after Close.
var ErrClosed = errors.New("pool: closed")

// Pool runs submitted tasks on a fixed set of worker goroutines.
// Workers start when the pool is constructed; there is no lazy or
// on-demand spawning.
type Pool struct {
	tasks        chan func()
	wg           sync.WaitGroup
	mu           sync.RWMutex // serializes Submit against Close
	closed       atomic.Bool
	panicHandler func(any)
}

// Config configures a Pool.
type Config struct {
	// Workers is the number of worker goroutines. Values below 1 are
	// treated as 1.
	Workers int
	// PanicHandler receives recovered panics from tasks. When nil,
	// panics are swallowed after recovery.
	PanicHandler func(any)
}

// New starts a pool of cfg.Workers goroutines.
func New(cfg Config) *Pool {
	workers := cfg.Workers
	if workers < 1 {
		workers = 1
	}
	p := &Pool{
		tasks:        make(chan func(), workers),
		panicHandler: cfg.PanicHandler,
	}
	p.wg.Add(workers)
	for range workers {
		go p.worker()
	}
	return p
}

// Submit queues a task, blocking while all workers are busy and the
// queue is full. Tasks may be long-running; each occupies one worker
// until it returns.
func (p *Pool) Submit(task func()) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed.Load() {
		return ErrClosed
	}
	p.tasks <- task
	return nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.run(task)
	}
}

func (p *Pool) run(task func()) {
	defer func() {
		if r := recover(); r != nil && p.panicHandler != nil {
			p.panicHandler(r)
		}
	}()
	task()
}

// Close stops accepting tasks and joins the workers. In-flight tasks
// run to completion. Closing twice is a no-op.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed.Swap(true) {
		p.mu.Unlock()
		return
	}
	close(p.tasks)
	p.mu.Unlock()
	p.wg.Wait()
}
