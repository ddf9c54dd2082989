// Package server runs the message engine of a language server: it
// pairs a transport with a frame reader, feeds decoded payloads to a
// dispatcher strictly in arrival order, and tears everything down in a
// fixed sequence on shutdown.
package server

import (
	"context"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/sirupsen/logrus"
	"go.lsp.dev/protocol"
	"go.lsp.dev/uri"

	"github.com/tsugumi-sys/pygls/internal/config"
	"github.com/tsugumi-sys/pygls/internal/document"
	"github.com/tsugumi-sys/pygls/internal/frame"
	"github.com/tsugumi-sys/pygls/internal/pool"
	"github.com/tsugumi-sys/pygls/internal/transport"
	"github.com/tsugumi-sys/pygls/internal/workspace"
)

// Dispatcher consumes one decoded message body. It runs on the control
// goroutine; implementations that need to block should hand the work
// to Defer and return.
type Dispatcher interface {
	Dispatch(ctx context.Context, t transport.Transport, body []byte)
}

// DispatcherFunc adapts a function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, t transport.Transport, body []byte)

func (f DispatcherFunc) Dispatch(ctx context.Context, t transport.Transport, body []byte) {
	f(ctx, t, body)
}

// Options configures a Server.
type Options struct {
	// MaxWorkers bounds the pool that runs blocking frame reads.
	MaxWorkers int
	// HandlerWorkers bounds the pool behind Defer. The pool itself is
	// not created until the first Defer call.
	HandlerWorkers int
	// SyncKind is inherited by every document the workspace opens.
	SyncKind protocol.TextDocumentSyncKind
	// HeaderLimit caps header bytes per frame.
	HeaderLimit int

	RootURI uri.URI
	Folders []protocol.WorkspaceFolder

	Logger logrus.FieldLogger
}

// OptionsFromConfig maps the file/env configuration onto Options.
func OptionsFromConfig(cfg config.Config) Options {
	kind := protocol.TextDocumentSyncKindIncremental
	switch cfg.SyncKind {
	case "none":
		kind = protocol.TextDocumentSyncKindNone
	case "full":
		kind = protocol.TextDocumentSyncKindFull
	}
	return Options{
		MaxWorkers:     cfg.MaxWorkers,
		HandlerWorkers: cfg.HandlerWorkers,
		SyncKind:       kind,
		HeaderLimit:    cfg.HeaderLimit,
	}
}

type inbound struct {
	transport transport.Transport
	body      []byte
}

// Server owns the read pool, the control loop, and the workspace for
// one language server instance. A Server serves until Shutdown and is
// not reusable afterwards.
type Server struct {
	opts       Options
	logger     logrus.FieldLogger
	dispatcher Dispatcher
	ws         *workspace.Workspace

	inbox chan inbound
	stop  chan struct{}
	done  chan struct{}

	readPool *pool.Pool
	// readers counts every goroutine that can emit into the inbox.
	readers sync.WaitGroup

	handlerOnce sync.Once
	handlerPool *pool.Pool

	loopWG sync.WaitGroup
	ctx    context.Context

	shutdownOnce sync.Once

	mu         sync.Mutex
	state      State
	sources    map[sourceID]io.Closer
	nextSource sourceID
	addr       net.Addr
}

// sourceID identifies one tracked closer so a session can be dropped
// from the shutdown list when it ends on its own.
type sourceID int

// New builds a server around dispatcher. Nothing runs until one of the
// Start methods attaches a transport.
func New(dispatcher Dispatcher, opts Options) *Server {
	if opts.MaxWorkers < 1 {
		opts.MaxWorkers = 2
	}
	if opts.HandlerWorkers < 1 {
		opts.HandlerWorkers = 2
	}
	if opts.HeaderLimit < 1 {
		opts.HeaderLimit = frame.DefaultHeaderLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	s := &Server{
		opts:       opts,
		logger:     logger,
		dispatcher: dispatcher,
		ws:         workspace.New(opts.RootURI, opts.SyncKind, opts.Folders, logger),
		inbox:      make(chan inbound),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
		ctx:        context.Background(),
		sources:    make(map[sourceID]io.Closer),
	}
	s.readPool = pool.New(pool.Config{
		Workers:      opts.MaxWorkers,
		PanicHandler: s.logPanic("read"),
	})
	return s
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Workspace returns the document store owned by this server.
func (s *Server) Workspace() *workspace.Workspace { return s.ws }

// Addr returns the bound listen address once StartTCP has one, nil
// otherwise.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Done is closed once Shutdown has finished.
func (s *Server) Done() <-chan struct{} { return s.done }

// start moves the server out of StateCreated, launches the control
// loop, and arranges Shutdown to fire when ctx is cancelled.
func (s *Server) start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCreated {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("server: cannot start from state %s", state)
	}
	s.state = StateConnected
	s.mu.Unlock()

	s.ctx = ctx
	s.loopWG.Add(1)
	go s.runLoop()

	go func() {
		select {
		case <-ctx.Done():
			s.Shutdown()
		case <-s.done:
		}
	}()
	return nil
}

// runLoop is the single control goroutine. It drains the inbox in
// arrival order; nothing else invokes the dispatcher.
func (s *Server) runLoop() {
	defer s.loopWG.Done()
	for m := range s.inbox {
		s.dispatchOne(m)
	}
}

// markRunning records that the server reached its read or accept
// loop. Start methods call it once their transport is live.
func (s *Server) markRunning() {
	s.mu.Lock()
	if s.state == StateConnected {
		s.state = StateRunning
	}
	s.mu.Unlock()
}

// dispatchOne isolates handler panics so one bad message never kills
// the loop.
func (s *Server) dispatchOne(m inbound) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithField("panic", r).Error("message handler panicked")
		}
	}()
	s.dispatcher.Dispatch(s.ctx, m.transport, m.body)
}

// deliver queues a message body for dispatch. It reports false once
// shutdown has started.
func (s *Server) deliver(t transport.Transport, body []byte) bool {
	select {
	case <-s.stop:
		return false
	case s.inbox <- inbound{transport: t, body: body}:
		return true
	}
}

// Send writes payload to t with whatever framing the channel needs.
func (s *Server) Send(t transport.Transport, payload []byte) error {
	return transport.WriteMessage(t, payload)
}

// Defer runs task on the handler pool instead of the control loop.
// The pool comes into being on the first call.
func (s *Server) Defer(task func()) error {
	select {
	case <-s.stop:
		return pool.ErrClosed
	default:
	}
	s.handlerOnce.Do(func() {
		s.handlerPool = pool.New(pool.Config{
			Workers:      s.opts.HandlerWorkers,
			PanicHandler: s.logPanic("handler"),
		})
	})
	p := s.handlerPool
	if p == nil {
		return pool.ErrClosed
	}
	return p.Submit(task)
}

func (s *Server) logPanic(origin string) func(any) {
	return func(r any) {
		s.logger.WithFields(logrus.Fields{
			"origin": origin,
			"panic":  r,
		}).Error("task panicked")
	}
}

// trackSource registers a closer to be interrupted at shutdown. If
// shutdown already started the source is closed on the spot.
func (s *Server) trackSource(c io.Closer) sourceID {
	s.mu.Lock()
	if s.state >= StateShuttingDown {
		s.mu.Unlock()
		_ = c.Close()
		return 0
	}
	s.nextSource++
	id := s.nextSource
	s.sources[id] = c
	s.mu.Unlock()
	return id
}

// untrackSource forgets a source whose session ended before shutdown.
func (s *Server) untrackSource(id sourceID) {
	s.mu.Lock()
	delete(s.sources, id)
	s.mu.Unlock()
}

// addReader registers one more goroutine that can emit into the inbox.
// Registration and the shutdown state change share the same mutex, so
// teardown never waits on the reader group while a late registration
// is in flight. It reports false once shutdown has begun.
func (s *Server) addReader() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state >= StateShuttingDown {
		return false
	}
	s.readers.Add(1)
	return true
}

// readFrames runs a frame reader over src and queues every body. It
// returns when the source ends, the stop signal fires, or a framing
// fault occurs.
func (s *Server) readFrames(src io.Reader, t transport.Transport) error {
	r := frame.NewReader(src, s.stop, frame.WithHeaderLimit(s.opts.HeaderLimit))
	return r.Run(func(f frame.Frame) {
		s.deliver(t, f.Body)
	})
}

// spawnReader submits the frame loop for t to the read pool and calls
// onExit when the loop finishes.
func (s *Server) spawnReader(src io.Reader, t transport.Transport, onExit func()) error {
	if !s.addReader() {
		return pool.ErrClosed
	}
	err := s.readPool.Submit(func() {
		defer s.readers.Done()
		if err := s.readFrames(src, t); err != nil {
			s.logger.WithError(err).Error("transport read loop failed")
		}
		if onExit != nil {
			onExit()
		}
	})
	if err != nil {
		s.readers.Done()
	}
	return err
}

// Shutdown starts the teardown sequence and returns immediately, so
// it is safe to call from any goroutine, including message handlers
// running on the control loop. It is idempotent; wait on Done for
// completion.
func (s *Server) Shutdown() {
	s.shutdownOnce.Do(func() { go s.teardown() })
}

// teardown releases everything in a fixed order: signal stop, join
// the handler pool, interrupt blocked reads and join the read side,
// drain and stop the control loop, then mark the server closed.
func (s *Server) teardown() {
	s.mu.Lock()
	s.state = StateShuttingDown
	sources := s.sources
	s.sources = nil
	s.mu.Unlock()

	s.logger.Debug("shutting down the server")
	close(s.stop)

	s.handlerOnce.Do(func() {})
	if s.handlerPool != nil {
		s.handlerPool.Close()
	}

	for _, c := range sources {
		if err := c.Close(); err != nil {
			s.logger.WithError(err).Debug("closing transport source")
		}
	}
	s.readers.Wait()
	s.readPool.Close()

	close(s.inbox)
	s.loopWG.Wait()

	s.mu.Lock()
	s.state = StateClosed
	s.mu.Unlock()
	close(s.done)
}

// OpenDocument starts tracking item in the workspace.
func (s *Server) OpenDocument(item protocol.TextDocumentItem) {
	s.ws.PutDocument(item)
}

// ChangeDocument applies the decoded changes to the document at u in
// order and stamps version.
func (s *Server) ChangeDocument(u uri.URI, changes []document.ContentChange, version int32) error {
	// The version advances even when the change list is empty.
	if len(changes) == 0 {
		return s.ws.UpdateDocument(u, document.ChangeEvent{Kind: document.ChangeNone}, version)
	}
	for _, c := range changes {
		if err := s.ws.UpdateDocument(u, document.DecodeChange(c), version); err != nil {
			return err
		}
	}
	return nil
}

// CloseDocument stops tracking the document at u.
func (s *Server) CloseDocument(u uri.URI) error {
	return s.ws.RemoveDocument(u)
}

// ReadDocument returns the tracked document at u, or a fresh
// disk-backed view when u is not open.
func (s *Server) ReadDocument(u uri.URI) *document.Document {
	return s.ws.GetDocument(u)
}
