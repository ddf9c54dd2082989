package server

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/tsugumi-sys/pygls/internal/transport"
)

// StartIO serves a single client over the given pipe pair, typically
// os.Stdin and os.Stdout. It blocks until the pipe ends or Shutdown
// runs; end of input shuts the server down.
func (s *Server) StartIO(ctx context.Context, in io.Reader, out io.Writer) error {
	if err := s.start(ctx); err != nil {
		return err
	}
	t := transport.NewStdio(in, out)
	s.trackSource(t)
	s.logger.Debug("starting IO server")

	if err := s.spawnReader(t.Input(), t, s.Shutdown); err != nil {
		s.Shutdown()
		return err
	}
	s.markRunning()
	<-s.done
	return nil
}

// StartTCP serves clients over TCP. Each accepted connection gets its
// own transport; all connections share the dispatcher and workspace.
// It blocks until Shutdown runs.
func (s *Server) StartTCP(ctx context.Context, addr string) error {
	if err := s.start(ctx); err != nil {
		return err
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.Shutdown()
		return err
	}
	s.trackSource(ln)
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	s.logger.WithField("addr", ln.Addr().String()).Info("starting TCP server")
	s.markRunning()

	var sessions errgroup.Group
	retry := backoff.NewExponentialBackOff()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			// Transient accept faults (fd exhaustion and the like)
			// back off instead of spinning.
			wait := retry.NextBackOff()
			s.logger.WithError(err).WithField("wait", wait).Warn("accept failed, retrying")
			select {
			case <-s.stop:
			case <-time.After(wait):
			}
			continue
		}
		retry.Reset()
		sessions.Go(func() error {
			s.serveConn(conn)
			return nil
		})
	}
	_ = sessions.Wait()
	<-s.done
	return nil
}

// serveConn runs one TCP session to completion. A session ending does
// not shut the server down; new clients may still connect.
func (s *Server) serveConn(conn net.Conn) {
	logger := s.logger.WithField("remote", conn.RemoteAddr().String())
	logger.Info("client connected")

	t := transport.NewConn(conn)
	id := s.trackSource(t)
	defer s.untrackSource(id)

	readerDone := make(chan struct{})
	err := s.spawnReader(t.Input(), t, func() { close(readerDone) })
	if err != nil {
		logger.WithError(err).Debug("session rejected")
		_ = t.Close()
		return
	}
	<-readerDone
	_ = t.Close()
	logger.Info("client disconnected")
}

// StartWS serves clients over WebSocket on addr. Each message arrives
// whole, so no header framing is involved in either direction. It
// blocks until Shutdown runs.
func (s *Server) StartWS(ctx context.Context, addr string) error {
	if err := s.start(ctx); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.Shutdown()
		return err
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveWS)
	srv := &http.Server{Handler: mux}
	s.trackSource(closerFunc(srv.Close))
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()
	s.logger.WithField("addr", ln.Addr().String()).Info("starting WebSocket server")
	s.markRunning()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.Shutdown()
		return err
	}
	<-s.done
	return nil
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("websocket handshake failed")
		return
	}
	logger := s.logger.WithField("remote", r.RemoteAddr)
	logger.Info("client connected")

	t := transport.NewWebSocket(conn)
	id := s.trackSource(t)
	defer s.untrackSource(id)

	if !s.addReader() {
		_ = t.Close()
		return
	}
	defer s.readers.Done()
	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			break
		}
		if !s.deliver(t, data) {
			break
		}
	}
	_ = t.Close()
	logger.Info("client disconnected")
}

// StartEmbedded attaches the server to a host-provided output writer
// and returns the input side: bytes written to it are parsed as
// frames. Unlike the other Start methods it does not block; closing
// the returned writer or calling Shutdown ends the session.
func (s *Server) StartEmbedded(ctx context.Context, out io.Writer) (io.WriteCloser, error) {
	if err := s.start(ctx); err != nil {
		return nil, err
	}
	pr, pw := io.Pipe()
	t := transport.NewEmbedded(out)
	s.trackSource(pr)
	s.trackSource(t)
	s.logger.Debug("starting embedded server")

	if err := s.spawnReader(pr, t, s.Shutdown); err != nil {
		_ = pw.Close()
		s.Shutdown()
		return nil, err
	}
	s.markRunning()
	return pw, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }
