// Package frame assembles Content-Length delimited messages from a
// blocking byte source.
//
// The wire format is one or more ASCII header lines terminated by
// "\r\n", of which at least one must be "Content-Length: <decimal>",
// followed by a blank "\r\n" line and exactly that many bytes of body.
package frame

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"regexp"
	"strconv"
)

// ErrFraming reports a malformed frame header. It wraps the specific
// cause; use errors.Is to detect it.
var ErrFraming = errors.New("frame: malformed header")

// contentLength matches a complete Content-Length header line.
var contentLength = regexp.MustCompile(`^Content-Length: (\d+)\r\n$`)

// DefaultHeaderLimit bounds header accumulation per frame. A client
// that never sends a Content-Length line would otherwise grow the
// header buffer without limit.
const DefaultHeaderLimit = 64 * 1024

// Frame is one complete header+body unit.
type Frame struct {
	// Headers holds the raw header bytes including the blank
	// terminator line. Empty for pre-framed sources.
	Headers []byte
	// Body holds exactly Content-Length bytes of payload.
	Body []byte
}

// Bytes returns the frame as it appeared on the wire.
func (f Frame) Bytes() []byte {
	return append(append([]byte(nil), f.Headers...), f.Body...)
}

// Handler receives each assembled frame, strictly in arrival order.
type Handler func(Frame)

// Reader turns a blocking byte source into a sequence of frames.
//
// Run blocks the goroutine executing it, never anyone else; the caller
// decides which worker the read loop occupies.
type Reader struct {
	src         *bufio.Reader
	stop        <-chan struct{}
	headerLimit int
}

// Option configures a Reader.
type Option func(*Reader)

// WithHeaderLimit overrides DefaultHeaderLimit.
func WithHeaderLimit(n int) Option {
	return func(r *Reader) { r.headerLimit = n }
}

// NewReader creates a reader over src. The stop channel is a
// cooperative stop signal checked before every header read; closing it
// ends Run before the next blocking read.
func NewReader(src io.Reader, stop <-chan struct{}, opts ...Option) *Reader {
	r := &Reader{
		src:         bufio.NewReader(src),
		stop:        stop,
		headerLimit: DefaultHeaderLimit,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads frames until the stop signal is set, the source reaches
// end-of-stream, or a read fails. End-of-stream and stop both return
// nil; transport faults and framing violations return the error.
func (r *Reader) Run(emit Handler) error {
	var (
		headers    bytes.Buffer
		length     int
		haveLength bool
	)

	for {
		select {
		case <-r.stop:
			return nil
		default:
		}

		header, err := r.src.ReadBytes('\n')
		if err != nil {
			if len(header) == 0 && errors.Is(err, io.EOF) {
				return nil
			}
			if isClosed(err) {
				return nil
			}
			return err
		}
		headers.Write(header)

		if !haveLength {
			if m := contentLength.FindSubmatch(header); m != nil {
				n, err := strconv.Atoi(string(m[1]))
				if err != nil {
					return fmt.Errorf("%w: bad Content-Length %q", ErrFraming, m[1])
				}
				length, haveLength = n, true
			}
		}

		if headers.Len() > r.headerLimit {
			return fmt.Errorf("%w: %d header bytes without a complete frame", ErrFraming, headers.Len())
		}

		// A blank line after a known length closes the header block.
		blank := len(bytes.TrimRight(header, "\r\n")) == 0
		if !haveLength || !blank {
			continue
		}

		body := make([]byte, length)
		if _, err := io.ReadFull(r.src, body); err != nil {
			if errors.Is(err, io.EOF) || isClosed(err) {
				return nil
			}
			return err
		}

		emit(Frame{
			Headers: append([]byte(nil), headers.Bytes()...),
			Body:    body,
		})
		headers.Reset()
		length, haveLength = 0, false
	}
}

// isClosed reports whether err is the result of the source being
// closed out from under a blocked read.
func isClosed(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, os.ErrClosed)
}
