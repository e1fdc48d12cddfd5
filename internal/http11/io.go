// Package http11 reads HTTP/1.1 responses incrementally from a stream
// connection under a wall-clock deadline. It never assumes a full
// response is available at once: headers and body are assembled from
// partial reads, and every receive is bounded by one-second readiness
// slices so a silent peer cannot stall a probe indefinitely.
package http11

import (
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/maxvaer/hostwatch/internal/transport"
)

// pollInterval is the readiness slice granularity. The total timeout is
// spent in retried slices of this length, never in one indefinite block.
const pollInterval = time.Second

var (
	// ErrTimeout means the deadline elapsed before the operation completed.
	ErrTimeout = errors.New("operation timed out")
	// ErrEndOfStream means the peer closed the connection before the
	// response framing completed.
	ErrEndOfStream = errors.New("connection closed by peer")
	// ErrMissingLength means the response declared neither a usable
	// Content-Length nor chunked Transfer-Encoding. There is deliberately
	// no read-until-close fallback.
	ErrMissingLength = errors.New("response has no usable framing header")
	// ErrMalformedChunk means a chunk-size line was not plain hex.
	ErrMalformedChunk = errors.New("malformed chunk size")
)

// IO performs deadline-bounded send and receive operations on a
// connection. Each operation gets the full configured timeout.
type IO struct {
	conn    transport.Conn
	clk     clock.Clock
	timeout time.Duration
}

// NewIO wraps conn with a per-operation timeout. The clock is injectable
// so tests can script time without real sleeps.
func NewIO(conn transport.Conn, clk clock.Clock, timeout time.Duration) *IO {
	return &IO{conn: conn, clk: clk, timeout: timeout}
}

// Recv reads up to len(p) bytes, polling in one-second slices until data
// arrives or the timeout elapses. Data the connection already holds
// locally is consumed first: a readiness poll on the underlying socket
// would never report it.
func (b *IO) Recv(p []byte) (int, error) {
	deadline := b.clk.Now().Add(b.timeout)
	for {
		if b.conn.Buffered() == 0 {
			if err := b.conn.SetReadDeadline(b.clk.Now().Add(pollInterval)); err != nil {
				return 0, fmt.Errorf("setting read deadline: %w", err)
			}
		}
		n, err := b.conn.Read(p)
		if n > 0 {
			return n, nil
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return 0, ErrEndOfStream
		}
		if isTimeout(err) {
			if !b.clk.Now().Before(deadline) {
				return 0, ErrTimeout
			}
			continue
		}
		return 0, fmt.Errorf("transport read: %w", err)
	}
}

// Send writes all of p, retrying partial writes in one-second slices.
// On timeout it reports how many bytes made it out alongside ErrTimeout.
func (b *IO) Send(p []byte) (int, error) {
	deadline := b.clk.Now().Add(b.timeout)
	sent := 0
	for sent < len(p) {
		if err := b.conn.SetWriteDeadline(b.clk.Now().Add(pollInterval)); err != nil {
			return sent, fmt.Errorf("setting write deadline: %w", err)
		}
		n, err := b.conn.Write(p[sent:])
		sent += n
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return sent, ErrEndOfStream
		}
		if isTimeout(err) {
			if !b.clk.Now().Before(deadline) {
				return sent, ErrTimeout
			}
			continue
		}
		return sent, fmt.Errorf("transport write: %w", err)
	}
	return sent, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
