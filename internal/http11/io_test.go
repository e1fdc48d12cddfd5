package http11

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// timeoutError mimics a deadline-exceeded read on a real socket.
type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// step is one scripted transport event: data bytes delivered, or an
// error once the data is drained.
type step struct {
	data []byte
	err  error
}

// fakeConn replays a script of reads. Timeout steps advance the mock
// clock by one poll interval, simulating a fruitless readiness slice.
type fakeConn struct {
	steps []step
	clk   *clock.Mock

	buffered     int  // reported by Buffered
	failDeadline bool // SetReadDeadline returns an error when true

	writeLimit int // max bytes per Write, 0 = unlimited
	writeSteps []step
	written    []byte
	closed     bool
}

func (c *fakeConn) Read(p []byte) (int, error) {
	if len(c.steps) == 0 {
		return 0, io.EOF
	}
	s := &c.steps[0]
	if len(s.data) > 0 {
		n := copy(p, s.data)
		s.data = s.data[n:]
		if len(s.data) == 0 && s.err == nil {
			c.steps = c.steps[1:]
		}
		return n, nil
	}
	err := s.err
	c.steps = c.steps[1:]
	if c.clk != nil && isTimeout(err) {
		c.clk.Add(pollInterval)
	}
	return 0, err
}

func (c *fakeConn) Write(p []byte) (int, error) {
	if len(c.writeSteps) > 0 {
		err := c.writeSteps[0].err
		c.writeSteps = c.writeSteps[1:]
		if c.clk != nil && isTimeout(err) {
			c.clk.Add(pollInterval)
		}
		return 0, err
	}
	n := len(p)
	if c.writeLimit > 0 && n > c.writeLimit {
		n = c.writeLimit
	}
	c.written = append(c.written, p[:n]...)
	return n, nil
}

func (c *fakeConn) Buffered() int { return c.buffered }
func (c *fakeConn) Close() error  { c.closed = true; return nil }

func (c *fakeConn) SetReadDeadline(time.Time) error {
	if c.failDeadline {
		return errors.New("deadline not supported")
	}
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

// deliver builds data steps of at most size bytes each.
func deliver(data []byte, size int) []step {
	var steps []step
	for len(data) > 0 {
		n := size
		if n > len(data) {
			n = len(data)
		}
		steps = append(steps, step{data: append([]byte(nil), data[:n]...)})
		data = data[n:]
	}
	return steps
}

func timeouts(n int) []step {
	steps := make([]step, n)
	for i := range steps {
		steps[i] = step{err: timeoutError{}}
	}
	return steps
}

func TestRecvDeliversData(t *testing.T) {
	conn := &fakeConn{steps: deliver([]byte("hello"), 1024)}
	bio := NewIO(conn, clock.New(), 3*time.Second)

	buf := make([]byte, 1024)
	n, err := bio.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf[:n]))
}

func TestRecvRetriesThroughIdleSlices(t *testing.T) {
	mock := clock.NewMock()
	conn := &fakeConn{clk: mock}
	conn.steps = append(timeouts(2), step{data: []byte("late")})
	bio := NewIO(conn, mock, 5*time.Second)

	buf := make([]byte, 16)
	n, err := bio.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, "late", string(buf[:n]))
}

func TestRecvTimesOutAfterFullBudget(t *testing.T) {
	mock := clock.NewMock()
	conn := &fakeConn{clk: mock, steps: timeouts(10)}
	bio := NewIO(conn, mock, 3*time.Second)

	_, err := bio.Recv(make([]byte, 16))
	require.ErrorIs(t, err, ErrTimeout)
	// Exactly the timeout worth of slices was polled, no more.
	assert.Len(t, conn.steps, 7)
}

func TestRecvPrefersBufferedData(t *testing.T) {
	// When the connection already holds data locally (e.g. decrypted TLS
	// bytes), Recv must consume it without arming a new deadline slice.
	conn := &fakeConn{
		steps:        []step{{data: []byte("stashed")}},
		buffered:     7,
		failDeadline: true,
	}
	bio := NewIO(conn, clock.New(), time.Second)

	buf := make([]byte, 16)
	n, err := bio.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, "stashed", string(buf[:n]))
}

func TestRecvEndOfStream(t *testing.T) {
	conn := &fakeConn{steps: []step{{err: io.EOF}}}
	bio := NewIO(conn, clock.New(), time.Second)

	_, err := bio.Recv(make([]byte, 16))
	assert.ErrorIs(t, err, ErrEndOfStream)
}

func TestRecvWrapsIOError(t *testing.T) {
	boom := errors.New("connection reset")
	conn := &fakeConn{steps: []step{{err: boom}}}
	bio := NewIO(conn, clock.New(), time.Second)

	_, err := bio.Recv(make([]byte, 16))
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrTimeout)
}

func TestSendWritesEverythingAcrossPartialWrites(t *testing.T) {
	conn := &fakeConn{writeLimit: 3}
	bio := NewIO(conn, clock.New(), 3*time.Second)

	payload := []byte("GET / HTTP/1.1\r\n\r\n")
	n, err := bio.Send(payload)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, conn.written)
}

func TestSendTimesOut(t *testing.T) {
	mock := clock.NewMock()
	conn := &fakeConn{clk: mock}
	conn.writeSteps = timeouts(5)
	bio := NewIO(conn, mock, 2*time.Second)

	_, err := bio.Send([]byte("x"))
	assert.ErrorIs(t, err, ErrTimeout)
}
