// Package transport abstracts the single outbound stream connection a
// probe runs over, plain TCP or TLS.
package transport

import (
	"bufio"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"time"
)

// Conn is one outbound byte-stream connection. Reads and writes are
// bounded by deadlines set through SetReadDeadline/SetWriteDeadline;
// Buffered reports bytes already held locally (e.g. application data
// decrypted alongside a TLS record) that a deadline poll on the
// underlying socket would never signal.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	Buffered() int
}

// Dialer opens a connection to the watch target.
type Dialer interface {
	Dial(ctx context.Context) (Conn, error)
}

// NetDialer dials host:port over TCP, optionally completing a TLS
// handshake before handing the connection out.
type NetDialer struct {
	Host     string
	Port     int
	TLS      bool
	Insecure bool // skip certificate verification
	Timeout  time.Duration
}

// Dial opens the connection. The connect timeout covers the TCP dial
// and, for TLS targets, the handshake as well.
func (d *NetDialer) Dial(ctx context.Context) (Conn, error) {
	addr := net.JoinHostPort(d.Host, fmt.Sprintf("%d", d.Port))
	nd := &net.Dialer{Timeout: d.Timeout}
	raw, err := nd.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}

	if !d.TLS {
		return Wrap(raw), nil
	}

	tc := tls.Client(raw, &tls.Config{
		ServerName:         d.Host,
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: d.Insecure,
	})
	if err := raw.SetDeadline(time.Now().Add(d.Timeout)); err != nil {
		raw.Close()
		return nil, err
	}
	if err := tc.HandshakeContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("tls handshake with %s: %w", addr, err)
	}
	if err := raw.SetDeadline(time.Time{}); err != nil {
		tc.Close()
		return nil, err
	}
	return Wrap(tc), nil
}

// Wrap turns a net.Conn into a Conn with a local read buffer so that
// Buffered can report data already received but not yet consumed.
func Wrap(nc net.Conn) Conn {
	return &stream{nc: nc, br: bufio.NewReader(nc)}
}

type stream struct {
	nc net.Conn
	br *bufio.Reader
}

func (s *stream) Read(p []byte) (int, error)  { return s.br.Read(p) }
func (s *stream) Write(p []byte) (int, error) { return s.nc.Write(p) }
func (s *stream) Buffered() int               { return s.br.Buffered() }
func (s *stream) Close() error                { return s.nc.Close() }

func (s *stream) SetReadDeadline(t time.Time) error  { return s.nc.SetReadDeadline(t) }
func (s *stream) SetWriteDeadline(t time.Time) error { return s.nc.SetWriteDeadline(t) }
