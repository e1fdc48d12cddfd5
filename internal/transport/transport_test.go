package transport

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapBufferedReportsUnconsumedBytes(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	go func() {
		server.Write([]byte("0123456789"))
	}()

	conn := Wrap(client)
	buf := make([]byte, 1)
	n, err := conn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, byte('0'), buf[0])

	// The rest of the write sits in the local buffer; a readiness poll
	// on the pipe would never report it.
	assert.Equal(t, 9, conn.Buffered())

	rest := make([]byte, 16)
	n, err = conn.Read(rest)
	require.NoError(t, err)
	assert.Equal(t, "123456789", string(rest[:n]))
	assert.Equal(t, 0, conn.Buffered())
}

func TestWrapReadDeadline(t *testing.T) {
	client, server := net.Pipe()
	t.Cleanup(func() { client.Close(); server.Close() })

	conn := Wrap(client)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(20*time.Millisecond)))

	_, err := conn.Read(make([]byte, 1))
	require.Error(t, err)
	ne, ok := err.(net.Error)
	require.True(t, ok)
	assert.True(t, ne.Timeout())
}

func TestNetDialerPlainTCP(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		buf := make([]byte, 4)
		c.Read(buf)
		c.Write([]byte("pong"))
	}()

	d := &NetDialer{
		Host:    "127.0.0.1",
		Port:    ln.Addr().(*net.TCPAddr).Port,
		Timeout: 3 * time.Second,
	}
	conn, err := d.Dial(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping"))
	require.NoError(t, err)

	buf := make([]byte, 4)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(buf[:n]))
}

func TestNetDialerConnectFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	d := &NetDialer{Host: "127.0.0.1", Port: port, Timeout: time.Second}
	_, err = d.Dial(context.Background())
	assert.Error(t, err)
}
