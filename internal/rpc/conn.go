package rpc

import (
	"bufio"
	"bytes"
	"context"
	"net"
	"sync"
	"time"

	"github.com/sigmcp/signal-mcp-go/internal/errors"
)

// Conn is a line-oriented duplex stream to the signal-cli daemon.
//
// It is a fail-fast primitive: no retry or reconnect logic lives here.
// Reads are line-delimited, each WriteLine is a single atomic write, and
// Close is idempotent. Closing the connection unblocks a ReadLine that is
// blocked on the socket.
type Conn struct {
	nc net.Conn
	r  *bufio.Reader

	mu     sync.Mutex // serializes writes and Close
	closed bool
}

// Dial opens a TCP connection to the daemon at addr.
//
// Returns ConnectError if the stream cannot be opened.
func Dial(ctx context.Context, addr string) (*Conn, error) {
	var d net.Dialer

	nc, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &errors.ConnectError{Addr: addr, Err: err}
	}

	return NewConn(nc), nil
}

// NewConn wraps an established network connection.
func NewConn(nc net.Conn) *Conn {
	return &Conn{
		nc: nc,
		r:  bufio.NewReader(nc),
	}
}

// ReadLine blocks until one newline-delimited message is available and
// returns it without the trailing newline.
//
// Returns io.EOF when the daemon closes the stream, or the close error if
// Close was called while the read was blocked.
func (c *Conn) ReadLine() ([]byte, error) {
	line, err := c.r.ReadBytes('\n')
	if err != nil {
		return nil, err
	}

	return bytes.TrimRight(line, "\r\n"), nil
}

// SetReadDeadline sets the deadline for future ReadLine calls.
// A zero time clears the deadline.
func (c *Conn) SetReadDeadline(t time.Time) error {
	return c.nc.SetReadDeadline(t)
}

// WriteLine writes data followed by a newline as one write call.
//
// Returns WriteError if the stream is broken, or ErrConnClosed after Close.
func (c *Conn) WriteLine(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errors.ErrConnClosed
	}

	// Explicit copy so the caller's backing array is never mutated.
	buf := make([]byte, len(data)+1)
	copy(buf, data)
	buf[len(data)] = '\n'

	if _, err := c.nc.Write(buf); err != nil {
		return &errors.WriteError{Err: err}
	}

	return nil
}

// Close closes the connection. It is safe to call multiple times.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}

	c.closed = true

	return c.nc.Close()
}
