package rpc

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/sigmcp/signal-mcp-go/internal/errors"
)

// request is one outbound JSON-RPC envelope.
type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// response is one inbound JSON-RPC envelope.
type response struct {
	JSONRPC string              `json:"jsonrpc"`
	ID      uint64              `json:"id"`
	Result  json.RawMessage     `json:"result"`
	Error   *errors.RemoteError `json:"error"`
}

// Client is the request channel to the signal-cli daemon.
//
// It owns a private Conn that is never shared with the notification
// listener. Calls are serialized: exactly one request/response exchange is
// in flight at a time, so responses are matched to requests by position,
// with the echoed id verified as a sanity check.
//
// The connection is opened lazily on the first call and reopened on the
// next call after any fatal error tears it down.
type Client struct {
	log  *slog.Logger
	addr string

	mu     sync.Mutex // one in-flight exchange at a time
	conn   *Conn
	nextID uint64 // monotonic, never reused
}

// NewClient creates a request channel for the daemon at addr.
// No connection is opened until the first Call.
func NewClient(log *slog.Logger, addr string) *Client {
	return &Client{
		log:    log.With("component", "rpc_client"),
		addr:   addr,
		nextID: 1,
	}
}

// Call sends a JSON-RPC request and blocks until the response arrives.
//
// The context deadline, if any, bounds the exchange. Possible failures:
// ConnectError when no stream can be opened, WriteError on a broken pipe,
// ErrRequestTimeout when the deadline expires mid-exchange, RemoteError for
// a well-formed error response, DecodeError (wrapping ErrConnClosed
// semantics) for a malformed line, and ErrIDMismatch when the response id
// does not echo the request id. Every failure except RemoteError tears the
// connection down; the next Call reconnects.
func (c *Client) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.connectLocked(ctx); err != nil {
		return nil, err
	}

	id := c.nextID
	c.nextID++

	data, err := json.Marshal(&request{
		JSONRPC: "2.0",
		ID:      id,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.log.Debug("sending request", "id", id, "method", method)

	if err := c.conn.WriteLine(data); err != nil {
		c.teardownLocked()

		return nil, err
	}

	// Bound the response read by the caller's deadline. A timed-out read
	// leaves a response in flight, which would desync id matching, so the
	// connection is torn down along with it.
	var deadline time.Time
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}

	_ = c.conn.SetReadDeadline(deadline)

	line, err := c.conn.ReadLine()
	if err != nil {
		c.teardownLocked()

		var netErr net.Error
		if stderrors.As(err, &netErr) && netErr.Timeout() {
			c.log.Warn("request timed out", "id", id, "method", method)

			return nil, fmt.Errorf("%w: %s", errors.ErrRequestTimeout, method)
		}

		c.log.Warn("daemon closed connection mid-exchange", "id", id, "error", err)

		return nil, fmt.Errorf("%w: %v", errors.ErrConnClosed, err)
	}

	var resp response
	if err := json.Unmarshal(line, &resp); err != nil {
		// One malformed line invalidates the whole read position. Close
		// and force a reconnect on the next call.
		c.teardownLocked()
		c.log.Error("malformed response, tearing down connection", "id", id, "error", err)

		return nil, &errors.DecodeError{RawLine: string(line), Err: err}
	}

	if resp.Error != nil {
		c.log.Debug("request returned error", "id", id, "code", resp.Error.Code)

		return nil, resp.Error
	}

	if resp.ID != id {
		c.teardownLocked()
		c.log.Error("response id mismatch", "sent", id, "received", resp.ID)

		return nil, errors.ErrIDMismatch
	}

	c.log.Debug("received response", "id", id)

	return resp.Result, nil
}

// Close tears down the connection if one is open. The client remains
// usable: the next Call reconnects.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.teardownLocked()

	return nil
}

// connectLocked ensures a live connection, reusing the existing stream or
// opening a fresh one. Callers must hold c.mu.
func (c *Client) connectLocked(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	conn, err := Dial(ctx, c.addr)
	if err != nil {
		c.log.Error("failed to connect to daemon", "addr", c.addr, "error", err)

		return err
	}

	c.log.Info("connected to daemon", "addr", c.addr)
	c.conn = conn

	return nil
}

// teardownLocked discards the current connection. Callers must hold c.mu.
func (c *Client) teardownLocked() {
	if c.conn == nil {
		return
	}

	_ = c.conn.Close()
	c.conn = nil
}
