package errors

import (
	"errors"
	"fmt"
)

// SignalError is the base interface for all bridge errors.
type SignalError interface {
	error
	IsSignalError() bool
}

// Compile-time verification that all error types implement SignalError.
var (
	_ SignalError = (*ConnectError)(nil)
	_ SignalError = (*WriteError)(nil)
	_ SignalError = (*DecodeError)(nil)
	_ SignalError = (*RemoteError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrConnClosed indicates the daemon connection is closed or was torn
	// down because its read position became untrustworthy.
	ErrConnClosed = errors.New("daemon connection closed")

	// ErrRequestTimeout indicates a JSON-RPC request timed out.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrIDMismatch indicates a response carried an id that does not match
	// the request just sent. The exchange is unrecoverable.
	ErrIDMismatch = errors.New("response id does not match request id")

	// ErrAlreadyLocked indicates another bridge instance holds the
	// per-account lock.
	ErrAlreadyLocked = errors.New("another instance is already running for this account")
)

// ConnectError indicates failure to open a stream to the daemon.
type ConnectError struct {
	Addr string
	Err  error
}

func (e *ConnectError) Error() string {
	return fmt.Sprintf("failed to connect to daemon at %s: %v", e.Addr, e.Err)
}

func (e *ConnectError) Unwrap() error {
	return e.Err
}

// IsSignalError implements SignalError.
func (e *ConnectError) IsSignalError() bool { return true }

// WriteError indicates a write on a broken stream. The connection it
// occurred on is no longer usable.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write to daemon: %v", e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// IsSignalError implements SignalError.
func (e *WriteError) IsSignalError() bool { return true }

// DecodeError indicates a malformed line was read from the daemon.
// This error preserves the raw line that failed to parse.
type DecodeError struct {
	RawLine string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode daemon message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsSignalError implements SignalError.
func (e *DecodeError) IsSignalError() bool { return true }

// RemoteError is a well-formed JSON-RPC error response from the daemon.
// It is always surfaced to the caller and never retried internally.
type RemoteError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("daemon error %d: %s", e.Code, e.Message)
}

// IsSignalError implements SignalError.
func (e *RemoteError) IsSignalError() bool { return true }
