package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectError(t *testing.T) {
	root := errors.New("connection refused")
	err := &ConnectError{Addr: "localhost:7583", Err: root}

	require.Equal(t, "failed to connect to daemon at localhost:7583: connection refused", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsSignalError())
}

func TestWriteError(t *testing.T) {
	root := errors.New("broken pipe")
	err := &WriteError{Err: root}

	require.Equal(t, "failed to write to daemon: broken pipe", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsSignalError())
}

func TestDecodeError(t *testing.T) {
	root := errors.New("unexpected end of JSON input")
	err := &DecodeError{
		RawLine: `{"jsonrpc":"2.0",`,
		Err:     root,
	}

	require.Equal(t, "failed to decode daemon message: unexpected end of JSON input", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsSignalError())
	require.Equal(t, `{"jsonrpc":"2.0",`, err.RawLine)
}

func TestRemoteError(t *testing.T) {
	err := &RemoteError{Code: -32601, Message: "Method not found"}

	require.Equal(t, "daemon error -32601: Method not found", err.Error())
	require.True(t, err.IsSignalError())
}
