// Package rpc implements the JSON-RPC request channel to the signal-cli
// daemon.
//
// Conn is a thin, fail-fast line transport over TCP. Client serializes
// request/response exchanges over its own private Conn: one call completes
// fully before the next begins, correlated by a monotonically increasing id.
// Anything that corrupts the read position of the connection (a malformed
// line, a timed-out read) tears the connection down; the next call dials a
// fresh one.
package rpc
