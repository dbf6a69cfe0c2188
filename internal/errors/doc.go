// Package errors defines error types for the Signal daemon bridge.
//
// This package provides structured error types that wrap different failure
// scenarios when talking to the signal-cli daemon. All error types support
// error unwrapping and can be checked using errors.Is and errors.As.
package errors
