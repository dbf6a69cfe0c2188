// Package relay implements the persistent notification relay.
//
// A Listener owns a dedicated daemon connection, continuously reads
// line-delimited notifications, and pushes receive-class envelopes that
// carry a message body onto a bounded Queue. Waiters claim events from the
// queue with WaitFor: scan first, then block on the queue's new-data signal
// with a deadline, re-scanning on every wake. Each queued event is
// delivered to at most one waiter.
//
// The listener absorbs all stream failures internally by reconnecting
// after a fixed backoff; it never propagates errors to waiters.
package relay
