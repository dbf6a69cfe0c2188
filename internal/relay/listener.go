package relay

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/sigmcp/signal-mcp-go/internal/rpc"
)

// defaultBackoff is the fixed delay before a reconnect attempt. The daemon
// is local, so a bounded retry every second is preferred over exponential
// backoff.
const defaultBackoff = time.Second

// Listener maintains a dedicated daemon connection that continuously reads
// push notifications and queues them for waiters.
//
// All read failures are absorbed internally: the listener reconnects in
// place after a fixed backoff and resumes reading. Stop closes the
// connection to unblock the read loop and waits for it to exit.
type Listener struct {
	log     *slog.Logger
	addr    string
	queue   *Queue
	backoff time.Duration

	mu      sync.Mutex
	running bool
	conn    *rpc.Conn
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// Option configures a Listener.
type Option func(*Listener)

// WithBackoff overrides the fixed reconnect delay.
func WithBackoff(d time.Duration) Option {
	return func(l *Listener) {
		l.backoff = d
	}
}

// NewListener creates a listener for the daemon at addr, queuing events
// onto q. The listener does not connect until Start.
func NewListener(log *slog.Logger, addr string, q *Queue, opts ...Option) *Listener {
	l := &Listener{
		log:     log.With("component", "listener"),
		addr:    addr,
		queue:   q,
		backoff: defaultBackoff,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Queue returns the event queue the listener feeds.
func (l *Listener) Queue() *Queue {
	return l.queue
}

// Running reports whether the read loop is active.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.running
}

// Start opens the listener's own connection and spawns the read loop.
// It is a no-op when the listener is already running.
func (l *Listener) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}

	conn, err := rpc.Dial(ctx, l.addr)
	if err != nil {
		return err
	}

	// The loop must outlive the (possibly short-lived) caller context:
	// the listener is session infrastructure, torn down only by Stop.
	loopCtx, cancel := context.WithCancel(context.Background())

	l.conn = conn
	l.cancel = cancel
	l.running = true

	l.wg.Add(1)

	go l.readLoop(loopCtx)

	l.log.Info("listener started", "addr", l.addr)

	return nil
}

// Stop shuts the listener down and waits for the read loop to exit.
// Closing the connection unblocks a read that is in flight. It is safe to
// call Stop multiple times; a stopped listener can be started again.
func (l *Listener) Stop() {
	l.mu.Lock()

	if !l.running {
		l.mu.Unlock()

		return
	}

	l.running = false
	l.cancel()

	if l.conn != nil {
		_ = l.conn.Close()
	}

	l.mu.Unlock()

	l.wg.Wait()
	l.log.Info("listener stopped")
}

// WaitFor blocks until an event satisfying pred is claimed, the timeout
// elapses, or ctx is cancelled. A nil pred matches any event.
//
// The listener is started lazily if needed. Events already queued are
// returned immediately without waiting. A timeout is a normal outcome and
// returns (nil, nil).
func (l *Listener) WaitFor(ctx context.Context, timeout time.Duration, pred Predicate) (*Event, error) {
	if err := l.Start(ctx); err != nil {
		return nil, err
	}

	log := l.log.With("wait_id", ulid.Make().String())
	log.Debug("waiting for message", "timeout", timeout)

	deadline := time.Now().Add(timeout)

	for {
		// Scan before blocking: already-queued matches return immediately.
		// The signal channel is captured under the queue lock, so a push
		// after an empty scan always wakes the wait below.
		ev, signal := l.queue.TakeFirst(pred)
		if ev != nil {
			log.Debug("claimed message", "sender", ev.Sender())

			return ev, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			log.Debug("wait timed out")

			return nil, nil
		}

		timer := time.NewTimer(remaining)

		select {
		case <-signal:
			timer.Stop()
			// Re-scan. Another waiter may have claimed the event first;
			// the signal is a unioned condition, not a per-predicate one.

		case <-timer.C:
			// Loop once more: a final scan catches an event that raced
			// the timer, and the deadline check returns nil otherwise.

		case <-ctx.Done():
			timer.Stop()

			return nil, ctx.Err()
		}
	}
}

// readLoop reads and classifies notifications until the listener stops.
func (l *Listener) readLoop(ctx context.Context) {
	defer l.wg.Done()
	defer l.log.Debug("read loop stopped")

	for {
		conn := l.currentConn()
		if conn == nil {
			return
		}

		line, err := conn.ReadLine()
		if err != nil {
			if ctx.Err() != nil || !l.Running() {
				return
			}

			l.log.Warn("daemon stream closed, reconnecting", "error", err)

			if !l.reconnect(ctx) {
				return
			}

			continue
		}

		ev, err := decodeEvent(line)
		if err != nil {
			// One bad line does not kill the listener.
			l.log.Warn("skipping malformed notification", "error", err)

			continue
		}

		if ev == nil {
			// Keepalive, delivery receipt, or empty envelope.
			continue
		}

		l.queue.Push(ev)
		l.log.Debug("queued message", "sender", ev.Sender(), "queue_len", l.queue.Len())
	}
}

// reconnect replaces the broken connection after the backoff delay,
// retrying until it succeeds or the listener stops.
func (l *Listener) reconnect(ctx context.Context) bool {
	for {
		select {
		case <-time.After(l.backoff):
		case <-ctx.Done():
			return false
		}

		if !l.Running() {
			return false
		}

		conn, err := rpc.Dial(ctx, l.addr)
		if err != nil {
			l.log.Warn("reconnect failed, retrying", "error", err, "backoff", l.backoff)

			continue
		}

		l.mu.Lock()

		if !l.running {
			l.mu.Unlock()
			_ = conn.Close()

			return false
		}

		if l.conn != nil {
			// Fresh connection replaces the old one; no state carries over.
			_ = l.conn.Close()
		}

		l.conn = conn
		l.mu.Unlock()

		l.log.Info("reconnected to daemon", "addr", l.addr)

		return true
	}
}

func (l *Listener) currentConn() *rpc.Conn {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.running {
		return nil
	}

	return l.conn
}
