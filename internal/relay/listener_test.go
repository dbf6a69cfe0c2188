package relay

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/sigmcp/signal-mcp-go/internal/logging"
)

// fakeStream is a TCP endpoint standing in for the daemon's notification
// stream. Tests pull accepted connections off the conns channel and write
// raw lines into them.
type fakeStream struct {
	ln    net.Listener
	conns chan net.Conn
}

func newFakeStream(t *testing.T) *fakeStream {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeStream{ln: ln, conns: make(chan net.Conn, 4)}

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}

			f.conns <- conn
		}
	}()

	t.Cleanup(func() { _ = ln.Close() })

	return f
}

func (f *fakeStream) addr() string {
	return f.ln.Addr().String()
}

func (f *fakeStream) accept(t *testing.T) net.Conn {
	t.Helper()

	select {
	case conn := <-f.conns:
		t.Cleanup(func() { _ = conn.Close() })

		return conn

	case <-time.After(3 * time.Second):
		t.Fatal("no connection from listener")

		return nil
	}
}

func writeLine(t *testing.T, conn net.Conn, line string) {
	t.Helper()

	_, err := conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func receiveLine(sender, body string) string {
	return fmt.Sprintf(
		`{"jsonrpc":"2.0","method":"receive","params":{"envelope":{`+
			`"source":%q,"sourceNumber":%q,"timestamp":1700000000000,`+
			`"dataMessage":{"message":%q}}}}`,
		sender, sender, body,
	)
}

func newTestListener(t *testing.T, f *fakeStream, opts ...Option) *Listener {
	t.Helper()

	l := NewListener(logging.NewNop(), f.addr(), NewQueue(100), opts...)
	t.Cleanup(l.Stop)

	return l
}

func TestListener_StartIsIdempotent(t *testing.T) {
	stream := newFakeStream(t)
	l := newTestListener(t, stream)

	require.NoError(t, l.Start(context.Background()))
	require.True(t, l.Running())

	stream.accept(t)

	// Second start is a no-op: no second connection is dialed.
	require.NoError(t, l.Start(context.Background()))

	select {
	case <-stream.conns:
		t.Fatal("start on a running listener dialed a new connection")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestListener_QueuesReceiveNotifications(t *testing.T) {
	stream := newFakeStream(t)
	l := newTestListener(t, stream)

	require.NoError(t, l.Start(context.Background()))
	conn := stream.accept(t)

	writeLine(t, conn, receiveLine("+15551111111", "hello"))

	require.Eventually(t, func() bool {
		return l.Queue().Len() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestListener_DiscardsReceiptsAndKeepalives(t *testing.T) {
	stream := newFakeStream(t)
	l := newTestListener(t, stream)

	require.NoError(t, l.Start(context.Background()))
	conn := stream.accept(t)

	writeLine(t, conn, `{"jsonrpc":"2.0","method":"receive","params":{"envelope":{"source":"+1555","receiptMessage":{"isDelivery":true}}}}`)
	writeLine(t, conn, `{"jsonrpc":"2.0","method":"ping"}`)
	writeLine(t, conn, receiveLine("+15551111111", "real message"))

	require.Eventually(t, func() bool {
		return l.Queue().Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	events := l.Queue().Snapshot()
	require.Len(t, events, 1)
	require.Equal(t, "real message", events[0].Body())
}

func TestListener_SkipsMalformedLines(t *testing.T) {
	stream := newFakeStream(t)
	l := newTestListener(t, stream)

	require.NoError(t, l.Start(context.Background()))
	conn := stream.accept(t)

	writeLine(t, conn, "garbage that is not json")
	writeLine(t, conn, receiveLine("+15551111111", "survived"))

	ev, err := l.WaitFor(context.Background(), 2*time.Second, nil)
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.Equal(t, "survived", ev.Body())
}

func TestListener_WaitForReturnsQueuedEventImmediately(t *testing.T) {
	stream := newFakeStream(t)
	l := newTestListener(t, stream)

	require.NoError(t, l.Start(context.Background()))
	conn := stream.accept(t)

	writeLine(t, conn, receiveLine("+15551111111", "already here"))

	require.Eventually(t, func() bool {
		return l.Queue().Len() == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The event is queued before the wait begins, so the call must not
	// sit out any part of the 10s timeout.
	start := time.Now()
	ev, err := l.WaitFor(context.Background(), 10*time.Second, nil)

	require.NoError(t, err)
	require.NotNil(t, ev)
	require.Equal(t, "already here", ev.Body())
	require.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestListener_WaitForTimeoutFidelity(t *testing.T) {
	stream := newFakeStream(t)
	l := newTestListener(t, stream)

	require.NoError(t, l.Start(context.Background()))
	stream.accept(t)

	timeout := 300 * time.Millisecond

	start := time.Now()
	ev, err := l.WaitFor(context.Background(), timeout, nil)
	elapsed := time.Since(start)

	require.NoError(t, err)
	require.Nil(t, ev)
	require.GreaterOrEqual(t, elapsed, timeout)
	require.Less(t, elapsed, timeout+300*time.Millisecond)
}

func TestListener_WaitForFiltersBySender(t *testing.T) {
	stream := newFakeStream(t)
	l := newTestListener(t, stream)

	require.NoError(t, l.Start(context.Background()))
	conn := stream.accept(t)

	writeLine(t, conn, receiveLine("u1", "first"))
	writeLine(t, conn, receiveLine("u1", "second"))
	writeLine(t, conn, receiveLine("u2", "third"))

	require.Eventually(t, func() bool {
		return l.Queue().Len() == 3
	}, 2*time.Second, 10*time.Millisecond)

	ev, err := l.WaitFor(context.Background(), 2*time.Second, func(ev *Event) bool {
		return ev.Sender() == "u2"
	})
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.Equal(t, "third", ev.Body())
	require.Equal(t, 2, l.Queue().Len())
}

func TestListener_AtMostOneWaiterClaimsEachEvent(t *testing.T) {
	stream := newFakeStream(t)
	l := newTestListener(t, stream)

	require.NoError(t, l.Start(context.Background()))
	conn := stream.accept(t)

	const waiters = 4

	var claimed atomic.Int32

	var g errgroup.Group

	ready := make(chan struct{}, waiters)

	for range waiters {
		g.Go(func() error {
			ready <- struct{}{}

			ev, err := l.WaitFor(context.Background(), time.Second, nil)
			if err != nil {
				return err
			}

			if ev != nil {
				claimed.Add(1)
			}

			return nil
		})
	}

	for range waiters {
		<-ready
	}

	// Give the waiters a moment to block, then deliver a single event.
	time.Sleep(50 * time.Millisecond)
	writeLine(t, conn, receiveLine("+15551111111", "only one"))

	require.NoError(t, g.Wait())
	require.Equal(t, int32(1), claimed.Load())
	require.Equal(t, 0, l.Queue().Len())
}

func TestListener_ReconnectsAfterStreamClosure(t *testing.T) {
	stream := newFakeStream(t)
	l := newTestListener(t, stream, WithBackoff(50*time.Millisecond))

	require.NoError(t, l.Start(context.Background()))
	first := stream.accept(t)

	// Simulate the daemon dropping the stream.
	require.NoError(t, first.Close())

	// The listener reconnects on its own and resumes queuing.
	second := stream.accept(t)
	writeLine(t, second, receiveLine("+15551111111", "after reconnect"))

	ev, err := l.WaitFor(context.Background(), 3*time.Second, nil)
	require.NoError(t, err)
	require.NotNil(t, ev)
	require.Equal(t, "after reconnect", ev.Body())
}

func TestListener_StopWaitsForReadLoop(t *testing.T) {
	stream := newFakeStream(t)
	l := newTestListener(t, stream)

	require.NoError(t, l.Start(context.Background()))
	stream.accept(t)

	l.Stop()
	require.False(t, l.Running())

	// Stop is idempotent.
	l.Stop()
}

func TestListener_WaitForStartsLazily(t *testing.T) {
	stream := newFakeStream(t)
	l := newTestListener(t, stream)

	var g errgroup.Group

	g.Go(func() error {
		ev, err := l.WaitFor(context.Background(), 3*time.Second, nil)
		if err != nil {
			return err
		}

		if ev == nil {
			return fmt.Errorf("expected an event, got none")
		}

		return nil
	})

	// WaitFor dialed the connection itself.
	conn := stream.accept(t)
	writeLine(t, conn, receiveLine("+15551111111", "lazy"))

	require.NoError(t, g.Wait())
	require.True(t, l.Running())
}

func TestListener_WaitForContextCancellation(t *testing.T) {
	stream := newFakeStream(t)
	l := newTestListener(t, stream)

	require.NoError(t, l.Start(context.Background()))
	stream.accept(t)

	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	_, err := l.WaitFor(ctx, 10*time.Second, nil)
	require.ErrorIs(t, err, context.Canceled)
}
