package transcription

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// fakeConn echoes each frame back as an interim and a final fragment.
type fakeConn struct {
	mu      sync.Mutex
	sent    [][]byte
	out     chan Fragment
	closed  chan struct{}
	once    sync.Once
	sendErr error
	recvErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{out: make(chan Fragment, 16), closed: make(chan struct{})}
}

func (f *fakeConn) Send(_ context.Context, frame []byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, frame)
	f.mu.Unlock()
	f.out <- Fragment{Text: string(frame) + "...", Final: false}
	f.out <- Fragment{Text: string(frame), Final: true}
	return nil
}

func (f *fakeConn) CloseSend(context.Context) error {
	close(f.out)
	return nil
}

func (f *fakeConn) Recv(ctx context.Context) (Fragment, error) {
	if f.recvErr != nil {
		return Fragment{}, f.recvErr
	}
	select {
	case frag, ok := <-f.out:
		if !ok {
			return Fragment{}, io.EOF
		}
		return frag, nil
	case <-f.closed:
		return Fragment{}, errors.New("use of closed connection")
	case <-ctx.Done():
		return Fragment{}, ctx.Err()
	}
}

func (f *fakeConn) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func quietLogger() *logging.Logger { return logging.NewWithWriter("error", io.Discard) }

func TestRelay_PersistsOnlyFinalFragmentsInOrder(t *testing.T) {
	conn := newFakeConn()
	frames := make(chan []byte, 4)
	frames <- []byte("hello")
	frames <- []byte{}
	frames <- []byte("world")
	close(frames)

	var got []string
	err := NewRelay(conn, quietLogger()).Run(context.Background(), frames, func(_ context.Context, f Fragment) error {
		got = append(got, f.Text)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world"}, got)
	assert.Len(t, conn.sent, 2)
	select {
	case <-conn.closed:
	default:
		t.Fatal("expected connection to be closed")
	}
}

func TestRelay_StopsOnContextCancel(t *testing.T) {
	conn := newFakeConn()
	frames := make(chan []byte)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- NewRelay(conn, quietLogger()).Run(ctx, frames, nil) }()

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not stop after cancel")
	}
}

func TestRelay_UpstreamErrorEndsRun(t *testing.T) {
	conn := newFakeConn()
	conn.recvErr = errors.New("socket reset")
	frames := make(chan []byte)

	err := NewRelay(conn, quietLogger()).Run(context.Background(), frames, nil)
	assert.EqualError(t, err, "socket reset")
}

func TestRelay_PersistFailureDoesNotStopStream(t *testing.T) {
	conn := newFakeConn()
	frames := make(chan []byte, 2)
	frames <- []byte("one")
	frames <- []byte("two")
	close(frames)

	calls := 0
	err := NewRelay(conn, quietLogger()).Run(context.Background(), frames, func(context.Context, Fragment) error {
		calls++
		return errors.New("store down")
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
