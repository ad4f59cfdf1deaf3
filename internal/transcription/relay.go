package transcription

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/wolfman30/bakame-ivr/pkg/logging"
)

// Fragment is one piece of a live transcript. Interim fragments may be
// revised later; Final ones will not.
type Fragment struct {
	Text  string
	Final bool
}

// StreamConn is a live transcription session.
type StreamConn interface {
	Send(ctx context.Context, frame []byte) error
	// CloseSend tells the service no more audio follows; it flushes
	// remaining fragments and then Recv reports io.EOF.
	CloseSend(ctx context.Context) error
	Recv(ctx context.Context) (Fragment, error)
	Close() error
}

// PersistFunc receives every non-empty final fragment, in order.
type PersistFunc func(ctx context.Context, f Fragment) error

// Relay forwards audio frames to a StreamConn and hands final fragments to a
// persist callback.
type Relay struct {
	conn   StreamConn
	logger *logging.Logger
}

func NewRelay(conn StreamConn, logger *logging.Logger) *Relay {
	if conn == nil {
		panic("transcription: stream conn cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Relay{conn: conn, logger: logger}
}

// Run blocks until frames is closed and the service has flushed, ctx is
// cancelled, or either side fails. The connection is closed on return.
func (r *Relay) Run(ctx context.Context, frames <-chan []byte, persist PersistFunc) error {
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case frame, ok := <-frames:
				if !ok {
					if err := r.conn.CloseSend(gctx); err != nil && gctx.Err() == nil {
						return err
					}
					return nil
				}
				if len(frame) == 0 {
					continue
				}
				if err := r.conn.Send(gctx, frame); err != nil {
					if gctx.Err() != nil {
						return nil
					}
					return err
				}
			}
		}
	})

	g.Go(func() error {
		defer cancel()
		for {
			frag, err := r.conn.Recv(gctx)
			if err != nil {
				if errors.Is(err, io.EOF) || gctx.Err() != nil {
					return nil
				}
				return err
			}
			if !frag.Final || frag.Text == "" {
				continue
			}
			if persist == nil {
				continue
			}
			if err := persist(gctx, frag); err != nil {
				r.logger.Warn("transcript fragment not persisted", "error", err)
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		if err := r.conn.Close(); err != nil {
			r.logger.Debug("stream close", "error", err)
		}
		return nil
	})

	err := g.Wait()
	if parentErr := parent.Err(); parentErr != nil {
		return parentErr
	}
	return err
}
