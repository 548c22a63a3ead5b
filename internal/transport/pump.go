package transport

import (
	"context"
	"errors"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/SWAI-Ltd/Orbit/internal/queue"
)

// Encodable is a message that writes itself to w as one frame.
type Encodable interface {
	Encode(w io.Writer) error
}

// Decodable is a message that reads itself from one frame on r.
type Decodable interface {
	Decode(r io.Reader) error
}

// errPumpDone marks the orderly exits: outbound queue closed, or the inbound
// consumer gone.
var errPumpDone = errors.New("pump done")

// Pump runs the per-connection loop: every message pulled from outbound is
// encoded and written immediately, every frame read from conn is decoded and
// handed to push. The two halves run concurrently, so a pending write never
// delays a read and vice versa.
//
// Pump returns nil when outbound is closed (the producer is done; the stream
// gets an orderly shutdown) or when push fails (the consumer is gone; no more
// reads are attempted). An I/O failure is returned to the owner, which must
// treat it as a disconnect.
func Pump[Out Encodable, In any, InPtr interface {
	*In
	Decodable
}](ctx context.Context, conn Conn, outbound *queue.Queue[Out], push func(In) error) error {
	g, ctx := errgroup.WithContext(ctx)

	// Reads have no deadline; closing the conn is the only way to unblock a
	// reader once the other half decides to stop.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	g.Go(func() error {
		for {
			select {
			case m, ok := <-outbound.Out():
				if !ok {
					conn.CloseWrite()
					return errPumpDone
				}
				if err := m.Encode(conn); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	g.Go(func() error {
		for {
			var m In
			if err := InPtr(&m).Decode(conn); err != nil {
				return err
			}
			if err := push(m); err != nil {
				return errPumpDone
			}
		}
	})

	err := g.Wait()
	conn.Close()
	if errors.Is(err, errPumpDone) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
