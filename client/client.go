// Package client is the surface the presentation layer talks to: it submits
// local state changes and polls remote events, in one of two roles. Host runs
// an embedded relay and participates as its first peer; Connect joins a relay
// somewhere else as a pure remote peer.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SWAI-Ltd/Orbit/internal/proto"
	"github.com/SWAI-Ltd/Orbit/internal/queue"
	"github.com/SWAI-Ltd/Orbit/internal/relay"
	"github.com/SWAI-Ltd/Orbit/internal/transport"
)

var (
	// ErrDisconnected is the sticky terminal state: the underlying connection
	// has permanently torn down, and only a new client can recover.
	ErrDisconnected = errors.New("disconnected from relay")
	// ErrProtocolViolation means the first frame from the relay was not a
	// handshake. It is fatal to construction.
	ErrProtocolViolation = errors.New("protocol violation: first frame was not a handshake")
)

// Config for both roles.
type Config struct {
	// Addr is the listen address for Host, the relay address for Connect.
	Addr string
	// Network selects the transport: "tcp" (default) or "quic".
	Network string
	// Heartbeat overrides the relay keepalive period. Host only.
	Heartbeat time.Duration
}

// Client carries one peer identity and its two queues. Submit and Poll never
// block; teardown surfaces as ErrDisconnected from both.
type Client struct {
	id     proto.PeerID
	addr   string
	in     *queue.Queue[proto.ServerMessage]
	submit func(proto.ClientMessage) error

	closeOnce sync.Once
	closeErr  error
	closeFn   func() error
}

// Host starts an embedded relay and registers as its first peer. Local
// traffic goes through an in-process queue pair, never the wire codec.
func Host(ctx context.Context, cfg Config) (*Client, error) {
	r, err := relay.Start(ctx, relay.Config{
		Network:   cfg.Network,
		Addr:      cfg.Addr,
		Heartbeat: cfg.Heartbeat,
	})
	if err != nil {
		return nil, err
	}
	return &Client{
		id:      r.LocalID(),
		addr:    r.Addr(),
		in:      r.LocalEvents(),
		submit:  r.Submit,
		closeFn: r.Close,
	}, nil
}

// Connect dials a relay and joins as a remote peer. Construction performs the
// synchronous handshake: the first frame must be Handshake carrying this
// peer's assigned identity.
func Connect(ctx context.Context, cfg Config) (*Client, error) {
	conn, err := transport.Dial(ctx, cfg.Network, cfg.Addr)
	if err != nil {
		return nil, err
	}

	var hello proto.ServerMessage
	if err := hello.Decode(conn); err != nil {
		conn.Close()
		return nil, err
	}
	if hello.Type != proto.ServerHandshake {
		conn.Close()
		return nil, fmt.Errorf("%w (got type %d)", ErrProtocolViolation, hello.Type)
	}

	out := queue.New[proto.ClientMessage]()
	in := queue.New[proto.ServerMessage]()
	go func() {
		err := transport.Pump[proto.ClientMessage, proto.ServerMessage](ctx, conn, out, in.Push)
		if err != nil {
			slog.Debug("client: connection lost", "peer", hello.Peer, "err", err)
		}
		// Closing both queues is what makes Submit and Poll go sticky.
		out.Close()
		in.Close()
	}()

	return &Client{
		id:     hello.Peer,
		addr:   conn.RemoteAddr(),
		in:     in,
		submit: out.Push,
		closeFn: func() error {
			out.Close()
			return nil
		},
	}, nil
}

// ID is the peer identity assigned during construction: by the relay
// handshake for Connect, self-assigned for Host.
func (c *Client) ID() proto.PeerID { return c.id }

// Addr is the bound listen address in relay role (useful with ":0"), the
// relay's address in remote role.
func (c *Client) Addr() string { return c.addr }

// Submit enqueues one outbound message without blocking. It fails with
// ErrDisconnected once the connection has permanently torn down.
func (c *Client) Submit(m proto.ClientMessage) error {
	if err := m.Validate(); err != nil {
		return err
	}
	if err := c.submit(m); err != nil {
		return ErrDisconnected
	}
	return nil
}

// Poll returns the next buffered event in arrival order, or (nil, nil) when
// nothing is buffered. After teardown it returns ErrDisconnected on this and
// every later call.
func (c *Client) Poll() (*proto.ServerMessage, error) {
	select {
	case m, ok := <-c.in.Out():
		if !ok {
			return nil, ErrDisconnected
		}
		return &m, nil
	default:
		return nil, nil
	}
}

// Events is the channel behind Poll, for callers that want to block. It is
// closed on teardown. Mixing Events and Poll on one client is fine; each
// message is delivered once.
func (c *Client) Events() <-chan proto.ServerMessage { return c.in.Out() }

// Close tears the client down. In relay role the embedded relay stops; in
// remote role the outbound queue closes and the pump shuts the stream down
// cleanly. Idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { c.closeErr = c.closeFn() })
	return c.closeErr
}
