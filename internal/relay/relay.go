// Package relay implements the server side: an accept loop, the registry of
// connected peers, and the event loop that fans every game event out to all
// of them.
package relay

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/SWAI-Ltd/Orbit/internal/proto"
	"github.com/SWAI-Ltd/Orbit/internal/queue"
	"github.com/SWAI-Ltd/Orbit/internal/transport"
)

// DefaultHeartbeat is the keepalive broadcast period.
const DefaultHeartbeat = 1000 * time.Millisecond

// Config for a relay.
type Config struct {
	// Network selects the transport: "tcp" (default) or "quic".
	Network string
	// Addr is the listen address, e.g. "127.0.0.1:4000" or ":0".
	Addr string
	// Heartbeat overrides the keepalive period; 0 means DefaultHeartbeat.
	Heartbeat time.Duration
}

// control is one message from a connected peer, tagged with its identity.
type control struct {
	from proto.PeerID
	msg  proto.ClientMessage
}

// Relay owns the registry of connected peers. The registry map is touched
// only by the run loop goroutine; connection pumps and the embedded local
// peer talk to it exclusively through the control inbox.
type Relay struct {
	ln        transport.Listener
	inbox     *queue.Queue[control]
	conns     chan transport.Conn
	clients   map[proto.PeerID]*queue.Queue[proto.ServerMessage]
	heartbeat time.Duration

	local    proto.PeerID
	localOut *queue.Queue[proto.ServerMessage]

	cancel context.CancelFunc
	tasks  *errgroup.Group
}

// Start listens on cfg.Addr, registers the embedded local peer, and spawns
// the accept and event loops. The local peer's first event is its own
// PeerJoined; its identity is self-assigned, with no handshake round-trip.
func Start(ctx context.Context, cfg Config) (*Relay, error) {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = DefaultHeartbeat
	}
	ln, err := transport.Listen(ctx, cfg.Network, cfg.Addr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	tasks, ctx := errgroup.WithContext(ctx)
	r := &Relay{
		ln:        ln,
		inbox:     queue.New[control](),
		conns:     make(chan transport.Conn),
		clients:   make(map[proto.PeerID]*queue.Queue[proto.ServerMessage]),
		heartbeat: cfg.Heartbeat,
		local:     proto.NewPeerID(),
		localOut:  queue.New[proto.ServerMessage](),
		cancel:    cancel,
		tasks:     tasks,
	}

	// Registered before the loops exist, so no other goroutine sees the map.
	r.clients[r.local] = r.localOut
	r.broadcast(proto.PeerJoined(r.local))

	tasks.Go(func() error { return r.acceptLoop(ctx) })
	tasks.Go(func() error { return r.run(ctx) })
	slog.Info("relay listening", "addr", ln.Addr(), "local", r.local)
	return r, nil
}

// LocalID is the self-assigned identity of the embedded local peer.
func (r *Relay) LocalID() proto.PeerID { return r.local }

// LocalEvents is the embedded local peer's inbound queue. Local traffic never
// touches the wire codec.
func (r *Relay) LocalEvents() *queue.Queue[proto.ServerMessage] { return r.localOut }

// Addr is the bound listen address.
func (r *Relay) Addr() string { return r.ln.Addr() }

// Submit feeds one message from the embedded local peer into the event loop.
func (r *Relay) Submit(m proto.ClientMessage) error {
	return r.inbox.Push(control{from: r.local, msg: m})
}

// Close shuts the relay down: listener, loops, pumps, and every registered
// peer queue. Safe to call more than once.
func (r *Relay) Close() error {
	r.ln.Close()
	r.inbox.Close()
	r.cancel()
	return r.tasks.Wait()
}

func (r *Relay) acceptLoop(ctx context.Context) error {
	for {
		conn, err := r.ln.Accept(ctx)
		if err != nil {
			if ctx.Err() != nil || transport.IsClosed(err) {
				return nil
			}
			slog.Warn("relay: accept failed", "err", err)
			continue
		}
		select {
		case r.conns <- conn:
		case <-ctx.Done():
			conn.Close()
			return nil
		}
	}
}

// run is the event loop. One iteration handles exactly one of: a new inbound
// connection, one control message from a still-registered peer, or a
// heartbeat tick. The ticker's one-deep channel coalesces missed ticks, so a
// stalled loop never catches up with a burst of pings.
func (r *Relay) run(ctx context.Context) error {
	ticker := time.NewTicker(r.heartbeat)
	defer ticker.Stop()
	defer r.closeAll()

	for {
		select {
		case conn := <-r.conns:
			r.join(ctx, conn)
		case c, ok := <-r.inbox.Out():
			if !ok {
				return nil
			}
			if _, registered := r.clients[c.from]; !registered {
				// A pump can still deliver after its peer was removed.
				continue
			}
			r.dispatch(c)
		case <-ticker.C:
			r.broadcast(proto.Heartbeat())
		case <-ctx.Done():
			return nil
		}
	}
}

// join assigns a fresh identity, queues the handshake as the first frame,
// registers the peer, announces it to everyone including itself, and spawns
// the connection pump.
func (r *Relay) join(ctx context.Context, conn transport.Conn) {
	id := proto.NewPeerID()
	out := queue.New[proto.ServerMessage]()
	out.Push(proto.Handshake(id))
	r.clients[id] = out
	r.broadcast(proto.PeerJoined(id))
	slog.Info("relay: peer joined", "peer", id, "addr", conn.RemoteAddr())

	r.tasks.Go(func() error {
		err := transport.Pump[proto.ServerMessage, proto.ClientMessage](ctx, conn, out,
			func(m proto.ClientMessage) error {
				return r.inbox.Push(control{from: id, msg: m})
			})
		if err != nil {
			// An I/O failure is this peer's problem only: log it and turn it
			// into a leave, the relay keeps serving everyone else.
			slog.Info("relay: peer connection failed", "peer", id, "err", err)
			_ = r.inbox.Push(control{from: id, msg: proto.Disconnect()})
		}
		return nil
	})
}

func (r *Relay) dispatch(c control) {
	switch c.msg.Type {
	case proto.ClientDisconnect:
		out := r.clients[c.from]
		delete(r.clients, c.from)
		out.Close()
		r.broadcast(proto.PeerLeft(c.from))
		slog.Info("relay: peer left", "peer", c.from)
	case proto.ClientPing:
		// Liveness signal only; intentionally no registry effect.
	case proto.ClientPlayerChanged:
		r.broadcast(proto.PeerChanged(c.from, *c.msg.Circle))
	default:
		slog.Warn("relay: dropping unknown message", "peer", c.from, "type", c.msg.Type)
	}
}

// broadcast enqueues m to every registered peer. A failed push means that
// peer's pump already tore down; its own removal follows, so the failure is
// dropped silently.
func (r *Relay) broadcast(m proto.ServerMessage) {
	for _, out := range r.clients {
		_ = out.Push(m)
	}
}

func (r *Relay) closeAll() {
	for id, out := range r.clients {
		delete(r.clients, id)
		out.Close()
	}
}
