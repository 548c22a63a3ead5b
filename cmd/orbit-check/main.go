// orbit-check is a validation CLI: it joins a relay as a silent peer and
// confirms that the event stream it observes is well-formed (known variants,
// sane circle fields, consistent join/leave bookkeeping).
// Usage: go run ./cmd/orbit-check -relay 127.0.0.1:4000
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SWAI-Ltd/Orbit/client"
	"github.com/SWAI-Ltd/Orbit/internal/proto"
)

func main() {
	addr := flag.String("relay", "127.0.0.1:4000", "relay address")
	network := flag.String("network", "tcp", "transport: tcp or quic")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() { <-sigCh; cancel() }()

	c, err := client.Connect(ctx, client.Config{Addr: *addr, Network: *network})
	if err != nil {
		log.Fatalf("connect failed: %v", err)
	}
	defer c.Close()
	fmt.Printf("Joined relay %s as %s. Watching the event stream.\n", *addr, c.ID())

	peers := map[proto.PeerID]bool{}
	var okCount, failCount int
	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\nDone. Valid: %d, Invalid: %d\n", okCount, failCount)
			return
		case m, ok := <-c.Events():
			if !ok {
				fmt.Printf("\nDisconnected. Valid: %d, Invalid: %d\n", okCount, failCount)
				return
			}
			if m.Type == proto.ServerPing {
				_ = c.Submit(proto.Ping())
			}
			if err := check(m, peers, c.ID()); err != nil {
				failCount++
				fmt.Printf("[%s] FAIL %v\n", time.Now().Format("15:04:05"), err)
			} else {
				okCount++
			}
		}
	}
}

// check applies the stream-level rules a correct relay upholds. A PeerChanged
// from a peer that joined before we did is expected (the protocol has no
// snapshot message) and is reported as a note, not a failure.
func check(m proto.ServerMessage, peers map[proto.PeerID]bool, self proto.PeerID) error {
	if err := m.Validate(); err != nil {
		return err
	}
	switch m.Type {
	case proto.ServerHandshake:
		return fmt.Errorf("handshake after construction (peer %s)", m.Peer)
	case proto.ServerPeerJoined:
		if peers[m.Peer] {
			return fmt.Errorf("duplicate join for %s", m.Peer)
		}
		peers[m.Peer] = true
	case proto.ServerPeerLeft:
		if !peers[m.Peer] && m.Peer != self {
			return fmt.Errorf("leave for unknown peer %s", m.Peer)
		}
		delete(peers, m.Peer)
	case proto.ServerPeerChanged:
		cl := m.Circle
		if cl.Radius <= 0 {
			return fmt.Errorf("peer %s: radius %v", m.Peer, cl.Radius)
		}
		for _, v := range []float32{cl.Color.R, cl.Color.G, cl.Color.B} {
			if v < 0 || v > 1 {
				return fmt.Errorf("peer %s: color component %v out of range", m.Peer, v)
			}
		}
		if !peers[m.Peer] && m.Peer != self {
			fmt.Printf("note: update from %s, who joined before us\n", m.Peer)
		}
	}
	return nil
}
