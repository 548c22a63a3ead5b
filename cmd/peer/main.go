package main

import (
	"context"
	"flag"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SWAI-Ltd/Orbit/client"
	"github.com/SWAI-Ltd/Orbit/internal/discovery"
	"github.com/SWAI-Ltd/Orbit/internal/proto"
)

func main() {
	addr := flag.String("relay", "127.0.0.1:4000", "relay address")
	network := flag.String("network", "tcp", "transport: tcp or quic")
	discover := flag.Bool("discover", false, "find a relay over mDNS instead of -relay")
	rate := flag.Duration("rate", 250*time.Millisecond, "how often to move the circle")
	radius := flag.Float64("radius", 0.5, "circle radius")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	relayAddr := *addr
	if *discover {
		found, err := findRelay(ctx)
		if err != nil {
			slog.Error("mDNS discovery failed", "err", err)
			os.Exit(1)
		}
		relayAddr = found
		slog.Info("discovered relay", "addr", relayAddr)
	}

	c, err := client.Connect(ctx, client.Config{Addr: relayAddr, Network: *network})
	if err != nil {
		slog.Error("failed to connect", "err", err)
		os.Exit(1)
	}
	defer c.Close()
	slog.Info("connected", "relay", relayAddr, "id", c.ID())

	circle := proto.Circle{
		Color:  proto.RGB{R: rand.Float32(), G: rand.Float32(), B: rand.Float32()},
		Radius: float32(*radius),
	}
	if err := c.Submit(proto.PlayerChanged(circle)); err != nil {
		slog.Error("initial update failed", "err", err)
		os.Exit(1)
	}

	ticker := time.NewTicker(*rate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Best effort: tell the relay we are leaving before the queues close.
			_ = c.Submit(proto.Disconnect())
			slog.Info("peer shutting down")
			return
		case <-ticker.C:
			circle.Position.X += rand.Float32() - 0.5
			circle.Position.Y += rand.Float32() - 0.5
			if err := c.Submit(proto.PlayerChanged(circle)); err != nil {
				slog.Error("relay gone", "err", err)
				return
			}
		case m, ok := <-c.Events():
			if !ok {
				slog.Error("disconnected from relay")
				return
			}
			switch m.Type {
			case proto.ServerPing:
				_ = c.Submit(proto.Ping())
			case proto.ServerPeerJoined:
				slog.Info("peer joined", "peer", m.Peer)
			case proto.ServerPeerLeft:
				slog.Info("peer left", "peer", m.Peer)
			case proto.ServerPeerChanged:
				slog.Debug("peer changed", "peer", m.Peer,
					"x", m.Circle.Position.X, "y", m.Circle.Position.Y)
			}
		}
	}
}

// findRelay blocks until mDNS turns up a relay or the context ends.
func findRelay(ctx context.Context) (string, error) {
	found := make(chan string, 1)
	d, err := discovery.Browse(func(r discovery.Relay) {
		select {
		case found <- r.Addr:
		default:
		}
	})
	if err != nil {
		return "", err
	}
	defer d.Close()

	select {
	case addr := <-found:
		return addr, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
