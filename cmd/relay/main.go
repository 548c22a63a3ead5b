package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/SWAI-Ltd/Orbit/client"
	"github.com/SWAI-Ltd/Orbit/internal/discovery"
	"github.com/SWAI-Ltd/Orbit/internal/proto"
)

func main() {
	addr := flag.String("addr", ":4000", "listen address")
	network := flag.String("network", "tcp", "transport: tcp or quic")
	heartbeat := flag.Duration("heartbeat", time.Second, "keepalive broadcast period")
	announce := flag.Bool("announce", false, "announce this relay over mDNS")
	name := flag.String("name", "orbit-relay", "mDNS instance name")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		cancel()
	}()

	c, err := client.Host(ctx, client.Config{
		Addr:      *addr,
		Network:   *network,
		Heartbeat: *heartbeat,
	})
	if err != nil {
		slog.Error("failed to start relay", "err", err)
		os.Exit(1)
	}
	defer c.Close()
	slog.Info("relay up", "addr", c.Addr(), "id", c.ID())

	if *announce {
		_, portStr, err := net.SplitHostPort(c.Addr())
		if err != nil {
			slog.Error("cannot announce", "addr", c.Addr(), "err", err)
			os.Exit(1)
		}
		port, _ := strconv.Atoi(portStr)
		d, err := discovery.Announce(*name, port)
		if err != nil {
			slog.Error("mDNS announce failed", "err", err)
			os.Exit(1)
		}
		defer d.Close()
		slog.Info("announced over mDNS", "name", *name, "port", port)
	}

	for {
		select {
		case <-ctx.Done():
			slog.Info("relay shutting down")
			return
		case m, ok := <-c.Events():
			if !ok {
				slog.Error("relay torn down")
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
				slog.Debug("peer changed", "peer", m.Peer)
			}
		}
	}
}
