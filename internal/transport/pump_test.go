package transport_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWAI-Ltd/Orbit/internal/proto"
	"github.com/SWAI-Ltd/Orbit/internal/queue"
	"github.com/SWAI-Ltd/Orbit/internal/transport"
)

// pumpPair connects a relay-side pump to a raw peer conn over TCP loopback.
// The pump carries ServerMessages out and ClientMessages in, like the relay's.
func pumpPair(t *testing.T, ctx context.Context, push func(proto.ClientMessage) error) (
	out *queue.Queue[proto.ServerMessage], peer transport.Conn, pumpErr <-chan error) {
	t.Helper()

	ln, err := transport.Listen(ctx, transport.NetworkTCP, "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	accepted := make(chan transport.Conn, 1)
	go func() {
		conn, err := ln.Accept(ctx)
		if err == nil {
			accepted <- conn
		}
	}()

	peer, err = transport.Dial(ctx, transport.NetworkTCP, ln.Addr())
	require.NoError(t, err)

	server := <-accepted
	out = queue.New[proto.ServerMessage]()
	errCh := make(chan error, 1)
	go func() {
		errCh <- transport.Pump[proto.ServerMessage, proto.ClientMessage](ctx, server, out, push)
	}()
	return out, peer, errCh
}

func waitErr(t *testing.T, ch <-chan error) error {
	t.Helper()
	select {
	case err := <-ch:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("pump did not exit")
		return nil
	}
}

func TestPumpWritesQueuedMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, peer, _ := pumpPair(t, ctx, func(proto.ClientMessage) error { return nil })
	defer peer.Close()

	id := proto.NewPeerID()
	require.NoError(t, out.Push(proto.Handshake(id)))
	require.NoError(t, out.Push(proto.PeerJoined(id)))

	var m proto.ServerMessage
	require.NoError(t, m.Decode(peer))
	assert.Equal(t, proto.Handshake(id), m)
	require.NoError(t, m.Decode(peer))
	assert.Equal(t, proto.PeerJoined(id), m)
}

func TestPumpDeliversInboundFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	inbound := queue.New[proto.ClientMessage]()
	out, peer, _ := pumpPair(t, ctx, inbound.Push)
	defer peer.Close()
	defer out.Close()

	circle := proto.Circle{Position: proto.Vec2{X: 3}, Radius: 1}
	require.NoError(t, proto.Ping().Encode(peer))
	require.NoError(t, proto.PlayerChanged(circle).Encode(peer))

	select {
	case m := <-inbound.Out():
		assert.Equal(t, proto.Ping(), m)
	case <-time.After(5 * time.Second):
		t.Fatal("no inbound message")
	}
	select {
	case m := <-inbound.Out():
		assert.Equal(t, proto.PlayerChanged(circle), m)
	case <-time.After(5 * time.Second):
		t.Fatal("no inbound message")
	}
}

func TestPumpClosedQueueShutsDownCleanly(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, peer, pumpErr := pumpPair(t, ctx, func(proto.ClientMessage) error { return nil })
	defer peer.Close()

	require.NoError(t, out.Push(proto.Heartbeat()))
	out.Close()

	assert.NoError(t, waitErr(t, pumpErr), "closed outbound queue is an orderly exit")

	// The queued message still went out before the shutdown.
	var m proto.ServerMessage
	require.NoError(t, m.Decode(peer))
	assert.Equal(t, proto.Heartbeat(), m)
	require.Error(t, m.Decode(peer), "stream must end after orderly shutdown")
}

func TestPumpReportsIOFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, peer, pumpErr := pumpPair(t, ctx, func(proto.ClientMessage) error { return nil })
	defer out.Close()

	peer.Close()
	assert.Error(t, waitErr(t, pumpErr), "a dead conn must surface to the owner")
}

func TestPumpStopsWhenConsumerGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out, peer, pumpErr := pumpPair(t, ctx, func(proto.ClientMessage) error {
		return errors.New("consumer gone")
	})
	defer peer.Close()
	defer out.Close()

	require.NoError(t, proto.Ping().Encode(peer))
	assert.NoError(t, waitErr(t, pumpErr), "a dropped consumer is not the pump's failure")
}
