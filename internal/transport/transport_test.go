package transport_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWAI-Ltd/Orbit/internal/transport"
)

// acceptOne runs the listener until one connection arrives.
func acceptOne(t *testing.T, ctx context.Context, ln transport.Listener) <-chan transport.Conn {
	t.Helper()
	ch := make(chan transport.Conn, 1)
	go func() {
		conn, err := ln.Accept(ctx)
		if err == nil {
			ch <- conn
		}
	}()
	return ch
}

func testRoundTrip(t *testing.T, network string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ln, err := transport.Listen(ctx, network, "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	// The relay side speaks first on every transport; on QUIC the dialer does
	// not even see the stream until those first bytes arrive.
	accepted := make(chan transport.Conn, 1)
	go func() {
		conn, err := ln.Accept(ctx)
		if err != nil {
			return
		}
		conn.Write([]byte("hello"))
		accepted <- conn
	}()

	dialed, err := transport.Dial(ctx, network, ln.Addr())
	require.NoError(t, err)
	defer dialed.Close()

	buf := make([]byte, 5)
	_, err = io.ReadFull(dialed, buf)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(buf))

	server := <-accepted
	defer server.Close()
	_, err = dialed.Write([]byte("world"))
	require.NoError(t, err)
	_, err = io.ReadFull(server, buf)
	require.NoError(t, err)
	assert.Equal(t, "world", string(buf))
}

func TestTCPRoundTrip(t *testing.T) {
	testRoundTrip(t, transport.NetworkTCP)
}

func TestQUICRoundTrip(t *testing.T) {
	testRoundTrip(t, transport.NetworkQUIC)
}

func TestUnknownNetwork(t *testing.T) {
	ctx := context.Background()
	_, err := transport.Listen(ctx, "carrier-pigeon", ":0")
	require.Error(t, err)
	_, err = transport.Dial(ctx, "carrier-pigeon", "localhost:1")
	require.Error(t, err)
}

func TestCloseWriteSignalsEOF(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	ln, err := transport.Listen(ctx, transport.NetworkTCP, "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	accepted := acceptOne(t, ctx, ln)
	dialed, err := transport.Dial(ctx, transport.NetworkTCP, ln.Addr())
	require.NoError(t, err)
	defer dialed.Close()

	server := <-accepted
	defer server.Close()
	require.NoError(t, server.CloseWrite())

	_, err = io.ReadFull(dialed, make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}
