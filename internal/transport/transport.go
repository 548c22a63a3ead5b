// Package transport provides the byte streams the relay listens on and peers
// dial — plain TCP by default, QUIC behind a development TLS config — plus the
// per-connection pump that multiplexes a stream with its queue pair.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
)

// Supported networks.
const (
	NetworkTCP  = "tcp"
	NetworkQUIC = "quic"
)

// Conn is one ordered bidirectional byte stream between a peer and the relay.
// CloseWrite signals an orderly end of the outgoing half; Close tears the
// whole stream down.
type Conn interface {
	io.Reader
	io.Writer
	io.Closer
	CloseWrite() error
	RemoteAddr() string
}

// Listener accepts peer connections for the relay.
type Listener interface {
	Accept(ctx context.Context) (Conn, error)
	Addr() string
	Close() error
}

// Listen starts a listener on the given network. An empty network means TCP.
func Listen(ctx context.Context, network, addr string) (Listener, error) {
	switch network {
	case NetworkTCP, "":
		return listenTCP(addr)
	case NetworkQUIC:
		return listenQUIC(addr)
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}

// Dial opens one outbound connection to a relay.
func Dial(ctx context.Context, network, addr string) (Conn, error) {
	switch network {
	case NetworkTCP, "":
		return dialTCP(ctx, addr)
	case NetworkQUIC:
		return dialQUIC(ctx, addr)
	default:
		return nil, fmt.Errorf("unknown network %q", network)
	}
}

type tcpConn struct {
	*net.TCPConn
}

func (c tcpConn) RemoteAddr() string {
	return c.TCPConn.RemoteAddr().String()
}

type tcpListener struct {
	ln net.Listener
}

func listenTCP(addr string) (Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &tcpListener{ln: ln}, nil
}

func (l *tcpListener) Accept(ctx context.Context) (Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		return nil, err
	}
	return tcpConn{conn.(*net.TCPConn)}, nil
}

func (l *tcpListener) Addr() string { return l.ln.Addr().String() }

func (l *tcpListener) Close() error { return l.ln.Close() }

func dialTCP(ctx context.Context, addr string) (Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return tcpConn{conn.(*net.TCPConn)}, nil
}

// IsClosed reports whether err is the error a listener or conn returns after
// it has been shut down.
func IsClosed(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
