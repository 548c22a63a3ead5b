package transport

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"math/big"
	"time"

	"github.com/quic-go/quic-go"
)

// Idle timeout well above the heartbeat period, so a quiet session survives.
var defaultQuicConfig = &quic.Config{
	MaxIdleTimeout: 5 * time.Minute,
}

// ProtoID is the ALPN identifier for the relay protocol.
const ProtoID = "orbit/1"

// quicConn adapts a QUIC session with one stream to Conn. The relay opens the
// stream: the relay speaks first (handshake frame), and an unopened stream is
// invisible to the other side until bytes flow.
type quicConn struct {
	sess   quic.Connection
	stream quic.Stream
}

func (c *quicConn) Read(p []byte) (int, error)  { return c.stream.Read(p) }
func (c *quicConn) Write(p []byte) (int, error) { return c.stream.Write(p) }

// CloseWrite half-closes the stream, sending a FIN like a TCP shutdown.
func (c *quicConn) CloseWrite() error { return c.stream.Close() }

func (c *quicConn) Close() error {
	c.stream.Close()
	return c.sess.CloseWithError(0, "")
}

func (c *quicConn) RemoteAddr() string { return c.sess.RemoteAddr().String() }

type quicListener struct {
	ln *quic.Listener
}

func listenQUIC(addr string) (Listener, error) {
	tlsCfg, err := generateTLSConfig()
	if err != nil {
		return nil, err
	}
	ln, err := quic.ListenAddr(addr, tlsCfg, defaultQuicConfig)
	if err != nil {
		return nil, err
	}
	return &quicListener{ln: ln}, nil
}

func (l *quicListener) Accept(ctx context.Context) (Conn, error) {
	sess, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, err
	}
	stream, err := sess.OpenStreamSync(ctx)
	if err != nil {
		sess.CloseWithError(0, "")
		return nil, err
	}
	return &quicConn{sess: sess, stream: stream}, nil
}

func (l *quicListener) Addr() string { return l.ln.Addr().String() }

func (l *quicListener) Close() error { return l.ln.Close() }

// dialQUIC connects and waits for the relay-opened stream (skips cert
// verification for dev, as the listener's cert is self-signed).
func dialQUIC(ctx context.Context, addr string) (Conn, error) {
	tlsCfg := &tls.Config{
		InsecureSkipVerify: true,
		NextProtos:         []string{ProtoID},
	}
	sess, err := quic.DialAddr(ctx, addr, tlsCfg, defaultQuicConfig)
	if err != nil {
		return nil, err
	}
	stream, err := sess.AcceptStream(ctx)
	if err != nil {
		sess.CloseWithError(0, "")
		return nil, err
	}
	return &quicConn{sess: sess, stream: stream}, nil
}

// generateTLSConfig creates a self-signed cert for development.
func generateTLSConfig() (*tls.Config, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	template := x509.Certificate{
		SerialNumber:          big.NewInt(1),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
	}
	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: certDER})
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		NextProtos:   []string{ProtoID},
	}, nil
}
