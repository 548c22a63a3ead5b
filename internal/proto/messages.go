package proto

import (
	"fmt"

	"github.com/google/uuid"
)

// PeerID is the process-unique identity the relay assigns to a peer at connect
// time. Never reused.
type PeerID = uuid.UUID

// NewPeerID returns a fresh identity.
func NewPeerID() PeerID { return uuid.New() }

// Vec2 is a 2D position.
type Vec2 struct {
	X float32 `cbor:"x"`
	Y float32 `cbor:"y"`
}

// RGB is a color with components in [0, 1].
type RGB struct {
	R float32 `cbor:"r"`
	G float32 `cbor:"g"`
	B float32 `cbor:"b"`
}

// Circle is a peer's published state. The relay forwards it without ever
// interpreting it; only the presentation layer reads the fields.
type Circle struct {
	Position Vec2    `cbor:"p"`
	Color    RGB     `cbor:"c"`
	Radius   float32 `cbor:"r"`
}

// Client message types (peer -> relay)
const (
	ClientDisconnect    = 1
	ClientPing          = 2
	ClientPlayerChanged = 3
)

// Server message types (relay -> peer)
const (
	ServerHandshake   = 1
	ServerPeerJoined  = 2
	ServerPeerLeft    = 3
	ServerPing        = 4
	ServerPeerChanged = 5
)

// ClientMessage is the peer -> relay envelope: a variant tag plus the fields
// of that variant.
type ClientMessage struct {
	Type   int     `cbor:"t"`
	Circle *Circle `cbor:"c,omitempty"`
}

// ServerMessage is the relay -> peer envelope.
type ServerMessage struct {
	Type   int     `cbor:"t"`
	Peer   PeerID  `cbor:"id"`
	Circle *Circle `cbor:"c,omitempty"`
}

// Disconnect announces an orderly leave.
func Disconnect() ClientMessage {
	return ClientMessage{Type: ClientDisconnect}
}

// Ping is the liveness echo a peer sends back for a relay heartbeat. It has no
// registry effect.
func Ping() ClientMessage {
	return ClientMessage{Type: ClientPing}
}

// PlayerChanged publishes this peer's new circle state.
func PlayerChanged(c Circle) ClientMessage {
	return ClientMessage{Type: ClientPlayerChanged, Circle: &c}
}

// Handshake carries the identity the relay assigned to a newly connected peer.
// It is always the first frame on a connection and is never broadcast.
func Handshake(id PeerID) ServerMessage {
	return ServerMessage{Type: ServerHandshake, Peer: id}
}

// PeerJoined announces a new peer to the registry, the new peer included.
func PeerJoined(id PeerID) ServerMessage {
	return ServerMessage{Type: ServerPeerJoined, Peer: id}
}

// PeerLeft announces that a peer disconnected or failed.
func PeerLeft(id PeerID) ServerMessage {
	return ServerMessage{Type: ServerPeerLeft, Peer: id}
}

// Heartbeat is the relay's keepalive broadcast.
func Heartbeat() ServerMessage {
	return ServerMessage{Type: ServerPing}
}

// PeerChanged forwards one peer's circle update to everybody.
func PeerChanged(id PeerID, c Circle) ServerMessage {
	return ServerMessage{Type: ServerPeerChanged, Peer: id, Circle: &c}
}

// Validate checks that the envelope is a known variant carrying the fields
// that variant requires.
func (m ClientMessage) Validate() error {
	switch m.Type {
	case ClientDisconnect, ClientPing:
		return nil
	case ClientPlayerChanged:
		if m.Circle == nil {
			return fmt.Errorf("PlayerChanged without a circle")
		}
		return nil
	default:
		return fmt.Errorf("unknown client message type %d", m.Type)
	}
}

// Validate checks that the envelope is a known variant carrying the fields
// that variant requires.
func (m ServerMessage) Validate() error {
	switch m.Type {
	case ServerPing:
		return nil
	case ServerHandshake, ServerPeerJoined, ServerPeerLeft:
		if m.Peer == uuid.Nil {
			return fmt.Errorf("server message type %d without a peer id", m.Type)
		}
		return nil
	case ServerPeerChanged:
		if m.Peer == uuid.Nil {
			return fmt.Errorf("PeerChanged without a peer id")
		}
		if m.Circle == nil {
			return fmt.Errorf("PeerChanged without a circle")
		}
		return nil
	default:
		return fmt.Errorf("unknown server message type %d", m.Type)
	}
}
