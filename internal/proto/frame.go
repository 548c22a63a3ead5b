package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// MaxFrameSize caps a single frame body. A prefix announcing more than this is
// treated as a malformed payload, not an allocation request.
const MaxFrameSize = 1 << 20

const prefixSize = 8

var (
	// ErrTruncatedStream means the stream ended before a complete frame was read.
	ErrTruncatedStream = errors.New("truncated stream")
	// ErrMalformedPayload means the frame body did not decode to a well-formed message.
	ErrMalformedPayload = errors.New("malformed payload")
)

// writeFrame marshals v and writes it as one frame: an 8-byte big-endian
// length prefix followed by exactly that many body bytes.
func writeFrame(w io.Writer, v any) error {
	body, err := cbor.Marshal(v)
	if err != nil {
		return err
	}
	var prefix [prefixSize]byte
	binary.BigEndian.PutUint64(prefix[:], uint64(len(body)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}

// readFrame reads one complete frame body from r.
func readFrame(r io.Reader) ([]byte, error) {
	var prefix [prefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedStream, err)
	}
	length := binary.BigEndian.Uint64(prefix[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: frame of %d bytes", ErrMalformedPayload, length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTruncatedStream, err)
	}
	return body, nil
}

// Encode writes the message to w as one length-prefixed frame.
func (m ClientMessage) Encode(w io.Writer) error {
	return writeFrame(w, m)
}

// Decode reads one frame from r and requires it to be a well-formed client message.
func (m *ClientMessage) Decode(r io.Reader) error {
	body, err := readFrame(r)
	if err != nil {
		return err
	}
	*m = ClientMessage{}
	if err := cbor.Unmarshal(body, m); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}

// Encode writes the message to w as one length-prefixed frame.
func (m ServerMessage) Encode(w io.Writer) error {
	return writeFrame(w, m)
}

// Decode reads one frame from r and requires it to be a well-formed server message.
func (m *ServerMessage) Decode(r io.Reader) error {
	body, err := readFrame(r)
	if err != nil {
		return err
	}
	*m = ServerMessage{}
	if err := cbor.Unmarshal(body, m); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if err := m.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
