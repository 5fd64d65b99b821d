// Package codec implements the wire format of the control socket.
//
// Every message is one frame: a 4-byte big-endian payload length followed
// by the payload. Payloads are CBOR (RFC 8949) using Core Deterministic
// Encoding, so the same request always produces the same bytes.
package codec

import (
	"encoding/binary"
	"fmt"
	"io"
)

// headerLength is the fixed size of a frame header.
const headerLength = 4

// MaxPayloadLength bounds a single frame. Requests are a handful of strings;
// anything larger is treated as a malformed stream.
const MaxPayloadLength = 1 << 20

// WriteFrame writes payload to w as one frame.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxPayloadLength {
		return fmt.Errorf("payload length %d exceeds maximum %d", len(payload), MaxPayloadLength)
	}
	buf := make([]byte, headerLength+len(payload))
	binary.BigEndian.PutUint32(buf[:headerLength], uint32(len(payload)))
	copy(buf[headerLength:], payload)
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r. Short reads are resumed until the whole
// frame has arrived. A stream that ends early or announces an oversized
// payload yields a *DecodeError; other read failures are returned wrapped.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [headerLength]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		if err == io.ErrUnexpectedEOF {
			return nil, &DecodeError{Op: "frame header", Err: fmt.Errorf("truncated header: %w", err)}
		}
		return nil, fmt.Errorf("read frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxPayloadLength {
		return nil, &DecodeError{Op: "frame header", Err: fmt.Errorf("payload length %d exceeds maximum %d", length, MaxPayloadLength)}
	}

	payload := make([]byte, length)
	if length > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.ErrUnexpectedEOF || err == io.EOF {
				return nil, &DecodeError{Op: "frame payload", Err: fmt.Errorf("truncated payload: want %d bytes: %w", length, io.ErrUnexpectedEOF)}
			}
			return nil, fmt.Errorf("read frame payload: %w", err)
		}
	}
	return payload, nil
}
