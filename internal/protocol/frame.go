// Package protocol implements the framed packet codec spoken on every
// connection: a big-endian u32 payload length followed by the payload
// bytes passed through the permutation in internal/crypto. Payloads are
// UTF-8 JSON objects, one Packet per frame.
package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/tornado80/sos-game-server/internal/crypto"
)

const (
	// FrameHeaderSize is the length prefix in bytes.
	FrameHeaderSize = 4

	// MaxFrameSize caps a single payload. A larger announced length is a
	// corrupt stream, not an allocation request.
	MaxFrameSize = 16 << 20
)

// WriteFrame writes one length-prefixed, obfuscated frame to w.
// payload is left untouched.
func WriteFrame(w io.Writer, payload []byte) error {
	if len(payload) > MaxFrameSize {
		return fmt.Errorf("frame payload %d exceeds limit %d", len(payload), MaxFrameSize)
	}

	buf := make([]byte, FrameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(buf[:FrameHeaderSize], uint32(len(payload)))
	copy(buf[FrameHeaderSize:], payload)
	crypto.Encode(buf[FrameHeaderSize:])

	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("writing frame: %w", err)
	}
	return nil
}

// ReadFrame reads one frame from r and returns the deobfuscated payload.
// A clean EOF before the header surfaces as io.EOF; a stream cut mid-frame
// surfaces as io.ErrUnexpectedEOF. Both are wrapped and match errors.Is.
func ReadFrame(r io.Reader) ([]byte, error) {
	var header [FrameHeaderSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("reading frame header: %w", err)
	}

	length := binary.BigEndian.Uint32(header[:])
	if length > MaxFrameSize {
		return nil, fmt.Errorf("frame payload %d exceeds limit %d", length, MaxFrameSize)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}
	crypto.Decode(payload)
	return payload, nil
}
