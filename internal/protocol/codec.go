package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope framing, big-endian:
//
//	[ flags u8 | typeLen u8 | type bytes | payloadLen u32 | payload bytes ]
//
// flags bit 0 marks a compressed payload; the remaining bits are
// reserved and must be zero.
const (
	flagCompressed = 0x01
	reservedFlags  = ^byte(flagCompressed)

	headerSize = 1 + 1 + 4

	// MaxPayloadSize bounds a single payload (pre-compression).
	MaxPayloadSize = 1 << 20

	// compressionThreshold is the minimum raw payload size before
	// compression is even attempted.
	compressionThreshold = 100
)

var (
	ErrFrameTooShort   = errors.New("protocol: frame too short")
	ErrFrameTruncated  = errors.New("protocol: frame truncated")
	ErrEmptyType       = errors.New("protocol: empty message type")
	ErrTypeTooLong     = errors.New("protocol: message type too long")
	ErrPayloadTooLarge = errors.New("protocol: payload too large")
	ErrReservedFlags   = errors.New("protocol: reserved flag bits set")
	ErrCorruptPayload  = errors.New("protocol: corrupt compressed payload")
	ErrTrailingGarbage = errors.New("protocol: trailing bytes after payload")
)

// Codec turns typed messages into wire frames and back. It is stateless
// and safe for concurrent use from any number of connections.
type Codec struct {
	compression Compression
}

func NewCodec(compression Compression) *Codec {
	return &Codec{compression: compression}
}

// Encode serializes payload and wraps it in an envelope. Compression is
// opportunistic: only attempted above the threshold, and only kept when
// strictly smaller than the raw bytes, so a compressed frame is never
// larger than its uncompressed form.
func (c *Codec) Encode(msgType string, payload any) ([]byte, error) {
	if msgType == "" {
		return nil, ErrEmptyType
	}
	if len(msgType) > 255 {
		return nil, ErrTypeTooLong
	}

	var raw []byte
	if payload != nil {
		var err error
		raw, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal %s: %w", msgType, err)
		}
	}
	if len(raw) > MaxPayloadSize {
		return nil, ErrPayloadTooLarge
	}

	var flags byte
	if c.compression != CompressionNone && len(raw) > compressionThreshold {
		compressed, err := compress(c.compression, raw)
		if err != nil {
			return nil, fmt.Errorf("protocol: compress %s: %w", msgType, err)
		}
		if len(compressed) < len(raw) {
			raw = compressed
			flags |= flagCompressed
		}
	}

	frame := make([]byte, 0, headerSize+len(msgType)+len(raw))
	frame = append(frame, flags, byte(len(msgType)))
	frame = append(frame, msgType...)
	frame = binary.BigEndian.AppendUint32(frame, uint32(len(raw)))
	frame = append(frame, raw...)
	return frame, nil
}

// Decode parses an envelope and returns the message type plus the raw
// (decompressed) payload bytes. It never interprets the payload; pass
// the result to DecodePayload for that.
func (c *Codec) Decode(frame []byte) (string, []byte, error) {
	if len(frame) < headerSize {
		return "", nil, ErrFrameTooShort
	}

	flags := frame[0]
	if flags&reservedFlags != 0 {
		return "", nil, ErrReservedFlags
	}

	typeLen := int(frame[1])
	if typeLen == 0 {
		return "", nil, ErrEmptyType
	}
	if len(frame) < 2+typeLen+4 {
		return "", nil, ErrFrameTruncated
	}

	msgType := string(frame[2 : 2+typeLen])
	payloadLen := binary.BigEndian.Uint32(frame[2+typeLen : 2+typeLen+4])
	if payloadLen > MaxPayloadSize {
		return "", nil, ErrPayloadTooLarge
	}

	body := frame[2+typeLen+4:]
	if uint32(len(body)) < payloadLen {
		return "", nil, ErrFrameTruncated
	}
	if uint32(len(body)) > payloadLen {
		return "", nil, ErrTrailingGarbage
	}

	raw := make([]byte, payloadLen)
	copy(raw, body)

	if flags&flagCompressed != 0 {
		decompressed, err := decompress(c.compression, raw)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrCorruptPayload, err)
		}
		if len(decompressed) > MaxPayloadSize {
			return "", nil, ErrPayloadTooLarge
		}
		raw = decompressed
	}

	return msgType, raw, nil
}

// DecodeMessage is Decode followed by registry interpretation. The
// returned Message has a nil payload for unregistered types.
func (c *Codec) DecodeMessage(frame []byte) (*Message, error) {
	msgType, raw, err := c.Decode(frame)
	if err != nil {
		return nil, err
	}

	payload, err := DecodePayload(msgType, raw)
	if err != nil {
		return nil, fmt.Errorf("protocol: unmarshal %s: %w", msgType, err)
	}
	return &Message{Type: msgType, Payload: payload}, nil
}
