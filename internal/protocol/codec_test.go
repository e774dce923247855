package protocol_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/auxroom/auxroom/internal/protocol"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	codec := protocol.NewCodec(protocol.CompressionNone)

	frame, err := codec.Encode(protocol.TypeJoinRequest, protocol.JoinRequest{
		RoomCode: "AB23CD",
		Username: "alice",
	})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	msg, err := codec.DecodeMessage(frame)
	if err != nil {
		t.Fatalf("DecodeMessage: unexpected error: %v", err)
	}
	if msg.Type != protocol.TypeJoinRequest {
		t.Fatalf("DecodeMessage: type mismatch want=%s got=%s", protocol.TypeJoinRequest, msg.Type)
	}

	p, ok := msg.Payload.(*protocol.JoinRequest)
	if !ok {
		t.Fatalf("DecodeMessage: payload type %T, want *JoinRequest", msg.Payload)
	}
	if p.RoomCode != "AB23CD" || p.Username != "alice" {
		t.Fatalf("DecodeMessage: payload mismatch: %+v", p)
	}
}

func TestDecodeUnknownTypeKeepsEnvelope(t *testing.T) {
	codec := protocol.NewCodec(protocol.CompressionNone)

	frame, err := codec.Encode("FUTURE_FEATURE", map[string]string{"hello": "world"})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	msg, err := codec.DecodeMessage(frame)
	if err != nil {
		t.Fatalf("DecodeMessage: unexpected error: %v", err)
	}
	if msg.Type != "FUTURE_FEATURE" {
		t.Fatalf("DecodeMessage: type mismatch got=%s", msg.Type)
	}
	if msg.Payload != nil {
		t.Fatalf("DecodeMessage: expected nil payload for unknown type, got %T", msg.Payload)
	}
}

func TestEmptyPayload(t *testing.T) {
	codec := protocol.NewCodec(protocol.CompressionNone)

	frame, err := codec.Encode(protocol.TypeBufferComplete, nil)
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	msgType, raw, err := codec.Decode(frame)
	if err != nil {
		t.Fatalf("Decode: unexpected error: %v", err)
	}
	if msgType != protocol.TypeBufferComplete {
		t.Fatalf("Decode: type mismatch got=%s", msgType)
	}
	if len(raw) != 0 {
		t.Fatalf("Decode: expected empty payload, got %d bytes", len(raw))
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	big := strings.Repeat("all work and no play makes a dull playlist ", 100)

	for name, compression := range map[string]protocol.Compression{
		"gzip":   protocol.CompressionGzip,
		"snappy": protocol.CompressionSnappy,
	} {
		t.Run(name, func(t *testing.T) {
			codec := protocol.NewCodec(compression)
			plain := protocol.NewCodec(protocol.CompressionNone)

			payload := protocol.JoinRejected{Reason: big}

			frame, err := codec.Encode(protocol.TypeJoinRejected, payload)
			if err != nil {
				t.Fatalf("Encode: unexpected error: %v", err)
			}
			plainFrame, err := plain.Encode(protocol.TypeJoinRejected, payload)
			if err != nil {
				t.Fatalf("Encode (plain): unexpected error: %v", err)
			}

			if len(frame) >= len(plainFrame) {
				t.Fatalf("Encode: compressed frame not smaller: %d >= %d", len(frame), len(plainFrame))
			}
			if frame[0]&0x01 == 0 {
				t.Fatalf("Encode: compressed flag not set")
			}

			msg, err := codec.DecodeMessage(frame)
			if err != nil {
				t.Fatalf("DecodeMessage: unexpected error: %v", err)
			}
			got, ok := msg.Payload.(*protocol.JoinRejected)
			if !ok {
				t.Fatalf("DecodeMessage: payload type %T", msg.Payload)
			}
			if got.Reason != big {
				t.Fatalf("DecodeMessage: payload corrupted after compression round trip")
			}
		})
	}
}

func TestSmallPayloadStaysUncompressed(t *testing.T) {
	codec := protocol.NewCodec(protocol.CompressionGzip)

	frame, err := codec.Encode(protocol.TypeBufferComplete, protocol.BufferComplete{TrackID: "t1"})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}
	if frame[0]&0x01 != 0 {
		t.Fatalf("Encode: small payload should not be compressed")
	}
}

func TestDecodeMalformedFrames(t *testing.T) {
	codec := protocol.NewCodec(protocol.CompressionNone)

	valid, err := codec.Encode(protocol.TypeBufferComplete, protocol.BufferComplete{TrackID: "t1"})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}

	cases := []struct {
		name    string
		frame   []byte
		wantErr error
	}{
		{"empty", nil, protocol.ErrFrameTooShort},
		{"too short", []byte{0, 1, 'A'}, protocol.ErrFrameTooShort},
		{"empty type", []byte{0, 0, 0, 0, 0, 0}, protocol.ErrEmptyType},
		{"reserved flags", append([]byte{0x80}, valid[1:]...), protocol.ErrReservedFlags},
		{"truncated payload", valid[:len(valid)-3], protocol.ErrFrameTruncated},
		{"trailing garbage", append(append([]byte{}, valid...), 0xff), protocol.ErrTrailingGarbage},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, _, err := codec.Decode(tc.frame); !errors.Is(err, tc.wantErr) {
				t.Fatalf("Decode: want %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDecodeCorruptCompressedPayload(t *testing.T) {
	codec := protocol.NewCodec(protocol.CompressionGzip)

	big := strings.Repeat("corrupt me ", 50)
	frame, err := codec.Encode(protocol.TypeJoinRejected, protocol.JoinRejected{Reason: big})
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}
	if frame[0]&0x01 == 0 {
		t.Fatalf("Encode: expected a compressed frame")
	}

	// Flip bits in the middle of the compressed payload.
	frame[len(frame)-10] ^= 0xff
	frame[len(frame)-11] ^= 0xff

	if _, _, err := codec.Decode(frame); !errors.Is(err, protocol.ErrCorruptPayload) {
		t.Fatalf("Decode: want ErrCorruptPayload, got %v", err)
	}
}

func TestEncodeRejectsOversizedPayload(t *testing.T) {
	codec := protocol.NewCodec(protocol.CompressionNone)

	huge := protocol.JoinRejected{Reason: strings.Repeat("x", protocol.MaxPayloadSize+1)}
	if _, err := codec.Encode(protocol.TypeJoinRejected, huge); !errors.Is(err, protocol.ErrPayloadTooLarge) {
		t.Fatalf("Encode: want ErrPayloadTooLarge, got %v", err)
	}
}

func TestEncodeRejectsBadType(t *testing.T) {
	codec := protocol.NewCodec(protocol.CompressionNone)

	if _, err := codec.Encode("", nil); !errors.Is(err, protocol.ErrEmptyType) {
		t.Fatalf("Encode: want ErrEmptyType, got %v", err)
	}
	if _, err := codec.Encode(strings.Repeat("T", 256), nil); !errors.Is(err, protocol.ErrTypeTooLong) {
		t.Fatalf("Encode: want ErrTypeTooLong, got %v", err)
	}
}

func TestRegistryCoversCatalogue(t *testing.T) {
	for msgType, factory := range protocol.Registry {
		payload := factory()
		if payload == nil {
			t.Fatalf("Registry: %s factory returned nil", msgType)
		}
	}

	// A registered type with an empty body decodes to its zero payload.
	payload, err := protocol.DecodePayload(protocol.TypeReconnect, nil)
	if err != nil {
		t.Fatalf("DecodePayload: unexpected error: %v", err)
	}
	if _, ok := payload.(*protocol.Reconnect); !ok {
		t.Fatalf("DecodePayload: payload type %T", payload)
	}
}

func TestCompressedNeverLarger(t *testing.T) {
	// Random-ish payload that gzip cannot shrink: the codec must fall
	// back to the raw bytes rather than growing the frame.
	var sb bytes.Buffer
	for i := 0; i < 300; i++ {
		sb.WriteByte(byte(i*7 + i*i*13))
	}
	payload := protocol.Kicked{Reason: sb.String()}

	gz := protocol.NewCodec(protocol.CompressionGzip)
	plain := protocol.NewCodec(protocol.CompressionNone)

	frame, err := gz.Encode(protocol.TypeKicked, payload)
	if err != nil {
		t.Fatalf("Encode: unexpected error: %v", err)
	}
	plainFrame, err := plain.Encode(protocol.TypeKicked, payload)
	if err != nil {
		t.Fatalf("Encode (plain): unexpected error: %v", err)
	}
	if len(frame) > len(plainFrame) {
		t.Fatalf("Encode: frame grew under compression: %d > %d", len(frame), len(plainFrame))
	}
}
