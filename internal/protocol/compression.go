package protocol

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"

	"github.com/golang/snappy"
)

// Compression selects the payload compression algorithm. Both ends of a
// deployment must be configured with the same value.
type Compression int

const (
	CompressionNone Compression = iota
	CompressionGzip
	CompressionSnappy
)

// ParseCompression maps a config string to a Compression.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "snappy":
		return CompressionSnappy, nil
	default:
		return CompressionNone, fmt.Errorf("unknown compression type: %q", name)
	}
}

func compress(ct Compression, raw []byte) ([]byte, error) {
	switch ct {
	case CompressionGzip:
		var buf bytes.Buffer
		writer := gzip.NewWriter(&buf)

		if _, err := writer.Write(raw); err != nil {
			return nil, fmt.Errorf("failed to compress with gzip: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip writer: %w", err)
		}
		return buf.Bytes(), nil
	case CompressionSnappy:
		return snappy.Encode(nil, raw), nil
	default:
		return nil, fmt.Errorf("unknown compression type: %d", ct)
	}
}

func decompress(ct Compression, raw []byte) ([]byte, error) {
	switch ct {
	case CompressionGzip:
		reader, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}

		value, err := io.ReadAll(io.LimitReader(reader, MaxPayloadSize+1))
		if err != nil {
			return nil, fmt.Errorf("failed to decompress with gzip: %w", err)
		}
		if err := reader.Close(); err != nil {
			return nil, fmt.Errorf("failed to close gzip reader: %w", err)
		}
		return value, nil
	case CompressionSnappy:
		value, err := snappy.Decode(nil, raw)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress with snappy: %w", err)
		}
		return value, nil
	default:
		return nil, fmt.Errorf("unknown compression type: %d", ct)
	}
}
