// Package payload encodes document bytes for storage at rest.
//
// Stored bytes carry the encoding they were written with, the decoded size
// and a sha256 digest of the decoded bytes, so reads can prove they return
// exactly what was written.
package payload

import (
	_ "crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/opencontainers/go-digest"
)

// Compression selects how payloads are written.
type Compression string

const (
	// CompressionNone stores payloads as-is.
	CompressionNone Compression = "none"
	// CompressionZstd stores payloads zstd-compressed when that saves space.
	CompressionZstd Compression = "zstd"
)

// Encoding names recorded next to each stored payload.
const (
	EncodingIdentity = "identity"
	EncodingZstd     = "zstd"
)

// ErrCorrupt indicates stored bytes do not decode to the recorded payload.
var ErrCorrupt = errors.New("payload corrupt")

// ParseCompression validates a compression name. Empty means none.
func ParseCompression(value string) (Compression, error) {
	switch Compression(strings.ToLower(strings.TrimSpace(value))) {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionZstd:
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unknown compression %q", value)
	}
}

// Encoded is a payload in its at-rest form.
type Encoded struct {
	Data     []byte
	Encoding string
	Size     int64
	Digest   digest.Digest
}

var (
	encoderPool sync.Pool
	decoderPool sync.Pool
)

func getEncoder() (*zstd.Encoder, error) {
	if v := encoderPool.Get(); v != nil {
		return v.(*zstd.Encoder), nil
	}
	return zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault), zstd.WithEncoderConcurrency(1))
}

func getDecoder() (*zstd.Decoder, error) {
	if v := decoderPool.Get(); v != nil {
		return v.(*zstd.Decoder), nil
	}
	return zstd.NewReader(nil, zstd.WithDecoderConcurrency(1))
}

// Encode prepares data for storage. The returned Data never aliases data and
// is non-nil even for empty input.
func Encode(data []byte, compression Compression) (Encoded, error) {
	encoded := Encoded{
		Encoding: EncodingIdentity,
		Size:     int64(len(data)),
		Digest:   digest.FromBytes(data),
	}

	switch compression {
	case "", CompressionNone:
	case CompressionZstd:
		if len(data) == 0 {
			break
		}
		enc, err := getEncoder()
		if err != nil {
			return Encoded{}, fmt.Errorf("create zstd encoder: %w", err)
		}
		compressed := enc.EncodeAll(data, make([]byte, 0, len(data)))
		encoderPool.Put(enc)
		// Keep the raw bytes when compression does not pay off.
		if len(compressed) < len(data) {
			encoded.Data = compressed
			encoded.Encoding = EncodingZstd
			return encoded, nil
		}
	default:
		return Encoded{}, fmt.Errorf("unknown compression %q", compression)
	}

	encoded.Data = append(make([]byte, 0, len(data)), data...)
	return encoded, nil
}

// Decode returns the original payload for e, verifying size and digest.
func Decode(e Encoded) ([]byte, error) {
	if err := e.Digest.Validate(); err != nil {
		return nil, fmt.Errorf("%w: digest: %v", ErrCorrupt, err)
	}
	if e.Size < 0 {
		return nil, fmt.Errorf("%w: negative size %d", ErrCorrupt, e.Size)
	}

	var out []byte
	switch e.Encoding {
	case EncodingIdentity:
		out = append(make([]byte, 0, len(e.Data)), e.Data...)
	case EncodingZstd:
		dec, err := getDecoder()
		if err != nil {
			return nil, fmt.Errorf("create zstd decoder: %w", err)
		}
		out, err = dec.DecodeAll(e.Data, make([]byte, 0, e.Size))
		decoderPool.Put(dec)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd: %v", ErrCorrupt, err)
		}
	default:
		return nil, fmt.Errorf("%w: unknown encoding %q", ErrCorrupt, e.Encoding)
	}

	if int64(len(out)) != e.Size {
		return nil, fmt.Errorf("%w: size %d, want %d", ErrCorrupt, len(out), e.Size)
	}
	if got := e.Digest.Algorithm().FromBytes(out); got != e.Digest {
		return nil, fmt.Errorf("%w: digest %s, want %s", ErrCorrupt, got, e.Digest)
	}
	return out, nil
}
