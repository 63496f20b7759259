package payload

import (
	"bytes"
	"errors"
	"testing"

	"github.com/opencontainers/go-digest"
	"pgregory.net/rapid"
)

func TestParseCompression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Compression
		wantErr bool
	}{
		{in: "", want: CompressionNone},
		{in: "none", want: CompressionNone},
		{in: " ZSTD ", want: CompressionZstd},
		{in: "gzip", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseCompression(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseCompression(%q) expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseCompression(%q): %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("ParseCompression(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEncodeIdentityCopiesInput(t *testing.T) {
	t.Parallel()

	data := []byte{0x01, 0x02, 0x03}
	encoded, err := Encode(data, CompressionNone)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded.Encoding != EncodingIdentity {
		t.Fatalf("encoding = %q, want identity", encoded.Encoding)
	}
	data[0] = 0xff
	if encoded.Data[0] != 0x01 {
		t.Fatal("encoded data aliases input")
	}
	if encoded.Digest != digest.FromBytes([]byte{0x01, 0x02, 0x03}) {
		t.Fatalf("digest = %s", encoded.Digest)
	}
}

func TestEncodeZstdCompressesRepetitiveData(t *testing.T) {
	t.Parallel()

	data := bytes.Repeat([]byte("%PDF-1.7 stream "), 512)
	encoded, err := Encode(data, CompressionZstd)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded.Encoding != EncodingZstd {
		t.Fatalf("encoding = %q, want zstd", encoded.Encoding)
	}
	if len(encoded.Data) >= len(data) {
		t.Fatalf("compressed len %d not smaller than %d", len(encoded.Data), len(data))
	}
	got, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(got, data) {
		t.Fatal("decoded payload differs")
	}
}

func TestEncodeZstdFallsBackForTinyPayload(t *testing.T) {
	t.Parallel()

	encoded, err := Encode([]byte{0x01}, CompressionZstd)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if encoded.Encoding != EncodingIdentity {
		t.Fatalf("encoding = %q, want identity fallback", encoded.Encoding)
	}
}

func TestEncodeRejectsUnknownCompression(t *testing.T) {
	t.Parallel()

	if _, err := Encode([]byte("x"), Compression("brotli")); err == nil {
		t.Fatal("expected unknown compression error")
	}
}

func TestEmptyPayloadDecodesNonNil(t *testing.T) {
	t.Parallel()

	for _, compression := range []Compression{CompressionNone, CompressionZstd} {
		encoded, err := Encode(nil, compression)
		if err != nil {
			t.Fatalf("encode %s: %v", compression, err)
		}
		if encoded.Data == nil {
			t.Fatalf("%s: encoded data is nil", compression)
		}
		got, err := Decode(encoded)
		if err != nil {
			t.Fatalf("decode %s: %v", compression, err)
		}
		if got == nil || len(got) != 0 {
			t.Fatalf("%s: decoded = %#v, want empty non-nil", compression, got)
		}
	}
}

func TestDecodeDetectsCorruption(t *testing.T) {
	t.Parallel()

	good, err := Encode([]byte("hello pdf"), CompressionNone)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Encoded)
	}{
		{name: "flipped byte", mutate: func(e *Encoded) { e.Data[0] ^= 0xff }},
		{name: "truncated", mutate: func(e *Encoded) { e.Data = e.Data[:3] }},
		{name: "unknown encoding", mutate: func(e *Encoded) { e.Encoding = "lz4" }},
		{name: "bad digest", mutate: func(e *Encoded) { e.Digest = "sha256:nothex" }},
		{name: "negative size", mutate: func(e *Encoded) { e.Size = -1 }},
		{name: "bad zstd frame", mutate: func(e *Encoded) { e.Encoding = EncodingZstd }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := good
			e.Data = append([]byte(nil), good.Data...)
			tc.mutate(&e)
			if _, err := Decode(e); !errors.Is(err, ErrCorrupt) {
				t.Fatalf("decode error = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestEncodeDecodeRoundTripProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		data := rapid.SliceOf(rapid.Byte()).Draw(rt, "data")
		compression := rapid.SampledFrom([]Compression{CompressionNone, CompressionZstd}).Draw(rt, "compression")

		encoded, err := Encode(data, compression)
		if err != nil {
			rt.Fatalf("encode: %v", err)
		}
		got, err := Decode(encoded)
		if err != nil {
			rt.Fatalf("decode: %v", err)
		}
		if !bytes.Equal(got, data) {
			rt.Fatalf("round trip mismatch: got %x, want %x", got, data)
		}
	})
}
