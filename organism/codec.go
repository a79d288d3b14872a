// Package organism holds the pluggable codec for an organism's per-tick
// runtime state (instruction traces, stacks, call frames) — the largest
// recurring payload in a tick record. Grounded on the compression helpers
// in the pack's red-black-tree allocator, which use
// github.com/pierrec/lz4/v4's block API directly rather than the
// stream/reader API.
package organism

import (
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// Codec encodes and decodes an organism's raw runtime-state bytes for
// storage, returning the codec name written alongside the encoded bytes
// (simdb's organism_states.codec column) so a reader knows how to reverse
// it without guessing.
type Codec interface {
	Encode(raw []byte) (encoded []byte, codecName string, err error)
	Decode(encoded []byte, codecName string) (raw []byte, err error)
}

const (
	codecRaw = "raw"
	codecLZ4 = "lz4"
)

// LZ4Codec compresses with LZ4 whenever doing so doesn't expand the
// payload, falling back to storing it uncompressed ("raw") otherwise —
// small runtime-state blobs compress poorly and aren't worth the
// decompression step on read.
type LZ4Codec struct{}

func (LZ4Codec) Encode(raw []byte) ([]byte, string, error) {
	if len(raw) == 0 {
		return raw, codecRaw, nil
	}

	compressed := make([]byte, lz4.CompressBlockBound(len(raw)))
	n, err := lz4.CompressBlock(raw, compressed, nil)
	if err != nil {
		return nil, "", fmt.Errorf("organism: lz4 compress: %w", err)
	}
	if n == 0 || n >= len(raw) {
		return raw, codecRaw, nil
	}
	return compressed[:n], codecLZ4, nil
}

func (LZ4Codec) Decode(encoded []byte, codecName string) ([]byte, error) {
	switch codecName {
	case codecRaw, "":
		return encoded, nil
	case codecLZ4:
		decompressed := make([]byte, len(encoded)*4)
		for {
			n, err := lz4.UncompressBlock(encoded, decompressed)
			if err == nil {
				return decompressed[:n], nil
			}
			if len(decompressed) > 1<<28 {
				return nil, fmt.Errorf("organism: lz4 decompress: %w", err)
			}
			decompressed = make([]byte, len(decompressed)*2)
		}
	default:
		return nil, fmt.Errorf("organism: unknown codec %q", codecName)
	}
}

// RawCodec never compresses, used in tests and for debugging.
type RawCodec struct{}

func (RawCodec) Encode(raw []byte) ([]byte, string, error) { return raw, codecRaw, nil }
func (RawCodec) Decode(encoded []byte, _ string) ([]byte, error) { return encoded, nil }
