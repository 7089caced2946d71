// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package digest implements the wire codec for (id, version) digests:
// row and columnar LEB128 framings, a section-based payload assembly, and
// a byte-oriented LZ77-like compressor, all sized to fit the 952-byte
// packet payload (spec.md §4.4).
package digest

import "github.com/myco-sh/myco/internal/registry"

// Entry is the (id, version) pair a digest carries. It is an alias for
// registry.Entry so the codec and the registry agree on one shape.
type Entry = registry.Entry

// putUvarint appends the LEB128 encoding of v to dst and returns the
// extended slice.
func putUvarint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

// getUvarint decodes a LEB128 value from the front of src, returning the
// value, the number of bytes consumed, and ok=false if src runs out
// before a terminating byte is found.
func getUvarint(src []byte) (v uint64, n int, ok bool) {
	var shift uint
	for n < len(src) {
		b := src[n]
		n++
		v |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return v, n, true
		}
		shift += 7
		if shift >= 64 {
			return 0, n, false
		}
	}
	return 0, n, false
}

// zigzagEncode maps a signed delta to an unsigned value so small
// magnitude deltas (positive or negative) both encode as few varint
// bytes.
func zigzagEncode(d int64) uint64 {
	return uint64((d << 1) ^ (d >> 63))
}

func zigzagDecode(v uint64) int64 {
	return int64(v>>1) ^ -int64(v&1)
}
