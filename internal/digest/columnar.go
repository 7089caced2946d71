// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package digest

import "github.com/myco-sh/myco/internal/hlc"

// EncodeColumnar appends the columnar framing of entries to dst:
// [u16 count][varint id x count][wall column][logical column]. The wall
// column stores the first wall time as a plain varint and every
// following wall time as a zig-zag varint of its delta from the previous
// one, which typically halves payload bytes for clustered wall times
// (spec.md §4.4). Entries beyond maxLen total bytes are omitted.
func EncodeColumnar(dst []byte, entries []Entry, maxLen int) (out []byte, n int) {
	base := len(dst)
	dst = append(dst, 0, 0)

	// First pass: decide how many entries' ids fit, trimming on overflow
	// exactly like EncodeRow.
	written := 0
	for _, e := range entries {
		start := len(dst)
		dst = putUvarint(dst, e.ID)
		if len(dst)-base > maxLen {
			dst = dst[:start]
			break
		}
		written++
	}
	fitted := entries[:written]

	// A columnar frame with a half-written wall or logical column is
	// unparseable, so if either column overflows maxLen the whole frame
	// rolls back to zero entries; the caller falls back to a smaller
	// maxLen or the row framing.
	overflow := func() ([]byte, int) {
		dst = dst[:base+2]
		dst[base], dst[base+1] = 0, 0
		return dst, 0
	}

	var prevWall uint64
	for i, e := range fitted {
		wall, _ := hlc.Unpack(e.Version)
		if i == 0 {
			dst = putUvarint(dst, wall)
		} else {
			dst = putUvarint(dst, zigzagEncode(int64(wall)-int64(prevWall)))
		}
		prevWall = wall
		if len(dst)-base > maxLen {
			return overflow()
		}
	}
	for _, e := range fitted {
		_, logical := hlc.Unpack(e.Version)
		dst = putUvarint(dst, uint64(logical))
		if len(dst)-base > maxLen {
			return overflow()
		}
	}

	dst[base] = byte(written)
	dst[base+1] = byte(written >> 8)
	return dst, written
}

// DecodeColumnar parses the columnar framing from src, appending decoded
// entries to out. Logical counters are clamped to 16 bits, matching the
// packed HLC representation (spec.md §3, §9).
//
// It decodes in place within out's own newly-appended tail rather than
// through separate id/wall scratch slices: the id pass stores each id
// into Entry.ID, the wall pass stores the reconstructed wall time into
// Entry.Version as an interim holding cell, and the logical pass folds
// that wall time and the logical counter into the final packed Version.
// When out already has spare capacity (the caller's usual preallocated
// scratch buffer), this performs no allocation at all.
func DecodeColumnar(src []byte, out []Entry) (result []Entry, consumed int, err error) {
	if len(src) < 2 {
		return out, 0, ErrMalformed
	}
	count := int(src[0]) | int(src[1])<<8
	pos := 2
	base := len(out)
	for i := 0; i < count; i++ {
		out = append(out, Entry{})
	}

	for i := 0; i < count; i++ {
		id, n, ok := getUvarint(src[pos:])
		if !ok {
			return out[:base], pos, ErrMalformed
		}
		pos += n
		out[base+i].ID = id
	}

	var prevWall uint64
	for i := 0; i < count; i++ {
		v, n, ok := getUvarint(src[pos:])
		if !ok {
			return out[:base], pos, ErrMalformed
		}
		pos += n
		var wall uint64
		if i == 0 {
			wall = v
		} else {
			wall = uint64(int64(prevWall) + zigzagDecode(v))
		}
		prevWall = wall
		out[base+i].Version = wall
	}

	for i := 0; i < count; i++ {
		v, n, ok := getUvarint(src[pos:])
		if !ok {
			return out[:base], pos, ErrMalformed
		}
		pos += n
		logical := uint16(v & 0xFFFF)
		out[base+i].Version = hlc.Pack(out[base+i].Version, logical)
	}

	return out, pos, nil
}
