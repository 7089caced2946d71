// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package digest

import "errors"

// ErrMalformed is returned by decoders when a length prefix, varint, or
// section header is inconsistent with the remaining bytes. Per spec.md
// §7 this is a "skip packet" condition at the caller, never a panic.
var ErrMalformed = errors.New("digest: malformed payload")

// EncodeRow appends the row framing of entries to dst: [u16 count]
// [varint id, varint version] x count. Entries beyond what fits in
// maxLen total bytes are silently omitted, and the actual count written
// is returned so the caller can report how many fit.
func EncodeRow(dst []byte, entries []Entry, maxLen int) (out []byte, n int) {
	base := len(dst)
	dst = append(dst, 0, 0) // placeholder count, fixed up below
	written := 0
	for _, e := range entries {
		start := len(dst)
		dst = putUvarint(dst, e.ID)
		dst = putUvarint(dst, e.Version)
		if len(dst)-base > maxLen {
			dst = dst[:start]
			break
		}
		written++
	}
	dst[base] = byte(written)
	dst[base+1] = byte(written >> 8)
	return dst, written
}

// DecodeRow parses the row framing from src, appending decoded entries
// to out and returning the extended slice and the number of bytes of src
// consumed.
func DecodeRow(src []byte, out []Entry) (result []Entry, consumed int, err error) {
	if len(src) < 2 {
		return out, 0, ErrMalformed
	}
	count := int(src[0]) | int(src[1])<<8
	pos := 2
	for i := 0; i < count; i++ {
		id, n, ok := getUvarint(src[pos:])
		if !ok {
			return out, pos, ErrMalformed
		}
		pos += n
		ver, n, ok := getUvarint(src[pos:])
		if !ok {
			return out, pos, ErrMalformed
		}
		pos += n
		out = append(out, Entry{ID: id, Version: ver})
	}
	return out, pos, nil
}
