// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package digest

import "errors"

const (
	maxMatchDistance = 64
	minMatchLength   = 3
	maxMatchLength   = 66
	maxLiteralChunk  = 128
)

// ErrNoBenefit is returned by Compress when the encoded form would not
// be strictly shorter than the input; spec.md §4.4/§7 treats this as a
// normal outcome ("encoder produced no-benefit output"), not a failure.
var ErrNoBenefit = errors.New("digest: compression produced no benefit")

// ErrBadDistance is returned by Decompress when a backref's distance is
// zero or would reach before the start of the output produced so far.
var ErrBadDistance = errors.New("digest: invalid backreference distance")

// Compress encodes src with a byte-oriented LZ77-like scheme: a 2-byte
// header holding len(src), then a stream of literal runs
// ([len-1][bytes], up to 128 bytes) and backreferences
// ([0x80|len-3][distance], matches of length 3..66 within the last 64
// bytes). It returns ErrNoBenefit if the result is not strictly shorter
// than src — the caller re-encodes uncompressed in that case.
func Compress(src []byte) ([]byte, error) {
	if len(src) > 0xFFFF {
		return nil, errors.New("digest: input too large to compress")
	}
	out := make([]byte, 2, len(src)+2)
	out[0] = byte(len(src))
	out[1] = byte(len(src) >> 8)

	var litStart int
	flushLiterals := func(end int) {
		for litStart < end {
			n := end - litStart
			if n > maxLiteralChunk {
				n = maxLiteralChunk
			}
			out = append(out, byte(n-1))
			out = append(out, src[litStart:litStart+n]...)
			litStart += n
		}
	}

	i := 0
	for i < len(src) {
		matchLen, matchDist := findMatch(src, i)
		if matchLen >= minMatchLength {
			flushLiterals(i)
			out = append(out, 0x80|byte(matchLen-minMatchLength), byte(matchDist))
			i += matchLen
			litStart = i
			continue
		}
		i++
	}
	flushLiterals(len(src))

	if len(out) >= len(src) {
		return nil, ErrNoBenefit
	}
	return out, nil
}

// findMatch looks backward from position i (up to maxMatchDistance
// bytes) for the longest run matching what follows i, capped at
// maxMatchLength. It returns length 0 if nothing of at least
// minMatchLength is found.
func findMatch(src []byte, i int) (length int, distance int) {
	start := i - maxMatchDistance
	if start < 0 {
		start = 0
	}
	best, bestDist := 0, 0
	for j := i - 1; j >= start; j-- {
		l := 0
		limit := len(src) - i
		if limit > maxMatchLength {
			limit = maxMatchLength
		}
		for l < limit && src[j+l] == src[i+l] {
			l++
		}
		if l > best {
			best = l
			bestDist = i - j
			if best == maxMatchLength {
				break
			}
		}
	}
	if best < minMatchLength {
		return 0, 0
	}
	return best, bestDist
}

// Decompress reverses Compress, appending the decompressed bytes to
// out. It rejects a backreference with distance 0 or one that would
// read before the start of the output produced so far (spec.md §4.4).
// A caller-owned out with sufficient spare capacity (the Node's
// preallocated decompress scratch on a Tick's decode path) avoids
// allocating.
func Decompress(src []byte, out []byte) ([]byte, error) {
	if len(src) < 2 {
		return out, ErrMalformed
	}
	wantLen := int(src[0]) | int(src[1])<<8
	base := len(out)
	pos := 2

	for len(out)-base < wantLen {
		if pos >= len(src) {
			return out[:base], ErrMalformed
		}
		token := src[pos]
		pos++
		if token&0x80 == 0 {
			n := int(token) + 1
			if pos+n > len(src) {
				return out[:base], ErrMalformed
			}
			out = append(out, src[pos:pos+n]...)
			pos += n
			continue
		}
		length := int(token&0x7F) + minMatchLength
		if pos >= len(src) {
			return out[:base], ErrMalformed
		}
		distance := int(src[pos])
		pos++
		if distance == 0 || distance > len(out)-base {
			return out[:base], ErrBadDistance
		}
		start := len(out) - distance
		for k := 0; k < length; k++ {
			out = append(out, out[start+k])
		}
	}
	return out, nil
}
