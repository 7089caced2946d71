// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package digest

// SectionKind identifies the purpose of a section within an assembled
// payload.
type SectionKind uint8

const (
	// KindDelta carries ids mutated since the last drain.
	KindDelta SectionKind = 1
	// KindRecent carries the MRU recency ring.
	KindRecent SectionKind = 2
	// KindSample carries a uniformly-random anti-entropy sample.
	KindSample SectionKind = 3
)

// sectionTag is the high bit that marks a byte as a section-kind header,
// distinguishing a sectioned payload from the legacy unsectioned row
// framing (spec.md §4.4: "A decoder recognizing no sections treats the
// payload as a single row-framed digest").
const sectionTag = 0x80

// AppendSection appends one section header ([kind|0x80][len:u16]) plus
// body to dst, provided the result still fits within maxLen bytes of the
// section area that began at sectionAreaStart. It returns the possibly
// unmodified dst and whether the section was appended.
func AppendSection(dst []byte, sectionAreaStart int, maxLen int, kind SectionKind, body []byte) ([]byte, bool) {
	need := 1 + 2 + len(body)
	if len(dst)-sectionAreaStart+need > maxLen {
		return dst, false
	}
	dst = append(dst, byte(kind)|sectionTag)
	dst = append(dst, byte(len(body)), byte(len(body)>>8))
	dst = append(dst, body...)
	return dst, true
}

// Section is one decoded [kind, body] pair.
type Section struct {
	Kind SectionKind
	Body []byte
}

// HasSectionMarker reports whether payload looks like a sectioned
// payload (its first byte has the section tag set) rather than a legacy
// unsectioned row-framed digest.
func HasSectionMarker(payload []byte) bool {
	return len(payload) > 0 && payload[0]&sectionTag != 0
}

// DecodeSections parses a sequence of sections out of payload, appending
// each to out. Callers should first check HasSectionMarker:
// DecodeSections returns ErrMalformed at the first byte that is not a
// section header (for a raw row-framed payload, its very first byte) or
// at a section whose length runs past the end of payload, together with
// the sections decoded before that point. Passing a caller-owned out with spare
// capacity (the usual case on a Tick's decode path) avoids allocating.
func DecodeSections(payload []byte, out []Section) ([]Section, error) {
	sections := out
	pos := 0
	for pos < len(payload) {
		if payload[pos]&sectionTag == 0 {
			return sections, ErrMalformed
		}
		kind := SectionKind(payload[pos] &^ sectionTag)
		pos++
		if pos+2 > len(payload) {
			return sections, ErrMalformed
		}
		length := int(payload[pos]) | int(payload[pos+1])<<8
		pos += 2
		if pos+length > len(payload) {
			return sections, ErrMalformed
		}
		sections = append(sections, Section{Kind: kind, Body: payload[pos : pos+length]})
		pos += length
	}
	return sections, nil
}
