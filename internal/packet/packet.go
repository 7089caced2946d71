// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package packet defines the fixed-size datagram wire format that nodes
// exchange: Deploy, Sync, Request, and Control messages, all packed into
// exactly 1024 little-endian bytes.
package packet

import (
	"encoding/binary"
	"errors"
	"unsafe"
)

// Type enumerates the four message kinds carried in a Packet.
type Type uint8

const (
	// Deploy carries an authoritative (version, record) pair.
	Deploy Type = 1
	// Sync carries a delta/sample digest of (id, version) pairs.
	Sync Type = 2
	// Request asks the recipient to Deploy a specific id.
	Request Type = 3
	// Control carries a recency/sample digest of (id, version) pairs.
	Control Type = 4
)

func (t Type) String() string {
	switch t {
	case Deploy:
		return "Deploy"
	case Sync:
		return "Sync"
	case Request:
		return "Request"
	case Control:
		return "Control"
	default:
		return "Unknown"
	}
}

const (
	// Magic identifies a Myco datagram on the wire.
	Magic uint16 = 0x4D59
	// WireVersion is the current packet format version.
	WireVersion uint8 = 1

	// Size is the exact on-wire size of a Packet, enforced below at
	// compile time.
	Size = 1024

	// headerSize is magic..auth_tag (66 bytes) plus 6 bytes of padding so
	// the payload begins on an 8-byte boundary, per spec.md §3 ("952-byte
	// payload (8-byte aligned)"): 66 rounds up to 72.
	headerSize = 72
	// PayloadSize is the usable payload area: Size - headerSize.
	PayloadSize = 952

	// FlagCompressed marks the payload as LZ77-compressed.
	FlagCompressed uint8 = 0x01
)

// compile-time assertions that the wire layout, and the Packet struct
// itself, are exactly 1024 bytes: each array length below is a negative
// constant (a compile error) unless both sides are equal.
var (
	_ [Size - headerSize - PayloadSize]struct{}
	_ [headerSize + PayloadSize - Size]struct{}
	_ [unsafe.Sizeof(Packet{}) - Size]struct{}
	_ [Size - unsafe.Sizeof(Packet{})]struct{}
)

// Packet is the fixed wire unit exchanged between nodes. Field order and
// widths match spec.md §3 exactly; Packet is copied by value, never
// pointed into shared mutable state.
type Packet struct {
	Magic         uint16
	Version       uint8
	MsgType       Type
	NodeID        uint16
	Zone          uint8
	Flags         uint8
	RevocationBlk uint32
	PayloadLen    uint16
	SenderPubKey  [32]byte
	Nonce         [8]byte
	AuthTag       [12]byte
	_             [6]byte // alignment padding so Payload starts on an 8-byte boundary
	Payload       [PayloadSize]byte
}

// ErrTruncated is returned by Decode when fewer than Size bytes are
// available.
var ErrTruncated = errors.New("packet: truncated wire buffer")

// New builds a zeroed packet of the given type stamped with the sender's
// identity.
func New(msgType Type, nodeID uint16, sender [32]byte) Packet {
	return Packet{
		Magic:        Magic,
		Version:      WireVersion,
		MsgType:      msgType,
		NodeID:       nodeID,
		SenderPubKey: sender,
	}
}

// IsCompressed reports whether FlagCompressed is set.
func (p *Packet) IsCompressed() bool {
	return p.Flags&FlagCompressed != 0
}

// SetCompressed sets or clears FlagCompressed.
func (p *Packet) SetCompressed(v bool) {
	if v {
		p.Flags |= FlagCompressed
	} else {
		p.Flags &^= FlagCompressed
	}
}

// EffectivePayloadLen clamps PayloadLen to PayloadSize, per the inbound
// packet contract in spec.md §6: bytes beyond the claimed length are
// ignored by the receiver, and any claim beyond PayloadSize is truncated.
func (p *Packet) EffectivePayloadLen() int {
	n := int(p.PayloadLen)
	if n > PayloadSize {
		n = PayloadSize
	}
	return n
}

// PayloadBytes returns the payload slice truncated to EffectivePayloadLen.
func (p *Packet) PayloadBytes() []byte {
	return p.Payload[:p.EffectivePayloadLen()]
}

// Encode serializes the packet into exactly Size little-endian bytes.
func (p *Packet) Encode() [Size]byte {
	var buf [Size]byte
	binary.LittleEndian.PutUint16(buf[0:2], p.Magic)
	buf[2] = p.Version
	buf[3] = uint8(p.MsgType)
	binary.LittleEndian.PutUint16(buf[4:6], p.NodeID)
	buf[6] = p.Zone
	buf[7] = p.Flags
	binary.LittleEndian.PutUint32(buf[8:12], p.RevocationBlk)
	binary.LittleEndian.PutUint16(buf[12:14], p.PayloadLen)
	copy(buf[14:46], p.SenderPubKey[:])
	copy(buf[46:54], p.Nonce[:])
	copy(buf[54:66], p.AuthTag[:])
	// buf[66:72] is alignment padding, left zeroed.
	copy(buf[72:Size], p.Payload[:])
	return buf
}

// Decode parses exactly Size bytes into a Packet. It does not validate
// Magic/Version; callers that care should check Packet.Magic themselves
// so malformed-packet handling stays a single policy decision in the
// node, per spec.md §7.
func Decode(buf []byte) (Packet, error) {
	var p Packet
	if len(buf) < Size {
		return p, ErrTruncated
	}
	p.Magic = binary.LittleEndian.Uint16(buf[0:2])
	p.Version = buf[2]
	p.MsgType = Type(buf[3])
	p.NodeID = binary.LittleEndian.Uint16(buf[4:6])
	p.Zone = buf[6]
	p.Flags = buf[7]
	p.RevocationBlk = binary.LittleEndian.Uint32(buf[8:12])
	p.PayloadLen = binary.LittleEndian.Uint16(buf[12:14])
	copy(p.SenderPubKey[:], buf[14:46])
	copy(p.Nonce[:], buf[46:54])
	copy(p.AuthTag[:], buf[54:66])
	copy(p.Payload[:], buf[72:Size])
	return p, nil
}

// MACRegion returns the byte range of an encoded packet the seal/open hook
// authenticates: every field except the 12-byte AuthTag (spec.md §4.7).
func MACRegion(buf []byte) []byte {
	out := make([]byte, 0, Size-12)
	out = append(out, buf[0:54]...)
	out = append(out, buf[66:Size]...)
	return out
}
