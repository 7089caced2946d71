// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package wire provides a reference implementation of the seal/open
// packet-crypto boundary hook spec.md §4.7 leaves external to the
// core: X25519 key agreement, a keyed BLAKE2b MAC over
// packet.MACRegion, and a ChaCha20 keystream over the payload
// (encrypt-then-MAC). The core node never imports this package
// directly — it is wired in by the embedder, exactly as the spec
// requires.
package wire

import (
	"crypto/subtle"
	"sync/atomic"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/curve25519"

	"github.com/myco-sh/myco/internal/packet"
)

const tagSize = 12

// Identity is an X25519 keypair identifying a node on the wire.
type Identity struct {
	Public  [32]byte
	Private [32]byte
}

// DeriveIdentity deterministically derives an X25519 identity from a
// node id (spec.md §9: "derives its keypair from its node_id for
// tests and simulations"). Production deployments load a real keypair
// into the same Identity type instead.
func DeriveIdentity(nodeID uint16) Identity {
	h, _ := blake2b.New256([]byte("myco-wire-identity-v1"))
	h.Write([]byte{byte(nodeID), byte(nodeID >> 8)})
	sum := h.Sum(nil)

	var priv [32]byte
	copy(priv[:], sum)
	priv[0] &= 248
	priv[31] &= 127
	priv[31] |= 64

	var pub [32]byte
	curve25519.ScalarBaseMult(&pub, &priv)
	return Identity{Public: pub, Private: priv}
}

// SharedKey derives a symmetric key via X25519 ECDH between a local
// private key and a peer's public key, hashed through BLAKE2b-256 to
// whiten the raw ECDH output into a uniform ChaCha20 key.
func SharedKey(localPriv, peerPub [32]byte) ([32]byte, error) {
	var key [32]byte
	shared, err := curve25519.X25519(localPriv[:], peerPub[:])
	if err != nil {
		return key, err
	}
	key = blake2b.Sum256(shared)
	return key, nil
}

// Counters holds the shared, atomically-updated observability state
// the open hook writes to (spec.md §5: "packet_mac_failures... written
// by the recv path, read by the admin path; it is an atomic").
type Counters struct {
	macFailures atomic.Uint64
}

// MACFailures returns the current MAC-failure count.
func (c *Counters) MACFailures() uint64 { return c.macFailures.Load() }

// Seal encrypts buf's payload region in place with key and writes the
// authentication tag into buf's AuthTag field. buf must already hold
// an encoded packet (packet.Packet.Encode output) with a unique Nonce
// and plaintext Payload.
func Seal(buf *[packet.Size]byte, key [32]byte) error {
	if err := xorPayload(buf, key); err != nil {
		return err
	}
	tag, err := mac(buf, key)
	if err != nil {
		return err
	}
	copy(buf[54:66], tag)
	return nil
}

// Open verifies buf's authentication tag against key and decrypts its
// payload region in place, returning whether the tag matched. The
// payload is decrypted regardless of the match outcome, mirroring
// spec.md §4.7's "embedders may either drop or optionally accept
// (configurable)" — the accept/drop policy decision belongs to the
// caller, not this function. On mismatch, counters' MAC-failure count
// is incremented exactly once.
func Open(buf *[packet.Size]byte, key [32]byte, counters *Counters) (authenticated bool, err error) {
	expected, err := mac(buf, key)
	if err != nil {
		return false, err
	}
	authenticated = subtle.ConstantTimeCompare(expected, buf[54:66]) == 1
	if !authenticated {
		counters.macFailures.Add(1)
	}
	if err := xorPayload(buf, key); err != nil {
		return authenticated, err
	}
	return authenticated, nil
}

// mac computes the keyed BLAKE2b tag (truncated to tagSize bytes) over
// packet.MACRegion(buf) — every field except the AuthTag itself.
func mac(buf *[packet.Size]byte, key [32]byte) ([]byte, error) {
	h, err := blake2b.New(tagSize, key[:])
	if err != nil {
		return nil, err
	}
	h.Write(packet.MACRegion(buf[:]))
	return h.Sum(nil), nil
}

// xorPayload applies the ChaCha20 keystream derived from (key, nonce)
// to the fixed-size payload region. ChaCha20 is its own inverse, so the
// same call encrypts on Seal and decrypts on Open. The wire nonce field
// is 8 bytes; it is zero-extended to ChaCha20's required 12 bytes.
func xorPayload(buf *[packet.Size]byte, key [32]byte) error {
	var nonce [chacha20.NonceSize]byte
	copy(nonce[4:], buf[46:54])

	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		return err
	}
	payload := buf[72:packet.Size]
	c.XORKeyStream(payload, payload)
	return nil
}
