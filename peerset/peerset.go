// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package peerset declares the boundary between a Node's outbox and
// the embedder's address book. The core never reads a peer set itself
// — it only tags outbound packets with a recipient pubkey or leaves
// them unaddressed for broadcast — so this package is an interface
// only (spec.md §6 "Peer set").
package peerset

// Set maps a peer's public key to its current network address. An
// embedder supplies an implementation (static table, gossip-discovered
// membership, etc.); the core has no opinion on how Lookup is
// populated.
type Set interface {
	// Lookup returns the address currently on file for pubkey, and
	// whether one is known.
	Lookup(pubkey [32]byte) (addr string, ok bool)
}
