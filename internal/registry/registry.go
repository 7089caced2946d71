// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry implements the last-writer-wins CRDT mapping service
// ids to HLC versions, plus the recency ring and dirty-delta buffer that
// feed the digest codec's gossip sections (spec.md §4.2).
package registry

import (
	"math/rand"

	"github.com/myco-sh/myco/internal/hlc"
)

// Entry is an (id, version) pair, the unit the digest codec encodes.
type Entry struct {
	ID      uint64
	Version uint64
}

type slot struct {
	id      uint64
	version uint64
	dirty   bool
	used    bool
}

// Registry is a fixed-capacity last-writer-wins map from service id to
// version, backed by an open-addressed slot array (linear probing,
// sized to 2x capacity rounded up to a power of two) rather than a Go
// map: ids are never removed from a live registry, only overwritten, so
// no tombstones are needed (spec.md §5's "fixed-capacity ... container"
// discipline, mirroring internal/missing.Tracker's probing scheme).
type Registry struct {
	capacity int
	slots    []slot
	mask     uint64
	count    int

	// recent is a ring of the most recently updated ids, newest at
	// recent[head-1] (mod len(recent)).
	recent    []uint64
	recentLen int
	head      int

	// scratch is a preallocated capacity-sized buffer PopulateDigest
	// shuffles ids into, so sampling does not allocate once the node is
	// past its startup "freeze" point (spec.md §5).
	scratch []uint64

	rng *rand.Rand
}

// New returns a Registry that can hold up to capacity ids, with a
// recency ring of nRecent entries (spec.md §3 requires nRecent >= 32).
func New(capacity, nRecent int) *Registry {
	if nRecent < 32 {
		nRecent = 32
	}
	size := nextPow2(2 * capacity)
	return &Registry{
		capacity: capacity,
		slots:    make([]slot, size),
		mask:     uint64(size - 1),
		recent:   make([]uint64, nRecent),
		scratch:  make([]uint64, capacity),
		rng:      rand.New(rand.NewSource(1)),
	}
}

// Len returns the number of distinct ids currently tracked.
func (r *Registry) Len() int {
	return r.count
}

// mix64 is a 64->64 bit avalanche mix (splitmix64's finalizer), the
// same hash used to index internal/missing's set.
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// probe returns the slot index holding id and true if present, or the
// first free slot index and false if not. No tombstones are needed:
// ids are never removed from the registry.
func (r *Registry) probe(id uint64) (int, bool) {
	idx := int(mix64(id) & r.mask)
	for i := 0; i < len(r.slots); i++ {
		s := &r.slots[idx]
		if !s.used {
			return idx, false
		}
		if s.id == id {
			return idx, true
		}
		idx = int((uint64(idx) + 1) & r.mask)
	}
	return -1, false
}

// Update applies an observed (id, version), inserting it if the id is
// new or replacing the stored version if version is strictly newer.
// Returns true iff the registry's state changed. Either way, on a
// change, id is pushed onto the recency ring and marked dirty.
func (r *Registry) Update(id, version uint64) bool {
	idx, ok := r.probe(id)
	if !ok {
		if r.count >= r.capacity {
			return false
		}
		r.slots[idx] = slot{id: id, version: version, dirty: true, used: true}
		r.count++
		r.pushRecent(id)
		return true
	}
	s := &r.slots[idx]
	if !hlc.Newer(version, s.version) {
		return false
	}
	s.version = version
	s.dirty = true
	r.pushRecent(id)
	return true
}

// GetVersion returns the version stored for id, or 0 if absent.
func (r *Registry) GetVersion(id uint64) uint64 {
	idx, ok := r.probe(id)
	if !ok {
		return 0
	}
	return r.slots[idx].version
}

func (r *Registry) pushRecent(id uint64) {
	r.recent[r.head] = id
	r.head = (r.head + 1) % len(r.recent)
	if r.recentLen < len(r.recent) {
		r.recentLen++
	}
}

// DrainDirty copies up to len(out) dirty (id, version) entries into out
// in slot order, clears their dirty bits, and returns the count
// written.
func (r *Registry) DrainDirty(out []Entry) int {
	n := 0
	for i := range r.slots {
		if n >= len(out) {
			break
		}
		s := &r.slots[i]
		if !s.used || !s.dirty {
			continue
		}
		out[n] = Entry{ID: s.id, Version: s.version}
		s.dirty = false
		n++
	}
	return n
}

// HasDirty reports whether any entry is currently dirty, without
// clearing anything.
func (r *Registry) HasDirty() bool {
	for i := range r.slots {
		if r.slots[i].used && r.slots[i].dirty {
			return true
		}
	}
	return false
}

// CopyRecent copies the MRU recency ring, newest first, into out, up to
// len(out) entries. It does not clear anything and does not drop ids
// that have since been evicted from the registry (none are, since
// capacity is fixed and ids are never removed, only overwritten).
func (r *Registry) CopyRecent(out []Entry) int {
	n := 0
	idx := (r.head - 1 + len(r.recent)) % len(r.recent)
	for i := 0; i < r.recentLen && n < len(out); i++ {
		id := r.recent[idx]
		if sidx, ok := r.probe(id); ok {
			out[n] = Entry{ID: id, Version: r.slots[sidx].version}
			n++
		}
		idx = (idx - 1 + len(r.recent)) % len(r.recent)
	}
	return n
}

// PopulateDigest fills out with up to len(out) entries drawn uniformly at
// random from the live set, without repeats within the call, and returns
// the count written. This is the anti-entropy sample mechanism.
func (r *Registry) PopulateDigest(out []Entry) int {
	if r.count == 0 || len(out) == 0 {
		return 0
	}
	ids := r.scratch[:0]
	for i := range r.slots {
		if r.slots[i].used {
			ids = append(ids, r.slots[i].id)
		}
	}
	r.rng.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })

	n := len(out)
	if n > len(ids) {
		n = len(ids)
	}
	for i := 0; i < n; i++ {
		idx, _ := r.probe(ids[i])
		out[i] = Entry{ID: ids[i], Version: r.slots[idx].version}
	}
	return n
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
