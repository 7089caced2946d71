// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package missing implements the bounded missing-work tracker: the set
// of service ids a node has seen advertised by some peer but has not
// yet fetched at the advertised version (spec.md §4.5).
package missing

import "math/rand"

// Entry is a popped (id, source peer pubkey) pair, ready to drive a
// Request packet.
type Entry struct {
	ID     uint64
	Source [32]byte
}

type listSlot struct {
	id     uint64
	source [32]byte
	used   bool
}

type setState uint8

const (
	setFree setState = iota
	setFilled
	setTombstone
)

type setSlot struct {
	id    uint64
	state setState
}

// Tracker is a fixed-capacity list of missing ids backed by a
// companion open-addressed hash set (size 2x capacity, rounded up to a
// power of two) for O(1) membership tests. On overflow, a uniformly
// random existing list entry is evicted to make room (reservoir-style
// replacement) rather than rejecting the new id.
type Tracker struct {
	capacity int
	list     []listSlot
	count    int
	cursor   int
	freeList []int

	set  []setSlot
	mask uint64

	rng *rand.Rand
}

// New returns a Tracker holding up to capacity missing ids.
func New(capacity int) *Tracker {
	if capacity < 1 {
		capacity = 1
	}
	setSize := nextPow2(2 * capacity)
	t := &Tracker{
		capacity: capacity,
		list:     make([]listSlot, capacity),
		freeList: make([]int, capacity),
		set:      make([]setSlot, setSize),
		mask:     uint64(setSize - 1),
		rng:      rand.New(rand.NewSource(2)),
	}
	for i := range t.freeList {
		t.freeList[i] = i
	}
	return t
}

// Len returns the number of ids currently tracked.
func (t *Tracker) Len() int { return t.count }

// Cap returns the tracker's list capacity.
func (t *Tracker) Cap() int { return t.capacity }

// Contains reports whether id is currently tracked.
func (t *Tracker) Contains(id uint64) bool {
	_, ok := t.probe(id)
	return ok
}

// mix64 is a 64->64 bit avalanche mix (splitmix64's finalizer), used to
// index the hash set (spec.md §4.5).
func mix64(x uint64) uint64 {
	x ^= x >> 33
	x *= 0xff51afd7ed558ccd
	x ^= x >> 33
	x *= 0xc4ceb9fe1a85ec53
	x ^= x >> 33
	return x
}

// probe returns the index of id's slot and true if filled, or the first
// usable (free or tombstone) slot index and false if not found.
func (t *Tracker) probe(id uint64) (int, bool) {
	idx := int(mix64(id) & t.mask)
	firstFree := -1
	for i := 0; i < len(t.set); i++ {
		s := t.set[idx]
		switch s.state {
		case setFree:
			if firstFree == -1 {
				firstFree = idx
			}
			return firstFree, false
		case setTombstone:
			if firstFree == -1 {
				firstFree = idx
			}
		case setFilled:
			if s.id == id {
				return idx, true
			}
		}
		idx = int((uint64(idx) + 1) & t.mask)
	}
	return firstFree, false
}

func (t *Tracker) setInsert(id uint64) {
	idx, ok := t.probe(id)
	if ok {
		return
	}
	t.set[idx] = setSlot{id: id, state: setFilled}
}

func (t *Tracker) setRemove(id uint64) {
	idx, ok := t.probe(id)
	if !ok {
		return
	}
	t.set[idx] = setSlot{state: setTombstone}
}

func (t *Tracker) clearSet() {
	for i := range t.set {
		t.set[i] = setSlot{}
	}
}

// Insert records id as missing, tagged with the peer pubkey that
// advertised it. It returns inserted=false without effect if id is
// already tracked. If the tracker is at capacity, a uniformly random
// existing entry is evicted first and evicted is reported true
// (spec.md §4.5's "reservoir-style eviction", surfaced so callers can
// count it as a MissingSetOverflow event).
func (t *Tracker) Insert(id uint64, source [32]byte) (inserted, evicted bool) {
	if t.Contains(id) {
		return false, false
	}

	var idx int
	if t.count < t.capacity {
		idx = t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.count++
	} else {
		idx = t.rng.Intn(t.capacity)
		t.setRemove(t.list[idx].id)
		evicted = true
	}

	t.list[idx] = listSlot{id: id, source: source, used: true}
	t.setInsert(id)
	return true, evicted
}

// Pop pops up to len(out) tracked entries into out (in cursor-scan
// order, which is not insertion order since eviction is random) and
// returns the count written. If the tracker drains to empty, the hash
// set is cleared wholesale as a cheap consistency reset (spec.md
// §4.5).
func (t *Tracker) Pop(out []Entry) int {
	n := 0
	for n < len(out) && t.count > 0 {
		for !t.list[t.cursor].used {
			t.cursor = (t.cursor + 1) % t.capacity
		}
		slot := t.list[t.cursor]
		t.list[t.cursor] = listSlot{}
		t.setRemove(slot.id)
		t.freeList = append(t.freeList, t.cursor)
		t.count--
		out[n] = Entry{ID: slot.id, Source: slot.source}
		n++
		t.cursor = (t.cursor + 1) % t.capacity
	}
	if t.count == 0 {
		t.clearSet()
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
