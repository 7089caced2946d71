// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package registry

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/myco-sh/myco/internal/hlc"
)

func TestUpdateInsertsNewID(t *testing.T) {
	require := require.New(t)
	r := New(8, 32)
	require.True(r.Update(1, hlc.Pack(100, 0)))
	require.Equal(uint64(hlc.Pack(100, 0)), r.GetVersion(1))
	require.Equal(1, r.Len())
}

func TestUpdateRejectsOlderOrEqualVersion(t *testing.T) {
	require := require.New(t)
	r := New(8, 32)
	r.Update(1, hlc.Pack(100, 5))
	require.False(r.Update(1, hlc.Pack(100, 5)))
	require.False(r.Update(1, hlc.Pack(90, 999)))
	require.Equal(hlc.Pack(100, 5), r.GetVersion(1))
}

func TestUpdateAcceptsStrictlyNewerVersion(t *testing.T) {
	require := require.New(t)
	r := New(8, 32)
	r.Update(1, hlc.Pack(100, 5))
	require.True(r.Update(1, hlc.Pack(100, 6)))
	require.Equal(hlc.Pack(100, 6), r.GetVersion(1))
}

func TestRegistryIsMonotonicNonDecreasing(t *testing.T) {
	require := require.New(t)
	r := New(8, 32)
	versions := []uint64{
		hlc.Pack(10, 0),
		hlc.Pack(10, 5),
		hlc.Pack(10, 3), // stale, ignored
		hlc.Pack(20, 0),
	}
	var last uint64
	for _, v := range versions {
		if r.Update(1, v) {
			cur := r.GetVersion(1)
			require.GreaterOrEqual(cur, last)
			last = cur
		}
	}
	require.Equal(hlc.Pack(20, 0), r.GetVersion(1))
}

func TestCapacityLimitRejectsNewIDsOnceFull(t *testing.T) {
	require := require.New(t)
	r := New(2, 32)
	require.True(r.Update(1, hlc.Pack(1, 0)))
	require.True(r.Update(2, hlc.Pack(1, 0)))
	require.False(r.Update(3, hlc.Pack(1, 0)))
	require.Equal(2, r.Len())
	// Existing ids can still advance.
	require.True(r.Update(1, hlc.Pack(2, 0)))
}

func TestDrainDirtyClearsBitsAndIsIdempotent(t *testing.T) {
	require := require.New(t)
	r := New(8, 32)
	r.Update(1, hlc.Pack(10, 0))
	r.Update(2, hlc.Pack(10, 0))

	out := make([]Entry, 8)
	n := r.DrainDirty(out)
	require.Equal(2, n)

	n2 := r.DrainDirty(out)
	require.Equal(0, n2)
	require.False(r.HasDirty())
}

func TestDrainDirtyRespectsOutputCapacity(t *testing.T) {
	require := require.New(t)
	r := New(8, 32)
	for i := uint64(1); i <= 5; i++ {
		r.Update(i, hlc.Pack(10, 0))
	}
	out := make([]Entry, 2)
	n := r.DrainDirty(out)
	require.Equal(2, n)
	require.True(r.HasDirty())
}

func TestCopyRecentNewestFirstDoesNotClear(t *testing.T) {
	require := require.New(t)
	r := New(8, 32)
	r.Update(1, hlc.Pack(10, 0))
	r.Update(2, hlc.Pack(10, 0))
	r.Update(3, hlc.Pack(10, 0))

	out := make([]Entry, 3)
	n := r.CopyRecent(out)
	require.Equal(3, n)
	require.Equal(uint64(3), out[0].ID)
	require.Equal(uint64(2), out[1].ID)
	require.Equal(uint64(1), out[2].ID)

	// Calling again returns the same thing; nothing was cleared.
	out2 := make([]Entry, 3)
	n2 := r.CopyRecent(out2)
	require.Equal(out, out2[:n2])
}

func TestCopyRecentRingEviction(t *testing.T) {
	require := require.New(t)
	r := New(100, 32) // ring holds only 32 even though capacity is 100
	for i := uint64(1); i <= 40; i++ {
		r.Update(i, hlc.Pack(10, 0))
	}
	out := make([]Entry, 40)
	n := r.CopyRecent(out)
	require.Equal(32, n)
	require.Equal(uint64(40), out[0].ID) // most recent first
}

func TestPopulateDigestNoRepeatsWithinCall(t *testing.T) {
	require := require.New(t)
	r := New(50, 32)
	for i := uint64(1); i <= 50; i++ {
		r.Update(i, hlc.Pack(10, 0))
	}
	out := make([]Entry, 20)
	n := r.PopulateDigest(out)
	require.Equal(20, n)

	seen := make(map[uint64]bool)
	for _, e := range out[:n] {
		require.False(seen[e.ID], "id %d repeated", e.ID)
		seen[e.ID] = true
	}
}

func TestPopulateDigestEmptyRegistry(t *testing.T) {
	r := New(8, 32)
	out := make([]Entry, 4)
	require.Equal(t, 0, r.PopulateDigest(out))
}
