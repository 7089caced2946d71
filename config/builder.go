// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package config holds the Node's construction-time options: capacity
// knobs, gossip cadence, and the MAC-failure acceptance policy
// (spec.md §6 "Environment inputs the core consumes").
package config

import (
	"fmt"

	"github.com/luxfi/log"
)

// Options holds every tunable the Node reads at construction. The core
// never re-reads these at runtime, and it never reads the process
// environment itself (spec.md §9 "Gossip fanout env coupling": the
// embedder is responsible for sourcing these from wherever it likes).
type Options struct {
	NodeID uint16

	// GossipFanout is the number of random peers a newly-accepted
	// Deploy is forwarded to.
	GossipFanout uint8

	// MaxServices, MaxMissing, MaxOutbox, WALBytes are fixed capacity
	// knobs sized once at construction.
	MaxServices int
	MaxMissing  int
	MaxOutbox   int
	WALBytes    int

	// RecentRingSize is the MRU recency-ring length (spec.md §3
	// requires at least 32).
	RecentRingSize int

	// MissingBudget is the number of missing-list pops attempted per
	// tick.
	MissingBudget int

	// SyncEveryTicks, ControlEveryTicks, SampleEveryTicks gate how
	// often Sync/Control digests and the random anti-entropy sample
	// are emitted (spec.md §9 "Two-ping periodicity").
	SyncEveryTicks    int
	ControlEveryTicks int
	SampleEveryTicks  int

	// AllowOnMACFailure, if true, tells the embedder to still dispatch
	// a packet to the Node after a failed MAC check (spec.md §4.7).
	AllowOnMACFailure bool
}

// Builder provides a fluent interface for constructing Options, with a
// sticky first-error field so a chain of invalid calls fails once at
// Build() rather than panicking mid-chain.
type Builder struct {
	opts   *Options
	err    error
	logger log.Logger
}

// NewBuilder returns a Builder seeded with the spec's default values.
func NewBuilder(nodeID uint16) *Builder {
	return &Builder{
		opts: &Options{
			NodeID:            nodeID,
			GossipFanout:      4,
			MaxServices:       512,
			MaxMissing:        1024,
			MaxOutbox:         64,
			WALBytes:          64 * 1024,
			RecentRingSize:    64,
			MissingBudget:     64,
			SyncEveryTicks:    1,
			ControlEveryTicks: 10,
			SampleEveryTicks:  50,
		},
	}
}

// WithGossipFanout sets the Deploy forward fanout.
func (b *Builder) WithGossipFanout(n uint8) *Builder {
	if b.err != nil {
		return b
	}
	if n < 1 {
		b.err = fmt.Errorf("config: gossip fanout must be at least 1, got %d", n)
		return b
	}
	b.opts.GossipFanout = n
	return b
}

// WithCapacities sets the fixed-size container capacities.
func (b *Builder) WithCapacities(maxServices, maxMissing, maxOutbox, walBytes int) *Builder {
	if b.err != nil {
		return b
	}
	if maxServices < 1 || maxMissing < 1 || maxOutbox < 1 || walBytes < 1 {
		b.err = fmt.Errorf("config: capacities must all be positive, got services=%d missing=%d outbox=%d wal=%d",
			maxServices, maxMissing, maxOutbox, walBytes)
		return b
	}
	b.opts.MaxServices = maxServices
	b.opts.MaxMissing = maxMissing
	b.opts.MaxOutbox = maxOutbox
	b.opts.WALBytes = walBytes
	return b
}

// WithRecentRingSize sets the MRU recency-ring length.
func (b *Builder) WithRecentRingSize(n int) *Builder {
	if b.err != nil {
		return b
	}
	if n < 32 {
		b.err = fmt.Errorf("config: recent ring size must be at least 32, got %d", n)
		return b
	}
	b.opts.RecentRingSize = n
	return b
}

// WithMissingBudget sets the per-tick missing-list pop budget.
func (b *Builder) WithMissingBudget(n int) *Builder {
	if b.err != nil {
		return b
	}
	if n < 1 {
		b.err = fmt.Errorf("config: missing budget must be at least 1, got %d", n)
		return b
	}
	b.opts.MissingBudget = n
	return b
}

// WithCadence sets the Sync/Control/sample emission periods, in ticks.
func (b *Builder) WithCadence(syncEvery, controlEvery, sampleEvery int) *Builder {
	if b.err != nil {
		return b
	}
	if syncEvery < 1 || controlEvery < 1 || sampleEvery < 1 {
		b.err = fmt.Errorf("config: cadence values must all be at least 1, got sync=%d control=%d sample=%d",
			syncEvery, controlEvery, sampleEvery)
		return b
	}
	b.opts.SyncEveryTicks = syncEvery
	b.opts.ControlEveryTicks = controlEvery
	b.opts.SampleEveryTicks = sampleEvery
	return b
}

// WithAllowOnMACFailure sets the MAC-failure acceptance policy.
func (b *Builder) WithAllowOnMACFailure(allow bool) *Builder {
	if b.err != nil {
		return b
	}
	b.opts.AllowOnMACFailure = allow
	return b
}

// WithLogger sets the logger Build() uses to Warn about validation
// failures. If never called, Build() validates silently (a no-op
// logger).
func (b *Builder) WithLogger(logger log.Logger) *Builder {
	if b.err != nil {
		return b
	}
	b.logger = logger
	return b
}

// Build validates and returns the final Options.
func (b *Builder) Build() (*Options, error) {
	if b.err != nil {
		return nil, b.err
	}
	if err := Validate(b.opts, b.logger); err != nil {
		return nil, err
	}
	return b.opts, nil
}
