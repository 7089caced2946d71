// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

package config

import (
	"fmt"

	"github.com/luxfi/log"
)

// Validate performs range checks on opts that the fluent With* methods
// cannot fully enforce on their own (cross-field constraints checked at
// Build time rather than at each call). Every violation is logged
// through logger at Warn level before Validate returns the
// corresponding error, so a misconfigured embedder sees the reason in
// its own logs rather than just a returned error string. If logger is
// nil, a no-op logger is used.
func Validate(opts *Options, logger log.Logger) error {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if opts.GossipFanout < 1 {
		logger.Warn("invalid config", "field", "gossip_fanout", "value", opts.GossipFanout, "constraint", ">= 1")
		return fmt.Errorf("config: gossip fanout must be at least 1, got %d", opts.GossipFanout)
	}
	if opts.MaxServices < 1 {
		logger.Warn("invalid config", "field", "max_services", "value", opts.MaxServices, "constraint", ">= 1")
		return fmt.Errorf("config: max services must be at least 1, got %d", opts.MaxServices)
	}
	if opts.MaxMissing < 1 {
		logger.Warn("invalid config", "field", "max_missing", "value", opts.MaxMissing, "constraint", ">= 1")
		return fmt.Errorf("config: max missing must be at least 1, got %d", opts.MaxMissing)
	}
	if opts.MaxOutbox < 1 {
		logger.Warn("invalid config", "field", "max_outbox", "value", opts.MaxOutbox, "constraint", ">= 1")
		return fmt.Errorf("config: max outbox must be at least 1, got %d", opts.MaxOutbox)
	}
	if opts.WALBytes < 12 {
		logger.Warn("invalid config", "field", "wal_bytes", "value", opts.WALBytes, "constraint", ">= 12")
		return fmt.Errorf("config: wal bytes must hold at least one frame (12), got %d", opts.WALBytes)
	}
	if opts.RecentRingSize < 32 {
		logger.Warn("invalid config", "field", "recent_ring_size", "value", opts.RecentRingSize, "constraint", ">= 32")
		return fmt.Errorf("config: recent ring size must be at least 32, got %d", opts.RecentRingSize)
	}
	if opts.MissingBudget < 1 {
		logger.Warn("invalid config", "field", "missing_budget", "value", opts.MissingBudget, "constraint", ">= 1")
		return fmt.Errorf("config: missing budget must be at least 1, got %d", opts.MissingBudget)
	}
	if opts.MissingBudget > opts.MaxMissing {
		logger.Warn("invalid config", "field", "missing_budget", "value", opts.MissingBudget, "constraint", "<= max_missing", "max_missing", opts.MaxMissing)
		return fmt.Errorf("config: missing budget (%d) cannot exceed max missing (%d)", opts.MissingBudget, opts.MaxMissing)
	}
	if opts.SyncEveryTicks < 1 || opts.ControlEveryTicks < 1 || opts.SampleEveryTicks < 1 {
		logger.Warn("invalid config", "field", "cadence", "sync", opts.SyncEveryTicks, "control", opts.ControlEveryTicks, "sample", opts.SampleEveryTicks, "constraint", ">= 1")
		return fmt.Errorf("config: cadence values must all be at least 1, got sync=%d control=%d sample=%d",
			opts.SyncEveryTicks, opts.ControlEveryTicks, opts.SampleEveryTicks)
	}
	return nil
}
