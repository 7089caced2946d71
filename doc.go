// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

/*
Package myco provides the core engine of Myco, a small peer-to-peer
daemon that replicates a service registry across a fixed, gossiping
set of nodes.

# Overview

Each node holds a local copy of the registry, a last-writer-wins CRDT
keyed by service id and timestamped with a hybrid logical clock
(internal/hlc). Nodes exchange fixed-size 1024-byte datagrams
(internal/packet) on a tick cadence: Sync and Control packets carry
compact digests of known versions (internal/digest), Deploy packets
carry full service records (internal/store), and Request packets pull
records a node has learned about but not yet fetched
(internal/missing). A write-ahead log (internal/wal) lets a node
recover its last-known HLC watermark across a restart without
replaying the full registry.

# Architecture

  - internal/hlc       hybrid logical clock
  - internal/registry   the replicated LWW registry
  - internal/store      fixed-capacity service record storage
  - internal/wal        crash-recovery watermark log
  - internal/digest     wire codec for registry digests
  - internal/missing    bounded tracker for known-but-unfetched ids
  - internal/packet     the fixed-size wire packet
  - internal/wire       the encrypt-then-MAC boundary (embedder-wired)
  - internal/metrics    shared prometheus instrumentation
  - internal/node       the tick engine tying all of the above together
  - executor            the Deploy-side-effect hook
  - config              builder-validated runtime options
  - peerset             the peer-address resolution boundary

internal/node is the only package that mutates state; everything else
is a leaf it orchestrates one tick at a time. The node never resolves
peer addresses or performs cryptographic sealing itself — both are
injected by the embedder through the peerset.Set and internal/wire
boundaries, so the core stays a pure, fully tested state machine over
in-memory, bounded-size structures.
*/
package myco
