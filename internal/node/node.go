// Copyright (C) 2025, Myco Authors. All rights reserved.
// See the file LICENSE for licensing terms.

// Package node implements the replicated node engine: the single
// component that mutates the registry, store, WAL, missing tracker, and
// HLC (spec.md §4.6). Everything else in this module is a leaf the Node
// orchestrates one tick at a time.
package node

import (
	"context"
	"encoding/binary"

	"github.com/luxfi/log"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/myco-sh/myco/config"
	"github.com/myco-sh/myco/executor"
	"github.com/myco-sh/myco/internal/digest"
	"github.com/myco-sh/myco/internal/hlc"
	"github.com/myco-sh/myco/internal/metrics"
	"github.com/myco-sh/myco/internal/missing"
	"github.com/myco-sh/myco/internal/packet"
	"github.com/myco-sh/myco/internal/registry"
	"github.com/myco-sh/myco/internal/store"
	"github.com/myco-sh/myco/internal/wal"
)

// OutboxItem is one packet awaiting delivery by the embedder. Recipient
// nil means broadcast; FanoutHint further narrows a broadcast to "pick
// at most this many known peers at random" (spec.md §4.6's forwarded
// Deploy, "up to gossip_fanout random peers") rather than "every known
// peer" (spec.md §6's Sync/Control broadcasts, FanoutHint left at 0).
// The Node never resolves FanoutHint into actual peers itself — it does
// not read the peer set (spec.md §6) — the embedder is responsible for
// honoring the hint when it drains the outbox.
type OutboxItem struct {
	Packet     packet.Packet
	Recipient  *[32]byte
	FanoutHint int
}

// requestIDLen is the byte width of the id field a Request packet's
// payload carries (spec.md §4.6 "Read 8-byte id").
const requestIDLen = 8

// Node is the core replicated engine. It owns a fixed storage slab
// (registry, store, missing tracker, WAL buffer) sized once at
// construction, and performs no allocation in its steady-state Tick
// path beyond what New preallocates as scratch space.
type Node struct {
	opts   *config.Options
	sender [32]byte

	clock   *hlc.Clock
	reg     *registry.Registry
	st      *store.Store
	w       *wal.WAL
	miss    *missing.Tracker
	exec    executor.Executor
	logger  log.Logger
	metrics *metrics.Metrics

	knowledge uint64
	tickNum   uint64

	outbox []OutboxItem

	// scratch buffers, sized at construction and reused every tick so
	// Tick itself never allocates (spec.md §5 "freeze" discipline).
	deltaScratch  []digest.Entry
	recentScratch []digest.Entry
	sampleScratch []digest.Entry
	popScratch    []missing.Entry
	stagingBuf    []byte
	directBuf     []byte
	primaryEncBuf []byte
	sampleEncBuf  []byte
	decodeScratch []digest.Entry

	decompressScratch []byte
	sectionScratch    []digest.Section
}

// maxSections bounds how many sections a single composeDigest call can
// produce (one primary section plus at most one sample section), which
// is also the most handleDigest ever needs to decode in one call.
const maxSections = 2

// maxDecodedPayload bounds the size of a decoded digest payload: a
// compressed payload inflates back to at most the 2*PayloadSize staging
// buffer composeDigest compresses it from.
const maxDecodedPayload = 2 * packet.PayloadSize

// maxDecodableEntries bounds how many (id, version) pairs a single
// maxDecodedPayload-byte payload can possibly carry: the tightest encoding
// (columnar) spends at least 3 bytes per entry, one varint byte each
// for id, wall delta, and logical counter.
const maxDecodableEntries = maxDecodedPayload / 3

// New constructs a Node with storage sized from opts. sender is the
// public key stamped into every packet this node originates; callers
// typically derive it once (deterministically from node_id for tests,
// or from a loaded keypair in production — spec.md §9 "Deterministic
// identity") and pass it in, since key derivation itself is outside the
// core's concerns (spec.md §4.7). walBuf is the caller-owned backing
// array for the WAL; its prior contents (if any) are scanned for a
// recovery watermark before any writes occur. If logger is nil, a
// no-op logger is used. If registerer is nil, the default prometheus
// registry is used.
func New(opts *config.Options, sender [32]byte, walBuf []byte, exec executor.Executor, logger log.Logger, registerer prometheus.Registerer) (*Node, error) {
	if logger == nil {
		logger = log.NewNoOpLogger()
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	m, err := metrics.New(registerer)
	if err != nil {
		return nil, err
	}

	n := &Node{
		opts:    opts,
		sender:  sender,
		clock:   hlc.New(),
		reg:     registry.New(opts.MaxServices, opts.RecentRingSize),
		st:      store.New(opts.MaxServices),
		w:       wal.New(walBuf),
		miss:    missing.New(opts.MaxMissing),
		exec:    exec,
		logger:  logger,
		metrics: m,

		outbox: make([]OutboxItem, 0, opts.MaxOutbox),

		deltaScratch:  make([]digest.Entry, opts.MaxServices),
		recentScratch: make([]digest.Entry, opts.RecentRingSize),
		sampleScratch: make([]digest.Entry, opts.RecentRingSize),
		popScratch:    make([]missing.Entry, opts.MissingBudget),
		stagingBuf:    make([]byte, 0, 2*packet.PayloadSize),
		directBuf:     make([]byte, 0, packet.PayloadSize),
		primaryEncBuf: make([]byte, 0, packet.PayloadSize),
		sampleEncBuf:  make([]byte, 0, packet.PayloadSize),
		decodeScratch: make([]digest.Entry, 0, maxDecodableEntries),

		decompressScratch: make([]byte, 0, maxDecodedPayload),
		sectionScratch:    make([]digest.Section, 0, maxSections),
	}
	n.knowledge = wal.Recover(walBuf)
	logger.Info("node initialized", "node_id", opts.NodeID, "knowledge", n.knowledge)
	return n, nil
}

// Knowledge returns the watermark recovered from the WAL at
// construction (spec.md §4.6 "recovers WAL into knowledge").
func (n *Node) Knowledge() uint64 { return n.knowledge }

// RegistryLen returns the number of distinct service ids currently
// tracked.
func (n *Node) RegistryLen() int { return n.reg.Len() }

// GetVersion returns the registry version stored for id, or 0 if
// absent.
func (n *Node) GetVersion(id uint64) uint64 { return n.reg.GetVersion(id) }

// GetRecord returns the service record stored for id, if any.
func (n *Node) GetRecord(id uint64) (store.Record, bool) { return n.st.GetByID(id) }

// RecordMACFailure increments the mac_failures_total metric. The core
// never imports internal/wire directly (spec.md §4.7's core/wire
// boundary), so the embedder calls this once for every packet its own
// wire.Open rejects, keeping the failure visible through the Node's own
// metrics instead of only through wire.Counters' independent atomic.
func (n *Node) RecordMACFailure() {
	n.metrics.MACFailures.Inc()
}

// InjectService locally originates a new version for record via
// HLC.NextNow. If the registry accepts the new version, the record is
// copied into the store, the executor is invoked (errors logged and
// swallowed), a WAL frame is appended, and the registry's delta buffer
// is marked dirty so the next Sync advertises it. Returns false if the
// registry rejected the update (e.g. a fresher version already present,
// which cannot happen for a genuinely new id) or the store is full.
func (n *Node) InjectService(ctx context.Context, record store.Record) bool {
	version := n.clock.NextNow()
	if !n.reg.Update(record.ID, version) {
		return false
	}
	if err := n.st.Put(record); err != nil {
		n.metrics.StoreFull.Inc()
		n.logger.Warn("store full on injectService", "id", record.ID, "error", err)
		return false
	}
	n.w.Append(version)
	n.invokeExecutor(ctx, record)
	return true
}

func (n *Node) invokeExecutor(ctx context.Context, record store.Record) {
	if n.exec == nil {
		return
	}
	if err := n.exec.Deploy(ctx, record); err != nil {
		n.metrics.ExecutorErrors.Inc()
		n.logger.Error("executor deploy failed", "id", record.ID, "error", err)
	}
}

// Tick runs one pass of the pipeline described in spec.md §4.6: a
// bounded pull of missing-work requests, dispatch of every inbound
// packet, and periodic Sync/Control digest emission. The outbox is
// cleared at the start of the call; the caller drains n.Outbox() after
// Tick returns.
func (n *Node) Tick(ctx context.Context, inputs []packet.Packet) {
	n.tickNum++
	n.outbox = n.outbox[:0]

	n.pullMissing()
	for i := range inputs {
		n.dispatch(ctx, &inputs[i])
	}
	n.emitSync()
	if n.tickNum%uint64(n.opts.ControlEveryTicks) == 0 {
		n.emitControl()
	}

	n.metrics.RegistrySize.Set(float64(n.reg.Len()))
	n.metrics.OutboxDepth.Set(float64(len(n.outbox)))
	n.metrics.MissingDepth.Set(float64(n.miss.Len()))
}

// Outbox returns the packets produced by the most recent Tick, in
// emission order. The returned slice is only valid until the next Tick
// call.
func (n *Node) Outbox() []OutboxItem { return n.outbox }

func (n *Node) pushOutbox(item OutboxItem) bool {
	if len(n.outbox) >= cap(n.outbox) {
		return false
	}
	n.outbox = append(n.outbox, item)
	return true
}

// pullMissing pops up to MissingBudget entries from the missing tracker
// and, for each whose registry version is still 0 (truly unfetched, not
// just superseded since the advertisement), emits a Request to its
// recorded source peer (spec.md §4.6 step 2).
func (n *Node) pullMissing() {
	budget := n.popScratch[:n.opts.MissingBudget]
	popped := n.miss.Pop(budget)
	for i := 0; i < popped; i++ {
		entry := budget[i]
		if n.reg.GetVersion(entry.ID) != 0 {
			continue
		}
		p := n.newRequestPacket(entry.ID)
		src := entry.Source
		if !n.pushOutbox(OutboxItem{Packet: p, Recipient: &src}) {
			return
		}
	}
}

func (n *Node) newRequestPacket(id uint64) packet.Packet {
	p := packet.New(packet.Request, n.opts.NodeID, n.sender)
	binary.LittleEndian.PutUint64(p.Payload[:requestIDLen], id)
	p.PayloadLen = requestIDLen
	return p
}

func (n *Node) dispatch(ctx context.Context, p *packet.Packet) {
	switch p.MsgType {
	case packet.Deploy:
		n.handleDeploy(ctx, p)
	case packet.Request:
		n.handleRequest(p)
	case packet.Sync, packet.Control:
		n.handleDigest(p)
	default:
		n.metrics.PacketsDropped.WithLabelValues("unknown_type").Inc()
	}
}

// handleDeploy implements spec.md §4.6's Deploy case: validate length,
// parse (version, record), fold the version into the HLC, and if the
// registry accepts it as strictly newer, store it, run the executor,
// and forward to up to GossipFanout random peers with sender rewritten
// to self.
func (n *Node) handleDeploy(ctx context.Context, p *packet.Packet) {
	payload := p.PayloadBytes()
	if len(payload) < 8+store.EncodedLen {
		n.metrics.PacketsDropped.WithLabelValues("malformed").Inc()
		return
	}
	version := binary.LittleEndian.Uint64(payload[:8])
	record := store.DecodeRecord(payload[8 : 8+store.EncodedLen])

	n.clock.ObserveNow(version)
	n.metrics.PacketsProcessed.WithLabelValues("deploy").Inc()

	if !n.reg.Update(record.ID, version) {
		return
	}
	if err := n.st.Put(record); err != nil {
		n.metrics.StoreFull.Inc()
		n.metrics.PacketsDropped.WithLabelValues("store_full").Inc()
		n.logger.Warn("store full on deploy", "id", record.ID, "error", err)
		return
	}
	n.w.Append(version)
	n.invokeExecutor(ctx, record)

	forward := *p
	forward.NodeID = n.opts.NodeID
	forward.SenderPubKey = n.sender
	n.pushOutbox(OutboxItem{Packet: forward, Recipient: nil, FanoutHint: int(n.opts.GossipFanout)})
}

// handleRequest implements spec.md §4.6's Request case: if the store
// holds a record for the requested id, reply with a Deploy packet
// addressed to the sender.
func (n *Node) handleRequest(p *packet.Packet) {
	payload := p.PayloadBytes()
	if len(payload) < requestIDLen {
		n.metrics.PacketsDropped.WithLabelValues("malformed").Inc()
		return
	}
	id := binary.LittleEndian.Uint64(payload[:requestIDLen])
	n.metrics.PacketsProcessed.WithLabelValues("request").Inc()

	record, ok := n.st.GetByID(id)
	if !ok {
		return
	}
	version := n.reg.GetVersion(id)
	reply := packet.New(packet.Deploy, n.opts.NodeID, n.sender)
	var body [8 + store.EncodedLen]byte
	binary.LittleEndian.PutUint64(body[:8], version)
	record.Encode(body[8:])
	copy(reply.Payload[:len(body)], body[:])
	reply.PayloadLen = uint16(len(body))

	sender := p.SenderPubKey
	n.pushOutbox(OutboxItem{Packet: reply, Recipient: &sender})
}

// handleDigest implements spec.md §4.6's Sync/Control case: decompress
// if flagged, parse sections (or fall back to a single row-framed
// digest if no section marker is present), fold every entry's version
// into the HLC, and for every entry strictly newer than the local
// version, track it as missing and immediately request it from the
// sender.
func (n *Node) handleDigest(p *packet.Packet) {
	kind := "sync"
	if p.MsgType == packet.Control {
		kind = "control"
	}
	n.metrics.PacketsProcessed.WithLabelValues(kind).Inc()

	payload := p.PayloadBytes()
	if p.IsCompressed() {
		decompressed, err := digest.Decompress(payload, n.decompressScratch[:0])
		if err != nil {
			n.metrics.PacketsDropped.WithLabelValues("compression_failure").Inc()
			return
		}
		n.decompressScratch = decompressed[:0]
		payload = decompressed
	}

	entries, err := n.decodeDigestEntries(payload)
	if err != nil {
		n.metrics.PacketsDropped.WithLabelValues("malformed").Inc()
		return
	}

	for _, e := range entries {
		n.clock.ObserveNow(e.Version)
		if hlc.Newer(e.Version, n.reg.GetVersion(e.ID)) {
			n.trackMissing(e.ID, p.SenderPubKey)
		}
	}
}

func (n *Node) decodeDigestEntries(payload []byte) ([]digest.Entry, error) {
	entries := n.decodeScratch[:0]
	var err error

	if !digest.HasSectionMarker(payload) {
		entries, _, err = digest.DecodeRow(payload, entries)
		n.decodeScratch = entries[:0]
		return entries, err
	}

	sections, err := digest.DecodeSections(payload, n.sectionScratch[:0])
	if err != nil {
		n.sectionScratch = sections[:0]
		return nil, err
	}
	for _, s := range sections {
		var dErr error
		entries, _, dErr = digest.DecodeColumnar(s.Body, entries)
		if dErr != nil {
			n.decodeScratch = entries[:0]
			n.sectionScratch = sections[:0]
			return nil, dErr
		}
	}
	n.decodeScratch = entries[:0]
	n.sectionScratch = sections[:0]
	return entries, nil
}

func (n *Node) trackMissing(id uint64, source [32]byte) {
	_, evicted := n.miss.Insert(id, source)
	if evicted {
		n.metrics.MissingOverflow.Inc()
	}
	p := n.newRequestPacket(id)
	n.pushOutbox(OutboxItem{Packet: p, Recipient: &source})
}

// emitSync builds and enqueues a Sync packet from the registry's dirty
// delta plus, every SampleEveryTicks ticks, a random anti-entropy
// sample (spec.md §4.4 "Sync payload").
func (n *Node) emitSync() {
	if n.tickNum%uint64(n.opts.SyncEveryTicks) != 0 {
		return
	}
	deltaN := n.reg.DrainDirty(n.deltaScratch)
	if deltaN == 0 && !n.sampleDue() {
		return
	}
	sampleN := n.maybeSample()
	n.composeDigest(packet.Sync, digest.KindDelta, n.deltaScratch[:deltaN], n.sampleScratch[:sampleN])
}

// emitControl builds and enqueues a Control packet from the MRU recency
// ring plus, every SampleEveryTicks ticks, a random sample (spec.md
// §4.4 "Control payload").
func (n *Node) emitControl() {
	recentN := n.reg.CopyRecent(n.recentScratch)
	sampleN := n.maybeSample()
	n.composeDigest(packet.Control, digest.KindRecent, n.recentScratch[:recentN], n.sampleScratch[:sampleN])
}

func (n *Node) sampleDue() bool {
	return n.tickNum%uint64(n.opts.SampleEveryTicks) == 0
}

func (n *Node) maybeSample() int {
	if !n.sampleDue() {
		return 0
	}
	return n.reg.PopulateDigest(n.sampleScratch)
}

// composeDigest implements spec.md §4.4's assembly rules: stage
// primary+sample columnar sections into a staging buffer of
// 2*PayloadSize bytes; if that fits raw in the packet payload, use it
// as-is; else try compression; if compression gives no benefit or still
// doesn't fit, fall back to re-encoding just the primary entries as an
// unsectioned row-framed digest directly into the payload at whatever
// size fits, dropping the sample section.
func (n *Node) composeDigest(msgType packet.Type, primaryKind digest.SectionKind, primary, sample []digest.Entry) {
	n.primaryEncBuf, _ = digest.EncodeColumnar(n.primaryEncBuf[:0], primary, packet.PayloadSize)

	staging := n.stagingBuf[:0]
	staging, _ = digest.AppendSection(staging, 0, cap(n.stagingBuf), primaryKind, n.primaryEncBuf)
	if len(sample) > 0 {
		n.sampleEncBuf, _ = digest.EncodeColumnar(n.sampleEncBuf[:0], sample, packet.PayloadSize)
		staging, _ = digest.AppendSection(staging, 0, cap(n.stagingBuf), digest.KindSample, n.sampleEncBuf)
	}

	p := packet.New(msgType, n.opts.NodeID, n.sender)
	if len(staging) <= packet.PayloadSize {
		copy(p.Payload[:len(staging)], staging)
		p.PayloadLen = uint16(len(staging))
		n.pushOutbox(OutboxItem{Packet: p})
		return
	}

	compressed, err := digest.Compress(staging)
	if err == nil && len(compressed) <= packet.PayloadSize {
		copy(p.Payload[:len(compressed)], compressed)
		p.PayloadLen = uint16(len(compressed))
		p.SetCompressed(true)
		n.pushOutbox(OutboxItem{Packet: p})
		return
	}

	direct := n.directBuf[:0]
	direct, _ = digest.EncodeRow(direct, primary, packet.PayloadSize)
	copy(p.Payload[:len(direct)], direct)
	p.PayloadLen = uint16(len(direct))
	n.pushOutbox(OutboxItem{Packet: p})
}

