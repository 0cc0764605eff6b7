// Package transport implements the pipelined, window-based consumer
// fetch engine (spec §4.6): a "vegas" engine that keeps a window of
// outstanding interests in flight, estimates RTO per segment, detects
// loss via an out-of-order threshold and fast-retransmits it, and
// reassembles content in order through a fixed-size ring buffer; and a
// "raaqm" congestion-control overlay (raaqm.go) that replaces vegas's
// plain AIMD window update with a per-path RTT/drop-probability scheme.
package transport

import (
	"time"

	"go.uber.org/zap"

	"github.com/cicnx/icnfwd/pkg/icnerr"
	"github.com/cicnx/icnfwd/pkg/rto"
)

// OOOThreshold is the number of segments that must arrive after a gap
// before the gap is declared lost and fast-retransmitted, mirroring
// icnet's OOO_THRESHOLD.
const OOOThreshold = 3

// PayloadType distinguishes ordinary content from a manifest, per spec's
// manifest-aware reassembly supplement.
type PayloadType int

const (
	PayloadData PayloadType = iota
	PayloadManifest
)

// Callbacks are nullable consumer hooks. Signing/verification schemes
// themselves are out of scope (spec §1 Non-goals); these are the ambient
// hook points a transport carries regardless, per SPEC_FULL.md §3.
type Callbacks struct {
	OnContentObject        func(segment uint64, payload []byte)
	OnManifest              func(segment uint64, manifest []byte) bool
	VerifyContentObject     func(segment uint64, payload []byte) bool
	RequireInterestWithHash func(segment uint64) []byte

	// OnTimeout fires once, after a segment's retransmission budget is
	// exhausted and the fetch has terminated as a failure. deliveredThrough
	// is the number of leading segments (0..deliveredThrough-1) already
	// streamed through OnContentObject in order, honoring the
	// on_payload_retrieved partial-delivery policy.
	OnTimeout func(segment uint64, deliveredThrough uint64)
}

// DefaultMaxRetransmissions mirrors icnet's compiled-in MAX_RETX.
const DefaultMaxRetransmissions = 5

// Config parameterizes a Vegas consumer.
type Config struct {
	InitialWindow   float64
	MaxWindow       float64
	BufSize         int // ring-buffer capacity, must be a power of two
	InterestLifetime time.Duration
	VirtualDownload bool // drive the fetch to completion without retaining payload bytes

	// MaxRetransmissions caps how many times a single segment may be
	// retransmitted, by fast retransmit or timeout combined, before the
	// fetch is abandoned as a Timeout failure. 0 means DefaultMaxRetransmissions.
	MaxRetransmissions int

	// ReportPartialOnTimeout, when false, reports deliveredThrough as 0 on
	// OnTimeout regardless of how much was actually reassembled, so a
	// caller that doesn't opt in to partial delivery treats any timeout as
	// a total loss.
	ReportPartialOnTimeout bool

	SendInterest func(segment uint64) error

	Callbacks Callbacks
	Logger    *zap.Logger

	// Policy governs window growth/shrink. Nil defaults to plain AIMD
	// (additive increase, multiplicative decrease); pkg/transport's RAAQM
	// overlay installs its own Policy to subclass this behavior with
	// per-path drop-probability control instead.
	Policy WindowPolicy
	// PathOf maps a segment number to the path/next-hop identifier the
	// RAAQM policy keys its per-path RTT table on. Nil means "single
	// path" (always 0).
	PathOf func(segment uint64) uint32
}

// WindowPolicy decides how the congestion window reacts to a good sample
// (OnSample) or a detected loss (OnLoss). rtt is the measured round-trip
// time for the sample that triggered OnSample; it is zero for a
// retransmitted segment, since Karn's rule forbids sampling those.
type WindowPolicy interface {
	OnSample(v *Vegas, pathID uint32, rtt time.Duration)
	OnLoss(v *Vegas, pathID uint32)
}

// vanillaPolicy is plain AIMD: +1/window per good sample, halve on loss.
type vanillaPolicy struct{}

func (vanillaPolicy) OnSample(v *Vegas, _ uint32, _ time.Duration) {
	v.window += 1 / v.window
	if v.cfg.MaxWindow > 0 && v.window > v.cfg.MaxWindow {
		v.window = v.cfg.MaxWindow
	}
}

func (vanillaPolicy) OnLoss(v *Vegas, _ uint32) {
	v.window /= 2
	if v.window < 1 {
		v.window = 1
	}
}

type outstanding struct {
	sentAt       time.Time
	retransmits  int
}

// Vegas is the pipelined consumer fetch engine.
type Vegas struct {
	cfg    Config
	rto    *rto.Estimator
	window float64

	base         uint64 // next segment expected in order by the reassembler
	highestSent  uint64
	sentAny      bool

	inFlight  map[uint64]*outstanding
	received  map[uint64]bool // bounded by BufSize, cleared as base advances
	ring      [][]byte
	ringMask  uint64

	done    bool
	onDone  func()
}

// New constructs a Vegas consumer. cfg.Logger may be nil.
func New(cfg Config, estimator *rto.Estimator) (*Vegas, error) {
	if cfg.BufSize == 0 || cfg.BufSize&(cfg.BufSize-1) != 0 {
		return nil, icnerr.New(icnerr.InvalidArgument, "BufSize must be a power of two")
	}
	if cfg.SendInterest == nil {
		return nil, icnerr.New(icnerr.InvalidArgument, "SendInterest is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.InitialWindow <= 0 {
		cfg.InitialWindow = 1
	}
	if cfg.Policy == nil {
		cfg.Policy = vanillaPolicy{}
	}
	if cfg.MaxRetransmissions <= 0 {
		cfg.MaxRetransmissions = DefaultMaxRetransmissions
	}
	return &Vegas{
		cfg:      cfg,
		rto:      estimator,
		window:   cfg.InitialWindow,
		inFlight: make(map[uint64]*outstanding),
		received: make(map[uint64]bool),
		ring:     make([][]byte, cfg.BufSize),
		ringMask: uint64(cfg.BufSize - 1),
	}, nil
}

// Start begins the fetch by filling the initial window.
func (v *Vegas) Start() error {
	return v.scheduleNextInterests()
}

// OnDone registers a callback invoked when the fetch is abandoned after a
// segment's retransmission budget is exhausted. It is not invoked on any
// other path; the engine has no notion of a final segment.
func (v *Vegas) OnDone(f func()) { v.onDone = f }

func (v *Vegas) scheduleNextInterests() error {
	for float64(len(v.inFlight)) < v.window {
		seg := v.highestSent
		if v.sentAny {
			seg++
		}
		if err := v.cfg.SendInterest(seg); err != nil {
			return err
		}
		v.inFlight[seg] = &outstanding{sentAt: time.Now()}
		v.highestSent = seg
		v.sentAny = true
	}
	return nil
}

// OnContentSegment handles an arriving content segment.
func (v *Vegas) OnContentSegment(segment uint64, payload []byte, payloadType PayloadType) error {
	if v.done {
		return nil
	}
	out, wasInFlight := v.inFlight[segment]
	delete(v.inFlight, segment)

	if payloadType == PayloadManifest && v.cfg.Callbacks.OnManifest != nil {
		if !v.cfg.Callbacks.OnManifest(segment, payload) {
			return icnerr.New(icnerr.InvalidPacket, "manifest verification failed")
		}
	}
	if v.cfg.Callbacks.VerifyContentObject != nil && !v.cfg.Callbacks.VerifyContentObject(segment, payload) {
		return icnerr.New(icnerr.InvalidPacket, "content verification failed")
	}

	pathID := v.pathOf(segment)
	var sampleRTT time.Duration
	if wasInFlight && out.retransmits == 0 {
		sampleRTT = time.Since(out.sentAt)
		v.rto.Update(sampleRTT)
	}

	// Matches the original's (possibly unintended) ordering: the segment
	// is marked received before the fast-retransmit scan below runs, so a
	// segment that arrives exactly at the OOO threshold can mask its own
	// gap detection. Carried as-is per DESIGN.md's Open Question decision.
	v.received[segment] = true
	v.cfg.Policy.OnSample(v, pathID, sampleRTT)
	v.checkForFastRetransmission(segment)

	if !v.cfg.VirtualDownload {
		v.storeSegment(segment, payload)
	}
	v.reassemble()

	if v.cfg.Callbacks.OnContentObject != nil && v.cfg.VirtualDownload {
		v.cfg.Callbacks.OnContentObject(segment, payload)
	}

	return v.scheduleNextInterests()
}

func (v *Vegas) storeSegment(segment uint64, payload []byte) {
	if segment < v.base {
		return
	}
	if segment-v.base >= uint64(len(v.ring)) {
		return // outside the reassembly window; dropped rather than grown
	}
	v.ring[segment&v.ringMask] = payload
}

func (v *Vegas) reassemble() {
	for {
		slot := v.base & v.ringMask
		payload := v.ring[slot]
		if payload == nil && !v.received[v.base] {
			return
		}
		// In virtual-download mode OnContentSegment already delivered the
		// segment on arrival, so the in-order pass only advances base.
		if v.cfg.Callbacks.OnContentObject != nil && !v.cfg.VirtualDownload {
			v.cfg.Callbacks.OnContentObject(v.base, payload)
		}
		v.ring[slot] = nil
		delete(v.received, v.base)
		v.base++
	}
}

// checkForFastRetransmission scans segments below the current arrival for
// a gap that has persisted OOOThreshold arrivals, and retransmits it. Fast
// retransmit fires at most once per segment: a segment already
// retransmitted is left outstanding on later arrivals and only
// retransmitted again once its own retransmission times out (OnTimeout),
// per S4.
func (v *Vegas) checkForFastRetransmission(arrived uint64) {
	if arrived < OOOThreshold {
		return
	}
	for seg := v.base; seg+OOOThreshold <= arrived; seg++ {
		if v.received[seg] {
			continue
		}
		if out, ok := v.inFlight[seg]; ok && out.retransmits == 0 {
			v.fastRetransmit(seg, out)
		}
	}
}

func (v *Vegas) fastRetransmit(segment uint64, out *outstanding) {
	out.retransmits++
	out.sentAt = time.Now()
	v.cfg.Policy.OnLoss(v, v.pathOf(segment))
	_ = v.cfg.SendInterest(segment)
}

// OnTimeout handles an RTO expiry for a still-outstanding segment. Once a
// segment has already been retransmitted MaxRetransmissions times, the
// timeout on that retransmission is terminal: the fetch is abandoned,
// optionally reporting how many leading segments were already delivered.
func (v *Vegas) OnTimeout(segment uint64) error {
	if v.done {
		return nil
	}
	out, ok := v.inFlight[segment]
	if !ok {
		return nil
	}
	v.rto.Backoff()
	v.cfg.Policy.OnLoss(v, v.pathOf(segment))
	if out.retransmits >= v.cfg.MaxRetransmissions {
		v.abort(segment)
		return nil
	}
	out.retransmits++
	out.sentAt = time.Now()
	return v.cfg.SendInterest(segment)
}

// abort terminates the fetch as a retransmission-budget failure: the
// pending-interest map is cleared and no further timers or retransmits
// fire. Segments up to the gap were already streamed through
// OnContentObject by reassemble() as they arrived in order, so the
// ReportPartialOnTimeout flag only controls whether OnTimeout is told
// delivery was partial versus silently dropped.
func (v *Vegas) abort(segment uint64) {
	v.done = true
	v.inFlight = make(map[uint64]*outstanding)

	if v.cfg.Callbacks.OnTimeout != nil {
		var deliveredThrough uint64
		if v.cfg.ReportPartialOnTimeout {
			deliveredThrough = v.base
		}
		v.cfg.Callbacks.OnTimeout(segment, deliveredThrough)
	}
	if v.onDone != nil {
		v.onDone()
	}
}

func (v *Vegas) pathOf(segment uint64) uint32 {
	if v.cfg.PathOf == nil {
		return 0
	}
	return v.cfg.PathOf(segment)
}

// SetWindow lets a WindowPolicy set the congestion window directly.
func (v *Vegas) SetWindow(w float64) {
	if w < 1 {
		w = 1
	}
	if v.cfg.MaxWindow > 0 && w > v.cfg.MaxWindow {
		w = v.cfg.MaxWindow
	}
	v.window = w
}

// Window returns the current congestion window size.
func (v *Vegas) Window() float64 { return v.window }

// RemoveAllPendingInterests cancels every outstanding interest, for a
// consumer-initiated abort.
func (v *Vegas) RemoveAllPendingInterests() {
	v.inFlight = make(map[uint64]*outstanding)
}
