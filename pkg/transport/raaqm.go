package transport

import (
	"math/rand"
	"time"
)

// RaaqmParams configures the per-path RTT/drop-probability congestion
// control overlay, grounded on icnet_transport_raaqm.cc's init() token
// table. Conflicting directives loaded from the same config file are
// resolved last-writer-wins (DESIGN.md's Open Question decision).
type RaaqmParams struct {
	Beta, Drop         float64
	BetaWifi, DropWifi float64
	BetaLTE, DropLTE   float64
	WifiDelay          time.Duration
	LTEDelay           time.Duration
	Alpha              float64 // EWMA weight for per-path RTT smoothing
	Autotune           bool
}

// DefaultRaaqmParams mirrors icnet's compiled-in defaults.
func DefaultRaaqmParams() RaaqmParams {
	return RaaqmParams{
		Beta:      0.8,
		Drop:      0.2,
		BetaWifi:  0.6,
		DropWifi:  0.25,
		BetaLTE:   0.6,
		DropLTE:   0.25,
		WifiDelay: 3 * time.Millisecond,
		LTEDelay:  20 * time.Millisecond,
		Alpha:     0.2,
	}
}

type pathStats struct {
	minRTT  time.Duration
	avgRTT  time.Duration
	samples int
}

// RaaqmPolicy is a WindowPolicy that replaces vegas's plain AIMD with
// RAAQM: each path (next hop) accumulates a smoothed RTT and a minimum
// observed RTT; the gap between the two, relative to the minimum, gives a
// probability in [0,1] that is scaled by Drop, so a sample is treated as a
// congestion signal with probability proportional to how far the current
// RTT has drifted above that path's minimum. A congestion signal
// multiplies the window by Beta.
type RaaqmPolicy struct {
	params RaaqmParams
	paths  map[uint32]*pathStats
	rnd    *rand.Rand
}

// NewRaaqmPolicy constructs a RAAQM policy. A fixed-seed RNG is used so
// the probabilistic congestion-mark decision is reproducible in tests;
// callers that need nondeterministic behavior should reseed via Seed.
func NewRaaqmPolicy(params RaaqmParams) *RaaqmPolicy {
	return &RaaqmPolicy{
		params: params,
		paths:  make(map[uint32]*pathStats),
		rnd:    rand.New(rand.NewSource(1)),
	}
}

// Seed reseeds the internal RNG.
func (r *RaaqmPolicy) Seed(seed int64) { r.rnd = rand.New(rand.NewSource(seed)) }

func (r *RaaqmPolicy) pathDelayThreshold(pathID uint32) time.Duration {
	_ = pathID
	if !r.params.Autotune {
		return 0
	}
	// Without link-type classification input, autotune falls back to the
	// larger of the two configured thresholds, matching the original's
	// conservative default when no interface hint is available.
	if r.params.WifiDelay > r.params.LTEDelay {
		return r.params.WifiDelay
	}
	return r.params.LTEDelay
}

func (r *RaaqmPolicy) betaDrop(pathID uint32) (beta, drop float64) {
	if !r.params.Autotune {
		return r.params.Beta, r.params.Drop
	}
	threshold := r.pathDelayThreshold(pathID)
	st := r.paths[pathID]
	if st == nil || st.avgRTT <= threshold {
		return r.params.BetaWifi, r.params.DropWifi
	}
	return r.params.BetaLTE, r.params.DropLTE
}

func (r *RaaqmPolicy) updatePath(pathID uint32, rtt time.Duration) *pathStats {
	st, ok := r.paths[pathID]
	if !ok {
		st = &pathStats{minRTT: rtt, avgRTT: rtt}
		r.paths[pathID] = st
	}
	if rtt < st.minRTT || st.minRTT == 0 {
		st.minRTT = rtt
	}
	alpha := r.params.Alpha
	if alpha <= 0 || alpha > 1 {
		alpha = 0.2
	}
	st.avgRTT = time.Duration(alpha*float64(rtt) + (1-alpha)*float64(st.avgRTT))
	st.samples++
	return st
}

// dropProbability computes p in [0,1]: 0 when avgRTT is at the path
// minimum, rising toward 1 as avgRTT approaches minRTT plus a one-RTT
// margin, per the original's queueing-delay heuristic.
func dropProbability(st *pathStats) float64 {
	if st == nil || st.minRTT <= 0 {
		return 0
	}
	margin := st.minRTT
	excess := st.avgRTT - st.minRTT
	if excess <= 0 {
		return 0
	}
	p := float64(excess) / float64(margin)
	if p > 1 {
		p = 1
	}
	return p
}

// OnSample implements WindowPolicy: a zero rtt (retransmitted segment,
// per Karn's rule) is ignored and changes neither path state nor the window.
func (r *RaaqmPolicy) OnSample(v *Vegas, pathID uint32, rtt time.Duration) {
	if rtt <= 0 {
		return
	}
	st := r.updatePath(pathID, rtt)
	beta, drop := r.betaDrop(pathID)
	p := dropProbability(st) * drop

	if r.rnd.Float64() < p {
		v.SetWindow(v.Window() * beta)
		return
	}
	v.SetWindow(v.Window() + 1/v.Window())
}

// OnLoss implements WindowPolicy: an actual detected loss always marks,
// using the path's current beta regardless of the probabilistic check.
func (r *RaaqmPolicy) OnLoss(v *Vegas, pathID uint32) {
	beta, _ := r.betaDrop(pathID)
	v.SetWindow(v.Window() * beta)
}

// CheckForStalePaths drops path state that has not produced a sample
// recently, per icnet's check_for_stale_paths — callers invoke this on a
// coarse timer so the path table does not grow unbounded across a
// long-lived consumer's lifetime.
func (r *RaaqmPolicy) CheckForStalePaths(seenSince map[uint32]bool) {
	for id := range r.paths {
		if !seenSince[id] {
			delete(r.paths, id)
		}
	}
}

// PathRTT returns the last smoothed RTT observed for a path, for metrics.
func (r *RaaqmPolicy) PathRTT(pathID uint32) (time.Duration, bool) {
	st, ok := r.paths[pathID]
	if !ok {
		return 0, false
	}
	return st.avgRTT, true
}
