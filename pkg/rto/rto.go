// Package rto implements the Jacobson/Karn retransmission timeout
// estimator used by the vegas/raaqm fetch engines (spec §4.6): a
// smoothed RTT (SRTT) and its mean deviation (RTTVAR) are updated on
// every RTT sample, and the retransmission timeout is derived from both
// so it tracks both the typical delay and its jitter.
package rto

import "time"

const (
	alphaNum, alphaDen = 1, 8 // SRTT gain
	betaNum, betaDen   = 1, 4 // RTTVAR gain
	k                  = 4    // RTO = SRTT + k*RTTVAR
)

// Estimator tracks SRTT/RTTVAR/RTO per Jacobson/Karn.
type Estimator struct {
	srtt        time.Duration
	rttvar      time.Duration
	rto         time.Duration
	initialized bool

	granularity time.Duration
	minRTO      time.Duration
	maxRTO      time.Duration

	backoffShift uint
}

// New constructs an Estimator. granularity is the clock tick added as a
// floor to RTO (RFC 6298's "G"); minRTO/maxRTO clamp the result.
func New(granularity, minRTO, maxRTO time.Duration) *Estimator {
	return &Estimator{
		granularity: granularity,
		minRTO:      minRTO,
		maxRTO:      maxRTO,
		rto:         minRTO,
	}
}

// Update folds a new RTT sample into SRTT/RTTVAR and recomputes RTO,
// clearing any exponential backoff from a prior timeout (Karn's rule:
// only a sample from a never-retransmitted segment should be trusted, so
// callers must not call Update with a sample measured across a
// retransmission).
func (e *Estimator) Update(sample time.Duration) {
	if !e.initialized {
		e.srtt = sample
		e.rttvar = sample / 2
		e.initialized = true
	} else {
		diff := e.srtt - sample
		if diff < 0 {
			diff = -diff
		}
		e.rttvar += (diff - e.rttvar) * betaNum / betaDen
		e.srtt += (sample - e.srtt) * alphaNum / alphaDen
	}
	e.backoffShift = 0
	e.recompute()
}

func (e *Estimator) recompute() {
	floor := e.granularity
	jitter := e.rttvar * k
	if jitter < floor {
		jitter = floor
	}
	rto := e.srtt + jitter
	if rto < e.minRTO {
		rto = e.minRTO
	}
	if e.maxRTO > 0 && rto > e.maxRTO {
		rto = e.maxRTO
	}
	e.rto = rto
}

// RTO returns the current retransmission timeout, including any active
// exponential backoff.
func (e *Estimator) RTO() time.Duration {
	rto := e.rto << e.backoffShift
	if e.maxRTO > 0 && rto > e.maxRTO {
		return e.maxRTO
	}
	return rto
}

// Backoff doubles the effective RTO (Karn's exponential backoff), used
// each time a retransmission timer fires without a fresh sample.
func (e *Estimator) Backoff() {
	if e.RTO()<<1 <= e.maxRTO || e.maxRTO == 0 {
		e.backoffShift++
	}
}

// Reset clears all state, including backoff, as if newly constructed.
func (e *Estimator) Reset() {
	e.initialized = false
	e.srtt = 0
	e.rttvar = 0
	e.rto = e.minRTO
	e.backoffShift = 0
}

// SRTT returns the current smoothed RTT estimate.
func (e *Estimator) SRTT() time.Duration { return e.srtt }
