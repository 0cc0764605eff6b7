// Package rate implements the pluggable rate estimators the fetch engine
// samples to drive congestion control (spec §4.8): a simple EWMA over
// measured throughput batches, and a TCP-alike estimator that derives
// rate from the current window and RTT instead of direct measurement.
// Both satisfy Estimator so pkg/transport can select one by config,
// mirroring icnet's SimpleEstimator/ALaTcpEstimator choice.
package rate

import "time"

// Estimator is the rate-estimator plugin contract.
type Estimator interface {
	// OnSegmentReceived is called once per received content segment.
	OnSegmentReceived(bytes int, rtt time.Duration, cwnd float64, now time.Time)
	// Rate returns the current estimate in bytes/second.
	Rate() float64
	Reset()
}

// SimpleEstimator batches received bytes over a time window and computes
// an EWMA of the per-window throughput, grounded on icnet's
// default SimpleEstimator (a fixed number of segments per batch).
type SimpleEstimator struct {
	batchSize int
	alpha     float64

	batchBytes  int
	batchCount  int
	windowStart time.Time
	rate        float64
	initialized bool
}

// NewSimpleEstimator constructs a SimpleEstimator that recomputes its EWMA
// every batchSize segments, with smoothing factor alpha in (0,1].
func NewSimpleEstimator(batchSize int, alpha float64) *SimpleEstimator {
	if batchSize <= 0 {
		batchSize = 32
	}
	if alpha <= 0 || alpha > 1 {
		alpha = 0.2
	}
	return &SimpleEstimator{batchSize: batchSize, alpha: alpha}
}

func (s *SimpleEstimator) OnSegmentReceived(bytes int, _ time.Duration, _ float64, now time.Time) {
	if s.batchCount == 0 {
		s.windowStart = now
	}
	s.batchBytes += bytes
	s.batchCount++
	if s.batchCount < s.batchSize {
		return
	}
	elapsed := now.Sub(s.windowStart).Seconds()
	if elapsed <= 0 {
		s.batchBytes, s.batchCount = 0, 0
		return
	}
	sample := float64(s.batchBytes) / elapsed
	if !s.initialized {
		s.rate = sample
		s.initialized = true
	} else {
		s.rate = s.alpha*sample + (1-s.alpha)*s.rate
	}
	s.batchBytes, s.batchCount = 0, 0
}

func (s *SimpleEstimator) Rate() float64 { return s.rate }

func (s *SimpleEstimator) Reset() {
	*s = SimpleEstimator{batchSize: s.batchSize, alpha: s.alpha}
}

// ALaTcpEstimator estimates rate the way a TCP sender would report its
// current sending rate: congestion window over RTT, smoothed with an
// EWMA to damp per-segment RTT noise.
type ALaTcpEstimator struct {
	alpha       float64
	rate        float64
	initialized bool
}

// NewALaTcpEstimator constructs a cwnd/RTT estimator with EWMA factor alpha.
func NewALaTcpEstimator(alpha float64) *ALaTcpEstimator {
	if alpha <= 0 || alpha > 1 {
		alpha = 0.2
	}
	return &ALaTcpEstimator{alpha: alpha}
}

func (a *ALaTcpEstimator) OnSegmentReceived(bytes int, rtt time.Duration, cwnd float64, _ time.Time) {
	if rtt <= 0 {
		return
	}
	sample := cwnd * float64(bytes) / rtt.Seconds()
	if !a.initialized {
		a.rate = sample
		a.initialized = true
		return
	}
	a.rate = a.alpha*sample + (1-a.alpha)*a.rate
}

func (a *ALaTcpEstimator) Rate() float64 { return a.rate }

func (a *ALaTcpEstimator) Reset() {
	a.rate = 0
	a.initialized = false
}
