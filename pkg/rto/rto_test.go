package rto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFirstSampleSeedsSRTTAndRTTVAR(t *testing.T) {
	e := New(time.Millisecond, 10*time.Millisecond, time.Second)
	e.Update(100 * time.Millisecond)
	require.Equal(t, 100*time.Millisecond, e.SRTT())
	require.Greater(t, e.RTO(), e.SRTT())
}

func TestRTOConvergesTowardStableRTT(t *testing.T) {
	e := New(time.Millisecond, time.Millisecond, time.Second)
	for i := 0; i < 50; i++ {
		e.Update(100 * time.Millisecond)
	}
	require.InDelta(t, float64(100*time.Millisecond), float64(e.SRTT()), float64(2*time.Millisecond))
}

func TestRTOClampedToMinMax(t *testing.T) {
	e := New(time.Millisecond, 500*time.Millisecond, time.Second)
	e.Update(time.Microsecond)
	require.Equal(t, 500*time.Millisecond, e.RTO())

	e2 := New(time.Millisecond, time.Millisecond, 50*time.Millisecond)
	e2.Update(5 * time.Second)
	require.Equal(t, 50*time.Millisecond, e2.RTO())
}

func TestBackoffDoublesUntilMax(t *testing.T) {
	e := New(time.Millisecond, 10*time.Millisecond, 200*time.Millisecond)
	e.Update(10 * time.Millisecond)
	first := e.RTO()
	e.Backoff()
	require.Equal(t, first*2, e.RTO())
	e.Backoff()
	require.Equal(t, first*4, e.RTO())
}

func TestUpdateClearsBackoff(t *testing.T) {
	e := New(time.Millisecond, 10*time.Millisecond, time.Second)
	e.Update(10 * time.Millisecond)
	e.Backoff()
	require.Greater(t, e.RTO(), 10*time.Millisecond)
	e.Update(10 * time.Millisecond)
	// srtt stays 10ms, rttvar 5ms -> 3.75ms, so RTO = 10 + 4*3.75 = 25ms
	// with no backoff multiplier left over.
	require.Equal(t, 25*time.Millisecond, e.RTO())
}

func TestResetReturnsToMinRTO(t *testing.T) {
	e := New(time.Millisecond, 10*time.Millisecond, time.Second)
	e.Update(500 * time.Millisecond)
	e.Reset()
	require.Equal(t, 10*time.Millisecond, e.RTO())
	require.Equal(t, time.Duration(0), e.SRTT())
}
