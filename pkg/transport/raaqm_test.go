package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cicnx/icnfwd/pkg/rto"
)

func newRaaqmVegas(t *testing.T, policy *RaaqmPolicy, sent *[]uint64) *Vegas {
	t.Helper()
	cfg := Config{
		InitialWindow: 4,
		MaxWindow:     64,
		BufSize:       64,
		Policy:        policy,
		SendInterest: func(seg uint64) error {
			*sent = append(*sent, seg)
			return nil
		},
	}
	v, err := New(cfg, rto.New(time.Millisecond, time.Millisecond, time.Second))
	require.NoError(t, err)
	return v
}

func TestRaaqmPolicyGrowsWindowOnLowRTT(t *testing.T) {
	params := DefaultRaaqmParams()
	policy := NewRaaqmPolicy(params)
	var sent []uint64
	v := newRaaqmVegas(t, policy, &sent)
	require.NoError(t, v.Start())

	before := v.Window()
	for seg := uint64(0); seg < 20; seg++ {
		policy.OnSample(v, 0, time.Millisecond)
	}
	require.GreaterOrEqual(t, v.Window(), before)
}

func TestRaaqmPolicyMarksOnRisingRTT(t *testing.T) {
	params := DefaultRaaqmParams()
	policy := NewRaaqmPolicy(params)
	var sent []uint64
	v := newRaaqmVegas(t, policy, &sent)
	require.NoError(t, v.Start())

	// Establish a low baseline, then a much higher RTT should carry a
	// nonzero mark probability and, over many trials, shrink the window
	// at least once.
	policy.OnSample(v, 0, time.Millisecond)
	before := v.Window()
	shrank := false
	for i := 0; i < 200; i++ {
		w := v.Window()
		policy.OnSample(v, 0, 50*time.Millisecond)
		if v.Window() < w {
			shrank = true
		}
	}
	require.True(t, shrank, "a sustained RTT far above the path minimum should eventually mark")
	_ = before
}

func TestRaaqmPolicyIgnoresRetransmittedSample(t *testing.T) {
	params := DefaultRaaqmParams()
	policy := NewRaaqmPolicy(params)
	var sent []uint64
	v := newRaaqmVegas(t, policy, &sent)
	require.NoError(t, v.Start())

	before := v.Window()
	policy.OnSample(v, 0, 0)
	require.Equal(t, before, v.Window())
}

func TestRaaqmOnLossShrinksByBeta(t *testing.T) {
	params := DefaultRaaqmParams()
	policy := NewRaaqmPolicy(params)
	var sent []uint64
	v := newRaaqmVegas(t, policy, &sent)
	require.NoError(t, v.Start())

	v.SetWindow(10)
	policy.OnLoss(v, 0)
	require.InDelta(t, 10*params.Beta, v.Window(), 0.001)
}

func TestCheckForStalePathsPrunesUnseen(t *testing.T) {
	policy := NewRaaqmPolicy(DefaultRaaqmParams())
	policy.updatePath(1, time.Millisecond)
	policy.updatePath(2, time.Millisecond)

	policy.CheckForStalePaths(map[uint32]bool{1: true})

	_, ok := policy.PathRTT(1)
	require.True(t, ok)
	_, ok = policy.PathRTT(2)
	require.False(t, ok)
}
