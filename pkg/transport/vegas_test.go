package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cicnx/icnfwd/pkg/rto"
)

func newTestVegas(t *testing.T, sent *[]uint64, received *[]uint64) *Vegas {
	t.Helper()
	cfg := Config{
		InitialWindow: 2,
		MaxWindow:     8,
		BufSize:       16,
		SendInterest: func(seg uint64) error {
			*sent = append(*sent, seg)
			return nil
		},
		Callbacks: Callbacks{
			OnContentObject: func(seg uint64, _ []byte) {
				*received = append(*received, seg)
			},
		},
	}
	v, err := New(cfg, rto.New(time.Millisecond, time.Millisecond, time.Second))
	require.NoError(t, err)
	return v
}

func TestStartFillsInitialWindow(t *testing.T) {
	var sent, received []uint64
	v := newTestVegas(t, &sent, &received)
	require.NoError(t, v.Start())
	require.Equal(t, []uint64{0, 1}, sent)
}

func TestInOrderArrivalReassemblesImmediately(t *testing.T) {
	var sent, received []uint64
	v := newTestVegas(t, &sent, &received)
	require.NoError(t, v.Start())

	require.NoError(t, v.OnContentSegment(0, []byte("a"), PayloadData))
	require.NoError(t, v.OnContentSegment(1, []byte("b"), PayloadData))
	require.Equal(t, []uint64{0, 1}, received)
}

func TestOutOfOrderArrivalBuffersUntilGapFills(t *testing.T) {
	var sent, received []uint64
	v := newTestVegas(t, &sent, &received)
	require.NoError(t, v.Start())

	require.NoError(t, v.OnContentSegment(1, []byte("b"), PayloadData))
	require.Empty(t, received, "segment 1 must wait for segment 0 before delivery")

	require.NoError(t, v.OnContentSegment(0, []byte("a"), PayloadData))
	require.Equal(t, []uint64{0, 1}, received)
}

func TestTimeoutTriggersRetransmitAndBackoff(t *testing.T) {
	var sent, received []uint64
	v := newTestVegas(t, &sent, &received)
	require.NoError(t, v.Start())

	before := v.Window()
	require.NoError(t, v.OnTimeout(0))
	require.Less(t, v.Window(), before)
	require.Contains(t, sent, uint64(0))
}

func TestVirtualDownloadDoesNotRetainPayload(t *testing.T) {
	var sent, received []uint64
	v := newTestVegas(t, &sent, &received)
	v.cfg.VirtualDownload = true
	require.NoError(t, v.Start())

	require.NoError(t, v.OnContentSegment(0, []byte("a"), PayloadData))
	require.Equal(t, []uint64{0}, received)
}

func TestManifestVerificationFailureRejectsSegment(t *testing.T) {
	var sent, received []uint64
	v := newTestVegas(t, &sent, &received)
	v.cfg.Callbacks.OnManifest = func(uint64, []byte) bool { return false }
	require.NoError(t, v.Start())

	err := v.OnContentSegment(0, []byte("manifest-bytes"), PayloadManifest)
	require.Error(t, err)
}

func TestFastRetransmitFiresOnceThenWaitsForItsOwnTimeout(t *testing.T) {
	// window=8, OOOThreshold=3: as the window refills, segments never sent
	// before (8, 9, ...) get scheduled alongside any retransmit, so the
	// assertions below count segment 0's own appearances in sent rather
	// than comparing the whole slice.
	var sent []uint64
	cfg := Config{
		InitialWindow:      8,
		MaxWindow:          8,
		BufSize:            16,
		MaxRetransmissions: 2,
		SendInterest: func(seg uint64) error {
			sent = append(sent, seg)
			return nil
		},
	}
	v, err := New(cfg, rto.New(time.Millisecond, time.Millisecond, time.Second))
	require.NoError(t, err)
	require.NoError(t, v.Start())

	countZero := func() int {
		n := 0
		for _, s := range sent {
			if s == 0 {
				n++
			}
		}
		return n
	}

	// Segment 0 is missing; 1, 2, 3 arrive, the 3rd out-of-order arrival
	// fires exactly one fast retransmit of segment 0 (initial send + 1
	// retransmit = 2 appearances).
	require.NoError(t, v.OnContentSegment(1, []byte("b"), PayloadData))
	require.NoError(t, v.OnContentSegment(2, []byte("c"), PayloadData))
	require.NoError(t, v.OnContentSegment(3, []byte("d"), PayloadData))
	require.Equal(t, 2, countZero(), "segment 0 retransmitted exactly once after the 3rd out-of-order arrival")

	// Segment 4 arriving must not trigger a second fast retransmit before
	// segment 0's own retransmission has timed out.
	require.NoError(t, v.OnContentSegment(4, []byte("e"), PayloadData))
	require.Equal(t, 2, countZero(), "must not retransmit again until the retransmission itself times out")
}

func TestOnTimeoutAbortsAfterRetransmissionBudgetExhausted(t *testing.T) {
	var sent, received []uint64
	var timedOut bool
	var timedOutSegment uint64
	cfg := Config{
		InitialWindow:      1,
		MaxWindow:          1,
		BufSize:            4,
		MaxRetransmissions: 2,
		SendInterest: func(seg uint64) error {
			sent = append(sent, seg)
			return nil
		},
		Callbacks: Callbacks{
			OnContentObject: func(seg uint64, _ []byte) { received = append(received, seg) },
			OnTimeout: func(seg uint64, _ uint64) {
				timedOut = true
				timedOutSegment = seg
			},
		},
	}
	v, err := New(cfg, rto.New(time.Millisecond, time.Millisecond, time.Second))
	require.NoError(t, err)
	require.NoError(t, v.Start())

	require.NoError(t, v.OnTimeout(0)) // retransmits -> 1
	require.NoError(t, v.OnTimeout(0)) // retransmits -> 2
	require.False(t, timedOut, "budget not yet exhausted")

	require.NoError(t, v.OnTimeout(0)) // retransmits already at budget: terminal
	require.True(t, timedOut)
	require.Equal(t, uint64(0), timedOutSegment)
	require.Empty(t, v.inFlight, "pending-interest map must be cleared on abort")

	// Further activity on the now-done fetch must not resurrect it.
	require.NoError(t, v.OnContentSegment(0, []byte("a"), PayloadData))
	require.Empty(t, received, "callbacks for a cancelled fetch must not fire")
}

func TestRemoveAllPendingInterestsClearsInFlight(t *testing.T) {
	var sent, received []uint64
	v := newTestVegas(t, &sent, &received)
	require.NoError(t, v.Start())
	require.NotEmpty(t, v.inFlight)
	v.RemoveAllPendingInterests()
	require.Empty(t, v.inFlight)
}
