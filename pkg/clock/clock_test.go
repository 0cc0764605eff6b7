package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExpiredWrapSafe(t *testing.T) {
	require.True(t, Expired(100, 100))
	require.True(t, Expired(101, 100))
	require.False(t, Expired(99, 100))

	// Wraparound: now has rolled past 65535 back to a small value, but the
	// true elapsed time since expiry is still small and positive.
	require.True(t, Expired(5, 65530))
	require.False(t, Expired(65530, 5))
}

func TestBeforeWrapSafe(t *testing.T) {
	require.True(t, Before(10, 20))
	require.False(t, Before(20, 10))
	require.True(t, Before(65530, 5))
	require.False(t, Before(5, 65530))
}

func TestClockTicksIndependently(t *testing.T) {
	c := New(5*time.Millisecond, time.Hour)
	go c.Run()
	defer c.Stop()

	time.Sleep(40 * time.Millisecond)
	require.Greater(t, c.Now(Fast), uint16(0))
	require.Equal(t, uint16(0), c.Now(Slow))
}

func TestStampAndExpired(t *testing.T) {
	c := New(time.Hour, time.Hour)
	go c.Run()
	defer c.Stop()

	stamp := c.Stamp(Fast, 10)
	require.False(t, c.Expired(Fast, stamp))
}
