package clock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLocalClock_MonotonicAndUnique(t *testing.T) {
	c := NewLocalClock(5)
	prev := c.Now()
	for i := 0; i < 1000; i++ {
		next := c.Now()
		require.Greater(t, uint64(next), uint64(prev))
		prev = next
	}
}

func TestLocalClock_NowLatestLeadsNow(t *testing.T) {
	c := NewLocalClock(5)
	now := c.Now()
	latest := c.NowLatest()
	require.GreaterOrEqual(t, uint64(latest), uint64(now))
}
