package mvcc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSnapshot_VisibilityTotality(t *testing.T) {
	snap := NewSnapshotAt(100)
	snap.AddCommittedTimestamps([]Timestamp{105, 110})

	for ts := Timestamp(90); ts < 120; ts++ {
		want := ts < 100 || ts == 105 || ts == 110
		require.Equal(t, want, snap.IsCommitted(ts), "ts=%d", ts)
	}
}

func TestSnapshot_AddCommittedTimestampsRoundTrip(t *testing.T) {
	snap := NewSnapshotAt(50)
	before := snap.IsCommitted(10)

	snap.AddCommittedTimestamps([]Timestamp{60, 65, 70})
	require.True(t, snap.IsCommitted(60))
	require.True(t, snap.IsCommitted(65))
	require.True(t, snap.IsCommitted(70))

	require.False(t, snap.IsCommitted(75))
	require.Equal(t, before, snap.IsCommitted(10))
	require.Equal(t, Timestamp(71), snap.noneCommittedAtOrAfter)
}

func TestSnapshot_EmptyCommitsNothing(t *testing.T) {
	snap := NewEmptySnapshot()
	require.False(t, snap.IsCommitted(0))
	require.False(t, snap.IsCommitted(1))
	require.True(t, snap.IsClean())
}

func TestSnapshot_IncludeAllIncludeNone(t *testing.T) {
	snap := NewSnapshotAt(5)
	snap.IncludeAll()
	require.True(t, snap.IsCommitted(MaxTimestamp.Prev()))

	snap.IncludeNone()
	require.False(t, snap.IsCommitted(0))
}

func TestSnapshot_MayHavePredicates(t *testing.T) {
	snap := NewSnapshotAt(100)
	snap.AddCommittedTimestamps([]Timestamp{105})

	require.True(t, snap.MayHaveCommittedAtOrAfter(100))
	require.False(t, snap.MayHaveCommittedAtOrAfter(106))

	require.False(t, snap.MayHaveUncommittedAtOrBefore(99))
	require.True(t, snap.MayHaveUncommittedAtOrBefore(105))
}

func TestSnapshot_LastCommittedTimestamp_Clean(t *testing.T) {
	snap := NewSnapshotAt(10)
	require.Equal(t, Timestamp(9), snap.LastCommittedTimestamp())
}

func TestSnapshot_CloneIsIndependent(t *testing.T) {
	snap := NewSnapshotAt(10)
	snap.AddCommittedTimestamps([]Timestamp{15})

	clone := snap.clone()
	snap.AddCommittedTimestamps([]Timestamp{20})

	require.True(t, snap.IsCommitted(20))
	require.False(t, clone.IsCommitted(20))
}

func TestSnapshot_String(t *testing.T) {
	clean := NewSnapshotAt(10)
	require.Contains(t, clean.String(), "T < 10")

	dirty := NewSnapshotAt(10)
	dirty.AddCommittedTimestamps([]Timestamp{15})
	require.Contains(t, dirty.String(), "15")
}
