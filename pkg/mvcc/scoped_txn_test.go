package mvcc

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScopedTransaction_CloseCommitsByDefault(t *testing.T) {
	clk := newManualClock(0)
	mgr := NewManager(clk)
	clk.Set(1)

	func() {
		txn := NewScopedTransaction(mgr, false)
		defer txn.Close()
		require.Equal(t, Timestamp(1), txn.Timestamp())
		txn.StartApplying()
	}()

	snap := mgr.TakeSnapshot()
	require.True(t, snap.IsCommitted(1))
}

func TestScopedTransaction_ExplicitAbort(t *testing.T) {
	clk := newManualClock(0)
	mgr := NewManager(clk)
	clk.Set(1)

	txn := NewScopedTransaction(mgr, false)
	txn.Abort()
	txn.Close() // no-op: already terminal

	_, present := mgr.inFlight.get(1)
	require.False(t, present)
	snap := mgr.TakeSnapshot()
	require.False(t, snap.IsCommitted(1))
}

func TestScopedTransaction_DoubleTerminalIsFatal(t *testing.T) {
	clk := newManualClock(0)
	mgr := NewManager(clk)
	clk.Set(1)

	txn := NewScopedTransaction(mgr, false)
	txn.StartApplying()
	txn.Commit()

	require.Panics(t, func() { txn.Commit() })
}

func TestScopedTransaction_AtTimestampUsesOfflineCommit(t *testing.T) {
	clk := newManualClock(100)
	mgr := NewManager(clk)

	txn, err := NewScopedTransactionAtTimestamp(mgr, 50)
	require.NoError(t, err)
	txn.StartApplying()
	txn.Close()

	require.NotEqual(t, Timestamp(100), mgr.CleanTimestamp())
}
