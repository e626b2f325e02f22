package mvcc

import (
	"github.com/tidwall/btree"
)

// TxnState is the state of a timestamp that has been reserved but not yet
// committed or aborted.
type TxnState int

const (
	// Reserved means a timestamp has been allocated but no in-memory
	// writes have been applied yet; Abort is still legal.
	Reserved TxnState = iota
	// Applying means writes are being applied to in-memory state; the
	// transaction is now obligated to commit, never abort.
	Applying
)

func (s TxnState) String() string {
	switch s {
	case Reserved:
		return "Reserved"
	case Applying:
		return "Applying"
	default:
		return "Unknown"
	}
}

// inFlightEntry is a (Timestamp, TxnState) pair, unique on Timestamp.
type inFlightEntry struct {
	ts    Timestamp
	state TxnState
}

func entryLess(a, b inFlightEntry) bool {
	return a.ts < b.ts
}

// inFlightTable maps every currently-reserved-or-applying timestamp to its
// TxnState. It is backed by an ordered btree so Min can be read in
// O(log n) without a separate heap; the Manager additionally caches the
// minimum across calls (earliestInFlight) to avoid even that cost on the
// common path.
type inFlightTable struct {
	tree *btree.BTreeG[inFlightEntry]
}

func newInFlightTable() *inFlightTable {
	return &inFlightTable{tree: btree.NewBTreeG(entryLess)}
}

// insert adds ts in the Reserved state. It is caller error (fatal) to
// insert a timestamp that is already in the table.
func (t *inFlightTable) insert(ts Timestamp) {
	_, replaced := t.tree.Set(inFlightEntry{ts: ts, state: Reserved})
	if replaced {
		fatalf("mvcc: timestamp %s reserved twice", ts)
	}
}

// transitionToApplying moves ts from Reserved to Applying. Fatal if ts is
// not currently Reserved.
func (t *inFlightTable) transitionToApplying(ts Timestamp) {
	entry, ok := t.tree.Get(inFlightEntry{ts: ts})
	if !ok {
		fatalf("mvcc: cannot start applying unknown timestamp %s", ts)
	}
	if entry.state != Reserved {
		fatalf("mvcc: cannot start applying timestamp %s in state %s", ts, entry.state)
	}
	t.tree.Set(inFlightEntry{ts: ts, state: Applying})
}

// remove deletes ts from the table and returns its prior state. Fatal if
// ts was not in the table.
func (t *inFlightTable) remove(ts Timestamp) TxnState {
	entry, ok := t.tree.Delete(inFlightEntry{ts: ts})
	if !ok {
		fatalf("mvcc: cannot remove unknown in-flight timestamp %s", ts)
	}
	return entry.state
}

// get returns the state of ts and whether it is present.
func (t *inFlightTable) get(ts Timestamp) (TxnState, bool) {
	entry, ok := t.tree.Get(inFlightEntry{ts: ts})
	return entry.state, ok
}

// len reports the number of in-flight timestamps.
func (t *inFlightTable) len() int {
	return t.tree.Len()
}

// minKey returns the smallest in-flight timestamp, or MaxTimestamp if the
// table is empty.
func (t *inFlightTable) minKey() Timestamp {
	entry, ok := t.tree.Min()
	if !ok {
		return MaxTimestamp
	}
	return entry.ts
}

// applyingTimestamps returns every timestamp currently in the Applying
// state, in ascending order.
func (t *inFlightTable) applyingTimestamps() []Timestamp {
	var out []Timestamp
	t.tree.Scan(func(entry inFlightEntry) bool {
		if entry.state == Applying {
			out = append(out, entry.ts)
		}
		return true
	})
	return out
}
