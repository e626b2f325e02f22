package mvcc

// assignmentType records how a ScopedTransaction obtained its timestamp,
// which in turn decides which commit path its fallback Commit uses.
type assignmentType int

const (
	assignNow assignmentType = iota
	assignNowLatest
	assignPreAssigned
)

// ScopedTransaction is a scoped handle to a reserved timestamp. It
// guarantees the timestamp reaches a terminal state: if the caller never
// calls Commit or Abort explicitly, Close does so on their behalf
// (Commit, unless the transaction was pre-assigned, in which case
// OfflineCommit). The manager referenced by a ScopedTransaction must
// outlive it; ScopedTransaction holds a non-owning back-reference and is
// not safe to share between goroutines.
type ScopedTransaction struct {
	manager    *Manager
	assignment assignmentType
	ts         Timestamp
	applying   bool
	done       bool
}

// NewScopedTransaction reserves a timestamp from manager using
// clock.Now() (latest=false) or clock.NowLatest() (latest=true) and
// returns a handle that must eventually be closed. If latest requests a
// timestamp the clock cannot currently bound, Timestamp() returns
// InvalidTimestamp and Close is a no-op.
func NewScopedTransaction(manager *Manager, latest bool) *ScopedTransaction {
	s := &ScopedTransaction{manager: manager}
	if latest {
		s.assignment = assignNowLatest
		s.ts = manager.StartTransactionAtLatest()
	} else {
		s.assignment = assignNow
		s.ts = manager.StartTransaction()
	}
	if !s.ts.Valid() {
		s.done = true
	}
	return s
}

// NewScopedTransactionAtTimestamp reserves the caller-supplied ts via
// manager.StartTransactionAtTimestamp. The returned handle's fallback
// Commit uses OfflineCommitTransaction, matching the offline-replay use
// case this constructor is for. Returns the reservation error, if any,
// alongside a handle whose Close becomes a no-op.
func NewScopedTransactionAtTimestamp(manager *Manager, ts Timestamp) (*ScopedTransaction, error) {
	s := &ScopedTransaction{manager: manager, assignment: assignPreAssigned, ts: ts}
	if err := manager.StartTransactionAtTimestamp(ts); err != nil {
		s.done = true
		return s, err
	}
	return s, nil
}

// Timestamp returns the reserved timestamp, or InvalidTimestamp if
// reservation failed.
func (s *ScopedTransaction) Timestamp() Timestamp {
	return s.ts
}

// StartApplying marks the transaction as applying its writes. Must be
// called before Commit; once called, Abort is no longer legal.
func (s *ScopedTransaction) StartApplying() {
	if s.done {
		fatalf("mvcc: StartApplying called on a terminated ScopedTransaction")
	}
	s.manager.StartApplyingTransaction(s.ts)
	s.applying = true
}

// Commit commits the transaction. Requires StartApplying to have been
// called first. Double-terminal (Commit/Abort called twice, or after
// Close already ran) is caller error and fatal.
func (s *ScopedTransaction) Commit() {
	if s.done {
		fatalf("mvcc: Commit called on an already-terminated ScopedTransaction")
	}
	s.commitLocked()
}

func (s *ScopedTransaction) commitLocked() {
	if s.assignment == assignPreAssigned {
		s.manager.OfflineCommitTransaction(s.ts)
	} else {
		s.manager.CommitTransaction(s.ts)
	}
	s.done = true
}

// Abort aborts the transaction. Requires StartApplying to not have been
// called. Double-terminal is caller error and fatal.
func (s *ScopedTransaction) Abort() {
	if s.done {
		fatalf("mvcc: Abort called on an already-terminated ScopedTransaction")
	}
	s.manager.AbortTransaction(s.ts)
	s.done = true
}

// Close guarantees a terminal transition: if the caller has not already
// committed or aborted, it commits on their behalf. Safe to call multiple
// times. Intended use is `defer txn.Close()` immediately after
// construction.
func (s *ScopedTransaction) Close() {
	if s.done {
		return
	}
	s.commitLocked()
}
