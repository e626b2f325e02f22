package mvcc

import (
	"sync"
	"time"

	"go.uber.org/atomic"
)

// Manager orchestrates timestamp allocation, the in-flight transaction
// table, and clean-watermark advancement for a single tablet. It is safe
// for concurrent use by many goroutines and owns no goroutines of its
// own; every blocking call parks the calling goroutine on a channel
// registered in waiters and signaled from inside the lock.
//
// A Manager must be constructed once per tablet (see NewManager) and
// reused for that tablet's lifetime; it carries no persisted state and is
// fully reconstructed from the write-ahead log on bootstrap.
type Manager struct {
	mu sync.Mutex

	clock Clock

	curSnap  Snapshot
	inFlight *inFlightTable

	// noNewTransactionsAtOrBefore is the highest timestamp reserved through
	// a clock-driven Reserve (StartTransaction, StartTransactionAtLatest) or
	// pushed by OfflineAdjustSafeTime. It feeds the clean-watermark
	// candidate computation and AreAllTransactionsCommitted; it is not
	// checked by StartTransactionAtTimestamp.
	noNewTransactionsAtOrBefore Timestamp
	// earliestInFlight caches inFlight.minKey() across commits so the
	// common path doesn't re-scan the table.
	earliestInFlight Timestamp

	// cleanGauge mirrors curSnap.AllCommittedBefore() so CleanTimestamp can
	// be read by monitoring code without taking mu.
	cleanGauge atomic.Uint64

	waiters *waiterRegistry

	closed bool
}

// NewManager constructs a Manager backed by clock. Each tablet owns
// exactly one Manager; nothing here is a process-wide singleton, so a
// process hosting many tablets constructs one Manager per tablet.
func NewManager(clock Clock) *Manager {
	return &Manager{
		clock:            clock,
		curSnap:          NewEmptySnapshot(),
		inFlight:         newInFlightTable(),
		earliestInFlight: MaxTimestamp,
		waiters:          newWaiterRegistry(),
	}
}

// StartTransaction reserves a new timestamp using clock.Now(). Equivalent
// to StartTransactionAtTimestamp(clock.Now()) but takes the clock reading
// outside the lock, and additionally advances
// noNewTransactionsAtOrBefore: an online reservation at T is a promise
// that no future online reservation will land at or below T.
func (m *Manager) StartTransaction() Timestamp {
	now := m.clock.Now()
	m.mu.Lock()
	err := m.reserveLocked(now, true /* bumpSafeTime */)
	m.mu.Unlock()
	if err != nil {
		fatalf("mvcc: clock.Now() produced an illegal timestamp %s: %v", now, err)
	}
	return now
}

// StartTransactionAtLatest reserves a new timestamp using
// clock.NowLatest(). Returns InvalidTimestamp if the clock could not
// currently produce a bound.
func (m *Manager) StartTransactionAtLatest() Timestamp {
	latest := m.clock.NowLatest()
	if !latest.Valid() {
		return InvalidTimestamp
	}
	m.mu.Lock()
	err := m.reserveLocked(latest, true /* bumpSafeTime */)
	m.mu.Unlock()
	if err != nil {
		fatalf("mvcc: clock.NowLatest() produced an illegal timestamp %s: %v", latest, err)
	}
	return latest
}

// StartTransactionAtTimestamp reserves the caller-supplied timestamp ts.
// Returns ErrIllegalState if ts is already below the clean watermark or
// already in flight. Unlike the clock-driven Reserve variants, this does
// not advance noNewTransactionsAtOrBefore: offline/follower replay
// applies log entries that are already decided, and the log (via
// OfflineAdjustSafeTime) is the sole authority on how far that bound may
// move.
func (m *Manager) StartTransactionAtTimestamp(ts Timestamp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reserveLocked(ts, false /* bumpSafeTime */)
}

func (m *Manager) reserveLocked(ts Timestamp, bumpSafeTime bool) error {
	if ts.Less(m.curSnap.AllCommittedBefore()) {
		return illegalStatef("timestamp %s is already considered committed (all_committed_before=%s)",
			ts, m.curSnap.AllCommittedBefore())
	}
	if _, inFlight := m.inFlight.get(ts); inFlight {
		return illegalStatef("timestamp %s is already in flight", ts)
	}

	m.inFlight.insert(ts)
	if ts.Less(m.earliestInFlight) {
		m.earliestInFlight = ts
	}
	if bumpSafeTime && m.noNewTransactionsAtOrBefore.Less(ts) {
		m.noNewTransactionsAtOrBefore = ts
	}
	return nil
}

// StartApplyingTransaction marks ts as starting to apply its writes to
// in-memory state. Must be called before Commit/OfflineCommit; once
// called, AbortTransaction(ts) is no longer legal. Fatal if ts is not
// currently Reserved.
func (m *Manager) StartApplyingTransaction(ts Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight.transitionToApplying(ts)
}

// CommitTransaction commits ts and, because this is the online/leader
// path, advances the clean watermark using clock.Now(). Fatal if ts is
// not currently Applying.
func (m *Manager) CommitTransaction(ts Timestamp) {
	m.commit(ts, true /* online */)
}

// OfflineCommitTransaction commits ts without consulting the clock; used
// for log replay and follower application, where the clock is not
// authoritative for what has actually been made durable. Fatal if ts is
// not currently Applying.
func (m *Manager) OfflineCommitTransaction(ts Timestamp) {
	m.commit(ts, false /* online */)
}

func (m *Manager) commit(ts Timestamp, online bool) {
	m.mu.Lock()

	state, ok := m.inFlight.get(ts)
	if !ok {
		m.mu.Unlock()
		fatalf("mvcc: cannot commit unknown timestamp %s", ts)
	}
	if state != Applying {
		m.mu.Unlock()
		fatalf("mvcc: cannot commit timestamp %s in state %s; StartApplyingTransaction was never called", ts, state)
	}

	wasEarliest := ts == m.earliestInFlight
	m.inFlight.remove(ts)
	m.curSnap.addCommittedTimestamp(ts)

	if wasEarliest {
		m.advanceEarliestInFlightLocked()
	}

	var now Timestamp
	if online {
		// Read the clock while still holding the lock: this commit's
		// watermark candidate must reflect this exact commit, and two
		// concurrent commits must linearize, so the cost is accepted here
		// rather than racing a lock-free read against a second committer.
		now = m.clock.Now()
	}
	m.adjustCleanTimeLocked(online, now)

	m.mu.Unlock()
}

// AbortTransaction removes ts from the in-flight table without it ever
// becoming committed. Fatal if ts is not currently Reserved (Abort after
// StartApplyingTransaction is forbidden, per the no-rollback non-goal).
//
// Unlike Commit/OfflineCommit/OfflineAdjustSafeTime, this never raises the
// clean watermark: the watermark-candidate formula assumes every
// timestamp at or below noNewTransactionsAtOrBefore that is no longer
// in-flight has committed, which is false for the timestamp this call
// just aborted. Aborting only recomputes earliestInFlight and wakes
// waiters whose condition depends on in-flight/safe-time state, not on
// allCommittedBefore.
func (m *Manager) AbortTransaction(ts Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.inFlight.get(ts)
	if !ok {
		fatalf("mvcc: cannot abort unknown timestamp %s", ts)
	}
	if state != Reserved {
		fatalf("mvcc: cannot abort timestamp %s in state %s; it has already started applying", ts, state)
	}

	wasEarliest := ts == m.earliestInFlight
	m.inFlight.remove(ts)

	if wasEarliest {
		m.advanceEarliestInFlightLocked()
	}
	m.notifyWaitersLocked()
}

// OfflineAdjustSafeTime pushes noNewTransactionsAtOrBefore to at least
// safeTime and re-evaluates the clean watermark. Paired with
// OfflineCommitTransaction so the Manager can trim state during replay
// even when no online commit is driving adjustCleanTimeLocked.
func (m *Manager) OfflineAdjustSafeTime(safeTime Timestamp) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.noNewTransactionsAtOrBefore.Less(safeTime) {
		m.noNewTransactionsAtOrBefore = safeTime
	}
	m.adjustCleanTimeLocked(false, InvalidTimestamp)
}

// advanceEarliestInFlightLocked recomputes earliestInFlight from the
// in-flight table. Called only after removing what was previously the
// earliest timestamp.
func (m *Manager) advanceEarliestInFlightLocked() {
	m.earliestInFlight = m.inFlight.minKey()
}

// adjustCleanTimeLocked recomputes the clean-watermark candidate and, if
// it advances allCommittedBefore, slides the watermark up, drops stale
// entries from committedTimestamps, and wakes any waiters now satisfied.
//
// For an online commit the candidate folds in clock.Now() (already read
// by the caller) so the watermark keeps moving even absent write traffic;
// offline paths use only in-flight/safe-time state.
func (m *Manager) adjustCleanTimeLocked(online bool, now Timestamp) {
	candidate := m.earliestInFlight
	if m.noNewTransactionsAtOrBefore.Next().Less(candidate) {
		candidate = m.noNewTransactionsAtOrBefore.Next()
	}
	if online && now.Less(candidate) {
		candidate = now
	}

	if !m.curSnap.AllCommittedBefore().Less(candidate) {
		m.notifyWaitersLocked()
		return
	}

	m.curSnap.allCommittedBefore = candidate
	if m.curSnap.noneCommittedAtOrAfter.Less(candidate) {
		m.curSnap.noneCommittedAtOrAfter = candidate
	}
	m.curSnap.pruneBelow(candidate)
	m.cleanGauge.Store(uint64(candidate))
	m.notifyWaitersLocked()
}

// notifyWaitersLocked wakes every waiter whose condition is now
// satisfied. Must be called under m.mu.
func (m *Manager) notifyWaitersLocked() {
	m.waiters.notifySatisfied(func(w *waitingState) bool {
		switch w.cond {
		case waitAllCommittedBeforeOrAt:
			return m.areAllTransactionsCommittedLocked(w.ts)
		case waitNoneApplying:
			for watched := range w.watchSet {
				if _, stillInFlight := m.inFlight.get(watched); stillInFlight {
					return false
				}
			}
			return true
		default:
			return false
		}
	})
}

// TakeSnapshot returns a copy of the Manager's current snapshot,
// reflecting every commit that has completed so far.
func (m *Manager) TakeSnapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.curSnap.clone()
}

// CleanTimestamp returns the watermark below which every timestamp is
// guaranteed committed or aborted. Reads a gauge kept in sync with
// curSnap.AllCommittedBefore() under mu, so monitoring code can poll it
// without contending with the Manager's own lock.
func (m *Manager) CleanTimestamp() Timestamp {
	return Timestamp(m.cleanGauge.Load())
}

// ApplyingTimestamps returns the timestamps currently in the Applying
// state, in ascending order. These are guaranteed to eventually commit;
// they will never abort.
func (m *Manager) ApplyingTimestamps() []Timestamp {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight.applyingTimestamps()
}

// AreAllTransactionsCommitted reports whether no timestamp <= ts is still
// in flight and noNewTransactionsAtOrBefore >= ts, i.e. no clock-driven
// Reserve can still land at or below ts. StartTransactionAtTimestamp is
// bounded only by the clean watermark, so it can still reserve a timestamp
// below ts after this returns true.
func (m *Manager) AreAllTransactionsCommitted(ts Timestamp) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.areAllTransactionsCommittedLocked(ts)
}

func (m *Manager) areAllTransactionsCommittedLocked(ts Timestamp) bool {
	if m.earliestInFlight != MaxTimestamp && !ts.Less(m.earliestInFlight) {
		return false
	}
	return !m.noNewTransactionsAtOrBefore.Less(ts)
}

// WaitForCleanSnapshotAtTimestamp blocks until every transaction with a
// timestamp <= ts has committed or aborted, then returns a clean snapshot
// at ts. ts must be in the past according to the Manager's clock. Returns
// ErrTimedOut if deadline elapses first, or ErrAborted if the Manager is
// shut down while the caller is waiting.
func (m *Manager) WaitForCleanSnapshotAtTimestamp(ts Timestamp, deadline time.Time) (Snapshot, error) {
	if now := m.clock.Now(); now.Less(ts) {
		return Snapshot{}, illegalStatef("timestamp %s is not in the past (clock.Now()=%s)", ts, now)
	}

	m.mu.Lock()
	if m.areAllTransactionsCommittedLocked(ts) {
		m.mu.Unlock()
		return NewSnapshotAt(ts.Next()), nil
	}
	if m.closed {
		m.mu.Unlock()
		return Snapshot{}, ErrAborted
	}

	w := &waitingState{ts: ts, cond: waitAllCommittedBeforeOrAt, signal: make(chan struct{})}
	m.waiters.register(w)
	m.mu.Unlock()

	if !waitOn(w.signal, deadline) {
		m.mu.Lock()
		m.waiters.remove(w)
		m.mu.Unlock()
		return Snapshot{}, ErrTimedOut
	}
	if w.aborted {
		return Snapshot{}, ErrAborted
	}
	return NewSnapshotAt(ts.Next()), nil
}

// WaitForApplyingTransactionsToCommit blocks until every timestamp that
// was Applying at the time of the call has left the in-flight table. It
// does not promise that no transaction is Applying upon return -- new
// ones may have started applying in the meantime.
func (m *Manager) WaitForApplyingTransactionsToCommit() error {
	m.mu.Lock()
	applying := m.inFlight.applyingTimestamps()
	if len(applying) == 0 {
		m.mu.Unlock()
		return nil
	}
	if m.closed {
		m.mu.Unlock()
		return ErrAborted
	}

	watchSet := make(map[Timestamp]struct{}, len(applying))
	for _, ts := range applying {
		watchSet[ts] = struct{}{}
	}
	w := &waitingState{cond: waitNoneApplying, watchSet: watchSet, signal: make(chan struct{})}
	m.waiters.register(w)
	m.mu.Unlock()

	<-w.signal
	if w.aborted {
		return ErrAborted
	}
	return nil
}

// Shutdown aborts every outstanding wait with ErrAborted. After Shutdown,
// a wait call whose condition is already satisfied still returns success;
// any other wait call returns ErrAborted immediately. Reserved
// transactions are not affected; their owners must still explicitly
// commit or abort them.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.waiters.abortAll()
}

// WaiterCountForTests reports the number of outstanding waiters. Test-only.
func (m *Manager) WaiterCountForTests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiters.count()
}

// InFlightCountForTests reports the number of reserved-or-applying
// timestamps currently tracked. Test-only.
func (m *Manager) InFlightCountForTests() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight.len()
}

// waitOn blocks until signal is closed or deadline passes, returning
// false on timeout. A zero deadline means wait forever.
func waitOn(signal <-chan struct{}, deadline time.Time) bool {
	if deadline.IsZero() {
		<-signal
		return true
	}
	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()
	select {
	case <-signal:
		return true
	case <-timer.C:
		return false
	}
}
