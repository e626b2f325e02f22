package mvcc

// waitCondition identifies what a registered waiter is blocked on.
type waitCondition int

const (
	// waitAllCommittedBeforeOrAt is satisfied once every timestamp <= ts
	// is committed or aborted (AreAllTransactionsCommitted(ts)).
	waitAllCommittedBeforeOrAt waitCondition = iota
	// waitNoneApplying is satisfied once none of a fixed, previously
	// captured set of Applying timestamps remain in flight.
	waitNoneApplying
)

// waitingState is one registered waiter. signal is closed exactly once,
// either when its condition becomes satisfied or when the Manager is
// aborting all waiters on shutdown; aborted records which of those
// happened so the woken goroutine can distinguish success from shutdown.
type waitingState struct {
	ts       Timestamp
	cond     waitCondition
	watchSet map[Timestamp]struct{} // only used by waitNoneApplying
	signal   chan struct{}
	aborted  bool
}

// waiterRegistry is the set of goroutines blocked on a timestamp
// condition, all consulted under the Manager's lock. It holds no
// goroutines of its own; Manager.notifyWaitersLocked walks the slice and
// closes signal channels whose condition is now satisfied.
type waiterRegistry struct {
	waiters []*waitingState
}

func newWaiterRegistry() *waiterRegistry {
	return &waiterRegistry{}
}

// register adds w to the set of outstanding waiters. Must be called under
// the Manager's lock.
func (r *waiterRegistry) register(w *waitingState) {
	r.waiters = append(r.waiters, w)
}

// remove drops w from the set, e.g. after a deadline elapses. Must be
// called under the Manager's lock.
func (r *waiterRegistry) remove(w *waitingState) {
	for i, existing := range r.waiters {
		if existing == w {
			r.waiters = append(r.waiters[:i], r.waiters[i+1:]...)
			return
		}
	}
}

// count reports the number of outstanding waiters. Test-only accessor.
func (r *waiterRegistry) count() int {
	return len(r.waiters)
}

// notifySatisfied closes the signal channel of every waiter for which
// isSatisfied returns true, and removes them from the registry. Must be
// called under the Manager's lock.
func (r *waiterRegistry) notifySatisfied(isSatisfied func(*waitingState) bool) {
	remaining := r.waiters[:0]
	for _, w := range r.waiters {
		if isSatisfied(w) {
			close(w.signal)
		} else {
			remaining = append(remaining, w)
		}
	}
	r.waiters = remaining
}

// abortAll closes every outstanding waiter's signal channel, marking it
// aborted, and empties the registry. Called once, on Manager shutdown.
func (r *waiterRegistry) abortAll() {
	for _, w := range r.waiters {
		w.aborted = true
		close(w.signal)
	}
	r.waiters = nil
}
