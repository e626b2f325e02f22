// Package clock provides concrete implementations of the mvcc.Clock
// collaborator: the physical-clock source the Manager reconciles logical
// timestamps against. It never appears on the write path itself.
package clock

import (
	"go.uber.org/atomic"

	"shardmvcc/pkg/mvcc"
)

// LocalClock is a monotonic logical clock with a configurable uncertainty
// window, standing in for a hybrid-logical-clock / NTP-bounded physical
// clock in tests and single-process deployments. Every call to Now
// advances the counter so no two calls ever return the same value.
type LocalClock struct {
	next         atomic.Uint64
	maxUncertain uint64
}

var _ mvcc.Clock = (*LocalClock)(nil)

// NewLocalClock returns a LocalClock starting just above mvcc.MinTimestamp.
// maxUncertainty bounds how far NowLatest may run ahead of Now.
func NewLocalClock(maxUncertainty uint64) *LocalClock {
	c := &LocalClock{maxUncertain: maxUncertainty}
	c.next.Store(uint64(mvcc.MinTimestamp) + 1)
	return c
}

func (c *LocalClock) Now() mvcc.Timestamp {
	return mvcc.Timestamp(c.next.Add(1))
}

// NowLatest reports an upper bound on what Now could return right now,
// padded by the clock's uncertainty window. It never fails for LocalClock;
// a clock backed by real NTP bounds would return mvcc.InvalidTimestamp if
// it could not currently establish a bound.
func (c *LocalClock) NowLatest() mvcc.Timestamp {
	return mvcc.Timestamp(c.next.Load() + c.maxUncertain)
}
