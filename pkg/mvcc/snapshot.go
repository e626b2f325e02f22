package mvcc

import (
	"fmt"
	"log"
	"strings"
)

// Snapshot is an immutable value describing which timestamps are
// committed as of some moment. Readers consult IsCommitted once per
// record version; the hot paths (comparison against the two watermarks)
// never allocate or touch committedTimestamps.
//
// Invariant: for every timestamp T,
//
//	IsCommitted(T) <=> T < allCommittedBefore || T in committedTimestamps
type Snapshot struct {
	// allCommittedBefore: every timestamp strictly below this is committed.
	allCommittedBefore Timestamp
	// noneCommittedAtOrAfter: every timestamp >= this is uncommitted. Kept
	// equal to max(committedTimestamps)+1 when committedTimestamps is
	// non-empty, else equal to allCommittedBefore.
	noneCommittedAtOrAfter Timestamp
	// committedTimestamps holds the timestamps in the half-open band
	// [allCommittedBefore, noneCommittedAtOrAfter) that are committed
	// despite lying above the low watermark. Expected to stay small.
	committedTimestamps []Timestamp
}

// NewEmptySnapshot returns a snapshot that commits nothing.
func NewEmptySnapshot() Snapshot {
	return Snapshot{
		allCommittedBefore:     MinTimestamp,
		noneCommittedAtOrAfter: MinTimestamp,
	}
}

// NewSnapshotAt returns a snapshot considering every timestamp < t
// committed and everything else uncommitted: the clean, single-watermark
// case.
func NewSnapshotAt(t Timestamp) Snapshot {
	return Snapshot{
		allCommittedBefore:     t,
		noneCommittedAtOrAfter: t,
	}
}

// SnapshotIncludingAllTransactions returns a snapshot under which every
// timestamp is considered committed. Mostly useful in tests.
func SnapshotIncludingAllTransactions() Snapshot {
	return Snapshot{
		allCommittedBefore:     MaxTimestamp,
		noneCommittedAtOrAfter: MaxTimestamp,
	}
}

// SnapshotIncludingNoTransactions returns a snapshot under which no
// timestamp is considered committed.
func SnapshotIncludingNoTransactions() Snapshot {
	return NewEmptySnapshot()
}

// IncludeAll mutates the snapshot in place to commit everything.
func (s *Snapshot) IncludeAll() {
	s.allCommittedBefore = MaxTimestamp
	s.noneCommittedAtOrAfter = MaxTimestamp
	s.committedTimestamps = nil
}

// IncludeNone mutates the snapshot in place to commit nothing.
func (s *Snapshot) IncludeNone() {
	s.allCommittedBefore = MinTimestamp
	s.noneCommittedAtOrAfter = MinTimestamp
	s.committedTimestamps = nil
}

// IsCommitted reports whether t should be considered committed under this
// snapshot. The two watermark comparisons are the hot path; only
// timestamps in the narrow uncertain band fall through to the linear scan.
func (s Snapshot) IsCommitted(t Timestamp) bool {
	if t.Less(s.allCommittedBefore) {
		return true
	}
	if !t.Less(s.noneCommittedAtOrAfter) {
		return false
	}
	return s.isCommittedFallback(t)
}

func (s Snapshot) isCommittedFallback(t Timestamp) bool {
	for _, c := range s.committedTimestamps {
		if c == t {
			return true
		}
	}
	return false
}

// MayHaveCommittedAtOrAfter reports whether this snapshot may have any
// committed timestamp >= t. Used by the storage engine to skip scanning a
// delta file whose entire timestamp range is known to be below the
// snapshot's interest.
func (s Snapshot) MayHaveCommittedAtOrAfter(t Timestamp) bool {
	return t.Less(s.noneCommittedAtOrAfter)
}

// MayHaveUncommittedAtOrBefore reports whether this snapshot may have any
// uncommitted timestamp <= t. Conservative: any non-empty explicit
// committed set is assumed to imply a gap below t.
func (s Snapshot) MayHaveUncommittedAtOrBefore(t Timestamp) bool {
	if !t.Less(s.allCommittedBefore) {
		return true
	}
	if len(s.committedTimestamps) == 0 {
		return false
	}
	min := s.committedTimestamps[0]
	for _, c := range s.committedTimestamps[1:] {
		if c.Less(min) {
			min = c
		}
	}
	return !t.Less(min)
}

// IsClean reports whether visibility is determined solely by comparison
// against allCommittedBefore, i.e. there are no explicit committed
// timestamps above the watermark.
func (s Snapshot) IsClean() bool {
	return len(s.committedTimestamps) == 0
}

// AllCommittedBefore returns the low watermark: every timestamp strictly
// below it is committed.
func (s Snapshot) AllCommittedBefore() Timestamp {
	return s.allCommittedBefore
}

// AddCommittedTimestamps marks each of ts as committed in this snapshot,
// even if it was not already considered committed when the snapshot was
// constructed. Used on the flush path, where the set of commits going
// into a flushed file may not itself be a consistent MVCC snapshot.
func (s *Snapshot) AddCommittedTimestamps(ts []Timestamp) {
	for _, t := range ts {
		s.addCommittedTimestamp(t)
	}
}

func (s *Snapshot) addCommittedTimestamp(t Timestamp) {
	if s.IsCommitted(t) {
		return
	}
	s.committedTimestamps = append(s.committedTimestamps, t)
	if !t.Less(s.noneCommittedAtOrAfter) {
		s.noneCommittedAtOrAfter = t.Next()
	}
}

// LastCommittedTimestamp returns allCommittedBefore-1 for clean snapshots.
// For the degenerate-clean case (committedTimestamps == {allCommittedBefore})
// it returns allCommittedBefore itself. Any other dirty snapshot is not a
// well-defined input for this method; it logs a diagnostic and still
// returns the watermark-derived fallback rather than panicking.
func (s Snapshot) LastCommittedTimestamp() Timestamp {
	if !s.IsClean() {
		if len(s.committedTimestamps) == 1 && s.committedTimestamps[0] == s.allCommittedBefore {
			return s.allCommittedBefore
		}
		log.Printf("mvcc: LastCommittedTimestamp called on a dirty snapshot: %s", s.String())
	}
	return s.allCommittedBefore.Prev()
}

// clone returns an independently owned copy, safe to hand to a caller
// that does not share the Manager's lock.
func (s Snapshot) clone() Snapshot {
	out := s
	if len(s.committedTimestamps) > 0 {
		out.committedTimestamps = append([]Timestamp(nil), s.committedTimestamps...)
	}
	return out
}

// pruneBelow drops every explicit committed timestamp now covered by the
// watermark after it advances to newWatermark. Called only while holding
// the Manager's lock, immediately after allCommittedBefore is raised.
func (s *Snapshot) pruneBelow(newWatermark Timestamp) {
	if len(s.committedTimestamps) == 0 {
		return
	}
	kept := s.committedTimestamps[:0]
	for _, t := range s.committedTimestamps {
		if !t.Less(newWatermark) {
			kept = append(kept, t)
		}
	}
	s.committedTimestamps = kept
}

// String renders the snapshot for debugging as
// Snapshot[committed={T|T < X}] when clean, or
// Snapshot[committed={T|T < X or (T in {...})}] otherwise.
func (s Snapshot) String() string {
	if s.IsClean() {
		return fmt.Sprintf("Snapshot[committed={T|T < %d}]", uint64(s.allCommittedBefore))
	}
	parts := make([]string, len(s.committedTimestamps))
	for i, t := range s.committedTimestamps {
		parts[i] = fmt.Sprintf("%d", uint64(t))
	}
	return fmt.Sprintf("Snapshot[committed={T|T < %d or (T in {%s})}]",
		uint64(s.allCommittedBefore), strings.Join(parts, ", "))
}
