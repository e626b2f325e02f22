// Package wal describes the write-ahead log collaborator the MVCC core
// depends on but does not implement: on the leader, log append order must
// match Manager commit order for the same tablet; on followers, the log
// drives OfflineCommitTransaction in log order and periodically calls
// OfflineAdjustSafeTime.
package wal

import "shardmvcc/pkg/mvcc"

// Entry is a single write-ahead log record: the reserved timestamp that
// was the write batch's version key, plus its encoded payload.
type Entry struct {
	Timestamp mvcc.Timestamp
	Payload   []byte
}

// Log is the subset of write-ahead log behavior the MVCC core's
// collaborators rely on. The concrete log implementation (replication,
// on-disk format, checkpointing) lives outside this module.
type Log interface {
	// Append persists entry and returns once it is durable on this node.
	// On a leader, callers must invoke this in the same order they intend
	// to call Manager.CommitTransaction.
	Append(entry Entry) error

	// Replay streams previously appended entries in log order, for
	// bootstrap or follower catch-up. The MVCC core's in-memory state is
	// never persisted, so every Manager is rebuilt by replaying from the
	// last checkpoint through this call.
	Replay(fromTimestamp mvcc.Timestamp, fn func(Entry) error) error

	// SafeTime reports the timestamp through which this log is known to
	// be fully applied locally, suitable as the argument to
	// Manager.OfflineAdjustSafeTime.
	SafeTime() mvcc.Timestamp

	Close() error
}
