package storage

import (
	"testing"

	"github.com/stretchr/testify/require"

	"shardmvcc/pkg/mvcc"
)

func TestIterator_OnlySeesCommittedVersions(t *testing.T) {
	store := New()
	store.Put("k", 10, []byte("v10"))
	store.Put("k", 20, []byte("v20"))

	snap := mvcc.NewSnapshotAt(15)
	it := store.NewIterator(snap)

	value, ok := it.Get("k")
	require.True(t, ok)
	require.Equal(t, "v10", string(value))
}

func TestIterator_SeesLatestCommittedVersion(t *testing.T) {
	store := New()
	store.Put("k", 10, []byte("v10"))
	store.Put("k", 20, []byte("v20"))

	snap := mvcc.NewSnapshotAt(25)
	it := store.NewIterator(snap)

	value, ok := it.Get("k")
	require.True(t, ok)
	require.Equal(t, "v20", string(value))
}

func TestIterator_TombstoneHidesValue(t *testing.T) {
	store := New()
	store.Put("k", 10, []byte("v10"))
	store.Delete("k", 20)

	snap := mvcc.NewSnapshotAt(25)
	it := store.NewIterator(snap)

	_, ok := it.Get("k")
	require.False(t, ok)
}

func TestIterator_MissingKey(t *testing.T) {
	store := New()
	snap := mvcc.NewSnapshotAt(100)
	it := store.NewIterator(snap)

	_, ok := it.Get("missing")
	require.False(t, ok)
}
