package badgerstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/catalogd/internal/catalog"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	cfg := DefaultConfig("")
	cfg.InMemory = true
	s, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_TombstoneRoundTrip(t *testing.T) {
	s := openTestStore(t)

	t1 := catalog.Tombstone{Key: catalog.NewKey(catalog.KindTable, "d1.a"), Version: 1}
	t2 := catalog.Tombstone{Key: catalog.NewKey(catalog.KindTable, "d1.b"), Version: 2}
	require.NoError(t, s.AppendTombstone(t1))
	require.NoError(t, s.AppendTombstone(t2))

	got, err := s.LoadTombstones()
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, t1.Key, got[0].Key)
	assert.Equal(t, t2.Key, got[1].Key)
}

func TestStore_GCTombstones(t *testing.T) {
	s := openTestStore(t)

	require.NoError(t, s.AppendTombstone(catalog.Tombstone{Key: catalog.NewKey(catalog.KindTable, "d1.a"), Version: 1}))
	require.NoError(t, s.AppendTombstone(catalog.Tombstone{Key: catalog.NewKey(catalog.KindTable, "d1.b"), Version: 5}))

	require.NoError(t, s.GCTombstones(2))

	got, err := s.LoadTombstones()
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, catalog.Version(5), got[0].Version)
}

func TestStore_TopicEntryRoundTrip(t *testing.T) {
	s := openTestStore(t)
	key := catalog.NewKey(catalog.KindTable, "d1.a")
	entry := catalog.TopicEntry{LastSentVersion: 3, LastSentTopic: 9, Skipped: 1}

	require.NoError(t, s.SaveTopicEntry(key, entry))

	got, err := s.LoadTopicEntries()
	require.NoError(t, err)
	require.Contains(t, got, key)
	assert.Equal(t, entry.LastSentVersion, got[key].LastSentVersion)
	assert.Equal(t, entry.LastSentTopic, got[key].LastSentTopic)
	assert.Equal(t, entry.Skipped, got[key].Skipped)
}

func TestStore_CursorRoundTrip(t *testing.T) {
	s := openTestStore(t)

	v, err := s.LoadCursor()
	require.NoError(t, err)
	assert.Equal(t, catalog.VersionNone, v, "an empty store reports VersionNone, not an error")

	require.NoError(t, s.SaveCursor(catalog.Version(17)))
	v, err = s.LoadCursor()
	require.NoError(t, err)
	assert.Equal(t, catalog.Version(17), v)
}
