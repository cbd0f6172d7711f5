package gormstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/catalogd/internal/metastore"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("file::memory:?cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_DatabaseRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutDatabase(ctx, metastore.DatabaseRecord{Name: "d1", Comment: "analytics"}))

	got, err := s.GetDatabase(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "analytics", got.Comment)

	all, err := s.ListDatabases(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_GetDatabase_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetDatabase(context.Background(), "missing")
	assert.Error(t, err)
}

func TestStore_TableRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTable(ctx, metastore.TableRecord{
		Database: "d1", Name: "t1", Columns: []string{"id", "name"},
	}))

	got, err := s.GetTable(ctx, "d1", "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, got.Columns)

	exists, err := s.TableExists(ctx, "d1", "t1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = s.TableExists(ctx, "d1", "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	names, err := s.ListTables(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, names)
}

func TestStore_ViewRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutTable(ctx, metastore.TableRecord{
		Database: "d1", Name: "v1", IsView: true, ViewSQL: "SELECT 1",
	}))

	got, err := s.GetTable(ctx, "d1", "v1")
	require.NoError(t, err)
	assert.True(t, got.IsView)
	assert.Equal(t, "SELECT 1", got.ViewSQL)
}

func TestStore_FunctionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutFunction(ctx, metastore.FunctionRecord{Database: "d1", Name: "fn1", Signature: "fn1(int) -> int"}))

	got, err := s.GetFunction(ctx, "d1", "fn1")
	require.NoError(t, err)
	assert.Equal(t, "fn1(int) -> int", got.Signature)

	all, err := s.ListFunctions(ctx, "d1")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_PartitionRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	spec := metastore.PartitionSpec{"year": "2026", "month": "07"}

	require.NoError(t, s.PutPartition(ctx, "d1", "t1", spec, map[string]string{"location": "/data/d1/t1/2026/07"}))

	got, err := s.GetPartition(ctx, "d1", "t1", spec)
	require.NoError(t, err)
	assert.Equal(t, "/data/d1/t1/2026/07", got["location"])
}

func TestStore_GetPartition_NotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.GetPartition(context.Background(), "d1", "t1", metastore.PartitionSpec{"year": "1999"})
	assert.Error(t, err)
}
