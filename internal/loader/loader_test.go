package loader

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kasuganosora/catalogd/internal/catalog"
	"github.com/kasuganosora/catalogd/internal/catalog/cerr"
	"github.com/kasuganosora/catalogd/internal/metastore"
)

// fakeMetastore is an in-memory metastore.Client for tests; GetTable calls
// are counted and can be gated to control load timing.
type fakeMetastore struct {
	mu        sync.Mutex
	tables    map[string]metastore.TableRecord
	calls     map[string]int
	gate      chan struct{} // if non-nil, GetTable blocks until signaled
	failNames map[string]bool
}

func newFakeMetastore() *fakeMetastore {
	return &fakeMetastore{
		tables:    make(map[string]metastore.TableRecord),
		calls:     make(map[string]int),
		failNames: make(map[string]bool),
	}
}

func (f *fakeMetastore) ListDatabases(ctx context.Context) ([]metastore.DatabaseRecord, error) { return nil, nil }
func (f *fakeMetastore) GetDatabase(ctx context.Context, db string) (metastore.DatabaseRecord, error) {
	return metastore.DatabaseRecord{}, nil
}
func (f *fakeMetastore) ListTables(ctx context.Context, db string) ([]string, error) { return nil, nil }
func (f *fakeMetastore) TableExists(ctx context.Context, db, table string) (bool, error) {
	return true, nil
}
func (f *fakeMetastore) ListFunctions(ctx context.Context, db string) ([]metastore.FunctionRecord, error) {
	return nil, nil
}
func (f *fakeMetastore) GetFunction(ctx context.Context, db, fn string) (metastore.FunctionRecord, error) {
	return metastore.FunctionRecord{}, nil
}
func (f *fakeMetastore) GetPartition(ctx context.Context, db, table string, spec metastore.PartitionSpec) (map[string]string, error) {
	return nil, nil
}

func (f *fakeMetastore) GetTable(ctx context.Context, db, table string) (metastore.TableRecord, error) {
	name := db + "." + table
	f.mu.Lock()
	f.calls[name]++
	fail := f.failNames[name]
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if fail {
		return metastore.TableRecord{}, errors.New("metastore unavailable")
	}
	f.mu.Lock()
	rec := f.tables[name]
	f.mu.Unlock()
	return rec, nil
}

func (f *fakeMetastore) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func TestLoader_GetOrLoad_LoadedEntryReturnsImmediately(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	_, err := reg.AddLoaded("d1.t1", catalog.TablePayload{Database: "d1", Table: "t1", Columns: []string{"a"}})
	require.NoError(t, err)

	ms := newFakeMetastore()
	l := New(reg, ms, 2)
	l.Start(context.Background())
	defer l.Close()

	entry, err := l.GetOrLoad(context.Background(), catalog.NewKey(catalog.KindTable, "d1.t1"))
	require.NoError(t, err)
	assert.True(t, entry.Loaded)
	assert.Equal(t, 0, ms.callCount("d1.t1"))
}

func TestLoader_GetOrLoad_ShellTriggersFetchAndCommit(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	_, err := reg.Add("d1.t1", catalog.TablePayload{Database: "d1", Table: "t1"})
	require.NoError(t, err)

	ms := newFakeMetastore()
	ms.tables["d1.t1"] = metastore.TableRecord{Database: "d1", Name: "t1", Columns: []string{"id", "name"}}

	l := New(reg, ms, 2)
	l.Start(context.Background())
	defer l.Close()

	entry, err := l.GetOrLoad(context.Background(), catalog.NewKey(catalog.KindTable, "d1.t1"))
	require.NoError(t, err)
	assert.True(t, entry.Loaded)
	payload := entry.Payload.(catalog.TablePayload)
	assert.Equal(t, []string{"id", "name"}, payload.Columns)
}

func TestLoader_GetOrLoad_NotFound(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	ms := newFakeMetastore()
	l := New(reg, ms, 1)
	l.Start(context.Background())
	defer l.Close()

	_, err := l.GetOrLoad(context.Background(), catalog.NewKey(catalog.KindTable, "d1.missing"))
	assert.Error(t, err)
}

func TestLoader_LoadAsync_DeduplicatesByKey(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	e, err := reg.Add("d1.t1", catalog.TablePayload{Database: "d1", Table: "t1"})
	require.NoError(t, err)

	ms := newFakeMetastore()
	ms.gate = make(chan struct{})
	ms.tables["d1.t1"] = metastore.TableRecord{Database: "d1", Name: "t1"}

	l := New(reg, ms, 1)
	l.Start(context.Background())
	defer l.Close()

	f1 := l.LoadAsync(e.Key, e.Version)
	f2 := l.LoadAsync(e.Key, e.Version)
	close(ms.gate)

	entry1, err1 := f1.Wait(context.Background())
	entry2, err2 := f2.Wait(context.Background())
	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Same(t, entry1, entry2)
	assert.Equal(t, 1, ms.callCount("d1.t1"), "a second LoadAsync for the same key must not re-fetch")
}

func TestLoader_FetchFailureSurfacesOnlyToWaiters(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	e, err := reg.Add("d1.t1", catalog.TablePayload{Database: "d1", Table: "t1"})
	require.NoError(t, err)

	ms := newFakeMetastore()
	ms.failNames["d1.t1"] = true

	l := New(reg, ms, 1)
	l.Start(context.Background())
	defer l.Close()

	f := l.LoadAsync(e.Key, e.Version)
	_, err = f.Wait(context.Background())
	assert.Error(t, err)

	// The shell must remain in place for a future retry.
	live, ok := reg.Get(e.Key)
	require.True(t, ok)
	assert.False(t, live.Loaded)
}

func TestLoader_Wait_AbandonedByCallerButJobStillCommits(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	e, err := reg.Add("d1.t1", catalog.TablePayload{Database: "d1", Table: "t1"})
	require.NoError(t, err)

	ms := newFakeMetastore()
	ms.gate = make(chan struct{})
	ms.tables["d1.t1"] = metastore.TableRecord{Database: "d1", Name: "t1", Columns: []string{"x"}}

	l := New(reg, ms, 1)
	l.Start(context.Background())
	defer l.Close()

	f := l.LoadAsync(e.Key, e.Version)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = f.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(ms.gate)
	// The job itself keeps running even though the above Wait gave up.
	time.Sleep(50 * time.Millisecond)
	live, ok := reg.Get(e.Key)
	require.True(t, ok)
	assert.True(t, live.Loaded)
}

func TestLoader_GetOrLoad_ObjectRemovedDuringLoad_ReturnsError(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	e, err := reg.Add("d1.t1", catalog.TablePayload{Database: "d1", Table: "t1"})
	require.NoError(t, err)

	ms := newFakeMetastore()
	ms.gate = make(chan struct{})
	ms.tables["d1.t1"] = metastore.TableRecord{Database: "d1", Name: "t1", Columns: []string{"x"}}

	l := New(reg, ms, 1)
	l.Start(context.Background())
	defer l.Close()

	f := l.LoadAsync(e.Key, e.Version)

	// Drop the table entirely (not just re-version it) while the fetch is
	// still gated, then let the in-flight job proceed to commit.
	_, _, ok := reg.Remove(e.Key)
	require.True(t, ok)
	close(ms.gate)

	entry, err := f.Wait(context.Background())
	assert.Nil(t, entry)
	require.Error(t, err, "a fully removed key must surface an error, not a silent (nil, nil)")
	assert.True(t, cerr.Is(err, cerr.KindNotFound))

	_, ok = reg.Get(e.Key)
	assert.False(t, ok)
}

func TestLoader_Prioritize_MovesQueuedJobToFront(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	a, err := reg.Add("d1.a", catalog.TablePayload{Database: "d1", Table: "a"})
	require.NoError(t, err)
	b, err := reg.Add("d1.b", catalog.TablePayload{Database: "d1", Table: "b"})
	require.NoError(t, err)

	ms := newFakeMetastore()
	ms.tables["d1.a"] = metastore.TableRecord{Database: "d1", Name: "a"}
	ms.tables["d1.b"] = metastore.TableRecord{Database: "d1", Name: "b"}

	// No workers running yet: queue both jobs, then prioritize b, then start.
	l := New(reg, ms, 1)
	l.LoadAsync(a.Key, a.Version)
	fb := l.LoadAsync(b.Key, b.Version)
	l.Prioritize(b.Key)

	stats := l.Stats()
	assert.Equal(t, 1, stats.PriorityQueued, "b moved ahead into the priority tier")
	assert.Equal(t, 1, stats.NormalQueued, "a stays in the normal tier")

	l.Start(context.Background())
	defer l.Close()

	_, err = fb.Wait(context.Background())
	require.NoError(t, err)
}

func TestLoader_Stats(t *testing.T) {
	reg := catalog.NewRegistry(catalog.DefaultConfig())
	ms := newFakeMetastore()
	ms.gate = make(chan struct{})
	_, err := reg.Add("d1.a", catalog.TablePayload{Database: "d1", Table: "a"})
	require.NoError(t, err)
	ms.tables["d1.a"] = metastore.TableRecord{Database: "d1", Name: "a"}

	l := New(reg, ms, 1)
	l.Start(context.Background())
	defer func() {
		close(ms.gate)
		l.Close()
	}()

	l.BackgroundLoad(catalog.NewKey(catalog.KindTable, "d1.a"), catalog.VersionNone)
	time.Sleep(20 * time.Millisecond)

	stats := l.Stats()
	assert.Equal(t, 1, stats.InFlight)
}
