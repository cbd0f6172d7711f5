package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/kasuganosora/catalogd/internal/catalog/cerr"
)

// Registry is the versioned catalog store: the global version lock (F),
// the version counter (A), the object registry (B), the delete log (C),
// and the topic update log (D). Every mutation and snapshot goes through
// Registry so the lock-order discipline (§9: F.write -> O.lock, never the
// reverse) is enforced in one place.
type Registry struct {
	cfg *Config

	lock    FairRWLock
	version Version // A, guarded by lock.write

	objects           map[Key]*Entry
	dbChildren        map[string]map[Key]struct{} // db name -> TABLE/VIEW/FUNCTION keys
	principalChildren map[string]map[Key]struct{} // principal name -> PRIVILEGE keys

	deleteLog DeleteLog
	topicLog  *TopicUpdateLog
	topicSeq  uint64 // Delta Builder's own run counter; touched only by the builder

	lastPublishedTopic atomic.Uint64 // lock-free cursor (§3 Cursors)

	publishMu   sync.Mutex
	publishCond *sync.Cond // H observers wait here for the next topic publish
}

// NewRegistry builds an empty Registry.
func NewRegistry(cfg *Config) *Registry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	r := &Registry{
		cfg:               cfg,
		objects:           make(map[Key]*Entry),
		dbChildren:        make(map[string]map[Key]struct{}),
		principalChildren: make(map[string]map[Key]struct{}),
		topicLog:          NewTopicUpdateLog(),
	}
	r.publishCond = sync.NewCond(&r.publishMu)
	return r
}

// Config returns the registry's configuration.
func (r *Registry) Config() *Config { return r.cfg }

// --- version counter (A) ----------------------------------------------------

// nextVersionLocked assigns the next strictly-increasing version. Callers
// must hold F.write.
func (r *Registry) nextVersionLocked() Version {
	r.version++
	return r.version
}

// CurrentVersion samples the current global version under F.read (used by
// the Delta Builder's step 1, and by general callers).
func (r *Registry) CurrentVersion() Version {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.version
}

// --- object registry (B) -----------------------------------------------------

// Add inserts a new object, assigning it a fresh version (§4.2 "add").
// Heavy kinds are created with Loaded=false and a fresh per-object lock,
// i.e. as a shell awaiting the Table Loader — the right shape for objects
// discovered by a metastore listing scan.
func (r *Registry) Add(name string, payload Payload) (*Entry, error) {
	return r.add(name, payload, false)
}

// AddLoaded inserts a new object that already carries its full definition
// (e.g. a CREATE TABLE/VIEW DDL statement supplying columns directly), so
// heavy kinds skip the loader shell stage entirely.
func (r *Registry) AddLoaded(name string, payload Payload) (*Entry, error) {
	return r.add(name, payload, true)
}

func (r *Registry) add(name string, payload Payload, loaded bool) (*Entry, error) {
	key := NewKey(payload.Kind(), name)
	r.lock.Lock()
	defer r.lock.Unlock()
	if _, exists := r.objects[key]; exists {
		return nil, cerr.Wrap(cerr.KindConflict, fmt.Sprintf("object %s already exists", key), nil)
	}
	return r.addLocked(key, payload, loaded), nil
}

func (r *Registry) addLocked(key Key, payload Payload, loaded bool) *Entry {
	e := newEntry(key, r.nextVersionLocked(), payload, loaded)
	r.objects[key] = e
	r.indexLocked(key)
	return e
}

func (r *Registry) indexLocked(key Key) {
	switch key.Kind {
	case KindTable, KindView, KindFunction:
		db := key.Database()
		if r.dbChildren[db] == nil {
			r.dbChildren[db] = make(map[Key]struct{})
		}
		r.dbChildren[db][key] = struct{}{}
	case KindPrivilege:
		principal := key.Database() // reuse "owner prefix" convention: "principal.scope"
		if r.principalChildren[principal] == nil {
			r.principalChildren[principal] = make(map[Key]struct{})
		}
		r.principalChildren[principal][key] = struct{}{}
	}
}

func (r *Registry) unindexLocked(key Key) {
	switch key.Kind {
	case KindTable, KindView, KindFunction:
		delete(r.dbChildren[key.Database()], key)
	case KindPrivilege:
		delete(r.principalChildren[key.Database()], key)
	}
}

// Remove erases an object from B and appends a tombstone to C (§4.2
// "remove"). Reports false if the key was not present. The returned
// Tombstone carries the version the removal itself was assigned, which is
// not necessarily the removed entry's version plus one under concurrent
// mutation.
func (r *Registry) Remove(key Key) (*Entry, Tombstone, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()
	return r.removeLocked(key)
}

func (r *Registry) removeLocked(key Key) (*Entry, Tombstone, bool) {
	e, ok := r.objects[key]
	if !ok {
		return nil, Tombstone{}, false
	}
	delete(r.objects, key)
	r.unindexLocked(key)
	t := Tombstone{Key: key, Version: r.nextVersionLocked(), Payload: e.Payload}
	r.deleteLog.append(t)
	return e, t, true
}

// Rename performs an atomic remove-then-add under a single F.write section
// (§4.2 "rename", §8 P6): the old key is tombstoned and the new key is
// created, receiving distinct, successive versions.
// The returned old entry's Version is overwritten with the tombstone's
// version (the version the removal itself was assigned), not the old
// entry's pre-removal live version, so callers building a removed-set
// Record for SYNC_DDL get a version that TopicLog will actually carry.
func (r *Registry) Rename(oldKey, newKey Key, newPayload Payload) (old *Entry, created *Entry, err error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	old, tomb, ok := r.removeLocked(oldKey)
	if !ok {
		return nil, nil, cerr.NotFound(string(oldKey.Kind), oldKey.Name)
	}
	if _, exists := r.objects[newKey]; exists {
		// Put the old entry back; rename must be all-or-nothing.
		r.objects[oldKey] = old
		r.indexLocked(oldKey)
		return nil, nil, cerr.Wrap(cerr.KindConflict, fmt.Sprintf("object %s already exists", newKey), nil)
	}
	created = r.addLocked(newKey, newPayload, old.Loaded)
	old = old.clone()
	old.Version = tomb.Version
	return old, created, nil
}

// RemoveDatabase tombstones every owned TABLE/VIEW/FUNCTION and then the
// database itself, all within one F.write section, each receiving its own
// distinct version so coordinators observe children strictly before or
// interleaved with the parent (§4.2 cascade).
func (r *Registry) RemoveDatabase(dbName string) ([]Tombstone, error) {
	r.lock.Lock()
	defer r.lock.Unlock()

	dbKey := NewKey(KindDatabase, dbName)
	if _, ok := r.objects[dbKey]; !ok {
		return nil, cerr.NotFound("database", dbName)
	}

	var tombstones []Tombstone
	children := r.dbChildren[foldName(dbName)]
	keys := make([]Key, 0, len(children))
	for k := range children {
		keys = append(keys, k)
	}
	for _, k := range keys {
		if _, t, ok := r.removeLocked(k); ok {
			tombstones = append(tombstones, t)
		}
	}
	if _, t, ok := r.removeLocked(dbKey); ok {
		tombstones = append(tombstones, t)
	}
	return tombstones, nil
}

// Get returns an immutable clone of the live object for key (F.read).
func (r *Registry) Get(key Key) (*Entry, bool) {
	r.lock.RLock()
	defer r.lock.RUnlock()
	e, ok := r.objects[key]
	if !ok {
		return nil, false
	}
	return e.clone(), true
}

// liveLocked returns the actual (non-cloned) live *Entry pointer. Callers
// must hold at least F.read, and must not retain the pointer past the
// critical section except to use its Lock field per §4.4 step 4c / §4.5.
func (r *Registry) liveLocked(key Key) (*Entry, bool) {
	e, ok := r.objects[key]
	return e, ok
}

// snapshotKind returns immutable clones of every live object of kind k.
func (r *Registry) snapshotKind(k ObjectKind) []*Entry {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var out []*Entry
	for key, e := range r.objects {
		if key.Kind == k {
			out = append(out, e.clone())
		}
	}
	return out
}

// Databases returns a snapshot of every live database.
func (r *Registry) Databases() []*Entry { return r.snapshotKind(KindDatabase) }

// DataSources returns a snapshot of every live data source.
func (r *Registry) DataSources() []*Entry { return r.snapshotKind(KindDataSource) }

// CachePools returns a snapshot of every live HDFS cache pool.
func (r *Registry) CachePools() []*Entry { return r.snapshotKind(KindHDFSCachePool) }

// Principals returns a snapshot of every live principal.
func (r *Registry) Principals() []*Entry { return r.snapshotKind(KindPrincipal) }

// childrenOf returns clones of every live object under db of kinds
// TABLE/VIEW or FUNCTION, per the filter.
func (r *Registry) childrenOf(db string, want func(ObjectKind) bool) []*Entry {
	r.lock.RLock()
	defer r.lock.RUnlock()
	keys := r.dbChildren[foldName(db)]
	out := make([]*Entry, 0, len(keys))
	for k := range keys {
		if !want(k.Kind) {
			continue
		}
		if e, ok := r.objects[k]; ok {
			out = append(out, e.clone())
		}
	}
	return out
}

// Tables returns a snapshot of every live TABLE/VIEW owned by db.
func (r *Registry) Tables(db string) []*Entry {
	return r.childrenOf(db, func(k ObjectKind) bool { return k == KindTable || k == KindView })
}

// Functions returns a snapshot of every live FUNCTION owned by db.
func (r *Registry) Functions(db string) []*Entry {
	return r.childrenOf(db, func(k ObjectKind) bool { return k == KindFunction })
}

// Privileges returns a snapshot of every live PRIVILEGE owned by principal.
func (r *Registry) Privileges(principal string) []*Entry {
	r.lock.RLock()
	defer r.lock.RUnlock()
	keys := r.principalChildren[foldName(principal)]
	out := make([]*Entry, 0, len(keys))
	for k := range keys {
		if e, ok := r.objects[k]; ok {
			out = append(out, e.clone())
		}
	}
	return out
}

// --- delete log / topic update log plumbing (used by the delta builder) ----

// Tombstones returns tombstones with fromV < version <= toV (F.read).
func (r *Registry) Tombstones(fromV, toV Version) []Tombstone {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return r.deleteLog.Retrieve(fromV, toV)
}

// GCDeleteLog drops tombstones with version <= upTo (F.write).
func (r *Registry) GCDeleteLog(upTo Version) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.deleteLog.GC(upTo)
}

// TopicLog returns the Topic Update Log. Only the (single-threaded) Delta
// Builder writes to it; SYNC_DDL reads from it concurrently, which is safe
// because TopicUpdateLog guards its map with its own mutex, independent of
// F.
func (r *Registry) TopicLog() *TopicUpdateLog { return r.topicLog }

// NextTopicSeq increments and returns the Delta Builder's run counter.
func (r *Registry) NextTopicSeq() uint64 {
	r.topicSeq++
	return r.topicSeq
}

// TopicSeq returns the current Delta Builder run counter without advancing it.
func (r *Registry) TopicSeq() uint64 { return r.topicSeq }

// LastPublishedTopic returns the lock-free published-topic cursor.
func (r *Registry) LastPublishedTopic() Version {
	return Version(r.lastPublishedTopic.Load())
}

// PublishTopic advances the published-topic cursor and wakes every SYNC_DDL
// waiter (§4.4 step 9).
func (r *Registry) PublishTopic(toV Version) {
	r.lastPublishedTopic.Store(uint64(toV))
	r.publishMu.Lock()
	r.publishCond.Broadcast()
	r.publishMu.Unlock()
}

// WaitForPublish blocks until the next topic publish or until ctx is done,
// whichever comes first. Used by the SYNC_DDL barrier (§4.7).
func (r *Registry) WaitForPublish(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.publishMu.Lock()
		r.publishCond.Wait()
		r.publishMu.Unlock()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		// Wake the helper goroutine so it doesn't leak: a broadcast it
		// never needed is harmless, and publishes are infrequent.
		r.publishMu.Lock()
		r.publishCond.Broadcast()
		r.publishMu.Unlock()
		return ctx.Err()
	}
}

// --- per-object lock / compare-and-swap (E, §4.5) ---------------------------

// ReplaceIfUnchanged installs newPayload under key with a freshly assigned
// version, but only if the live object's version still equals
// expectedVersion. Otherwise it is a no-op that returns the current live
// value (§4.5, §8 P5). This is the sole commit path for background loads.
func (r *Registry) ReplaceIfUnchanged(key Key, expectedVersion Version, newPayload Payload) (*Entry, bool) {
	r.lock.Lock()
	defer r.lock.Unlock()

	cur, ok := r.objects[key]
	if !ok || cur.Version != expectedVersion {
		if !ok {
			return nil, false
		}
		return cur.clone(), false
	}

	next := &Entry{
		Key:     key,
		Version: r.nextVersionLocked(),
		Loaded:  true,
		Lock:    cur.Lock, // the per-object lock tracks the logical table, not the struct instance
		Payload: newPayload,
	}
	r.objects[key] = next
	return next.clone(), true
}

// LockObjectForSerialize acquires only the per-object lock (no F), for the
// Delta Builder's step 4c: it must serialize a heavy object's bytes without
// blocking the whole registry. Per the lock-order discipline (§9), this is
// "at most one" lock and is safe to call without holding F.
func (r *Registry) LockObjectForSerialize(key Key) (*Entry, func(), bool) {
	r.lock.RLock()
	e, ok := r.liveLocked(key)
	r.lock.RUnlock()
	if !ok || e.Lock == nil {
		return nil, nil, false
	}
	e.Lock.mu.Lock()
	// Re-validate the object is still the live one under the key; if it was
	// removed/replaced between the snapshot above and acquiring the lock,
	// the caller should treat this as "object changed, recompute".
	r.lock.RLock()
	cur, stillLive := r.objects[key]
	r.lock.RUnlock()
	if !stillLive || cur != e {
		e.Lock.mu.Unlock()
		return nil, nil, false
	}
	return e.clone(), func() { e.Lock.mu.Unlock() }, true
}

// TryLockObject is the canonical combined-lock primitive (§4.5): it
// acquires F.write first, then attempts the object's lock; on failure it
// releases F.write, sleeps a short interval, and retries until timeout. It
// is the only primitive in this package that ever holds both locks at
// once.
func (r *Registry) TryLockObject(ctx context.Context, key Key, timeout time.Duration) (*Entry, func(), error) {
	deadline := time.Now().Add(timeout)
	retry := r.cfg.TableLockRetry
	if retry <= 0 {
		retry = 10 * time.Millisecond
	}
	for {
		r.lock.Lock()
		e, ok := r.objects[key]
		if !ok || e.Lock == nil {
			r.lock.Unlock()
			return nil, nil, cerr.NotFound(string(key.Kind), key.Name)
		}
		if e.Lock.TryLock() {
			unlock := func() {
				e.Lock.Unlock()
				r.lock.Unlock()
			}
			return e, unlock, nil
		}
		r.lock.Unlock()

		if time.Now().After(deadline) {
			return nil, nil, cerr.New(cerr.KindLockTimeout, fmt.Sprintf("timed out acquiring lock for %s", key))
		}
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(retry):
		}
	}
}
