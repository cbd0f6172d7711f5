// Package loader implements the Table Loader (I, §4.6): a bounded worker
// pool that fetches incomplete TABLE/VIEW shells from the metastore and
// commits them with a compare-and-swap so a load racing a concurrent DDL
// never clobbers newer metadata.
package loader

import (
	"context"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/kasuganosora/catalogd/internal/catalog"
	"github.com/kasuganosora/catalogd/internal/catalog/cerr"
	"github.com/kasuganosora/catalogd/internal/metastore"
)

// job is one queued or in-flight load request.
type job struct {
	key             catalog.Key
	expectedVersion catalog.Version
	future          *Future
}

// Loader runs Workers background goroutines pulling from a two-tier
// priority queue, grounded in the teacher pack's channel-and-mutex worker
// pool idiom (SimonWaldherr-tinySQL's concurrency.go WorkerPool) but
// reworked as an explicit slice queue so Prioritize can promote an
// already-queued key, which a plain channel cannot do.
type Loader struct {
	reg     *catalog.Registry
	ms      metastore.Client
	logger  *log.Logger
	Workers int

	mu       sync.Mutex
	cond     *sync.Cond
	priority []*job
	normal   []*job
	inflight map[catalog.Key]*Future
	closed   bool

	eg *errgroup.Group
}

// New builds a Loader against reg, fetching shells from ms. workers
// defaults to cfg.NumLoadingThreads.
func New(reg *catalog.Registry, ms metastore.Client, workers int) *Loader {
	if workers <= 0 {
		workers = reg.Config().NumLoadingThreads
	}
	if workers <= 0 {
		workers = 1
	}
	l := &Loader{
		reg:      reg,
		ms:       ms,
		logger:   reg.Config().Logger,
		Workers:  workers,
		inflight: make(map[catalog.Key]*Future),
	}
	l.cond = sync.NewCond(&l.mu)
	return l
}

// Start launches the worker pool. ctx is not used: the workers' metastore
// calls run under a context derived from context.Background(), so
// already-dispatched loads always run to completion (the "uncancellable
// load" behavior in §9). Shutdown goes through Close.
func (l *Loader) Start(ctx context.Context) {
	eg, egCtx := errgroup.WithContext(context.Background())
	l.eg = eg
	for i := 0; i < l.Workers; i++ {
		eg.Go(func() error {
			l.run(egCtx)
			return nil
		})
	}
	_ = ctx // reserved: a future cancel-on-shutdown path closes via Close, not ctx
}

// Close marks the loader closed and waits for the workers to exit; they
// first run every job already queued. LoadAsync does not check for
// closure, so a job queued after the workers have exited is never run.
func (l *Loader) Close() error {
	l.mu.Lock()
	l.closed = true
	l.mu.Unlock()
	l.cond.Broadcast()
	if l.eg != nil {
		return l.eg.Wait()
	}
	return nil
}

func (l *Loader) run(ctx context.Context) {
	for {
		l.mu.Lock()
		for len(l.priority) == 0 && len(l.normal) == 0 && !l.closed {
			l.cond.Wait()
		}
		if l.closed && len(l.priority) == 0 && len(l.normal) == 0 {
			l.mu.Unlock()
			return
		}
		var j *job
		if len(l.priority) > 0 {
			j, l.priority = l.priority[0], l.priority[1:]
		} else {
			j, l.normal = l.normal[0], l.normal[1:]
		}
		l.mu.Unlock()

		l.fetchAndCommit(ctx, j)
	}
}

// LoadAsync enqueues (or finds already in-flight) a load for key and
// returns its Future. Idempotent: a second call for the same key while a
// load is outstanding returns the same Future instead of issuing a second
// metastore fetch (§4.6 "deduplicated by key").
func (l *Loader) LoadAsync(key catalog.Key, expectedVersion catalog.Version) *Future {
	l.mu.Lock()
	if f, ok := l.inflight[key]; ok {
		l.mu.Unlock()
		return f
	}
	f := newFuture()
	l.inflight[key] = f
	l.normal = append(l.normal, &job{key: key, expectedVersion: expectedVersion, future: f})
	l.mu.Unlock()
	l.cond.Signal()
	return f
}

// BackgroundLoad is load_async issued for prefetch rather than a blocked
// foreground reader; it queues at normal priority and does not wait.
func (l *Loader) BackgroundLoad(key catalog.Key, expectedVersion catalog.Version) {
	l.LoadAsync(key, expectedVersion)
}

// Prioritize moves key's queued job, if still waiting, to the front of the
// queue (§4.6). A job already being fetched by a worker cannot be
// promoted further and Prioritize is then a no-op.
func (l *Loader) Prioritize(key catalog.Key) {
	l.mu.Lock()
	for i, j := range l.normal {
		if j.key == key {
			l.normal = append(l.normal[:i], l.normal[i+1:]...)
			l.priority = append(l.priority, j)
			break
		}
	}
	l.mu.Unlock()
	l.cond.Signal()
}

// GetOrLoad returns key's live entry if already loaded, otherwise issues
// (or joins) its background load, prioritizes it, and awaits the result
// outside the registry lock F, per §4.6.
func (l *Loader) GetOrLoad(ctx context.Context, key catalog.Key) (*catalog.Entry, error) {
	entry, ok := l.reg.Get(key)
	if !ok {
		return nil, cerr.NotFound(string(key.Kind), key.Name)
	}
	if entry.Loaded {
		return entry, nil
	}

	f := l.LoadAsync(key, entry.Version)
	l.Prioritize(key)
	return f.Wait(ctx)
}

// fetchAndCommit runs one job to completion: fetch from the metastore,
// then compare-and-swap into the registry. On fetch failure the shell is
// left in place and the error surfaces only to this job's waiters (§7).
func (l *Loader) fetchAndCommit(ctx context.Context, j *job) {
	defer l.finish(j.key)

	db, table, ok := splitTableKey(j.key.Name)
	if !ok {
		j.future.settle(nil, cerr.New(cerr.KindLoadFailed, "malformed table key: "+j.key.Name))
		return
	}

	rec, err := l.ms.GetTable(ctx, db, table)
	if err != nil {
		l.logger.Printf("[loader] get_table %s.%s: %v", db, table, err)
		j.future.settle(nil, cerr.Wrap(cerr.KindLoadFailed, "metastore get_table failed", err))
		return
	}

	payload := catalog.TablePayload{
		Database: db,
		Table:    table,
		IsView:   rec.IsView,
		ViewSQL:  rec.ViewSQL,
		Columns:  rec.Columns,
	}
	entry, _ := l.reg.ReplaceIfUnchanged(j.key, j.expectedVersion, payload)
	if entry == nil {
		// The key is gone, not just re-versioned: it was dropped/renamed
		// away while this load was in flight. There is no live entry to
		// hand back, so this must surface as an error rather than a nil,
		// nil result every caller would otherwise have to guard against.
		j.future.settle(nil, cerr.NotFound(string(j.key.Kind), j.key.Name))
		return
	}
	// Whether or not the swap applied (a concurrent DDL may have beaten
	// this load to the key), entry is the registry's current value for
	// key and is what the caller gets back.
	j.future.settle(entry, nil)
}

// Stats is a snapshot of queue/in-flight depth for the debugz surface
// (§6), the same shape mvcc.Manager.GetStatistics() exposes in the
// reference tree.
type Stats struct {
	PriorityQueued int
	NormalQueued   int
	InFlight       int
}

// Stats reports the loader's current queue depths.
func (l *Loader) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{
		PriorityQueued: len(l.priority),
		NormalQueued:   len(l.normal),
		InFlight:       len(l.inflight),
	}
}

func (l *Loader) finish(key catalog.Key) {
	l.mu.Lock()
	delete(l.inflight, key)
	l.mu.Unlock()
}

// splitTableKey splits a "db.table" object name. Object keys are folded
// and scoped the way catalog.NewKey produces them for KindTable/KindView.
func splitTableKey(name string) (db, table string, ok bool) {
	i := strings.IndexByte(name, '.')
	if i < 0 {
		return "", "", false
	}
	return name[:i], name[i+1:], true
}
