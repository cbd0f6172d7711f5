// Command catalogd wires the catalog registry, the delta-publication loop,
// the table loader, and the read-only MCP surface into one running
// process. Configuration loading from files/flags is explicitly out of
// scope (SPEC_FULL.md §7); every knob here is set in code.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kasuganosora/catalogd/internal/catalog"
	"github.com/kasuganosora/catalogd/internal/delta"
	"github.com/kasuganosora/catalogd/internal/hdfscache"
	"github.com/kasuganosora/catalogd/internal/loader"
	"github.com/kasuganosora/catalogd/internal/mcpsurface"
	"github.com/kasuganosora/catalogd/internal/metastore/gormstore"
	"github.com/kasuganosora/catalogd/internal/partialfetch"
	"github.com/kasuganosora/catalogd/internal/store/badgerstore"
)

func main() {
	cfg := catalog.DefaultConfig()
	reg := catalog.NewRegistry(cfg)
	serviceID := uuid.New().String()

	durable, err := badgerstore.Open(badgerstore.DefaultConfig("./catalogd-data"))
	if err != nil {
		log.Fatal("打开持久化存储失败:", err)
	}
	defer durable.Close()

	ms, err := gormstore.Open("./catalogd-data/metastore.sqlite")
	if err != nil {
		log.Fatal("打开参考元数据存储失败:", err)
	}
	defer ms.Close()

	ld := loader.New(reg, ms, cfg.NumLoadingThreads)
	ld.Start(context.Background())
	defer ld.Close()

	gate := partialfetch.NewGate(cfg.MaxParallelPartialFetch)
	_ = gate // exposed to callers embedding this process as a library; unused by main itself

	poller := hdfscache.New(reg, noCachePools{}, cfg.HDFSCachePoolPollInterval)
	pollerCtx, stopPoller := context.WithCancel(context.Background())
	defer stopPoller()
	go poller.Run(pollerCtx)

	sinks := delta.SinksForMode(cfg.TopicMode, logSink(cfg.Logger, false), logSink(cfg.Logger, true))
	builder := delta.NewBuilder(reg, serviceID, sinks, nil, cfg.Logger)

	var stats deltaStats
	go runDeltaLoop(builder, &stats)

	mux := http.NewServeMux()
	registerDebugz(mux, ld, &stats)

	mcpSrv := mcpsurface.New(reg, "0.0.0.0", 8081)
	go func() {
		if err := mcpSrv.Start(); err != nil {
			log.Printf("[catalogd] mcp surface stopped: %v", err)
		}
	}()

	fmt.Println("启动 catalogd...")
	fmt.Printf("MCP surface on :8081, debugz on :8080, service_id=%s\n", serviceID)
	if err := http.ListenAndServe(":8080", mux); err != nil {
		log.Fatal("debugz 服务器启动失败:", err)
	}
}

// runDeltaLoop drives the Delta Builder once a second, the simplest fixed
// cadence that still demonstrates the algorithm; a production embedder
// would instead trigger RunOnce from its own mutation hooks.
func runDeltaLoop(b *delta.Builder, stats *deltaStats) {
	var cursor catalog.Version
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		res, err := b.RunOnce(context.Background(), cursor)
		if err != nil {
			b.Logger.Printf("[catalogd] delta builder run failed: %v", err)
			continue
		}
		cursor = res.ToVersion
		stats.set(res)
	}
}

// logSink is a Sink that just logs what would be published, standing in
// for the caller-supplied wire protocol SPEC_FULL.md §7 leaves out of
// scope. minimal only affects the log line's namespace label.
func logSink(logger *log.Logger, minimal bool) delta.Sink {
	namespace := "full"
	if minimal {
		namespace = "minimal"
	}
	return func(topicKey string, version uint64, payload []byte, deleted bool) bool {
		logger.Printf("[delta] publish[%s] %s v%d deleted=%v (%d bytes)", namespace, topicKey, version, deleted, len(payload))
		return true
	}
}

// deltaStats guards the most recent Delta Builder result for the debugz
// surface, the same snapshot-under-mutex shape mvcc.Manager.GetStatistics
// uses in the reference tree.
type deltaStats struct {
	mu  sync.Mutex
	res delta.Result
}

func (d *deltaStats) set(r delta.Result) {
	d.mu.Lock()
	d.res = r
	d.mu.Unlock()
}

func (d *deltaStats) get() delta.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.res
}

// registerDebugz wires the minimal HTTP status surface SPEC_FULL.md §6
// calls for, mirroring the shape of mvcc.Manager.GetStatistics() without
// pulling in a command-line/interactive surface (non-goal, §7).
func registerDebugz(mux *http.ServeMux, ld *loader.Loader, stats *deltaStats) {
	mux.HandleFunc("/debugz/delta-builder", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats.get())
	})
	mux.HandleFunc("/debugz/loader", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ld.Stats())
	})
}

// noCachePools is the zero-configuration hdfscache.Client: no upstream
// cache-pool source wired in this standalone binary, so polling always
// reports an empty set rather than erroring (the poller's reconcile loop
// treats that exactly like "all pools were removed upstream").
type noCachePools struct{}

func (noCachePools) ListCachePools(ctx context.Context) ([]hdfscache.Pool, error) {
	return nil, nil
}
