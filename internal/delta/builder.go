// Package delta implements the Delta Builder (G, §4.4): the algorithm that
// turns a prior version cursor into a published set of change records.
package delta

import (
	"context"
	"log"

	"github.com/kasuganosora/catalogd/internal/catalog"
)

// Builder runs the Delta Builder algorithm. A Builder is single-threaded by
// contract (spec.md §2: "still lock-free w.r.t. F but serialized by being
// single-threaded") — callers must not invoke RunOnce concurrently from
// multiple goroutines on the same Builder.
type Builder struct {
	Registry  *catalog.Registry
	ServiceID string
	Codec     Codec
	Sinks     Sinks
	Logger    *log.Logger
}

// NewBuilder builds a Delta Builder for reg, publishing to sinks under
// serviceID. codec defaults to JSONCodec{} if nil.
func NewBuilder(reg *catalog.Registry, serviceID string, sinks Sinks, codec Codec, logger *log.Logger) *Builder {
	if codec == nil {
		codec = JSONCodec{}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Builder{Registry: reg, ServiceID: serviceID, Codec: codec, Sinks: sinks, Logger: logger}
}

// Result summarizes one RunOnce invocation (diagnostics / tests).
type Result struct {
	FromVersion catalog.Version
	ToVersion   catalog.Version
	Published   int
	Deleted     int
	Skipped     int
}

// RunOnce executes the Delta Builder algorithm once for the interval
// (fromV, toV], where toV is sampled fresh at the start of the run
// (§4.4 step 1). It returns the new cursor and publishes the terminal
// CATALOG record before returning.
func (b *Builder) RunOnce(ctx context.Context, fromV catalog.Version) (Result, error) {
	cfg := b.Registry.Config()
	toV := b.Registry.CurrentVersion() // step 1

	res := Result{FromVersion: fromV, ToVersion: toV}
	published := make(map[catalog.Key]struct{})
	topicSeq := b.Registry.NextTopicSeq()

	publishOne := func(e *catalog.Entry) {
		b.publishEntry(e, toV)
		published[e.Key] = struct{}{}
		b.Registry.TopicLog().Set(e.Key, catalog.TopicEntry{
			LastSentVersion: e.Version,
			LastSentTopic:   toV,
			Skipped:         0,
		}, topicSeq)
		res.Published++
	}

	// step 2/3: non-heavy kinds directly enumerable at top level.
	for _, e := range b.Registry.Databases() {
		if fromV < e.Version && e.Version <= toV {
			publishOne(e)
		}
	}
	for _, e := range b.Registry.DataSources() {
		if fromV < e.Version && e.Version <= toV {
			publishOne(e)
		}
	}
	for _, e := range b.Registry.CachePools() {
		if fromV < e.Version && e.Version <= toV {
			publishOne(e)
		}
	}
	for _, e := range b.Registry.Principals() {
		if fromV < e.Version && e.Version <= toV {
			publishOne(e)
		}
		for _, priv := range b.Registry.Privileges(e.Payload.(catalog.PrincipalPayload).Name) {
			if fromV < priv.Version && priv.Version <= toV {
				publishOne(priv)
			}
		}
	}

	// Tables/functions are enumerated per-database (step 2).
	for _, db := range b.Registry.Databases() {
		dbName := db.Payload.(catalog.DatabasePayload).Name
		for _, e := range b.Registry.Functions(dbName) {
			if fromV < e.Version && e.Version <= toV {
				publishOne(e)
			}
		}
		for _, e := range b.Registry.Tables(dbName) {
			b.handleHeavy(ctx, e, fromV, toV, topicSeq, published, &res)
		}
	}

	// step 5: deletions, skipping anything re-added since fromV (dedup).
	for _, t := range b.Registry.Tombstones(fromV, toV) {
		if _, already := published[t.Key]; already {
			continue
		}
		b.publishTombstone(t)
		// step 7: D must cover a deleted key too, or a SYNC_DDL wait on its
		// removal (coverVersion in internal/syncddl) can never be satisfied —
		// nothing else will ever touch D for a key that no longer exists.
		b.Registry.TopicLog().Set(t.Key, catalog.TopicEntry{
			LastSentVersion: t.Version,
			LastSentTopic:   toV,
			Skipped:         0,
		}, topicSeq)
		res.Deleted++
	}

	// step 6: terminal CATALOG record, always last.
	b.publishCatalogRecord(toV)

	// step 8: garbage collection.
	b.Registry.GCDeleteLog(toV)
	b.Registry.TopicLog().GCOlderThan(topicSeq, cfg.TopicUpdateLogRetention)

	// step 9: publish cursor + wake H observers.
	b.Registry.PublishTopic(toV)

	return res, nil
}

// handleHeavy implements step 4 for a single heavy (TABLE/VIEW) entry.
func (b *Builder) handleHeavy(ctx context.Context, e *catalog.Entry, fromV, toV catalog.Version, topicSeq uint64, published map[catalog.Key]struct{}, res *Result) {
	cfg := b.Registry.Config()

	decide := func(version catalog.Version) (publish bool, forceSkip bool) {
		switch {
		case version > toV:
			prior, _ := b.Registry.TopicLog().Get(e.Key)
			if prior.Skipped < cfg.MaxSkippedTopicUpdates {
				b.Registry.TopicLog().Set(e.Key, catalog.TopicEntry{
					LastSentVersion: prior.LastSentVersion,
					LastSentTopic:   prior.LastSentTopic,
					Skipped:         prior.Skipped + 1,
				}, topicSeq)
				return false, true
			}
			return true, false // S+1th attempt: force-include regardless of toV (I5)
		case version <= fromV:
			return false, false
		default:
			return true, false
		}
	}

	publish, skippedNow := decide(e.Version)
	if skippedNow {
		res.Skipped++
		return
	}
	if !publish {
		return
	}

	// step 4c: re-acquire under the object lock and re-check, since the
	// version may have changed since the enumeration snapshot (step 2).
	live, unlock, ok := b.Registry.LockObjectForSerialize(e.Key)
	if !ok {
		// Removed/replaced between enumeration and now; the tombstone (if
		// any) will be handled in step 5, or the newer version in a later
		// run.
		return
	}
	defer unlock()

	publish, skippedNow = decide(live.Version)
	if skippedNow {
		res.Skipped++
		return
	}
	if !publish {
		return
	}

	b.publishEntry(live, toV)
	published[live.Key] = struct{}{}
	b.Registry.TopicLog().Set(live.Key, catalog.TopicEntry{
		LastSentVersion: live.Version,
		LastSentTopic:   toV,
		Skipped:         0,
	}, topicSeq)
	res.Published++
}

func (b *Builder) publishEntry(e *catalog.Entry, toV catalog.Version) {
	if b.Sinks.Full != nil {
		if payload, err := b.Codec.Encode(e, false); err == nil {
			b.Sinks.Full(e.Key.String(), uint64(e.Version), payload, false)
		} else {
			b.Logger.Printf("[delta] encode full %s: %v", e.Key, err)
		}
	}
	if b.Sinks.Minimal != nil {
		if payload, err := b.Codec.Encode(e, true); err == nil {
			b.Sinks.Minimal(e.Key.String(), uint64(e.Version), payload, false)
		}
		// Kinds with no minimal projection are simply omitted from the
		// minimal topic; that is not an error (§6).
	}
}

func (b *Builder) publishTombstone(t catalog.Tombstone) {
	if b.Sinks.Full != nil {
		if payload, err := b.Codec.EncodeTombstone(t, false); err == nil {
			b.Sinks.Full(t.Key.String(), uint64(t.Version), payload, true)
		} else {
			b.Logger.Printf("[delta] encode tombstone %s: %v", t.Key, err)
		}
	}
	if b.Sinks.Minimal != nil {
		if payload, err := b.Codec.EncodeTombstone(t, true); err == nil {
			b.Sinks.Minimal(t.Key.String(), uint64(t.Version), payload, true)
		}
	}
}

func (b *Builder) publishCatalogRecord(toV catalog.Version) {
	rec := &catalog.Entry{
		Key:     catalog.NewKey(catalog.KindCatalog, b.ServiceID),
		Version: toV,
		Payload: catalog.CatalogPayload{ServiceID: b.ServiceID, ToVersion: toV},
	}
	if b.Sinks.Full != nil {
		if payload, err := b.Codec.Encode(rec, false); err == nil {
			b.Sinks.Full(rec.Key.String(), uint64(toV), payload, false)
		}
	}
	if b.Sinks.Minimal != nil {
		if payload, err := b.Codec.Encode(rec, true); err == nil {
			b.Sinks.Minimal(rec.Key.String(), uint64(toV), payload, false)
		}
	}
}
