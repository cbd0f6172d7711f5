package catalog

import "sync"

// TopicEntry is the per-object record in the Topic Update Log (D, §3): the
// version last published, the topic-update version (toV) that published
// it, and the skip counter the starvation-avoidance policy (I5) uses.
type TopicEntry struct {
	LastSentVersion Version
	LastSentTopic   Version
	Skipped         uint32

	// lastTopicSeq is the Delta Builder's monotonic run counter at the time
	// this entry was last touched. It is independent of catalog Version and
	// exists so retention ("a count of topic updates", §3/§6) can be
	// enforced even when toV jumps unevenly between runs.
	lastTopicSeq uint64
}

// TopicUpdateLog is the mapping K -> TopicEntry (D). Like DeleteLog, it is
// only ever mutated by the (single-threaded) Delta Builder and read
// concurrently by SYNC_DDL waiters without F, so it carries its own small
// mutex rather than relying on F — matching spec §4.4's "still lock-free
// w.r.t. F but serialized by being single-threaded" note for the builder
// side, plus a mutex for the concurrent H readers.
type TopicUpdateLog struct {
	mu      sync.RWMutex
	entries map[Key]*TopicEntry
}

// NewTopicUpdateLog builds an empty Topic Update Log.
func NewTopicUpdateLog() *TopicUpdateLog {
	return &TopicUpdateLog{entries: make(map[Key]*TopicEntry)}
}

// Get returns a copy of the entry for key, if present.
func (t *TopicUpdateLog) Get(key Key) (TopicEntry, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	e, ok := t.entries[key]
	if !ok {
		return TopicEntry{}, false
	}
	return *e, true
}

// Set records the entry for key, overwriting whatever was there.
func (t *TopicUpdateLog) Set(key Key, entry TopicEntry, topicSeq uint64) {
	entry.lastTopicSeq = topicSeq
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries[key] = &entry
}

// GCOlderThan drops every entry whose lastTopicSeq predates
// currentSeq-retention (§4.4 step 8, §3).
func (t *TopicUpdateLog) GCOlderThan(currentSeq, retention uint64) {
	if currentSeq <= retention {
		return
	}
	floor := currentSeq - retention
	t.mu.Lock()
	defer t.mu.Unlock()
	for k, e := range t.entries {
		if e.lastTopicSeq < floor {
			delete(t.entries, k)
		}
	}
}

// Len reports the current entry count (diagnostics).
func (t *TopicUpdateLog) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
