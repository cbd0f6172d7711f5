package badgerstore

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/kasuganosora/catalogd/internal/catalog"
)

// Store is a durability-only side log for the Delete Log and Topic Update
// Log, grounded on the teacher's BadgerDataSource connect/key-prefix/codec
// idiom (pkg/resource/badger). It never participates in F or O: callers
// write to it after a Registry mutation already committed in memory, and
// replay it at startup before serving any request.
type Store struct {
	cfg *Config
	db  *badger.DB
	mu  sync.Mutex
}

// Open connects to the Badger database described by cfg.
func Open(cfg *Config) (*Store, error) {
	if cfg == nil {
		cfg = DefaultConfig("")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.DataDir)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithValueThreshold(cfg.ValueThreshold)
	if cfg.Logger != nil {
		opts = opts.WithLogger(cfg.Logger)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{cfg: cfg, db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func tombstoneKey(t catalog.Tombstone) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixTombstone, t.Version, t.Key.String()))
}

// tombstoneRecord is the on-disk shape; catalog.Payload is an interface so
// it cannot round-trip through json.Unmarshal without a registered
// concrete type. The record keeps only C's (key, version) pair and the
// object kind; no payload is persisted, so LoadTombstones returns
// Tombstones whose Payload is nil.
type tombstoneRecord struct {
	Key     string          `json:"key"`
	Version uint64          `json:"version"`
	Kind    catalog.ObjectKind `json:"kind"`
}

// AppendTombstone durably records a delete-log entry already applied to
// the in-memory Registry.
func (s *Store) AppendTombstone(t catalog.Tombstone) error {
	rec := tombstoneRecord{Key: t.Key.String(), Version: uint64(t.Version), Kind: t.Key.Kind}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode tombstone: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(tombstoneKey(t), data)
	})
}

// LoadTombstones replays every durably-recorded tombstone in version order
// (Badger iterates keys lexicographically, and the zero-padded version
// prefix keeps that lexicographic order numeric).
func (s *Store) LoadTombstones() ([]catalog.Tombstone, error) {
	var out []catalog.Tombstone
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixTombstone)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec tombstoneRecord
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			}); err != nil {
				return fmt.Errorf("decode tombstone: %w", err)
			}
			key, err := catalog.ParseKey(rec.Key)
			if err != nil {
				return fmt.Errorf("parse tombstone key %q: %w", rec.Key, err)
			}
			out = append(out, catalog.Tombstone{Key: key, Version: catalog.Version(rec.Version)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// GCTombstones drops durable tombstone records with version <= upTo,
// mirroring Registry.GCDeleteLog so the durable log doesn't grow
// unbounded.
func (s *Store) GCTombstones(upTo catalog.Version) error {
	return s.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixTombstone)
		it := txn.NewIterator(opts)
		defer it.Close()

		var toDelete [][]byte
		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			var rec tombstoneRecord
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return err
			}
			if catalog.Version(rec.Version) <= upTo {
				k := make([]byte, len(item.Key()))
				copy(k, item.Key())
				toDelete = append(toDelete, k)
			}
		}
		for _, k := range toDelete {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

func topicEntryKey(key catalog.Key) []byte {
	return []byte(prefixTopicEntry + key.String())
}

type topicEntryRecord struct {
	LastSentVersion uint64 `json:"last_sent_version"`
	LastSentTopic   uint64 `json:"last_sent_topic"`
	Skipped         uint32 `json:"skipped"`
}

// SaveTopicEntry durably records key's current D-entry.
func (s *Store) SaveTopicEntry(key catalog.Key, entry catalog.TopicEntry) error {
	rec := topicEntryRecord{
		LastSentVersion: uint64(entry.LastSentVersion),
		LastSentTopic:   uint64(entry.LastSentTopic),
		Skipped:         entry.Skipped,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode topic entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(topicEntryKey(key), data)
	})
}

// LoadTopicEntries replays every durably-recorded D entry, keyed by object key.
func (s *Store) LoadTopicEntries() (map[catalog.Key]catalog.TopicEntry, error) {
	out := make(map[catalog.Key]catalog.TopicEntry)
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixTopicEntry)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			keyStr := string(item.Key()[len(prefixTopicEntry):])
			key, err := catalog.ParseKey(keyStr)
			if err != nil {
				return fmt.Errorf("parse topic entry key %q: %w", keyStr, err)
			}
			var rec topicEntryRecord
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &rec) }); err != nil {
				return fmt.Errorf("decode topic entry: %w", err)
			}
			out[key] = catalog.TopicEntry{
				LastSentVersion: catalog.Version(rec.LastSentVersion),
				LastSentTopic:   catalog.Version(rec.LastSentTopic),
				Skipped:         rec.Skipped,
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveCursor durably records the last published topic version, so a
// restarted Delta Builder can resume from it instead of replaying the
// entire catalog as adds.
func (s *Store) SaveCursor(v catalog.Version) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefixCursor+"published"), []byte(fmt.Sprintf("%020d", uint64(v))))
	})
}

// LoadCursor returns the last durably-recorded published topic version, or
// VersionNone if none was ever recorded.
func (s *Store) LoadCursor() (catalog.Version, error) {
	var v catalog.Version
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixCursor + "published"))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			var n uint64
			if _, err := fmt.Sscanf(string(val), "%020d", &n); err != nil {
				return err
			}
			v = catalog.Version(n)
			return nil
		})
	})
	return v, err
}
