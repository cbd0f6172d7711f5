package catalog

import (
	"log"
	"time"
)

// TopicMode selects which topic namespace(s) the Delta Builder publishes to
// (§6).
type TopicMode string

const (
	TopicFull  TopicMode = "FULL"
	TopicMixed TopicMode = "MIXED"
	TopicMin   TopicMode = "MINIMAL"
)

// Config gathers every configuration item spec.md §6 enumerates. It is
// constructed in code by the embedder; catalogd does not load it from a
// file or flags (that is explicitly out of scope, see SPEC_FULL.md §7).
type Config struct {
	TopicMode TopicMode

	// MaxSkippedTopicUpdates is S from invariant I5: a heavy object may be
	// elided from at most this many consecutive topic updates before it is
	// force-included.
	MaxSkippedTopicUpdates uint32

	MaxParallelPartialFetch    int
	PartialFetchQueueTimeout   time.Duration
	TableLockTimeout           time.Duration
	TableLockRetry             time.Duration
	LoadInBackground           bool
	NumLoadingThreads          int
	TopicUpdateLogRetention    uint64 // measured in count of topic updates
	HDFSCachePoolPollInterval  time.Duration

	// Logger receives component diagnostics. Defaults to log.Default(),
	// mirroring mvcc.Config.WarningLogger in the reference tree this
	// package is adapted from.
	Logger *log.Logger
}

// DefaultConfig returns the defaults called out in spec.md §6.
func DefaultConfig() *Config {
	return &Config{
		TopicMode:                 TopicMixed,
		MaxSkippedTopicUpdates:    2,
		MaxParallelPartialFetch:   8,
		PartialFetchQueueTimeout:  5 * time.Second,
		TableLockTimeout:          7_200_000 * time.Millisecond,
		TableLockRetry:            10 * time.Millisecond,
		LoadInBackground:          true,
		NumLoadingThreads:         4,
		TopicUpdateLogRetention:   10_000,
		HDFSCachePoolPollInterval: 60 * time.Second,
		Logger:                    log.Default(),
	}
}

func (c *Config) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}
