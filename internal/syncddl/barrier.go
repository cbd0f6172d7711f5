// Package syncddl implements the SYNC_DDL barrier (H, §4.7): blocking a
// caller until a named set of changes has demonstrably been published.
package syncddl

import (
	"context"
	"errors"
	"time"

	"github.com/kasuganosora/catalogd/internal/catalog"
	"github.com/kasuganosora/catalogd/internal/catalog/cerr"
)

// Record names one object and the version a DDL operation assigned it,
// belonging either to the "updated" set U or the "removed" set R (§4.7).
type Record struct {
	Key     catalog.Key
	Version catalog.Version
}

// Barrier answers SYNC_DDL waits against a Registry's Topic Update Log.
type Barrier struct {
	Registry *catalog.Registry

	// PerAttemptTimeout bounds a single wait for the next topic publish.
	// A timeout here does not count against Wait's attempt budget (§4.7
	// step 3).
	PerAttemptTimeout time.Duration
}

// NewBarrier builds a Barrier with a sensible per-attempt timeout.
func NewBarrier(reg *catalog.Registry) *Barrier {
	return &Barrier{Registry: reg, PerAttemptTimeout: 30 * time.Second}
}

// Wait blocks until every record in updated and removed has been
// demonstrably published, returning the topic version a coordinator's
// cursor must reach to observe all of them (§4.7). If both sets are empty,
// fallback (the version the DDL result already carries) is returned
// directly (step 1).
func (b *Barrier) Wait(ctx context.Context, updated, removed []Record, fallback catalog.Version) (catalog.Version, error) {
	if len(updated) == 0 && len(removed) == 0 {
		return fallback, nil
	}

	s := b.Registry.Config().MaxSkippedTopicUpdates
	maxAttempts := 5
	if alt := len(updated) * int(s+1); alt > maxAttempts {
		maxAttempts = alt
	}

	attempts := 0
	for {
		vU, okU := coverVersion(updated, b.Registry.TopicLog())
		vR, okR := coverVersion(removed, b.Registry.TopicLog())
		if okU && okR {
			if vU > vR {
				return vU, nil
			}
			return vR, nil
		}

		if attempts >= maxAttempts {
			return catalog.VersionNone, cerr.New(cerr.KindSyncDdlTimeout,
				"sync_ddl exhausted its topic-publish attempt budget; the DDL itself succeeded, only broadcast visibility is unconfirmed")
		}

		waitCtx, cancel := context.WithTimeout(ctx, b.PerAttemptTimeout)
		err := b.Registry.WaitForPublish(waitCtx)
		cancel()

		switch {
		case err == nil:
			attempts++ // a real topic publish was observed
		case errors.Is(err, context.DeadlineExceeded):
			// Timeouts do not count as attempts (§4.7 step 3); keep waiting
			// unless the caller's own context has also expired.
			if ctx.Err() != nil {
				return catalog.VersionNone, ctx.Err()
			}
		default:
			return catalog.VersionNone, err
		}
	}
}

// coverVersion computes the step-2 candidate version for one record set: the
// max last_sent_topic across records, provided every record's
// last_sent_version already covers its own version. An uncovered or
// GC'd-from-D record makes the whole set uncovered (ok=false).
func coverVersion(records []Record, topicLog *catalog.TopicUpdateLog) (catalog.Version, bool) {
	var maxV catalog.Version
	for _, rec := range records {
		entry, ok := topicLog.Get(rec.Key)
		if !ok || entry.LastSentVersion < rec.Version {
			return catalog.VersionNone, false
		}
		if entry.LastSentTopic > maxV {
			maxV = entry.LastSentTopic
		}
	}
	return maxV, true
}
