package hdfscache

import (
	"context"
	"log"
	"time"

	"github.com/kasuganosora/catalogd/internal/catalog"
)

// Poller refreshes HDFS_CACHE_POOL objects on a fixed interval
// (Config.HDFSCachePoolPollInterval, default 60s, §6). Unlike tables and
// databases, cache pools have no southbound DDL path; poll-and-reconcile
// is their only update mechanism, so a poll run is itself a sequence of
// ordinary Registry adds/removes/renames and participates in the version
// counter and Delta Builder like any other mutation.
type Poller struct {
	Registry *catalog.Registry
	Client   Client
	Interval time.Duration
	Logger   *log.Logger
}

// New builds a Poller. interval defaults to cfg.HDFSCachePoolPollInterval.
func New(reg *catalog.Registry, client Client, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = reg.Config().HDFSCachePoolPollInterval
	}
	return &Poller{Registry: reg, Client: client, Interval: interval, Logger: reg.Config().Logger}
}

// Run polls on Interval until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.reconcileOnce(ctx); err != nil {
				p.Logger.Printf("[hdfscache] poll failed: %v", err)
			}
		}
	}
}

func (p *Poller) reconcileOnce(ctx context.Context) error {
	pools, err := p.Client.ListCachePools(ctx)
	if err != nil {
		return err
	}

	upstream := make(map[string]Pool, len(pools))
	for _, pool := range pools {
		upstream[pool.Name] = pool
	}

	live := p.Registry.CachePools()
	liveByName := make(map[string]*catalog.Entry, len(live))
	for _, e := range live {
		liveByName[e.Payload.(catalog.CachePoolPayload).Name] = e
	}

	for name, pool := range upstream {
		payload := catalog.CachePoolPayload{Name: pool.Name, PoolUser: pool.PoolUser}
		cur, exists := liveByName[name]
		switch {
		case !exists:
			if _, err := p.Registry.Add(pool.Name, payload); err != nil {
				p.Logger.Printf("[hdfscache] add pool %s: %v", pool.Name, err)
			}
		case cur.Payload.(catalog.CachePoolPayload) != payload:
			key := catalog.NewKey(catalog.KindHDFSCachePool, pool.Name)
			if _, _, err := p.Registry.Rename(key, key, payload); err != nil {
				p.Logger.Printf("[hdfscache] update pool %s: %v", pool.Name, err)
			}
		}
	}

	for name, e := range liveByName {
		if _, ok := upstream[name]; !ok {
			_, _, _ = p.Registry.Remove(e.Key)
		}
	}
	return nil
}
