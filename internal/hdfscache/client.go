// Package hdfscache polls the HDFS caching service for cache pool
// definitions (§6) and applies them to the Registry as HDFS_CACHE_POOL
// objects, the one kind of object this system refreshes by polling
// instead of by DDL or delta subscription.
package hdfscache

import "context"

// Pool is one HDFS cache pool definition as reported upstream.
type Pool struct {
	Name     string
	PoolUser string
}

// Client is the pluggable southbound interface to the HDFS caching
// service. Its wire protocol is out of scope (SPEC_FULL.md §7); only the
// operation the poller needs is named here.
type Client interface {
	ListCachePools(ctx context.Context) ([]Pool, error)
}
