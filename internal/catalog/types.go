// Package catalog implements the versioned metadata cache: the object
// registry, delete log, topic update log, and the locks that guard them.
package catalog

import (
	"fmt"
	"strings"
	"sync"

	"golang.org/x/text/cases"
)

// Version is the global monotonically increasing sequence number assigned
// to every mutation. Zero is the sentinel "never assigned" value (I1).
type Version uint64

// VersionNone is the sentinel value meaning "never assigned a version".
const VersionNone Version = 0

// ObjectKind is the <kind> component of an Object Key.
type ObjectKind string

const (
	KindDatabase       ObjectKind = "DATABASE"
	KindTable          ObjectKind = "TABLE"
	KindView           ObjectKind = "VIEW"
	KindFunction       ObjectKind = "FUNCTION"
	KindDataSource     ObjectKind = "DATA_SOURCE"
	KindHDFSCachePool  ObjectKind = "HDFS_CACHE_POOL"
	KindPrincipal      ObjectKind = "PRINCIPAL"
	KindPrivilege      ObjectKind = "PRIVILEGE"
	KindCatalog        ObjectKind = "CATALOG"
)

// Heavy reports whether objects of this kind carry a per-object lock and a
// loaded/incomplete lifecycle (§3, §4.5).
func (k ObjectKind) Heavy() bool {
	return k == KindTable || k == KindView
}

var identCaser = cases.Fold()

// foldName normalizes a scoped name component the way SQL identifiers are
// conventionally compared: case-insensitively.
func foldName(name string) string {
	return identCaser.String(name)
}

// Key is the canonical "<kind>:<scoped-name>" object identifier (§3, K).
type Key struct {
	Kind ObjectKind
	Name string // scoped name, e.g. "db.table" or "db.function"
}

// NewKey builds a Key, folding the scoped name for case-insensitive lookup.
func NewKey(kind ObjectKind, name string) Key {
	return Key{Kind: kind, Name: foldName(name)}
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s", k.Kind, k.Name)
}

// ParseKey parses the "<kind>:<scoped-name>" form back into a Key.
func ParseKey(s string) (Key, error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return Key{}, fmt.Errorf("catalog: malformed object key %q", s)
	}
	return NewKey(ObjectKind(s[:idx]), s[idx+1:]), nil
}

// Database returns the owning database name for a scoped "db.name" key, or
// "" if the key has no database component (e.g. PRINCIPAL, CATALOG).
func (k Key) Database() string {
	if idx := strings.IndexByte(k.Name, '.'); idx >= 0 {
		return k.Name[:idx]
	}
	return ""
}

// Payload is implemented by every kind-specific object body. The delta
// builder dispatches on Kind() rather than on Go's dynamic type, per the
// tagged-variant design note (spec §9).
type Payload interface {
	Kind() ObjectKind
}

// ObjectLock is the per-object lock every heavy object carries (§4.5). It
// wraps a plain sync.Mutex and is not reentrant: a goroutine that already
// holds it and locks it again deadlocks. See TryLockObject and
// LockObjectForSerialize, the two call sites that acquire it.
type ObjectLock struct {
	mu sync.Mutex
}

// TryLock attempts to acquire the object lock without blocking.
func (l *ObjectLock) TryLock() bool { return l.mu.TryLock() }

// Unlock releases the object lock.
func (l *ObjectLock) Unlock() { l.mu.Unlock() }

// Entry is an object (O) as stored in the registry: a kind-specific
// Payload plus the always-present version and, for heavy kinds, the
// loaded flag and per-object lock.
type Entry struct {
	Key     Key
	Version Version
	Loaded  bool        // heavy kinds only; true once materialized from upstream
	Lock    *ObjectLock // non-nil only for heavy kinds
	Payload Payload
}

// newEntry builds an Entry for the given payload and version, wiring up a
// fresh per-object lock for heavy kinds (Object Registry "add", §4.2).
// loaded should be true when payload already carries the object's full
// definition (e.g. a DDL statement supplied it directly) and false when it
// is a shell awaiting the Table Loader (e.g. discovered by a metastore
// listing scan).
func newEntry(key Key, version Version, payload Payload, loaded bool) *Entry {
	e := &Entry{Key: key, Version: version, Payload: payload, Loaded: loaded}
	if key.Kind.Heavy() {
		e.Lock = &ObjectLock{}
	}
	return e
}

// clone returns a shallow copy of the Entry suitable for handing to a
// snapshotter without sharing the mutable Lock pointer's logical identity
// (the lock itself is not copied; snapshots never lock).
func (e *Entry) clone() *Entry {
	cp := *e
	cp.Lock = nil
	return &cp
}

// --- kind-specific payloads -------------------------------------------------

// DatabasePayload is the DATABASE object body.
type DatabasePayload struct {
	Name string
}

func (DatabasePayload) Kind() ObjectKind { return KindDatabase }

// TablePayload is the TABLE/VIEW object body. IsView distinguishes the two;
// both share the heavy/incomplete lifecycle.
type TablePayload struct {
	Database string
	Table    string
	IsView   bool
	Columns  []string // empty until Loaded
	ViewSQL  string   // only meaningful when IsView
}

func (p TablePayload) Kind() ObjectKind {
	if p.IsView {
		return KindView
	}
	return KindTable
}

// FunctionPayload is the FUNCTION object body.
type FunctionPayload struct {
	Database string
	Name     string
	Sig      string
}

func (FunctionPayload) Kind() ObjectKind { return KindFunction }

// DataSourcePayload is the DATA_SOURCE object body.
type DataSourcePayload struct {
	Name   string
	Driver string
	DSN    string
}

func (DataSourcePayload) Kind() ObjectKind { return KindDataSource }

// CachePoolPayload is the HDFS_CACHE_POOL object body.
type CachePoolPayload struct {
	Name     string
	PoolUser string
}

func (CachePoolPayload) Kind() ObjectKind { return KindHDFSCachePool }

// PrincipalPayload is the PRINCIPAL object body.
type PrincipalPayload struct {
	Name string
	Type string // USER | ROLE
}

func (PrincipalPayload) Kind() ObjectKind { return KindPrincipal }

// PrivilegePayload is the PRIVILEGE object body, owned by a principal.
type PrivilegePayload struct {
	Principal string
	Scope     string // e.g. "DATABASE:d", "TABLE:d.t", "SERVER"
	Action    string // e.g. SELECT, ALL, GRANT
}

func (PrivilegePayload) Kind() ObjectKind { return KindPrivilege }

// CatalogPayload is the synthetic terminal CATALOG record (§6).
type CatalogPayload struct {
	ServiceID string
	ToVersion Version
}

func (CatalogPayload) Kind() ObjectKind { return KindCatalog }
