// Package cerr defines the error kinds catalogd surfaces to callers.
package cerr

import (
	"errors"
	"fmt"
)

// Kind identifies the class of failure, independent of the wrapped cause.
type Kind string

const (
	KindNotFound                 Kind = "not_found"
	KindAlreadyLoading           Kind = "already_loading"
	KindLoadFailed               Kind = "load_failed"
	KindConflict                 Kind = "conflict"
	KindLockTimeout              Kind = "lock_timeout"
	KindPartialFetchQueueTimeout Kind = "partial_fetch_queue_timeout"
	KindSyncDdlTimeout           Kind = "sync_ddl_timeout"
	KindUpstreamUnavailable      Kind = "upstream_unavailable"
	KindInternal                 Kind = "internal"
)

// Error wraps a Kind with context and an optional underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error of the given kind.
func New(kind Kind, msg string) error {
	return &Error{Kind: kind, Msg: msg}
}

// Wrap builds an *Error of the given kind around an existing cause.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// Is reports whether the first *Error in err's chain carries the given
// Kind. Kinds of *Errors wrapped further down inside that one are not
// consulted.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// NotFound builds a KindNotFound error naming the missing object kind and key.
func NotFound(objKind, key string) error {
	return New(KindNotFound, fmt.Sprintf("%s %q not found", objKind, key))
}
