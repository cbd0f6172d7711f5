package loader

import (
	"context"

	"github.com/kasuganosora/catalogd/internal/catalog"
)

// Future is the handle load_async returns (§4.6): it resolves once the
// background fetch has either committed via Registry.ReplaceIfUnchanged or
// failed. Waiting on it is cancellable; the load it names is not — a
// context cancellation only abandons this particular wait.
type Future struct {
	done  chan struct{}
	entry *catalog.Entry
	err   error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// Wait blocks until the load settles or ctx is done. A cancelled wait does
// not cancel the underlying load; another caller may still be waiting on
// the same Future, and the load runs to completion regardless.
func (f *Future) Wait(ctx context.Context) (*catalog.Entry, error) {
	select {
	case <-f.done:
		return f.entry, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *Future) settle(entry *catalog.Entry, err error) {
	f.entry, f.err = entry, err
	close(f.done)
}
