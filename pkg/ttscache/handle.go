package ttscache

import (
	"context"
	"sync"
)

// operation is the handle for one in-flight generation call. It settles
// exactly once; a call that completes after its timeout already settled the
// handle is ignored. The handle is retained on the cache entry after
// settlement so every waiter observes the same outcome.
type operation struct {
	done chan struct{}
	once sync.Once

	artifact *Artifact
	err      error
}

func newOperation() *operation {
	return &operation{done: make(chan struct{})}
}

// settle records the outcome and wakes all waiters. Only the first caller
// wins; settle reports whether this call recorded the outcome.
func (o *operation) settle(artifact *Artifact, err error) bool {
	won := false
	o.once.Do(func() {
		o.artifact = artifact
		o.err = err
		won = true
		close(o.done)
	})
	return won
}

// wait blocks until the operation settles or ctx is done, then returns the
// recorded outcome.
func (o *operation) wait(ctx context.Context) (*Artifact, error) {
	select {
	case <-o.done:
		return o.artifact, o.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// awaitSettled blocks until the operation settles, swallowing its outcome.
// The only possible error is ctx expiring first.
func (o *operation) awaitSettled(ctx context.Context) error {
	select {
	case <-o.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
