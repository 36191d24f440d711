// Package keylock provides per-key mutual exclusion for in-process critical sections.
package keylock

import (
	"context"
	"sync"
)

// Registry hands out one lock per key. Locks are created on first use and never evicted.
type Registry struct {
	mu    sync.Mutex
	locks map[string]chan struct{}
}

// New constructs an empty registry.
func New() *Registry {
	return &Registry{locks: make(map[string]chan struct{})}
}

// Acquire blocks until the lock for key is held or ctx is done.
// The returned release func must be called exactly once.
func (r *Registry) Acquire(ctx context.Context, key string) (func(), error) {
	lock := r.lockFor(key)
	select {
	case lock <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() {
		once.Do(func() { <-lock })
	}, nil
}

// Len reports how many distinct keys have been locked so far.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.locks)
}

func (r *Registry) lockFor(key string) chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[key]
	if !ok {
		lock = make(chan struct{}, 1)
		r.locks[key] = lock
	}
	return lock
}
