package indexer

import (
	"sync"
	"sync/atomic"
)

// ingestLock provides non-blocking lock semantics using atomic operations.
type ingestLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// TryAcquire attempts to acquire the lock without blocking.
// Returns true if the lock was successfully acquired, false otherwise.
func (l *ingestLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release releases the lock.
// Must only be called by the goroutine that successfully acquired the lock.
func (l *ingestLock) Release() {
	l.state.Store(0)
}

// lockRegistry hands out one lock per repository name so concurrent
// ingests of the same repository fail fast while different
// repositories proceed independently.
type lockRegistry struct {
	mu    sync.Mutex
	locks map[string]*ingestLock
}

func newLockRegistry() *lockRegistry {
	return &lockRegistry{locks: make(map[string]*ingestLock)}
}

func (r *lockRegistry) lockFor(name string) *ingestLock {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[name]
	if !ok {
		l = &ingestLock{}
		r.locks[name] = l
	}
	return l
}
