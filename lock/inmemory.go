package lock

import (
	"context"
	"sync"
)

// lockEntry is a key's semaphore and the number of callers holding or
// waiting for it
type lockEntry struct {
	sem  chan struct{}
	refs int
}

// InMemoryLocker implements the Locker interface within a single process.
// Entries exist only while a key is held or waited for.
type InMemoryLocker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

// NewInMemoryLocker creates an instance of InMemoryLocker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{entries: make(map[string]*lockEntry)}
}

// acquire returns the entry for a key, creating it if needed, and counts the
// caller in
func (l *InMemoryLocker) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, exists := l.entries[key]
	if !exists {
		e = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = e
	}
	e.refs++
	return e
}

// release counts the caller out and drops the entry once nobody uses it
func (l *InMemoryLocker) release(key string, e *lockEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(l.entries, key)
	}
}

// Lock takes the key's semaphore
func (l *InMemoryLocker) Lock(ctx context.Context, key string) (func(), error) {
	e := l.acquire(key)
	select {
	case e.sem <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.sem
				l.release(key, e)
			})
		}, nil
	case <-ctx.Done():
		l.release(key, e)
		return nil, ctx.Err()
	}
}
