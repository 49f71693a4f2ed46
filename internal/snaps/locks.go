package snaps

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// OriginLocks hands out one mutual-exclusion lock per origin. Locks are
// created on first use and never removed, so memory grows with the number of
// distinct origins seen by the process. Waiters are admitted in FIFO order.
type OriginLocks struct {
	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// NewOriginLocks creates an empty lock table.
func NewOriginLocks() *OriginLocks {
	return &OriginLocks{locks: make(map[string]*semaphore.Weighted)}
}

func (l *OriginLocks) get(origin string) *semaphore.Weighted {
	l.mu.Lock()
	defer l.mu.Unlock()

	sem, ok := l.locks[origin]
	if !ok {
		sem = semaphore.NewWeighted(1)
		l.locks[origin] = sem
	}
	return sem
}

// Acquire blocks until the origin's lock is held. Cancelling ctx abandons the
// wait only; a held lock is released solely by calling release.
func (l *OriginLocks) Acquire(ctx context.Context, origin string) (release func(), err error) {
	sem := l.get(origin)
	if err := sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { sem.Release(1) }) }, nil
}

// Len returns the number of origins with a lock.
func (l *OriginLocks) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
