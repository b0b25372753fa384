package locks

import (
	"context"
	"sync"

	"github.com/emirpasic/gods/queues/linkedlistqueue"
)

// Lock is a mutual exclusion lock whose waiters are served in the
// order they arrived. Unlike sync.Mutex, waiting for a Lock can be
// abandoned by cancelling the context passed to Lock.
//
// The zero value is not usable; create locks with New or obtain
// them from a Table.
type Lock struct {
	mu      sync.Mutex
	held    bool
	waiters *linkedlistqueue.Queue
}

type waiter struct {
	ready     chan struct{}
	granted   bool
	abandoned bool
}

// New returns an unlocked Lock
func New() *Lock {
	return &Lock{waiters: linkedlistqueue.New()}
}

// Lock blocks until the lock is acquired or ctx is done. If ctx is
// done first Lock returns ctx.Err() and the caller does not hold the
// lock.
func (l *Lock) Lock(ctx context.Context) error {
	l.mu.Lock()

	if !l.held {
		l.held = true
		l.mu.Unlock()

		return nil
	}

	w := &waiter{ready: make(chan struct{})}
	l.waiters.Enqueue(w)
	l.mu.Unlock()

	select {
	case <-w.ready:
		return nil
	case <-ctx.Done():
	}

	l.mu.Lock()

	if w.granted {
		// Ownership was handed over while we were giving up.
		l.mu.Unlock()
		l.Unlock()

		return ctx.Err()
	}

	w.abandoned = true
	l.mu.Unlock()

	return ctx.Err()
}

// TryLock acquires the lock only if nobody holds it.
func (l *Lock) TryLock() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held {
		return false
	}

	l.held = true

	return true
}

// Unlock releases the lock, handing it directly to the longest
// waiting caller if there is one. It panics if the lock is not held.
func (l *Lock) Unlock() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.held {
		panic("locks: unlock of unlocked lock")
	}

	for !l.waiters.Empty() {
		next, _ := l.waiters.Dequeue()
		w := next.(*waiter)

		if w.abandoned {
			continue
		}

		w.granted = true
		close(w.ready)

		return
	}

	l.held = false
}

// Locked reports whether somebody currently holds the lock
func (l *Lock) Locked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.held
}
