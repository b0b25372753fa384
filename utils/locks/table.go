package locks

import (
	"runtime"
	"sync"
	"weak"
)

// Table hands out one Lock per key. The table only holds weak
// references: a lock stays in the table while some caller references
// it and is pruned once it has been garbage collected. A later Get for
// the same key then creates a fresh lock.
type Table struct {
	mu    sync.Mutex
	locks map[string]weak.Pointer[Lock]
}

type tableEntry struct {
	key string
	ptr weak.Pointer[Lock]
}

// NewTable returns an empty lock table
func NewTable() *Table {
	return &Table{locks: map[string]weak.Pointer[Lock]{}}
}

// Get returns the lock for key, creating it if necessary
func (table *Table) Get(key string) *Lock {
	table.mu.Lock()
	defer table.mu.Unlock()

	if ptr, ok := table.locks[key]; ok {
		if lock := ptr.Value(); lock != nil {
			return lock
		}
	}

	lock := New()
	ptr := weak.Make(lock)
	table.locks[key] = ptr
	runtime.AddCleanup(lock, table.prune, tableEntry{key: key, ptr: ptr})

	return lock
}

// Len returns the number of keys that currently have a live lock
func (table *Table) Len() int {
	table.mu.Lock()
	defer table.mu.Unlock()

	n := 0

	for _, ptr := range table.locks {
		if ptr.Value() != nil {
			n++
		}
	}

	return n
}

func (table *Table) prune(entry tableEntry) {
	table.mu.Lock()
	defer table.mu.Unlock()

	// A newer lock may have replaced the collected one already.
	if current, ok := table.locks[entry.key]; ok && current == entry.ptr {
		delete(table.locks, entry.key)
	}
}
