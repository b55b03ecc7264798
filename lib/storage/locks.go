package storage

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// --------------------------------------------------------------------------
// Record Lock Table
// --------------------------------------------------------------------------

// DefaultLockCount is the default size of the record lock table. Power of
// two so digest sharding reduces to a mask.
const DefaultLockCount = 1 << 12

// LockTable is the fixed-size table of record-level locks, sharded by
// digest. Every create/open -> mutate -> write/close cycle must hold the
// record's lock for its full scope; operations on the same record are
// totally ordered by lock acquisition.
type LockTable struct {
	locks   []sync.Mutex
	mask    uint64
	drained atomic.Bool
}

// NewLockTable creates a lock table with n locks, rounded up to the next
// power of two.
func NewLockTable(n int) *LockTable {
	size := 1
	for size < n {
		size <<= 1
	}

	return &LockTable{
		locks: make([]sync.Mutex, size),
		mask:  uint64(size - 1),
	}
}

// N returns the number of locks in the table.
func (t *LockTable) N() int {
	return len(t.locks)
}

// Get returns the lock guarding a digest. The digest is already a hash, so
// its leading bytes shard directly.
func (t *LockTable) Get(d *Digest) *sync.Mutex {
	idx := binary.LittleEndian.Uint64(d[:8]) & t.mask
	return &t.locks[idx]
}

// DrainAll acquires every lock in index order without releasing any. Once
// it returns, no write can be mid-flight: a write that had not yet taken
// its lock is blocked, and one that already released its lock has fully
// completed. This is a wait, not a poll - it blocks until the slowest
// in-flight writer finishes, with no timeout-and-abort path.
//
// The locks are intentionally never released. This is a one-way barrier;
// process exit follows.
func (t *LockTable) DrainAll() {
	for i := range t.locks {
		t.locks[i].Lock()
	}
	t.drained.Store(true)
}

// Drained reports whether the one-way shutdown barrier has completed.
func (t *LockTable) Drained() bool {
	return t.drained.Load()
}
