package indexer

import "sync/atomic"

// DocumentLock is the per-document exclusion token for vectorization runs.
// Acquisition never blocks so a second run fails fast instead of queuing.
type DocumentLock struct {
	state atomic.Int32 // 0 = free, 1 = held
}

// TryAcquire takes the lock if it is free and reports whether it did
func (l *DocumentLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock.
// Must only be called by the holder.
func (l *DocumentLock) Release() {
	l.state.Store(0)
}

// Held reports whether a run currently owns the lock
func (l *DocumentLock) Held() bool {
	return l.state.Load() == 1
}
