package indexer

import "sync/atomic"

// IndexLock guards an index build without blocking: a second build
// started while one is running fails fast instead of queueing.
type IndexLock struct {
	state atomic.Int32 // 0 = free, 1 = building
}

// TryAcquire claims the lock, returning false if a build is already running
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}

// Held reports whether a build is in progress
func (l *IndexLock) Held() bool {
	return l.state.Load() == 1
}
