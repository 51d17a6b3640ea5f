// Package lock provides the run-level mutual exclusion backends.
package lock

import (
	"context"
	"sync/atomic"

	"NewsIngestor/internal/ports"
)

// MemoryLock guards runs inside a single process.
type MemoryLock struct {
	held atomic.Bool
}

var _ ports.RunLock = (*MemoryLock)(nil)

// NewMemoryLock returns a free lock.
func NewMemoryLock() *MemoryLock {
	return &MemoryLock{}
}

// TryAcquire takes the flag if it is free. The returned release is idempotent.
func (l *MemoryLock) TryAcquire(context.Context) (func(), bool, error) {
	if !l.held.CompareAndSwap(false, true) {
		return nil, false, nil
	}
	var once atomic.Bool
	return func() {
		if once.CompareAndSwap(false, true) {
			l.held.Store(false)
		}
	}, true, nil
}
