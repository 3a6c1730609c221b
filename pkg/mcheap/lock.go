package mcheap

import "sync"

// Locker guards Alloc/Free/AllocSizeOf/StatusOf against concurrent mutation
// of the free-list registry and bitfields. The source's heap_lock/
// heap_unlock are no-ops (single-threaded by construction); WithLocker lets
// a caller opt into real mutual exclusion for a heap shared across
// goroutines.
type Locker interface {
	Lock()
	Unlock()
}

type noopLocker struct{}

func (noopLocker) Lock()   {}
func (noopLocker) Unlock() {}

// MutexLocker adapts a *sync.Mutex to Locker.
type MutexLocker struct {
	mu sync.Mutex
}

func (l *MutexLocker) Lock()   { l.mu.Lock() }
func (l *MutexLocker) Unlock() { l.mu.Unlock() }

// NewMutexLocker returns a Locker backed by a fresh sync.Mutex, for heaps
// that will be driven from more than one goroutine.
func NewMutexLocker() Locker { return &MutexLocker{} }
