package mutex

import (
	"sync"
	"sync/atomic"
)

type entry struct {
	mu   sync.Mutex
	refs int32 // dyingMark once the entry is being evicted
}

const dyingMark = int32(-1 << 30)

// KeyedMutex gives mutual exclusion per key without blocking holders of
// other keys. Entries are reference counted and dropped once the last
// holder unlocks.
type KeyedMutex[K comparable] struct {
	table sync.Map // map[K]*entry
}

func (m *KeyedMutex[K]) get(key K) *entry {
	for {
		v, _ := m.table.LoadOrStore(key, &entry{})
		e := v.(*entry)
		if atomic.AddInt32(&e.refs, 1) > 0 {
			return e
		}
		// entry is being evicted; back off and load a fresh one
		atomic.AddInt32(&e.refs, -1)
	}
}

func (m *KeyedMutex[K]) put(key K, e *entry) {
	if atomic.AddInt32(&e.refs, -1) == 0 && atomic.CompareAndSwapInt32(&e.refs, 0, dyingMark) {
		m.table.CompareAndDelete(key, e)
	}
}

// Lock acquires the mutex for key, creating it on first use. The entry
// stays pinned until the matching Unlock.
func (m *KeyedMutex[K]) Lock(key K) {
	m.get(key).mu.Lock()
}

// Unlock releases the mutex for key and unpins the entry.
func (m *KeyedMutex[K]) Unlock(key K) {
	v, ok := m.table.Load(key)
	if !ok {
		panic("mutex: unlock of unheld key")
	}
	e := v.(*entry)
	e.mu.Unlock()
	m.put(key, e)
}
