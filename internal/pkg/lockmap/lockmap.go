// Package lockmap provides per-key mutual exclusion. The lock domain is one
// auction: bid placement and the expiry sweep serialize on the same key, and
// operations on different auctions never contend.
package lockmap

import (
	"sync"

	"github.com/google/uuid"
)

type Map struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func New() *Map {
	return &Map{locks: make(map[uuid.UUID]*sync.Mutex)}
}

// Lock acquires the mutex for key, creating it on first use, and returns the
// unlock function. Entries are not reclaimed; the set of live auctions is
// small and bounded.
func (m *Map) Lock(key uuid.UUID) func() {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &sync.Mutex{}
		m.locks[key] = l
	}
	m.mu.Unlock()

	l.Lock()
	return l.Unlock
}
