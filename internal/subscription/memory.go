package subscription

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu     sync.RWMutex
	states map[string]State
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (m *MemoryStore) Get(_ context.Context, userID string) (State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if st, ok := m.states[userID]; ok {
		return st, nil
	}
	return FreeState, nil
}

func (m *MemoryStore) Set(_ context.Context, userID string, st State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[userID] = st
	return nil
}

// MemoryCounter is an in-process Counter.
type MemoryCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

func (m *MemoryCounter) Get(_ context.Context, userID, feature, period string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[usageKey(userID, feature, period)], nil
}

func (m *MemoryCounter) Incr(_ context.Context, userID, feature, period string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := usageKey(userID, feature, period)
	m.counts[k]++
	return m.counts[k], nil
}
