package ratelimit

import (
	"context"
	"sync"
)

// MemoryCounter keeps counts in process memory.
type MemoryCounter struct {
	mu     sync.RWMutex
	counts map[string]int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{counts: make(map[string]int)}
}

func (m *MemoryCounter) Count(_ context.Context, key string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counts[key], nil
}

func (m *MemoryCounter) SetCount(_ context.Context, key string, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[key] = n
	return nil
}

func (m *MemoryCounter) PruneBefore(_ context.Context, cutoff string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k := range m.counts {
		if k < cutoff {
			delete(m.counts, k)
			removed++
		}
	}
	return removed, nil
}
