// internal/scanner/memory.go
package scanner

import (
	"context"
	"sync"
)

// MemorySeen is a process-local SeenStore for runs without a database.
// Dedup resets on restart, which only means already-traded mints get
// re-scored by the entry gate, not re-bought.
type MemorySeen struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewMemorySeen() *MemorySeen {
	return &MemorySeen{seen: make(map[string]struct{})}
}

func (m *MemorySeen) IsPairSeen(_ context.Context, pairAddress string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.seen[pairAddress]
	return ok, nil
}

func (m *MemorySeen) MarkPairSeen(_ context.Context, pairAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen[pairAddress] = struct{}{}
	return nil
}
