// internal/engine/positions.go
package engine

import (
	"sync"

	"github.com/snipekit/solana-sniper/internal/types"
)

// PositionStore is the in-memory set of open positions, keyed by owner and
// mint. All access goes through the mutex; snapshots returned to callers are
// copies so monitoring can iterate without holding the lock.
type PositionStore struct {
	mu        sync.Mutex
	positions map[string]*types.Position
}

func NewPositionStore() *PositionStore {
	return &PositionStore{positions: make(map[string]*types.Position)}
}

func positionKey(ownerID, mint string) string {
	return ownerID + "/" + mint
}

// Add registers a position. A second buy of the same mint by the same owner
// replaces the previous record.
func (s *PositionStore) Add(pos *types.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[positionKey(pos.OwnerID, pos.Mint)] = pos
}

func (s *PositionStore) Remove(ownerID, mint string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, positionKey(ownerID, mint))
}

func (s *PositionStore) Get(ownerID, mint string) (*types.Position, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pos, ok := s.positions[positionKey(ownerID, mint)]
	if !ok {
		return nil, false
	}
	cp := *pos
	return &cp, true
}

func (s *PositionStore) SetStatus(ownerID, mint string, status types.PositionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if pos, ok := s.positions[positionKey(ownerID, mint)]; ok {
		pos.Status = status
	}
}

// Holding returns true if the owner already has any live position on the mint.
func (s *PositionStore) Holding(ownerID, mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.positions[positionKey(ownerID, mint)]
	return ok
}

// Snapshot returns copies of all positions currently in the given status.
func (s *PositionStore) Snapshot(status types.PositionStatus) []*types.Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Position, 0, len(s.positions))
	for _, pos := range s.positions {
		if pos.Status == status {
			cp := *pos
			out = append(out, &cp)
		}
	}
	return out
}

func (s *PositionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.positions)
}
