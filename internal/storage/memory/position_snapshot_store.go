package memory

import (
	"context"
	"sort"
	"sync"

	"solana-snipe/internal/domain"
	"solana-snipe/internal/storage"
)

// PositionSnapshotStore is an in-memory implementation of
// storage.PositionSnapshotStore. Useful for tests and dry runs; it does not
// survive the process, which is acceptable since snapshots are optional.
type PositionSnapshotStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Position // keyed by asset_id
}

// NewPositionSnapshotStore creates a new in-memory snapshot store.
func NewPositionSnapshotStore() *PositionSnapshotStore {
	return &PositionSnapshotStore{
		data: make(map[string]*domain.Position),
	}
}

// Replace atomically replaces the stored snapshot with the given set.
func (s *PositionSnapshotStore) Replace(_ context.Context, positions []*domain.Position) error {
	for _, p := range positions {
		if p == nil || p.AssetID == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = make(map[string]*domain.Position, len(positions))
	for _, p := range positions {
		posCopy := *p
		s.data[p.AssetID] = &posCopy
	}
	return nil
}

// Load returns the most recent snapshot, ordered by asset_id ASC.
func (s *PositionSnapshotStore) Load(_ context.Context) ([]*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Position, 0, len(s.data))
	for _, p := range s.data {
		posCopy := *p
		result = append(result, &posCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].AssetID < result[j].AssetID
	})
	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.PositionSnapshotStore = (*PositionSnapshotStore)(nil)
