package memory

import (
	"context"
	"sort"
	"sync"

	"solana-snipe/internal/domain"
	"solana-snipe/internal/storage"
)

// TradeFillStore is an in-memory implementation of storage.TradeFillStore.
type TradeFillStore struct {
	mu   sync.RWMutex
	data map[string]*domain.TradeFill // keyed by fill_id
}

// NewTradeFillStore creates a new in-memory trade fill store.
func NewTradeFillStore() *TradeFillStore {
	return &TradeFillStore{
		data: make(map[string]*domain.TradeFill),
	}
}

// Insert adds a new fill. Returns ErrDuplicateKey if fill_id exists.
func (s *TradeFillStore) Insert(_ context.Context, f *domain.TradeFill) error {
	if f == nil || f.FillID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[f.FillID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	fillCopy := *f
	s.data[f.FillID] = &fillCopy
	return nil
}

// GetByID retrieves a fill by its ID. Returns ErrNotFound if not exists.
func (s *TradeFillStore) GetByID(_ context.Context, fillID string) (*domain.TradeFill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.data[fillID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	fillCopy := *f
	return &fillCopy, nil
}

// GetByAsset retrieves all fills for an asset, ordered by executed_at ASC.
func (s *TradeFillStore) GetByAsset(_ context.Context, assetID string) ([]*domain.TradeFill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeFill
	for _, f := range s.data {
		if f.AssetID == assetID {
			fillCopy := *f
			result = append(result, &fillCopy)
		}
	}

	sortFills(result)
	return result, nil
}

// GetByTimeRange retrieves fills executed within [start, end] (inclusive).
func (s *TradeFillStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.TradeFill, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeFill
	for _, f := range s.data {
		if f.ExecutedAt >= start && f.ExecutedAt <= end {
			fillCopy := *f
			result = append(result, &fillCopy)
		}
	}

	sortFills(result)
	return result, nil
}

// sortFills orders fills by executed_at ASC, fill_id ASC for determinism.
func sortFills(fills []*domain.TradeFill) {
	sort.Slice(fills, func(i, j int) bool {
		if fills[i].ExecutedAt != fills[j].ExecutedAt {
			return fills[i].ExecutedAt < fills[j].ExecutedAt
		}
		return fills[i].FillID < fills[j].FillID
	})
}

// Verify interface compliance at compile time.
var _ storage.TradeFillStore = (*TradeFillStore)(nil)
