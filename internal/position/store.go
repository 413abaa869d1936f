// Package position holds the shared trade/position state. The Store is the
// single authority for "do we already hold this asset / is a trade already
// in flight"; all mutations are serialized under one lock (asset
// cardinality stays small enough that per-key sharding is not worth it).
package position

import (
	"errors"
	"sort"
	"sync"

	"solana-snipe/internal/domain"
)

var (
	// ErrUnknownAsset is returned when no position exists for the asset.
	ErrUnknownAsset = errors.New("no position for asset")

	// ErrBadState is returned when a transition is attempted from a state
	// that does not allow it.
	ErrBadState = errors.New("position in unexpected state")
)

// Store tracks at most one live position per asset.
type Store struct {
	mu        sync.RWMutex
	positions map[string]*domain.Position
}

// NewStore creates an empty position store.
func NewStore() *Store {
	return &Store{
		positions: make(map[string]*domain.Position),
	}
}

// TryOpen atomically checks that no live position exists for the asset and,
// if so, creates one in Pending state and returns true. Returns false
// without mutation when a Pending/Open/Closing position already exists.
// This is the enforcement point for the one-position-per-asset invariant.
func (s *Store) TryOpen(assetID string, size float64) bool {
	if assetID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if p, exists := s.positions[assetID]; exists && p.State.Live() {
		return false
	}

	s.positions[assetID] = &domain.Position{
		AssetID: assetID,
		State:   domain.PositionPending,
		Size:    size,
	}
	return true
}

// ConfirmOpen transitions Pending → Open with the fill price from the buy
// confirmation.
func (s *Store) ConfirmOpen(assetID string, entryPrice float64, entryTime int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.positions[assetID]
	if !exists {
		return ErrUnknownAsset
	}
	if p.State != domain.PositionPending {
		return ErrBadState
	}

	p.State = domain.PositionOpen
	p.EntryPrice = entryPrice
	p.EntryTime = entryTime
	return nil
}

// MarkClosing transitions Open → Closing. Returns ErrBadState when the
// position is not Open, so a sell is never dispatched twice.
func (s *Store) MarkClosing(assetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.positions[assetID]
	if !exists {
		return ErrUnknownAsset
	}
	if p.State != domain.PositionOpen {
		return ErrBadState
	}

	p.State = domain.PositionClosing
	return nil
}

// ConfirmClosed removes the Closing position and returns its final value.
func (s *Store) ConfirmClosed(assetID string) (domain.Position, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.positions[assetID]
	if !exists {
		return domain.Position{}, ErrUnknownAsset
	}
	if p.State != domain.PositionClosing {
		return domain.Position{}, ErrBadState
	}

	final := *p
	delete(s.positions, assetID)
	return final, nil
}

// Revert rolls a position back after a failed execution. Reverting to None
// removes the entry entirely (failed buy); reverting to Open restores a
// Closing position (failed sell).
func (s *Store) Revert(assetID string, to domain.PositionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, exists := s.positions[assetID]
	if !exists {
		return ErrUnknownAsset
	}

	switch to {
	case domain.PositionNone:
		delete(s.positions, assetID)
		return nil
	case domain.PositionOpen:
		if p.State != domain.PositionClosing {
			return ErrBadState
		}
		p.State = domain.PositionOpen
		return nil
	default:
		return ErrBadState
	}
}

// Get returns a copy of the position for the asset.
func (s *Store) Get(assetID string) (domain.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.positions[assetID]
	if !exists {
		return domain.Position{}, false
	}
	return *p, true
}

// Holds reports whether a live position exists for the asset. Used to
// suppress duplicate buy signals before they are queued; a briefly stale
// answer is acceptable, TryOpen remains the authority.
func (s *Store) Holds(assetID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.positions[assetID]
	return exists && p.State.Live()
}

// Live returns copies of all live positions, ordered by asset id.
func (s *Store) Live() []domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Position, 0, len(s.positions))
	for _, p := range s.positions {
		if p.State.Live() {
			result = append(result, *p)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].AssetID < result[j].AssetID
	})
	return result
}

// Restore loads positions from a crash-recovery snapshot. Only Open
// positions are restored; Pending and Closing entries from a previous run
// are unresolvable without their in-flight transaction and are skipped.
func (s *Store) Restore(positions []domain.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range positions {
		if p.State != domain.PositionOpen {
			continue
		}
		restored := p
		s.positions[p.AssetID] = &restored
	}
}
