package postgres

import (
	"context"
	"fmt"

	"solana-snipe/internal/domain"
	"solana-snipe/internal/storage"
)

// PositionSnapshotStore implements storage.PositionSnapshotStore using
// PostgreSQL. The snapshot is replaced wholesale inside a transaction so a
// crash mid-write never leaves a mixed snapshot.
type PositionSnapshotStore struct {
	pool *Pool
}

// NewPositionSnapshotStore creates a new PositionSnapshotStore.
func NewPositionSnapshotStore(pool *Pool) *PositionSnapshotStore {
	return &PositionSnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionSnapshotStore = (*PositionSnapshotStore)(nil)

// Replace atomically replaces the stored snapshot with the given set.
func (s *PositionSnapshotStore) Replace(ctx context.Context, positions []*domain.Position) error {
	for _, p := range positions {
		if p == nil || p.AssetID == "" {
			return storage.ErrInvalidInput
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM position_snapshots`); err != nil {
		return fmt.Errorf("clear position snapshots: %w", err)
	}

	query := `
		INSERT INTO position_snapshots (
			asset_id, state, entry_price, entry_time, size
		) VALUES ($1, $2, $3, $4, $5)
	`
	for _, p := range positions {
		if _, err := tx.Exec(ctx, query,
			p.AssetID,
			string(p.State),
			p.EntryPrice,
			p.EntryTime,
			p.Size,
		); err != nil {
			return fmt.Errorf("insert position snapshot %s: %w", p.AssetID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit snapshot tx: %w", err)
	}
	return nil
}

// Load returns the most recent snapshot, ordered by asset_id ASC.
func (s *PositionSnapshotStore) Load(ctx context.Context) ([]*domain.Position, error) {
	query := `
		SELECT asset_id, state, entry_price, entry_time, size
		FROM position_snapshots
		ORDER BY asset_id ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("load position snapshots: %w", err)
	}
	defer rows.Close()

	var result []*domain.Position
	for rows.Next() {
		var p domain.Position
		var state string
		if err := rows.Scan(&p.AssetID, &state, &p.EntryPrice, &p.EntryTime, &p.Size); err != nil {
			return nil, fmt.Errorf("scan position snapshot: %w", err)
		}
		p.State = domain.PositionState(state)
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate position snapshots: %w", err)
	}
	return result, nil
}
