package storage

import (
	"context"

	"solana-snipe/internal/domain"
)

// TradeFillStore provides access to the append-only trade_fills audit log.
type TradeFillStore interface {
	// Insert adds a new fill. Returns ErrDuplicateKey if fill_id exists.
	Insert(ctx context.Context, f *domain.TradeFill) error

	// GetByID retrieves a fill by its ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, fillID string) (*domain.TradeFill, error)

	// GetByAsset retrieves all fills for an asset, ordered by executed_at ASC.
	GetByAsset(ctx context.Context, assetID string) ([]*domain.TradeFill, error)

	// GetByTimeRange retrieves fills executed within [start, end] (inclusive),
	// ordered by executed_at ASC.
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TradeFill, error)
}

// PositionSnapshotStore persists crash-recovery snapshots of live positions.
// Snapshots are advisory: the in-memory position store stays authoritative
// for the running process.
type PositionSnapshotStore interface {
	// Replace atomically replaces the stored snapshot with the given set.
	Replace(ctx context.Context, positions []*domain.Position) error

	// Load returns the most recent snapshot, ordered by asset_id ASC.
	Load(ctx context.Context) ([]*domain.Position, error)
}
