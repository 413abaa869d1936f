package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-snipe/internal/domain"
	"solana-snipe/internal/storage"
)

// TradeFillStore implements storage.TradeFillStore using PostgreSQL.
type TradeFillStore struct {
	pool *Pool
}

// NewTradeFillStore creates a new TradeFillStore.
func NewTradeFillStore(pool *Pool) *TradeFillStore {
	return &TradeFillStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeFillStore = (*TradeFillStore)(nil)

// Insert adds a new fill. Returns ErrDuplicateKey if fill_id exists.
func (s *TradeFillStore) Insert(ctx context.Context, f *domain.TradeFill) error {
	if f == nil || f.FillID == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trade_fills (
			fill_id, asset_id, action, size, fill_price, tx_signature, executed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := s.pool.Exec(ctx, query,
		f.FillID,
		f.AssetID,
		string(f.Action),
		f.Size,
		f.FillPrice,
		f.TxSignature,
		f.ExecutedAt,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert trade fill: %w", err)
	}
	return nil
}

// GetByID retrieves a fill by its ID. Returns ErrNotFound if not exists.
func (s *TradeFillStore) GetByID(ctx context.Context, fillID string) (*domain.TradeFill, error) {
	query := `
		SELECT fill_id, asset_id, action, size, fill_price, tx_signature, executed_at
		FROM trade_fills
		WHERE fill_id = $1
	`

	row := s.pool.QueryRow(ctx, query, fillID)
	f, err := scanFill(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get fill by id: %w", err)
	}
	return f, nil
}

// GetByAsset retrieves all fills for an asset, ordered by executed_at ASC.
func (s *TradeFillStore) GetByAsset(ctx context.Context, assetID string) ([]*domain.TradeFill, error) {
	query := `
		SELECT fill_id, asset_id, action, size, fill_price, tx_signature, executed_at
		FROM trade_fills
		WHERE asset_id = $1
		ORDER BY executed_at ASC, fill_id ASC
	`

	rows, err := s.pool.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("get fills by asset: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

// GetByTimeRange retrieves fills executed within [start, end] (inclusive).
func (s *TradeFillStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TradeFill, error) {
	query := `
		SELECT fill_id, asset_id, action, size, fill_price, tx_signature, executed_at
		FROM trade_fills
		WHERE executed_at >= $1 AND executed_at <= $2
		ORDER BY executed_at ASC, fill_id ASC
	`

	rows, err := s.pool.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get fills by time range: %w", err)
	}
	defer rows.Close()

	return scanFills(rows)
}

// scanFill scans a single row into a TradeFill.
func scanFill(row pgx.Row) (*domain.TradeFill, error) {
	var f domain.TradeFill
	var action string

	err := row.Scan(
		&f.FillID,
		&f.AssetID,
		&action,
		&f.Size,
		&f.FillPrice,
		&f.TxSignature,
		&f.ExecutedAt,
	)
	if err != nil {
		return nil, err
	}

	f.Action = domain.Action(action)
	return &f, nil
}

// scanFills scans all rows into TradeFills.
func scanFills(rows pgx.Rows) ([]*domain.TradeFill, error) {
	var result []*domain.TradeFill
	for rows.Next() {
		f, err := scanFill(rows)
		if err != nil {
			return nil, fmt.Errorf("scan fill row: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate fill rows: %w", err)
	}
	return result, nil
}
