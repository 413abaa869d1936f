package clickhouse

import (
	"context"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"solana-snipe/internal/domain"
	"solana-snipe/internal/storage"
)

// TradeFillStore implements storage.TradeFillStore using ClickHouse.
// ClickHouse MergeTree does not enforce uniqueness at insert time, so
// append-only semantics are kept with an explicit existence check before
// insert; late duplicates are collapsed by ReplacingMergeTree.
type TradeFillStore struct {
	conn *Conn
}

// NewTradeFillStore creates a new TradeFillStore.
func NewTradeFillStore(conn *Conn) *TradeFillStore {
	return &TradeFillStore{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeFillStore = (*TradeFillStore)(nil)

// Insert adds a new fill. Returns ErrDuplicateKey if fill_id exists.
func (s *TradeFillStore) Insert(ctx context.Context, f *domain.TradeFill) error {
	if f == nil || f.FillID == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, f.FillID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	query := `
		INSERT INTO trade_fills (
			fill_id, asset_id, action, size, fill_price, tx_signature, executed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err = s.conn.Exec(ctx, query,
		f.FillID,
		f.AssetID,
		string(f.Action),
		f.Size,
		f.FillPrice,
		f.TxSignature,
		f.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("insert trade fill: %w", err)
	}
	return nil
}

// GetByID retrieves a fill by its ID. Returns ErrNotFound if not exists.
func (s *TradeFillStore) GetByID(ctx context.Context, fillID string) (*domain.TradeFill, error) {
	query := `
		SELECT fill_id, asset_id, action, size, fill_price, tx_signature, executed_at
		FROM trade_fills FINAL
		WHERE fill_id = ?
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, fillID)
	if err != nil {
		return nil, fmt.Errorf("get fill by id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, storage.ErrNotFound
	}

	f, err := scanFill(rows)
	if err != nil {
		return nil, fmt.Errorf("scan fill: %w", err)
	}
	return f, nil
}

// GetByAsset retrieves all fills for an asset, ordered by executed_at ASC.
func (s *TradeFillStore) GetByAsset(ctx context.Context, assetID string) ([]*domain.TradeFill, error) {
	query := `
		SELECT fill_id, asset_id, action, size, fill_price, tx_signature, executed_at
		FROM trade_fills FINAL
		WHERE asset_id = ?
		ORDER BY executed_at ASC, fill_id ASC
	`

	rows, err := s.conn.Query(ctx, query, assetID)
	if err != nil {
		return nil, fmt.Errorf("get fills by asset: %w", err)
	}
	defer rows.Close()

	return collectFills(rows)
}

// GetByTimeRange retrieves fills executed within [start, end] (inclusive).
func (s *TradeFillStore) GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.TradeFill, error) {
	query := `
		SELECT fill_id, asset_id, action, size, fill_price, tx_signature, executed_at
		FROM trade_fills FINAL
		WHERE executed_at >= ? AND executed_at <= ?
		ORDER BY executed_at ASC, fill_id ASC
	`

	rows, err := s.conn.Query(ctx, query, start, end)
	if err != nil {
		return nil, fmt.Errorf("get fills by time range: %w", err)
	}
	defer rows.Close()

	return collectFills(rows)
}

// exists checks whether a fill_id is already stored.
func (s *TradeFillStore) exists(ctx context.Context, fillID string) (bool, error) {
	query := `SELECT count() FROM trade_fills WHERE fill_id = ?`

	var count uint64
	if err := s.conn.QueryRow(ctx, query, fillID).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanFill scans the current row into a TradeFill.
func scanFill(row driver.Rows) (*domain.TradeFill, error) {
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

// collectFills scans all remaining rows.
func collectFills(rows driver.Rows) ([]*domain.TradeFill, error) {
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
