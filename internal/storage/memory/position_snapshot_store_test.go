package memory

import (
	"context"
	"errors"
	"testing"

	"solana-snipe/internal/domain"
	"solana-snipe/internal/storage"
)

func TestPositionSnapshotStore_ReplaceAndLoad(t *testing.T) {
	store := NewPositionSnapshotStore()
	ctx := context.Background()

	err := store.Replace(ctx, []*domain.Position{
		{AssetID: "b", State: domain.PositionOpen, EntryPrice: 2},
		{AssetID: "a", State: domain.PositionOpen, EntryPrice: 1},
	})
	if err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded) != 2 {
		t.Fatalf("Load = %d positions, want 2", len(loaded))
	}
	if loaded[0].AssetID != "a" || loaded[1].AssetID != "b" {
		t.Errorf("Load order: %s, %s", loaded[0].AssetID, loaded[1].AssetID)
	}

	// Replace fully supersedes the previous snapshot.
	if err := store.Replace(ctx, []*domain.Position{
		{AssetID: "c", State: domain.PositionOpen},
	}); err != nil {
		t.Fatalf("second Replace failed: %v", err)
	}
	loaded, _ = store.Load(ctx)
	if len(loaded) != 1 || loaded[0].AssetID != "c" {
		t.Errorf("Load after replace = %+v", loaded)
	}

	// Empty replace clears the snapshot.
	if err := store.Replace(ctx, nil); err != nil {
		t.Fatalf("empty Replace failed: %v", err)
	}
	loaded, _ = store.Load(ctx)
	if len(loaded) != 0 {
		t.Errorf("Load after clear = %d positions, want 0", len(loaded))
	}
}

func TestPositionSnapshotStore_InvalidInput(t *testing.T) {
	store := NewPositionSnapshotStore()
	ctx := context.Background()

	err := store.Replace(ctx, []*domain.Position{{State: domain.PositionOpen}})
	if !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("Replace with empty asset_id = %v, want ErrInvalidInput", err)
	}
}
