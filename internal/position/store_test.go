package position

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"solana-snipe/internal/domain"
)

func TestLifecycle(t *testing.T) {
	s := NewStore()

	if !s.TryOpen("X", 0.5) {
		t.Fatal("TryOpen on empty store should succeed")
	}

	p, ok := s.Get("X")
	if !ok || p.State != domain.PositionPending {
		t.Fatalf("after TryOpen: %+v ok=%v", p, ok)
	}
	if p.Size != 0.5 {
		t.Errorf("Size = %v, want 0.5", p.Size)
	}

	if err := s.ConfirmOpen("X", 1.25, 1704067200000); err != nil {
		t.Fatalf("ConfirmOpen failed: %v", err)
	}
	p, _ = s.Get("X")
	if p.State != domain.PositionOpen || p.EntryPrice != 1.25 {
		t.Fatalf("after ConfirmOpen: %+v", p)
	}

	if err := s.MarkClosing("X"); err != nil {
		t.Fatalf("MarkClosing failed: %v", err)
	}

	final, err := s.ConfirmClosed("X")
	if err != nil {
		t.Fatalf("ConfirmClosed failed: %v", err)
	}
	if final.EntryPrice != 1.25 {
		t.Errorf("final EntryPrice = %v", final.EntryPrice)
	}

	if _, ok := s.Get("X"); ok {
		t.Error("position should be removed after ConfirmClosed")
	}
	if s.Holds("X") {
		t.Error("Holds should be false after close")
	}
}

func TestTryOpen_RejectsLiveStates(t *testing.T) {
	s := NewStore()

	if !s.TryOpen("X", 1) {
		t.Fatal("first TryOpen should succeed")
	}
	if s.TryOpen("X", 1) {
		t.Error("TryOpen on Pending should fail")
	}

	if err := s.ConfirmOpen("X", 2, 1000); err != nil {
		t.Fatal(err)
	}
	if s.TryOpen("X", 1) {
		t.Error("TryOpen on Open should fail")
	}

	if err := s.MarkClosing("X"); err != nil {
		t.Fatal(err)
	}
	if s.TryOpen("X", 1) {
		t.Error("TryOpen on Closing should fail")
	}

	if _, err := s.ConfirmClosed("X"); err != nil {
		t.Fatal(err)
	}
	if !s.TryOpen("X", 1) {
		t.Error("TryOpen after full close should succeed again")
	}
}

func TestRevert(t *testing.T) {
	s := NewStore()

	// Failed buy: Pending reverts to None, entry removed entirely.
	s.TryOpen("Y", 1)
	if err := s.Revert("Y", domain.PositionNone); err != nil {
		t.Fatalf("Revert to None failed: %v", err)
	}
	if _, ok := s.Get("Y"); ok {
		t.Error("position should be gone after revert to None")
	}

	// Failed sell: Closing reverts to Open.
	s.TryOpen("Z", 1)
	s.ConfirmOpen("Z", 3, 1000)
	s.MarkClosing("Z")
	if err := s.Revert("Z", domain.PositionOpen); err != nil {
		t.Fatalf("Revert to Open failed: %v", err)
	}
	p, _ := s.Get("Z")
	if p.State != domain.PositionOpen {
		t.Errorf("state after revert = %s, want OPEN", p.State)
	}
	if p.EntryPrice != 3 {
		t.Errorf("entry price lost in revert: %v", p.EntryPrice)
	}

	// Revert to Open from non-Closing is a bug in the caller.
	if err := s.Revert("Z", domain.PositionOpen); !errors.Is(err, ErrBadState) {
		t.Errorf("Revert Open->Open = %v, want ErrBadState", err)
	}

	if err := s.Revert("missing", domain.PositionNone); !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("Revert on missing = %v, want ErrUnknownAsset", err)
	}
}

func TestMarkClosing_RequiresOpen(t *testing.T) {
	s := NewStore()

	if err := s.MarkClosing("X"); !errors.Is(err, ErrUnknownAsset) {
		t.Errorf("MarkClosing missing = %v, want ErrUnknownAsset", err)
	}

	s.TryOpen("X", 1)
	if err := s.MarkClosing("X"); !errors.Is(err, ErrBadState) {
		t.Errorf("MarkClosing on Pending = %v, want ErrBadState", err)
	}

	s.ConfirmOpen("X", 1, 1)
	if err := s.MarkClosing("X"); err != nil {
		t.Errorf("MarkClosing on Open = %v", err)
	}
	// Second MarkClosing must fail: sell already in flight.
	if err := s.MarkClosing("X"); !errors.Is(err, ErrBadState) {
		t.Errorf("second MarkClosing = %v, want ErrBadState", err)
	}
}

// Concurrent TryOpen stress: at most one caller may win per asset.
func TestTryOpen_ConcurrentSingleWinner(t *testing.T) {
	const goroutines = 64
	const rounds = 100

	s := NewStore()

	for r := 0; r < rounds; r++ {
		var wins atomic.Int32
		var wg sync.WaitGroup
		start := make(chan struct{})

		for g := 0; g < goroutines; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				if s.TryOpen("HOT", 1) {
					wins.Add(1)
				}
			}()
		}
		close(start)
		wg.Wait()

		if wins.Load() != 1 {
			t.Fatalf("round %d: %d winners, want exactly 1", r, wins.Load())
		}

		// Reset for next round.
		if err := s.Revert("HOT", domain.PositionNone); err != nil {
			t.Fatalf("reset failed: %v", err)
		}
	}
}

func TestLiveAndRestore(t *testing.T) {
	s := NewStore()
	s.TryOpen("b", 1)
	s.TryOpen("a", 1)
	s.ConfirmOpen("a", 2, 1000)

	live := s.Live()
	if len(live) != 2 {
		t.Fatalf("Live() = %d entries, want 2", len(live))
	}
	if live[0].AssetID != "a" || live[1].AssetID != "b" {
		t.Errorf("Live() not ordered: %v, %v", live[0].AssetID, live[1].AssetID)
	}

	// Restore skips non-Open entries.
	s2 := NewStore()
	s2.Restore([]domain.Position{
		{AssetID: "a", State: domain.PositionOpen, EntryPrice: 2},
		{AssetID: "b", State: domain.PositionPending},
		{AssetID: "c", State: domain.PositionClosing},
	})
	if !s2.Holds("a") {
		t.Error("Open position should be restored")
	}
	if s2.Holds("b") || s2.Holds("c") {
		t.Error("Pending/Closing snapshots must not be restored")
	}
}
