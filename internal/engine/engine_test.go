package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"solana-snipe/internal/config"
	"solana-snipe/internal/discovery"
	"solana-snipe/internal/dispatch"
	"solana-snipe/internal/domain"
	"solana-snipe/internal/filter"
	"solana-snipe/internal/ledger"
	"solana-snipe/internal/position"
	"solana-snipe/internal/queue"
	"solana-snipe/internal/storage"
	"solana-snipe/internal/storage/memory"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func testLogger(t *testing.T) *log.Logger {
	return log.New(testWriter{t}, "[test] ", 0)
}

// fakeLedger fills instantly; sellFailures sells fail before it starts
// succeeding.
type fakeLedger struct {
	buys  atomic.Int32
	sells atomic.Int32

	sellFailures atomic.Int32
	fillPrice    float64
}

func (l *fakeLedger) Buy(ctx context.Context, assetID string, size float64) (*ledger.Receipt, error) {
	l.buys.Add(1)
	return &ledger.Receipt{Signature: "buy-" + assetID, FillPrice: l.fillPrice}, nil
}

func (l *fakeLedger) Sell(ctx context.Context, assetID string, size float64) (*ledger.Receipt, error) {
	l.sells.Add(1)
	if l.sellFailures.Add(-1) >= 0 {
		return nil, errors.New("venue rejected transaction")
	}
	return &ledger.Receipt{Signature: "sell-" + assetID, FillPrice: l.fillPrice}, nil
}

var _ ledger.Client = (*fakeLedger)(nil)

// snapshotRecorder counts Replace calls around a real in-memory store.
type snapshotRecorder struct {
	*memory.PositionSnapshotStore
	mu       sync.Mutex
	replaces int
}

func newSnapshotRecorder() *snapshotRecorder {
	return &snapshotRecorder{PositionSnapshotStore: memory.NewPositionSnapshotStore()}
}

func (s *snapshotRecorder) Replace(ctx context.Context, positions []*domain.Position) error {
	s.mu.Lock()
	s.replaces++
	s.mu.Unlock()
	return s.PositionSnapshotStore.Replace(ctx, positions)
}

func (s *snapshotRecorder) replaceCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.replaces
}

var _ storage.PositionSnapshotStore = (*snapshotRecorder)(nil)

type harness struct {
	queue      *queue.SignalQueue
	positions  *position.Store
	prices     *discovery.PriceCache
	ledger     *fakeLedger
	dispatcher *dispatch.Dispatcher
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	q := queue.New(16)
	positions := position.NewStore()
	led := &fakeLedger{}

	d, err := dispatch.New(dispatch.Options{
		Queue:     q,
		Positions: positions,
		Ledger:    led,
		Fills:     memory.NewTradeFillStore(),
		Workers:   2,
		Logger:    testLogger(t),
	})
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}

	return &harness{
		queue:      q,
		positions:  positions,
		prices:     discovery.NewPriceCache(),
		ledger:     led,
		dispatcher: d,
	}
}

func (h *harness) runner(t *testing.T, opts Options) *Runner {
	t.Helper()

	opts.Queue = h.queue
	opts.Dispatcher = h.dispatcher
	opts.Positions = h.positions
	if opts.Prices == nil {
		opts.Prices = h.prices
	}
	if opts.ExitInterval == 0 {
		opts.ExitInterval = 10 * time.Millisecond
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = time.Second
	}
	opts.Logger = testLogger(t)

	r, err := NewRunner(opts)
	if err != nil {
		t.Fatalf("NewRunner: %v", err)
	}
	return r
}

// openPosition places a confirmed Open position directly in the store.
func openPosition(t *testing.T, positions *position.Store, assetID string, entryPrice float64) {
	t.Helper()

	if !positions.TryOpen(assetID, 0.5) {
		t.Fatalf("TryOpen(%s) returned false", assetID)
	}
	if err := positions.ConfirmOpen(assetID, entryPrice, time.Now().UnixMilli()); err != nil {
		t.Fatalf("ConfirmOpen(%s): %v", assetID, err)
	}
}

func runFor(t *testing.T, r *Runner, d time.Duration) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()

	if err := r.Run(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run: %v", err)
	}
}

func TestRunner_TakeProfitSellsPosition(t *testing.T) {
	h := newHarness(t)
	openPosition(t, h.positions, "MintTP", 1.0)
	h.prices.Set("MintTP", 1.5) // +50%

	r := h.runner(t, Options{TakeProfitPct: 20, StopLossPct: 10})
	runFor(t, r, 300*time.Millisecond)

	if got := h.ledger.sells.Load(); got != 1 {
		t.Errorf("expected 1 sell, got %d", got)
	}
	if h.positions.Holds("MintTP") {
		t.Error("position should be closed after take-profit")
	}
}

func TestRunner_StopLossSellsPosition(t *testing.T) {
	h := newHarness(t)
	openPosition(t, h.positions, "MintSL", 1.0)
	h.prices.Set("MintSL", 0.8) // -20%

	r := h.runner(t, Options{TakeProfitPct: 50, StopLossPct: 10})
	runFor(t, r, 300*time.Millisecond)

	if got := h.ledger.sells.Load(); got != 1 {
		t.Errorf("expected 1 sell, got %d", got)
	}
	if h.positions.Holds("MintSL") {
		t.Error("position should be closed after stop-loss")
	}
}

func TestRunner_HoldsWithinBand(t *testing.T) {
	h := newHarness(t)
	openPosition(t, h.positions, "MintHold", 1.0)
	h.prices.Set("MintHold", 1.05) // +5%, inside both thresholds

	r := h.runner(t, Options{TakeProfitPct: 20, StopLossPct: 10})
	runFor(t, r, 200*time.Millisecond)

	if got := h.ledger.sells.Load(); got != 0 {
		t.Errorf("expected no sells, got %d", got)
	}
	if !h.positions.Holds("MintHold") {
		t.Error("position should still be open")
	}
}

func TestRunner_NoExitWithoutPrice(t *testing.T) {
	h := newHarness(t)
	openPosition(t, h.positions, "MintNoPrice", 1.0)

	r := h.runner(t, Options{TakeProfitPct: 20, StopLossPct: 10})
	runFor(t, r, 200*time.Millisecond)

	if got := h.ledger.sells.Load(); got != 0 {
		t.Errorf("expected no sells without a price, got %d", got)
	}
	if !h.positions.Holds("MintNoPrice") {
		t.Error("position should still be open")
	}
}

func TestRunner_FailedSellIsRetried(t *testing.T) {
	h := newHarness(t)
	h.ledger.sellFailures.Store(1)
	openPosition(t, h.positions, "MintRetry", 1.0)
	h.prices.Set("MintRetry", 2.0)

	// exitRetryAfter is 10x the interval; the window must cover at least
	// one re-arm plus the second sell.
	r := h.runner(t, Options{TakeProfitPct: 20, StopLossPct: 10})
	runFor(t, r, 800*time.Millisecond)

	if got := h.ledger.sells.Load(); got < 2 {
		t.Errorf("expected the failed sell to be retried, got %d attempts", got)
	}
	if h.positions.Holds("MintRetry") {
		t.Error("position should be closed after the retried sell")
	}
}

func TestRunner_RestoresSnapshotOnStartup(t *testing.T) {
	h := newHarness(t)

	snapshots := memory.NewPositionSnapshotStore()
	err := snapshots.Replace(context.Background(), []*domain.Position{
		{AssetID: "MintSaved", State: domain.PositionOpen, EntryPrice: 0.002, EntryTime: 1000, Size: 0.5},
		{AssetID: "MintStale", State: domain.PositionClosing, EntryPrice: 0.003, EntryTime: 1000, Size: 0.5},
	})
	if err != nil {
		t.Fatalf("seed snapshot: %v", err)
	}

	r := h.runner(t, Options{Snapshots: snapshots, SnapshotInterval: time.Hour})
	runFor(t, r, 100*time.Millisecond)

	p, ok := h.positions.Get("MintSaved")
	if !ok || p.State != domain.PositionOpen {
		t.Fatalf("expected MintSaved restored as open, got %+v (exists=%v)", p, ok)
	}
	if p.EntryPrice != 0.002 {
		t.Errorf("expected entry price 0.002, got %v", p.EntryPrice)
	}
	if h.positions.Holds("MintStale") {
		t.Error("closing position from a previous run must not be restored")
	}
}

func TestRunner_WritesFinalSnapshot(t *testing.T) {
	h := newHarness(t)
	openPosition(t, h.positions, "MintSnap", 1.0)

	snapshots := newSnapshotRecorder()
	r := h.runner(t, Options{Snapshots: snapshots, SnapshotInterval: time.Hour})
	runFor(t, r, 100*time.Millisecond)

	if snapshots.replaceCount() == 0 {
		t.Fatal("expected a final snapshot on shutdown")
	}

	saved, err := snapshots.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(saved) != 1 || saved[0].AssetID != "MintSnap" {
		t.Errorf("expected snapshot of MintSnap, got %+v", saved)
	}
}

func TestRunner_PeriodicSnapshots(t *testing.T) {
	h := newHarness(t)
	openPosition(t, h.positions, "MintTick", 1.0)

	snapshots := newSnapshotRecorder()
	r := h.runner(t, Options{Snapshots: snapshots, SnapshotInterval: 20 * time.Millisecond})
	runFor(t, r, 200*time.Millisecond)

	// Several ticks plus the final write.
	if got := snapshots.replaceCount(); got < 3 {
		t.Errorf("expected at least 3 snapshot writes, got %d", got)
	}
}

// scriptedSource returns batches in order, then empty batches. Going quiet
// after the script keeps the poller from re-buying the asset once the exit
// monitor has sold it.
type scriptedSource struct {
	batches [][]*domain.Candidate
	calls   atomic.Int32
}

func (s *scriptedSource) Name() string { return "scripted" }

func (s *scriptedSource) Fetch(ctx context.Context) ([]*domain.Candidate, error) {
	n := int(s.calls.Add(1)) - 1
	if n < len(s.batches) {
		return s.batches[n], nil
	}
	return nil, nil
}

func candidateAt(assetID string, price float64) *domain.Candidate {
	return &domain.Candidate{
		AssetID:        assetID,
		PriceUSD:       price,
		LiquidityUSD:   50000,
		MarketCapUSD:   250000,
		PriceChangePct: 10,
		AgeHours:       24,
		BuyVolume:      30000,
		SellVolume:     20000,
	}
}

func TestRunner_BuyThenTakeProfitEndToEnd(t *testing.T) {
	h := newHarness(t)
	h.ledger.fillPrice = 1.0

	thresholds := config.Thresholds{
		MinLiquidity:   10000,
		MaxLiquidity:   100000,
		MinMarketCap:   100000,
		MaxMarketCap:   500000,
		MinPriceChange: 5,
		MinTokenAge:    1,
		MinBuyVolume:   10000,
		MinSellVolume:  10000,
	}

	// First poll discovers the asset at 1.0; later polls show it doubled.
	source := &scriptedSource{batches: [][]*domain.Candidate{
		{candidateAt("MintE2E", 1.0)},
		{candidateAt("MintE2E", 2.0)},
	}}

	poller, err := discovery.NewPoller(discovery.PollerOptions{
		Source:       source,
		Filter:       filter.NewEngine(thresholds, nil),
		Queue:        h.queue,
		Positions:    h.positions,
		Size:         0.5,
		Interval:     10 * time.Millisecond,
		FetchTimeout: time.Second,
		Prices:       h.prices,
		Logger:       testLogger(t),
	})
	if err != nil {
		t.Fatalf("NewPoller: %v", err)
	}

	r := h.runner(t, Options{
		Pollers:       []*discovery.Poller{poller},
		TakeProfitPct: 50,
		StopLossPct:   30,
	})
	runFor(t, r, 500*time.Millisecond)

	if got := h.ledger.buys.Load(); got != 1 {
		t.Errorf("expected exactly 1 buy, got %d", got)
	}
	if got := h.ledger.sells.Load(); got != 1 {
		t.Errorf("expected exactly 1 sell, got %d", got)
	}
	if h.positions.Holds("MintE2E") {
		t.Error("position should be closed after the round trip")
	}
}

func TestNewRunner_Validation(t *testing.T) {
	q := queue.New(4)
	positions := position.NewStore()
	led := &fakeLedger{}
	d, err := dispatch.New(dispatch.Options{Queue: q, Positions: positions, Ledger: led})
	if err != nil {
		t.Fatalf("dispatch.New: %v", err)
	}

	tests := []struct {
		name string
		opts Options
	}{
		{"missing queue", Options{Dispatcher: d, Positions: positions}},
		{"missing dispatcher", Options{Queue: q, Positions: positions}},
		{"missing positions", Options{Queue: q, Dispatcher: d}},
		{"thresholds without prices", Options{Queue: q, Dispatcher: d, Positions: positions, TakeProfitPct: 20}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRunner(tt.opts); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
