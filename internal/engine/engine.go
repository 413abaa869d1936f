// Package engine wires discovery pollers, the signal queue, the dispatcher
// and the position store into one supervised process. The Runner owns the
// exit monitor (take-profit / stop-loss sells), periodic position
// snapshots, and the ordered shutdown sequence: stop producers first, close
// the queue, then let the dispatcher drain.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-snipe/internal/discovery"
	"solana-snipe/internal/dispatch"
	"solana-snipe/internal/domain"
	"solana-snipe/internal/observability"
	"solana-snipe/internal/position"
	"solana-snipe/internal/queue"
	"solana-snipe/internal/storage"
)

// Options contains configuration for creating a Runner.
type Options struct {
	Pollers    []*discovery.Poller
	Queue      *queue.SignalQueue
	Dispatcher *dispatch.Dispatcher
	Positions  *position.Store

	// Prices is consulted by the exit monitor. Required when either exit
	// threshold is set.
	Prices *discovery.PriceCache

	// Snapshots, when set, receives periodic copies of the live positions
	// and provides the restore set on startup.
	Snapshots storage.PositionSnapshotStore

	// TakeProfitPct closes an open position when the price gain reaches
	// this percentage. Zero disables the check.
	TakeProfitPct float64
	// StopLossPct closes an open position when the price loss reaches
	// this percentage. Zero disables the check.
	StopLossPct float64

	// ExitInterval between exit monitor checks, default 5s.
	ExitInterval time.Duration
	// SnapshotInterval between position snapshots, default 30s.
	SnapshotInterval time.Duration
	// ShutdownTimeout bounds the dispatcher drain on shutdown, default 30s.
	ShutdownTimeout time.Duration

	Logger *log.Logger
}

// exitAttempt tracks one in-flight exit so the monitor does not enqueue a
// second sell while the first is still queued or executing.
type exitAttempt struct {
	enqueuedAt time.Time
	sawClosing bool
}

// Runner supervises the trading loop.
type Runner struct {
	pollers    []*discovery.Poller
	queue      *queue.SignalQueue
	dispatcher *dispatch.Dispatcher
	positions  *position.Store
	prices     *discovery.PriceCache
	snapshots  storage.PositionSnapshotStore

	takeProfitPct float64
	stopLossPct   float64

	exitInterval     time.Duration
	exitRetryAfter   time.Duration
	snapshotInterval time.Duration
	shutdownTimeout  time.Duration

	logger *log.Logger

	// Exit monitor state, touched only from the monitor goroutine.
	pendingExits map[string]*exitAttempt
}

// NewRunner creates a runner.
func NewRunner(opts Options) (*Runner, error) {
	if opts.Queue == nil {
		return nil, errors.New("engine: queue is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("engine: dispatcher is required")
	}
	if opts.Positions == nil {
		return nil, errors.New("engine: position store is required")
	}
	if (opts.TakeProfitPct > 0 || opts.StopLossPct > 0) && opts.Prices == nil {
		return nil, errors.New("engine: price cache is required when exit thresholds are set")
	}

	exitInterval := opts.ExitInterval
	if exitInterval <= 0 {
		exitInterval = 5 * time.Second
	}
	snapshotInterval := opts.SnapshotInterval
	if snapshotInterval <= 0 {
		snapshotInterval = 30 * time.Second
	}
	shutdownTimeout := opts.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 30 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Runner{
		pollers:          opts.Pollers,
		queue:            opts.Queue,
		dispatcher:       opts.Dispatcher,
		positions:        opts.Positions,
		prices:           opts.Prices,
		snapshots:        opts.Snapshots,
		takeProfitPct:    opts.TakeProfitPct,
		stopLossPct:      opts.StopLossPct,
		exitInterval:     exitInterval,
		exitRetryAfter:   10 * exitInterval,
		snapshotInterval: snapshotInterval,
		shutdownTimeout:  shutdownTimeout,
		logger:           logger,
		pendingExits:     make(map[string]*exitAttempt),
	}, nil
}

// Run starts the trading loop and blocks until the context is cancelled.
// On shutdown the producers stop first, the queue is closed, and the
// dispatcher is given shutdownTimeout to drain queued signals before it is
// cut off. A final snapshot is written after the drain.
func (r *Runner) Run(ctx context.Context) error {
	if err := r.restore(ctx); err != nil {
		return err
	}

	// The dispatcher runs on its own context so it can keep draining after
	// the main context is cancelled.
	dispCtx, dispCancel := context.WithCancel(context.Background())
	defer dispCancel()

	dispDone := make(chan struct{})
	go func() {
		r.dispatcher.Run(dispCtx)
		close(dispDone)
	}()

	var wg sync.WaitGroup
	for _, p := range r.pollers {
		wg.Add(1)
		go func(p *discovery.Poller) {
			defer wg.Done()
			if err := p.Run(ctx); err != nil && !errors.Is(err, queue.ErrClosed) {
				r.logger.Printf("Poller stopped: %v", err)
			}
		}(p)
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		r.exitLoop(ctx)
	}()

	if r.snapshots != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.snapshotLoop(ctx)
		}()
	}

	r.logger.Printf("Engine started: %d pollers, exit interval %v, take-profit %.1f%%, stop-loss %.1f%%",
		len(r.pollers), r.exitInterval, r.takeProfitPct, r.stopLossPct)

	<-ctx.Done()
	r.logger.Println("Engine stopping...")

	// Producers first, so nothing races the queue close.
	wg.Wait()
	r.queue.Close()

	select {
	case <-dispDone:
	case <-time.After(r.shutdownTimeout):
		r.logger.Printf("Dispatcher drain timed out after %v, cancelling", r.shutdownTimeout)
		dispCancel()
		<-dispDone
		if n := r.queue.Len(); n > 0 {
			observability.RecordSignalsDropped(n)
			r.logger.Printf("%d queued signals abandoned", n)
		}
	}

	r.finalSnapshot()
	return ctx.Err()
}

// restore loads the last position snapshot into the store. Only Open
// positions survive a restart; Pending and Closing entries are dropped by
// the store itself.
func (r *Runner) restore(ctx context.Context) error {
	if r.snapshots == nil {
		return nil
	}

	saved, err := r.snapshots.Load(ctx)
	if err != nil {
		return fmt.Errorf("load position snapshot: %w", err)
	}
	if len(saved) == 0 {
		return nil
	}

	restore := make([]domain.Position, 0, len(saved))
	for _, p := range saved {
		restore = append(restore, *p)
	}
	r.positions.Restore(restore)

	live := r.positions.Live()
	observability.UpdateOpenPositions(len(live))
	r.logger.Printf("Restored %d open positions from snapshot", len(live))
	return nil
}

// exitLoop periodically evaluates open positions against the exit
// thresholds.
func (r *Runner) exitLoop(ctx context.Context) {
	ticker := time.NewTicker(r.exitInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.checkExits(ctx)
		}
	}
}

// checkExits enqueues a sell for every open position whose price has moved
// past the take-profit or stop-loss threshold.
func (r *Runner) checkExits(ctx context.Context) {
	r.prunePendingExits()

	if r.takeProfitPct <= 0 && r.stopLossPct <= 0 {
		return
	}

	for _, p := range r.positions.Live() {
		if p.State != domain.PositionOpen || p.EntryPrice <= 0 {
			continue
		}
		if _, pending := r.pendingExits[p.AssetID]; pending {
			continue
		}

		price, ok := r.prices.Get(p.AssetID)
		if !ok || price <= 0 {
			continue
		}

		changePct := (price - p.EntryPrice) / p.EntryPrice * 100

		var reason string
		switch {
		case r.takeProfitPct > 0 && changePct >= r.takeProfitPct:
			reason = "take-profit"
		case r.stopLossPct > 0 && changePct <= -r.stopLossPct:
			reason = "stop-loss"
		default:
			continue
		}

		signal := domain.TradeSignal{
			AssetID:   p.AssetID,
			Action:    domain.ActionSell,
			Size:      p.Size,
			CreatedAt: time.Now().UnixMilli(),
		}
		if err := r.queue.Enqueue(ctx, signal); err != nil {
			if !errors.Is(err, queue.ErrClosed) && ctx.Err() == nil {
				r.logger.Printf("Enqueue exit for %s: %v", p.AssetID, err)
			}
			return
		}

		r.pendingExits[p.AssetID] = &exitAttempt{enqueuedAt: time.Now()}
		observability.RecordSignalEnqueued(domain.ActionSell.String())
		observability.UpdateQueueDepth(r.queue.Len())
		r.logger.Printf("Exit signal for %s: %s (entry=%.8f price=%.8f change=%+.2f%%)",
			p.AssetID, reason, p.EntryPrice, price, changePct)
	}
}

// prunePendingExits drops attempts whose sell completed (position gone) and
// re-arms assets whose sell failed. A failed sell is detected by the
// position going Closing and coming back Open; the deadline covers sells
// that failed too fast for the monitor to observe the Closing state.
func (r *Runner) prunePendingExits() {
	for assetID, attempt := range r.pendingExits {
		p, exists := r.positions.Get(assetID)
		switch {
		case !exists:
			delete(r.pendingExits, assetID)
		case p.State == domain.PositionClosing:
			attempt.sawClosing = true
		case p.State == domain.PositionOpen &&
			(attempt.sawClosing || time.Since(attempt.enqueuedAt) > r.exitRetryAfter):
			delete(r.pendingExits, assetID)
		}
	}
}

// snapshotLoop periodically persists the live positions for crash
// recovery.
func (r *Runner) snapshotLoop(ctx context.Context) {
	ticker := time.NewTicker(r.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.snapshot(ctx)
		}
	}
}

// snapshot writes the current live positions. Failures are logged, never
// fatal: the in-memory store stays authoritative.
func (r *Runner) snapshot(ctx context.Context) {
	live := r.positions.Live()
	entries := make([]*domain.Position, 0, len(live))
	for i := range live {
		entries = append(entries, &live[i])
	}

	writeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := r.snapshots.Replace(writeCtx, entries); err != nil {
		r.logger.Printf("Position snapshot failed: %v", err)
	}
}

// finalSnapshot writes positions one last time after the dispatcher has
// drained, so a restart restores the post-drain state.
func (r *Runner) finalSnapshot() {
	if r.snapshots == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	r.snapshot(ctx)
}
