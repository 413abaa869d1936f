// Package dispatch consumes trade signals from the queue and executes them
// against the ledger, updating the position store. It is the only component
// that mutates positions.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"solana-snipe/internal/domain"
	"solana-snipe/internal/idhash"
	"solana-snipe/internal/ledger"
	"solana-snipe/internal/observability"
	"solana-snipe/internal/position"
	"solana-snipe/internal/queue"
	"solana-snipe/internal/storage"
)

// Outcome classifies how a signal was resolved.
type Outcome string

const (
	// OutcomeExecuted means the trade went through and state was updated.
	OutcomeExecuted Outcome = "EXECUTED"
	// OutcomeDuplicateSuppressed means a live position already covered the
	// asset, so the buy was dropped without touching the ledger.
	OutcomeDuplicateSuppressed Outcome = "DUPLICATE_SUPPRESSED"
	// OutcomeNoOpenPosition means a sell arrived without an open position.
	OutcomeNoOpenPosition Outcome = "NO_OPEN_POSITION"
	// OutcomeFailed means the ledger call failed and state was reverted.
	// Failed signals are not retried; the ledger is not idempotent.
	OutcomeFailed Outcome = "FAILED"
	// OutcomeInvalid means the signal was malformed.
	OutcomeInvalid Outcome = "INVALID"
)

// Options configures a Dispatcher.
type Options struct {
	Queue     *queue.SignalQueue
	Positions *position.Store
	Ledger    ledger.Client
	// Fills, when set, receives an audit record per executed trade.
	Fills   storage.TradeFillStore
	Workers int
	Logger  *log.Logger
}

// Dispatcher runs a bounded worker pool over the signal queue.
type Dispatcher struct {
	queue     *queue.SignalQueue
	positions *position.Store
	ledger    ledger.Client
	fills     storage.TradeFillStore
	workers   int
	logger    *log.Logger
}

// New creates a dispatcher.
func New(opts Options) (*Dispatcher, error) {
	if opts.Queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if opts.Positions == nil {
		return nil, fmt.Errorf("position store is required")
	}
	if opts.Ledger == nil {
		return nil, fmt.Errorf("ledger client is required")
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Dispatcher{
		queue:     opts.Queue,
		positions: opts.Positions,
		ledger:    opts.Ledger,
		fills:     opts.Fills,
		workers:   workers,
		logger:    logger,
	}, nil
}

// Run starts the worker pool and blocks until the queue is closed and
// drained, or ctx is cancelled. Signals still queued when ctx dies are
// abandoned; in-flight executions complete.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < d.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			d.workerLoop(ctx, worker)
		}(i)
	}
	wg.Wait()
}

func (d *Dispatcher) workerLoop(ctx context.Context, worker int) {
	for {
		signal, err := d.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrClosed) && !errors.Is(err, context.Canceled) {
				d.logger.Printf("worker %d dequeue: %v", worker, err)
			}
			return
		}
		observability.UpdateQueueDepth(d.queue.Len())

		outcome := d.Process(ctx, signal)
		if outcome == OutcomeFailed || outcome == OutcomeInvalid {
			d.logger.Printf("worker %d %s %s -> %s", worker, signal.Action, signal.AssetID, outcome)
		}
	}
}

// Process resolves a single signal. Exposed for tests and the exit monitor.
func (d *Dispatcher) Process(ctx context.Context, signal domain.TradeSignal) Outcome {
	if signal.AssetID == "" || !signal.Action.IsValid() || signal.Size <= 0 {
		return OutcomeInvalid
	}

	switch signal.Action {
	case domain.ActionBuy:
		return d.processBuy(ctx, signal)
	case domain.ActionSell:
		return d.processSell(ctx, signal)
	default:
		return OutcomeInvalid
	}
}

// processBuy claims the asset, executes, then either confirms the position
// or reverts the claim. The claim happens before the ledger call so two
// concurrent buys for one asset can never both execute.
func (d *Dispatcher) processBuy(ctx context.Context, signal domain.TradeSignal) Outcome {
	if !d.positions.TryOpen(signal.AssetID, signal.Size) {
		observability.RecordDuplicateSuppressed()
		return OutcomeDuplicateSuppressed
	}

	start := time.Now()
	receipt, err := d.ledger.Buy(ctx, signal.AssetID, signal.Size)
	observability.RecordLedgerLatency(string(domain.ActionBuy), time.Since(start).Seconds())

	if err != nil {
		// Roll the claim back; the asset is buyable again on the next
		// accepted candidate. No automatic retry.
		if revertErr := d.positions.Revert(signal.AssetID, domain.PositionNone); revertErr != nil {
			d.logger.Printf("revert failed buy %s: %v", signal.AssetID, revertErr)
		}
		observability.RecordTradeFailed(string(domain.ActionBuy))
		d.logger.Printf("buy %s failed: %v", signal.AssetID, err)
		return OutcomeFailed
	}

	executedAt := time.Now().UnixMilli()
	fillPrice := receipt.FillPrice
	if fillPrice == 0 && signal.Candidate != nil {
		fillPrice = signal.Candidate.PriceUSD
	}

	if err := d.positions.ConfirmOpen(signal.AssetID, fillPrice, executedAt); err != nil {
		d.logger.Printf("confirm open %s: %v", signal.AssetID, err)
	}

	d.recordFill(ctx, signal, receipt, fillPrice, executedAt)
	observability.RecordTradeExecuted(string(domain.ActionBuy))
	observability.UpdateOpenPositions(len(d.positions.Live()))
	d.logger.Printf("bought %s size=%f price=%f sig=%s",
		signal.AssetID, signal.Size, fillPrice, receipt.Signature)
	return OutcomeExecuted
}

// processSell only fires against an Open position; MarkClosing is the
// atomic gate that also prevents a double sell.
func (d *Dispatcher) processSell(ctx context.Context, signal domain.TradeSignal) Outcome {
	if err := d.positions.MarkClosing(signal.AssetID); err != nil {
		observability.RecordSellWithoutPosition()
		return OutcomeNoOpenPosition
	}

	start := time.Now()
	receipt, err := d.ledger.Sell(ctx, signal.AssetID, signal.Size)
	observability.RecordLedgerLatency(string(domain.ActionSell), time.Since(start).Seconds())

	if err != nil {
		// The position is still held on chain; restore Open so a later
		// sell signal can try again.
		if revertErr := d.positions.Revert(signal.AssetID, domain.PositionOpen); revertErr != nil {
			d.logger.Printf("revert failed sell %s: %v", signal.AssetID, revertErr)
		}
		observability.RecordTradeFailed(string(domain.ActionSell))
		d.logger.Printf("sell %s failed: %v", signal.AssetID, err)
		return OutcomeFailed
	}

	executedAt := time.Now().UnixMilli()
	fillPrice := receipt.FillPrice
	if fillPrice == 0 && signal.Candidate != nil {
		fillPrice = signal.Candidate.PriceUSD
	}

	final, closeErr := d.positions.ConfirmClosed(signal.AssetID)

	d.recordFill(ctx, signal, receipt, fillPrice, executedAt)
	observability.RecordTradeExecuted(string(domain.ActionSell))
	observability.UpdateOpenPositions(len(d.positions.Live()))
	if closeErr != nil {
		d.logger.Printf("sold %s exit=%f sig=%s but close not confirmed: %v",
			signal.AssetID, fillPrice, receipt.Signature, closeErr)
	} else {
		d.logger.Printf("sold %s size=%f entry=%f exit=%f sig=%s",
			signal.AssetID, final.Size, final.EntryPrice, fillPrice, receipt.Signature)
	}
	return OutcomeExecuted
}

// recordFill writes the audit record. Failure to persist never fails the
// trade; the position store already reflects reality.
func (d *Dispatcher) recordFill(ctx context.Context, signal domain.TradeSignal, receipt *ledger.Receipt, fillPrice float64, executedAt int64) {
	if d.fills == nil {
		return
	}

	fill := &domain.TradeFill{
		FillID:      idhash.ComputeFillID(signal.AssetID, signal.Action, receipt.Signature, executedAt),
		AssetID:     signal.AssetID,
		Action:      signal.Action,
		Size:        signal.Size,
		FillPrice:   fillPrice,
		TxSignature: receipt.Signature,
		ExecutedAt:  executedAt,
	}

	if err := d.fills.Insert(ctx, fill); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		d.logger.Printf("record fill %s: %v", fill.FillID, err)
	}
}
