// Package discovery polls market data sources, filters candidates and
// produces buy signals for the dispatch queue.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"solana-snipe/internal/domain"
	"solana-snipe/internal/filter"
	"solana-snipe/internal/observability"
	"solana-snipe/internal/position"
	"solana-snipe/internal/queue"
)

// MarketDataSource fetches the current candidate set from a feed.
type MarketDataSource interface {
	Fetch(ctx context.Context) ([]*domain.Candidate, error)
	Name() string
}

// maxBackoffMultiple caps the failure backoff at this many poll intervals.
const maxBackoffMultiple = 8

// PollerOptions configures a Poller.
type PollerOptions struct {
	Source    MarketDataSource
	Filter    *filter.Engine
	Queue     *queue.SignalQueue
	Positions *position.Store
	// Size is the buy size in SOL stamped on produced signals.
	Size float64
	// Interval between polls, default 5s.
	Interval time.Duration
	// FetchTimeout bounds a single fetch, default 10s.
	FetchTimeout time.Duration
	// Prices, when set, receives every candidate's last observed price.
	Prices *PriceCache
	Logger *log.Logger
}

// Poller runs a fixed-interval fetch/filter/enqueue loop against one
// source. Fetch failures skip the tick and back off; the loop only stops
// when its context is cancelled or the queue closes.
type Poller struct {
	source       MarketDataSource
	filter       *filter.Engine
	queue        *queue.SignalQueue
	positions    *position.Store
	size         float64
	interval     time.Duration
	fetchTimeout time.Duration
	prices       *PriceCache
	logger       *log.Logger

	// Candidates without an identifier are indistinguishable from each
	// other, so that rejection is logged once per poller, not every tick.
	loggedMissingID bool
}

// NewPoller creates a poller.
func NewPoller(opts PollerOptions) (*Poller, error) {
	if opts.Source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if opts.Filter == nil {
		return nil, fmt.Errorf("filter engine is required")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("queue is required")
	}
	if opts.Positions == nil {
		return nil, fmt.Errorf("position store is required")
	}
	if opts.Size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %f", opts.Size)
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	fetchTimeout := opts.FetchTimeout
	if fetchTimeout <= 0 {
		fetchTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Poller{
		source:       opts.Source,
		filter:       opts.Filter,
		queue:        opts.Queue,
		positions:    opts.Positions,
		size:         opts.Size,
		interval:     interval,
		fetchTimeout: fetchTimeout,
		prices:       opts.Prices,
		logger:       logger,
	}, nil
}

// Run polls until ctx is cancelled. Returns nil on cancellation and
// queue.ErrClosed when the queue shuts down underneath it.
func (p *Poller) Run(ctx context.Context) error {
	name := p.source.Name()
	p.logger.Printf("poller %s started interval=%s", name, p.interval)

	delay := p.interval
	for {
		if err := p.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, queue.ErrClosed) {
				p.logger.Printf("poller %s stopping: queue closed", name)
				return queue.ErrClosed
			}

			observability.RecordFetchError(name)
			p.logger.Printf("poller %s fetch failed: %v", name, err)

			// Consecutive failures back off up to a cap, successful polls
			// reset to the base interval.
			delay *= 2
			if max := p.interval * maxBackoffMultiple; delay > max {
				delay = max
			}
		} else {
			observability.RecordSuccessfulPoll(time.Now().Unix())
			delay = p.interval
		}

		select {
		case <-ctx.Done():
			p.logger.Printf("poller %s stopped", name)
			return nil
		case <-time.After(delay):
		}
	}
}

// poll performs one fetch/filter/enqueue cycle.
func (p *Poller) poll(ctx context.Context) error {
	fetchCtx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	candidates, err := p.source.Fetch(fetchCtx)
	cancel()
	if err != nil {
		return err
	}

	name := p.source.Name()
	for _, c := range candidates {
		if c == nil {
			continue
		}
		observability.RecordCandidateSeen(name)

		if p.prices != nil && c.AssetID != "" && c.PriceUSD > 0 {
			p.prices.Set(c.AssetID, c.PriceUSD)
		}

		decision := p.filter.Evaluate(c)
		if !decision.Accepted {
			observability.RecordCandidateRejected(name, string(decision.Reason))
			p.logRejection(name, c, decision.Reason)
			continue
		}
		observability.RecordCandidateAccepted(name)

		// A live position already covers this asset; skip before queueing
		// so the queue is not churned with signals the dispatcher would
		// suppress anyway. The dispatcher stays the authority.
		if p.positions.Holds(c.AssetID) {
			continue
		}

		signal := domain.TradeSignal{
			AssetID:   c.AssetID,
			Action:    domain.ActionBuy,
			Size:      p.size,
			Candidate: c,
			CreatedAt: time.Now().UnixMilli(),
		}
		if err := p.queue.Enqueue(ctx, signal); err != nil {
			return err
		}
		observability.RecordSignalEnqueued(string(domain.ActionBuy))
		p.logger.Printf("poller %s enqueued buy %s liquidity=%.0f mcap=%.0f",
			name, c.AssetID, c.LiquidityUSD, c.MarketCapUSD)
	}

	observability.UpdateQueueDepth(p.queue.Len())
	return nil
}

// logRejection writes the rejection with the values the filter saw.
func (p *Poller) logRejection(source string, c *domain.Candidate, reason filter.RejectReason) {
	if reason == filter.RejectMissingIdentifier {
		if p.loggedMissingID {
			return
		}
		p.loggedMissingID = true
	}
	p.logger.Printf("poller %s rejected %q reason=%s liquidity=%.0f mcap=%.0f change=%.2f age=%.1fh buyVol=%.0f sellVol=%.0f price=%.8f",
		source, c.AssetID, reason, c.LiquidityUSD, c.MarketCapUSD,
		c.PriceChangePct, c.AgeHours, c.BuyVolume, c.SellVolume, c.PriceUSD)
}
