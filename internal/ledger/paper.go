package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sync/atomic"
	"time"
)

// PriceFunc returns the current USD price for an asset. Used by the paper
// client to stamp realistic fill prices.
type PriceFunc func(ctx context.Context, assetID string) (float64, bool)

// PaperClient simulates executions without touching the chain. Every order
// fills immediately at the last known price.
type PaperClient struct {
	prices PriceFunc
	logger *log.Logger
	seq    atomic.Uint64
}

// NewPaperClient creates a paper trading client. prices may be nil, in
// which case fills carry a zero price.
func NewPaperClient(prices PriceFunc, logger *log.Logger) *PaperClient {
	if logger == nil {
		logger = log.Default()
	}
	return &PaperClient{
		prices: prices,
		logger: logger,
	}
}

// Compile-time interface check.
var _ Client = (*PaperClient)(nil)

// Buy records a simulated buy.
func (c *PaperClient) Buy(ctx context.Context, assetID string, size float64) (*Receipt, error) {
	return c.fill(ctx, assetID, "buy", size)
}

// Sell records a simulated sell.
func (c *PaperClient) Sell(ctx context.Context, assetID string, size float64) (*Receipt, error) {
	return c.fill(ctx, assetID, "sell", size)
}

func (c *PaperClient) fill(ctx context.Context, assetID, side string, size float64) (*Receipt, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%s size must be positive, got %f", side, size)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var price float64
	if c.prices != nil {
		if p, ok := c.prices(ctx, assetID); ok {
			price = p
		}
	}

	seq := c.seq.Add(1)
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d|%d", assetID, side, seq, time.Now().UnixNano())))
	signature := "paper-" + hex.EncodeToString(sum[:16])

	c.logger.Printf("paper %s %s size=%f price=%f sig=%s", side, assetID, size, price, signature)

	return &Receipt{
		Signature: signature,
		FillPrice: price,
	}, nil
}
