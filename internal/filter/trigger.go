package filter

import (
	"fmt"

	"solana-snipe/internal/domain"
)

// Trigger is the pluggable buy rule applied after threshold checks.
// Different deployments key off different signals, so the rule is not
// fixed in the engine.
type Trigger interface {
	// ShouldBuy decides whether a threshold-passing candidate is bought.
	ShouldBuy(c *domain.Candidate) bool

	// Name returns the trigger identifier (includes parameters).
	Name() string
}

// PriceChangeTrigger buys when the 24h price change meets a minimum.
type PriceChangeTrigger struct {
	MinChangePct float64
}

// ShouldBuy reports whether the candidate's price change meets the minimum.
func (t *PriceChangeTrigger) ShouldBuy(c *domain.Candidate) bool {
	return c.PriceChangePct >= t.MinChangePct
}

// Name returns the trigger identifier including parameters.
func (t *PriceChangeTrigger) Name() string {
	return fmt.Sprintf("PRICE_CHANGE_%.2f", t.MinChangePct)
}

// PriceAboveTrigger buys when the price exceeds a fixed level.
type PriceAboveTrigger struct {
	Level float64
}

// ShouldBuy reports whether the candidate's price is strictly above the level.
func (t *PriceAboveTrigger) ShouldBuy(c *domain.Candidate) bool {
	return c.PriceUSD > t.Level
}

// Name returns the trigger identifier including parameters.
func (t *PriceAboveTrigger) Name() string {
	return fmt.Sprintf("PRICE_ABOVE_%.2f", t.Level)
}

var (
	_ Trigger = (*PriceChangeTrigger)(nil)
	_ Trigger = (*PriceAboveTrigger)(nil)
)
