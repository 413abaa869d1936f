// Package filter evaluates discovered candidates against the configured
// risk thresholds. Evaluation is pure: no I/O, no shared state.
package filter

import (
	"solana-snipe/internal/config"
	"solana-snipe/internal/domain"
)

// RejectReason classifies why a candidate was rejected.
type RejectReason string

const (
	RejectNone                RejectReason = ""
	RejectMissingIdentifier   RejectReason = "MISSING_IDENTIFIER"
	RejectLiquidityOutOfRange RejectReason = "LIQUIDITY_OUT_OF_RANGE"
	RejectMarketCapOutOfRange RejectReason = "MARKET_CAP_OUT_OF_RANGE"
	RejectPriceChangeTooLow   RejectReason = "PRICE_CHANGE_TOO_LOW"
	RejectTooYoung            RejectReason = "TOO_YOUNG"
	RejectInsufficientVolume  RejectReason = "INSUFFICIENT_VOLUME"
	RejectTriggerNotMet       RejectReason = "TRIGGER_NOT_MET"
)

// Decision is the outcome of evaluating one candidate.
type Decision struct {
	Accepted bool
	Reason   RejectReason // RejectNone when accepted
}

func accept() Decision {
	return Decision{Accepted: true}
}

func reject(reason RejectReason) Decision {
	return Decision{Reason: reason}
}

// Engine applies threshold checks and the buy trigger to candidates.
type Engine struct {
	cfg     config.Thresholds
	trigger Trigger
}

// NewEngine creates a filter engine. A nil trigger means any candidate
// passing the thresholds is accepted.
func NewEngine(cfg config.Thresholds, trigger Trigger) *Engine {
	return &Engine{cfg: cfg, trigger: trigger}
}

// Evaluate classifies a candidate. Deterministic: the same candidate and
// configuration always yield the same decision.
//
// Threshold semantics:
//   - min/max bounds are inclusive; a zero max disables the upper bound
//   - price change and token age reject when value < min
//   - a candidate with no creation timestamp has AgeHours 0 (youngest
//     possible), so a positive min age rejects it
func (e *Engine) Evaluate(c *domain.Candidate) Decision {
	if c == nil || c.AssetID == "" {
		return reject(RejectMissingIdentifier)
	}

	if c.LiquidityUSD < e.cfg.MinLiquidity ||
		(e.cfg.MaxLiquidity > 0 && c.LiquidityUSD > e.cfg.MaxLiquidity) {
		return reject(RejectLiquidityOutOfRange)
	}

	if c.MarketCapUSD < e.cfg.MinMarketCap ||
		(e.cfg.MaxMarketCap > 0 && c.MarketCapUSD > e.cfg.MaxMarketCap) {
		return reject(RejectMarketCapOutOfRange)
	}

	if c.PriceChangePct < e.cfg.MinPriceChange {
		return reject(RejectPriceChangeTooLow)
	}

	if c.AgeHours < e.cfg.MinTokenAge {
		return reject(RejectTooYoung)
	}

	if c.BuyVolume < e.cfg.MinBuyVolume || c.SellVolume < e.cfg.MinSellVolume {
		return reject(RejectInsufficientVolume)
	}

	if e.trigger != nil && !e.trigger.ShouldBuy(c) {
		return reject(RejectTriggerNotMet)
	}

	return accept()
}
