package domain

// Action represents the direction of a trade signal.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// String returns the string representation of Action.
func (a Action) String() string {
	return string(a)
}

// IsValid checks if the action is a valid value.
func (a Action) IsValid() bool {
	return a == ActionBuy || a == ActionSell
}

// TradeSignal is a decision to attempt a Buy or Sell for one asset.
// Created by the discovery/filter side, consumed exactly once by the
// dispatcher, never mutated.
type TradeSignal struct {
	AssetID   string
	Action    Action
	Size      float64    // amount in quote currency (SOL)
	Candidate *Candidate // source candidate; nil for sell signals
	CreatedAt int64      // Unix timestamp in milliseconds
}
