package domain

// TradeFill records an executed trade with full execution details.
// Corresponds to the trade_fills table; append-only.
type TradeFill struct {
	FillID      string  // PRIMARY KEY, deterministic hash
	AssetID     string  // pair/pool address
	Action      Action  // BUY | SELL
	Size        float64 // amount in quote currency (SOL)
	FillPrice   float64 // executed price in USD
	TxSignature string  // ledger transaction signature
	ExecutedAt  int64   // Unix timestamp in milliseconds
}
