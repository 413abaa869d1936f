package domain

// Candidate is a normalized snapshot of a tradable asset's market stats
// at discovery time. Immutable once constructed.
type Candidate struct {
	AssetID        string  // pair/pool address, unique per chain
	PriceUSD       float64 // last trade price in USD
	LiquidityUSD   float64 // pooled liquidity in USD
	MarketCapUSD   float64 // fully diluted market cap in USD
	PriceChangePct float64 // 24h price change, percent
	AgeHours       float64 // hours since pool creation; 0 when unknown
	BuyVolume      float64 // 24h buy volume in USD
	SellVolume     float64 // 24h sell volume in USD
	DiscoveredAt   int64   // Unix timestamp in milliseconds
}
