package discovery

import (
	"sync"
	"time"
)

// PriceCache holds the last observed USD price per asset. Pollers write it
// on every candidate they see; the exit monitor and paper execution read it.
type PriceCache struct {
	mu     sync.RWMutex
	prices map[string]pricePoint
}

type pricePoint struct {
	price float64
	seen  time.Time
}

// NewPriceCache creates an empty cache.
func NewPriceCache() *PriceCache {
	return &PriceCache{
		prices: make(map[string]pricePoint),
	}
}

// Set records the latest price for an asset.
func (c *PriceCache) Set(assetID string, price float64) {
	if assetID == "" || price <= 0 {
		return
	}
	c.mu.Lock()
	c.prices[assetID] = pricePoint{price: price, seen: time.Now()}
	c.mu.Unlock()
}

// Get returns the last observed price, false when the asset was never seen.
func (c *PriceCache) Get(assetID string) (float64, bool) {
	c.mu.RLock()
	p, ok := c.prices[assetID]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return p.price, true
}

// Age returns how long ago the asset's price was observed.
func (c *PriceCache) Age(assetID string) (time.Duration, bool) {
	c.mu.RLock()
	p, ok := c.prices[assetID]
	c.mu.RUnlock()
	if !ok {
		return 0, false
	}
	return time.Since(p.seen), true
}
