package pricecache

import (
	"sync"

	"github.com/shubham-shewale/market-data-relay/pkg/models"
)

// Cache holds the last known price per symbol for the life of the process.
// Entries are upserted, never removed.
type Cache struct {
	mu     sync.RWMutex
	prices map[string]float64
}

func New() *Cache {
	return &Cache{prices: make(map[string]float64)}
}

func (c *Cache) Get(symbol string) (float64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.prices[symbol]
	return p, ok
}

func (c *Cache) Has(symbol string) bool {
	_, ok := c.Get(symbol)
	return ok
}

func (c *Cache) Update(symbol string, price float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.prices[symbol] = price
}

// Merge upserts every entry of prices under a single write lock, so readers see
// either none or all of the batch.
func (c *Cache) Merge(prices map[string]float64) {
	if len(prices) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for sym, p := range prices {
		c.prices[sym] = p
	}
}

// Snapshot returns the held prices for the given symbols. Symbols without an entry are omitted.
func (c *Cache) Snapshot(symbols []string) models.PriceSnapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(models.PriceSnapshot, len(symbols))
	for _, sym := range symbols {
		if p, ok := c.prices[sym]; ok {
			out[sym] = p
		}
	}
	return out
}

func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.prices)
}
