// Package pricecache keeps recently served tickers in memory in front of a
// stock.Repository (cache-aside).
package pricecache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wonny/stockanalyzer/internal/domain/stock"
)

type entry struct {
	prices   []stock.StockPrice
	cachedAt time.Time
}

// Stats is a snapshot of cache counters
type Stats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Entries int   `json:"entries"`
}

// Cache serves GetByTicker from memory while an entry is younger than ttl.
// Failed lookups are never cached. Expired entries are dropped when read and
// swept from the map at most once per ttl.
type Cache struct {
	repo stock.Repository
	ttl  time.Duration
	now  func() time.Time

	mu        sync.RWMutex
	entries   map[string]entry
	lastSweep time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

// New wraps repo. A ttl <= 0 disables expiry.
func New(repo stock.Repository, ttl time.Duration) *Cache {
	return &Cache{
		repo:    repo,
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]entry),
	}
}

// GetByTicker implements stock.Repository
func (c *Cache) GetByTicker(ctx context.Context, ticker string) ([]stock.StockPrice, error) {
	if prices, ok := c.get(ticker); ok {
		c.hits.Add(1)
		return prices, nil
	}
	c.misses.Add(1)

	prices, err := c.repo.GetByTicker(ctx, ticker)
	if err != nil {
		return nil, err
	}

	cached := clone(prices)

	now := c.now()

	c.mu.Lock()
	c.entries[ticker] = entry{prices: cached, cachedAt: now}
	c.sweepLocked(now)
	c.mu.Unlock()

	log.Debug().
		Str("ticker", ticker).
		Int("count", len(prices)).
		Msg("Price cache filled")

	return clone(cached), nil
}

func (c *Cache) get(ticker string) ([]stock.StockPrice, bool) {
	now := c.now()

	c.mu.RLock()
	e, ok := c.entries[ticker]
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if c.expired(e, now) {
		c.mu.Lock()
		// a concurrent fill may have replaced it
		if cur, ok := c.entries[ticker]; ok && c.expired(cur, now) {
			delete(c.entries, ticker)
		}
		c.mu.Unlock()
		return nil, false
	}
	return clone(e.prices), true
}

func (c *Cache) expired(e entry, now time.Time) bool {
	return c.ttl > 0 && now.Sub(e.cachedAt) >= c.ttl
}

// sweepLocked removes expired entries. c.mu must be held for writing.
func (c *Cache) sweepLocked(now time.Time) {
	if c.ttl <= 0 || now.Sub(c.lastSweep) < c.ttl {
		return
	}
	c.lastSweep = now

	removed := 0
	for ticker, e := range c.entries {
		if c.expired(e, now) {
			delete(c.entries, ticker)
			removed++
		}
	}
	if removed > 0 {
		log.Debug().
			Int("removed", removed).
			Int("remaining", len(c.entries)).
			Msg("Price cache swept")
	}
}

// Invalidate drops ticker, or every entry when ticker is empty
func (c *Cache) Invalidate(ticker string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ticker == "" {
		c.entries = make(map[string]entry)
		return
	}
	delete(c.entries, ticker)
}

// Stats returns current counters
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()

	return Stats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Entries: n,
	}
}

// clone returns a non-nil copy so callers can't mutate cached slices
func clone(prices []stock.StockPrice) []stock.StockPrice {
	out := make([]stock.StockPrice, len(prices))
	copy(out, prices)
	return out
}
