package indicators

import (
	"sync"
	"time"

	"github.com/ridopark/chanlun-engine/internal/models"
)

// CacheEntry holds one symbol+timeframe's MACD series alongside the time it
// was computed, for TTL-based expiry keyed by candle count (a changed count
// means new candles arrived and the cached series is stale).
type CacheEntry struct {
	Values       []models.MACDValue
	CalculatedAt time.Time
	CandleCount  int
}

// Cache memoizes MACD series per (symbol, timeframe) so repeated queries
// against an unchanged candle sequence avoid recomputation.
type Cache struct {
	cache map[string]*CacheEntry
	mutex sync.RWMutex
	ttl   time.Duration
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		cache: make(map[string]*CacheEntry),
		ttl:   ttl,
	}
}

func cacheKey(symbol string, timeframe models.Timeframe) string {
	return symbol + "|" + string(timeframe)
}

// Get retrieves the cached MACD series, returning ok=false if absent,
// expired, or stale against the current candle count.
func (c *Cache) Get(symbol string, timeframe models.Timeframe, candleCount int) ([]models.MACDValue, bool) {
	c.mutex.RLock()
	defer c.mutex.RUnlock()

	entry, exists := c.cache[cacheKey(symbol, timeframe)]
	if !exists {
		return nil, false
	}
	if c.ttl > 0 && time.Since(entry.CalculatedAt) > c.ttl {
		return nil, false
	}
	if entry.CandleCount != candleCount {
		return nil, false
	}
	return entry.Values, true
}

func (c *Cache) Set(symbol string, timeframe models.Timeframe, candleCount int, values []models.MACDValue) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.cache[cacheKey(symbol, timeframe)] = &CacheEntry{
		Values:       values,
		CalculatedAt: time.Now(),
		CandleCount:  candleCount,
	}
}

func (c *Cache) Clear(symbol string, timeframe models.Timeframe) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.cache, cacheKey(symbol, timeframe))
}

// CleanExpired removes entries older than the configured TTL.
func (c *Cache) CleanExpired() {
	if c.ttl <= 0 {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()

	now := time.Now()
	for k, entry := range c.cache {
		if now.Sub(entry.CalculatedAt) > c.ttl {
			delete(c.cache, k)
		}
	}
}

func (c *Cache) Size() int {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.cache)
}

// CalculateCached computes (or reuses) the MACD series for a symbol and
// timeframe given its closing prices.
func CalculateCached(cfg Config, cache *Cache, symbol string, timeframe models.Timeframe, closes []float64) []models.MACDValue {
	if cache != nil {
		if cached, ok := cache.Get(symbol, timeframe, len(closes)); ok {
			return cached
		}
	}

	values := Calculate(cfg, closes)

	if cache != nil {
		cache.Set(symbol, timeframe, len(closes), values)
	}

	return values
}
