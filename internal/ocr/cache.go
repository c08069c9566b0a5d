// internal/ocr/cache.go
package ocr

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/loopguard/api/schemas"
)

type cacheEntry struct {
	hash uint64
	text string
}

// Cached remembers the last text read from each region and returns it while
// the region's hash is unchanged. At most size regions are kept; the oldest
// inserted region is evicted first.
type Cached struct {
	next   schemas.TextExtractor
	size   int
	logger *zap.Logger

	mu      sync.Mutex
	entries map[string]cacheEntry
	order   []string
}

// NewCached wraps next. A non-positive size means unbounded.
func NewCached(next schemas.TextExtractor, size int, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{
		next:    next,
		size:    size,
		logger:  logger.Named("ocr_cache"),
		entries: make(map[string]cacheEntry),
	}
}

func (c *Cached) ExtractText(ctx context.Context, region schemas.Region) (string, error) {
	return c.next.ExtractText(ctx, region)
}

func (c *Cached) ExtractTextCached(ctx context.Context, region schemas.Region, hash uint64) (string, error) {
	c.mu.Lock()
	e, ok := c.entries[region.ID]
	c.mu.Unlock()
	if ok && e.hash == hash {
		c.logger.Debug("Cache hit.", zap.String("region_id", region.ID), zap.Uint64("hash", hash))
		return e.text, nil
	}

	c.logger.Debug("Cache miss.", zap.String("region_id", region.ID), zap.Uint64("hash", hash))
	text, err := c.next.ExtractText(ctx, region)
	if err != nil {
		return "", err
	}
	c.store(region.ID, cacheEntry{hash: hash, text: text})
	return text, nil
}

func (c *Cached) store(id string, e cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[id]; !exists {
		c.order = append(c.order, id)
		if c.size > 0 && len(c.order) > c.size {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[id] = e
}

// Len reports how many regions are cached.
func (c *Cached) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
