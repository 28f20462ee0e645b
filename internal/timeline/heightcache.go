package timeline

import (
	"sync"
)

// HeightCacheKey identifies one measured height. Keys compare by full tuple
// equality: entries differing only in LayoutHash are distinct, so an old
// measurement stays cached for its prior layout state while a new one is
// computed during rapid width-change bursts.
type HeightCacheKey struct {
	RowID       RowID
	WidthBucket int
	LayoutHash  uint64
}

// HeightCache memoizes measured row heights. Construct one per timeline
// view and pass it explicitly to consumers; reads may run concurrently with
// layout work on other goroutines, writes take the exclusive lock. A miss
// is a normal condition meaning "measure, then store".
type HeightCache struct {
	mu      sync.RWMutex
	heights map[HeightCacheKey]int
	byRow   map[RowID]map[HeightCacheKey]struct{}
}

// NewHeightCache returns an empty cache.
func NewHeightCache() *HeightCache {
	return &HeightCache{
		heights: make(map[HeightCacheKey]int),
		byRow:   make(map[RowID]map[HeightCacheKey]struct{}),
	}
}

// Height returns the cached height for the key, if present.
func (c *HeightCache) Height(key HeightCacheKey) (int, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	height, ok := c.heights[key]
	return height, ok
}

// Store upserts the measured height for the key.
func (c *HeightCache) Store(height int, key HeightCacheKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.heights[key] = height
	keys := c.byRow[key.RowID]
	if keys == nil {
		keys = make(map[HeightCacheKey]struct{}, 2)
		c.byRow[key.RowID] = keys
	}
	keys[key] = struct{}{}
}

// InvalidateRow removes every entry for the row across all width buckets
// and layout hashes. Used when a row is structurally removed, to bound
// memory growth.
func (c *HeightCache) InvalidateRow(rowID RowID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.byRow[rowID] {
		delete(c.heights, key)
	}
	delete(c.byRow, rowID)
}

// Len returns the number of cached measurements.
func (c *HeightCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.heights)
}
