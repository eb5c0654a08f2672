package ingestion

// TxCache remembers recently processed transaction ids so the poller
// can skip the database round-trip for transfers it has already seen.
// It is a bounded FIFO: once capacity is reached the oldest entry is
// evicted. The cache is an optimization only; the unique constraint on
// decorations.tx_id is what actually guarantees exactly-once storage.
//
// TxCache is not safe for concurrent use. The poller owns it and all
// access happens from the single poll loop.
type TxCache struct {
	capacity int
	order    []string
	known    map[string]struct{}
}

// DefaultCacheCapacity bounds the dedup cache when no explicit
// capacity is configured.
const DefaultCacheCapacity = 1000

// NewTxCache creates a cache holding at most capacity ids.
func NewTxCache(capacity int) *TxCache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &TxCache{
		capacity: capacity,
		order:    make([]string, 0, capacity),
		known:    make(map[string]struct{}, capacity),
	}
}

// Has reports whether txID is in the cache.
func (c *TxCache) Has(txID string) bool {
	_, ok := c.known[txID]
	return ok
}

// Add records txID, evicting the oldest entry when full. Adding an id
// that is already present is a no-op.
func (c *TxCache) Add(txID string) {
	if txID == "" {
		return
	}
	if _, ok := c.known[txID]; ok {
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.known, oldest)
	}
	c.order = append(c.order, txID)
	c.known[txID] = struct{}{}
}

// Warm seeds the cache with ids already present in storage, oldest
// first so the most recent ids survive eviction.
func (c *TxCache) Warm(txIDs []string) {
	for _, id := range txIDs {
		c.Add(id)
	}
}

// Len returns the number of cached ids.
func (c *TxCache) Len() int {
	return len(c.order)
}
