package core

import (
	"container/list"

	"OutcomeLedger/internal/event"
	"OutcomeLedger/internal/observability"
)

// AppliedChecker decides whether a chain event has already been applied.
// Replayed logs are expected during backfills and reorg recovery, so every
// mutation in the engine is gated on this check. Lookup is two-tier: an
// in-memory LRU over recent keys, then the durable applied-events table.
type AppliedChecker struct {
	lru *appliedLRU

	// Tier 2: applied-events table (injected via interface)
	db DBAppliedChecker

	stats   *AppliedStats
	metrics *observability.Metrics
}

// DBAppliedChecker is the durable lookup behind the LRU.
type DBAppliedChecker interface {
	WasApplied(eventType event.EventType, idempotencyKey string) (bool, error)
}

func NewAppliedChecker(capacity int, db DBAppliedChecker) *AppliedChecker {
	return &AppliedChecker{
		lru:   newAppliedLRU(capacity),
		db:    db,
		stats: newAppliedStats(),
	}
}

// WasApplied reports whether the (event type, key) pair was already applied.
func (c *AppliedChecker) WasApplied(eventType event.EventType, idempotencyKey string) bool {
	compositeKey := eventType.String() + ":" + idempotencyKey

	if c.lru.contains(compositeKey) {
		c.recordReplay(eventType, "lru")
		return true
	}

	if c.db != nil {
		applied, err := c.db.WasApplied(eventType, idempotencyKey)
		if err != nil {
			// Conservative on lookup failure: treat as fresh so a store
			// outage never wedges the event loop. The durable write path
			// still rejects the duplicate row.
			c.stats.recordTier2Error()
			if c.metrics != nil {
				c.metrics.AppliedTier2Errors.Inc()
			}
			return false
		}
		if applied {
			c.recordReplay(eventType, "store")
			c.lru.add(compositeKey)
			return true
		}
	}

	return false
}

func (c *AppliedChecker) recordReplay(eventType event.EventType, tier string) {
	c.stats.recordReplay(eventType, tier)
	if c.metrics != nil {
		c.metrics.ReplaysSkipped.WithLabelValues(eventType.String(), tier).Inc()
	}
}

// MarkApplied records the key after the event's effects are committed.
func (c *AppliedChecker) MarkApplied(eventType event.EventType, idempotencyKey string) {
	c.lru.add(eventType.String() + ":" + idempotencyKey)
	if c.metrics != nil {
		c.metrics.AppliedLRUSize.Set(float64(c.lru.size()))
	}
}

// Warm preloads recently applied composite keys, newest first.
func (c *AppliedChecker) Warm(compositeKeys []string) {
	c.lru.warm(compositeKeys)
}

func (c *AppliedChecker) Stats() *AppliedStats {
	return c.stats
}

// --- LRU over applied keys ---

// appliedLRU caches recent composite keys.
// Not thread-safe; only the single-threaded engine touches it.
type appliedLRU struct {
	capacity int
	cache    map[string]*list.Element
	order    *list.List

	evictions int64
}

func newAppliedLRU(capacity int) *appliedLRU {
	return &appliedLRU{
		capacity: capacity,
		cache:    make(map[string]*list.Element, capacity),
		order:    list.New(),
	}
}

func (lru *appliedLRU) contains(key string) bool {
	elem, ok := lru.cache[key]
	if ok {
		lru.order.MoveToFront(elem)
		return true
	}
	return false
}

func (lru *appliedLRU) add(key string) {
	if elem, ok := lru.cache[key]; ok {
		lru.order.MoveToFront(elem)
		return
	}

	lru.cache[key] = lru.order.PushFront(key)
	if lru.order.Len() > lru.capacity {
		lru.evictOldest()
	}
}

func (lru *appliedLRU) evictOldest() {
	elem := lru.order.Back()
	if elem != nil {
		lru.order.Remove(elem)
		delete(lru.cache, elem.Value.(string))
		lru.evictions++
	}
}

// warm bulk-loads keys without the promote-on-hit bookkeeping.
func (lru *appliedLRU) warm(keys []string) {
	for _, key := range keys {
		if _, ok := lru.cache[key]; ok {
			continue
		}
		lru.cache[key] = lru.order.PushFront(key)
		if lru.order.Len() > lru.capacity {
			lru.evictOldest()
		}
	}
}

func (lru *appliedLRU) size() int { return lru.order.Len() }

// --- Replay accounting ---

// AppliedStats tracks replay hits per tier.
// Not thread-safe; only the single-threaded engine touches it.
type AppliedStats struct {
	replaysLRU   map[event.EventType]int64
	replaysStore map[event.EventType]int64
	tier2Errors  int64
}

func newAppliedStats() *AppliedStats {
	return &AppliedStats{
		replaysLRU:   make(map[event.EventType]int64),
		replaysStore: make(map[event.EventType]int64),
	}
}

func (s *AppliedStats) recordReplay(eventType event.EventType, tier string) {
	if tier == "lru" {
		s.replaysLRU[eventType]++
	} else {
		s.replaysStore[eventType]++
	}
}

func (s *AppliedStats) recordTier2Error() {
	s.tier2Errors++
}

// Replays returns the per-tier replay counts for an event type.
func (s *AppliedStats) Replays(eventType event.EventType) (lru int64, store int64) {
	return s.replaysLRU[eventType], s.replaysStore[eventType]
}

func (s *AppliedStats) Tier2Errors() int64 {
	return s.tier2Errors
}
