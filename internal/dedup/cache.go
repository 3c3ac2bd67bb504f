// Package dedup implements the point identity / dedup cache (spec C3): an
// in-process set keyed by canonical fingerprint, bounded to K entries, with a
// flush-on-overflow protocol into the persistent store.
package dedup

import (
	"context"
	"fmt"
	"sync"

	"github.com/rawblock/constructible-engine/internal/geometry"
)

// Result is the outcome of Offer.
type Result int

const (
	// Seen means the fingerprint was already cached; the caller's point is
	// dropped.
	Seen Result = iota
	// Inserted means the point was newly cached, no flush occurred.
	Inserted
	// FlushedAndInserted means the cache was full, its contents were
	// flushed to the store and dropped, and the point was then inserted into
	// the now-empty cache. With capacity 0 it means the point was written
	// straight to the store and not cached.
	FlushedAndInserted
)

// Flusher is what the store must provide for Cache.Flush to persist entries.
// It is implemented by internal/store.Store; defining it here keeps the cache
// from depending on the store package's concrete pgx types.
type Flusher interface {
	// InsertManyKnown persists every not-yet-stored point in one batched
	// transaction under a cross-worker exclusive lease on the known table,
	// and returns the rows actually added (duplicates already present
	// contribute 0).
	InsertManyKnown(ctx context.Context, points []*geometry.Point) (int64, error)
}

// Cache is the bounded fingerprint -> point map described in spec.md §4.3.
// capacity == 0 disables the cache: every Offer flushes immediately.
type Cache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*geometry.Point
	store    Flusher
}

// New constructs a Cache with the given capacity K and backing store.
func New(capacity int, store Flusher) *Cache {
	return &Cache{
		capacity: capacity,
		entries:  make(map[string]*geometry.Point),
		store:    store,
	}
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Offer implements spec.md §4.3's Offer operation.
func (c *Cache) Offer(ctx context.Context, p *geometry.Point) (Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.capacity <= 0 {
		if _, err := c.store.InsertManyKnown(ctx, []*geometry.Point{p}); err != nil {
			return Seen, fmt.Errorf("dedup: flush-disabled insert: %w", err)
		}
		return FlushedAndInserted, nil
	}

	if _, ok := c.entries[p.Fingerprint]; ok {
		return Seen, nil
	}

	if len(c.entries) < c.capacity {
		c.entries[p.Fingerprint] = p
		return Inserted, nil
	}

	if err := c.flushLocked(ctx); err != nil {
		return Seen, err
	}
	c.entries[p.Fingerprint] = p
	return FlushedAndInserted, nil
}

// Flush runs the flush protocol from spec.md §4.3 unconditionally: every
// cached entry whose InStore is false is emitted to the store as one batched
// upsert, marked InStore=true, and then — only if the cache is at or above
// capacity — the entire cache is dropped. Per spec.md §9, clearing only at
// capacity (not on every intermediate flush) is an intentional performance
// knob, not a bug: see DESIGN.md's Open Question decisions.
func (c *Cache) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushLocked(ctx)
}

func (c *Cache) flushLocked(ctx context.Context) error {
	pending := make([]*geometry.Point, 0, len(c.entries))
	for _, p := range c.entries {
		if !p.InStore {
			pending = append(pending, p)
		}
	}

	if len(pending) > 0 {
		if _, err := c.store.InsertManyKnown(ctx, pending); err != nil {
			return fmt.Errorf("dedup: flush: %w", err)
		}
		for _, p := range pending {
			p.InStore = true
		}
	}

	if len(c.entries) >= c.capacity {
		c.entries = make(map[string]*geometry.Point)
	}
	return nil
}
