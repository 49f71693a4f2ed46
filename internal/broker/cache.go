package broker

import (
	"context"
	"log"
	"sync"
	"time"

	"snaprpc/server/internal/snaps"
)

// snapCache stores installed-snap lookups with TTL. Permissions are never
// cached: every merge must read the store.
type snapCache struct {
	mu    sync.RWMutex
	items map[string]*snapCacheItem
	ttl   time.Duration
}

type snapCacheItem struct {
	snap      snaps.Snap
	found     bool
	expiresAt time.Time
}

func newSnapCache(ttl time.Duration) *snapCache {
	return &snapCache{
		items: make(map[string]*snapCacheItem),
		ttl:   ttl,
	}
}

// lookup returns the snap from cache or store. On store failure it falls back
// to a stale entry if one exists.
func (c *snapCache) lookup(ctx context.Context, store Store, id string) (snaps.Snap, bool, error) {
	if item := c.get(id); item != nil {
		return item.snap, item.found, nil
	}

	snap, found, err := store.GetSnap(ctx, id)
	if err != nil {
		if stale := c.getStale(id); stale != nil {
			log.Printf("snap lookup: using stale cache for %s due to: %v", id, err)
			c.set(id, stale.snap, stale.found)
			return stale.snap, stale.found, nil
		}
		return snaps.Snap{}, false, err
	}

	c.set(id, snap, found)
	return snap, found, nil
}

func (c *snapCache) get(id string) *snapCacheItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[id]
	if !ok {
		return nil
	}

	if time.Now().After(item.expiresAt) {
		return nil
	}

	return item
}

// getStale returns the cached entry even if expired (for graceful degradation).
func (c *snapCache) getStale(id string) *snapCacheItem {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[id]
	if !ok {
		return nil
	}
	return item
}

func (c *snapCache) set(id string, snap snaps.Snap, found bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[id] = &snapCacheItem{
		snap:      snap,
		found:     found,
		expiresAt: time.Now().Add(c.ttl),
	}
}

func (c *snapCache) delete(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, id)
}
