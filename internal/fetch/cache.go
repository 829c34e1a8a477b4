package fetch

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/roach88/tablekit/internal/row"
)

// Cache is the single lazily-populated slot holding the full dataset.
//
// Readers receive the current slice and must not modify it. Mutations are
// copy-on-write: Put and Remove install a new slice, so a snapshot taken
// before a mutation keeps observing the old rows.
//
// Concurrent cold loads are coalesced into one Source call.
type Cache struct {
	source Source

	mu     sync.RWMutex
	rows   []row.Row
	loaded bool
	gen    uint64 // bumped by Invalidate; stale loads are not installed

	loads singleflight.Group
}

// NewCache creates an empty cache over source.
func NewCache(source Source) *Cache {
	return &Cache{source: source}
}

// Snapshot returns the cached rows without loading.
func (c *Cache) Snapshot() ([]row.Row, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.rows, c.loaded
}

// Loaded reports whether the slot is populated.
func (c *Cache) Loaded() bool {
	_, ok := c.Snapshot()
	return ok
}

// GetOrLoad returns the cached rows, loading them from the source on a miss.
//
// The source runs detached from any single caller's cancellation so that
// one caller giving up does not fail the others waiting on the same load.
func (c *Cache) GetOrLoad(ctx context.Context) ([]row.Row, error) {
	if rows, ok := c.Snapshot(); ok {
		return rows, nil
	}

	ch := c.loads.DoChan("load", func() (any, error) {
		c.mu.RLock()
		gen := c.gen
		c.mu.RUnlock()

		rows, err := c.source.Load(context.WithoutCancel(ctx))
		if err != nil {
			return nil, fmt.Errorf("load dataset: %w", err)
		}
		if rows == nil {
			rows = []row.Row{}
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.gen == gen {
			c.rows = rows
			c.loaded = true
		}
		return rows, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]row.Row), nil
	}
}

// Invalidate empties the slot. The next GetOrLoad reloads from the source.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rows = nil
	c.loaded = false
	c.gen++
}

// Put replaces the row with r.ID in place. It reports false when the slot is
// empty or holds no such row.
func (c *Cache) Put(r row.Row) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return false
	}
	i := row.IndexOf(c.rows, r.ID)
	if i < 0 {
		return false
	}
	next := slices.Clone(c.rows)
	next[i] = r
	c.rows = next
	return true
}

// Remove drops the row with id. It reports false when nothing was removed.
func (c *Cache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.loaded {
		return false
	}
	i := row.IndexOf(c.rows, id)
	if i < 0 {
		return false
	}
	next := make([]row.Row, 0, len(c.rows)-1)
	next = append(next, c.rows[:i]...)
	next = append(next, c.rows[i+1:]...)
	c.rows = next
	return true
}
