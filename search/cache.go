package search

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/brensch/pursuit/game"
)

// ErrCacheConflict means one fingerprint produced two different decisions,
// which can only happen if fingerprints miss decision-relevant state.
var ErrCacheConflict = errors.New("decision cache conflict")

// DecisionCache memoizes root decisions for one game session.
// Entries are only ever added.
type DecisionCache struct {
	mu      sync.RWMutex
	entries map[Fingerprint]game.Move

	hits   atomic.Int64
	misses atomic.Int64
}

func NewDecisionCache() *DecisionCache {
	return &DecisionCache{entries: make(map[Fingerprint]game.Move)}
}

func (c *DecisionCache) Lookup(fp Fingerprint) (game.Move, bool) {
	c.mu.RLock()
	m, ok := c.entries[fp]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return m, ok
}

// Store records move for fp. Storing the same move again is a no-op; a
// different move leaves the entry untouched and returns ErrCacheConflict.
func (c *DecisionCache) Store(fp Fingerprint, move game.Move) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if prev, ok := c.entries[fp]; ok {
		if prev != move {
			return fmt.Errorf("%w: cached %s, computed %s", ErrCacheConflict, prev, move)
		}
		return nil
	}
	c.entries[fp] = move
	return nil
}

func (c *DecisionCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats returns lookup hits and misses.
func (c *DecisionCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
