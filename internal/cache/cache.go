// Package cache keeps the most recent snapshot per entity and, while enabled,
// an append-only history of every snapshot received.
//
// The cache is safe for concurrent use. A single router goroutine ingests while
// verifiers and waiters read; readers block on Changed to learn about new data
// instead of polling blindly.
package cache

import (
	"sort"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/ioseq/internal/snapshot"
)

// NormalizeEntity returns the NFC form of an entity ID. Ingest and every
// lookup key by it, so visually equal names written with different Unicode
// compositions address the same entry.
func NormalizeEntity(id string) string {
	return norm.NFC.String(id)
}

type entry struct {
	last    snapshot.Snapshot
	hasLast bool
	history []snapshot.Snapshot
}

// Cache is the entity state cache.
type Cache struct {
	mu             sync.RWMutex
	entities       map[string]*entry
	historyEnabled bool
	epoch          uint64
	changed        chan struct{}
}

// New creates an empty cache with history disabled.
func New() *Cache {
	return &Cache{
		entities: make(map[string]*entry),
		changed:  make(chan struct{}),
	}
}

// Ingest records s for s.EntityID.
//
// The last snapshot is replaced when s is at least as recent as the current
// one; on equal timestamps the later-ingested snapshot wins. While history is
// enabled s is appended as received, never reordered or deduplicated.
func (c *Cache) Ingest(s snapshot.Snapshot) {
	s = s.Clone()
	s.EntityID = NormalizeEntity(s.EntityID)

	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entities[s.EntityID]
	if e == nil {
		e = &entry{}
		c.entities[s.EntityID] = e
	}

	if !e.hasLast || !s.Timestamp.Before(e.last.Timestamp) {
		e.last = s
		e.hasLast = true
	}

	if c.historyEnabled {
		e.history = append(e.history, s)
	}

	c.broadcastLocked()
}

// Last returns the most recent snapshot of id.
func (c *Cache) Last(id string) (snapshot.Snapshot, bool) {
	id = NormalizeEntity(id)
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.entities[id]
	if e == nil || !e.hasLast {
		return snapshot.Snapshot{}, false
	}
	return e.last.Clone(), true
}

// History returns a copy of the recorded history of id, oldest first.
func (c *Cache) History(id string) []snapshot.Snapshot {
	id = NormalizeEntity(id)
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.entities[id]
	if e == nil {
		return []snapshot.Snapshot{}
	}
	out := make([]snapshot.Snapshot, len(e.history))
	for i, s := range e.history {
		out[i] = s.Clone()
	}
	return out
}

// HistoryLen returns the number of recorded snapshots of id.
func (c *Cache) HistoryLen(id string) int {
	id = NormalizeEntity(id)
	c.mu.RLock()
	defer c.mu.RUnlock()

	if e := c.entities[id]; e != nil {
		return len(e.history)
	}
	return 0
}

// HistoryAt returns history entry i of id. Scanning by index lets a reader
// see snapshots appended while it scans.
func (c *Cache) HistoryAt(id string, i int) (snapshot.Snapshot, bool) {
	id = NormalizeEntity(id)
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.entities[id]
	if e == nil || i < 0 || i >= len(e.history) {
		return snapshot.Snapshot{}, false
	}
	return e.history[i].Clone(), true
}

// Tail returns up to the n most recent history entries of id.
func (c *Cache) Tail(id string, n int) []snapshot.Snapshot {
	id = NormalizeEntity(id)
	c.mu.RLock()
	defer c.mu.RUnlock()

	e := c.entities[id]
	if e == nil || n <= 0 {
		return []snapshot.Snapshot{}
	}
	start := len(e.history) - n
	if start < 0 {
		start = 0
	}
	out := make([]snapshot.Snapshot, 0, len(e.history)-start)
	for _, s := range e.history[start:] {
		out = append(out, s.Clone())
	}
	return out
}

// EnableHistory switches history recording on or off for all entities.
// Already recorded history is kept.
func (c *Cache) EnableHistory(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.historyEnabled = on
}

// HistoryEnabled reports whether history recording is on.
func (c *Cache) HistoryEnabled() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.historyEnabled
}

// ClearHistory drops all recorded history and advances the epoch.
// Last snapshots are untouched.
func (c *Cache) ClearHistory() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, e := range c.entities {
		e.history = nil
	}
	c.epoch++
	c.broadcastLocked()
}

// Epoch counts ClearHistory calls. Readers holding history cursors compare
// epochs to detect that their cursors no longer point into the same history.
func (c *Cache) Epoch() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.epoch
}

// Entities returns the known entity IDs, sorted.
func (c *Cache) Entities() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]string, 0, len(c.entities))
	for id := range c.entities {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Changed returns a channel that is closed on the next ingest or clear.
// Fetch a fresh channel after each wake-up.
func (c *Cache) Changed() <-chan struct{} {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.changed
}

func (c *Cache) broadcastLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}
