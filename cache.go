package anglefix

import (
	"sync"

	"github.com/google/uuid"
)

// AngleCache holds the orientation of players that are inside a teleport volume
// and have not been restored yet, keyed by slot.
//
// An entry is created once per capture and removed once per consume. Entries may
// carry the identity of the session that captured them and the tick they were
// captured at, so that a consume by a different occupant of the slot, or after the
// time-to-live has passed, is treated as a miss.
type AngleCache struct {
	mu      sync.Mutex
	entries map[Slot]angleEntry

	// ttl is the number of ticks an owned entry stays valid. Zero disables expiry.
	ttl uint64
}

// angleEntry is a single cached orientation.
type angleEntry struct {
	orientation Orientation
	owner       uuid.UUID
	tick        uint64
}

// NewAngleCache creates an empty cache. ttl is measured in ticks; zero keeps
// entries until they are consumed or forgotten.
func NewAngleCache(ttl uint64) *AngleCache {
	return &AngleCache{
		entries: make(map[Slot]angleEntry),
		ttl:     ttl,
	}
}

// Capture stores o for slot, overwriting any existing entry.
func (c *AngleCache) Capture(slot Slot, o Orientation) {
	c.CaptureFor(slot, uuid.Nil, 0, o)
}

// CaptureFor stores o for slot on behalf of owner at the given tick, overwriting
// any existing entry.
func (c *AngleCache) CaptureFor(slot Slot, owner uuid.UUID, tick uint64, o Orientation) {
	c.mu.Lock()
	c.entries[slot] = angleEntry{orientation: o, owner: owner, tick: tick}
	c.mu.Unlock()
}

// ConsumeIfPresent removes and returns the entry for slot. The second return
// value is false if there was no entry.
func (c *AngleCache) ConsumeIfPresent(slot Slot) (Orientation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[slot]
	if !ok {
		return Orientation{}, false
	}
	delete(c.entries, slot)
	return e.orientation, true
}

// ConsumeFor removes the entry for slot and returns it if it was captured by
// owner and has not expired at tick. A stale entry is removed and reported as a miss.
func (c *AngleCache) ConsumeFor(slot Slot, owner uuid.UUID, tick uint64) (Orientation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[slot]
	if !ok {
		return Orientation{}, false
	}
	delete(c.entries, slot)

	if e.owner != owner {
		return Orientation{}, false
	}
	if c.ttl > 0 && tick > e.tick+c.ttl {
		return Orientation{}, false
	}
	return e.orientation, true
}

// Forget drops the entry for slot, if any.
func (c *AngleCache) Forget(slot Slot) {
	c.mu.Lock()
	delete(c.entries, slot)
	c.mu.Unlock()
}

// Len returns the number of cached entries.
func (c *AngleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
