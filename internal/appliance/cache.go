package appliance

import (
	"sort"
	"sync"
	"time"
)

// Cache is the process-wide store of the latest appliance records, keyed by
// device id.
//
// All methods are safe for concurrent use. Records passed in and handed
// out are copies, so callers never share state with the cache.
type Cache struct {
	mu        sync.RWMutex
	records   map[string]Record
	updatedAt time.Time
	now       func() time.Time
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{
		records: make(map[string]Record),
		now:     time.Now,
	}
}

// Get returns the record for deviceID. A miss is a normal outcome: the
// device may have been removed from the account or not yet polled.
func (c *Cache) Get(deviceID string) (Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, ok := c.records[deviceID]
	if !ok {
		return Record{}, false
	}
	return r.Clone(), true
}

// Snapshot returns every record, sorted by device id.
func (c *Cache) Snapshot() []Record {
	c.mu.RLock()
	out := make([]Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r.Clone())
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].Ident.DeviceID < out[j].Ident.DeviceID
	})
	return out
}

// ReplaceAll swaps the cache contents for records. Records without a device
// id are dropped.
func (c *Cache) ReplaceAll(records []Record) {
	next := make(map[string]Record, len(records))
	for _, r := range records {
		if r.Ident.DeviceID == "" {
			continue
		}
		next[r.Ident.DeviceID] = r.Clone()
	}

	c.mu.Lock()
	c.records = next
	c.updatedAt = c.now()
	c.mu.Unlock()
}

// Put inserts or replaces a single record.
func (c *Cache) Put(r Record) error {
	if r.Ident.DeviceID == "" {
		return ErrMissingIdentity
	}

	c.mu.Lock()
	c.records[r.Ident.DeviceID] = r.Clone()
	c.updatedAt = c.now()
	c.mu.Unlock()
	return nil
}

// Delete removes deviceID. Deleting an unknown id is a no-op.
func (c *Cache) Delete(deviceID string) {
	c.mu.Lock()
	delete(c.records, deviceID)
	c.mu.Unlock()
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.records)
}

// UpdatedAt returns when the cache was last written, or the zero time if
// it never has been.
func (c *Cache) UpdatedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.updatedAt
}
