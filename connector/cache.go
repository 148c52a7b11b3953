package connector

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/syssam/veloxq"
	"github.com/syssam/veloxq/dialect/sql"
	"github.com/syssam/veloxq/queryast"
	"github.com/syssam/veloxq/schema"
)

// MemoryCache is a process local veloxq.Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
	now     func() time.Time
}

type cacheEntry struct {
	value   []byte
	expires time.Time
}

// NewMemoryCache returns an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]cacheEntry), now: time.Now}
}

// Get implements veloxq.Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, nil
	}
	return e.value, nil
}

// Set implements veloxq.Cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := cacheEntry{value: value}
	if ttl > 0 {
		e.expires = c.now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
	return nil
}

// Delete implements veloxq.Cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	delete(c.entries, key)
	c.mu.Unlock()
	return nil
}

// DeletePrefix implements veloxq.Cache.
func (c *MemoryCache) DeletePrefix(_ context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	return nil
}

// Clear implements veloxq.Cache.
func (c *MemoryCache) Clear(context.Context) error {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
	return nil
}

// Len returns the number of entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

var _ veloxq.Cache = (*MemoryCache)(nil)

// encodeRecords encodes records for the cache.
func encodeRecords(m *queryast.ManyRecords) ([]byte, error) {
	return msgpack.Marshal(m)
}

// decodeRecords decodes cached records and converts their values back to
// the types of fields.
func decodeRecords(b []byte, fields []*schema.Field) (*queryast.ManyRecords, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	var m queryast.ManyRecords
	if err := dec.Decode(&m); err != nil {
		return nil, err
	}
	for _, r := range m.Records {
		for i, f := range fields {
			if i >= len(r.Values) {
				break
			}
			v, err := sql.Coerce(f.Type, r.Values[i])
			if err != nil {
				return nil, err
			}
			r.Values[i] = v
		}
	}
	return &m, nil
}
