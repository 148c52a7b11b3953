package veloxq

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Cache is the interface for caching non-transactional read results.
// Implementations may be backed by Redis, Memcached or process memory.
type Cache interface {
	// Get retrieves a value from the cache.
	// Returns nil, nil if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with an optional TTL.
	// If ttl is 0, the value should not expire.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache.
	Delete(ctx context.Context, key string) error

	// DeletePrefix removes all values with the given prefix.
	DeletePrefix(ctx context.Context, prefix string) error

	// Clear removes all values from the cache.
	Clear(ctx context.Context) error
}

// CacheKey identifies a cached read.
type CacheKey struct {
	Database   string
	Table      string
	Operation  string
	Predicates string
	OrderBy    string
	Fields     []string
	Limit      int
	Offset     int
}

// Prefix returns the key prefix shared by every read of the table. Writers
// invalidate with it.
func (k CacheKey) Prefix() string {
	return TablePrefix(k.Database, k.Table)
}

// String returns the string representation of the cache key.
func (k CacheKey) String() string {
	var sb strings.Builder
	sb.WriteString(k.Prefix())
	sb.WriteString(k.Operation)
	sb.WriteByte(':')
	sb.WriteString(k.Predicates)
	sb.WriteByte(':')
	sb.WriteString(k.OrderBy)
	sb.WriteByte(':')
	sb.WriteString(strings.Join(k.Fields, ","))
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(k.Limit))
	sb.WriteByte(':')
	sb.WriteString(strconv.Itoa(k.Offset))
	return sb.String()
}

// TablePrefix returns the cache key prefix of a table in a database.
func TablePrefix(database, table string) string {
	return database + ":" + table + ":"
}
