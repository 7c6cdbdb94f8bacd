// Package fieldcache resolves field names (as they appear in a qp
// expression) against their declared record type, backed by Redis with a
// Postgres fallback and singleflight-deduplicated misses.
package fieldcache

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/config"
	pkgpostgres "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/bulk-consume-coordinator/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "fieldtype:"

// FieldType is the declared scalar type of a record field, used to decide
// how a qp comparator's raw value should be interpreted.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeNumber FieldType = "number"
	FieldTypeBool   FieldType = "bool"
	FieldTypeDate   FieldType = "date"
	FieldTypeUnknown FieldType = "unknown"
)

// Cache resolves field names to FieldType, requires `field_types(name TEXT
// PRIMARY KEY, type TEXT NOT NULL)` in Postgres as the source of truth.
type Cache struct {
	redis  *pkgredis.Client
	db     *pkgpostgres.Client
	cfg    config.RedisConfig
	group  singleflight.Group
	logger *slog.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// New creates a field-types Cache. db may be nil, in which case unresolved
// fields fall back to FieldTypeUnknown (treated as string-comparable) rather
// than failing the request.
func New(redis *pkgredis.Client, db *pkgpostgres.Client, cfg config.RedisConfig) *Cache {
	return &Cache{
		redis:  redis,
		db:     db,
		cfg:    cfg,
		logger: slog.Default().With("component", "field-types-cache"),
	}
}

// Resolve returns the declared FieldType for fieldName, consulting Redis
// first, falling back to Postgres on a cache miss, and deduplicating
// concurrent misses for the same field via singleflight.
func (c *Cache) Resolve(ctx context.Context, fieldName string) (FieldType, error) {
	key := keyPrefix + fieldName
	if cached, err := c.redis.Get(ctx, key); err == nil {
		c.hits.Add(1)
		var ft FieldType
		if jsonErr := json.Unmarshal([]byte(cached), &ft); jsonErr == nil {
			return ft, nil
		}
	} else if !pkgredis.IsNilError(err) {
		c.logger.Error("field cache get failed", "field", fieldName, "error", err)
	}

	c.misses.Add(1)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		ft, err := c.lookup(ctx, fieldName)
		if err != nil {
			return nil, err
		}
		if data, marshalErr := json.Marshal(ft); marshalErr == nil {
			if setErr := c.redis.Set(ctx, key, data, c.cfg.CacheTTL); setErr != nil {
				c.logger.Error("field cache set failed", "field", fieldName, "error", setErr)
			}
		}
		return ft, nil
	})
	if err != nil {
		return FieldTypeUnknown, err
	}
	return val.(FieldType), nil
}

// ResolveAll resolves every field referenced by a parsed filter tree,
// mainly used to surface typed validation errors eagerly rather than at
// search-probe time.
func (c *Cache) ResolveAll(ctx context.Context, fields []string) (map[string]FieldType, error) {
	out := make(map[string]FieldType, len(fields))
	for _, f := range fields {
		ft, err := c.Resolve(ctx, f)
		if err != nil {
			return nil, fmt.Errorf("resolving field %q: %w", f, err)
		}
		out[f] = ft
	}
	return out, nil
}

func (c *Cache) lookup(ctx context.Context, fieldName string) (FieldType, error) {
	if c.db == nil {
		return FieldTypeUnknown, nil
	}
	var typ string
	err := c.db.DB.QueryRowContext(ctx,
		`SELECT type FROM field_types WHERE name = $1`, fieldName,
	).Scan(&typ)
	if err == sql.ErrNoRows {
		return FieldTypeUnknown, nil
	}
	if err != nil {
		return FieldTypeUnknown, fmt.Errorf("querying field type for %q: %w", fieldName, err)
	}
	switch FieldType(typ) {
	case FieldTypeString, FieldTypeNumber, FieldTypeBool, FieldTypeDate:
		return FieldType(typ), nil
	default:
		return FieldTypeUnknown, nil
	}
}

// Stats returns cumulative hit/miss counters.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Invalidate clears all cached field-type entries.
func (c *Cache) Invalidate(ctx context.Context) error {
	deleted, err := c.redis.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating field cache: %w", err)
	}
	c.logger.Info("field cache invalidated", "keys_deleted", deleted)
	return nil
}
