package report

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache memoizes report payloads in Redis so dashboard reloads within the
// TTL do not re-read the full range from the store. It is strictly best
// effort: every Redis failure degrades to a recompute.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
	log *zap.Logger
}

// NewCache wraps a Redis client. A nil client disables caching entirely.
func NewCache(rdb *redis.Client, ttl time.Duration, log *zap.Logger) *Cache {
	return &Cache{rdb: rdb, ttl: ttl, log: log}
}

// Key derives a cache key from the request shape. Parts typically include
// the report kind, range bounds, frequency and the filter cache key.
func Key(parts ...string) string {
	sum := sha1.Sum([]byte(strings.Join(parts, "|")))
	return "turnos:report:" + hex.EncodeToString(sum[:])
}

// Get loads a cached payload into dest. Returns false on miss, disabled
// cache, or any Redis or decode error.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Debug("report cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		c.log.Warn("report cache payload corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

// Set stores a payload under key for the configured TTL.
func (c *Cache) Set(ctx context.Context, key string, v interface{}) {
	if c == nil || c.rdb == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.log.Warn("report cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Debug("report cache write failed", zap.String("key", key), zap.Error(err))
	}
}
