// Package cache is a thin JSON cache over Redis. Cache errors degrade to
// misses; the caller always has the DB as the source of truth.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const defaultTTL = 5 * time.Minute

type Cache struct {
	Rdb *redis.Client
}

// Get unmarshals the cached value into dest. Returns false on miss or any
// cache error.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil || c.Rdb == nil {
		return false
	}
	data, err := c.Rdb.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Warn().Err(err).Str("key", key).Msg("Cache get failed")
		}
		return false
	}
	if err := json.Unmarshal(data, dest); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache unmarshal failed")
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	if c == nil || c.Rdb == nil {
		return
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	data, err := json.Marshal(value)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache marshal failed")
		return
	}
	if err := c.Rdb.Set(ctx, key, data, ttl).Err(); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache set failed")
	}
}

func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || c.Rdb == nil || len(keys) == 0 {
		return
	}
	if err := c.Rdb.Del(ctx, keys...).Err(); err != nil {
		log.Warn().Err(err).Strs("keys", keys).Msg("Cache delete failed")
	}
}
