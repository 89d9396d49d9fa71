package cache

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// ReportCache caches rendered report payloads in Redis. An unreachable server
// degrades to cache misses; reports are always servable from the database.
type ReportCache struct {
	client *redis.Client
}

// NewReportCache connects to Redis and verifies the connection. On failure it
// logs and returns a cache that misses every lookup.
func NewReportCache(addr, password string, db int) *ReportCache {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("cache: redis at %s unreachable, reports will not be cached: %v", addr, err)
		return &ReportCache{client: nil}
	}
	return &ReportCache{client: client}
}

func (c *ReportCache) Get(ctx context.Context, key string) (string, bool) {
	if c == nil || c.client == nil {
		return "", false
	}
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("cache: get %q failed: %v", key, err)
		}
		return "", false
	}
	return val, true
}

func (c *ReportCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		log.Printf("cache: set %q failed: %v", key, err)
	}
}
