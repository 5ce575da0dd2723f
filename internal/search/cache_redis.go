package search

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"feedstream/aggregator/internal/domain"
)

const redisCachePrefix = "feedstream:cache:"

// RedisCache stores merged records in Redis as JSON with a native TTL.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

func (r *RedisCache) Get(ctx context.Context, query, source string) ([]domain.Record, error) {
	data, err := r.client.Get(ctx, redisCacheKey(query, source)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, cacheUnavailable("redis get", err)
	}
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, cacheUnavailable("decode", err)
	}
	return records, nil
}

func (r *RedisCache) Set(ctx context.Context, query, source string, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return cacheUnavailable("encode", err)
	}
	if err := r.client.Set(ctx, redisCacheKey(query, source), data, r.ttl).Err(); err != nil {
		return cacheUnavailable("redis set", err)
	}
	return nil
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func redisCacheKey(query, source string) string {
	return redisCachePrefix + strings.ToLower(strings.TrimSpace(source)) + ":" + normalizeCacheQuery(query)
}
