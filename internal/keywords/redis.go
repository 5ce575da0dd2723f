package keywords

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

const redisHashKey = "feedstream:keywords"

// RedisStore keeps counts in one hash, field per keyword.
type RedisStore struct {
	client *redis.Client
	key    string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, key: redisHashKey}
}

func (s *RedisStore) Load(ctx context.Context) (map[string]int, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("redis hgetall: %w", err)
	}
	counts := make(map[string]int, len(fields))
	for keyword, raw := range fields {
		count, err := strconv.Atoi(raw)
		if err != nil {
			continue
		}
		counts[keyword] = count
	}
	return counts, nil
}

func (s *RedisStore) Save(ctx context.Context, counts map[string]int) error {
	values := make(map[string]any, len(counts))
	for keyword, count := range counts {
		values[keyword] = count
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save keywords: %w", err)
	}
	return nil
}

func (s *RedisStore) Increment(ctx context.Context, keyword string) error {
	if err := s.client.HIncrBy(ctx, s.key, keyword, 1).Err(); err != nil {
		return fmt.Errorf("redis hincrby: %w", err)
	}
	return nil
}
