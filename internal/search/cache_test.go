package search

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"feedstream/aggregator/internal/domain"
)

func TestMemoryCacheMissOnEmpty(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 10)
	records, err := cache.Get(context.Background(), "x", "rss")
	if err != nil {
		t.Fatalf("expected no error on miss, got %v", err)
	}
	if records != nil {
		t.Fatalf("expected nil records on miss, got %v", records)
	}
}

func TestMemoryCacheNormalizesQuery(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 10)
	_ = cache.Set(context.Background(), "  Covid ", "rss", []domain.Record{{Link: "a"}})

	records, _ := cache.Get(context.Background(), "covid", "RSS")
	if len(records) != 1 {
		t.Fatalf("expected normalized key hit, got %d records", len(records))
	}
	other, _ := cache.Get(context.Background(), "covid", "twitter")
	if other != nil {
		t.Fatal("expected sources to have separate entries")
	}
}

func TestMemoryCacheExpires(t *testing.T) {
	cache := NewMemoryCache(time.Minute, 10)
	now := time.Now()
	cache.now = func() time.Time { return now }
	_ = cache.Set(context.Background(), "x", "rss", []domain.Record{{Link: "a"}})

	cache.now = func() time.Time { return now.Add(59 * time.Second) }
	if records, _ := cache.Get(context.Background(), "x", "rss"); len(records) != 1 {
		t.Fatal("expected entry before TTL")
	}

	cache.now = func() time.Time { return now.Add(time.Minute) }
	if records, _ := cache.Get(context.Background(), "x", "rss"); records != nil {
		t.Fatal("expected entry to expire at TTL")
	}
	if cache.Len() != 0 {
		t.Fatalf("expected expired entry removed, got %d", cache.Len())
	}
}

func TestMemoryCacheOverwriteRestartsTTL(t *testing.T) {
	cache := NewMemoryCache(time.Minute, 10)
	now := time.Now()
	cache.now = func() time.Time { return now }
	_ = cache.Set(context.Background(), "x", "rss", []domain.Record{{Link: "a"}})

	cache.now = func() time.Time { return now.Add(50 * time.Second) }
	_ = cache.Set(context.Background(), "x", "rss", []domain.Record{{Link: "b"}})

	cache.now = func() time.Time { return now.Add(90 * time.Second) }
	records, _ := cache.Get(context.Background(), "x", "rss")
	if len(records) != 1 || records[0].Link != "b" {
		t.Fatalf("expected last write to win and live, got %v", records)
	}
}

func TestMemoryCacheClonesRecords(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 10)
	input := []domain.Record{{Link: "a", Title: "first write"}}
	_ = cache.Set(context.Background(), "x", "rss", input)
	input[0].Title = "mutated input"

	first, _ := cache.Get(context.Background(), "x", "rss")
	first[0].Title = "mutated output"

	second, _ := cache.Get(context.Background(), "x", "rss")
	if second[0].Title != "first write" {
		t.Fatalf("cache entry was mutated: %q", second[0].Title)
	}
}

func TestMemoryCacheTrimEvictsOldest(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 2)
	base := time.Now()
	for i := 0; i < 3; i++ {
		stamp := base.Add(time.Duration(i) * time.Second)
		cache.now = func() time.Time { return stamp }
		_ = cache.Set(context.Background(), fmt.Sprintf("q%d", i), "rss", []domain.Record{{Link: "a"}})
	}

	if cache.Len() != 2 {
		t.Fatalf("expected 2 entries after trim, got %d", cache.Len())
	}
	if records, _ := cache.Get(context.Background(), "q0", "rss"); records != nil {
		t.Fatal("expected oldest entry evicted")
	}
	if records, _ := cache.Get(context.Background(), "q2", "rss"); records == nil {
		t.Fatal("expected newest entry kept")
	}
}

func TestMemoryCacheConcurrentAccess(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 50)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			query := fmt.Sprintf("q%d", n%5)
			_ = cache.Set(context.Background(), query, "rss", []domain.Record{{Link: query}})
			_, _ = cache.Get(context.Background(), query, "rss")
		}(i)
	}
	wg.Wait()
	if cache.Len() != 5 {
		t.Fatalf("expected 5 entries, got %d", cache.Len())
	}
}

func newMiniredisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	server := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return server, client
}

func TestRedisCacheRoundTripAndTTL(t *testing.T) {
	server, client := newMiniredisClient(t)
	cache := NewRedisCache(client, time.Minute)
	ctx := context.Background()

	records := []domain.Record{{Title: "a", Link: "https://a", Published: at(1), Category: domain.CategoryNews}}
	if err := cache.Set(ctx, " Go ", "rss", records); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !server.Exists("feedstream:cache:rss:go") {
		t.Fatalf("expected normalized key, have %v", server.Keys())
	}
	if ttl := server.TTL("feedstream:cache:rss:go"); ttl != time.Minute {
		t.Fatalf("expected 1m ttl, got %v", ttl)
	}

	got, err := cache.Get(ctx, "go", "rss")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got) != 1 || got[0].Link != "https://a" || !got[0].Published.Equal(at(1)) {
		t.Fatalf("unexpected records: %+v", got)
	}

	server.FastForward(time.Minute + time.Second)
	got, err = cache.Get(ctx, "go", "rss")
	if err != nil || got != nil {
		t.Fatalf("expected expired miss, got %v, %v", got, err)
	}
}

func TestRedisCacheUnavailable(t *testing.T) {
	server, client := newMiniredisClient(t)
	cache := NewRedisCache(client, time.Minute)
	server.Close()

	_, err := cache.Get(context.Background(), "go", "rss")
	if !errors.Is(err, domain.ErrCacheUnavailable) {
		t.Fatalf("expected ErrCacheUnavailable, got %v", err)
	}
	if err := cache.Set(context.Background(), "go", "rss", nil); !errors.Is(err, domain.ErrCacheUnavailable) {
		t.Fatalf("expected ErrCacheUnavailable on set, got %v", err)
	}
}

func TestRedisCacheCorruptValue(t *testing.T) {
	server, client := newMiniredisClient(t)
	cache := NewRedisCache(client, time.Minute)
	_ = server.Set("feedstream:cache:rss:go", "{not json")

	_, err := cache.Get(context.Background(), "go", "rss")
	if !errors.Is(err, domain.ErrCacheUnavailable) {
		t.Fatalf("expected ErrCacheUnavailable for corrupt value, got %v", err)
	}
}

func TestLayeredCacheFallsBackToMemory(t *testing.T) {
	server, client := newMiniredisClient(t)
	local := NewMemoryCache(time.Hour, 10)
	cache := NewLayeredCache(NewRedisCache(client, time.Hour), local)
	ctx := context.Background()

	if err := cache.Set(ctx, "go", "rss", []domain.Record{{Link: "https://a"}}); err != nil {
		t.Fatalf("set: %v", err)
	}
	server.Close()

	records, err := cache.Get(ctx, "go", "rss")
	if err != nil {
		t.Fatalf("expected memory fallback without error, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected fallback records, got %v", records)
	}

	_, err = cache.Get(ctx, "other", "rss")
	if !errors.Is(err, domain.ErrCacheUnavailable) {
		t.Fatalf("expected redis failure surfaced on full miss, got %v", err)
	}
}

func TestLayeredCacheCopiesRedisHitsLocally(t *testing.T) {
	_, client := newMiniredisClient(t)
	remote := NewRedisCache(client, time.Hour)
	local := NewMemoryCache(time.Hour, 10)
	cache := NewLayeredCache(remote, local)
	ctx := context.Background()

	_ = remote.Set(ctx, "go", "rss", []domain.Record{{Link: "https://a"}})
	if _, err := cache.Get(ctx, "go", "rss"); err != nil {
		t.Fatalf("get: %v", err)
	}
	if records, _ := local.Get(ctx, "go", "rss"); len(records) != 1 {
		t.Fatal("expected redis hit copied into memory")
	}
}

type brokenCache struct{}

func (brokenCache) Get(context.Context, string, string) ([]domain.Record, error) {
	return nil, fmt.Errorf("%w: boom", domain.ErrCacheUnavailable)
}

func (brokenCache) Set(context.Context, string, string, []domain.Record) error {
	return fmt.Errorf("%w: boom", domain.ErrCacheUnavailable)
}

func TestAggregateTreatsCacheFailureAsEmpty(t *testing.T) {
	svc := NewService([]Adapter{
		&fakeAdapter{name: "rss", category: domain.CategoryNews, records: []domain.Record{{Title: "a", Link: "https://a"}}},
	}, time.Second, WithCache(brokenCache{}))

	results, _, err := svc.Aggregate(context.Background(), "x")
	if err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	if len(results[domain.CategoryNews]) != 1 {
		t.Fatalf("expected fresh results despite cache failure, got %d", len(results[domain.CategoryNews]))
	}
}
