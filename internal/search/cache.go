package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"feedstream/aggregator/internal/domain"
	"feedstream/aggregator/internal/metrics"
)

const (
	defaultCacheTTL        = time.Hour
	defaultCacheMaxEntries = 2000
)

// ResultCache stores merged records per (query, source). A missing or
// expired entry is not an error; backend failures wrap
// domain.ErrCacheUnavailable.
type ResultCache interface {
	Get(ctx context.Context, query, source string) ([]domain.Record, error)
	Set(ctx context.Context, query, source string, records []domain.Record) error
}

type cachedRecords struct {
	records   []domain.Record
	updatedAt time.Time
	expiresAt time.Time
}

// MemoryCache is an in-process ResultCache with TTL expiry and a bound on
// the number of entries.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*cachedRecords
	ttl        time.Duration
	maxEntries int
	now        func() time.Time
}

func NewMemoryCache(ttl time.Duration, maxEntries int) *MemoryCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	if maxEntries <= 0 {
		maxEntries = defaultCacheMaxEntries
	}
	return &MemoryCache{
		entries:    make(map[string]*cachedRecords),
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, query, source string) ([]domain.Record, error) {
	key := cacheKey(query, source)
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if !now.Before(entry.expiresAt) {
		delete(c.entries, key)
		return nil, nil
	}
	return cloneRecords(entry.records), nil
}

func (c *MemoryCache) Set(_ context.Context, query, source string, records []domain.Record) error {
	c.store(cacheKey(query, source), records, c.now(), c.ttl)
	return nil
}

func (c *MemoryCache) store(key string, records []domain.Record, now time.Time, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &cachedRecords{
		records:   cloneRecords(records),
		updatedAt: now,
		expiresAt: now.Add(ttl),
	}
	c.trimLocked(now)
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) trimLocked(now time.Time) {
	for key, entry := range c.entries {
		if !now.Before(entry.expiresAt) {
			delete(c.entries, key)
		}
	}

	if len(c.entries) <= c.maxEntries {
		return
	}

	type pair struct {
		key   string
		entry *cachedRecords
	}
	items := make([]pair, 0, len(c.entries))
	for key, entry := range c.entries {
		items = append(items, pair{key: key, entry: entry})
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].entry.updatedAt.Before(items[j].entry.updatedAt)
	})
	for i := 0; i < len(items)-c.maxEntries; i++ {
		delete(c.entries, items[i].key)
	}
}

// LayeredCache reads Redis first and falls back to memory. Redis hits are
// copied into memory so a Redis outage still serves recent data.
type LayeredCache struct {
	remote ResultCache
	local  *MemoryCache
}

func NewLayeredCache(remote ResultCache, local *MemoryCache) *LayeredCache {
	return &LayeredCache{remote: remote, local: local}
}

func (c *LayeredCache) Get(ctx context.Context, query, source string) ([]domain.Record, error) {
	var remoteErr error
	if c.remote != nil {
		records, err := c.remote.Get(ctx, query, source)
		if err == nil && len(records) > 0 {
			if c.local != nil {
				_ = c.local.Set(ctx, query, source, records)
			}
			return records, nil
		}
		remoteErr = err
	}
	if c.local != nil {
		records, _ := c.local.Get(ctx, query, source)
		if len(records) > 0 {
			return records, nil
		}
	}
	return nil, remoteErr
}

func (c *LayeredCache) Set(ctx context.Context, query, source string, records []domain.Record) error {
	var remoteErr error
	if c.remote != nil {
		remoteErr = c.remote.Set(ctx, query, source, records)
	}
	if c.local != nil {
		_ = c.local.Set(ctx, query, source, records)
	}
	return remoteErr
}

// cacheLookup treats every cache failure as "no prior data".
func (s *Service) cacheLookup(ctx context.Context, query, source string) []domain.Record {
	if s.cacheDisabled || s.cache == nil {
		return nil
	}
	records, err := s.cache.Get(ctx, query, source)
	if err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("get").Inc()
		s.logger.Warn("result cache read failed",
			slog.String("source", source),
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		return nil
	}
	if len(records) == 0 {
		metrics.CacheMissesTotal.WithLabelValues(source).Inc()
		return nil
	}
	metrics.CacheHitsTotal.WithLabelValues(source).Inc()
	return records
}

func (s *Service) cacheStore(ctx context.Context, query, source string, records []domain.Record) {
	if s.cacheDisabled || s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, query, source, records); err != nil {
		metrics.CacheErrorsTotal.WithLabelValues("set").Inc()
		s.logger.Warn("result cache write failed",
			slog.String("source", source),
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
	}
}

func cacheKey(query, source string) string {
	return strings.ToLower(strings.TrimSpace(source)) + ":" + normalizeCacheQuery(query)
}

func normalizeCacheQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func cloneRecords(records []domain.Record) []domain.Record {
	if records == nil {
		return nil
	}
	return append([]domain.Record(nil), records...)
}

func cacheUnavailable(op string, err error) error {
	if errors.Is(err, domain.ErrCacheUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrCacheUnavailable, op, err)
}
