package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"feedstream/aggregator/internal/domain"
)

var (
	ErrInvalidQuery = errors.New("keyword is required")
	ErrNoProviders  = errors.New("no sources configured")
)

// Adapter fetches one provider and normalizes its response into records.
// Adapters never touch the result cache.
type Adapter interface {
	Name() string
	Info() domain.SourceInfo
	Fetch(ctx context.Context, query string) ([]domain.Record, error)
}

// BatchAdapter is an optional interface for adapters that fetch every
// expanded query in one concurrent batch.
type BatchAdapter interface {
	FetchBatch(ctx context.Context, queries []string) []domain.BatchResult
}

// Pager is an optional interface for adapters that expose paged results.
type Pager interface {
	FetchPage(ctx context.Context, query string, page int) ([]domain.Record, error)
}

// PopularityTracker records searched keywords and ranks them.
type PopularityTracker interface {
	Record(ctx context.Context, keyword string) error
	Top(ctx context.Context) []string
}

type Service struct {
	adapters      []Adapter
	byCategory    map[domain.Category][]Adapter
	categories    []domain.Category
	timeout       time.Duration
	maxConcurrent int
	cache         ResultCache
	cacheDisabled bool
	tracker       PopularityTracker
	limits        map[string]RateLimit
	limiterMu     sync.Mutex
	limiters      map[string]*sourceLimiter
	logger        *slog.Logger
	warmerCfg     warmerConfig
	warmerRun     atomic.Bool
	healthMu      sync.Mutex
	health        map[string]*sourceHealth
	now           func() time.Time
}

type ServiceOption func(*Service)

func WithCache(cache ResultCache) ServiceOption {
	return func(s *Service) {
		s.cache = cache
	}
}

func WithCacheDisabled(disabled bool) ServiceOption {
	return func(s *Service) {
		s.cacheDisabled = disabled
	}
}

func WithTracker(tracker PopularityTracker) ServiceOption {
	return func(s *Service) {
		s.tracker = tracker
	}
}

func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithMaxConcurrentFetches(limit int) ServiceOption {
	return func(s *Service) {
		if limit > 0 {
			s.maxConcurrent = limit
		}
	}
}

// WithSourceRateLimit throttles outbound calls to one source.
func WithSourceRateLimit(source string, limit RateLimit) ServiceOption {
	return func(s *Service) {
		name := strings.ToLower(strings.TrimSpace(source))
		if name == "" || limit.PerSecond <= 0 {
			return
		}
		s.limits[name] = limit
	}
}

func WithWarmer(interval time.Duration, topKeywords int) ServiceOption {
	return func(s *Service) {
		if interval > 0 {
			s.warmerCfg.interval = interval
		}
		if topKeywords > 0 {
			s.warmerCfg.topKeywords = topKeywords
		}
	}
}

func NewService(adapters []Adapter, timeout time.Duration, opts ...ServiceOption) *Service {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}

	svc := &Service{
		byCategory:    make(map[domain.Category][]Adapter),
		timeout:       timeout,
		maxConcurrent: defaultMaxConcurrentFetches,
		limits:        make(map[string]RateLimit),
		limiters:      make(map[string]*sourceLimiter),
		logger:        slog.Default(),
		warmerCfg:     defaultWarmerConfig(),
		health:        make(map[string]*sourceHealth),
		now:           time.Now,
	}

	seen := make(map[string]struct{}, len(adapters))
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		name := sourceKey(adapter)
		if name == "" {
			continue
		}
		if _, exists := seen[name]; exists {
			continue
		}
		seen[name] = struct{}{}
		category := adapter.Info().Category
		if _, ok := domain.NormalizeCategory(string(category)); !ok {
			continue
		}
		svc.adapters = append(svc.adapters, adapter)
		svc.byCategory[category] = append(svc.byCategory[category], adapter)
	}

	for _, category := range domain.Categories() {
		if len(svc.byCategory[category]) > 0 {
			svc.categories = append(svc.categories, category)
		}
	}

	for _, opt := range opts {
		opt(svc)
	}
	if svc.cache == nil {
		svc.cache = NewMemoryCache(defaultCacheTTL, defaultCacheMaxEntries)
	}
	return svc
}

// Categories returns the categories that have at least one adapter.
func (s *Service) Categories() []domain.Category {
	return append([]domain.Category(nil), s.categories...)
}

func (s *Service) Sources() []domain.SourceInfo {
	if len(s.adapters) == 0 {
		return nil
	}
	items := make([]domain.SourceInfo, 0, len(s.adapters))
	for _, adapter := range s.adapters {
		info := adapter.Info()
		info.Name = sourceKey(adapter)
		if info.Label == "" {
			info.Label = info.Name
		}
		items = append(items, info)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Name < items[j].Name
	})
	return items
}

func sourceKey(adapter Adapter) string {
	return strings.ToLower(strings.TrimSpace(adapter.Name()))
}
