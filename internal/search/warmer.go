package search

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	defaultWarmTopKeywords     = 5
	maxConcurrentWarmRefreshes = 2
)

type warmerConfig struct {
	interval    time.Duration
	topKeywords int
}

func defaultWarmerConfig() warmerConfig {
	return warmerConfig{topKeywords: defaultWarmTopKeywords}
}

// StartWarmer re-aggregates trending keywords on an interval until ctx is
// done. It is a no-op without a tracker or interval, and only one warmer
// runs per service.
func (s *Service) StartWarmer(ctx context.Context) {
	if s.tracker == nil || s.warmerCfg.interval <= 0 {
		return
	}
	if !s.warmerRun.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer s.warmerRun.Store(false)
		s.runWarmer(ctx)
	}()
}

func (s *Service) runWarmer(ctx context.Context) {
	ticker := time.NewTicker(s.warmerCfg.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runWarmCycle(ctx)
		}
	}
}

// runWarmCycle refreshes the cache for the top keywords without recording
// them as searches.
func (s *Service) runWarmCycle(ctx context.Context) {
	keywords := s.tracker.Top(ctx)
	if len(keywords) > s.warmerCfg.topKeywords {
		keywords = keywords[:s.warmerCfg.topKeywords]
	}
	if len(keywords) == 0 {
		return
	}

	sem := semaphore.NewWeighted(maxConcurrentWarmRefreshes)
	var wg sync.WaitGroup

	for _, keyword := range keywords {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		default:
		}

		wg.Add(1)
		go func(keyword string) {
			defer wg.Done()

			if err := sem.Acquire(ctx, 1); err != nil {
				return
			}
			defer sem.Release(1)

			refreshCtx, cancel := context.WithTimeout(ctx, s.timeout+groupDeadlineSlack)
			defer cancel()

			startedAt := time.Now()
			results, _, err := s.Aggregate(refreshCtx, keyword)
			if err != nil {
				s.logger.Warn("cache warm failed",
					slog.String("keyword", keyword),
					slog.String("error", err.Error()),
				)
				return
			}
			s.logger.Debug("cache warmed",
				slog.String("keyword", keyword),
				slog.Int("results", results.Total()),
				slog.Int64("elapsedMs", time.Since(startedAt).Milliseconds()),
			)
		}(keyword)
	}

	wg.Wait()
}
