package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"feedstream/aggregator/internal/domain"
	"feedstream/aggregator/internal/telemetry"
)

const (
	defaultFetchTimeout         = 15 * time.Second
	defaultMaxConcurrentFetches = 16
	groupDeadlineSlack          = 2 * time.Second
)

// fetchSlot holds the outcome of one (source, query) pair. Slots are laid out
// category by category, source by source, query by query, so concatenation
// keeps expansion order.
type fetchSlot struct {
	category domain.Category
	source   string
	query    string
	records  []domain.Record
	status   domain.SourceStatus
}

// Aggregate fans out every expanded query of keyword to every source and
// returns per-category results. A failing source yields an empty list for
// its own slots and never affects its siblings.
func (s *Service) Aggregate(ctx context.Context, keyword string) (domain.AggregateResultSet, []domain.SourceStatus, error) {
	queries := ExpandKeyword(keyword)
	if len(queries) == 0 {
		return nil, nil, ErrInvalidQuery
	}
	if len(s.adapters) == 0 {
		return domain.NewAggregateResultSet(), nil, ErrNoProviders
	}

	groupCtx, cancel := context.WithTimeout(ctx, s.timeout+groupDeadlineSlack)
	defer cancel()

	var slots []*fetchSlot
	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)

	for _, category := range s.categories {
		for _, adapter := range s.byCategory[category] {
			source := sourceKey(adapter)
			group := make([]*fetchSlot, 0, len(queries))
			for _, query := range queries {
				slot := &fetchSlot{category: category, source: source, query: query}
				slots = append(slots, slot)
				group = append(group, slot)
			}

			if batch, ok := adapter.(BatchAdapter); ok {
				g.Go(func() error {
					s.runBatch(groupCtx, ctx, batch, group)
					return nil
				})
				continue
			}
			for _, slot := range group {
				g.Go(func() error {
					records, err := s.fetchSource(groupCtx, adapter, slot.source, slot.query)
					s.resolveSlot(ctx, slot, records, err)
					return nil
				})
			}
		}
	}
	_ = g.Wait()

	results := domain.NewAggregateResultSet()
	statuses := make([]domain.SourceStatus, 0, len(slots))
	for _, slot := range slots {
		results[slot.category] = append(results[slot.category], slot.records...)
		statuses = append(statuses, slot.status)
	}
	for category := range results {
		SortByRecency(results[category])
	}
	return results, statuses, nil
}

// runBatch fetches under groupCtx and resolves slots against the cache under
// cacheCtx, so an expired fetch budget still serves cached records.
func (s *Service) runBatch(groupCtx, cacheCtx context.Context, batch BatchAdapter, slots []*fetchSlot) {
	source := slots[0].source
	queries := make([]string, len(slots))
	for i, slot := range slots {
		queries[i] = slot.query
	}

	result := s.guardedFetch(groupCtx, source, strings.Join(queries, keywordDelimiter), func(fetchCtx context.Context) fetchResult {
		batchResults := batch.FetchBatch(fetchCtx, queries)
		out := fetchResult{batch: batchResults}
		for _, item := range batchResults {
			out.records = append(out.records, item.Records...)
			if item.Err != nil && out.err == nil {
				out.err = item.Err
			}
		}
		// The batch only counts as failed when nothing came back.
		if len(out.records) > 0 {
			out.err = nil
		}
		return out
	})

	byQuery := make(map[string]domain.BatchResult, len(result.batch))
	for _, item := range result.batch {
		byQuery[item.Query] = item
	}
	for _, slot := range slots {
		item, ok := byQuery[slot.query]
		switch {
		case !ok:
			s.resolveSlot(cacheCtx, slot, nil, result.err)
		default:
			s.resolveSlot(cacheCtx, slot, item.Records, item.Err)
		}
	}
}

// resolveSlot combines a fetch with the cached entry for the slot. Rate
// limited fetches serve cached data untouched; everything else is merged
// and written back.
func (s *Service) resolveSlot(ctx context.Context, slot *fetchSlot, fresh []domain.Record, err error) {
	outcome := domain.ClassifyOutcome(fresh, err)
	cached := s.cacheLookup(ctx, slot.query, slot.source)

	var records []domain.Record
	if outcome == domain.OutcomeRateLimited {
		records = cached
	} else {
		records = Merge(cached, stampCategory(fresh, slot.category))
		if len(records) > 0 {
			s.cacheStore(ctx, slot.query, slot.source, records)
		}
	}
	if records == nil {
		records = []domain.Record{}
	}

	slot.records = records
	slot.status = domain.SourceStatus{
		Name:     slot.source,
		Category: slot.category,
		Query:    slot.query,
		Outcome:  outcome,
		Count:    len(records),
	}
	if err != nil {
		slot.status.Error = err.Error()
	}
}

type fetchResult struct {
	records []domain.Record
	batch   []domain.BatchResult
	err     error
}

func (s *Service) fetchSource(ctx context.Context, adapter Adapter, source, query string) ([]domain.Record, error) {
	result := s.guardedFetch(ctx, source, query, func(fetchCtx context.Context) fetchResult {
		records, err := adapter.Fetch(fetchCtx, query)
		return fetchResult{records: records, err: err}
	})
	return result.records, result.err
}

// guardedFetch runs fn under the source's circuit breaker, outbound rate
// limiter, retry policy, timeout and trace span. It returns once the fetch
// timeout expires even if fn has not.
//
// ctx is the request's fetch budget. When it is already spent the source is
// not called, and failures caused by it ending are not charged to the
// source's health.
func (s *Service) guardedFetch(ctx context.Context, source, query string, fn func(context.Context) fetchResult) fetchResult {
	now := s.now()
	if blocked, until, lastErr := s.isSourceBlocked(source, now); blocked {
		return fetchResult{err: fmt.Errorf("source temporarily unhealthy until %s: %s", until.UTC().Format(time.RFC3339), lastErr)}
	}
	if err := ctx.Err(); err != nil {
		return fetchResult{err: fmt.Errorf("%s: request budget spent before fetch: %w", source, err)}
	}

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	fetchCtx, span := telemetry.Tracer().Start(fetchCtx, "search.fetch",
		trace.WithAttributes(
			attribute.String("source", source),
			attribute.String("query", query),
		),
	)
	defer span.End()

	if err := s.waitSourceRateLimit(fetchCtx, source); err != nil {
		span.SetStatus(codes.Error, "rate limit wait cancelled")
		return fetchResult{err: fmt.Errorf("rate limit wait cancelled: %w", err)}
	}

	call := func() fetchResult {
		done := make(chan fetchResult, 1)
		go func() {
			done <- fn(fetchCtx)
		}()
		select {
		case result := <-done:
			return result
		case <-fetchCtx.Done():
			return fetchResult{err: fmt.Errorf("%s: %w", source, fetchCtx.Err())}
		}
	}

	startedAt := time.Now()
	var result fetchResult
	_ = RetryWithBackoff(fetchCtx, DefaultRetryConfig(), func() error {
		result = call()
		return result.err
	})
	elapsed := time.Since(startedAt)
	outcome := domain.ClassifyOutcome(result.records, result.err)
	if ctx.Err() == nil {
		s.recordSourceResult(source, query, outcome, result.err, elapsed, s.now())
	}

	span.SetAttributes(
		attribute.String("outcome", string(outcome)),
		attribute.Int("results", len(result.records)),
	)
	if result.err != nil {
		span.RecordError(result.err)
		span.SetStatus(codes.Error, string(outcome))
	}

	attrs := []any{
		slog.String("source", source),
		slog.String("query", query),
		slog.String("outcome", string(outcome)),
		slog.Int("results", len(result.records)),
		slog.Int64("elapsedMs", elapsed.Milliseconds()),
	}
	switch {
	case errors.Is(result.err, domain.ErrRateLimited):
		s.logger.Info("source rate limited, serving cached results", attrs...)
	case result.err != nil:
		s.logger.Warn("source fetch failed", append(attrs, slog.String("error", result.err.Error()))...)
	default:
		s.logger.Debug("source fetch done", attrs...)
	}
	return result
}

// stampCategory fills in the category on records that left it blank.
func stampCategory(records []domain.Record, category domain.Category) []domain.Record {
	for i := range records {
		if records[i].Category == "" {
			records[i].Category = category
		}
	}
	return records
}

// HandleSearch is the request boundary. An empty keyword returns empty
// results with the current trending keywords and records nothing.
func (s *Service) HandleSearch(ctx context.Context, keyword string) (domain.SearchResponse, error) {
	keyword = strings.TrimSpace(keyword)
	response := domain.SearchResponse{
		Keyword: keyword,
		Results: domain.NewAggregateResultSet(),
		Sources: []domain.SourceStatus{},
	}
	if keyword == "" {
		response.TopKeywords = s.topKeywords(ctx)
		return response, nil
	}

	if s.tracker != nil {
		if err := s.tracker.Record(ctx, keyword); err != nil {
			s.logger.Warn("keyword popularity not persisted",
				slog.String("keyword", keyword),
				slog.String("error", err.Error()),
			)
		}
	}

	startedAt := time.Now()
	results, statuses, err := s.Aggregate(ctx, keyword)
	switch {
	case errors.Is(err, ErrNoProviders):
		s.logger.Warn("search without configured sources", slog.String("keyword", keyword))
	case err != nil:
		return response, err
	default:
		response.Results = results
		response.Sources = statuses
	}

	response.ElapsedMS = time.Since(startedAt).Milliseconds()
	response.TotalCount = response.Results.Total()
	response.TopKeywords = s.topKeywords(ctx)

	s.logger.Info("search completed",
		slog.String("keyword", keyword),
		slog.Int("results", response.TotalCount),
		slog.Int64("elapsedMs", response.ElapsedMS),
	)
	return response, nil
}

func (s *Service) topKeywords(ctx context.Context) []string {
	if s.tracker == nil {
		return []string{}
	}
	top := s.tracker.Top(ctx)
	if top == nil {
		return []string{}
	}
	return top
}

// NewsPage returns one page of news from every source that supports paging.
// Pages are not cached.
func (s *Service) NewsPage(ctx context.Context, keyword string, page int) ([]domain.Record, error) {
	query := normalizeTerm(keyword)
	if query == "" {
		return nil, ErrInvalidQuery
	}
	if page < 1 {
		page = 1
	}

	var pagers []Adapter
	for _, adapter := range s.byCategory[domain.CategoryNews] {
		if _, ok := adapter.(Pager); ok {
			pagers = append(pagers, adapter)
		}
	}
	if len(pagers) == 0 {
		return []domain.Record{}, nil
	}

	var mu sync.Mutex
	records := make([]domain.Record, 0)
	var g errgroup.Group
	g.SetLimit(s.maxConcurrent)
	for _, adapter := range pagers {
		pager := adapter.(Pager)
		source := sourceKey(adapter)
		g.Go(func() error {
			result := s.guardedFetch(ctx, source, query, func(fetchCtx context.Context) fetchResult {
				items, err := pager.FetchPage(fetchCtx, query, page)
				return fetchResult{records: items, err: err}
			})
			mu.Lock()
			records = append(records, stampCategory(result.records, domain.CategoryNews)...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	SortByRecency(records)
	return records, nil
}
