package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"feedstream/aggregator/internal/domain"
)

type fakeAdapter struct {
	name     string
	category domain.Category
	records  []domain.Record
	mu       sync.Mutex
	queries  []string
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) Info() domain.SourceInfo {
	return domain.SourceInfo{Name: a.name, Label: a.name, Category: a.category, Enabled: true}
}

func (a *fakeAdapter) Fetch(_ context.Context, query string) ([]domain.Record, error) {
	a.mu.Lock()
	a.queries = append(a.queries, query)
	a.mu.Unlock()
	out := make([]domain.Record, 0, len(a.records))
	for _, record := range a.records {
		record.Title = query + ": " + record.Title
		out = append(out, record)
	}
	return out, nil
}

func (a *fakeAdapter) seenQueries() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := append([]string(nil), a.queries...)
	sort.Strings(out)
	return out
}

type failingAdapter struct {
	name     string
	category domain.Category
	err      error
	calls    atomic.Int32
}

func (a *failingAdapter) Name() string { return a.name }

func (a *failingAdapter) Info() domain.SourceInfo {
	return domain.SourceInfo{Name: a.name, Label: a.name, Category: a.category, Enabled: true}
}

func (a *failingAdapter) Fetch(context.Context, string) ([]domain.Record, error) {
	a.calls.Add(1)
	return nil, a.err
}

// stubbornAdapter ignores context cancellation.
type stubbornAdapter struct {
	name     string
	category domain.Category
	delay    time.Duration
}

func (a *stubbornAdapter) Name() string { return a.name }

func (a *stubbornAdapter) Info() domain.SourceInfo {
	return domain.SourceInfo{Name: a.name, Label: a.name, Category: a.category, Enabled: true}
}

func (a *stubbornAdapter) Fetch(context.Context, string) ([]domain.Record, error) {
	time.Sleep(a.delay)
	return []domain.Record{{Title: "late", Link: "https://late.example"}}, nil
}

type batchAdapter struct {
	fakeAdapter
	batches atomic.Int32
}

func (a *batchAdapter) FetchBatch(ctx context.Context, queries []string) []domain.BatchResult {
	a.batches.Add(1)
	results := make([]domain.BatchResult, 0, len(queries))
	for _, query := range queries {
		records, err := a.fakeAdapter.Fetch(ctx, query)
		results = append(results, domain.BatchResult{Query: query, Records: records, Err: err})
	}
	return results
}

type pagerAdapter struct {
	fakeAdapter
	pages []int
}

func (a *pagerAdapter) FetchPage(_ context.Context, query string, page int) ([]domain.Record, error) {
	a.mu.Lock()
	a.pages = append(a.pages, page)
	a.mu.Unlock()
	return []domain.Record{{
		Title:     fmt.Sprintf("%s page %d", query, page),
		Link:      fmt.Sprintf("https://news.example/%s/%d", query, page),
		Published: time.Date(2024, 1, page, 0, 0, 0, 0, time.UTC),
	}}, nil
}

type fakeTracker struct {
	mu       sync.Mutex
	recorded []string
	top      []string
	err      error
}

func (f *fakeTracker) Record(_ context.Context, keyword string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, keyword)
	return f.err
}

func (f *fakeTracker) Top(context.Context) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.top...)
}

func at(day int) time.Time {
	return time.Date(2024, 3, day, 12, 0, 0, 0, time.UTC)
}

func linksOf(records []domain.Record) []string {
	links := make([]string, 0, len(records))
	for _, record := range records {
		links = append(links, record.Link)
	}
	return links
}

func TestAggregateExpandsKeywordAcrossSources(t *testing.T) {
	social := &fakeAdapter{name: "twitter", category: domain.CategorySocial, records: []domain.Record{
		{Title: "t", Link: "https://twitter.com/a", Published: at(1)},
	}}
	video := &fakeAdapter{name: "youtube", category: domain.CategoryVideo, records: []domain.Record{
		{Title: "v", Link: "https://youtube.com/a", Published: at(2)},
	}}
	svc := NewService([]Adapter{social, video}, 2*time.Second)

	results, statuses, err := svc.Aggregate(context.Background(), "covid, omicron")
	if err != nil {
		t.Fatalf("aggregate error: %v", err)
	}

	want := []string{"covid", "covid, omicron", "omicron"}
	for _, adapter := range []*fakeAdapter{social, video} {
		got := adapter.seenQueries()
		if fmt.Sprint(got) != fmt.Sprint(want) {
			t.Fatalf("%s queries = %v, want %v", adapter.name, got, want)
		}
	}
	if len(statuses) != 6 {
		t.Fatalf("expected 6 statuses, got %d", len(statuses))
	}
	for _, category := range domain.Categories() {
		if _, ok := results[category]; !ok {
			t.Fatalf("category %s missing from results", category)
		}
	}
	// The same link under different queries is kept once per query.
	if len(results[domain.CategorySocial]) != 3 {
		t.Fatalf("expected 3 social records, got %d", len(results[domain.CategorySocial]))
	}
	if results[domain.CategorySocial][0].Category != domain.CategorySocial {
		t.Fatalf("expected category stamped on records, got %q", results[domain.CategorySocial][0].Category)
	}
}

func TestAggregatePartialFailureKeepsOtherCategories(t *testing.T) {
	timeout := time.Second
	failing := &failingAdapter{
		name:     "youtube",
		category: domain.CategoryVideo,
		err:      &domain.TransportError{Source: "youtube", StatusCode: 403, Err: errors.New("forbidden")},
	}
	svc := NewService([]Adapter{
		&fakeAdapter{name: "twitter", category: domain.CategorySocial, records: []domain.Record{{Title: "s", Link: "https://s", Published: at(1)}}},
		&fakeAdapter{name: "facebook", category: domain.CategoryFeed1, records: []domain.Record{{Title: "f", Link: "https://f", Published: at(1)}}},
		&fakeAdapter{name: "rss", category: domain.CategoryNews, records: []domain.Record{{Title: "n", Link: "https://n", Published: at(1)}}},
		failing,
	}, timeout)

	startedAt := time.Now()
	results, statuses, err := svc.Aggregate(context.Background(), "x")
	elapsed := time.Since(startedAt)
	if err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	if elapsed > timeout+groupDeadlineSlack {
		t.Fatalf("aggregate took %v, beyond bound", elapsed)
	}
	if len(results[domain.CategoryVideo]) != 0 {
		t.Fatalf("expected empty video results, got %d", len(results[domain.CategoryVideo]))
	}
	for _, category := range []domain.Category{domain.CategorySocial, domain.CategoryFeed1, domain.CategoryNews} {
		if len(results[category]) == 0 {
			t.Fatalf("expected results for %s", category)
		}
	}

	var videoStatus domain.SourceStatus
	for _, status := range statuses {
		if status.Name == "youtube" {
			videoStatus = status
		}
	}
	if videoStatus.Outcome != domain.OutcomeTransientError {
		t.Fatalf("expected transient error outcome, got %q", videoStatus.Outcome)
	}
	if videoStatus.Error == "" {
		t.Fatal("expected error text on failing source status")
	}
}

func TestAggregateRateLimitServesCachedRecords(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 100)
	cached := make([]domain.Record, 0, 5)
	for i := 1; i <= 5; i++ {
		cached = append(cached, domain.Record{
			Title:     fmt.Sprintf("cached %d", i),
			Link:      fmt.Sprintf("https://twitter.com/user/status/%d", i),
			Published: at(i),
			Category:  domain.CategorySocial,
		})
	}
	if err := cache.Set(context.Background(), "x", "twitter", cached); err != nil {
		t.Fatalf("seed cache: %v", err)
	}

	limited := &failingAdapter{
		name:     "twitter",
		category: domain.CategorySocial,
		err:      &domain.RateLimitError{Source: "twitter"},
	}
	svc := NewService([]Adapter{limited}, time.Second, WithCache(cache))

	results, statuses, err := svc.Aggregate(context.Background(), "x")
	if err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	got := results[domain.CategorySocial]
	if len(got) != 5 {
		t.Fatalf("expected exactly the 5 cached records, got %d", len(got))
	}
	for i, record := range got {
		want := fmt.Sprintf("https://twitter.com/user/status/%d", 5-i)
		if record.Link != want {
			t.Fatalf("record %d link = %s, want %s", i, record.Link, want)
		}
	}
	if statuses[0].Outcome != domain.OutcomeRateLimited {
		t.Fatalf("expected rate limited outcome, got %q", statuses[0].Outcome)
	}
	if limited.calls.Load() != 1 {
		t.Fatalf("rate limited source must not be retried, got %d calls", limited.calls.Load())
	}
}

func TestAggregateRateLimitWithoutCacheIsEmpty(t *testing.T) {
	svc := NewService([]Adapter{
		&failingAdapter{name: "twitter", category: domain.CategorySocial, err: &domain.RateLimitError{Source: "twitter"}},
	}, time.Second)

	results, _, err := svc.Aggregate(context.Background(), "x")
	if err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	if got := results[domain.CategorySocial]; got == nil || len(got) != 0 {
		t.Fatalf("expected empty non-nil social results, got %v", got)
	}
}

func TestAggregateTransientErrorServesCachedRecords(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 100)
	_ = cache.Set(context.Background(), "x", "rss", []domain.Record{{Title: "old", Link: "https://old", Published: at(1)}})

	svc := NewService([]Adapter{
		&failingAdapter{name: "rss", category: domain.CategoryNews, err: &domain.ParseError{Source: "rss", Err: errors.New("bad xml")}},
	}, time.Second, WithCache(cache))

	results, _, err := svc.Aggregate(context.Background(), "x")
	if err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	if got := linksOf(results[domain.CategoryNews]); fmt.Sprint(got) != "[https://old]" {
		t.Fatalf("expected cached record, got %v", got)
	}
}

func TestAggregateMergesFreshWithCachedAndWritesBack(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 100)
	_ = cache.Set(context.Background(), "x", "rss", []domain.Record{
		{Title: "stale copy", Link: "https://shared", Published: at(1)},
		{Title: "only cached", Link: "https://cached", Published: at(3)},
	})

	svc := NewService([]Adapter{
		&fakeAdapter{name: "rss", category: domain.CategoryNews, records: []domain.Record{
			{Title: "fresh copy", Link: "https://shared", Published: at(2)},
			{Title: "only fresh", Link: "https://fresh", Published: at(4)},
		}},
	}, time.Second, WithCache(cache))

	results, _, err := svc.Aggregate(context.Background(), "x")
	if err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	got := results[domain.CategoryNews]
	if fmt.Sprint(linksOf(got)) != "[https://fresh https://cached https://shared]" {
		t.Fatalf("unexpected merge order: %v", linksOf(got))
	}
	if got[2].Title != "x: fresh copy" {
		t.Fatalf("expected fresh record to win, got %q", got[2].Title)
	}

	stored, _ := cache.Get(context.Background(), "x", "rss")
	if len(stored) != 3 {
		t.Fatalf("expected merged set written back, got %d records", len(stored))
	}
}

func TestAggregateCacheDisabled(t *testing.T) {
	cache := NewMemoryCache(time.Hour, 100)
	svc := NewService([]Adapter{
		&fakeAdapter{name: "rss", category: domain.CategoryNews, records: []domain.Record{{Title: "a", Link: "https://a"}}},
	}, time.Second, WithCache(cache), WithCacheDisabled(true))

	if _, _, err := svc.Aggregate(context.Background(), "x"); err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	if cache.Len() != 0 {
		t.Fatalf("expected no cache writes, got %d entries", cache.Len())
	}
}

func TestAggregateBoundedBySlowSource(t *testing.T) {
	timeout := 100 * time.Millisecond
	svc := NewService([]Adapter{
		&stubbornAdapter{name: "slow", category: domain.CategoryVideo, delay: 3 * time.Second},
		&fakeAdapter{name: "rss", category: domain.CategoryNews, records: []domain.Record{{Title: "a", Link: "https://a"}}},
	}, timeout)

	startedAt := time.Now()
	results, statuses, err := svc.Aggregate(context.Background(), "x")
	elapsed := time.Since(startedAt)
	if err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	if elapsed > timeout+groupDeadlineSlack {
		t.Fatalf("aggregate took %v, expected under %v", elapsed, timeout+groupDeadlineSlack)
	}
	if len(results[domain.CategoryVideo]) != 0 {
		t.Fatal("expected slow source to contribute nothing")
	}
	if len(results[domain.CategoryNews]) != 1 {
		t.Fatal("expected fast source results")
	}
	for _, status := range statuses {
		if status.Name == "slow" && status.Outcome != domain.OutcomeTransientError {
			t.Fatalf("expected timeout to be a transient error, got %q", status.Outcome)
		}
	}
}

// pacedAdapter answers every query inside its own timeout.
type pacedAdapter struct {
	name     string
	category domain.Category
	delay    time.Duration
	calls    atomic.Int32
}

func (a *pacedAdapter) Name() string { return a.name }

func (a *pacedAdapter) Info() domain.SourceInfo {
	return domain.SourceInfo{Name: a.name, Label: a.name, Category: a.category, Enabled: true}
}

func (a *pacedAdapter) Fetch(ctx context.Context, query string) ([]domain.Record, error) {
	a.calls.Add(1)
	select {
	case <-time.After(a.delay):
		return []domain.Record{{Title: query, Link: "https://paced.example/" + query, Published: at(1)}}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func TestAggregateQueuedFetchesDoNotTripBreaker(t *testing.T) {
	timeout := 100 * time.Millisecond
	adapter := &pacedAdapter{name: "paced", category: domain.CategoryNews, delay: 60 * time.Millisecond}
	svc := NewService([]Adapter{adapter}, timeout, WithMaxConcurrentFetches(1))

	// Serial work well past the request budget of timeout + slack.
	terms := make([]string, 0, 50)
	for i := 0; i < 50; i++ {
		terms = append(terms, fmt.Sprintf("q%d", i))
	}
	results, statuses, err := svc.Aggregate(context.Background(), strings.Join(terms, ", "))
	if err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	if len(results[domain.CategoryNews]) == 0 {
		t.Fatal("expected the fetches inside the budget to return records")
	}
	if int(adapter.calls.Load()) >= len(statuses) {
		t.Fatalf("expected queued fetches past the budget to be skipped, got %d calls for %d slots", adapter.calls.Load(), len(statuses))
	}

	diagnostics := svc.SourceDiagnostics()
	if len(diagnostics) != 1 {
		t.Fatalf("expected 1 diagnostics entry, got %d", len(diagnostics))
	}
	if diagnostics[0].BlockedUntil != nil {
		t.Fatalf("healthy source must not be blocked, blocked until %v", diagnostics[0].BlockedUntil)
	}
	if diagnostics[0].ConsecutiveFailures != 0 {
		t.Fatalf("expected no consecutive failures, got %d", diagnostics[0].ConsecutiveFailures)
	}

	_, statuses, err = svc.Aggregate(context.Background(), "z")
	if err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	if statuses[0].Outcome != domain.OutcomeSuccess {
		t.Fatalf("expected follow-up request to succeed, got %q (%s)", statuses[0].Outcome, statuses[0].Error)
	}
}

func TestAggregateBatchAdapterGetsAllQueriesAtOnce(t *testing.T) {
	batch := &batchAdapter{fakeAdapter: fakeAdapter{
		name:     "rss",
		category: domain.CategoryNews,
		records:  []domain.Record{{Title: "a", Link: "https://a", Published: at(1)}},
	}}
	svc := NewService([]Adapter{batch}, time.Second)

	results, statuses, err := svc.Aggregate(context.Background(), "a, b")
	if err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	if batch.batches.Load() != 1 {
		t.Fatalf("expected one batch call, got %d", batch.batches.Load())
	}
	if len(statuses) != 3 {
		t.Fatalf("expected one status per query, got %d", len(statuses))
	}
	if len(results[domain.CategoryNews]) != 3 {
		t.Fatalf("expected 3 news records, got %d", len(results[domain.CategoryNews]))
	}
}

func TestAggregateUndatedRecordsSortLast(t *testing.T) {
	svc := NewService([]Adapter{
		&fakeAdapter{name: "rss", category: domain.CategoryNews, records: []domain.Record{
			{Title: "undated", Link: "https://undated", Published: time.Time{}},
			{Title: "old", Link: "https://old", Published: at(1)},
			{Title: "new", Link: "https://new", Published: at(9)},
		}},
	}, time.Second)

	results, _, err := svc.Aggregate(context.Background(), "x")
	if err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	got := linksOf(results[domain.CategoryNews])
	if fmt.Sprint(got) != "[https://new https://old https://undated]" {
		t.Fatalf("unexpected order: %v", got)
	}
}

func TestAggregateSkipsBlockedSource(t *testing.T) {
	failing := &failingAdapter{
		name:     "rss",
		category: domain.CategoryNews,
		err:      &domain.TransportError{Source: "rss", StatusCode: 404, Err: errors.New("not found")},
	}
	svc := NewService([]Adapter{failing}, time.Second)

	for i := 0; i < sourceFailureThreshold; i++ {
		if _, _, err := svc.Aggregate(context.Background(), "x"); err != nil {
			t.Fatalf("aggregate error: %v", err)
		}
	}
	calls := failing.calls.Load()
	_, statuses, _ := svc.Aggregate(context.Background(), "x")
	if failing.calls.Load() != calls {
		t.Fatal("blocked source should not be called")
	}
	if statuses[0].Outcome != domain.OutcomeTransientError {
		t.Fatalf("expected transient error for blocked source, got %q", statuses[0].Outcome)
	}
}

func TestAggregateEmptyKeyword(t *testing.T) {
	svc := NewService([]Adapter{&fakeAdapter{name: "rss", category: domain.CategoryNews}}, time.Second)
	if _, _, err := svc.Aggregate(context.Background(), "   "); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestAggregateNoSources(t *testing.T) {
	svc := NewService(nil, time.Second)
	results, _, err := svc.Aggregate(context.Background(), "x")
	if !errors.Is(err, ErrNoProviders) {
		t.Fatalf("expected ErrNoProviders, got %v", err)
	}
	if len(results) != len(domain.Categories()) {
		t.Fatalf("expected every category present, got %d", len(results))
	}
}

func TestSourceRateLimitWaitCancelled(t *testing.T) {
	adapter := &fakeAdapter{name: "rss", category: domain.CategoryNews, records: []domain.Record{{Title: "a", Link: "https://a"}}}
	svc := NewService([]Adapter{adapter}, 50*time.Millisecond,
		WithSourceRateLimit("rss", RateLimit{PerSecond: 0.01, Burst: 1}),
	)

	if _, _, err := svc.Aggregate(context.Background(), "first"); err != nil {
		t.Fatalf("aggregate error: %v", err)
	}
	_, statuses, _ := svc.Aggregate(context.Background(), "second")
	if statuses[0].Outcome != domain.OutcomeTransientError {
		t.Fatalf("expected transient error when limiter wait exceeds timeout, got %q", statuses[0].Outcome)
	}
	if got := adapter.seenQueries(); len(got) != 1 {
		t.Fatalf("expected only the first query to reach the source, got %v", got)
	}
}

func TestHandleSearchEmptyKeywordDoesNotRecord(t *testing.T) {
	tracker := &fakeTracker{top: []string{"ai"}}
	adapter := &fakeAdapter{name: "rss", category: domain.CategoryNews}
	svc := NewService([]Adapter{adapter}, time.Second, WithTracker(tracker))

	response, err := svc.HandleSearch(context.Background(), "  ")
	if err != nil {
		t.Fatalf("handle search error: %v", err)
	}
	if len(tracker.recorded) != 0 {
		t.Fatalf("empty keyword must not be recorded, got %v", tracker.recorded)
	}
	if len(adapter.seenQueries()) != 0 {
		t.Fatal("empty keyword must not reach sources")
	}
	if response.TotalCount != 0 || len(response.Results) != len(domain.Categories()) {
		t.Fatalf("expected empty results for every category, got %+v", response.Results)
	}
	if fmt.Sprint(response.TopKeywords) != "[ai]" {
		t.Fatalf("expected top keywords, got %v", response.TopKeywords)
	}
}

func TestHandleSearchRecordsKeyword(t *testing.T) {
	tracker := &fakeTracker{top: []string{"golang"}}
	svc := NewService([]Adapter{
		&fakeAdapter{name: "rss", category: domain.CategoryNews, records: []domain.Record{{Title: "a", Link: "https://a", Published: at(1)}}},
	}, time.Second, WithTracker(tracker))

	response, err := svc.HandleSearch(context.Background(), " golang ")
	if err != nil {
		t.Fatalf("handle search error: %v", err)
	}
	if fmt.Sprint(tracker.recorded) != "[golang]" {
		t.Fatalf("expected trimmed keyword recorded, got %v", tracker.recorded)
	}
	if response.Keyword != "golang" || response.TotalCount != 1 {
		t.Fatalf("unexpected response: %+v", response)
	}
	if len(response.Sources) != 1 || response.Sources[0].Outcome != domain.OutcomeSuccess {
		t.Fatalf("unexpected sources: %+v", response.Sources)
	}
}

func TestHandleSearchIgnoresTrackerPersistError(t *testing.T) {
	tracker := &fakeTracker{err: &domain.StorePersistError{Op: "save", Err: errors.New("disk full")}}
	svc := NewService([]Adapter{
		&fakeAdapter{name: "rss", category: domain.CategoryNews, records: []domain.Record{{Title: "a", Link: "https://a"}}},
	}, time.Second, WithTracker(tracker))

	response, err := svc.HandleSearch(context.Background(), "x")
	if err != nil {
		t.Fatalf("persist failure must not fail the search: %v", err)
	}
	if response.TotalCount != 1 {
		t.Fatalf("expected results despite persist failure, got %d", response.TotalCount)
	}
}

func TestHandleSearchWithoutSources(t *testing.T) {
	svc := NewService(nil, time.Second)
	response, err := svc.HandleSearch(context.Background(), "x")
	if err != nil {
		t.Fatalf("expected no error without sources, got %v", err)
	}
	if response.TotalCount != 0 {
		t.Fatalf("expected no results, got %d", response.TotalCount)
	}
}

func TestNewsPageUsesPagers(t *testing.T) {
	pager := &pagerAdapter{fakeAdapter: fakeAdapter{name: "newsapi", category: domain.CategoryNews}}
	plain := &fakeAdapter{name: "rss", category: domain.CategoryNews, records: []domain.Record{{Title: "a", Link: "https://a"}}}
	svc := NewService([]Adapter{pager, plain}, time.Second)

	records, err := svc.NewsPage(context.Background(), "go", 0)
	if err != nil {
		t.Fatalf("news page error: %v", err)
	}
	if len(records) != 1 || records[0].Link != "https://news.example/go/1" {
		t.Fatalf("unexpected records: %+v", records)
	}
	if records[0].Category != domain.CategoryNews {
		t.Fatalf("expected news category, got %q", records[0].Category)
	}
	if fmt.Sprint(pager.pages) != "[1]" {
		t.Fatalf("expected page clamped to 1, got %v", pager.pages)
	}
	if len(plain.seenQueries()) != 0 {
		t.Fatal("non-paging sources must not be called")
	}
	if _, err := svc.NewsPage(context.Background(), "", 1); !errors.Is(err, ErrInvalidQuery) {
		t.Fatalf("expected ErrInvalidQuery, got %v", err)
	}
}

func TestNewServiceSkipsNilDuplicateAndUnknownAdapters(t *testing.T) {
	svc := NewService([]Adapter{
		nil,
		&fakeAdapter{name: "rss", category: domain.CategoryNews},
		&fakeAdapter{name: "RSS", category: domain.CategoryNews},
		&fakeAdapter{name: "odd", category: domain.Category("radio")},
		&fakeAdapter{name: "twitter", category: domain.CategorySocial},
	}, 0)

	sources := svc.Sources()
	if len(sources) != 2 {
		t.Fatalf("expected 2 sources, got %d", len(sources))
	}
	if sources[0].Name != "rss" || sources[1].Name != "twitter" {
		t.Fatalf("expected sorted sources, got %+v", sources)
	}
	if fmt.Sprint(svc.Categories()) != "[social news]" {
		t.Fatalf("unexpected categories: %v", svc.Categories())
	}
	if svc.timeout != defaultFetchTimeout {
		t.Fatalf("expected default timeout, got %v", svc.timeout)
	}
}
