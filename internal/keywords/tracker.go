package keywords

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"feedstream/aggregator/internal/domain"
	"feedstream/aggregator/internal/metrics"
)

var ErrEmptyKeyword = errors.New("keyword is required")

// Store persists the full keyword count map. Implementations load and save
// the whole map at once.
type Store interface {
	Load(ctx context.Context) (map[string]int, error)
	Save(ctx context.Context, counts map[string]int) error
}

// Incrementer is implemented by stores that can bump one keyword in place.
// Record prefers it over load-all/save-all, so a failed read never
// overwrites stored counts.
type Incrementer interface {
	Increment(ctx context.Context, keyword string) error
}

type TrackerOption func(*Tracker)

func WithLogger(logger *slog.Logger) TrackerOption {
	return func(t *Tracker) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// Tracker counts searched keywords with write-through persistence. Record is
// serialized so concurrent searches never lose an increment.
type Tracker struct {
	store  Store
	logger *slog.Logger

	mu        sync.Mutex
	listeners []func([]string)
}

func NewTracker(store Store, opts ...TrackerOption) *Tracker {
	t := &Tracker{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnChange registers fn to receive the new ranking after every successful
// Record. fn runs on the recording goroutine and must not block.
func (t *Tracker) OnChange(fn func([]string)) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

func (t *Tracker) Record(ctx context.Context, keyword string) error {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return ErrEmptyKeyword
	}

	t.mu.Lock()
	counts, err := t.persistLocked(ctx, keyword)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	listeners := append([]func([]string){}, t.listeners...)
	t.mu.Unlock()

	metrics.KeywordsRecordedTotal.Inc()
	if len(listeners) > 0 && counts != nil {
		ranked := rank(counts)
		for _, fn := range listeners {
			fn(ranked)
		}
	}
	return nil
}

// persistLocked stores one increment and returns the resulting counts, or nil
// counts when they could not be read back.
func (t *Tracker) persistLocked(ctx context.Context, keyword string) (map[string]int, error) {
	if inc, ok := t.store.(Incrementer); ok {
		if err := inc.Increment(ctx, keyword); err != nil {
			return nil, &domain.StorePersistError{Op: "increment", Err: err}
		}
		counts, err := t.store.Load(ctx)
		if err != nil {
			t.logger.Warn("keyword store reload failed", slog.String("error", err.Error()))
			return nil, nil
		}
		return counts, nil
	}

	counts := t.loadLocked(ctx)
	counts[keyword]++
	if err := t.store.Save(ctx, counts); err != nil {
		return nil, &domain.StorePersistError{Op: "save", Err: err}
	}
	return counts, nil
}

// Top returns every tracked keyword by count descending, ties by keyword.
func (t *Tracker) Top(ctx context.Context) []string {
	return rank(t.Counts(ctx))
}

// Ranked returns keyword/count pairs in Top order.
func (t *Tracker) Ranked(ctx context.Context) []domain.KeywordCount {
	counts := t.Counts(ctx)
	ranked := rank(counts)
	out := make([]domain.KeywordCount, 0, len(ranked))
	for _, keyword := range ranked {
		out = append(out, domain.KeywordCount{Keyword: keyword, Count: counts[keyword]})
	}
	return out
}

func (t *Tracker) Counts(ctx context.Context) map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.loadLocked(ctx)
}

func (t *Tracker) loadLocked(ctx context.Context) map[string]int {
	counts, err := t.store.Load(ctx)
	if err != nil {
		t.logger.Warn("keyword store load failed", slog.String("error", err.Error()))
		return make(map[string]int)
	}
	if counts == nil {
		counts = make(map[string]int)
	}
	return counts
}

func rank(counts map[string]int) []string {
	keywords := make([]string, 0, len(counts))
	for keyword := range counts {
		keywords = append(keywords, keyword)
	}
	sort.Slice(keywords, func(i, j int) bool {
		if counts[keywords[i]] != counts[keywords[j]] {
			return counts[keywords[i]] > counts[keywords[j]]
		}
		return keywords[i] < keywords[j]
	})
	return keywords
}
