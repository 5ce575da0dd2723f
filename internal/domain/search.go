package domain

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

type Category string

const (
	CategorySocial Category = "social"
	CategoryFeed1  Category = "feed1"
	CategoryFeed2  Category = "feed2"
	CategoryVideo  Category = "video"
	CategoryNews   Category = "news"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategorySocial, CategoryFeed1, CategoryFeed2, CategoryVideo, CategoryNews}
}

func NormalizeCategory(raw string) (Category, bool) {
	switch Category(strings.ToLower(strings.TrimSpace(raw))) {
	case CategorySocial:
		return CategorySocial, true
	case CategoryFeed1:
		return CategoryFeed1, true
	case CategoryFeed2:
		return CategoryFeed2, true
	case CategoryVideo:
		return CategoryVideo, true
	case CategoryNews:
		return CategoryNews, true
	default:
		return "", false
	}
}

// Record is one normalized result. Link is the identity key.
type Record struct {
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	Published   time.Time `json:"published"`
	Description string    `json:"description,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
	Category    Category  `json:"category"`
	Origin      string    `json:"origin,omitempty"`
}

// HasPublished reports whether the record carries a real timestamp.
func (r Record) HasPublished() bool {
	return !r.Published.IsZero()
}

// ParsePublished parses a provider timestamp. Anything it cannot read maps to
// the zero time, which sorts after every valid timestamp.
func ParsePublished(raw string) time.Time {
	value := strings.TrimSpace(raw)
	if value == "" {
		return time.Time{}
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC()
	}
	parsed, err := dateparse.ParseIn(value, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return parsed.UTC()
}

// AggregateResultSet maps each category to its recency-ordered records.
type AggregateResultSet map[Category][]Record

// NewAggregateResultSet returns a set with an empty slice for every category.
func NewAggregateResultSet(categories ...Category) AggregateResultSet {
	if len(categories) == 0 {
		categories = Categories()
	}
	set := make(AggregateResultSet, len(categories))
	for _, category := range categories {
		set[category] = []Record{}
	}
	return set
}

func (s AggregateResultSet) Total() int {
	total := 0
	for _, records := range s {
		total += len(records)
	}
	return total
}

type SourceInfo struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Category Category `json:"category"`
	Enabled  bool     `json:"enabled"`
}

// BatchResult is one query's outcome inside a batched fetch.
type BatchResult struct {
	Query   string
	Records []Record
	Err     error
}

type SourceStatus struct {
	Name     string   `json:"name"`
	Category Category `json:"category"`
	Query    string   `json:"query"`
	Outcome  Outcome  `json:"outcome"`
	Count    int      `json:"count"`
	Error    string   `json:"error,omitempty"`
}

type SearchResponse struct {
	Keyword     string             `json:"keyword"`
	Results     AggregateResultSet `json:"results"`
	Sources     []SourceStatus     `json:"sources"`
	ElapsedMS   int64              `json:"elapsedMs"`
	TotalCount  int                `json:"totalCount"`
	TopKeywords []string           `json:"topKeywords"`
}

type KeywordCount struct {
	Keyword string `json:"keyword"`
	Count   int    `json:"count"`
}

type SourceDiagnostics struct {
	Name                string     `json:"name"`
	Label               string     `json:"label"`
	Category            Category   `json:"category"`
	Enabled             bool       `json:"enabled"`
	ConsecutiveFailures int        `json:"consecutiveFailures"`
	BlockedUntil        *time.Time `json:"blockedUntil,omitempty"`
	LastError           string     `json:"lastError,omitempty"`
	LastSuccessAt       *time.Time `json:"lastSuccessAt,omitempty"`
	LastFailureAt       *time.Time `json:"lastFailureAt,omitempty"`
	LastLatencyMS       int64      `json:"lastLatencyMs,omitempty"`
	LastTimeout         bool       `json:"lastTimeout,omitempty"`
	LastQuery           string     `json:"lastQuery,omitempty"`
	TotalRequests       int64      `json:"totalRequests,omitempty"`
	TotalFailures       int64      `json:"totalFailures,omitempty"`
	RateLimitedCount    int64      `json:"rateLimitedCount,omitempty"`
}
