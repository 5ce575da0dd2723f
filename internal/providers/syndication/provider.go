package syndication

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"feedstream/aggregator/internal/domain"
	"feedstream/aggregator/internal/providers/common"
)

const (
	sourceName           = "syndication"
	QueryPlaceholder     = "{query}"
	PlaceholderThumbnail = "https://via.placeholder.com/150"
	defaultMaxPerQuery   = 5
	defaultConcurrency   = 8
)

// Endpoint is one RSS/Atom feed. URLs containing QueryPlaceholder are
// expanded per query; others are static and filtered by keyword.
type Endpoint struct {
	Name string `yaml:"name" json:"name"`
	URL  string `yaml:"url" json:"url"`
}

func (e Endpoint) templated() bool {
	return strings.Contains(e.URL, QueryPlaceholder)
}

func (e Endpoint) expand(query string) string {
	return strings.ReplaceAll(e.URL, QueryPlaceholder, url.QueryEscape(query))
}

// DefaultEndpoints is used when no sources file lists feeds.
func DefaultEndpoints() []Endpoint {
	return []Endpoint{
		{Name: "Google News", URL: "https://news.google.com/rss/search?q={query}&hl=en-US&gl=US&ceid=US:en"},
		{Name: "BBC News", URL: "https://news.google.com/rss/search?q={query}+source:BBC&hl=en-US&gl=US&ceid=US:en"},
		{Name: "The Guardian", URL: "https://www.theguardian.com/world/rss"},
		{Name: "Al Jazeera", URL: "https://www.aljazeera.com/xml/rss/all.xml"},
		{Name: "BBC", URL: "https://feeds.bbci.co.uk/news/rss.xml"},
		{Name: "New York Times", URL: "https://rss.nytimes.com/services/xml/rss/nyt/HomePage.xml"},
		{Name: "Sky News", URL: "https://feeds.skynews.com/feeds/rss/home.xml"},
		{Name: "NPR", URL: "https://www.npr.org/rss/rss.php?id=1001"},
	}
}

type Config struct {
	Endpoints   []Endpoint
	MaxPerQuery int
	Concurrency int
	Client      *http.Client
	Logger      *slog.Logger
}

type Provider struct {
	endpoints   []Endpoint
	maxPerQuery int
	concurrency int
	client      *http.Client
	logger      *slog.Logger
}

func NewProvider(cfg Config) *Provider {
	endpoints := make([]Endpoint, 0, len(cfg.Endpoints))
	for _, endpoint := range cfg.Endpoints {
		endpoint.URL = strings.TrimSpace(endpoint.URL)
		endpoint.Name = strings.TrimSpace(endpoint.Name)
		if endpoint.URL == "" {
			continue
		}
		endpoints = append(endpoints, endpoint)
	}
	if len(cfg.Endpoints) == 0 {
		endpoints = DefaultEndpoints()
	}
	client := cfg.Client
	if client == nil {
		client = common.NewHTTPClient(common.ClientConfig{Source: sourceName})
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxPerQuery := cfg.MaxPerQuery
	if maxPerQuery <= 0 {
		maxPerQuery = defaultMaxPerQuery
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Provider{
		endpoints:   endpoints,
		maxPerQuery: maxPerQuery,
		concurrency: concurrency,
		client:      client,
		logger:      logger,
	}
}

func (p *Provider) Name() string { return sourceName }

func (p *Provider) Info() domain.SourceInfo {
	return domain.SourceInfo{
		Name:     sourceName,
		Label:    "News feeds",
		Category: domain.CategoryNews,
		Enabled:  len(p.endpoints) > 0,
	}
}

func (p *Provider) Fetch(ctx context.Context, query string) ([]domain.Record, error) {
	results := p.FetchBatch(ctx, []string{query})
	if len(results) == 0 {
		return nil, nil
	}
	return results[0].Records, results[0].Err
}

// feedJob is one URL download. Static feeds serve every query of the batch.
type feedJob struct {
	endpoint Endpoint
	url      string
	queries  []int
	filter   bool
}

type jobOutcome struct {
	perQuery map[int][]domain.Record
	err      error
}

// FetchBatch downloads every feed URL needed for queries in one concurrent
// pass. Results are returned in query order.
func (p *Provider) FetchBatch(ctx context.Context, queries []string) []domain.BatchResult {
	results := make([]domain.BatchResult, len(queries))
	for i, query := range queries {
		results[i].Query = query
	}
	if len(queries) == 0 {
		return results
	}

	jobs := p.planJobs(queries)
	outcomes := make([]jobOutcome, len(jobs))

	var group errgroup.Group
	group.SetLimit(p.concurrency)
	for i, job := range jobs {
		group.Go(func() error {
			outcomes[i] = p.runJob(ctx, job, queries)
			return nil
		})
	}
	_ = group.Wait()

	failures := make([][]error, len(queries))
	succeeded := make([]bool, len(queries))
	for i, job := range jobs {
		outcome := outcomes[i]
		for _, q := range job.queries {
			if outcome.err != nil {
				failures[q] = append(failures[q], outcome.err)
				continue
			}
			succeeded[q] = true
			results[q].Records = append(results[q].Records, outcome.perQuery[q]...)
		}
	}
	for q := range results {
		if !succeeded[q] && len(failures[q]) > 0 {
			results[q].Err = errors.Join(failures[q]...)
		}
	}
	return results
}

func (p *Provider) planJobs(queries []string) []feedJob {
	all := make([]int, len(queries))
	for i := range queries {
		all[i] = i
	}
	jobs := make([]feedJob, 0, len(p.endpoints)*len(queries))
	for _, endpoint := range p.endpoints {
		if !endpoint.templated() {
			jobs = append(jobs, feedJob{endpoint: endpoint, url: endpoint.URL, queries: all, filter: true})
			continue
		}
		for i, query := range queries {
			jobs = append(jobs, feedJob{endpoint: endpoint, url: endpoint.expand(query), queries: []int{i}})
		}
	}
	return jobs
}

func (p *Provider) runJob(ctx context.Context, job feedJob, queries []string) jobOutcome {
	feed, err := p.download(ctx, job.url)
	if err != nil {
		p.logger.Debug("feed fetch failed",
			slog.String("feed", job.endpoint.Name),
			slog.String("url", job.url),
			slog.String("error", err.Error()),
		)
		return jobOutcome{err: err}
	}

	origin := job.endpoint.Name
	if origin == "" {
		origin = strings.TrimSpace(feed.Title)
	}
	perQuery := make(map[int][]domain.Record, len(job.queries))
	for _, q := range job.queries {
		needle := strings.ToLower(strings.TrimSpace(queries[q]))
		records := make([]domain.Record, 0, p.maxPerQuery)
		for _, item := range feed.Items {
			if len(records) >= p.maxPerQuery {
				break
			}
			if item == nil || strings.TrimSpace(item.Link) == "" {
				continue
			}
			if job.filter && !matches(item, needle) {
				continue
			}
			records = append(records, toRecord(item, origin))
		}
		perQuery[q] = records
	}
	return jobOutcome{perQuery: perQuery}
}

func (p *Provider) download(ctx context.Context, feedURL string) (*gofeed.Feed, error) {
	headers := http.Header{}
	headers.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")
	payload, err := common.Get(ctx, p.client, sourceName, feedURL, headers)
	if err != nil {
		return nil, err
	}
	feed, err := gofeed.NewParser().Parse(bytes.NewReader(payload))
	if err != nil {
		return nil, &domain.ParseError{Source: sourceName, Err: fmt.Errorf("%s: %w", feedURL, err)}
	}
	return feed, nil
}

func matches(item *gofeed.Item, needle string) bool {
	if needle == "" {
		return true
	}
	return strings.Contains(strings.ToLower(item.Title), needle) ||
		strings.Contains(strings.ToLower(item.Description), needle)
}

func toRecord(item *gofeed.Item, origin string) domain.Record {
	return domain.Record{
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Published:   itemPublished(item),
		Description: common.HTMLText(item.Description),
		Thumbnail:   itemThumbnail(item),
		Category:    domain.CategoryNews,
		Origin:      origin,
	}
}

func itemPublished(item *gofeed.Item) time.Time {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC()
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC()
	}
	if parsed := domain.ParsePublished(item.Published); !parsed.IsZero() {
		return parsed
	}
	return domain.ParsePublished(item.Updated)
}

func itemThumbnail(item *gofeed.Item) string {
	if item.Image != nil && strings.TrimSpace(item.Image.URL) != "" {
		return strings.TrimSpace(item.Image.URL)
	}
	for _, enclosure := range item.Enclosures {
		if enclosure != nil && strings.HasPrefix(enclosure.Type, "image/") && enclosure.URL != "" {
			return enclosure.URL
		}
	}
	if image := common.FirstImage(item.Description); image != "" {
		return image
	}
	if image := common.FirstImage(item.Content); image != "" {
		return image
	}
	return PlaceholderThumbnail
}
