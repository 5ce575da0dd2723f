package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"feedstream/aggregator/internal/domain"
	"feedstream/aggregator/internal/providers/common"
)

const (
	sourceName        = "twitter"
	defaultEndpoint   = "https://api.twitter.com/2/tweets/search/recent"
	defaultMaxResults = 50
)

type Config struct {
	Endpoint    string
	BearerToken string
	Handles     []string
	MaxResults  int
	Client      *http.Client
}

// Provider searches recent tweets from a fixed set of handles.
type Provider struct {
	client      *http.Client
	endpoint    string
	bearerToken string
	handles     []string
	maxResults  int
}

type searchResponse struct {
	Data []struct {
		ID        string `json:"id"`
		Text      string `json:"text"`
		AuthorID  string `json:"author_id"`
		CreatedAt string `json:"created_at"`
	} `json:"data"`
	Meta struct {
		ResultCount int `json:"result_count"`
	} `json:"meta"`
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = common.NewHTTPClient(common.ClientConfig{Source: sourceName})
	}
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	maxResults := cfg.MaxResults
	if maxResults < 10 || maxResults > 100 {
		maxResults = defaultMaxResults
	}
	return &Provider{
		client:      client,
		endpoint:    endpoint,
		bearerToken: strings.TrimSpace(cfg.BearerToken),
		handles:     normalizeHandles(cfg.Handles),
		maxResults:  maxResults,
	}
}

func (p *Provider) Name() string { return sourceName }

func (p *Provider) Info() domain.SourceInfo {
	return domain.SourceInfo{
		Name:     sourceName,
		Label:    "Twitter",
		Category: domain.CategorySocial,
		Enabled:  p.bearerToken != "",
	}
}

func (p *Provider) Fetch(ctx context.Context, query string) ([]domain.Record, error) {
	params := url.Values{}
	params.Set("query", buildQuery(query, p.handles))
	params.Set("max_results", strconv.Itoa(p.maxResults))
	params.Set("tweet.fields", "created_at,text,author_id")

	headers := http.Header{}
	headers.Set("Authorization", "Bearer "+p.bearerToken)
	headers.Set("Accept", "application/json")

	payload, err := common.Get(ctx, p.client, sourceName, p.endpoint+"?"+params.Encode(), headers)
	if err != nil {
		return nil, err
	}

	var response searchResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, &domain.ParseError{Source: sourceName, Err: err}
	}

	records := make([]domain.Record, 0, len(response.Data))
	for _, tweet := range response.Data {
		if strings.TrimSpace(tweet.ID) == "" {
			continue
		}
		records = append(records, domain.Record{
			Title:       fmt.Sprintf("Tweet by User %s", tweet.AuthorID),
			Link:        "https://twitter.com/user/status/" + tweet.ID,
			Published:   domain.ParsePublished(tweet.CreatedAt),
			Description: tweet.Text,
			Category:    domain.CategorySocial,
			Origin:      "Twitter",
		})
	}
	return records, nil
}

// buildQuery restricts the search to the tracked handles:
// `q (from:a OR from:b)`.
func buildQuery(query string, handles []string) string {
	query = strings.TrimSpace(query)
	if len(handles) == 0 {
		return query
	}
	filters := make([]string, 0, len(handles))
	for _, handle := range handles {
		filters = append(filters, "from:"+handle)
	}
	return query + " (" + strings.Join(filters, " OR ") + ")"
}

func normalizeHandles(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	handles := make([]string, 0, len(raw))
	for _, value := range raw {
		handle := strings.TrimPrefix(strings.TrimSpace(value), "@")
		if handle == "" {
			continue
		}
		key := strings.ToLower(handle)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		handles = append(handles, handle)
	}
	return handles
}
