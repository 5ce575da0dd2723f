package newsapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"feedstream/aggregator/internal/domain"
	"feedstream/aggregator/internal/providers/common"
)

const (
	sourceName      = "newsapi"
	defaultEndpoint = "https://newsapi.org/v2/everything"
)

type Config struct {
	Endpoint string
	APIKey   string
	Language string
	Client   *http.Client
}

// Provider queries the newsapi.org everything endpoint.
type Provider struct {
	client   *http.Client
	endpoint string
	apiKey   string
	language string
}

type everythingResponse struct {
	Status   string `json:"status"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Articles []struct {
		Source struct {
			Name string `json:"name"`
		} `json:"source"`
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
		URLToImage  string `json:"urlToImage"`
		PublishedAt string `json:"publishedAt"`
	} `json:"articles"`
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
	language := strings.TrimSpace(cfg.Language)
	if language == "" {
		language = "en"
	}
	return &Provider{
		client:   client,
		endpoint: endpoint,
		apiKey:   strings.TrimSpace(cfg.APIKey),
		language: language,
	}
}

func (p *Provider) Name() string { return sourceName }

func (p *Provider) Info() domain.SourceInfo {
	return domain.SourceInfo{
		Name:     sourceName,
		Label:    "NewsAPI",
		Category: domain.CategoryNews,
		Enabled:  p.apiKey != "",
	}
}

func (p *Provider) Fetch(ctx context.Context, query string) ([]domain.Record, error) {
	return p.FetchPage(ctx, query, 0)
}

// FetchPage requests one result page. page <= 0 omits the parameter.
func (p *Provider) FetchPage(ctx context.Context, query string, page int) ([]domain.Record, error) {
	params := url.Values{}
	params.Set("q", strings.TrimSpace(query))
	params.Set("language", p.language)
	params.Set("sortBy", "publishedAt")
	if page > 0 {
		params.Set("page", strconv.Itoa(page))
	}

	headers := http.Header{}
	headers.Set("X-Api-Key", p.apiKey)

	payload, err := common.Get(ctx, p.client, sourceName, p.endpoint+"?"+params.Encode(), headers)
	if err != nil {
		// newsapi reports quota exhaustion as 429 with code=rateLimited,
		// sometimes behind other statuses.
		var transportErr *domain.TransportError
		if errors.As(err, &transportErr) && strings.Contains(transportErr.Error(), "rateLimited") {
			return nil, &domain.RateLimitError{Source: sourceName}
		}
		return nil, err
	}

	var response everythingResponse
	if err := json.Unmarshal(payload, &response); err != nil {
		return nil, &domain.ParseError{Source: sourceName, Err: err}
	}
	if response.Status == "error" {
		if response.Code == "rateLimited" {
			return nil, &domain.RateLimitError{Source: sourceName}
		}
		return nil, &domain.TransportError{Source: sourceName, Err: errors.New(response.Code + ": " + response.Message)}
	}

	records := make([]domain.Record, 0, len(response.Articles))
	for _, article := range response.Articles {
		link := strings.TrimSpace(article.URL)
		if link == "" {
			continue
		}
		origin := strings.TrimSpace(article.Source.Name)
		if origin == "" {
			origin = "NewsAPI"
		}
		records = append(records, domain.Record{
			Title:       strings.TrimSpace(article.Title),
			Link:        link,
			Published:   domain.ParsePublished(article.PublishedAt),
			Description: common.HTMLText(article.Description),
			Thumbnail:   strings.TrimSpace(article.URLToImage),
			Category:    domain.CategoryNews,
			Origin:      origin,
		})
	}
	return records, nil
}
