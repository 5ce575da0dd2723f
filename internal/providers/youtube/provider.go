package youtube

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"feedstream/aggregator/internal/domain"
	"feedstream/aggregator/internal/providers/common"
)

const (
	sourceName        = "youtube"
	defaultMaxResults = 10
)

type Config struct {
	APIKey     string
	Endpoint   string
	MaxResults int64
	Client     *http.Client
}

// Provider runs YouTube Data API video searches.
type Provider struct {
	apiKey     string
	endpoint   string
	maxResults int64
	client     *http.Client

	once    sync.Once
	service *yt.Service
	initErr error
}

func NewProvider(cfg Config) *Provider {
	client := cfg.Client
	if client == nil {
		client = common.NewHTTPClient(common.ClientConfig{Source: sourceName})
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 || maxResults > 50 {
		maxResults = defaultMaxResults
	}
	return &Provider{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		endpoint:   strings.TrimSpace(cfg.Endpoint),
		maxResults: maxResults,
		client:     client,
	}
}

func (p *Provider) Name() string { return sourceName }

func (p *Provider) Info() domain.SourceInfo {
	return domain.SourceInfo{
		Name:     sourceName,
		Label:    "YouTube",
		Category: domain.CategoryVideo,
		Enabled:  p.apiKey != "",
	}
}

func (p *Provider) Fetch(ctx context.Context, query string) ([]domain.Record, error) {
	service, err := p.api(ctx)
	if err != nil {
		return nil, &domain.TransportError{Source: sourceName, Err: err}
	}

	response, err := service.Search.List([]string{"id", "snippet"}).
		Q(strings.TrimSpace(query)).
		Type("video").
		MaxResults(p.maxResults).
		Context(ctx).
		Do(googleapi.QueryParameter("key", p.apiKey))
	if err != nil {
		return nil, classifyError(err)
	}

	records := make([]domain.Record, 0, len(response.Items))
	for _, item := range response.Items {
		if item == nil || item.Id == nil || item.Id.VideoId == "" || item.Snippet == nil {
			continue
		}
		records = append(records, domain.Record{
			Title:       item.Snippet.Title,
			Link:        "https://www.youtube.com/watch?v=" + item.Id.VideoId,
			Published:   domain.ParsePublished(item.Snippet.PublishedAt),
			Description: item.Snippet.Description,
			Thumbnail:   defaultThumbnail(item.Snippet.Thumbnails),
			Category:    domain.CategoryVideo,
			Origin:      "YouTube",
		})
	}
	return records, nil
}

func (p *Provider) api(ctx context.Context) (*yt.Service, error) {
	p.once.Do(func() {
		opts := []option.ClientOption{option.WithHTTPClient(p.client)}
		if p.endpoint != "" {
			opts = append(opts, option.WithEndpoint(p.endpoint))
		}
		// The service keeps opts only; ctx is not retained past construction.
		p.service, p.initErr = yt.NewService(context.WithoutCancel(ctx), opts...)
	})
	return p.service, p.initErr
}

func defaultThumbnail(details *yt.ThumbnailDetails) string {
	if details == nil {
		return ""
	}
	for _, thumb := range []*yt.Thumbnail{details.Default, details.Medium, details.High} {
		if thumb != nil && thumb.Url != "" {
			return thumb.Url
		}
	}
	return ""
}

// classifyError maps quota and rate refusals onto ErrRateLimited.
func classifyError(err error) error {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return &domain.TransportError{Source: sourceName, Err: err}
	}
	if apiErr.Code == http.StatusTooManyRequests {
		return &domain.RateLimitError{Source: sourceName}
	}
	if apiErr.Code == http.StatusForbidden {
		for _, item := range apiErr.Errors {
			switch item.Reason {
			case "quotaExceeded", "rateLimitExceeded", "userRateLimitExceeded", "dailyLimitExceeded":
				return &domain.RateLimitError{Source: sourceName}
			}
		}
	}
	message := strings.TrimSpace(apiErr.Message)
	if message == "" {
		message = http.StatusText(apiErr.Code)
	}
	return &domain.TransportError{Source: sourceName, StatusCode: apiErr.Code, Err: errors.New(message)}
}
