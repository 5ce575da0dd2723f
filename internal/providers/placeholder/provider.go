// Package placeholder provides synthetic adapters for networks without a
// public search API. Each returns a single stand-in record per query.
package placeholder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"feedstream/aggregator/internal/domain"
)

const thumbnail = "https://via.placeholder.com/150"

type Provider struct {
	name     string
	label    string
	link     string
	category domain.Category
	now      func() time.Time
}

func NewFacebook() *Provider {
	return &Provider{name: "facebook", label: "Facebook", link: "https://facebook.com", category: domain.CategoryFeed1, now: time.Now}
}

func NewInstagram() *Provider {
	return &Provider{name: "instagram", label: "Instagram", link: "https://instagram.com", category: domain.CategoryFeed2, now: time.Now}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) Info() domain.SourceInfo {
	return domain.SourceInfo{Name: p.name, Label: p.label, Category: p.category, Enabled: true}
}

func (p *Provider) Fetch(ctx context.Context, query string) ([]domain.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	return []domain.Record{{
		Title:       fmt.Sprintf("%s post about %s", p.label, query),
		Link:        p.link,
		Published:   p.now().UTC(),
		Description: fmt.Sprintf("Sample %s content for %s", p.label, query),
		Thumbnail:   thumbnail,
		Category:    p.category,
		Origin:      p.label,
	}}, nil
}
