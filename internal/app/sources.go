package app

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Sources is the optional YAML file listing syndication feeds, tracked
// social handles and per-source outbound request limits.
type Sources struct {
	Feeds      []FeedSource         `yaml:"feeds"`
	Handles    []string             `yaml:"handles"`
	RateLimits map[string]RateLimit `yaml:"rate_limits"`
}

type FeedSource struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

type RateLimit struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
}

// LoadSources reads path. A missing file yields empty Sources, which leaves
// the syndication adapter on its built-in feed list.
func LoadSources(path string) (Sources, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return Sources{}, nil
	}
	payload, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Sources{}, nil
		}
		return Sources{}, fmt.Errorf("read sources file: %w", err)
	}
	return ParseSources(payload)
}

func ParseSources(payload []byte) (Sources, error) {
	var sources Sources
	if err := yaml.Unmarshal(payload, &sources); err != nil {
		return Sources{}, fmt.Errorf("parse sources file: %w", err)
	}

	feeds := make([]FeedSource, 0, len(sources.Feeds))
	for i, feed := range sources.Feeds {
		feed.Name = strings.TrimSpace(feed.Name)
		feed.URL = strings.TrimSpace(feed.URL)
		if feed.URL == "" {
			return Sources{}, fmt.Errorf("feeds[%d]: url is required", i)
		}
		if !strings.HasPrefix(feed.URL, "http://") && !strings.HasPrefix(feed.URL, "https://") {
			return Sources{}, fmt.Errorf("feeds[%d]: url must be http(s): %q", i, feed.URL)
		}
		feeds = append(feeds, feed)
	}
	sources.Feeds = feeds

	handles := make([]string, 0, len(sources.Handles))
	for _, handle := range sources.Handles {
		handle = strings.TrimPrefix(strings.TrimSpace(handle), "@")
		if handle != "" {
			handles = append(handles, handle)
		}
	}
	sources.Handles = handles

	limits := make(map[string]RateLimit, len(sources.RateLimits))
	for name, limit := range sources.RateLimits {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" || limit.PerSecond <= 0 {
			continue
		}
		if limit.Burst <= 0 {
			limit.Burst = 1
		}
		limits[name] = limit
	}
	sources.RateLimits = limits
	return sources, nil
}
