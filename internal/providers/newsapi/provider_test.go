package newsapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"feedstream/aggregator/internal/domain"
)

func TestFetchPageParsesArticles(t *testing.T) {
	var gotKey, gotPage, gotSort string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		gotPage = r.URL.Query().Get("page")
		gotSort = r.URL.Query().Get("sortBy")
		_, _ = w.Write([]byte(`{
			"status": "ok",
			"articles": [
				{"source": {"name": "Reuters"}, "title": "Story", "description": "<b>Body</b>", "url": "https://news.example/1", "urlToImage": "https://img.example/1.jpg", "publishedAt": "2024-03-04T10:00:00Z"},
				{"source": {"name": "Nobody"}, "title": "No link", "url": ""}
			]
		}`))
	}))
	defer server.Close()

	provider := NewProvider(Config{Endpoint: server.URL, APIKey: "secret"})
	records, err := provider.FetchPage(context.Background(), "covid", 2)
	if err != nil {
		t.Fatalf("fetch page: %v", err)
	}
	if gotKey != "secret" || gotPage != "2" || gotSort != "publishedAt" {
		t.Fatalf("unexpected request: key=%q page=%q sort=%q", gotKey, gotPage, gotSort)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].Origin != "Reuters" || records[0].Description != "Body" || records[0].Published.IsZero() {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestFetchOmitsPage(t *testing.T) {
	var hasPage bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasPage = r.URL.Query().Has("page")
		_, _ = w.Write([]byte(`{"status": "ok", "articles": []}`))
	}))
	defer server.Close()

	records, err := NewProvider(Config{Endpoint: server.URL, APIKey: "secret"}).Fetch(context.Background(), "covid")
	if err != nil || len(records) != 0 {
		t.Fatalf("expected empty result, got %v, %v", records, err)
	}
	if hasPage {
		t.Fatal("plain fetch must not send a page parameter")
	}
}

func TestFetchRateLimitedVariants(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		payload string
	}{
		{"http 429", http.StatusTooManyRequests, `{"status":"error","code":"rateLimited"}`},
		{"error code on 200", http.StatusOK, `{"status":"error","code":"rateLimited","message":"slow down"}`},
		{"error code on 426", http.StatusUpgradeRequired, `{"status":"error","code":"rateLimited"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.payload))
			}))
			defer server.Close()

			_, err := NewProvider(Config{Endpoint: server.URL, APIKey: "secret"}).Fetch(context.Background(), "covid")
			if !errors.Is(err, domain.ErrRateLimited) {
				t.Fatalf("expected rate limit, got %v", err)
			}
		})
	}
}

func TestFetchAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"status":"error","code":"apiKeyInvalid"}`))
	}))
	defer server.Close()

	_, err := NewProvider(Config{Endpoint: server.URL, APIKey: "bad"}).Fetch(context.Background(), "covid")
	if errors.Is(err, domain.ErrRateLimited) {
		t.Fatal("invalid key must not look like a rate limit")
	}
	var transportErr *domain.TransportError
	if !errors.As(err, &transportErr) || transportErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 transport error, got %v", err)
	}
}
