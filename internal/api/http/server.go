package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"feedstream/aggregator/internal/domain"
	"feedstream/aggregator/internal/search"
)

type SearchService interface {
	HandleSearch(ctx context.Context, keyword string) (domain.SearchResponse, error)
	NewsPage(ctx context.Context, keyword string, page int) ([]domain.Record, error)
	Sources() []domain.SourceInfo
	SourceDiagnostics() []domain.SourceDiagnostics
}

// KeywordRanking exposes the popularity tracker to the API.
type KeywordRanking interface {
	Top(ctx context.Context) []string
	Ranked(ctx context.Context) []domain.KeywordCount
}

type Server struct {
	search   SearchService
	keywords KeywordRanking
	hub      *wsHub
	logger   *slog.Logger
	rps      float64
	burst    int
}

const (
	maxKeywordLength  = 500
	defaultTopLimit   = 10
	defaultInboundRPS = 20
	defaultBurst      = 40
)

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithKeywords(keywords KeywordRanking) ServerOption {
	return func(s *Server) {
		s.keywords = keywords
	}
}

// WithRateLimit sets the global inbound token bucket.
func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.rps = rps
		}
		if burst > 0 {
			s.burst = burst
		}
	}
}

func NewServer(searchService SearchService, options ...ServerOption) *Server {
	server := &Server{
		search: searchService,
		logger: slog.Default(),
		rps:    defaultInboundRPS,
		burst:  defaultBurst,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	server.hub = newWSHub(server.logger)
	go server.hub.run()
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/search", s.handleSearch)
	mux.HandleFunc("/search/news", s.handleNews)
	mux.HandleFunc("/search/providers", s.handleProviders)
	mux.HandleFunc("/search/providers/health", s.handleProvidersHealth)
	mux.HandleFunc("/keywords/top", s.handleTopKeywords)
	mux.HandleFunc("/ws", s.handleWS)
	traced := otelhttp.NewHandler(accessMiddleware(s.logger, mux), "feedstream-aggregator",
		otelhttp.WithFilter(func(r *http.Request) bool { return !quietPaths[r.URL.Path] }),
	)
	return recoveryMiddleware(s.logger, requestIDMiddleware(rateLimitMiddleware(s.rps, s.burst, traced)))
}

// BroadcastTrending pushes a new keyword ranking to websocket subscribers.
func (s *Server) BroadcastTrending(keywords []string) {
	s.hub.BroadcastTrending(capList(keywords, defaultTopLimit))
}

// Close disconnects websocket clients.
func (s *Server) Close() {
	s.hub.Close()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}

	keyword, ok := keywordParam(w, r)
	if !ok {
		return
	}

	response, err := s.search.HandleSearch(r.Context(), keyword)
	if err != nil {
		s.logger.Warn("search request failed",
			slog.String("keyword", truncate(keyword, 80)),
			slog.String("error", err.Error()),
		)
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleNews(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}
	keyword, ok := keywordParam(w, r)
	if !ok {
		return
	}
	if keyword == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "keyword is required")
		return
	}
	page, err := parsePositiveInt(r, "page", 1)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid page")
		return
	}

	records, err := s.search.NewsPage(r.Context(), keyword, page)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"keyword": keyword,
		"page":    page,
		"results": records,
	})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/search/providers" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items": s.search.Sources(),
	})
}

func (s *Server) handleProvidersHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.search == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "search service is not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"checkedAt": time.Now().UTC(),
		"items":     s.search.SourceDiagnostics(),
	})
}

func (s *Server) handleTopKeywords(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	limit, err := parsePositiveInt(r, "limit", defaultTopLimit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid limit")
		return
	}
	counts := []domain.KeywordCount{}
	if s.keywords != nil {
		counts = s.keywords.Ranked(r.Context())
	}
	if len(counts) > limit {
		counts = counts[:limit]
	}
	keywords := make([]string, 0, len(counts))
	for _, item := range counts {
		keywords = append(keywords, item.Keyword)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"keywords": keywords,
		"counts":   counts,
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("ws upgrade failed", slog.String("error", err.Error()))
		return
	}
	client := &wsClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
	}

	var top []string
	if s.keywords != nil {
		top = s.keywords.Top(r.Context())
	}
	if payload, err := encodeTrending(capList(top, defaultTopLimit)); err == nil {
		client.send <- payload
	}

	if !s.hub.join(client) {
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, search.ErrInvalidQuery):
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errors.Is(err, search.ErrNoProviders):
		writeError(w, http.StatusServiceUnavailable, "service_unavailable", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "search timed out")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", "search failed")
	}
}

// keywordParam accepts keyword or q. An oversized value writes a 400.
func keywordParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	keyword := strings.TrimSpace(r.URL.Query().Get("keyword"))
	if keyword == "" {
		keyword = strings.TrimSpace(r.URL.Query().Get("q"))
	}
	if len(keyword) > maxKeywordLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "keyword too long (max 500 characters)")
		return "", false
	}
	return keyword, true
}

func capList(values []string, limit int) []string {
	if values == nil {
		return []string{}
	}
	if limit > 0 && len(values) > limit {
		return values[:limit]
	}
	return values
}

func parsePositiveInt(r *http.Request, key string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return 0, errors.New("invalid value")
	}
	return parsed, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
