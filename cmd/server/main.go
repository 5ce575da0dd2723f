package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	apihttp "feedstream/aggregator/internal/api/http"
	"feedstream/aggregator/internal/app"
	"feedstream/aggregator/internal/metrics"
	"feedstream/aggregator/internal/telemetry"
)

const serviceName = "feedstream-aggregator"

var version = "dev"

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), serviceName, version)
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	sources, err := app.LoadSources(cfg.SourcesFile)
	if err != nil {
		logger.Error("sources file invalid", slog.String("path", cfg.SourcesFile), slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		slog.String("service", serviceName),
		slog.String("version", version),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.Duration("requestTimeout", cfg.RequestTimeout),
		slog.String("sourcesFile", cfg.SourcesFile),
		slog.Int("feeds", len(sources.Feeds)),
		slog.Int("handles", len(sources.Handles)),
		slog.Bool("hasRedis", cfg.RedisURL != ""),
		slog.String("keywordStore", cfg.KeywordStore),
		slog.Bool("hasTwitterToken", cfg.TwitterBearerToken != ""),
		slog.Bool("hasYouTubeKey", cfg.YouTubeAPIKey != ""),
		slog.Bool("hasNewsAPIKey", cfg.NewsAPIKey != ""),
		slog.Duration("cacheTTL", cfg.CacheTTL),
		slog.Duration("warmInterval", cfg.WarmInterval),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime := app.Build(rootCtx, cfg, sources, logger)
	defer runtime.Close()
	searchService := runtime.Service
	tracker := runtime.Tracker

	apiServer := apihttp.NewServer(searchService,
		apihttp.WithLogger(logger),
		apihttp.WithKeywords(tracker),
		apihttp.WithRateLimit(float64(cfg.InboundRatePerSecond), cfg.InboundBurst),
	)
	defer apiServer.Close()
	tracker.OnChange(apiServer.BroadcastTrending)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Websocket connections outlive any fixed write timeout.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	searchService.StartWarmer(rootCtx)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	logger.Info("feedstream aggregator started",
		slog.String("addr", cfg.HTTPAddr),
		slog.Int("sources", len(searchService.Sources())),
		slog.Duration("timeout", cfg.RequestTimeout),
	)

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("feedstream aggregator stopped")
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
