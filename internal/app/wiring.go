package app

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"

	"feedstream/aggregator/internal/keywords"
	"feedstream/aggregator/internal/providers/common"
	"feedstream/aggregator/internal/providers/newsapi"
	"feedstream/aggregator/internal/providers/placeholder"
	"feedstream/aggregator/internal/providers/syndication"
	"feedstream/aggregator/internal/providers/twitter"
	"feedstream/aggregator/internal/providers/youtube"
	"feedstream/aggregator/internal/search"
)

// Runtime is the assembled aggregation stack shared by the server and CLI.
type Runtime struct {
	Service *search.Service
	Tracker *keywords.Tracker
	closers []func()
}

// Build wires cache, keyword store and adapters from cfg. Unreachable
// optional backends degrade to their in-process fallbacks.
func Build(ctx context.Context, cfg Config, sources Sources, logger *slog.Logger) *Runtime {
	rt := &Runtime{}

	redisClient := ConnectRedis(ctx, cfg, logger)
	if redisClient != nil {
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
	}
	store, closeStore := BuildKeywordStore(ctx, cfg, redisClient, logger)
	rt.closers = append(rt.closers, closeStore)

	rt.Tracker = keywords.NewTracker(store, keywords.WithLogger(logger))
	rt.Service = search.NewService(
		BuildAdapters(cfg, sources, logger),
		cfg.RequestTimeout,
		serviceOptions(cfg, sources, redisClient, rt.Tracker, logger)...,
	)
	return rt
}

// Close releases backends in reverse order of acquisition.
func (r *Runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
	r.closers = nil
}

func ConnectRedis(ctx context.Context, cfg Config, logger *slog.Logger) *redis.Client {
	redisURL := strings.TrimSpace(cfg.RedisURL)
	if redisURL == "" {
		return nil
	}
	redisOpts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid redis url, redis disabled", slog.String("error", err.Error()))
		return nil
	}
	client := redis.NewClient(redisOpts)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Warn("redis not reachable, redis disabled", slog.String("error", err.Error()))
		_ = client.Close()
		return nil
	}
	logger.Info("redis connected", slog.String("addr", redisOpts.Addr))
	return client
}

// BuildKeywordStore opens the configured backend and falls back to the JSON
// file when it cannot be reached.
func BuildKeywordStore(ctx context.Context, cfg Config, redisClient *redis.Client, logger *slog.Logger) (keywords.Store, func()) {
	fallback := func(reason string, err error) (keywords.Store, func()) {
		attrs := []any{slog.String("store", cfg.KeywordStore), slog.String("reason", reason)}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		logger.Warn("keyword store unavailable, using file store", attrs...)
		return keywords.NewFileStore(cfg.KeywordFile), func() {}
	}

	switch cfg.KeywordStore {
	case "redis":
		if redisClient == nil {
			return fallback("redis not connected", nil)
		}
		return keywords.NewRedisStore(redisClient), func() {}
	case "sqlite":
		store, err := keywords.OpenSQLite(cfg.KeywordSQLitePath)
		if err != nil {
			return fallback("sqlite open failed", err)
		}
		logger.Info("keyword store opened", slog.String("store", "sqlite"), slog.String("path", cfg.KeywordSQLitePath))
		return store, func() { _ = store.Close() }
	case "mongo":
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		client, err := keywords.ConnectMongo(connectCtx, cfg.MongoURI, options.Client().SetMonitor(otelmongo.NewMonitor()))
		if err != nil {
			return fallback("mongo connect failed", err)
		}
		if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
			_ = client.Disconnect(context.Background())
			return fallback("mongo ping failed", err)
		}
		logger.Info("keyword store opened", slog.String("store", "mongo"), slog.String("db", cfg.MongoDatabase))
		return keywords.NewMongoStore(client, cfg.MongoDatabase), func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = client.Disconnect(disconnectCtx)
		}
	default:
		return keywords.NewFileStore(cfg.KeywordFile), func() {}
	}
}

// BuildAdapters registers every adapter that has the credentials it needs.
func BuildAdapters(cfg Config, sources Sources, logger *slog.Logger) []search.Adapter {
	client := func(source string, insecure bool) *http.Client {
		return common.NewHTTPClient(common.ClientConfig{
			Source:      source,
			Timeout:     cfg.RequestTimeout,
			UserAgent:   cfg.UserAgent,
			InsecureTLS: insecure,
			Logger:      logger,
		})
	}

	adapters := []search.Adapter{
		placeholder.NewFacebook(),
		placeholder.NewInstagram(),
	}

	if cfg.TwitterBearerToken != "" {
		adapters = append(adapters, twitter.NewProvider(twitter.Config{
			BearerToken: cfg.TwitterBearerToken,
			Handles:     sources.Handles,
			Client:      client("twitter", false),
		}))
	} else {
		logger.Info("twitter bearer token not configured, social source disabled")
	}

	if cfg.YouTubeAPIKey != "" {
		adapters = append(adapters, youtube.NewProvider(youtube.Config{
			APIKey: cfg.YouTubeAPIKey,
			Client: client("youtube", false),
		}))
	} else {
		logger.Info("youtube api key not configured, video source disabled")
	}

	endpoints := make([]syndication.Endpoint, 0, len(sources.Feeds))
	for _, feed := range sources.Feeds {
		endpoints = append(endpoints, syndication.Endpoint{Name: feed.Name, URL: feed.URL})
	}
	adapters = append(adapters, syndication.NewProvider(syndication.Config{
		Endpoints: endpoints,
		Client:    client("syndication", cfg.FeedsInsecureTLS),
		Logger:    logger,
	}))

	if cfg.NewsAPIKey != "" {
		adapters = append(adapters, newsapi.NewProvider(newsapi.Config{
			APIKey: cfg.NewsAPIKey,
			Client: client("newsapi", false),
		}))
	} else {
		logger.Info("newsapi key not configured, news api source disabled")
	}
	return adapters
}

func serviceOptions(cfg Config, sources Sources, redisClient *redis.Client, tracker *keywords.Tracker, logger *slog.Logger) []search.ServiceOption {
	opts := []search.ServiceOption{
		search.WithLogger(logger),
		search.WithTracker(tracker),
		search.WithMaxConcurrentFetches(cfg.MaxConcurrentFetches),
	}
	if cfg.WarmInterval > 0 {
		opts = append(opts, search.WithWarmer(cfg.WarmInterval, cfg.WarmTopKeywords))
	}
	for name, limit := range sources.RateLimits {
		opts = append(opts, search.WithSourceRateLimit(name, search.RateLimit{PerSecond: limit.PerSecond, Burst: limit.Burst}))
	}

	if cfg.CacheDisabled {
		return append(opts, search.WithCacheDisabled(true))
	}
	local := search.NewMemoryCache(cfg.CacheTTL, cfg.CacheMaxEntries)
	if redisClient == nil {
		return append(opts, search.WithCache(local))
	}
	return append(opts, search.WithCache(search.NewLayeredCache(search.NewRedisCache(redisClient, cfg.CacheTTL), local)))
}
