package app

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	HTTPAddr             string
	RequestTimeout       time.Duration
	LogLevel             string
	LogFormat            string
	UserAgent            string
	SourcesFile          string
	RedisURL             string
	CacheTTL             time.Duration
	CacheMaxEntries      int
	CacheDisabled        bool
	KeywordStore         string
	KeywordFile          string
	KeywordSQLitePath    string
	MongoURI             string
	MongoDatabase        string
	TwitterBearerToken   string
	YouTubeAPIKey        string
	NewsAPIKey           string
	FeedsInsecureTLS     bool
	MaxConcurrentFetches int
	WarmInterval         time.Duration
	WarmTopKeywords      int
	InboundRatePerSecond int
	InboundBurst         int
}

func LoadConfig() Config {
	return Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8090"),
		RequestTimeout:       time.Duration(getEnvInt("AGGREGATOR_TIMEOUT_SECONDS", 15)) * time.Second,
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:            strings.ToLower(getEnv("LOG_FORMAT", "text")),
		UserAgent:            getEnv("AGGREGATOR_USER_AGENT", "Mozilla/5.0 (compatible; feedstream/1.0)"),
		SourcesFile:          getEnv("SOURCES_FILE", "sources.yaml"),
		RedisURL:             getEnv("REDIS_URL", ""),
		CacheTTL:             time.Duration(getEnvInt("CACHE_TTL_SECONDS", 3600)) * time.Second,
		CacheMaxEntries:      getEnvInt("CACHE_MAX_ENTRIES", 2000),
		CacheDisabled:        getEnvBool("CACHE_DISABLED", false),
		KeywordStore:         normalizeKeywordStore(getEnv("KEYWORD_STORE", "file")),
		KeywordFile:          getEnv("KEYWORD_FILE", "searched_keywords.json"),
		KeywordSQLitePath:    getEnv("KEYWORD_SQLITE_PATH", "data/keywords.db"),
		MongoURI:             getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:        getEnv("MONGO_DB", "feedstream"),
		TwitterBearerToken:   strings.TrimSpace(os.Getenv("TWITTER_BEARER_TOKEN")),
		YouTubeAPIKey:        strings.TrimSpace(os.Getenv("YOUTUBE_API_KEY")),
		NewsAPIKey:           strings.TrimSpace(os.Getenv("NEWSAPI_KEY")),
		FeedsInsecureTLS:     getEnvBool("FEEDS_INSECURE_TLS", false),
		MaxConcurrentFetches: getEnvInt("MAX_CONCURRENT_FETCHES", 16),
		WarmInterval:         time.Duration(getEnvInt("WARM_INTERVAL_MINUTES", 0)) * time.Minute,
		WarmTopKeywords:      getEnvInt("WARM_TOP_KEYWORDS", 5),
		InboundRatePerSecond: getEnvInt("HTTP_RATE_LIMIT_RPS", 20),
		InboundBurst:         getEnvInt("HTTP_RATE_LIMIT_BURST", 40),
	}
}

func normalizeKeywordStore(raw string) string {
	switch value := strings.ToLower(strings.TrimSpace(raw)); value {
	case "file", "redis", "mongo", "sqlite":
		return value
	default:
		return "file"
	}
}

func getEnv(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func getEnvInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil || parsed <= 0 {
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
