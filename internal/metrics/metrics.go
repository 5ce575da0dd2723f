package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedstream",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "feedstream",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   []float64{0.05, 0.1, 0.3, 0.5, 1, 2, 5, 10, 20},
	}, []string{"method", "path"})

	SourceFetchesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedstream",
		Name:      "source_fetches_total",
		Help:      "Total source fetches by source name and outcome.",
	}, []string{"source", "outcome"})

	SourceFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "feedstream",
		Name:      "source_fetch_duration_seconds",
		Help:      "Source fetch duration in seconds.",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 15, 20},
	}, []string{"source"})

	SourceAvailable = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "feedstream",
		Name:      "source_available",
		Help:      "Whether a source is available (1) or blocked by circuit breaker (0).",
	}, []string{"source"})

	CacheHitsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedstream",
		Name:      "cache_hits_total",
		Help:      "Total result cache hits by source.",
	}, []string{"source"})

	CacheMissesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedstream",
		Name:      "cache_misses_total",
		Help:      "Total result cache misses by source.",
	}, []string{"source"})

	CacheErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "feedstream",
		Name:      "cache_errors_total",
		Help:      "Result cache backend failures by operation.",
	}, []string{"op"})

	KeywordsRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "feedstream",
		Name:      "keywords_recorded_total",
		Help:      "Total keyword searches recorded by the popularity tracker.",
	})

	TrendingSubscribers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "feedstream",
		Name:      "trending_subscribers",
		Help:      "Connected websocket clients receiving trending keywords.",
	})
)

func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		SourceFetchesTotal,
		SourceFetchDuration,
		SourceAvailable,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheErrorsTotal,
		KeywordsRecordedTotal,
		TrendingSubscribers,
	)
}
