package common

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"feedstream/aggregator/internal/domain"
)

const (
	DefaultTimeout   = 15 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (compatible; feedstream/1.0)"
	maxBodyBytes     = 4 * 1024 * 1024
	snippetLimit     = 220
)

type ClientConfig struct {
	Source      string
	Timeout     time.Duration
	UserAgent   string
	InsecureTLS bool
	Logger      *slog.Logger
	// Base overrides the underlying transport, mainly for tests.
	Base http.RoundTripper
}

// identityTransport pins the User-Agent after any caller headers.
type identityTransport struct {
	base      http.RoundTripper
	userAgent string
}

func (t *identityTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Header.Set("User-Agent", t.userAgent)
	return t.base.RoundTrip(clone)
}

// NewHTTPClient builds the client every adapter uses: fixed identity header,
// per-adapter TLS verification toggle, tracing and a hard timeout.
func NewHTTPClient(cfg ClientConfig) *http.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	base := cfg.Base
	if base == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		if cfg.InsecureTLS {
			logger := cfg.Logger
			if logger == nil {
				logger = slog.Default()
			}
			logger.Warn("TLS certificate verification disabled", slog.String("source", cfg.Source))
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		}
		base = transport
	}

	return &http.Client{
		Timeout: timeout,
		Transport: &identityTransport{
			base:      otelhttp.NewTransport(base),
			userAgent: userAgent,
		},
	}
}

// Get performs a GET and returns the body of a 2xx response. Non-2xx
// statuses map onto the error taxonomy: 429 is a rate limit, anything else
// a TransportError.
func Get(ctx context.Context, client *http.Client, source, rawURL string, headers http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: build request: %w", source, err)
	}
	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &domain.TransportError{Source: source, Err: err}
	}
	defer resp.Body.Close()

	if err := CheckStatus(source, resp); err != nil {
		return nil, err
	}
	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &domain.TransportError{Source: source, Err: err}
	}
	return payload, nil
}

// CheckStatus classifies a response status. The body is only read for
// failed responses.
func CheckStatus(source string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		return &domain.RateLimitError{Source: source, RetryAfter: ParseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	return &domain.TransportError{
		Source:     source,
		StatusCode: resp.StatusCode,
		Err:        errors.New(CompactSnippet(string(body), snippetLimit)),
	}
}

// ParseRetryAfter accepts both delta-seconds and HTTP-date forms.
func ParseRetryAfter(raw string, now time.Time) time.Duration {
	value := strings.TrimSpace(raw)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil && at.After(now) {
		return at.Sub(now)
	}
	return 0
}
