package search

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimit is a token bucket budget for outbound calls to one source.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

type sourceLimiter struct {
	limiter *rate.Limiter
}

func (s *Service) limiterFor(source string) *sourceLimiter {
	limit, ok := s.limits[source]
	if !ok {
		return nil
	}

	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()

	if current := s.limiters[source]; current != nil {
		return current
	}
	burst := limit.Burst
	if burst <= 0 {
		burst = 1
	}
	created := &sourceLimiter{limiter: rate.NewLimiter(rate.Limit(limit.PerSecond), burst)}
	s.limiters[source] = created
	return created
}

// waitSourceRateLimit blocks until the source has budget or ctx ends.
// Sources without a configured limit never wait.
func (s *Service) waitSourceRateLimit(ctx context.Context, source string) error {
	current := s.limiterFor(source)
	if current == nil {
		return nil
	}
	return current.limiter.Wait(ctx)
}
