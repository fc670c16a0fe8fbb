// Package limiter decides token-bucket admission for one verification call.
package limiter

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"keygate/internal/verify/models"
	"keygate/internal/verify/ports"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

type Service struct {
	backend ports.Backend
	clock   Clock
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(clock Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func New(backend ports.Backend, opts ...Option) (*Service, error) {
	if backend == nil {
		return nil, fmt.Errorf("backend is required")
	}
	svc := &Service{
		backend: backend,
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Allow admits or rejects one request for (identity, zone) against limit.
// "Now" is read once and used for every calculation in the call.
//
// The bucket is lazily replenished: a pair never seen before starts full,
// otherwise tokens grow by rate * elapsed, capped at burst. A timestamp from
// the future (clock skew between processes sharing the backend) clamps
// elapsed to zero rather than draining the bucket.
//
// State is persisted on rejection too: dropping the replenishment computed
// for a throttled call would under-count capacity for every call after it.
func (s *Service) Allow(ctx context.Context, identity, zone string, limit *models.Limit) error {
	now := s.clock()

	state, err := s.backend.GetBucket(ctx, identity, zone)
	if err != nil {
		return fmt.Errorf("get bucket: %w", err)
	}

	var tokens float64
	if state.LastRefill.IsZero() {
		// First-ever use for this pair: freshly full bucket.
		tokens = float64(limit.BurstSize)
	} else {
		elapsed := now.Sub(state.LastRefill)
		if elapsed < 0 {
			elapsed = 0
		}
		tokens = math.Min(
			float64(limit.BurstSize),
			state.Tokens+limit.RequestsPerSecond*elapsed.Seconds(),
		)
	}

	if tokens >= 1 {
		if err := s.backend.SetBucket(ctx, identity, zone, tokens-1); err != nil {
			return fmt.Errorf("set bucket: %w", err)
		}
		return nil
	}

	if err := s.backend.SetBucket(ctx, identity, zone, tokens); err != nil {
		return fmt.Errorf("set bucket: %w", err)
	}
	return &models.RateLimitError{
		Zone:              zone,
		RequestsPerSecond: limit.RequestsPerSecond,
		BurstSize:         limit.BurstSize,
	}
}
