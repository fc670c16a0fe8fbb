// Package quota enforces the cumulative per-period allotment. It runs only
// after the limiter admits a request: a rate-limited attempt never consumes
// quota.
package quota

import (
	"context"
	"fmt"
	"log/slog"
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

// Check increments the current period counter for (identity, zone) and fails
// once the post-increment count passes the allotment. The increment is not
// rolled back on failure: counters keep growing past the limit so usage
// reporting reflects true demand, not just admitted traffic.
func (s *Service) Check(ctx context.Context, identity, zone string, limit *models.Limit) error {
	bucket := limit.QuotaPeriod.Bucket(s.clock())

	count, err := s.backend.IncrementQuota(ctx, identity, zone, bucket)
	if err != nil {
		return fmt.Errorf("increment quota: %w", err)
	}

	if count > limit.QuotaAmount {
		return &models.QuotaError{
			Zone:        zone,
			QuotaAmount: limit.QuotaAmount,
			QuotaPeriod: limit.QuotaPeriod,
			Used:        count,
		}
	}
	return nil
}
