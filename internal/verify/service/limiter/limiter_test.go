package limiter

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"keygate/internal/verify/models"
	"keygate/internal/verify/store/memory"
)

type LimiterSuite struct {
	suite.Suite
	ctx     context.Context
	now     time.Time
	backend *memory.Store
	limiter *Service
}

func TestLimiterSuite(t *testing.T) {
	suite.Run(t, new(LimiterSuite))
}

func (s *LimiterSuite) SetupTest() {
	s.ctx = context.Background()
	s.now = time.Date(2017, 4, 17, 12, 0, 0, 0, time.UTC)

	clock := func() time.Time { return s.now }
	s.backend = memory.New(memory.WithClock(clock))

	limiter, err := New(s.backend, WithClock(clock))
	s.Require().NoError(err)
	s.limiter = limiter
}

func (s *LimiterSuite) advance(d time.Duration) {
	s.now = s.now.Add(d)
}

func (s *LimiterSuite) limit(rate float64, burst int) *models.Limit {
	limit, err := models.NewLimit("bronze", "default", rate, burst, 100, models.PeriodDaily)
	s.Require().NoError(err)
	return limit
}

func (s *LimiterSuite) TestNewRequiresBackend() {
	_, err := New(nil)
	s.Error(err)
}

func (s *LimiterSuite) TestFirstUseStartsFull() {
	limit := s.limit(1, 2)

	s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))
	s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))

	err := s.limiter.Allow(s.ctx, "key", "default", limit)
	s.Require().ErrorIs(err, models.ErrRateLimited)

	var rle *models.RateLimitError
	s.Require().ErrorAs(err, &rle)
	s.Equal("default", rle.Zone)
	s.Equal(float64(1), rle.RequestsPerSecond)
	s.Equal(2, rle.BurstSize)
}

func (s *LimiterSuite) TestReplenishAfterRejection() {
	limit := s.limit(1, 2)

	s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))
	s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))
	s.ErrorIs(s.limiter.Allow(s.ctx, "key", "default", limit), models.ErrRateLimited)

	s.advance(time.Second)
	s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))
	s.ErrorIs(s.limiter.Allow(s.ctx, "key", "default", limit), models.ErrRateLimited)
}

func (s *LimiterSuite) TestFractionalReplenishment() {
	limit := s.limit(2, 1)

	s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))
	s.ErrorIs(s.limiter.Allow(s.ctx, "key", "default", limit), models.ErrRateLimited)

	// 250ms at 2/s yields half a token, not enough to admit.
	s.advance(250 * time.Millisecond)
	s.ErrorIs(s.limiter.Allow(s.ctx, "key", "default", limit), models.ErrRateLimited)

	s.advance(250 * time.Millisecond)
	s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))
}

func (s *LimiterSuite) TestTokensCappedAtBurst() {
	limit := s.limit(10, 3)

	// Drain the bucket, then idle long enough to earn far more than burst.
	for range 3 {
		s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))
	}
	s.advance(time.Hour)

	for range 3 {
		s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))
	}
	s.ErrorIs(s.limiter.Allow(s.ctx, "key", "default", limit), models.ErrRateLimited)
}

func (s *LimiterSuite) TestClockSkewClampsElapsed() {
	limit := s.limit(1000, 1)

	s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))

	// A stamp from the future must not drain the bucket below its state.
	s.advance(-time.Hour)
	s.ErrorIs(s.limiter.Allow(s.ctx, "key", "default", limit), models.ErrRateLimited)
}

func (s *LimiterSuite) TestRejectionPersistsReplenishedState() {
	limit := s.limit(0.5, 1)

	s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))

	// 1s at 0.5/s leaves half a token; the rejected call must store it.
	s.advance(time.Second)
	s.ErrorIs(s.limiter.Allow(s.ctx, "key", "default", limit), models.ErrRateLimited)

	state, err := s.backend.GetBucket(s.ctx, "key", "default")
	s.Require().NoError(err)
	s.Equal(0.5, state.Tokens)
	s.True(state.LastRefill.Equal(s.now))

	// Another second completes the token.
	s.advance(time.Second)
	s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))
}

func (s *LimiterSuite) TestZeroRateNeverReplenishes() {
	limit := s.limit(0, 1)

	s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))

	s.advance(24 * time.Hour)
	s.ErrorIs(s.limiter.Allow(s.ctx, "key", "default", limit), models.ErrRateLimited)
}

func (s *LimiterSuite) TestPairsAreIndependent() {
	limit := s.limit(1, 1)

	s.NoError(s.limiter.Allow(s.ctx, "key", "default", limit))
	s.ErrorIs(s.limiter.Allow(s.ctx, "key", "default", limit), models.ErrRateLimited)

	s.NoError(s.limiter.Allow(s.ctx, "key", "premium", limit))
	s.NoError(s.limiter.Allow(s.ctx, "other", "default", limit))
}
