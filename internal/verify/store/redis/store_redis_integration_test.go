//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"keygate/internal/verify/models"
	"keygate/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	container *containers.RedisContainer
	store     *Store
	ctx       context.Context
	now       time.Time
}

func TestRedisStoreSuite(t *testing.T) {
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.container = containers.NewRedisContainer(s.T())
}

func (s *RedisStoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.Require().NoError(s.container.FlushAll(s.ctx))
	s.now = time.Date(2017, 4, 17, 12, 0, 0, 0, time.UTC)

	store, err := New(s.container.Client, WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
	s.store = store
}

func (s *RedisStoreSuite) TestGetBucketInitial() {
	state, err := s.store.GetBucket(s.ctx, "key", "zone")
	s.Require().NoError(err)
	s.Zero(state.Tokens)
	s.True(state.LastRefill.IsZero())
}

func (s *RedisStoreSuite) TestSetAndGetBucket() {
	s.Require().NoError(s.store.SetBucket(s.ctx, "key", "zone", 99.5))

	state, err := s.store.GetBucket(s.ctx, "key", "zone")
	s.Require().NoError(err)
	s.Equal(99.5, state.Tokens)
	s.True(state.LastRefill.Equal(s.now))
}

func (s *RedisStoreSuite) TestBucketHasTTL() {
	s.Require().NoError(s.store.SetBucket(s.ctx, "key", "zone", 1))

	ttl, err := s.container.Client.TTL(s.ctx, bucketKey("key", "zone")).Result()
	s.Require().NoError(err)
	s.Greater(ttl, 24*time.Hour)
	s.LessOrEqual(ttl, bucketTTL)
}

func (s *RedisStoreSuite) TestBucketIndependence() {
	s.Require().NoError(s.store.SetBucket(s.ctx, "key", "zone", 100))

	state, err := s.store.GetBucket(s.ctx, "key2", "zone")
	s.Require().NoError(err)
	s.True(state.LastRefill.IsZero())

	state, err = s.store.GetBucket(s.ctx, "key", "zone2")
	s.Require().NoError(err)
	s.True(state.LastRefill.IsZero())
}

func (s *RedisStoreSuite) TestIncrementQuota() {
	count, err := s.store.IncrementQuota(s.ctx, "key", "zone", "20170411")
	s.Require().NoError(err)
	s.Equal(1, count)

	count, err = s.store.IncrementQuota(s.ctx, "key", "zone", "20170411")
	s.Require().NoError(err)
	s.Equal(2, count)

	count, err = s.store.IncrementQuota(s.ctx, "key", "zone", "20170412")
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *RedisStoreSuite) TestIncrementQuotaTTL() {
	_, err := s.store.IncrementQuota(s.ctx, "key", "zone", "20170411")
	s.Require().NoError(err)
	_, err = s.store.IncrementQuota(s.ctx, "key", "zone", "201704")
	s.Require().NoError(err)

	dayTTL, err := s.container.Client.TTL(s.ctx, quotaKey("key", "zone", "20170411")).Result()
	s.Require().NoError(err)
	s.Greater(dayTTL, 31*24*time.Hour)

	monthTTL, err := s.container.Client.TTL(s.ctx, quotaKey("key", "zone", "201704")).Result()
	s.Require().NoError(err)
	s.Greater(monthTTL, dayQuotaTTL)
}

// Concurrent increments must not lose updates: INCR is atomic server-side.
func (s *RedisStoreSuite) TestIncrementQuotaConcurrent() {
	const callers = 50

	g, ctx := errgroup.WithContext(s.ctx)
	for range callers {
		g.Go(func() error {
			_, err := s.store.IncrementQuota(ctx, "key", "zone", "20170411")
			return err
		})
	}
	s.Require().NoError(g.Wait())

	count, err := s.store.IncrementQuota(s.ctx, "key", "zone", "20170411")
	s.Require().NoError(err)
	s.Equal(callers+1, count)
}

func (s *RedisStoreSuite) TestKeySegmentSanitizing() {
	_, err := s.store.IncrementQuota(s.ctx, "sneaky:key", "zone", "20170411")
	s.Require().NoError(err)

	// The separator in the identity must not fabricate extra segments.
	count, err := s.store.IncrementQuota(s.ctx, "sneaky_key", "zone", "20170411")
	s.Require().NoError(err)
	s.Equal(2, count)
}

func (s *RedisStoreSuite) TestGetUsage() {
	today := models.DayBucket(s.now)
	yesterday := models.DayBucket(s.now.AddDate(0, 0, -1))

	for range 3 {
		_, err := s.store.IncrementQuota(s.ctx, "alpha", "default", today)
		s.Require().NoError(err)
	}
	_, err := s.store.IncrementQuota(s.ctx, "alpha", "premium", yesterday)
	s.Require().NoError(err)
	_, err = s.store.IncrementQuota(s.ctx, "beta", "default", today)
	s.Require().NoError(err)

	s.Run("all identities", func() {
		usage, err := s.store.GetUsage(s.ctx, nil, 2)
		s.Require().NoError(err)
		s.Len(usage, 2)
		s.Equal(3, usage["alpha"][today]["default"])
		s.Equal(1, usage["alpha"][yesterday]["premium"])
		s.Equal(1, usage["beta"][today]["default"])
		s.Equal(0, usage["alpha"][yesterday]["default"])
	})

	s.Run("scoped identities", func() {
		usage, err := s.store.GetUsage(s.ctx, []string{"alpha"}, 2)
		s.Require().NoError(err)
		s.Len(usage, 1)
		s.Equal(3, usage["alpha"][today]["default"])
	})
}

func (s *RedisStoreSuite) TestReset() {
	s.Require().NoError(s.store.SetBucket(s.ctx, "key", "zone", 5))
	_, err := s.store.IncrementQuota(s.ctx, "key", "zone", "20170411")
	s.Require().NoError(err)

	s.Require().NoError(s.store.Reset(s.ctx))

	state, err := s.store.GetBucket(s.ctx, "key", "zone")
	s.Require().NoError(err)
	s.True(state.LastRefill.IsZero())

	count, err := s.store.IncrementQuota(s.ctx, "key", "zone", "20170411")
	s.Require().NoError(err)
	s.Equal(1, count)
}
