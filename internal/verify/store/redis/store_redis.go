// Package redis persists verification state in a shared Redis so many
// gateway processes can throttle against the same counters.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"keygate/internal/verify/models"
)

const (
	// Key prefixes for the two logical families.
	bucketKeyPrefix     = "kg:bucket:"
	dayQuotaKeyPrefix   = "kg:quota:d:"
	monthQuotaKeyPrefix = "kg:quota:m:"

	// Bucket hash fields.
	fieldTokens = "tokens"
	fieldStamp  = "stamp"

	// A bucket untouched for longer than this reads as never initialized,
	// which the limiter treats as freshly full.
	bucketTTL = 25 * time.Hour

	// Day counters must outlive the longest reporting window (31 days);
	// month counters must outlive a full calendar month plus reporting lag.
	dayQuotaTTL   = 40 * 24 * time.Hour
	monthQuotaTTL = 62 * 24 * time.Hour
)

// Clock abstracts time.Now for testability.
type Clock func() time.Time

// Store implements ports.Backend on go-redis. Quota increments use INCR so
// they are exact under concurrent callers; the bucket read-modify-write is
// best-effort as documented in the limiter.
type Store struct {
	client *redis.Client
	clock  Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock function for testability.
func WithClock(clock Clock) Option {
	return func(s *Store) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New wraps an existing client; its lifecycle is managed by the caller.
func New(client *redis.Client, opts ...Option) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	s := &Store{
		client: client,
		clock:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func bucketKey(identity, zone string) string {
	return bucketKeyPrefix +
		models.SanitizeKeySegment(identity) + models.KeySeparator +
		models.SanitizeKeySegment(zone)
}

func quotaKey(identity, zone, periodBucket string) string {
	prefix := dayQuotaKeyPrefix
	// Period labels have a fixed shape: YYYYMMDD for days, YYYYMM for months.
	if len(periodBucket) == 6 {
		prefix = monthQuotaKeyPrefix
	}
	return prefix +
		models.SanitizeKeySegment(identity) + models.KeySeparator +
		models.SanitizeKeySegment(zone) + models.KeySeparator +
		periodBucket
}

// GetBucket reads the token hash. A missing key (never written, or expired
// past the TTL) reads as the zero state.
func (s *Store) GetBucket(ctx context.Context, identity, zone string) (models.BucketState, error) {
	values, err := s.client.HGetAll(ctx, bucketKey(identity, zone)).Result()
	if err != nil {
		return models.BucketState{}, fmt.Errorf("get bucket: %w", err)
	}
	if len(values) == 0 {
		return models.BucketState{}, nil
	}

	tokens, err := strconv.ParseFloat(values[fieldTokens], 64)
	if err != nil {
		return models.BucketState{}, fmt.Errorf("parse bucket tokens: %w", err)
	}
	stampNanos, err := strconv.ParseInt(values[fieldStamp], 10, 64)
	if err != nil {
		return models.BucketState{}, fmt.Errorf("parse bucket stamp: %w", err)
	}
	return models.BucketState{
		Tokens:     tokens,
		LastRefill: time.Unix(0, stampNanos),
	}, nil
}

// SetBucket writes tokens and the current stamp in a single HSET so readers
// never observe one without the other, then refreshes the TTL.
func (s *Store) SetBucket(ctx context.Context, identity, zone string, tokens float64) error {
	key := bucketKey(identity, zone)
	now := s.clock()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key,
		fieldTokens, strconv.FormatFloat(tokens, 'g', -1, 64),
		fieldStamp, strconv.FormatInt(now.UnixNano(), 10),
	)
	pipe.Expire(ctx, key, bucketTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set bucket: %w", err)
	}
	return nil
}

// IncrementQuota relies on INCR, which atomically initializes an absent key
// to 0 before incrementing, so no increments are ever lost. The TTL only
// needs to be placed once; ExpireNX leaves an existing deadline alone.
func (s *Store) IncrementQuota(ctx context.Context, identity, zone, periodBucket string) (int, error) {
	key := quotaKey(identity, zone, periodBucket)
	ttl := dayQuotaTTL
	if strings.HasPrefix(key, monthQuotaKeyPrefix) {
		ttl = monthQuotaTTL
	}

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("increment quota: %w", err)
	}
	return int(incr.Val()), nil
}

// GetUsage scans the day-counter family to discover identities and zones,
// then pipelines point reads for every (identity, zone, date) triple in the
// window. Missing counters read as 0.
func (s *Store) GetUsage(ctx context.Context, identities []string, days int) (models.Usage, error) {
	seenIdentities, zones, err := s.scanDayCounters(ctx)
	if err != nil {
		return nil, err
	}

	scope := identities
	if len(scope) == 0 {
		scope = seenIdentities
	}

	labels := trailingDays(s.clock(), days)

	type lookup struct {
		identity string
		label    string
		zone     string
	}
	var lookups []lookup
	pipe := s.client.Pipeline()
	var cmds []*redis.StringCmd
	for _, identity := range scope {
		for _, label := range labels {
			for _, zone := range zones {
				lookups = append(lookups, lookup{identity, label, zone})
				cmds = append(cmds, pipe.Get(ctx, quotaKey(identity, zone, label)))
			}
		}
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read usage counters: %w", err)
	}

	usage := make(models.Usage, len(scope))
	for _, identity := range scope {
		byDate := make(map[string]map[string]int, len(labels))
		for _, label := range labels {
			byDate[label] = make(map[string]int, len(zones))
		}
		usage[identity] = byDate
	}
	for i, cmd := range cmds {
		count := 0
		switch value, err := cmd.Result(); {
		case errors.Is(err, redis.Nil):
			// untouched triple
		case err != nil:
			return nil, fmt.Errorf("read usage counter: %w", err)
		default:
			count, err = strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("parse usage counter: %w", err)
			}
		}
		l := lookups[i]
		usage[l.identity][l.label][l.zone] = count
	}
	return usage, nil
}

// Reset deletes every key in both families. Test and operational use only.
func (s *Store) Reset(ctx context.Context) error {
	for _, prefix := range []string{bucketKeyPrefix, dayQuotaKeyPrefix, monthQuotaKeyPrefix} {
		iter := s.client.Scan(ctx, 0, prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("reset: %w", err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("reset scan: %w", err)
		}
	}
	return nil
}

// scanDayCounters walks the day-quota keyspace once and collects the
// distinct identities and zones with recorded usage.
func (s *Store) scanDayCounters(ctx context.Context) (identities, zones []string, err error) {
	identitySet := make(map[string]bool)
	zoneSet := make(map[string]bool)

	iter := s.client.Scan(ctx, 0, dayQuotaKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		rest := strings.TrimPrefix(iter.Val(), dayQuotaKeyPrefix)
		parts := strings.Split(rest, models.KeySeparator)
		if len(parts) != 3 {
			continue
		}
		identitySet[parts[0]] = true
		zoneSet[parts[1]] = true
	}
	if err := iter.Err(); err != nil {
		return nil, nil, fmt.Errorf("scan usage counters: %w", err)
	}

	for identity := range identitySet {
		identities = append(identities, identity)
	}
	for zone := range zoneSet {
		zones = append(zones, zone)
	}
	return identities, zones, nil
}

// trailingDays returns day labels for the window ending at now, oldest first.
func trailingDays(now time.Time, days int) []string {
	if days < 1 {
		days = 1
	}
	labels := make([]string, 0, days)
	for i := days - 1; i >= 0; i-- {
		labels = append(labels, models.DayBucket(now.AddDate(0, 0, -i)))
	}
	return labels
}
