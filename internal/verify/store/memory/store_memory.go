// Package memory holds verification state in process memory. Single
// instance only: nothing expires and nothing is shared, so correctness
// relies on the store's own mutex rather than external coordination.
package memory

import (
	"context"
	"sync"
	"time"

	"keygate/internal/verify/models"
)

// Clock abstracts time.Now for deterministic tests.
type Clock func() time.Time

type bucketKey struct {
	identity string
	zone     string
}

type quotaKey struct {
	identity string
	zone     string
	period   string
}

// Store implements ports.Backend with plain maps.
type Store struct {
	mu      sync.Mutex
	clock   Clock
	buckets map[bucketKey]models.BucketState
	quotas  map[quotaKey]int
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

// New creates an empty in-memory backend.
func New(opts ...Option) *Store {
	s := &Store{
		clock:   time.Now,
		buckets: make(map[bucketKey]models.BucketState),
		quotas:  make(map[quotaKey]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetBucket returns the stored state, or the zero state for an unseen pair.
func (s *Store) GetBucket(_ context.Context, identity, zone string) (models.BucketState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buckets[bucketKey{identity, zone}], nil
}

// SetBucket stores tokens and stamps the refill time in one step.
func (s *Store) SetBucket(_ context.Context, identity, zone string, tokens float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets[bucketKey{identity, zone}] = models.BucketState{
		Tokens:     tokens,
		LastRefill: s.clock(),
	}
	return nil
}

// IncrementQuota bumps the period counter and returns the new value.
func (s *Store) IncrementQuota(_ context.Context, identity, zone, periodBucket string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := quotaKey{identity, zone, periodBucket}
	s.quotas[k]++
	return s.quotas[k], nil
}

// GetUsage reports daily counters over the trailing window. Identities and
// zones are discovered from the counters themselves; the memory variant has
// no registry to consult.
func (s *Store) GetUsage(_ context.Context, identities []string, days int) (models.Usage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	scope := make(map[string]bool, len(identities))
	for _, id := range identities {
		scope[id] = true
	}

	zones := make(map[string]bool)
	for k := range s.quotas {
		zones[k.zone] = true
		if len(identities) == 0 {
			scope[k.identity] = true
		}
	}

	labels := trailingDays(s.clock(), days)

	usage := make(models.Usage, len(scope))
	for identity := range scope {
		byDate := make(map[string]map[string]int, len(labels))
		for _, label := range labels {
			byZone := make(map[string]int, len(zones))
			for zone := range zones {
				byZone[zone] = s.quotas[quotaKey{identity, zone, label}]
			}
			byDate[label] = byZone
		}
		usage[identity] = byDate
	}
	return usage, nil
}

// Reset clears all state. Test and operational use only.
func (s *Store) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buckets = make(map[bucketKey]models.BucketState)
	s.quotas = make(map[quotaKey]int)
	return nil
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
