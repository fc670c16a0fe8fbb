// Package ports defines shared interfaces for the verify module.
// Interfaces are placed here when consumed by multiple services to avoid
// duplication.
package ports

import (
	"context"

	"keygate/internal/audit"
	"keygate/internal/verify/models"
)

// Backend is the pluggable store holding token-bucket state and quota
// counters. Both the in-process and the Redis implementation satisfy the
// same contract so the services above never care where state lives.
type Backend interface {
	// GetBucket returns the bucket state for (identity, zone). A pair that
	// has never been written reads as the zero BucketState.
	GetBucket(ctx context.Context, identity, zone string) (models.BucketState, error)

	// SetBucket stores the token count and stamps the refill time to "now"
	// atomically with the write.
	SetBucket(ctx context.Context, identity, zone string, tokens float64) error

	// IncrementQuota atomically increments the counter for
	// (identity, zone, periodBucket) and returns the post-increment value.
	// periodBucket is a label produced by QuotaPeriod.Bucket.
	IncrementQuota(ctx context.Context, identity, zone, periodBucket string) (int, error)

	// GetUsage reports daily quota counters for each identity over the
	// trailing days calendar days including today. An empty identities
	// slice means every identity the backend has counters for. Untouched
	// (identity, date, zone) triples inside the window read as 0 for zones
	// the backend has seen; zones with no recorded usage anywhere are not
	// fabricated.
	GetUsage(ctx context.Context, identities []string, days int) (models.Usage, error)

	// Reset clears all bucket and quota state. Test and operational use
	// only; never part of the steady-state request path.
	Reset(ctx context.Context) error
}

// Registry resolves presented keys and tier limits. It is a read-only view
// over the registration layer's persistence; the core never writes through
// it.
type Registry interface {
	// ResolveAccount maps an identity to its account. Fails with
	// models.ErrUnknownIdentity when nothing matches and
	// models.ErrInactiveAccount when the account exists but may not pass
	// verification.
	ResolveAccount(ctx context.Context, identity string) (*models.Account, error)

	// ResolveLimit returns the limit record for (tier, zone). Fails with
	// models.ErrZoneNotAuthorized when the tier has no limit for the zone.
	ResolveLimit(ctx context.Context, tier, zone string) (*models.Limit, error)
}

// AuditPublisher emits audit events for throttling violations.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}
