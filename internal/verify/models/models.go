package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// AccountStatus tracks the lifecycle of a registered key.
type AccountStatus string

const (
	// StatusUnconfirmed: key issued but the owner has not confirmed it yet.
	StatusUnconfirmed AccountStatus = "unconfirmed"
	// StatusSuspended: key disabled by an operator.
	StatusSuspended AccountStatus = "suspended"
	// StatusActive: key may pass verification.
	StatusActive AccountStatus = "active"
)

// IsValid checks if the status is one of the supported enum values.
func (s AccountStatus) IsValid() bool {
	switch s {
	case StatusUnconfirmed, StatusSuspended, StatusActive:
		return true
	}
	return false
}

// String returns the string representation.
func (s AccountStatus) String() string {
	return string(s)
}

// QuotaPeriod is the calendar window a quota counter is scoped to.
type QuotaPeriod string

const (
	PeriodDaily   QuotaPeriod = "daily"
	PeriodMonthly QuotaPeriod = "monthly"
)

// IsValid checks if the period is one of the supported enum values.
func (p QuotaPeriod) IsValid() bool {
	return p == PeriodDaily || p == PeriodMonthly
}

// Bucket derives the counter label for t. Labels are UTC so a "day" means
// the same thing on every deployment: daily -> YYYYMMDD, monthly -> YYYYMM.
func (p QuotaPeriod) Bucket(t time.Time) string {
	if p == PeriodMonthly {
		return t.UTC().Format("200601")
	}
	return t.UTC().Format("20060102")
}

// DayBucket is the daily label for t, used by usage reporting regardless of
// which period a tier enforces.
func DayBucket(t time.Time) string {
	return PeriodDaily.Bucket(t)
}

// Account is a registered key holder. The core never mutates accounts; the
// registration workflow owns their lifecycle.
type Account struct {
	ID     uuid.UUID     `json:"id"`
	Key    string        `json:"key"`
	Name   string        `json:"name"`
	Email  string        `json:"email"`
	Status AccountStatus `json:"status"`
	Tier   string        `json:"tier"`
}

// IsActive reports whether the account may pass verification.
func (a *Account) IsActive() bool {
	return a.Status == StatusActive
}

// Limit is the per-(tier, zone) configuration a verification call runs
// against. Read-only to the core.
type Limit struct {
	Tier              string      `json:"tier"`
	Zone              string      `json:"zone"`
	RequestsPerSecond float64     `json:"requests_per_second"`
	BurstSize         int         `json:"burst_size"`
	QuotaAmount       int         `json:"quota_amount"`
	QuotaPeriod       QuotaPeriod `json:"quota_period"`
}

// NewLimit creates a Limit with domain invariant validation.
func NewLimit(tier, zone string, rate float64, burst, quotaAmount int, period QuotaPeriod) (*Limit, error) {
	if tier == "" {
		return nil, fmt.Errorf("tier cannot be empty")
	}
	if zone == "" {
		return nil, fmt.Errorf("zone cannot be empty")
	}
	if rate < 0 {
		return nil, fmt.Errorf("requests_per_second cannot be negative")
	}
	if burst < 1 {
		return nil, fmt.Errorf("burst_size must be at least 1")
	}
	if quotaAmount < 1 {
		return nil, fmt.Errorf("quota_amount must be at least 1")
	}
	if !period.IsValid() {
		return nil, fmt.Errorf("invalid quota period %q", period)
	}
	return &Limit{
		Tier:              tier,
		Zone:              zone,
		RequestsPerSecond: rate,
		BurstSize:         burst,
		QuotaAmount:       quotaAmount,
		QuotaPeriod:       period,
	}, nil
}

// BucketState is the transient token-bucket state for one (identity, zone)
// pair. A zero LastRefill means the pair has never been seen; the limiter
// treats it as a freshly full bucket.
type BucketState struct {
	Tokens     float64
	LastRefill time.Time
}

// Usage is the shape produced by usage reporting:
// identity -> date label -> zone -> request count.
type Usage map[string]map[string]map[string]int
