package models

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLimit(t *testing.T) {
	tests := []struct {
		name    string
		tier    string
		zone    string
		rate    float64
		burst   int
		quota   int
		period  QuotaPeriod
		wantErr bool
	}{
		{"valid daily", "bronze", "default", 1, 2, 10, PeriodDaily, false},
		{"valid monthly", "gold", "premium", 10.5, 50, 100000, PeriodMonthly, false},
		{"zero rate allowed", "bronze", "default", 0, 1, 1, PeriodDaily, false},
		{"empty tier", "", "default", 1, 2, 10, PeriodDaily, true},
		{"empty zone", "bronze", "", 1, 2, 10, PeriodDaily, true},
		{"negative rate", "bronze", "default", -1, 2, 10, PeriodDaily, true},
		{"zero burst", "bronze", "default", 1, 0, 10, PeriodDaily, true},
		{"zero quota", "bronze", "default", 1, 2, 0, PeriodDaily, true},
		{"bogus period", "bronze", "default", 1, 2, 10, QuotaPeriod("hourly"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			limit, err := NewLimit(tt.tier, tt.zone, tt.rate, tt.burst, tt.quota, tt.period)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.tier, limit.Tier)
			assert.Equal(t, tt.zone, limit.Zone)
		})
	}
}

func TestQuotaPeriodBucket(t *testing.T) {
	// 2017-04-11 23:30 in UTC+2 is still April 11 in UTC.
	loc := time.FixedZone("UTC+2", 2*60*60)
	at := time.Date(2017, 4, 12, 1, 30, 0, 0, loc)

	assert.Equal(t, "20170411", PeriodDaily.Bucket(at))
	assert.Equal(t, "201704", PeriodMonthly.Bucket(at))
	assert.Equal(t, "20170411", DayBucket(at))
}

func TestSanitizeKeySegment(t *testing.T) {
	assert.Equal(t, "plain-slug", SanitizeKeySegment("plain-slug"))
	assert.Equal(t, "user_admin", SanitizeKeySegment("user:admin"))
	assert.Equal(t, "a_b_c", SanitizeKeySegment("a:b:c"))
}

func TestErrorClassification(t *testing.T) {
	rateErr := &RateLimitError{Zone: "default", RequestsPerSecond: 1, BurstSize: 2}
	quotaErr := &QuotaError{Zone: "default", QuotaAmount: 10, QuotaPeriod: PeriodDaily, Used: 11}
	backendErr := &BackendError{Op: "get bucket", Err: errors.New("connection refused")}
	wrappedAuth := fmt.Errorf("zone %q: %w", "default", ErrZoneNotAuthorized)

	assert.True(t, errors.Is(rateErr, ErrRateLimited))
	assert.True(t, errors.Is(quotaErr, ErrQuotaExceeded))
	assert.True(t, IsThrottleError(rateErr))
	assert.True(t, IsThrottleError(quotaErr))
	assert.False(t, IsAuthorizationError(rateErr))

	assert.True(t, IsAuthorizationError(ErrUnknownIdentity))
	assert.True(t, IsAuthorizationError(ErrInactiveAccount))
	assert.True(t, IsAuthorizationError(wrappedAuth))
	assert.False(t, IsThrottleError(wrappedAuth))

	assert.False(t, IsVerificationError(backendErr))
	assert.True(t, IsVerificationError(rateErr))

	assert.Equal(t, "admitted", ErrorKind(nil))
	assert.Equal(t, "unknown_identity", ErrorKind(ErrUnknownIdentity))
	assert.Equal(t, "inactive_account", ErrorKind(ErrInactiveAccount))
	assert.Equal(t, "zone_not_authorized", ErrorKind(wrappedAuth))
	assert.Equal(t, "rate_limited", ErrorKind(rateErr))
	assert.Equal(t, "quota_exceeded", ErrorKind(quotaErr))
	assert.Equal(t, "backend_error", ErrorKind(backendErr))
}

func TestErrorMessagesCarryLimitDetail(t *testing.T) {
	rateErr := &RateLimitError{Zone: "premium", RequestsPerSecond: 2.5, BurstSize: 10}
	assert.Contains(t, rateErr.Error(), "premium")
	assert.Contains(t, rateErr.Error(), "2.5")
	assert.Contains(t, rateErr.Error(), "10")

	quotaErr := &QuotaError{Zone: "premium", QuotaAmount: 100, QuotaPeriod: PeriodMonthly, Used: 101}
	assert.Contains(t, quotaErr.Error(), "monthly")
	assert.Contains(t, quotaErr.Error(), "100")
}
