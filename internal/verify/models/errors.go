package models

import (
	"errors"
	"fmt"
)

// Verification failure kinds. These are facts about the request, not
// infrastructure problems: callers translate them into client-fault
// responses and never retry the authorization ones.
var (
	ErrUnknownIdentity   = errors.New("no account matches the presented key")
	ErrInactiveAccount   = errors.New("account is not active")
	ErrZoneNotAuthorized = errors.New("tier has no access to zone")
	ErrRateLimited       = errors.New("rate limit exceeded")
	ErrQuotaExceeded     = errors.New("quota exhausted")
)

// RateLimitError is returned when the token bucket for an (identity, zone)
// pair is empty. It carries the limit detail so callers can render an
// actionable message without another registry read.
type RateLimitError struct {
	Zone              string
	RequestsPerSecond float64
	BurstSize         int
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for zone %q (%g req/sec, burst %d)",
		e.Zone, e.RequestsPerSecond, e.BurstSize)
}

// Unwrap lets errors.Is(err, ErrRateLimited) classify the failure.
func (e *RateLimitError) Unwrap() error { return ErrRateLimited }

// QuotaError is returned when the period counter for an (identity, zone)
// pair has passed the tier's allotment.
type QuotaError struct {
	Zone        string
	QuotaAmount int
	QuotaPeriod QuotaPeriod
	Used        int
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("%s quota of %d exhausted for zone %q (used %d)",
		e.QuotaPeriod, e.QuotaAmount, e.Zone, e.Used)
}

func (e *QuotaError) Unwrap() error { return ErrQuotaExceeded }

// BackendError wraps storage or registry failures so collaborators can tell
// "access denied" apart from "system unavailable". Verification never maps
// these to a denial; the deployment decides how to respond (fail-closed
// here: the HTTP layer returns 503).
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("backend failure during %s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// IsAuthorizationError reports whether err is a terminal client fault that
// should never be retried.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrUnknownIdentity) ||
		errors.Is(err, ErrInactiveAccount) ||
		errors.Is(err, ErrZoneNotAuthorized)
}

// IsThrottleError reports whether err denies only this request; the caller
// may retry after a delay.
func IsThrottleError(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrQuotaExceeded)
}

// IsVerificationError reports whether err belongs to the verification
// taxonomy at all, as opposed to an infrastructure failure.
func IsVerificationError(err error) bool {
	return IsAuthorizationError(err) || IsThrottleError(err)
}

// ErrorKind returns the stable label for a verification outcome, used for
// metrics and wire responses.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "admitted"
	case errors.Is(err, ErrUnknownIdentity):
		return "unknown_identity"
	case errors.Is(err, ErrInactiveAccount):
		return "inactive_account"
	case errors.Is(err, ErrZoneNotAuthorized):
		return "zone_not_authorized"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrQuotaExceeded):
		return "quota_exceeded"
	default:
		return "backend_error"
	}
}
