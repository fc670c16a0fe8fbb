// Package verifier composes registry lookup, rate limiting and quota
// checking into the single verification call the request pipeline uses.
package verifier

//go:generate mockgen -source=verifier.go -destination=mocks/mocks.go -package=mocks Registry,RateLimiter,QuotaChecker,AuditPublisher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"keygate/internal/audit"
	"keygate/internal/verify/metrics"
	"keygate/internal/verify/models"
	"keygate/internal/verify/ports"
)

// Type aliases for shared interfaces.
type (
	Registry       = ports.Registry
	AuditPublisher = ports.AuditPublisher
)

// RateLimiter is the slice of the limiter service the orchestrator needs.
type RateLimiter interface {
	Allow(ctx context.Context, identity, zone string, limit *models.Limit) error
}

// QuotaChecker is the slice of the quota service the orchestrator needs.
type QuotaChecker interface {
	Check(ctx context.Context, identity, zone string, limit *models.Limit) error
}

type Service struct {
	registry Registry
	limiter  RateLimiter
	quotas   QuotaChecker
	auditPub AuditPublisher
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPub = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(registry Registry, limiter RateLimiter, quotas QuotaChecker, opts ...Option) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if quotas == nil {
		return nil, fmt.Errorf("quota checker is required")
	}

	svc := &Service{
		registry: registry,
		limiter:  limiter,
		quotas:   quotas,
		tracer:   otel.Tracer("keygate/verify"),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Verify runs the fixed pipeline for one request: resolve the account, then
// the (tier, zone) limit, then the token bucket, then the period quota. The
// first failure short-circuits; no later step runs, so a request rejected by
// the rate limiter never consumes quota and an unauthorized request never
// touches bucket state.
//
// A nil return means admitted; the bucket write and quota increment have
// already happened. Verification failures satisfy models.IsVerificationError;
// anything else is a *models.BackendError and the caller decides availability
// policy (this deployment fails closed).
func (s *Service) Verify(ctx context.Context, identity, zone string) error {
	ctx, span := s.tracer.Start(ctx, "verify",
		trace.WithAttributes(attribute.String("zone", zone)))
	defer span.End()

	start := time.Now()
	err := s.verify(ctx, identity, zone)
	s.observe(ctx, identity, zone, err, time.Since(start))
	return err
}

func (s *Service) verify(ctx context.Context, identity, zone string) error {
	account, err := s.registry.ResolveAccount(ctx, identity)
	if err != nil {
		return s.classify("resolve account", err)
	}

	limit, err := s.registry.ResolveLimit(ctx, account.Tier, zone)
	if err != nil {
		return s.classify("resolve limit", err)
	}

	if err := s.limiter.Allow(ctx, identity, zone, limit); err != nil {
		return s.classify("rate limit", err)
	}

	if err := s.quotas.Check(ctx, identity, zone, limit); err != nil {
		return s.classify("quota", err)
	}
	return nil
}

// classify passes verification failures through untouched and wraps
// everything else as an infrastructure fault.
func (s *Service) classify(op string, err error) error {
	if models.IsVerificationError(err) {
		return err
	}
	return &models.BackendError{Op: op, Err: err}
}

func (s *Service) observe(ctx context.Context, identity, zone string, err error, elapsed time.Duration) {
	outcome := models.ErrorKind(err)

	if s.metrics != nil {
		s.metrics.ObserveVerification(outcome, zone, elapsed)
	}
	if s.logger != nil && err != nil {
		s.logger.InfoContext(ctx, "verification denied",
			"outcome", outcome, "zone", zone, "error", err)
	}
	if s.auditPub == nil || !models.IsThrottleError(err) {
		return
	}

	action := audit.ActionRateLimited
	if outcome == "quota_exceeded" {
		action = audit.ActionQuotaExceeded
	}
	event := audit.Event{
		Action:   action,
		Identity: identity,
		Zone:     zone,
		Detail:   err.Error(),
	}
	if emitErr := s.auditPub.Emit(ctx, event); emitErr != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"action", action, "error", emitErr)
	}
}
