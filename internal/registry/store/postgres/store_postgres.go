// Package postgres resolves accounts and limits from the registration
// database. All queries are reads; the registration and admin tooling that
// writes these tables is out of scope here.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"keygate/internal/verify/models"
)

type Store struct {
	pool *pgxpool.Pool
}

// New wraps an existing pool; its lifecycle is managed by the caller.
func New(pool *pgxpool.Pool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pgx pool is required")
	}
	return &Store{pool: pool}, nil
}

// Connect builds a pool from a DSN and pings it.
func Connect(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect registry database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping registry database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// ResolveAccount implements ports.Registry.
func (s *Store) ResolveAccount(ctx context.Context, identity string) (*models.Account, error) {
	query := `
		SELECT id, key, name, email, status, tier
		FROM accounts
		WHERE key = $1
	`
	var account models.Account
	err := s.pool.QueryRow(ctx, query, identity).Scan(
		&account.ID,
		&account.Key,
		&account.Name,
		&account.Email,
		&account.Status,
		&account.Tier,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, models.ErrUnknownIdentity
	}
	if err != nil {
		return nil, fmt.Errorf("query account: %w", err)
	}
	if !account.IsActive() {
		return nil, fmt.Errorf("account status %q: %w", account.Status, models.ErrInactiveAccount)
	}
	return &account, nil
}

// ResolveLimit implements ports.Registry.
func (s *Store) ResolveLimit(ctx context.Context, tier, zone string) (*models.Limit, error) {
	query := `
		SELECT tier, zone, requests_per_second, burst_size, quota_amount, quota_period
		FROM limits
		WHERE tier = $1 AND zone = $2
	`
	var limit models.Limit
	err := s.pool.QueryRow(ctx, query, tier, zone).Scan(
		&limit.Tier,
		&limit.Zone,
		&limit.RequestsPerSecond,
		&limit.BurstSize,
		&limit.QuotaAmount,
		&limit.QuotaPeriod,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("tier %q, zone %q: %w", tier, zone, models.ErrZoneNotAuthorized)
	}
	if err != nil {
		return nil, fmt.Errorf("query limit: %w", err)
	}
	return &limit, nil
}
