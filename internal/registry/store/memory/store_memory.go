// Package memory is a seedable registry for tests and single-binary
// deployments. The registration workflow that normally owns these records
// lives outside this repo; here they are loaded up front and read-only.
package memory

import (
	"context"
	"fmt"
	"sync"

	"keygate/internal/verify/models"
)

type limitKey struct {
	tier string
	zone string
}

type Store struct {
	mu       sync.RWMutex
	accounts map[string]models.Account // by presented key
	limits   map[limitKey]models.Limit
}

func New() *Store {
	return &Store{
		accounts: make(map[string]models.Account),
		limits:   make(map[limitKey]models.Limit),
	}
}

// AddAccount seeds an account, keyed by its presented key.
func (s *Store) AddAccount(account models.Account) error {
	if account.Key == "" {
		return fmt.Errorf("account key cannot be empty")
	}
	if !account.Status.IsValid() {
		return fmt.Errorf("invalid account status %q", account.Status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[account.Key] = account
	return nil
}

// AddLimit seeds the limit record for (limit.Tier, limit.Zone). At most one
// limit may exist per pair; re-adding replaces it.
func (s *Store) AddLimit(limit models.Limit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.limits[limitKey{limit.Tier, limit.Zone}] = limit
}

// ResolveAccount implements ports.Registry.
func (s *Store) ResolveAccount(_ context.Context, identity string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[identity]
	if !ok {
		return nil, models.ErrUnknownIdentity
	}
	if !account.IsActive() {
		return nil, fmt.Errorf("account status %q: %w", account.Status, models.ErrInactiveAccount)
	}
	return &account, nil
}

// ResolveLimit implements ports.Registry.
func (s *Store) ResolveLimit(_ context.Context, tier, zone string) (*models.Limit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit, ok := s.limits[limitKey{tier, zone}]
	if !ok {
		return nil, fmt.Errorf("tier %q, zone %q: %w", tier, zone, models.ErrZoneNotAuthorized)
	}
	return &limit, nil
}
