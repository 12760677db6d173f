// Package memory is an in-process identity store for development and tests.
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"medgate/internal/identity/models"
	id "medgate/pkg/domain"
	"medgate/pkg/platform/middleware/requesttime"
	"medgate/pkg/platform/sentinel"
)

// Assignment grants role to an identity. Inactive or expired assignments are
// ignored by ListActiveRoles.
type Assignment struct {
	Role      models.Role
	Active    bool
	ExpiresAt *time.Time
}

// InMemoryStore implements ports.IdentityStore.
type InMemoryStore struct {
	mu          sync.RWMutex
	identities  map[id.IdentityID]models.Identity
	byUsername  map[string]id.IdentityID
	assignments map[id.IdentityID][]Assignment
}

func New() *InMemoryStore {
	return &InMemoryStore{
		identities:  make(map[id.IdentityID]models.Identity),
		byUsername:  make(map[string]id.IdentityID),
		assignments: make(map[id.IdentityID][]Assignment),
	}
}

// Put inserts or replaces identity and its role assignments.
func (s *InMemoryStore) Put(identity models.Identity, assignments ...Assignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[identity.ID] = identity
	s.byUsername[strings.ToLower(identity.Username)] = identity.ID
	s.assignments[identity.ID] = append([]Assignment(nil), assignments...)
}

func (s *InMemoryStore) GetIdentity(_ context.Context, identityID id.IdentityID) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identity, ok := s.identities[identityID]
	if !ok {
		return nil, fmt.Errorf("identity %s: %w", identityID, sentinel.ErrNotFound)
	}
	return &identity, nil
}

func (s *InMemoryStore) GetIdentityByUsername(_ context.Context, username string) (*models.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	identityID, ok := s.byUsername[strings.ToLower(username)]
	if !ok {
		return nil, fmt.Errorf("identity %q: %w", username, sentinel.ErrNotFound)
	}
	identity := s.identities[identityID]
	return &identity, nil
}

func (s *InMemoryStore) ListActiveRoles(ctx context.Context, identityID id.IdentityID) ([]models.Role, error) {
	now := requesttime.Now(ctx)
	s.mu.RLock()
	defer s.mu.RUnlock()
	roles := make([]models.Role, 0, len(s.assignments[identityID]))
	for _, a := range s.assignments[identityID] {
		if !a.Active || (a.ExpiresAt != nil && !a.ExpiresAt.After(now)) {
			continue
		}
		roles = append(roles, models.Role{
			Name:        a.Role.Name,
			Permissions: append([]string(nil), a.Role.Permissions...),
		})
	}
	return roles, nil
}

func (s *InMemoryStore) TouchLastActivity(_ context.Context, identityID id.IdentityID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	identity, ok := s.identities[identityID]
	if !ok {
		return fmt.Errorf("identity %s: %w", identityID, sentinel.ErrNotFound)
	}
	identity.LastActivityAt = &at
	s.identities[identityID] = identity
	return nil
}
