// Package ports declares the identity store contract.
package ports

//go:generate mockgen -source=ports.go -destination=../mocks/identity_store_mock.go -package=mocks IdentityStore

import (
	"context"
	"time"

	"medgate/internal/identity/models"
	id "medgate/pkg/domain"
)

// IdentityStore is the read-mostly identity backend. Missing identities
// return sentinel.ErrNotFound. ListActiveRoles returns an empty slice for an
// identity with no active assignments.
type IdentityStore interface {
	GetIdentity(ctx context.Context, identityID id.IdentityID) (*models.Identity, error)
	GetIdentityByUsername(ctx context.Context, username string) (*models.Identity, error)
	ListActiveRoles(ctx context.Context, identityID id.IdentityID) ([]models.Role, error)
	TouchLastActivity(ctx context.Context, identityID id.IdentityID, at time.Time) error
}
