//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "medgate/pkg/domain"
	"medgate/pkg/platform/sentinel"
	"medgate/pkg/testutil/containers"
)

func TestStoreIntegration(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := New(pg.DB)
	ctx := context.Background()

	identityID := uuid.New()
	processor, auditor, expired := uuid.New(), uuid.New(), uuid.New()
	claimsRead, claimsWrite := uuid.New(), uuid.New()

	exec := func(query string, args ...any) {
		t.Helper()
		_, err := pg.DB.ExecContext(ctx, query, args...)
		require.NoError(t, err)
	}
	exec(`INSERT INTO identities (id, username, display_name, password_hash, active) VALUES ($1, 'Processor', 'Claims Processor', 'hash', TRUE)`, identityID)
	exec(`INSERT INTO roles (id, name) VALUES ($1, 'claims_processor'), ($2, 'auditor'), ($3, 'temp_admin')`, processor, auditor, expired)
	exec(`INSERT INTO permissions (id, name) VALUES ($1, 'claims:read'), ($2, 'claims:write')`, claimsRead, claimsWrite)
	exec(`INSERT INTO role_permissions (role_id, permission_id) VALUES ($1, $2), ($1, $3)`, processor, claimsRead, claimsWrite)
	exec(`INSERT INTO identity_roles (identity_id, role_id, active, expires_at) VALUES
		($1, $2, TRUE, NULL),
		($1, $3, TRUE, NULL),
		($1, $4, TRUE, now() - interval '1 day')`, identityID, processor, auditor, expired)

	t.Run("username lookup is case-insensitive", func(t *testing.T) {
		identity, err := store.GetIdentityByUsername(ctx, "processor")
		require.NoError(t, err)
		assert.Equal(t, id.IdentityID(identityID), identity.ID)
		assert.True(t, identity.Active)
		assert.Nil(t, identity.LastActivityAt)
	})

	t.Run("unknown identity is not found", func(t *testing.T) {
		_, err := store.GetIdentity(ctx, id.IdentityID(uuid.New()))
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})

	t.Run("expired roles are excluded and roles without permissions kept", func(t *testing.T) {
		roles, err := store.ListActiveRoles(ctx, id.IdentityID(identityID))
		require.NoError(t, err)
		require.Len(t, roles, 2)
		assert.Equal(t, "auditor", roles[0].Name)
		assert.Empty(t, roles[0].Permissions)
		assert.Equal(t, "claims_processor", roles[1].Name)
		assert.Equal(t, []string{"claims:read", "claims:write"}, roles[1].Permissions)
	})

	t.Run("touch records last activity", func(t *testing.T) {
		at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		require.NoError(t, store.TouchLastActivity(ctx, id.IdentityID(identityID), at))
		identity, err := store.GetIdentity(ctx, id.IdentityID(identityID))
		require.NoError(t, err)
		require.NotNil(t, identity.LastActivityAt)
		assert.True(t, at.Equal(*identity.LastActivityAt))

		err = store.TouchLastActivity(ctx, id.IdentityID(uuid.New()), at)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
