// Package postgres reads identities, roles and permissions from PostgreSQL.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"medgate/internal/identity/models"
	id "medgate/pkg/domain"
	"medgate/pkg/platform/middleware/requesttime"
	"medgate/pkg/platform/sentinel"
)

// Store implements ports.IdentityStore over the identities, roles,
// permissions, role_permissions and identity_roles tables.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

const identityColumns = `id, username, display_name, password_hash, active, last_activity_at`

func (s *Store) GetIdentity(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	return s.scanIdentity(s.db.QueryRowContext(ctx, query, uuid.UUID(identityID)))
}

func (s *Store) GetIdentityByUsername(ctx context.Context, username string) (*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE lower(username) = lower($1)`
	return s.scanIdentity(s.db.QueryRowContext(ctx, query, username))
}

func (s *Store) scanIdentity(row *sql.Row) (*models.Identity, error) {
	var (
		identity     models.Identity
		rawID        uuid.UUID
		lastActivity sql.NullTime
	)
	err := row.Scan(&rawID, &identity.Username, &identity.DisplayName, &identity.PasswordHash, &identity.Active, &lastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("identity: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select identity: %w", err)
	}
	identity.ID = id.IdentityID(rawID)
	if lastActivity.Valid {
		t := lastActivity.Time
		identity.LastActivityAt = &t
	}
	return &identity, nil
}

// ListActiveRoles returns each active, unexpired role with every permission it
// grants.
func (s *Store) ListActiveRoles(ctx context.Context, identityID id.IdentityID) ([]models.Role, error) {
	query := `
		SELECT r.name,
		       COALESCE(array_agg(p.name ORDER BY p.name) FILTER (WHERE p.name IS NOT NULL), '{}')
		FROM identity_roles ir
		JOIN roles r ON r.id = ir.role_id
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		LEFT JOIN permissions p ON p.id = rp.permission_id
		WHERE ir.identity_id = $1
		  AND ir.active
		  AND (ir.expires_at IS NULL OR ir.expires_at > $2)
		GROUP BY r.name
		ORDER BY r.name
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(identityID), requesttime.Now(ctx))
	if err != nil {
		return nil, fmt.Errorf("select active roles: %w", err)
	}
	defer rows.Close()

	roles := make([]models.Role, 0)
	for rows.Next() {
		var role models.Role
		if err := rows.Scan(&role.Name, pq.Array(&role.Permissions)); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		roles = append(roles, role)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return roles, nil
}

func (s *Store) TouchLastActivity(ctx context.Context, identityID id.IdentityID, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE identities SET last_activity_at = $2 WHERE id = $1`, uuid.UUID(identityID), at)
	if err != nil {
		return fmt.Errorf("touch last activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch last activity: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("identity %s: %w", identityID, sentinel.ErrNotFound)
	}
	return nil
}
