// Package models holds the identity and principal types shared by the
// resolver, the identity stores and the permission middleware.
package models

import (
	"sort"
	"time"

	id "medgate/pkg/domain"
	pkgstrings "medgate/pkg/platform/strings"
)

// Identity is a stored caller account.
type Identity struct {
	ID             id.IdentityID
	Username       string
	DisplayName    string
	PasswordHash   string
	Active         bool
	LastActivityAt *time.Time
}

// Role is an active role assignment with the permissions it grants.
type Role struct {
	Name        string
	Permissions []string
}

// Principal is the verified caller for one request. Role and permission sets
// are never mutated after construction.
type Principal struct {
	IdentityID     id.IdentityID
	Username       string
	DisplayName    string
	LastActivityAt time.Time
	roles          map[string]struct{}
	permissions    map[string]struct{}
}

// NewPrincipal builds a principal from an identity and its active roles.
// Duplicate roles and permissions collapse into sets.
func NewPrincipal(identity *Identity, roles []Role, now time.Time) *Principal {
	p := &Principal{
		IdentityID:     identity.ID,
		Username:       identity.Username,
		DisplayName:    identity.DisplayName,
		LastActivityAt: now,
		roles:          make(map[string]struct{}, len(roles)),
		permissions:    make(map[string]struct{}),
	}
	names := make([]string, 0, len(roles))
	var perms []string
	for _, r := range roles {
		names = append(names, r.Name)
		perms = append(perms, r.Permissions...)
	}
	for _, n := range pkgstrings.DedupeAndTrim(names) {
		p.roles[n] = struct{}{}
	}
	for _, n := range pkgstrings.DedupeAndTrim(perms) {
		p.permissions[n] = struct{}{}
	}
	return p
}

func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	_, ok := p.roles[role]
	return ok
}

func (p *Principal) HasPermission(permission string) bool {
	if p == nil {
		return false
	}
	_, ok := p.permissions[permission]
	return ok
}

// Roles returns the role names, sorted.
func (p *Principal) Roles() []string { return sortedKeys(p.roles) }

// Permissions returns the permission names, sorted.
func (p *Principal) Permissions() []string { return sortedKeys(p.permissions) }

// Require reports whether the principal holds roleOrPermission as either a
// role or a permission. A nil principal holds nothing.
func Require(p *Principal, roleOrPermission string) bool {
	return p.HasRole(roleOrPermission) || p.HasPermission(roleOrPermission)
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
