package memory

import (
	"fmt"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"medgate/internal/identity/models"
	id "medgate/pkg/domain"
)

// Role names and permissions of the built-in development accounts.
var (
	RoleAdmin = models.Role{Name: "admin", Permissions: []string{
		"members:read", "members:write", "claims:read", "claims:write",
		"providers:read", "providers:write", "plans:read", "plans:write",
		"employers:read", "employers:write", "reports:read", "users:manage",
	}}
	RoleClaimsProcessor = models.Role{Name: "claims_processor", Permissions: []string{
		"members:read", "claims:read", "claims:write", "providers:read", "plans:read",
	}}
	RoleAnalyst = models.Role{Name: "analyst", Permissions: []string{
		"reports:read", "plans:read", "employers:read", "providers:read",
	}}
)

// SeedAccount is one development login.
type SeedAccount struct {
	Username    string
	DisplayName string
	Password    string
	Roles       []models.Role
}

// DefaultAccounts are loaded when the server runs against the in-memory store.
var DefaultAccounts = []SeedAccount{
	{Username: "admin", DisplayName: "Administrator", Password: "admin-password", Roles: []models.Role{RoleAdmin}},
	{Username: "processor", DisplayName: "Claims Processor", Password: "processor-password", Roles: []models.Role{RoleClaimsProcessor}},
	{Username: "analyst", DisplayName: "Report Analyst", Password: "analyst-password", Roles: []models.Role{RoleAnalyst}},
}

// Seed stores each account with a bcrypt password hash at cost.
func (s *InMemoryStore) Seed(accounts []SeedAccount, cost int) error {
	for _, acct := range accounts {
		hash, err := bcrypt.GenerateFromPassword([]byte(acct.Password), cost)
		if err != nil {
			return fmt.Errorf("hash password for %s: %w", acct.Username, err)
		}
		assignments := make([]Assignment, 0, len(acct.Roles))
		for _, r := range acct.Roles {
			assignments = append(assignments, Assignment{Role: r, Active: true})
		}
		s.Put(models.Identity{
			ID:           id.IdentityID(uuid.New()),
			Username:     acct.Username,
			DisplayName:  acct.DisplayName,
			PasswordHash: string(hash),
			Active:       true,
		}, assignments...)
	}
	return nil
}
