// Package config holds the tunable rate limit policies.
package config

import (
	"fmt"
	"time"

	"medgate/internal/ratelimit/models"
)

// Limit is one configurable policy. Durations parse from strings such as "15m".
type Limit struct {
	Capacity int           `koanf:"capacity" validate:"min=1"`
	Window   time.Duration `koanf:"window" validate:"gt=0"`
	BlockFor time.Duration `koanf:"block_for" validate:"gte=0"`
}

// Policy converts the limit into the engine's policy type.
func (l Limit) Policy() models.Policy {
	return models.Policy{Capacity: l.Capacity, Window: l.Window, BlockFor: l.BlockFor}
}

// Config holds per-category request policies plus the auth lockout policy.
type Config struct {
	Disabled bool  `koanf:"disabled"`
	Auth     Limit `koanf:"auth"`
	Admin    Limit `koanf:"admin"`
	Search   Limit `koanf:"search"`
	General  Limit `koanf:"general"`
	Lockout  Limit `koanf:"lockout"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() *Config {
	return &Config{
		Auth:    Limit{Capacity: 5, Window: time.Minute, BlockFor: 15 * time.Minute},
		Admin:   Limit{Capacity: 20, Window: time.Minute, BlockFor: 5 * time.Minute},
		Search:  Limit{Capacity: 30, Window: time.Minute, BlockFor: time.Minute},
		General: Limit{Capacity: 100, Window: time.Minute, BlockFor: time.Minute},
		Lockout: Limit{Capacity: 5, Window: 15 * time.Minute, BlockFor: 15 * time.Minute},
	}
}

// PolicyFor returns the request policy for a category. Unknown categories get
// the general policy.
func (c *Config) PolicyFor(category models.Category) models.Policy {
	switch category {
	case models.CategoryAuth:
		return c.Auth.Policy()
	case models.CategoryAdmin:
		return c.Admin.Policy()
	case models.CategorySearch:
		return c.Search.Policy()
	default:
		return c.General.Policy()
	}
}

// Validate checks every policy.
func (c *Config) Validate() error {
	policies := map[string]Limit{
		"auth": c.Auth, "admin": c.Admin, "search": c.Search, "general": c.General, "lockout": c.Lockout,
	}
	for name, l := range policies {
		if err := l.Policy().Validate(); err != nil {
			return fmt.Errorf("ratelimit %s policy: %w", name, err)
		}
	}
	return nil
}
