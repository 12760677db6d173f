package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medgate/internal/ratelimit/models"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, models.Policy{Capacity: 5, Window: time.Minute, BlockFor: 15 * time.Minute}, cfg.PolicyFor(models.CategoryAuth))
	assert.Equal(t, 20, cfg.PolicyFor(models.CategoryAdmin).Capacity)
	assert.Equal(t, 30, cfg.PolicyFor(models.CategorySearch).Capacity)
	assert.Equal(t, 100, cfg.PolicyFor(models.CategoryGeneral).Capacity)
	assert.Equal(t, cfg.PolicyFor(models.CategoryGeneral), cfg.PolicyFor(models.Category("bogus")))
	assert.Equal(t, 15*time.Minute, cfg.Lockout.Window)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Search.Capacity = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search")
}
