package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "medgate/pkg/domain"
)

var authPolicy = Policy{Capacity: 5, Window: time.Minute, BlockFor: 15 * time.Minute}

func TestAdvance(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("six auth requests within a minute block the sixth", func(t *testing.T) {
		var w *Window
		for i, want := range []int{4, 3, 2, 1, 0} {
			next, res := Advance(w, "k", t0.Add(time.Duration(i)*time.Second), authPolicy)
			require.True(t, res.Allowed, "request %d", i+1)
			assert.Equal(t, want, res.Remaining)
			assert.Equal(t, 5, res.Limit)
			assert.Equal(t, t0.Add(time.Minute), res.ResetAt)
			w = &next
		}

		now := t0.Add(6 * time.Second)
		next, res := Advance(w, "k", now, authPolicy)
		assert.False(t, res.Allowed)
		assert.Equal(t, 0, res.Remaining)
		assert.Equal(t, 900, res.RetryAfter)
		require.NotNil(t, next.BlockUntil)
		assert.Equal(t, now.Add(15*time.Minute), *next.BlockUntil)
		assert.Equal(t, 5, next.Consumed, "consumed never exceeds capacity")
	})

	t.Run("block survives window reset and keeps original expiry", func(t *testing.T) {
		until := t0.Add(15 * time.Minute)
		w := &Window{Key: "k", Start: t0, Consumed: 5, Capacity: 5, BlockUntil: &until}

		last := 901
		for _, offset := range []time.Duration{0, time.Minute, 2 * time.Minute, 14*time.Minute + 59*time.Second} {
			next, res := Advance(w, "k", t0.Add(offset), authPolicy)
			require.False(t, res.Allowed)
			assert.LessOrEqual(t, res.RetryAfter, last)
			assert.GreaterOrEqual(t, res.RetryAfter, 1)
			assert.Equal(t, until, *next.BlockUntil)
			last = res.RetryAfter
			w = &next
		}

		next, res := Advance(w, "k", until, authPolicy)
		assert.True(t, res.Allowed)
		assert.Equal(t, 4, res.Remaining)
		assert.Nil(t, next.BlockUntil)
		assert.Equal(t, until, next.Start)
	})

	t.Run("expired window starts fresh", func(t *testing.T) {
		w := &Window{Key: "k", Start: t0, Consumed: 3, Capacity: 5}
		next, res := Advance(w, "k", t0.Add(time.Minute), authPolicy)
		assert.True(t, res.Allowed)
		assert.Equal(t, 1, next.Consumed)
		assert.Equal(t, 4, res.Remaining)
	})

	t.Run("zero block duration blocks until window end", func(t *testing.T) {
		p := Policy{Capacity: 1, Window: time.Minute}
		w, _ := Advance(nil, "k", t0, p)
		next, res := Advance(&w, "k", t0.Add(10*time.Second), p)
		assert.False(t, res.Allowed)
		assert.Equal(t, t0.Add(time.Minute), *next.BlockUntil)
		assert.Equal(t, 50, res.RetryAfter)
	})
}

func TestInspect(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("missing window reports full quota", func(t *testing.T) {
		res := Inspect(nil, t0, authPolicy)
		assert.True(t, res.Allowed)
		assert.Equal(t, 5, res.Remaining)
	})

	t.Run("active window reports remaining", func(t *testing.T) {
		res := Inspect(&Window{Start: t0, Consumed: 2}, t0.Add(time.Second), authPolicy)
		assert.True(t, res.Allowed)
		assert.Equal(t, 3, res.Remaining)
	})

	t.Run("blocked window reports retry after", func(t *testing.T) {
		until := t0.Add(90 * time.Second)
		res := Inspect(&Window{Start: t0, Consumed: 5, BlockUntil: &until}, t0, authPolicy)
		assert.False(t, res.Allowed)
		assert.Equal(t, 90, res.RetryAfter)
	})
}

func TestRetryAfterSeconds(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, RetryAfterSeconds(now, now))
	assert.Equal(t, 1, RetryAfterSeconds(now.Add(-time.Second), now))
	assert.Equal(t, 2, RetryAfterSeconds(now.Add(1500*time.Millisecond), now))
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, authPolicy.Validate())
	assert.Error(t, Policy{Capacity: 0, Window: time.Minute}.Validate())
	assert.Error(t, Policy{Capacity: 1}.Validate())
	assert.Error(t, Policy{Capacity: 1, Window: time.Minute, BlockFor: -time.Second}.Validate())
}

func TestKeys(t *testing.T) {
	identityID, err := id.ParseIdentityID("6f1c2b9e-3d4a-4f5b-8c7d-1e2f3a4b5c6d")
	require.NoError(t, err)

	assert.Equal(t, "rl:auth:id:6f1c2b9e-3d4a-4f5b-8c7d-1e2f3a4b5c6d",
		NewRateLimitKey(identityID, "10.0.0.1", CategoryAuth).String())
	assert.Equal(t, "rl:general:ip:10.0.0.1",
		NewRateLimitKey(id.IdentityID{}, "10.0.0.1", CategoryGeneral).String())
	assert.Equal(t, "rl:search:ip:__1",
		NewRateLimitKey(id.IdentityID{}, "::1", CategorySearch).String(), "delimiters are escaped")

	assert.Equal(t, LockoutKey("lockout:jane.doe"), NewLockoutKey("  Jane.Doe "))
	assert.NotEqual(t, NewLockoutKey("auth").String(), NewRateLimitKey(id.IdentityID{}, "auth", CategoryAuth).String())
}
