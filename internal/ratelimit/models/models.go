package models

import (
	"math"
	"time"

	dErrors "medgate/pkg/domain-errors"
)

// Category buckets endpoints for differentiated rate limiting.
type Category string

const (
	// CategoryAuth: login, logout and token endpoints.
	CategoryAuth Category = "auth"
	// CategoryAdmin: administrative endpoints.
	CategoryAdmin Category = "admin"
	// CategorySearch: search, list and lookup endpoints.
	CategorySearch Category = "search"
	// CategoryGeneral: everything else.
	CategoryGeneral Category = "general"
)

// Categories lists every category in match order.
var Categories = []Category{CategoryAuth, CategoryAdmin, CategorySearch, CategoryGeneral}

// IsValid checks if the category is one of the supported values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryAuth, CategoryAdmin, CategorySearch, CategoryGeneral:
		return true
	}
	return false
}

func (c Category) String() string { return string(c) }

// Policy is the quota rule for one category: at most Capacity requests per
// Window; exceeding it blocks the key for BlockFor. A zero BlockFor blocks
// until the current window ends.
type Policy struct {
	Capacity int
	Window   time.Duration
	BlockFor time.Duration
}

// Validate enforces policy invariants.
func (p Policy) Validate() error {
	if p.Capacity <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "capacity must be positive")
	}
	if p.Window <= 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "window must be positive")
	}
	if p.BlockFor < 0 {
		return dErrors.New(dErrors.CodeInvariantViolation, "block duration cannot be negative")
	}
	return nil
}

// Window is the persisted counter state for one key.
type Window struct {
	Key        string     `json:"key"`
	Start      time.Time  `json:"window_start"`
	Consumed   int        `json:"consumed"`
	Capacity   int        `json:"capacity"`
	BlockUntil *time.Time `json:"block_until,omitempty"`
}

// IsBlockedAt reports whether the key is blocked at now.
func (w *Window) IsBlockedAt(now time.Time) bool {
	return w != nil && w.BlockUntil != nil && now.Before(*w.BlockUntil)
}

// ActiveAt reports whether the window still counts at now.
func (w *Window) ActiveAt(now time.Time, window time.Duration) bool {
	return w != nil && !w.Start.IsZero() && now.Before(w.Start.Add(window))
}

// Result represents the outcome of a consume or check.
type Result struct {
	Allowed    bool      `json:"allowed"`
	Limit      int       `json:"limit"`
	Remaining  int       `json:"remaining"`
	ResetAt    time.Time `json:"reset_at"`
	RetryAfter int       `json:"retry_after,omitempty"` // seconds, only set when not allowed
	// Degraded is set when the decision came from the fallback store.
	Degraded bool `json:"-"`
}

// Advance applies one consume attempt to current (nil for a new key) at now
// under p. It is the whole rate-limit state machine; stores call it while
// holding whatever makes the read-modify-write atomic for a key.
//
//	OPEN    --consume, under capacity--> OPEN (consumed+1)
//	OPEN    --consume, at capacity-----> BLOCKED (block-until = now+BlockFor)
//	BLOCKED --consume before expiry----> BLOCKED (expiry unchanged)
//	BLOCKED --consume after expiry-----> OPEN (fresh window, consumed=1)
func Advance(current *Window, key string, now time.Time, p Policy) (Window, Result) {
	next := Window{Key: key}
	if current != nil {
		next = *current
		next.Key = key
	}
	next.Capacity = p.Capacity

	if next.BlockUntil != nil {
		if now.Before(*next.BlockUntil) {
			return next, blocked(p, *next.BlockUntil, now)
		}
		next.BlockUntil = nil
		next.Start = time.Time{}
	}

	if !next.ActiveAt(now, p.Window) {
		next.Start = now
		next.Consumed = 0
	}

	if next.Consumed >= p.Capacity {
		until := now.Add(p.BlockFor)
		if p.BlockFor == 0 {
			until = next.Start.Add(p.Window)
		}
		next.BlockUntil = &until
		return next, blocked(p, until, now)
	}

	next.Consumed++
	return next, Result{
		Allowed:   true,
		Limit:     p.Capacity,
		Remaining: p.Capacity - next.Consumed,
		ResetAt:   next.Start.Add(p.Window),
	}
}

// Inspect reports the state of w at now without consuming.
func Inspect(w *Window, now time.Time, p Policy) Result {
	if w.IsBlockedAt(now) {
		return blocked(p, *w.BlockUntil, now)
	}
	if !w.ActiveAt(now, p.Window) || w.BlockUntil != nil {
		return Result{Allowed: true, Limit: p.Capacity, Remaining: p.Capacity, ResetAt: now.Add(p.Window)}
	}
	return Result{
		Allowed:   true,
		Limit:     p.Capacity,
		Remaining: max(p.Capacity-w.Consumed, 0),
		ResetAt:   w.Start.Add(p.Window),
	}
}

// RetryAfterSeconds rounds the wait up to whole seconds, never below one.
func RetryAfterSeconds(until, now time.Time) int {
	secs := int(math.Ceil(until.Sub(now).Seconds()))
	return max(secs, 1)
}

func blocked(p Policy, until, now time.Time) Result {
	return Result{
		Allowed:    false,
		Limit:      p.Capacity,
		Remaining:  0,
		ResetAt:    until,
		RetryAfter: RetryAfterSeconds(until, now),
	}
}
