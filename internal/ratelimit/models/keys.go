package models

import (
	"strings"

	id "medgate/pkg/domain"
	"medgate/pkg/platform/privacy"
)

// SanitizeKeySegment escapes delimiter characters in rate limit key segments
// so an identifier containing ':' cannot address an adjacent bucket.
func SanitizeKeySegment(s string) string {
	return strings.ReplaceAll(s, ":", "_")
}

// RateLimitKey is the composite (client identity, category) key.
type RateLimitKey struct {
	Client   string
	Category Category
}

// NewRateLimitKey keys authenticated callers by identity ID and everyone else
// by network origin.
func NewRateLimitKey(identityID id.IdentityID, clientIP string, category Category) RateLimitKey {
	client := "ip:" + SanitizeKeySegment(clientIP)
	if !identityID.IsNil() {
		client = "id:" + identityID.String()
	}
	return RateLimitKey{Client: client, Category: category}
}

func (k RateLimitKey) String() string {
	return "rl:" + string(k.Category) + ":" + k.Client
}

// Redacted returns the client identity in a form safe for logs.
func (k RateLimitKey) Redacted() string {
	if ip, ok := strings.CutPrefix(k.Client, "ip:"); ok {
		return "ip:" + privacy.AnonymizeIP(strings.ReplaceAll(ip, "_", ":"))
	}
	return k.Client
}

// LockoutKey namespaces auth-failure counters by credential identifier, so they
// never share a bucket with request counters.
type LockoutKey string

// NewLockoutKey normalizes the credential identifier (case-insensitive).
func NewLockoutKey(identifier string) LockoutKey {
	return LockoutKey("lockout:" + SanitizeKeySegment(strings.ToLower(strings.TrimSpace(identifier))))
}

func (k LockoutKey) String() string { return string(k) }
