// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// Middleware sets these values; services, the rate limiter and the record
// builders read them without importing net/http.
//
//	identityID := requestcontext.IdentityID(ctx)
//	requestID := requestcontext.RequestID(ctx)
//	now := requestcontext.Now(ctx)
//
// The Outcome is the one mutable value: the outermost audit middleware installs
// it, and inner layers (authentication, permission checks) report into it so
// the post-response recorder sees decisions made deeper in the chain.
package requestcontext

import (
	"context"
	"sync"
	"time"

	id "medgate/pkg/domain"
)

type (
	identityIDKey  struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	bodyKey        struct{}
	outcomeKey     struct{}
)

var (
	ContextKeyIdentityID  = identityIDKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// -----------------------------------------------------------------------------
// Identity
// -----------------------------------------------------------------------------

// IdentityID retrieves the authenticated identity ID. Zero value when anonymous.
func IdentityID(ctx context.Context) id.IdentityID {
	if v, ok := ctx.Value(ContextKeyIdentityID).(id.IdentityID); ok {
		return v
	}
	return id.IdentityID{}
}

// WithIdentityID injects an authenticated identity ID into the context.
func WithIdentityID(ctx context.Context, identityID id.IdentityID) context.Context {
	return context.WithValue(ctx, ContextKeyIdentityID, identityID)
}

// -----------------------------------------------------------------------------
// Client metadata (IP, User-Agent)
// -----------------------------------------------------------------------------

// ClientIP retrieves the client IP address from the context.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the User-Agent from the context.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent into a context.
// Useful for service unit tests that don't run the full HTTP middleware chain.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	ctx = context.WithValue(ctx, ContextKeyUserAgent, userAgent)
	return ctx
}

// -----------------------------------------------------------------------------
// Request metadata
// -----------------------------------------------------------------------------

// RequestID retrieves the request ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time from context.
// Falls back to time.Now() if not set (workers, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// -----------------------------------------------------------------------------
// Captured request body
// -----------------------------------------------------------------------------

// Body returns the decoded JSON object body captured for this request, or nil.
// Callers must treat the map as read-only.
func Body(ctx context.Context) map[string]any {
	if b, ok := ctx.Value(bodyKey{}).(map[string]any); ok {
		return b
	}
	return nil
}

// WithBody stores a decoded JSON object body in the context.
func WithBody(ctx context.Context, body map[string]any) context.Context {
	return context.WithValue(ctx, bodyKey{}, body)
}

// -----------------------------------------------------------------------------
// Request outcome
// -----------------------------------------------------------------------------

// Outcome collects decisions made by inner middleware for the post-response
// audit. Safe for concurrent use.
type Outcome struct {
	mu            sync.Mutex
	identityID    id.IdentityID
	tag           string
	justification string
}

// SetIdentity records the resolved identity.
func (o *Outcome) SetIdentity(identityID id.IdentityID) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.identityID = identityID
}

// SetTag records an audit tag such as PERMISSION_DENIED. The first tag wins.
func (o *Outcome) SetTag(tag string) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.tag == "" {
		o.tag = tag
	}
}

// SetJustification records an explicit business justification.
func (o *Outcome) SetJustification(justification string) {
	if o == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.justification = justification
}

// Snapshot returns the collected values.
func (o *Outcome) Snapshot() (identityID id.IdentityID, tag, justification string) {
	if o == nil {
		return id.IdentityID{}, "", ""
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.identityID, o.tag, o.justification
}

// WithOutcome installs a fresh Outcome in the context.
func WithOutcome(ctx context.Context) (context.Context, *Outcome) {
	o := &Outcome{}
	return context.WithValue(ctx, outcomeKey{}, o), o
}

// OutcomeFrom returns the request's Outcome, or nil when none was installed.
// All Outcome methods are nil-safe.
func OutcomeFrom(ctx context.Context) *Outcome {
	if o, ok := ctx.Value(outcomeKey{}).(*Outcome); ok {
		return o
	}
	return nil
}
