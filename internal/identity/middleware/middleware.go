// Package middleware authenticates requests and enforces roles and
// permissions on routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"medgate/internal/identity/models"
	dErrors "medgate/pkg/domain-errors"
	audit "medgate/pkg/platform/audit"
	"medgate/pkg/platform/httputil"
	"medgate/pkg/platform/middleware/request"
	"medgate/pkg/requestcontext"
)

const (
	msgAuthRequired      = "Authentication required"
	msgInvalidToken      = "Invalid or expired token"
	msgAccountInactive   = "Account inactive"
	msgInsufficientPerms = "Insufficient permissions"
)

type principalKey struct{}

// PrincipalFrom returns the authenticated principal, or nil.
func PrincipalFrom(ctx context.Context) *models.Principal {
	p, _ := ctx.Value(principalKey{}).(*models.Principal)
	return p
}

// WithPrincipal stores p in ctx along with its identity ID and reports the
// identity to the request Outcome.
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	ctx = context.WithValue(ctx, principalKey{}, p)
	ctx = requestcontext.WithIdentityID(ctx, p.IdentityID)
	requestcontext.OutcomeFrom(ctx).SetIdentity(p.IdentityID)
	return ctx
}

// Resolver resolves an Authorization header value.
type Resolver interface {
	ResolveHeader(ctx context.Context, header string) (*models.Principal, error)
}

type Middleware struct {
	resolver Resolver
	logger   *slog.Logger
}

func New(resolver Resolver, logger *slog.Logger) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return &Middleware{resolver: resolver, logger: logger}
}

// Authenticate resolves the caller when an Authorization header is present.
// Requests without one continue anonymously; a presented but unusable
// credential is rejected with 401.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return m.authenticate(next, nil)
}

// AuthenticateThrottled behaves like Authenticate but sends rejected
// credentials through limit first. The request carries no identity at that
// point, so the quota is charged to the network origin and a flood of bad
// tokens is answered with 429 once it is spent.
func (m *Middleware) AuthenticateThrottled(limit func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return m.authenticate(next, limit)
	}
}

func (m *Middleware) authenticate(next http.Handler, limit func(http.Handler) http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		p, err := m.resolver.ResolveHeader(ctx, header)
		if err != nil {
			m.logger.WarnContext(ctx, "authentication failed",
				"code", string(dErrors.CodeOf(err)),
				"error", err,
				"request_id", request.GetRequestID(ctx),
			)
			reject := rejectHandler(messageFor(err))
			if limit != nil {
				reject = limit(reject)
			}
			reject.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, p)))
	})
}

func rejectHandler(message string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestcontext.OutcomeFrom(r.Context()).SetTag(audit.TagAuthFailed)
		httputil.WriteError(w, http.StatusUnauthorized, message, "")
	})
}

// RequireAuth rejects anonymous requests.
func (m *Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if PrincipalFrom(ctx) == nil {
			requestcontext.OutcomeFrom(ctx).SetTag(audit.TagAuthFailed)
			m.logger.WarnContext(ctx, "unauthorized access - missing token",
				"request_id", request.GetRequestID(ctx),
			)
			httputil.WriteError(w, http.StatusUnauthorized, msgAuthRequired, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequirePermission admits principals holding permission.
func (m *Middleware) RequirePermission(permission string) func(http.Handler) http.Handler {
	return m.require(permission, audit.TagPermissionDenied, (*models.Principal).HasPermission)
}

// RequireRole admits principals holding role.
func (m *Middleware) RequireRole(role string) func(http.Handler) http.Handler {
	return m.require(role, audit.TagRoleAccessDenied, (*models.Principal).HasRole)
}

func (m *Middleware) require(name, tag string, has func(*models.Principal, string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p := PrincipalFrom(ctx)
			if p == nil {
				requestcontext.OutcomeFrom(ctx).SetTag(audit.TagAuthFailed)
				httputil.WriteError(w, http.StatusUnauthorized, msgAuthRequired, "")
				return
			}
			if !has(p, name) {
				requestcontext.OutcomeFrom(ctx).SetTag(tag)
				m.logger.WarnContext(ctx, "access denied",
					"tag", tag,
					"required", name,
					"identity_id", p.IdentityID.String(),
					"request_id", request.GetRequestID(ctx),
				)
				httputil.WriteError(w, http.StatusForbidden, msgInsufficientPerms, name)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func messageFor(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeAuthMissing:
		return msgAuthRequired
	case dErrors.CodeAuthInactive:
		return msgAccountInactive
	default:
		return msgInvalidToken
	}
}
