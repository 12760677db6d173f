// Package httptransport wires the request policy pipeline in front of the
// auth endpoints and the business resource routes.
package httptransport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"medgate/internal/failsafe"
	identitymw "medgate/internal/identity/middleware"
	"medgate/internal/platform/metrics"
	ratelimitmw "medgate/internal/ratelimit/middleware"
	dErrors "medgate/pkg/domain-errors"
	"medgate/pkg/platform/httputil"
	"medgate/pkg/platform/middleware/body"
	"medgate/pkg/platform/middleware/metadata"
	"medgate/pkg/platform/middleware/request"
	"medgate/pkg/platform/middleware/requesttime"
)

// Deps are the pipeline stages and handlers the router mounts.
type Deps struct {
	Metrics      *metrics.Metrics
	Identity     *identitymw.Middleware
	RateLimit    *ratelimitmw.Middleware
	Audit        func(http.Handler) http.Handler
	Failsafe     *failsafe.Handler
	Auth         *AuthHandler
	Tracing      func(http.Handler) http.Handler
	// ClientIP resolves the network origin. Nil trusts only the socket peer.
	ClientIP     *metadata.ClientResolver
	MaxBodyBytes int64
}

// resource is a business entity served by an external CRUD handler. Only
// the policy gates live here.
type resource struct {
	path  string
	read  string
	write string
}

var resources = []resource{
	{path: "/members", read: "members:read", write: "members:write"},
	{path: "/claims", read: "claims:read", write: "claims:write"},
	{path: "/providers", read: "providers:read", write: "providers:write"},
	{path: "/plans", read: "plans:read", write: "plans:write"},
	{path: "/employers", read: "employers:read", write: "employers:write"},
}

// NewRouter builds the handler chain. Order from the outside in: request ID,
// request time, client metadata, metrics, body capture, audit, panic
// recovery, authentication, rate limiting.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	if d.Tracing != nil {
		r.Use(d.Tracing)
	}
	r.Use(request.RequestID)
	r.Use(requesttime.Middleware)
	if d.ClientIP != nil {
		r.Use(d.ClientIP.Middleware)
	} else {
		r.Use(metadata.ClientMetadata)
	}
	r.Use(d.Metrics.Middleware)

	pipeline := []func(http.Handler) http.Handler{
		body.Capture(d.MaxBodyBytes),
		d.Audit,
		d.Failsafe.Recovery,
		d.Identity.AuthenticateThrottled(d.RateLimit.RateLimit),
		d.RateLimit.RateLimit,
	}

	r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	r.NotFound(chi.Chain(pipeline...).Handler(d.Failsafe.Wrap("router", notFound)).ServeHTTP)
	r.MethodNotAllowed(chi.Chain(pipeline...).Handler(d.Failsafe.Wrap("router", methodNotAllowed)).ServeHTTP)

	r.Group(func(r chi.Router) {
		r.Use(pipeline...)
		r.Get("/healthz", handleHealth)

		r.Route("/api", func(r chi.Router) {
			// Mounted subrouters already run inside the pipeline.
			r.NotFound(d.Failsafe.Wrap("router", notFound).ServeHTTP)
			r.MethodNotAllowed(d.Failsafe.Wrap("router", methodNotAllowed).ServeHTTP)

			r.Route("/auth", func(r chi.Router) {
				r.Method(http.MethodPost, "/login", d.Failsafe.Wrap("auth", d.Auth.HandleLogin))
				r.With(d.Identity.RequireAuth).Method(http.MethodPost, "/logout", d.Failsafe.Wrap("auth", d.Auth.HandleLogout))
				r.With(d.Identity.RequireAuth).Method(http.MethodGet, "/me", d.Failsafe.Wrap("auth", d.Auth.HandleMe))
			})

			for _, res := range resources {
				mountResource(r, d, res)
			}

			r.Route("/reports", func(r chi.Router) {
				r.Use(d.Identity.RequireAuth, d.Identity.RequirePermission("reports:read"))
				r.Method(http.MethodGet, "/*", d.Failsafe.Wrap("reports", placeholder("reports")))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(d.Identity.RequireAuth, d.Identity.RequireRole("admin"))
				r.Handle("/*", d.Failsafe.Wrap("admin", placeholder("admin")))
			})
		})
	})
	return r
}

func mountResource(r chi.Router, d Deps, res resource) {
	name := res.path[1:]
	handler := d.Failsafe.Wrap(name, placeholder(name))
	r.Route(res.path, func(r chi.Router) {
		r.Use(d.Identity.RequireAuth)
		r.Group(func(r chi.Router) {
			r.Use(d.Identity.RequirePermission(res.read))
			r.Method(http.MethodGet, "/", handler)
			r.Method(http.MethodGet, "/search", handler)
			r.Method(http.MethodGet, "/lookup", handler)
			r.Method(http.MethodGet, "/{id}", handler)
		})
		r.Group(func(r chi.Router) {
			r.Use(d.Identity.RequirePermission(res.write))
			r.Method(http.MethodPost, "/", handler)
			r.Method(http.MethodPut, "/{id}", handler)
			r.Method(http.MethodPatch, "/{id}", handler)
			r.Method(http.MethodDelete, "/{id}", handler)
		})
	})
}

// placeholder answers 501 for business endpoints served elsewhere.
func placeholder(name string) failsafe.HandlerFunc {
	return func(http.ResponseWriter, *http.Request) error {
		return dErrors.New(dErrors.CodeNotImplemented, name+" endpoint not implemented")
	}
}

func notFound(http.ResponseWriter, *http.Request) error {
	return dErrors.New(dErrors.CodeNotFound, "route not found")
}

func methodNotAllowed(http.ResponseWriter, *http.Request) error {
	return &statusError{status: http.StatusMethodNotAllowed, msg: "method not allowed"}
}

type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string   { return e.msg }
func (e *statusError) StatusCode() int { return e.status }

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
