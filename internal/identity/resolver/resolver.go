// Package resolver turns a bearer credential into a Principal.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"medgate/internal/identity/models"
	"medgate/internal/identity/ports"
	"medgate/internal/identity/token"
	id "medgate/pkg/domain"
	dErrors "medgate/pkg/domain-errors"
	"medgate/pkg/platform/middleware/request"
	"medgate/pkg/platform/middleware/requesttime"
	"medgate/pkg/platform/sentinel"
)

// DefaultStoreTimeout bounds every identity store round trip.
const DefaultStoreTimeout = 2 * time.Second

// Verifier validates a credential and returns its claims.
type Verifier interface {
	Verify(credential string) (*token.Claims, error)
}

// Service resolves principals. Concurrent resolutions of the same identity
// share one store load.
type Service struct {
	store        ports.IdentityStore
	verifier     Verifier
	logger       *slog.Logger
	metrics      *Metrics
	tracer       trace.Tracer
	storeTimeout time.Duration
	loads        singleflight.Group
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithStoreTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.storeTimeout = timeout
		}
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

func New(store ports.IdentityStore, verifier Verifier, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("identity store is required")
	}
	if verifier == nil {
		return nil, errors.New("token verifier is required")
	}
	s := &Service{
		store:        store,
		verifier:     verifier,
		logger:       slog.Default(),
		tracer:       otel.Tracer("medgate/identity"),
		storeTimeout: DefaultStoreTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// loaded is the shared result of one collapsed store load.
type loaded struct {
	identity *models.Identity
	roles    []models.Role
}

// ResolveHeader extracts the bearer credential from an Authorization header
// value and resolves it.
func (s *Service) ResolveHeader(ctx context.Context, header string) (*models.Principal, error) {
	credential, err := token.FromHeader(header)
	if err != nil {
		s.metrics.ObserveOutcome(dErrors.CodeOf(err))
		return nil, err
	}
	return s.Resolve(ctx, credential)
}

// Resolve verifies credential and loads the caller's roles and permissions.
// Errors carry CodeAuthMissing, CodeAuthInvalid or CodeAuthInactive.
func (s *Service) Resolve(ctx context.Context, credential string) (*models.Principal, error) {
	ctx, span := s.tracer.Start(ctx, "identity.resolve")
	defer span.End()

	p, err := s.resolve(ctx, credential)
	code := dErrors.CodeOf(err)
	s.metrics.ObserveOutcome(code)
	if err != nil {
		span.SetAttributes(attribute.String("identity.outcome", string(code)))
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("identity.outcome", "resolved"),
		attribute.Int("identity.roles", len(p.Roles())),
	)
	return p, nil
}

func (s *Service) resolve(ctx context.Context, credential string) (*models.Principal, error) {
	if credential == "" {
		return nil, dErrors.New(dErrors.CodeAuthMissing, "missing bearer token")
	}
	claims, err := s.verifier.Verify(credential)
	if err != nil {
		if dErrors.CodeOf(err) == "" {
			return nil, dErrors.Wrap(err, dErrors.CodeAuthInvalid, "invalid token")
		}
		return nil, err
	}
	identityID, err := id.ParseIdentityID(claims.Subject)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeAuthInvalid, "invalid token subject")
	}

	v, err, _ := s.loads.Do(identityID.String(), func() (any, error) {
		return s.load(ctx, identityID)
	})
	if err != nil {
		return nil, err
	}
	l := v.(*loaded)
	return models.NewPrincipal(l.identity, l.roles, requesttime.Now(ctx)), nil
}

// load runs detached from the caller's cancellation because its result is
// shared with every waiter; the store timeout still bounds it.
func (s *Service) load(ctx context.Context, identityID id.IdentityID) (*loaded, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	identity, err := s.store.GetIdentity(ctx, identityID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeAuthInactive, "identity not found")
	}
	if err != nil {
		s.logStoreFailure(ctx, "get identity", err)
		return nil, dErrors.Wrap(err, dErrors.CodeAuthInvalid, "identity store unavailable")
	}
	if !identity.Active {
		return nil, dErrors.New(dErrors.CodeAuthInactive, "identity deactivated")
	}

	roles, err := s.store.ListActiveRoles(ctx, identityID)
	if err != nil {
		s.logStoreFailure(ctx, "list active roles", err)
		return nil, dErrors.Wrap(err, dErrors.CodeAuthInvalid, "identity store unavailable")
	}

	if err := s.store.TouchLastActivity(ctx, identityID, requesttime.Now(ctx)); err != nil {
		s.logger.WarnContext(ctx, "failed to touch last activity",
			"error", err,
			"identity_id", identityID.String(),
			"request_id", request.GetRequestID(ctx),
		)
	}
	return &loaded{identity: identity, roles: roles}, nil
}

func (s *Service) logStoreFailure(ctx context.Context, op string, err error) {
	s.logger.WarnContext(ctx, "identity store call failed",
		"op", op,
		"error", err,
		"timeout", errors.Is(err, context.DeadlineExceeded),
		"request_id", request.GetRequestID(ctx),
	)
}
