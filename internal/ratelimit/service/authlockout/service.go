package authlockout

import (
	"context"
	"errors"
	"log/slog"

	"medgate/internal/ratelimit/config"
	"medgate/internal/ratelimit/metrics"
	"medgate/internal/ratelimit/models"
	"medgate/internal/ratelimit/ports"
	dErrors "medgate/pkg/domain-errors"
	metadata "medgate/pkg/platform/middleware/metadata"
	requesttime "medgate/pkg/platform/middleware/requesttime"
	"medgate/pkg/platform/privacy"
)

// Service tracks failed credential checks per identifier. It shares the
// counter store with the request limiter but keys under its own namespace.
type Service struct {
	counters ports.CounterStore
	logger   *slog.Logger
	policy   models.Policy
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithConfig takes the lockout policy from cfg.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.policy = cfg.Lockout.Policy()
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(counters ports.CounterStore, opts ...Option) (*Service, error) {
	if counters == nil {
		return nil, errors.New("auth lockout counter store is required")
	}

	svc := &Service{
		counters: counters,
		logger:   slog.Default(),
		policy:   config.DefaultConfig().Lockout.Policy(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if err := svc.policy.Validate(); err != nil {
		return nil, err
	}
	return svc, nil
}

// CheckAllowed reports whether identifier may attempt to authenticate.
// It never consumes quota.
func (s *Service) CheckAllowed(ctx context.Context, identifier string) (*models.Result, error) {
	key := models.NewLockoutKey(identifier)
	w, err := s.counters.Peek(ctx, key.String())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get auth lockout state")
	}
	result := models.Inspect(w, requesttime.Now(ctx), s.policy)
	return &result, nil
}

// RecordFailure counts one failed attempt. Failures beyond the policy
// capacity within the window lock the identifier for the block duration.
func (s *Service) RecordFailure(ctx context.Context, identifier string) (*models.Result, error) {
	key := models.NewLockoutKey(identifier)
	result, err := s.counters.Increment(ctx, key.String(), requesttime.Now(ctx), s.policy)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record auth failure")
	}

	s.metrics.IncrementAuthFailures()
	if !result.Allowed {
		s.metrics.IncrementAuthLockouts()
		ports.LogEvent(ctx, s.logger, "auth_lockout_triggered",
			"identifier", privacy.MaskIdentifier(identifier),
			"ip", privacy.AnonymizeIP(metadata.GetClientIP(ctx)),
			"retry_after", result.RetryAfter,
		)
	}
	return result, nil
}

// Reset clears failures after a successful authentication.
func (s *Service) Reset(ctx context.Context, identifier string) error {
	key := models.NewLockoutKey(identifier)
	if err := s.counters.Reset(ctx, key.String()); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear auth failures")
	}
	ports.LogEvent(ctx, s.logger, "auth_lockout_cleared",
		"identifier", privacy.MaskIdentifier(identifier),
	)
	return nil
}
