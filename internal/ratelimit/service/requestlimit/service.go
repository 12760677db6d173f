package requestlimit

import (
	"context"
	"errors"
	"log/slog"

	"medgate/internal/ratelimit/config"
	"medgate/internal/ratelimit/metrics"
	"medgate/internal/ratelimit/models"
	"medgate/internal/ratelimit/ports"
	dErrors "medgate/pkg/domain-errors"
	requesttime "medgate/pkg/platform/middleware/requesttime"
)

// CounterStore is an alias so callers need not import ports directly.
type CounterStore = ports.CounterStore

// Service enforces per-(client, category) request quotas.
type Service struct {
	counters CounterStore
	logger   *slog.Logger
	config   *config.Config
	metrics  *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.config = cfg
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(counters CounterStore, opts ...Option) (*Service, error) {
	if counters == nil {
		return nil, errors.New("counter store is required")
	}

	svc := &Service{
		counters: counters,
		logger:   slog.Default(),
		config:   config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(svc)
	}
	if err := svc.config.Validate(); err != nil {
		return nil, err
	}
	return svc, nil
}

// Consume spends one unit of key's quota at the request time.
func (s *Service) Consume(ctx context.Context, key models.RateLimitKey) (*models.Result, error) {
	policy := s.config.PolicyFor(key.Category)
	now := requesttime.Now(ctx)

	result, err := s.counters.Increment(ctx, key.String(), now, policy)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	s.metrics.ObserveDecision(key.Category.String(), result.Allowed)
	if !result.Allowed {
		ports.LogEvent(ctx, s.logger, "rate_limit_exceeded",
			"client", key.Redacted(),
			"category", key.Category,
			"limit", policy.Capacity,
			"window_seconds", int(policy.Window.Seconds()),
			"retry_after", result.RetryAfter,
		)
	}
	return result, nil
}

// Disabled reports whether enforcement is switched off by configuration.
func (s *Service) Disabled() bool {
	return s.config.Disabled
}
