package bucket

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"medgate/internal/ratelimit/metrics"
	"medgate/internal/ratelimit/models"
	"medgate/internal/ratelimit/ports"
	"medgate/pkg/platform/circuit"
)

// DefaultProbeInterval is how often an open breaker lets one call through to
// the primary store.
const DefaultProbeInterval = time.Second

// ResilientStore fronts a shared counter store with an in-memory fallback.
// Primary failures trip a circuit breaker; while it is open, decisions come
// from the fallback and carry Result.Degraded.
type ResilientStore struct {
	primary  ports.CounterStore
	fallback ports.CounterStore
	breaker  *circuit.Breaker
	logger   *slog.Logger
	metrics  *metrics.Metrics
	probe    time.Duration

	mu        sync.Mutex
	lastProbe time.Time
}

// ResilientOption configures a ResilientStore.
type ResilientOption func(*ResilientStore)

func WithResilientLogger(logger *slog.Logger) ResilientOption {
	return func(s *ResilientStore) {
		s.logger = logger
	}
}

func WithResilientMetrics(m *metrics.Metrics) ResilientOption {
	return func(s *ResilientStore) {
		s.metrics = m
	}
}

// WithProbeInterval sets how often the primary is retried while the breaker is
// open. Non-positive values are ignored.
func WithProbeInterval(d time.Duration) ResilientOption {
	return func(s *ResilientStore) {
		if d > 0 {
			s.probe = d
		}
	}
}

// NewResilient wraps primary. If fallback is nil a fresh in-memory store is used.
func NewResilient(primary, fallback ports.CounterStore, breaker *circuit.Breaker, opts ...ResilientOption) *ResilientStore {
	if fallback == nil {
		fallback = New()
	}
	if breaker == nil {
		breaker = circuit.New("ratelimit-counters")
	}
	s := &ResilientStore{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker,
		logger:   slog.Default(),
		probe:    DefaultProbeInterval,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Increment consumes from the primary, or from the fallback when the primary
// is failing.
func (s *ResilientStore) Increment(ctx context.Context, key string, now time.Time, policy models.Policy) (*models.Result, error) {
	if s.shouldTryPrimary(now) {
		result, err := s.primary.Increment(ctx, key, now, policy)
		if err == nil {
			_, change := s.breaker.RecordSuccess()
			if change.Closed {
				s.metrics.SetBreakerOpen(false)
				s.logger.InfoContext(ctx, "counter store recovered", "breaker", s.breaker.Name())
			}
			return result, nil
		}
		_, change := s.breaker.RecordFailure()
		if change.Opened {
			s.markProbed(now)
			s.metrics.SetBreakerOpen(true)
			s.logger.WarnContext(ctx, "counter store failing, switching to in-memory fallback",
				"breaker", s.breaker.Name(), "error", err)
		}
	}

	result, err := s.fallback.Increment(ctx, key, now, policy)
	if err != nil {
		return nil, err
	}
	result.Degraded = true
	s.metrics.IncrementDegraded()
	return result, nil
}

// Reset clears both stores so a later fallback decision stays consistent.
func (s *ResilientStore) Reset(ctx context.Context, key string) error {
	_ = s.fallback.Reset(ctx, key)
	if err := s.primary.Reset(ctx, key); err != nil {
		if s.breaker.IsOpen() {
			return nil
		}
		return err
	}
	return nil
}

// Peek reads from the store that is currently authoritative.
func (s *ResilientStore) Peek(ctx context.Context, key string) (*models.Window, error) {
	if s.breaker.IsOpen() {
		return s.fallback.Peek(ctx, key)
	}
	w, err := s.primary.Peek(ctx, key)
	if err != nil {
		return s.fallback.Peek(ctx, key)
	}
	return w, nil
}

// Degraded reports whether the fallback is serving decisions.
func (s *ResilientStore) Degraded() bool {
	return s.breaker.IsOpen()
}

func (s *ResilientStore) markProbed(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProbe = now
}

func (s *ResilientStore) shouldTryPrimary(now time.Time) bool {
	if !s.breaker.IsOpen() {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if now.Sub(s.lastProbe) < s.probe {
		return false
	}
	s.lastProbe = now
	return true
}
