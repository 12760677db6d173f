package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"medgate/internal/ratelimit/config"
	"medgate/internal/ratelimit/metrics"
	"medgate/internal/ratelimit/models"
	"medgate/internal/ratelimit/service/requestlimit"
	"medgate/internal/ratelimit/store/bucket"
	id "medgate/pkg/domain"
	"medgate/pkg/platform/audit"
	"medgate/pkg/requestcontext"
)

type RateLimitMiddlewareSuite struct {
	suite.Suite
	now time.Time
}

func TestRateLimitMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(RateLimitMiddlewareSuite))
}

func (s *RateLimitMiddlewareSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
}

func (s *RateLimitMiddlewareSuite) handler(limiter RateLimiter, opts ...Option) http.Handler {
	return New(limiter, nil, opts...).RateLimit(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func (s *RateLimitMiddlewareSuite) request(path string, identityID id.IdentityID) (*http.Request, *requestcontext.Outcome) {
	r := httptest.NewRequest(http.MethodPost, path, nil)
	ctx := requestcontext.WithClientMetadata(r.Context(), "198.51.100.4", "curl/8.0")
	ctx = requestcontext.WithTime(ctx, s.now)
	if !identityID.IsNil() {
		ctx = requestcontext.WithIdentityID(ctx, identityID)
	}
	ctx, outcome := requestcontext.WithOutcome(ctx)
	return r.WithContext(ctx), outcome
}

func (s *RateLimitMiddlewareSuite) TestAuthEndpointBlocksSixthRequest() {
	svc, err := requestlimit.New(bucket.New(), requestlimit.WithConfig(config.DefaultConfig()))
	s.Require().NoError(err)
	h := s.handler(svc)

	for _, want := range []string{"4", "3", "2", "1", "0"} {
		r, _ := s.request("/api/auth/login", id.IdentityID{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("5", rec.Header().Get("X-RateLimit-Limit"))
		s.Equal(want, rec.Header().Get("X-RateLimit-Remaining"))
		s.NotEmpty(rec.Header().Get("X-RateLimit-Reset"))
		s.Empty(rec.Header().Get(HeaderStatus))
	}

	r, outcome := s.request("/api/auth/login", id.IdentityID{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	s.Equal(http.StatusTooManyRequests, rec.Code)
	s.Equal("900", rec.Header().Get("Retry-After"))
	s.Equal("0", rec.Header().Get("X-RateLimit-Remaining"))

	var body RateLimitExceededResponse
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(&body))
	s.Equal("rate_limit_exceeded", body.Error)
	s.Equal(900, body.RetryAfter)

	_, tag, _ := outcome.Snapshot()
	s.Equal(audit.TagRateLimited, tag)

	s.Run("other categories unaffected", func() {
		r, _ := s.request("/api/members/7", id.IdentityID{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("100", rec.Header().Get("X-RateLimit-Limit"))
	})

	s.Run("authenticated callers keyed by identity", func() {
		r, _ := s.request("/api/auth/me", id.IdentityID{9})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		s.Equal(http.StatusOK, rec.Code)
		s.Equal("4", rec.Header().Get("X-RateLimit-Remaining"))
	})
}

func (s *RateLimitMiddlewareSuite) TestDegradedHeader() {
	h := s.handler(stubLimiter{result: &models.Result{Allowed: true, Limit: 100, Remaining: 99, ResetAt: s.now, Degraded: true}})
	r, _ := s.request("/api/claims", id.IdentityID{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	s.Equal(http.StatusOK, rec.Code)
	s.Equal("degraded", rec.Header().Get(HeaderStatus))
}

func (s *RateLimitMiddlewareSuite) TestLimiterErrorFailsOpen() {
	m := metrics.New(prometheus.NewRegistry())
	h := s.handler(stubLimiter{err: errors.New("store down")}, WithMetrics(m))
	for range 2 {
		r, _ := s.request("/api/claims", id.IdentityID{})
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		s.Equal(http.StatusOK, rec.Code)
		s.Empty(rec.Header().Get("X-RateLimit-Limit"))
	}
	s.Equal(float64(2), testutil.ToFloat64(m.StoreErrors))
}

func (s *RateLimitMiddlewareSuite) TestAllowedDecisionDoesNotCountStoreErrors() {
	m := metrics.New(prometheus.NewRegistry())
	h := s.handler(stubLimiter{result: &models.Result{Allowed: true, Limit: 100, Remaining: 99, ResetAt: s.now}}, WithMetrics(m))
	r, _ := s.request("/api/claims", id.IdentityID{})
	h.ServeHTTP(httptest.NewRecorder(), r)
	s.Zero(testutil.ToFloat64(m.StoreErrors))
}

func (s *RateLimitMiddlewareSuite) TestDisabled() {
	h := s.handler(stubLimiter{result: &models.Result{Allowed: false, RetryAfter: 5}}, WithDisabled(true))
	r, _ := s.request("/api/claims", id.IdentityID{})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	s.Equal(http.StatusOK, rec.Code)
}

type stubLimiter struct {
	result *models.Result
	err    error
}

func (l stubLimiter) Consume(context.Context, models.RateLimitKey) (*models.Result, error) {
	return l.result, l.err
}
