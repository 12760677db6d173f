package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"medgate/internal/ratelimit/metrics"
	"medgate/internal/ratelimit/models"
	"medgate/pkg/platform/audit"
	"medgate/pkg/platform/httputil"
	metadata "medgate/pkg/platform/middleware/metadata"
	"medgate/pkg/platform/privacy"
	"medgate/pkg/requestcontext"
)

// HeaderStatus is set to "degraded" when the shared counter store is down and
// quotas are enforced per instance.
const HeaderStatus = "X-RateLimit-Status"

type RateLimiter interface {
	Consume(ctx context.Context, key models.RateLimitKey) (*models.Result, error)
}

// RateLimitExceededResponse is the 429 body.
type RateLimitExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

type Middleware struct {
	limiter  RateLimiter
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

// WithMetrics counts counter store failures that let requests through.
func WithMetrics(m *metrics.Metrics) Option {
	return func(mw *Middleware) {
		mw.metrics = m
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	if m.disabled {
		m.logger.Info("rate limiting disabled")
	}
	return m
}

// RateLimit enforces the category quota for the request path. It must run
// after authentication so callers are keyed by identity rather than address.
// Store failures let the request through.
func (m *Middleware) RateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		ip := metadata.GetClientIP(ctx)
		key := models.NewRateLimitKey(requestcontext.IdentityID(ctx), ip, models.CategoryForPath(r.URL.Path))

		result, err := m.limiter.Consume(ctx, key)
		if err != nil {
			m.logger.ErrorContext(ctx, "failed to check rate limit", "error", err,
				"ip_prefix", privacy.AnonymizeIP(ip), "category", key.Category)
			m.metrics.IncrementStoreErrors()
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)

		if !result.Allowed {
			requestcontext.OutcomeFrom(ctx).SetTag(audit.TagRateLimited)
			WriteRateLimitExceeded(w, result, "Too many requests. Please try again later.")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.Result) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
	if result.Degraded {
		w.Header().Set(HeaderStatus, "degraded")
	}
}

// WriteRateLimitExceeded writes the 429 shape with a Retry-After header.
func WriteRateLimitExceeded(w http.ResponseWriter, result *models.Result, message string) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &RateLimitExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    message,
		RetryAfter: result.RetryAfter,
	})
}
