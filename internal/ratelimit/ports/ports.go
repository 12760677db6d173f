// Package ports defines shared interfaces for the ratelimit module.
// Interfaces are placed here when consumed by multiple services to avoid duplication.
package ports

import (
	"context"
	"log/slog"
	"time"

	"medgate/internal/ratelimit/models"
	request "medgate/pkg/platform/middleware/request"
)

// CounterStore holds fixed-window counters. Increment must be atomic per key:
// implementations apply models.Advance under whatever serializes a key.
type CounterStore interface {
	// Increment consumes one unit for key at now under policy.
	Increment(ctx context.Context, key string, now time.Time, policy models.Policy) (*models.Result, error)

	// Reset clears the counter and any block for key.
	Reset(ctx context.Context, key string) error

	// Peek returns the stored window for key, or nil when none exists.
	Peek(ctx context.Context, key string) (*models.Window, error)
}

// LogEvent logs a security-relevant rate limit event with request correlation.
func LogEvent(ctx context.Context, logger *slog.Logger, event string, attrs ...any) {
	if logger == nil {
		return
	}
	if requestID := request.GetRequestID(ctx); requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	args := append(attrs, "event", event, "log_type", "security")
	logger.InfoContext(ctx, event, args...)
}
