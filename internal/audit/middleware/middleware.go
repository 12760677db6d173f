// Package middleware records an audit entry for every completed request.
package middleware

import (
	"context"
	"net/http"

	"github.com/felixge/httpsnoop"

	"medgate/internal/audit/classify"
	"medgate/internal/audit/recorder"
	"medgate/pkg/requestcontext"
)

// Recorder consumes completed requests.
type Recorder interface {
	Record(ctx context.Context, e recorder.Entry)
}

// Audit must wrap every layer that reports into the request Outcome
// (authentication, permission checks, rate limiting). Body capture has to run
// before it so the body shape is visible here.
func Audit(rec Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, outcome := requestcontext.WithOutcome(r.Context())
			r = r.WithContext(ctx)

			m := httpsnoop.CaptureMetrics(next, w, r)

			principalID, tag, justification := outcome.Snapshot()
			shape := classify.ShapeOf(requestcontext.Body(ctx))
			rec.Record(ctx, recorder.Entry{
				Method:         r.Method,
				Path:           r.URL.Path,
				Status:         m.Code,
				Duration:       m.Duration,
				Classification: classify.Classify(r.Method, r.URL.Path, shape),
				PrincipalID:    principalID,
				Tag:            tag,
				Justification:  justification,
			})
		})
	}
}
