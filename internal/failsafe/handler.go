package failsafe

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	id "medgate/pkg/domain"
	audit "medgate/pkg/platform/audit"
	"medgate/pkg/platform/middleware/request"
	"medgate/pkg/platform/middleware/requesttime"
	"medgate/pkg/requestcontext"
)

// DefaultComponent names errors raised by HTTP handlers.
const DefaultComponent = "http"

const maxRecordedMessage = 2048

// ErrorPublisher schedules a system error record write.
type ErrorPublisher interface {
	PublishError(ctx context.Context, record audit.SystemErrorRecord) bool
}

// HandlerFunc is an HTTP handler that reports failure by returning an error.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ErrorBody is the inner object of every classified error response.
type ErrorBody struct {
	Status    int            `json:"status"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	RequestID string         `json:"requestId,omitempty"`
	Type      string         `json:"type,omitempty"`
	Details   string         `json:"details,omitempty"`
	Stack     string         `json:"stack,omitempty"`
	Request   map[string]any `json:"request,omitempty"`
}

// ErrorResponse is the classified error envelope.
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Handler classifies, records and answers handler errors.
type Handler struct {
	publisher  ErrorPublisher
	logger     *slog.Logger
	metrics    *Metrics
	tracer     trace.Tracer
	production bool
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		h.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(h *Handler) {
		h.metrics = m
	}
}

// WithProduction hides 5xx messages and omits debugging details.
func WithProduction(production bool) Option {
	return func(h *Handler) {
		h.production = production
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(h *Handler) {
		if tracer != nil {
			h.tracer = tracer
		}
	}
}

func New(publisher ErrorPublisher, opts ...Option) *Handler {
	h := &Handler{
		publisher:  publisher,
		logger:     slog.Default(),
		tracer:     otel.Tracer("medgate/failsafe"),
		production: true,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle answers r with the classified form of err and schedules a
// SystemErrorRecord. It never panics and never fails because persistence did.
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request, err error, component string) {
	h.handle(w, r, err, component, "")
}

// Wrap adapts fn into an http.Handler routed through Handle on error.
func (h *Handler) Wrap(component string, fn HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := fn(w, r); err != nil {
			h.Handle(w, r, err, component)
		}
	})
}

// Recovery converts panics below it into SYSTEM_ERROR responses.
// http.ErrAbortHandler is re-raised so net/http can abort the connection.
func (h *Handler) Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.handle(w, r, fmt.Errorf("panic: %v", rec), "recovery", string(debug.Stack()))
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, err error, component, stack string) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("failsafe handler panicked", "panic", fmt.Sprint(rec))
			writeFallback(w)
		}
	}()

	ctx, span := h.tracer.Start(r.Context(), "failsafe.handle")
	defer span.End()

	if component == "" {
		component = DefaultComponent
	}
	c := Classify(err)
	now := requesttime.Now(ctx)
	requestID := request.GetRequestID(ctx)
	severity := SeverityFor(c.Status)

	span.SetAttributes(
		attribute.String("error.type", c.Type),
		attribute.Int("http.status_code", c.Status),
	)
	if c.Status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, c.Type)
	}
	h.metrics.ObserveClassified(c.Type, severity)

	snapshot := Snapshot(r.WithContext(ctx))
	h.log(ctx, c, err, component, requestID)
	h.persist(ctx, audit.SystemErrorRecord{
		ID:              id.NewRecordID(),
		Timestamp:       now,
		ErrorType:       c.Type,
		Severity:        severity,
		Code:            string(c.Code),
		Status:          c.Status,
		Message:         truncate(errorText(err), maxRecordedMessage),
		Component:       component,
		PrincipalID:     requestcontext.IdentityID(ctx),
		RequestID:       requestID,
		RequestSnapshot: snapshot,
	})

	body := ErrorBody{
		Status:    c.Status,
		Message:   c.Message,
		Timestamp: now,
		RequestID: requestID,
	}
	if !h.production {
		body.Type = c.Type
		body.Details = errorText(err)
		body.Stack = stack
		body.Request = snapshot
	} else if c.Status >= http.StatusInternalServerError {
		body.Message = msgInternal
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(c.Status)
	if encErr := json.NewEncoder(w).Encode(ErrorResponse{Error: body}); encErr != nil {
		h.logger.WarnContext(ctx, "failed to write error response", "error", encErr, "request_id", requestID)
	}
}

// persist is guarded: a publisher panic or refusal only logs.
func (h *Handler) persist(ctx context.Context, record audit.SystemErrorRecord) {
	defer func() {
		if rec := recover(); rec != nil {
			h.metrics.IncrementPersistFailures()
			h.logger.WarnContext(ctx, "system error record publisher panicked",
				"panic", fmt.Sprint(rec),
				"request_id", record.RequestID,
			)
		}
	}()
	if h.publisher == nil || !h.publisher.PublishError(ctx, record) {
		h.metrics.IncrementPersistFailures()
		h.logger.WarnContext(ctx, "system error record not scheduled",
			"error_type", record.ErrorType,
			"request_id", record.RequestID,
		)
	}
}

func (h *Handler) log(ctx context.Context, c Classification, err error, component, requestID string) {
	attrs := []any{
		"error_type", c.Type,
		"status", c.Status,
		"component", component,
		"error", errorText(err),
		"request_id", requestID,
	}
	if c.Status >= http.StatusInternalServerError {
		h.logger.ErrorContext(ctx, "request failed", attrs...)
		return
	}
	h.logger.WarnContext(ctx, "request rejected", attrs...)
}

func writeFallback(w http.ResponseWriter) {
	defer func() { _ = recover() }()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	_, _ = w.Write([]byte(`{"error":{"status":500,"message":"Internal server error"}}`))
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
