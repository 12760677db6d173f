// Package recorder decides which requests are audited and builds the audit
// and PHI access records written after the response.
package recorder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"medgate/internal/audit/classify"
	id "medgate/pkg/domain"
	audit "medgate/pkg/platform/audit"
	"medgate/pkg/platform/middleware/metadata"
	"medgate/pkg/platform/middleware/request"
	"medgate/pkg/platform/middleware/requesttime"
)

// Publisher schedules record writes off the request path.
type Publisher interface {
	PublishAudit(ctx context.Context, record audit.AuditRecord) bool
	PublishPHIAccess(ctx context.Context, record audit.PHIAccessRecord) bool
}

// Entry is what the audit middleware knows once the response is written.
type Entry struct {
	Method         string
	Path           string
	Status         int
	Duration       time.Duration
	Classification classify.Classification
	PrincipalID    id.IdentityID
	Tag            string
	Justification  string
}

// Recorder turns completed requests into audit and PHI access records.
type Recorder struct {
	publisher Publisher
	logger    *slog.Logger
	metrics   *Metrics
}

// Option configures a Recorder.
type Option func(*Recorder)

func WithLogger(logger *slog.Logger) Option {
	return func(r *Recorder) {
		r.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Recorder) {
		r.metrics = m
	}
}

// New creates a Recorder.
func New(publisher Publisher, opts ...Option) *Recorder {
	r := &Recorder{
		publisher: publisher,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ShouldAudit gates auditing. Unauthenticated reads of unrecognized,
// non-sensitive resources are not audited.
func ShouldAudit(c classify.Classification, path string, principalID id.IdentityID) bool {
	authenticated := !principalID.IsNil()
	if authenticated && c.ResourceType != audit.ResourceUnknown {
		return true
	}
	if hasSegment(path, "auth", "login", "logout") || hasSegment(path, "admin") {
		return true
	}
	if c.Action.IsMutation() {
		return true
	}
	return classify.IsPHIResource(c.ResourceType)
}

// Record writes the audit record and, when PHI is involved, the PHI access
// record. Requests failing ShouldAudit are skipped unless an inner layer
// tagged a denial. It never returns an error.
func (r *Recorder) Record(ctx context.Context, e Entry) {
	if e.Tag == "" && !ShouldAudit(e.Classification, e.Path, e.PrincipalID) {
		r.metrics.IncrementSkipped()
		return
	}
	r.RecordAudit(ctx, e)
	if e.Classification.ContainsPHI {
		r.RecordPHIAccess(ctx, e)
	}
}

// RecordAudit schedules the audit record for e.
func (r *Recorder) RecordAudit(ctx context.Context, e Entry) {
	c := e.Classification
	record := audit.AuditRecord{
		ID:                    id.NewRecordID(),
		Timestamp:             requesttime.Now(ctx),
		PrincipalID:           e.PrincipalID,
		Action:                c.Action,
		ResourceType:          c.ResourceType,
		ResourceID:            c.ResourceID,
		ContainsPHI:           c.ContainsPHI,
		PHIElements:           c.PHIElements,
		BusinessJustification: Justification(e),
		SourceIP:              metadata.GetClientIP(ctx),
		UserAgent:             metadata.GetUserAgent(ctx),
		RequestID:             request.GetRequestID(ctx),
		Method:                e.Method,
		Path:                  e.Path,
		Status:                e.Status,
		Duration:              e.Duration,
		Tag:                   e.Tag,
	}
	if !r.publisher.PublishAudit(ctx, record) {
		r.metrics.IncrementRejected(kindAudit)
		r.logger.WarnContext(ctx, "audit record not scheduled",
			"request_id", record.RequestID,
			"action", string(record.Action),
			"resource_type", string(record.ResourceType),
		)
		return
	}
	r.metrics.IncrementAudited(kindAudit)
}

// RecordPHIAccess schedules the PHI access record for e. It is independent of
// RecordAudit; either may succeed without the other.
func (r *Recorder) RecordPHIAccess(ctx context.Context, e Entry) {
	c := e.Classification
	record := audit.PHIAccessRecord{
		ID:               id.NewRecordID(),
		Timestamp:        requesttime.Now(ctx),
		PrincipalID:      e.PrincipalID,
		PHIType:          c.ResourceType,
		PHIElements:      c.PHIElements,
		AccessReason:     Justification(e),
		AccessMethod:     AccessMethodFor(metadata.GetUserAgent(ctx)),
		MinimumNecessary: true,
		RequestID:        request.GetRequestID(ctx),
	}
	if c.ResourceType == audit.ResourceMember {
		record.SubjectMemberID = c.ResourceID
	}
	if !r.publisher.PublishPHIAccess(ctx, record) {
		r.metrics.IncrementRejected(kindPHIAccess)
		r.logger.WarnContext(ctx, "phi access record not scheduled",
			"request_id", record.RequestID,
			"phi_type", string(record.PHIType),
		)
		return
	}
	r.metrics.IncrementAudited(kindPHIAccess)
}

// Justification returns the explicit justification or "<METHOD> request to <PATH>".
func Justification(e Entry) string {
	if j := strings.TrimSpace(e.Justification); j != "" {
		return j
	}
	return fmt.Sprintf("%s request to %s", strings.ToUpper(e.Method), e.Path)
}

// AccessMethodFor derives the access method from a User-Agent header.
func AccessMethodFor(userAgent string) audit.AccessMethod {
	if strings.TrimSpace(userAgent) == "" {
		return audit.AccessAPIClient
	}
	ua := useragent.New(userAgent)
	switch {
	case ua.Bot():
		return audit.AccessAPIClient
	case ua.Mobile():
		return audit.AccessMobileApp
	case ua.Mozilla() != "":
		return audit.AccessWebBrowser
	default:
		return audit.AccessAPIClient
	}
}

func hasSegment(path string, names ...string) bool {
	for _, seg := range strings.Split(strings.ToLower(path), "/") {
		for _, n := range names {
			if seg == n {
				return true
			}
		}
	}
	return false
}
