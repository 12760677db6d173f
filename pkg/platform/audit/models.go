// Package audit defines the append-only records written by the request
// pipeline and the Store contract every sink satisfies.
package audit

import (
	"context"
	"time"

	id "medgate/pkg/domain"
)

// ActionType is the audited operation.
type ActionType string

const (
	ActionSelect ActionType = "SELECT"
	ActionInsert ActionType = "INSERT"
	ActionUpdate ActionType = "UPDATE"
	ActionDelete ActionType = "DELETE"
	ActionLogin  ActionType = "LOGIN"
	ActionLogout ActionType = "LOGOUT"
	ActionAccess ActionType = "ACCESS"
)

// IsMutation reports whether the action changes state or session.
func (a ActionType) IsMutation() bool {
	switch a {
	case ActionInsert, ActionUpdate, ActionDelete, ActionLogin, ActionLogout:
		return true
	}
	return false
}

// ResourceType is the entity family a request touches.
type ResourceType string

const (
	ResourceMember   ResourceType = "MEMBER"
	ResourceClaim    ResourceType = "CLAIM"
	ResourceProvider ResourceType = "PROVIDER"
	ResourceUser     ResourceType = "USER"
	ResourceAdmin    ResourceType = "ADMIN"
	ResourceUnknown  ResourceType = "UNKNOWN"
)

// PHIElement names a category of protected health information.
type PHIElement string

const (
	PHIContact        PHIElement = "CONTACT"
	PHIDemographic    PHIElement = "DEMOGRAPHIC"
	PHIFinancial      PHIElement = "FINANCIAL"
	PHIIdentification PHIElement = "IDENTIFICATION"
	PHIMedical        PHIElement = "MEDICAL"
	PHISSN            PHIElement = "SSN"
)

// AccessMethod is how the caller reached the data.
type AccessMethod string

const (
	AccessWebBrowser AccessMethod = "WEB_BROWSER"
	AccessMobileApp  AccessMethod = "MOBILE_APP"
	AccessAPIClient  AccessMethod = "API_CLIENT"
)

// Severity ranks system errors.
type Severity string

const (
	SeverityLow    Severity = "LOW"
	SeverityMedium Severity = "MEDIUM"
	SeverityHigh   Severity = "HIGH"
)

// Tags recorded on audit entries for decisions made before the handler ran.
const (
	TagPermissionDenied = "PERMISSION_DENIED"
	TagRoleAccessDenied = "ROLE_ACCESS_DENIED"
	TagRateLimited      = "RATE_LIMITED"
	TagAuthFailed       = "AUTH_FAILED"
	TagAccountLocked    = "ACCOUNT_LOCKED"
)

// AuditRecord is one audited request.
type AuditRecord struct {
	ID                    id.RecordID
	Timestamp             time.Time
	PrincipalID           id.IdentityID
	Action                ActionType
	ResourceType          ResourceType
	ResourceID            string
	ContainsPHI           bool
	PHIElements           []PHIElement
	BusinessJustification string
	SourceIP              string
	UserAgent             string
	RequestID             string
	Method                string
	Path                  string
	Status                int
	Duration              time.Duration
	Tag                   string
}

// PHIAccessRecord is written alongside an AuditRecord whenever PHI is touched.
// The two are correlated by request ID, principal and timestamp only.
type PHIAccessRecord struct {
	ID               id.RecordID
	Timestamp        time.Time
	PrincipalID      id.IdentityID
	SubjectMemberID  string
	PHIType          ResourceType
	PHIElements      []PHIElement
	AccessReason     string
	AccessMethod     AccessMethod
	MinimumNecessary bool
	RequestID        string
}

// SystemErrorRecord is one classified handler failure. RequestSnapshot holds
// only sanitized values.
type SystemErrorRecord struct {
	ID              id.RecordID
	Timestamp       time.Time
	ErrorType       string
	Severity        Severity
	Code            string
	Status          int
	Message         string
	Component       string
	PrincipalID     id.IdentityID
	RequestID       string
	RequestSnapshot map[string]any
}

// Store persists pipeline records. Implementations append only.
type Store interface {
	AppendAudit(ctx context.Context, record AuditRecord) error
	AppendPHIAccess(ctx context.Context, record PHIAccessRecord) error
	AppendError(ctx context.Context, record SystemErrorRecord) error
}
