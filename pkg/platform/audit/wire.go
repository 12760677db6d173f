package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "medgate/pkg/domain"
)

// Wire payloads for record sinks that serialize (Kafka). Field names are the
// stable contract with consumers.

type auditPayload struct {
	ID                    string   `json:"id"`
	Timestamp             string   `json:"timestamp"`
	PrincipalID           string   `json:"principal_id,omitempty"`
	Action                string   `json:"action_type"`
	ResourceType          string   `json:"resource_type"`
	ResourceID            string   `json:"resource_id,omitempty"`
	ContainsPHI           bool     `json:"contains_phi"`
	PHIElements           []string `json:"phi_elements,omitempty"`
	BusinessJustification string   `json:"business_justification"`
	SourceIP              string   `json:"source_ip"`
	UserAgent             string   `json:"user_agent"`
	RequestID             string   `json:"request_id,omitempty"`
	Method                string   `json:"method"`
	Path                  string   `json:"path"`
	Status                int      `json:"status"`
	DurationMS            int64    `json:"duration_ms"`
	Tag                   string   `json:"tag,omitempty"`
}

type phiAccessPayload struct {
	ID               string   `json:"id"`
	Timestamp        string   `json:"timestamp"`
	PrincipalID      string   `json:"principal_id,omitempty"`
	SubjectMemberID  string   `json:"subject_member_id,omitempty"`
	PHIType          string   `json:"phi_type"`
	PHIElements      []string `json:"phi_elements"`
	AccessReason     string   `json:"access_reason"`
	AccessMethod     string   `json:"access_method"`
	MinimumNecessary bool     `json:"minimum_necessary"`
	RequestID        string   `json:"request_id,omitempty"`
}

type systemErrorPayload struct {
	ID              string         `json:"id"`
	Timestamp       string         `json:"timestamp"`
	ErrorType       string         `json:"error_type"`
	Severity        string         `json:"severity"`
	Code            string         `json:"code"`
	Status          int            `json:"status"`
	Message         string         `json:"message"`
	Component       string         `json:"component"`
	PrincipalID     string         `json:"principal_id,omitempty"`
	RequestID       string         `json:"request_id,omitempty"`
	RequestSnapshot map[string]any `json:"request_snapshot,omitempty"`
}

// EncodeAudit serializes an audit record.
func EncodeAudit(r AuditRecord) ([]byte, error) {
	return json.Marshal(auditPayload{
		ID:                    r.ID.String(),
		Timestamp:             r.Timestamp.UTC().Format(time.RFC3339Nano),
		PrincipalID:           identityString(r.PrincipalID),
		Action:                string(r.Action),
		ResourceType:          string(r.ResourceType),
		ResourceID:            r.ResourceID,
		ContainsPHI:           r.ContainsPHI,
		PHIElements:           elementsToStrings(r.PHIElements),
		BusinessJustification: r.BusinessJustification,
		SourceIP:              r.SourceIP,
		UserAgent:             r.UserAgent,
		RequestID:             r.RequestID,
		Method:                r.Method,
		Path:                  r.Path,
		Status:                r.Status,
		DurationMS:            r.Duration.Milliseconds(),
		Tag:                   r.Tag,
	})
}

// DecodeAudit parses an audit record.
func DecodeAudit(data []byte) (AuditRecord, error) {
	var p auditPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return AuditRecord{}, fmt.Errorf("decode audit record: %w", err)
	}
	recordID, ts, principalID, err := decodeCommon(p.ID, p.Timestamp, p.PrincipalID)
	if err != nil {
		return AuditRecord{}, fmt.Errorf("decode audit record: %w", err)
	}
	return AuditRecord{
		ID:                    recordID,
		Timestamp:             ts,
		PrincipalID:           principalID,
		Action:                ActionType(p.Action),
		ResourceType:          ResourceType(p.ResourceType),
		ResourceID:            p.ResourceID,
		ContainsPHI:           p.ContainsPHI,
		PHIElements:           stringsToElements(p.PHIElements),
		BusinessJustification: p.BusinessJustification,
		SourceIP:              p.SourceIP,
		UserAgent:             p.UserAgent,
		RequestID:             p.RequestID,
		Method:                p.Method,
		Path:                  p.Path,
		Status:                p.Status,
		Duration:              time.Duration(p.DurationMS) * time.Millisecond,
		Tag:                   p.Tag,
	}, nil
}

// EncodePHIAccess serializes a PHI access record.
func EncodePHIAccess(r PHIAccessRecord) ([]byte, error) {
	return json.Marshal(phiAccessPayload{
		ID:               r.ID.String(),
		Timestamp:        r.Timestamp.UTC().Format(time.RFC3339Nano),
		PrincipalID:      identityString(r.PrincipalID),
		SubjectMemberID:  r.SubjectMemberID,
		PHIType:          string(r.PHIType),
		PHIElements:      elementsToStrings(r.PHIElements),
		AccessReason:     r.AccessReason,
		AccessMethod:     string(r.AccessMethod),
		MinimumNecessary: r.MinimumNecessary,
		RequestID:        r.RequestID,
	})
}

// DecodePHIAccess parses a PHI access record.
func DecodePHIAccess(data []byte) (PHIAccessRecord, error) {
	var p phiAccessPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return PHIAccessRecord{}, fmt.Errorf("decode phi access record: %w", err)
	}
	recordID, ts, principalID, err := decodeCommon(p.ID, p.Timestamp, p.PrincipalID)
	if err != nil {
		return PHIAccessRecord{}, fmt.Errorf("decode phi access record: %w", err)
	}
	return PHIAccessRecord{
		ID:               recordID,
		Timestamp:        ts,
		PrincipalID:      principalID,
		SubjectMemberID:  p.SubjectMemberID,
		PHIType:          ResourceType(p.PHIType),
		PHIElements:      stringsToElements(p.PHIElements),
		AccessReason:     p.AccessReason,
		AccessMethod:     AccessMethod(p.AccessMethod),
		MinimumNecessary: p.MinimumNecessary,
		RequestID:        p.RequestID,
	}, nil
}

// EncodeSystemError serializes a system error record.
func EncodeSystemError(r SystemErrorRecord) ([]byte, error) {
	return json.Marshal(systemErrorPayload{
		ID:              r.ID.String(),
		Timestamp:       r.Timestamp.UTC().Format(time.RFC3339Nano),
		ErrorType:       r.ErrorType,
		Severity:        string(r.Severity),
		Code:            r.Code,
		Status:          r.Status,
		Message:         r.Message,
		Component:       r.Component,
		PrincipalID:     identityString(r.PrincipalID),
		RequestID:       r.RequestID,
		RequestSnapshot: r.RequestSnapshot,
	})
}

// DecodeSystemError parses a system error record.
func DecodeSystemError(data []byte) (SystemErrorRecord, error) {
	var p systemErrorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return SystemErrorRecord{}, fmt.Errorf("decode system error record: %w", err)
	}
	recordID, ts, principalID, err := decodeCommon(p.ID, p.Timestamp, p.PrincipalID)
	if err != nil {
		return SystemErrorRecord{}, fmt.Errorf("decode system error record: %w", err)
	}
	return SystemErrorRecord{
		ID:              recordID,
		Timestamp:       ts,
		ErrorType:       p.ErrorType,
		Severity:        Severity(p.Severity),
		Code:            p.Code,
		Status:          p.Status,
		Message:         p.Message,
		Component:       p.Component,
		PrincipalID:     principalID,
		RequestID:       p.RequestID,
		RequestSnapshot: p.RequestSnapshot,
	}, nil
}

func decodeCommon(rawID, rawTS, rawPrincipal string) (id.RecordID, time.Time, id.IdentityID, error) {
	recordID, err := id.ParseRecordID(rawID)
	if err != nil {
		return id.RecordID{}, time.Time{}, id.IdentityID{}, err
	}
	ts, err := time.Parse(time.RFC3339Nano, rawTS)
	if err != nil {
		return id.RecordID{}, time.Time{}, id.IdentityID{}, fmt.Errorf("parse timestamp: %w", err)
	}
	var principalID id.IdentityID
	if rawPrincipal != "" {
		u, err := uuid.Parse(rawPrincipal)
		if err != nil {
			return id.RecordID{}, time.Time{}, id.IdentityID{}, fmt.Errorf("parse principal id: %w", err)
		}
		principalID = id.IdentityID(u)
	}
	return recordID, ts, principalID, nil
}

func identityString(identityID id.IdentityID) string {
	if identityID.IsNil() {
		return ""
	}
	return identityID.String()
}

func elementsToStrings(elements []PHIElement) []string {
	if len(elements) == 0 {
		return nil
	}
	out := make([]string, len(elements))
	for i, e := range elements {
		out[i] = string(e)
	}
	return out
}

func stringsToElements(values []string) []PHIElement {
	if len(values) == 0 {
		return nil
	}
	out := make([]PHIElement, len(values))
	for i, v := range values {
		out[i] = PHIElement(v)
	}
	return out
}
