package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "medgate/pkg/domain"
	audit "medgate/pkg/platform/audit"
	txcontext "medgate/pkg/platform/tx"
)

// Store implements audit.Store on the audit_log, phi_access_log and
// system_error_log tables. Every insert is idempotent on the record ID so a
// redelivered record from the Kafka materializer is a no-op.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// AppendAudit inserts one audit record.
func (s *Store) AppendAudit(ctx context.Context, r audit.AuditRecord) error {
	query := `
		INSERT INTO audit_log (
			id, timestamp, principal_id, action_type, resource_type, resource_id,
			contains_phi, phi_elements, business_justification, source_ip, user_agent,
			request_id, method, path, status, duration_ms, tag
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		r.Timestamp,
		nullableIdentity(r.PrincipalID),
		string(r.Action),
		string(r.ResourceType),
		nullableString(r.ResourceID),
		r.ContainsPHI,
		pq.Array(elementStrings(r.PHIElements)),
		r.BusinessJustification,
		r.SourceIP,
		r.UserAgent,
		r.RequestID,
		r.Method,
		r.Path,
		r.Status,
		r.Duration.Milliseconds(),
		nullableString(r.Tag),
	)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

// AppendPHIAccess inserts one PHI access record.
func (s *Store) AppendPHIAccess(ctx context.Context, r audit.PHIAccessRecord) error {
	query := `
		INSERT INTO phi_access_log (
			id, timestamp, principal_id, subject_member_id, phi_type, phi_elements,
			access_reason, access_method, minimum_necessary, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		r.Timestamp,
		nullableIdentity(r.PrincipalID),
		nullableString(r.SubjectMemberID),
		string(r.PHIType),
		pq.Array(elementStrings(r.PHIElements)),
		r.AccessReason,
		string(r.AccessMethod),
		r.MinimumNecessary,
		r.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert phi access record: %w", err)
	}
	return nil
}

// AppendError inserts one system error record.
func (s *Store) AppendError(ctx context.Context, r audit.SystemErrorRecord) error {
	var snapshot []byte
	if len(r.RequestSnapshot) > 0 {
		var err error
		if snapshot, err = json.Marshal(r.RequestSnapshot); err != nil {
			return fmt.Errorf("marshal request snapshot: %w", err)
		}
	}

	query := `
		INSERT INTO system_error_log (
			id, timestamp, error_type, severity, code, status, message,
			component, principal_id, request_id, request_snapshot
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		uuid.UUID(r.ID),
		r.Timestamp,
		r.ErrorType,
		string(r.Severity),
		r.Code,
		r.Status,
		r.Message,
		r.Component,
		nullableIdentity(r.PrincipalID),
		r.RequestID,
		snapshot,
	)
	if err != nil {
		return fmt.Errorf("insert system error record: %w", err)
	}
	return nil
}

func nullableIdentity(identityID id.IdentityID) *uuid.UUID {
	if identityID.IsNil() {
		return nil
	}
	u := uuid.UUID(identityID)
	return &u
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func elementStrings(elements []audit.PHIElement) []string {
	out := make([]string, len(elements))
	for i, e := range elements {
		out[i] = string(e)
	}
	return out
}
