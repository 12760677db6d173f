package memory

import (
	"context"
	"sync"

	id "medgate/pkg/domain"
	audit "medgate/pkg/platform/audit"
)

// InMemoryStore keeps records in process, in append order.
type InMemoryStore struct {
	mu     sync.RWMutex
	audits []audit.AuditRecord
	phi    []audit.PHIAccessRecord
	errs   []audit.SystemErrorRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audits, s.phi, s.errs = nil, nil, nil
}

func (s *InMemoryStore) AppendAudit(_ context.Context, record audit.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.PHIElements = append([]audit.PHIElement(nil), record.PHIElements...)
	s.audits = append(s.audits, record)
	return nil
}

func (s *InMemoryStore) AppendPHIAccess(_ context.Context, record audit.PHIAccessRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record.PHIElements = append([]audit.PHIElement(nil), record.PHIElements...)
	s.phi = append(s.phi, record)
	return nil
}

func (s *InMemoryStore) AppendError(_ context.Context, record audit.SystemErrorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, record)
	return nil
}

func (s *InMemoryStore) ListAudit(_ context.Context) ([]audit.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.AuditRecord{}, s.audits...), nil
}

// ListAuditByPrincipal returns the audit trail of one identity.
func (s *InMemoryStore) ListAuditByPrincipal(_ context.Context, principalID id.IdentityID) ([]audit.AuditRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []audit.AuditRecord
	for _, r := range s.audits {
		if r.PrincipalID == principalID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *InMemoryStore) ListPHIAccess(_ context.Context) ([]audit.PHIAccessRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.PHIAccessRecord{}, s.phi...), nil
}

func (s *InMemoryStore) ListErrors(_ context.Context) ([]audit.SystemErrorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.SystemErrorRecord{}, s.errs...), nil
}
