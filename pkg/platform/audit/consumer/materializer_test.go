package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "medgate/pkg/domain"
	audit "medgate/pkg/platform/audit"
	"medgate/pkg/platform/audit/store/kafka"
	"medgate/pkg/platform/audit/store/memory"
)

func TestMaterializerHandle(t *testing.T) {
	ctx := context.Background()
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	principal := id.IdentityID{7}

	store := memory.NewInMemoryStore()
	m := New(store, kafka.DefaultTopics(), nil)

	t.Run("routes each topic to its store append", func(t *testing.T) {
		auditValue, err := audit.EncodeAudit(audit.AuditRecord{
			ID: id.NewRecordID(), Timestamp: ts, PrincipalID: principal,
			Action: audit.ActionUpdate, ResourceType: audit.ResourceClaim, ResourceID: "99",
			ContainsPHI: true, PHIElements: []audit.PHIElement{audit.PHIFinancial, audit.PHIMedical},
			Duration: 42 * time.Millisecond,
		})
		require.NoError(t, err)
		phiValue, err := audit.EncodePHIAccess(audit.PHIAccessRecord{
			ID: id.NewRecordID(), Timestamp: ts, PrincipalID: principal, PHIType: audit.ResourceClaim,
			MinimumNecessary: true,
		})
		require.NoError(t, err)
		errValue, err := audit.EncodeSystemError(audit.SystemErrorRecord{
			ID: id.NewRecordID(), Timestamp: ts, Severity: audit.SeverityHigh, Status: 500,
			RequestSnapshot: map[string]any{"password": "[REDACTED]"},
		})
		require.NoError(t, err)

		require.NoError(t, m.Handle(ctx, "medgate.audit", auditValue))
		require.NoError(t, m.Handle(ctx, "medgate.phi_access", phiValue))
		require.NoError(t, m.Handle(ctx, "medgate.system_errors", errValue))

		audits, _ := store.ListAudit(ctx)
		require.Len(t, audits, 1)
		assert.Equal(t, principal, audits[0].PrincipalID)
		assert.Equal(t, "99", audits[0].ResourceID)
		assert.Equal(t, []audit.PHIElement{audit.PHIFinancial, audit.PHIMedical}, audits[0].PHIElements)
		assert.Equal(t, 42*time.Millisecond, audits[0].Duration)
		assert.True(t, audits[0].Timestamp.Equal(ts))

		phi, _ := store.ListPHIAccess(ctx)
		require.Len(t, phi, 1)
		assert.True(t, phi[0].MinimumNecessary)

		errs, _ := store.ListErrors(ctx)
		require.Len(t, errs, 1)
		assert.Equal(t, "[REDACTED]", errs[0].RequestSnapshot["password"])
	})

	t.Run("bad payloads and unknown topics are skipped", func(t *testing.T) {
		store.Clear()
		assert.NoError(t, m.Handle(ctx, "medgate.audit", []byte("{not json")))
		assert.NoError(t, m.Handle(ctx, "other.topic", []byte("{}")))
		audits, _ := store.ListAudit(ctx)
		assert.Empty(t, audits)
	})
}
