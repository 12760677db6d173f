package audit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	id "medgate/pkg/domain"
	audit "medgate/pkg/platform/audit"
	"medgate/pkg/platform/audit/mocks"
	"medgate/pkg/platform/audit/store/memory"
)

func TestFanout(t *testing.T) {
	ctrl := gomock.NewController(t)
	failing := mocks.NewMockStore(ctrl)
	healthy := memory.NewInMemoryStore()
	store := audit.Fanout(failing, healthy)

	failing.EXPECT().AppendAudit(gomock.Any(), gomock.Any()).Return(errors.New("broker down"))

	err := store.AppendAudit(context.Background(), audit.AuditRecord{ID: id.NewRecordID()})
	require.Error(t, err)

	records, _ := healthy.ListAudit(context.Background())
	assert.Len(t, records, 1, "healthy store still receives the record")

	assert.Same(t, healthy, audit.Fanout(healthy))
}
