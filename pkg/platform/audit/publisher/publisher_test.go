//go:generate mockgen -source=../models.go -destination=../mocks/store_mock.go -package=mocks Store
package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	id "medgate/pkg/domain"
	audit "medgate/pkg/platform/audit"
	"medgate/pkg/platform/audit/mocks"
	"medgate/pkg/platform/audit/store/memory"
	"medgate/pkg/requestcontext"
)

func TestPublisher_DrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, NewDispatcher(WithQueueSize(100), WithWorkers(2)))

	for range 10 {
		require.True(t, pub.PublishAudit(context.Background(), audit.AuditRecord{ID: id.NewRecordID()}))
	}
	require.True(t, pub.PublishPHIAccess(context.Background(), audit.PHIAccessRecord{ID: id.NewRecordID()}))
	require.True(t, pub.PublishError(context.Background(), audit.SystemErrorRecord{ID: id.NewRecordID()}))

	require.NoError(t, pub.Close(context.Background()))

	audits, _ := store.ListAudit(context.Background())
	assert.Len(t, audits, 10, "all records should be drained on close")
	phi, _ := store.ListPHIAccess(context.Background())
	assert.Len(t, phi, 1)
	errs, _ := store.ListErrors(context.Background())
	assert.Len(t, errs, 1)
}

func TestPublisher_StoreFailureIsContained(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockStore(ctrl)
	m := NewMetrics(prometheus.NewRegistry())
	pub := NewPublisher(store, NewDispatcher(WithObserver(m)))

	store.EXPECT().AppendAudit(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))
	store.EXPECT().AppendPHIAccess(gomock.Any(), gomock.Any()).Return(nil)

	assert.True(t, pub.PublishAudit(context.Background(), audit.AuditRecord{ID: id.NewRecordID()}))
	assert.True(t, pub.PublishPHIAccess(context.Background(), audit.PHIAccessRecord{ID: id.NewRecordID()}))
	require.NoError(t, pub.Close(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failed.WithLabelValues(KindAudit)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Written.WithLabelValues(KindPHIAccess)), "phi write is independent of the audit write")
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	d := NewDispatcher(WithQueueSize(1), WithWorkers(1), WithObserver(m))

	release := make(chan struct{})
	started := make(chan struct{})
	require.True(t, d.Submit(context.Background(), "block", func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	<-started

	assert.True(t, d.Submit(context.Background(), "queued", func(context.Context) error { return nil }))
	assert.False(t, d.Submit(context.Background(), "overflow", func(context.Context) error { return nil }))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Dropped.WithLabelValues("overflow")))

	close(release)
	require.NoError(t, d.Close(context.Background()))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Written.WithLabelValues("queued")))
}

func TestDispatcher_TaskOutlivesCancelledRequest(t *testing.T) {
	d := NewDispatcher()

	ctx, cancel := context.WithCancel(requestcontext.WithRequestID(context.Background(), "req-42"))
	var gotErr error
	var gotRequestID string
	var wg sync.WaitGroup
	wg.Add(1)
	require.True(t, d.Submit(ctx, "audit", func(ctx context.Context) error {
		defer wg.Done()
		gotErr = ctx.Err()
		gotRequestID = requestcontext.RequestID(ctx)
		return nil
	}))
	cancel()
	wg.Wait()
	require.NoError(t, d.Close(context.Background()))

	assert.NoError(t, gotErr)
	assert.Equal(t, "req-42", gotRequestID)
}

func TestDispatcher_TaskTimeout(t *testing.T) {
	d := NewDispatcher(WithTaskTimeout(20 * time.Millisecond))
	errCh := make(chan error, 1)
	require.True(t, d.Submit(context.Background(), "slow", func(ctx context.Context) error {
		<-ctx.Done()
		errCh <- ctx.Err()
		return ctx.Err()
	}))
	assert.ErrorIs(t, <-errCh, context.DeadlineExceeded)
	require.NoError(t, d.Close(context.Background()))
}

func TestDispatcher_PanicIsRecovered(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	d := NewDispatcher(WithWorkers(1), WithObserver(m))

	require.True(t, d.Submit(context.Background(), "boom", func(context.Context) error { panic("nil map") }))
	require.True(t, d.Submit(context.Background(), "after", func(context.Context) error { return nil }))
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Failed.WithLabelValues("boom")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Written.WithLabelValues("after")), "worker survives a panicking task")
}

func TestDispatcher_Close(t *testing.T) {
	d := NewDispatcher()
	require.NoError(t, d.Close(context.Background()))
	assert.ErrorIs(t, d.Close(context.Background()), ErrClosed)
	assert.False(t, d.Submit(context.Background(), "late", func(context.Context) error { return nil }))
}
