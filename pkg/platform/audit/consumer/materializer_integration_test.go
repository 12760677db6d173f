//go:build integration

package consumer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	id "medgate/pkg/domain"
	audit "medgate/pkg/platform/audit"
	"medgate/pkg/platform/audit/store/kafka"
	"medgate/pkg/platform/audit/store/memory"
	"medgate/pkg/testutil/containers"
)

func TestSinkToMaterializerIntegration(t *testing.T) {
	broker := containers.NewKafkaContainer(t)
	topics := kafka.DefaultTopics()
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	producer := broker.Client(t, kgo.AllowAutoTopicCreation())
	sink := kafka.New(producer, topics)

	record := audit.AuditRecord{
		ID:           id.NewRecordID(),
		Timestamp:    time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
		Action:       audit.ActionLogin,
		ResourceType: audit.ResourceUser,
		RequestID:    "req-kafka-1",
		Method:       "POST",
		Path:         "/api/auth/login",
		Status:       200,
	}
	require.NoError(t, sink.AppendAudit(ctx, record))
	require.NoError(t, sink.AppendError(ctx, audit.SystemErrorRecord{
		ID:        id.NewRecordID(),
		ErrorType: "SYSTEM_ERROR",
		Severity:  audit.SeverityHigh,
		Status:    500,
		Component: "http",
		RequestID: "req-kafka-2",
	}))

	consumerClient := broker.Client(t,
		kgo.ConsumerGroup("medgate-materializer-test"),
		kgo.ConsumeTopics(topics.All()...),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		kgo.DisableAutoCommit(),
	)
	store := memory.NewInMemoryStore()
	m := New(store, topics, slog.New(slog.NewTextHandler(io.Discard, nil)))

	runCtx, stop := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- m.Run(runCtx, consumerClient) }()

	require.Eventually(t, func() bool {
		audits, _ := store.ListAudit(ctx)
		errs, _ := store.ListErrors(ctx)
		return len(audits) == 1 && len(errs) == 1
	}, 45*time.Second, 200*time.Millisecond)

	stop()
	require.NoError(t, <-done)

	audits, err := store.ListAudit(ctx)
	require.NoError(t, err)
	assert.Equal(t, record.ID, audits[0].ID)
	assert.Equal(t, audit.ActionLogin, audits[0].Action)
}
