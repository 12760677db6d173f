// Package consumer materializes records from Kafka topics into a queryable
// store. Delivery is at-least-once; stores must ignore duplicate record IDs.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "medgate/pkg/platform/audit"
	"medgate/pkg/platform/audit/store/kafka"
)

// Fetcher is the subset of *kgo.Client the materializer uses.
type Fetcher interface {
	PollFetches(ctx context.Context) kgo.Fetches
	CommitUncommittedOffsets(ctx context.Context) error
}

// Materializer routes each topic to the matching Store append.
type Materializer struct {
	store  audit.Store
	topics kafka.Topics
	logger *slog.Logger
}

// New creates a materializer writing into store.
func New(store audit.Store, topics kafka.Topics, logger *slog.Logger) *Materializer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Materializer{store: store, topics: topics, logger: logger}
}

// Handle decodes and stores one message. Undecodable messages are logged and
// skipped so one bad payload cannot wedge the partition.
func (m *Materializer) Handle(ctx context.Context, topic string, value []byte) error {
	var err error
	switch topic {
	case m.topics.Audit:
		var r audit.AuditRecord
		if r, err = audit.DecodeAudit(value); err == nil {
			return m.store.AppendAudit(ctx, r)
		}
	case m.topics.PHIAccess:
		var r audit.PHIAccessRecord
		if r, err = audit.DecodePHIAccess(value); err == nil {
			return m.store.AppendPHIAccess(ctx, r)
		}
	case m.topics.SystemErrors:
		var r audit.SystemErrorRecord
		if r, err = audit.DecodeSystemError(value); err == nil {
			return m.store.AppendError(ctx, r)
		}
	default:
		m.logger.WarnContext(ctx, "no handler for topic, skipping message", "topic", topic)
		return nil
	}
	m.logger.WarnContext(ctx, "skipping undecodable record", "topic", topic, "error", err)
	return nil
}

// Run polls until ctx is cancelled. A record whose store write still fails
// after maxAttempts is logged and skipped; offsets are committed per fetch.
func (m *Materializer) Run(ctx context.Context, fetcher Fetcher) error {
	for {
		fetches := fetcher.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			return nil
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			if !errors.Is(err, context.Canceled) {
				m.logger.ErrorContext(ctx, "fetch failed", "topic", topic, "partition", partition, "error", err)
			}
		})

		fetches.EachRecord(func(r *kgo.Record) {
			if err := m.handleWithRetry(ctx, r); err != nil {
				m.logger.ErrorContext(ctx, "failed to materialize record",
					"topic", r.Topic, "partition", r.Partition, "offset", r.Offset, "error", err)
			}
		})
		if err := fetcher.CommitUncommittedOffsets(ctx); err != nil && ctx.Err() == nil {
			m.logger.WarnContext(ctx, "offset commit failed", "error", err)
		}
	}
}

const maxAttempts = 3

func (m *Materializer) handleWithRetry(ctx context.Context, r *kgo.Record) error {
	var err error
	for attempt := range maxAttempts {
		if err = m.Handle(ctx, r.Topic, r.Value); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 100 * time.Millisecond):
		}
	}
	return err
}
