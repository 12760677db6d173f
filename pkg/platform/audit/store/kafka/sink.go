// Package kafka publishes pipeline records to Kafka topics with franz-go.
package kafka

import (
	"context"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "medgate/pkg/platform/audit"
)

// Topics names the destination of each record kind.
type Topics struct {
	Audit        string `koanf:"audit"`
	PHIAccess    string `koanf:"phi_access"`
	SystemErrors string `koanf:"system_errors"`
}

// DefaultTopics returns the standard topic names.
func DefaultTopics() Topics {
	return Topics{
		Audit:        "medgate.audit",
		PHIAccess:    "medgate.phi_access",
		SystemErrors: "medgate.system_errors",
	}
}

// All lists the configured topics.
func (t Topics) All() []string {
	return []string{t.Audit, t.PHIAccess, t.SystemErrors}
}

// Producer is the subset of *kgo.Client the sink uses.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink implements audit.Store by producing one JSON record per append. Records
// are keyed by request ID so an audit entry and its PHI access entry land on
// the same partition.
type Sink struct {
	producer Producer
	topics   Topics
}

// New creates a Kafka record sink.
func New(producer Producer, topics Topics) *Sink {
	return &Sink{producer: producer, topics: topics}
}

func (s *Sink) AppendAudit(ctx context.Context, r audit.AuditRecord) error {
	value, err := audit.EncodeAudit(r)
	if err != nil {
		return err
	}
	return s.produce(ctx, s.topics.Audit, partitionKey(r.RequestID, r.ID.String()), value)
}

func (s *Sink) AppendPHIAccess(ctx context.Context, r audit.PHIAccessRecord) error {
	value, err := audit.EncodePHIAccess(r)
	if err != nil {
		return err
	}
	return s.produce(ctx, s.topics.PHIAccess, partitionKey(r.RequestID, r.ID.String()), value)
}

func (s *Sink) AppendError(ctx context.Context, r audit.SystemErrorRecord) error {
	value, err := audit.EncodeSystemError(r)
	if err != nil {
		return err
	}
	return s.produce(ctx, s.topics.SystemErrors, partitionKey(r.RequestID, r.ID.String()), value)
}

func (s *Sink) produce(ctx context.Context, topic string, key, value []byte) error {
	record := &kgo.Record{Topic: topic, Key: key, Value: value}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", topic, err)
	}
	return nil
}

func partitionKey(requestID, fallback string) []byte {
	if requestID != "" {
		return []byte(requestID)
	}
	return []byte(fallback)
}
