// Package publisher schedules record persistence off the request path.
package publisher

import (
	"context"

	audit "medgate/pkg/platform/audit"
)

// Task kinds reported to the Observer.
const (
	KindAudit     = "audit"
	KindPHIAccess = "phi_access"
	KindError     = "system_error"
)

// Publisher writes records to a store through a Dispatcher. Every method
// returns immediately; failures surface only in logs and metrics.
type Publisher struct {
	store      audit.Store
	dispatcher *Dispatcher
}

// NewPublisher binds store to dispatcher.
func NewPublisher(store audit.Store, dispatcher *Dispatcher) *Publisher {
	return &Publisher{store: store, dispatcher: dispatcher}
}

// PublishAudit schedules an audit record write.
func (p *Publisher) PublishAudit(ctx context.Context, record audit.AuditRecord) bool {
	return p.dispatcher.Submit(ctx, KindAudit, func(ctx context.Context) error {
		return p.store.AppendAudit(ctx, record)
	})
}

// PublishPHIAccess schedules a PHI access record write, independent of any
// audit record for the same request.
func (p *Publisher) PublishPHIAccess(ctx context.Context, record audit.PHIAccessRecord) bool {
	return p.dispatcher.Submit(ctx, KindPHIAccess, func(ctx context.Context) error {
		return p.store.AppendPHIAccess(ctx, record)
	})
}

// PublishError schedules a system error record write.
func (p *Publisher) PublishError(ctx context.Context, record audit.SystemErrorRecord) bool {
	return p.dispatcher.Submit(ctx, KindError, func(ctx context.Context) error {
		return p.store.AppendError(ctx, record)
	})
}

// Close drains pending writes.
func (p *Publisher) Close(ctx context.Context) error {
	return p.dispatcher.Close(ctx)
}
