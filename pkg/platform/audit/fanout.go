package audit

import (
	"context"
	"errors"
)

// Fanout writes every record to each store in order. A failing store does not
// stop the others; the errors are joined.
func Fanout(stores ...Store) Store {
	if len(stores) == 1 {
		return stores[0]
	}
	return fanout(stores)
}

type fanout []Store

func (f fanout) AppendAudit(ctx context.Context, record AuditRecord) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.AppendAudit(ctx, record))
	}
	return errors.Join(errs...)
}

func (f fanout) AppendPHIAccess(ctx context.Context, record PHIAccessRecord) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.AppendPHIAccess(ctx, record))
	}
	return errors.Join(errs...)
}

func (f fanout) AppendError(ctx context.Context, record SystemErrorRecord) error {
	var errs []error
	for _, s := range f {
		errs = append(errs, s.AppendError(ctx, record))
	}
	return errors.Join(errs...)
}
