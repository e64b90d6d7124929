package repositories

import (
	"context"

	"paybridge/internal/domain/event"
	"paybridge/internal/provider"
)

// DedupeStore is the single synchronization point of the webhook pipeline.
// Claim must be an atomic check-and-set: exactly one caller gets true per key.
type DedupeStore interface {
	Claim(ctx context.Context, key string) (bool, error)
	// Release undoes a claim whose hand-off failed so a redelivery can retry.
	Release(ctx context.Context, key string) error
}

// DeliveryRepository keeps the audit trail of inbound callbacks.
type DeliveryRepository interface {
	Save(ctx context.Context, d *event.Delivery) error
	ListForReview(ctx context.Context, limit int) ([]*event.Delivery, error)
}

// Ledger is the downstream collaborator that owns financial state.
// Apply is called at most once per dedupe key.
type Ledger interface {
	Apply(ctx context.Context, evt provider.NormalizedWebhookEvent) error
}

// LedgerFunc adapts a function to Ledger.
type LedgerFunc func(ctx context.Context, evt provider.NormalizedWebhookEvent) error

func (f LedgerFunc) Apply(ctx context.Context, evt provider.NormalizedWebhookEvent) error {
	return f(ctx, evt)
}
