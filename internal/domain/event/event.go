package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"paybridge/internal/provider"

	"github.com/google/uuid"
)

// Phase collapses event types that must be applied at most once together.
// A success and a failure for the same reference share a phase, so only the
// first terminal outcome reaches the ledger.
type Phase string

const (
	PhasePaymentCreated Phase = "PAYMENT_CREATED"
	PhasePaymentSettled Phase = "PAYMENT_SETTLED"
	PhaseRefundSettled  Phase = "REFUND_SETTLED"
)

// PhaseOf maps a canonical event type to its dedupe phase.
func PhaseOf(t provider.EventType) Phase {
	switch t {
	case provider.EventPaymentCreated:
		return PhasePaymentCreated
	case provider.EventRefundSuccess, provider.EventRefundFailed:
		return PhaseRefundSettled
	default:
		return PhasePaymentSettled
	}
}

// DedupeKey identifies one state transition: provider, merchant reference and phase.
func DedupeKey(evt provider.NormalizedWebhookEvent) string {
	return fmt.Sprintf("%s:%s:%s", evt.Provider, evt.Reference, PhaseOf(evt.EventType))
}

// Outcome is what the pipeline did with a delivery.
type Outcome string

const (
	OutcomeApplied     Outcome = "applied"
	OutcomeDuplicate   Outcome = "duplicate"
	OutcomeIgnored     Outcome = "ignored"
	OutcomeParseFailed Outcome = "parse_failed"
	OutcomeRejected    Outcome = "rejected"
	OutcomeFailed      Outcome = "failed"
)

// Source tells whether a delivery was pushed by the provider or pulled by reconciliation.
type Source string

const (
	SourceWebhook   Source = "webhook"
	SourceReconcile Source = "reconcile"
)

// Delivery is the audit record of one inbound callback.
type Delivery struct {
	ID          uuid.UUID
	Provider    provider.ProviderType
	Source      Source
	EventID     string
	EventType   provider.EventType
	Reference   string
	DedupeKey   string
	Outcome     Outcome
	NeedsReview bool
	Error       string
	Raw         json.RawMessage
	ReceivedAt  time.Time
	ProcessedAt *time.Time
}

// NewDelivery starts a record for a callback received now.
func NewDelivery(p provider.ProviderType, src Source, raw []byte) *Delivery {
	return &Delivery{
		ID:         uuid.New(),
		Provider:   p,
		Source:     src,
		Raw:        rawJSON(raw),
		ReceivedAt: time.Now().UTC(),
	}
}

// rawJSON keeps the payload storable in a json column even when it is not JSON.
func rawJSON(b []byte) json.RawMessage {
	if json.Valid(b) {
		return append(json.RawMessage(nil), b...)
	}
	quoted, _ := json.Marshal(string(b))
	return quoted
}

// Attach copies the normalized fields onto the record.
func (d *Delivery) Attach(evt provider.NormalizedWebhookEvent) {
	d.EventID = evt.EventID
	d.EventType = evt.EventType
	d.Reference = evt.Reference
	d.DedupeKey = DedupeKey(evt)
}

// Finish records the terminal outcome. Parse failures and rejections are
// flagged for manual review since nothing was applied.
func (d *Delivery) Finish(o Outcome, cause error) error {
	if d.ProcessedAt != nil {
		return fmt.Errorf("delivery %s already finished as %s", d.ID, d.Outcome)
	}
	d.Outcome = o
	d.NeedsReview = o == OutcomeParseFailed || o == OutcomeFailed
	if cause != nil {
		d.Error = strings.TrimSpace(cause.Error())
	}
	now := time.Now().UTC()
	d.ProcessedAt = &now
	return nil
}

// IsProcessed reports whether Finish was called.
func (d *Delivery) IsProcessed() bool { return d.ProcessedAt != nil }
