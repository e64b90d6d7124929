package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// Provider is the contract every payment rail adapter implements.
type Provider interface {
	Type() ProviderType
	Name() string
	Capabilities() Capabilities

	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentResponse, error)
	RefundPayment(ctx context.Context, req RefundRequest) (*RefundResponse, error)

	// ValidateWebhookSignature must not log, mutate state or do I/O.
	ValidateWebhookSignature(headers http.Header, body []byte) bool
	// ParseWebhook assumes the signature was already checked.
	ParseWebhook(headers http.Header, body []byte) (*WebhookPayload, error)
	// WebhookSecretConfigured is false when the adapter accepts unsigned callbacks.
	WebhookSecretConfigured() bool

	Normalizer

	HealthCheck(ctx context.Context) error
	Reconcile(ctx context.Context, from, to time.Time) ([]WebhookPayload, error)
}

// Normalizer carries the adapter specific vocabulary and unit rules.
type Normalizer interface {
	// NormalizeStatus is total: unknown input maps to StatusPending.
	NormalizeStatus(native string) Status
	ToMajorUnits(amount decimal.Decimal, currency string) decimal.Decimal
	EventKind(event string) EventKind
}
