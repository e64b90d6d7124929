package provider

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Provider identification
type ProviderType string

const (
	ProviderStripe      ProviderType = "stripe"
	ProviderPaystack    ProviderType = "paystack"
	ProviderFlutterwave ProviderType = "flutterwave"
	ProviderCinetPay    ProviderType = "cinetpay"
	ProviderSandbox     ProviderType = "sandbox"
)

// Payment methods a rail can accept
type Method string

const (
	MethodCard        Method = "CARD"
	MethodMobileMoney Method = "MOBILE_MONEY"
	MethodBank        Method = "BANK_TRANSFER"
	MethodUSSD        Method = "USSD"
	MethodWallet      Method = "WALLET"
)

type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Capabilities is the static description of what an adapter can do.
// Adapters build it once at construction; it never performs I/O.
type Capabilities struct {
	Methods    []Method        `json:"methods"`
	Countries  []string        `json:"countries"`
	Currencies []string        `json:"currencies"`
	MinAmount  decimal.Decimal `json:"min_amount"`
	MaxAmount  decimal.Decimal `json:"max_amount"` // zero means unbounded
	FeePercent decimal.Decimal `json:"fee_percent"`
	FeeFixed   decimal.Decimal `json:"fee_fixed"`

	SupportsWebhooks       bool `json:"supports_webhooks"`
	SupportsRefund         bool `json:"supports_refund"`
	SupportsPartialRefund  bool `json:"supports_partial_refund"`
	SupportsReconciliation bool `json:"supports_reconciliation"`

	RequiresKYC bool      `json:"requires_kyc"`
	PCIScope    bool      `json:"pci_scope"`
	RiskLevel   RiskLevel `json:"risk_level"`
}

// Covers reports whether the rail accepts the currency, country and method.
// Empty arguments are not filtered on. A "*" entry in Countries matches any country.
func (c Capabilities) Covers(currency, country string, method Method) bool {
	if currency != "" && !containsFold(c.Currencies, currency) {
		return false
	}
	if country != "" && !containsFold(c.Countries, "*") && !containsFold(c.Countries, country) {
		return false
	}
	if method != "" {
		found := false
		for _, m := range c.Methods {
			if strings.EqualFold(string(m), string(method)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// AcceptsAmount checks the amount against the min/max bounds.
func (c Capabilities) AcceptsAmount(amount decimal.Decimal) bool {
	if amount.LessThan(c.MinAmount) {
		return false
	}
	if !c.MaxAmount.IsZero() && amount.GreaterThan(c.MaxAmount) {
		return false
	}
	return true
}

// EstimateFee returns the indicative fee for an amount.
func (c Capabilities) EstimateFee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(c.FeePercent).Div(decimal.NewFromInt(100)).Add(c.FeeFixed).Round(2)
}

// Customer carries the soft-KYC fields some rails require.
type Customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// PaymentRequest is the rail-agnostic instruction to collect money.
// Amount is always expressed in major units (10.50, never 1050).
type PaymentRequest struct {
	Reference      string          `json:"reference"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	Method         Method          `json:"method"`
	Country        string          `json:"country,omitempty"`
	Operator       string          `json:"operator,omitempty"` // mobile money operator
	Customer       Customer        `json:"customer"`
	Description    string          `json:"description,omitempty"`
	WebhookURL     string          `json:"webhook_url,omitempty"`
	ReturnURL      string          `json:"return_url,omitempty"`
	IdempotencyKey string          `json:"idempotency_key,omitempty"`
	ExpiresAt      *time.Time      `json:"expires_at,omitempty"`
}

// IdempotencyToken is the key a rail should deduplicate on.
func (r PaymentRequest) IdempotencyToken() string {
	if r.IdempotencyKey != "" {
		return r.IdempotencyKey
	}
	return r.Reference
}

type PaymentStatus string

const (
	PaymentPending        PaymentStatus = "PENDING"
	PaymentSuccess        PaymentStatus = "SUCCESS"
	PaymentFailed         PaymentStatus = "FAILED"
	PaymentRequiresAction PaymentStatus = "REQUIRES_ACTION"
)

type ActionType string

const (
	ActionUSSD     ActionType = "ussd"
	ActionQR       ActionType = "qr"
	ActionDeeplink ActionType = "deeplink"
	ActionRedirect ActionType = "redirect"
)

// Action is the next step a payer must take (dial a USSD code, scan a QR, follow a link).
type Action struct {
	Type  ActionType `json:"type"`
	Value string     `json:"value"`
}

type PaymentResponse struct {
	Provider          ProviderType    `json:"provider"`
	ProviderReference string          `json:"provider_reference"`
	Status            PaymentStatus   `json:"status"`
	RedirectURL       string          `json:"redirect_url,omitempty"`
	Action            *Action         `json:"action,omitempty"`
	Raw               json.RawMessage `json:"raw,omitempty"`
}

// RefundRequest refunds a settled payment. A nil Amount means a full refund.
type RefundRequest struct {
	ProviderReference string           `json:"provider_reference"`
	Reference         string           `json:"reference"`
	Amount            *decimal.Decimal `json:"amount,omitempty"`
	Currency          string           `json:"currency,omitempty"`
	Reason            string           `json:"reason,omitempty"`
}

type RefundResponse struct {
	Provider          ProviderType    `json:"provider"`
	ProviderReference string          `json:"provider_reference"`
	RefundReference   string          `json:"refund_reference"`
	Status            Status          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Raw               json.RawMessage `json:"raw,omitempty"`
}

// Status is the normalized three-valued outcome every native status maps onto.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

func (s Status) Terminal() bool { return s == StatusSuccess || s == StatusFailed }

// EventType is the canonical event emitted downstream.
type EventType string

const (
	EventPaymentCreated EventType = "PAYMENT_CREATED"
	EventPaymentSuccess EventType = "PAYMENT_SUCCESS"
	EventPaymentFailed  EventType = "PAYMENT_FAILED"
	EventRefundSuccess  EventType = "REFUND_SUCCESS"
	EventRefundFailed   EventType = "REFUND_FAILED"
)

// EventKind says whether a native event is about a payment or a refund.
type EventKind string

const (
	KindPayment EventKind = "payment"
	KindRefund  EventKind = "refund"
)

// WebhookPayload is the parsed, not yet normalized, callback.
// Status and Amount keep the rail's own vocabulary and unit.
type WebhookPayload struct {
	Provider          ProviderType    `json:"provider"`
	EventID           string          `json:"event_id,omitempty"`
	Event             string          `json:"event"`
	Reference         string          `json:"reference"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	Status            string          `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Raw               json.RawMessage `json:"raw"`
}

// NormalizedWebhookEvent is the single shape handed to the ledger.
type NormalizedWebhookEvent struct {
	Provider          ProviderType    `json:"provider"`
	EventID           string          `json:"event_id,omitempty"`
	EventType         EventType       `json:"event_type"`
	Status            Status          `json:"status"`
	Reference         string          `json:"reference"`
	ProviderReference string          `json:"provider_reference,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	ReceivedAt        time.Time       `json:"received_at"`
	Raw               json.RawMessage `json:"raw"`
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
