package sandbox

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/provider"
	"paybridge/internal/provider/base"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// Scenario is the simulated outcome for a seed.
type Scenario string

const (
	ScenarioSuccess     Scenario = "SUCCESS"
	ScenarioFailed      Scenario = "FAILED"
	ScenarioTimeout     Scenario = "TIMEOUT"
	ScenarioFraud       Scenario = "FRAUD"
	ScenarioCancelled   Scenario = "CANCELLED"
	ScenarioNetworkFlap Scenario = "NETWORK_FLAP"
)

// namespace for sandbox provider references; changing it changes every reference.
var namespace = uuid.MustParse("7c5b3e0a-3f1d-4a8e-9c61-2f0b5d4e8a17")

// Outcome is the pure result of hashing a seed.
type Outcome struct {
	Seed              string
	Bucket            int
	Scenario          Scenario
	ProviderReference string
	Latency           time.Duration
}

// Simulate maps reference, operator and amount to a scenario. It is pure.
func Simulate(reference, operator string, amount decimal.Decimal, maxLatency time.Duration) Outcome {
	seed := reference + ":" + operator + ":" + amount.String()
	sum := sha256.Sum256([]byte(seed))
	bucket := int(binary.BigEndian.Uint32(sum[:4]) % 100)

	var latency time.Duration
	if maxLatency > 0 {
		latency = time.Duration(binary.BigEndian.Uint32(sum[4:8])) * time.Millisecond % maxLatency
	}
	return Outcome{
		Seed:              seed,
		Bucket:            bucket,
		Scenario:          scenarioFor(bucket),
		ProviderReference: "sbx_" + uuid.NewSHA1(namespace, []byte(seed)).String(),
		Latency:           latency,
	}
}

func scenarioFor(bucket int) Scenario {
	switch {
	case bucket < 70:
		return ScenarioSuccess
	case bucket < 80:
		return ScenarioFailed
	case bucket < 85:
		return ScenarioTimeout
	case bucket < 90:
		return ScenarioFraud
	case bucket < 95:
		return ScenarioCancelled
	default:
		return ScenarioNetworkFlap
	}
}

// Provider is an in-process rail whose outcomes are a function of the request.
type Provider struct {
	cfg  config.SandboxCfg
	caps provider.Capabilities
}

func New(cfg config.SandboxCfg) *Provider {
	if cfg.MaxLatency < 0 {
		cfg.MaxLatency = 0
	}
	return &Provider{cfg: cfg, caps: provider.Capabilities{
		Methods: []provider.Method{
			provider.MethodCard, provider.MethodMobileMoney, provider.MethodBank,
			provider.MethodUSSD, provider.MethodWallet,
		},
		Countries:             []string{"*"},
		Currencies:            []string{"USD", "EUR", "GBP", "NGN", "GHS", "KES", "ZAR", "XOF", "XAF"},
		MinAmount:             decimal.RequireFromString("0.01"),
		SupportsWebhooks:      true,
		SupportsRefund:        true,
		SupportsPartialRefund: true,
		RiskLevel:             provider.RiskLow,
	}}
}

func (p *Provider) Type() provider.ProviderType         { return provider.ProviderSandbox }
func (p *Provider) Name() string                        { return "Sandbox" }
func (p *Provider) Capabilities() provider.Capabilities { return p.caps }

// WebhookSecretConfigured is true so strict mode never rejects the simulator.
func (p *Provider) WebhookSecretConfigured() bool { return true }

func operatorOf(req provider.PaymentRequest) string {
	if req.Operator != "" {
		return req.Operator
	}
	return string(req.Method)
}

func (p *Provider) outcome(req provider.PaymentRequest) Outcome {
	return Simulate(req.Reference, operatorOf(req), req.Amount, p.cfg.MaxLatency)
}

func (p *Provider) InitiatePayment(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if req.Reference == "" {
		return nil, provider.NewError(p.Type(), provider.ErrInvalidRequest, "reference is required")
	}
	if !req.Amount.IsPositive() {
		return nil, provider.NewError(p.Type(), provider.ErrInvalidAmount, "amount must be positive")
	}
	o := p.outcome(req)
	if err := sleep(ctx, o.Latency); err != nil {
		return nil, provider.FromContext(p.Type(), err)
	}

	raw, _ := json.Marshal(map[string]any{
		"reference": req.Reference,
		"bucket":    o.Bucket,
		"scenario":  o.Scenario,
	})
	resp := &provider.PaymentResponse{
		Provider:          p.Type(),
		ProviderReference: o.ProviderReference,
		Raw:               raw,
	}
	switch p.NormalizeStatus(string(o.Scenario)) {
	case provider.StatusSuccess:
		resp.Status = provider.PaymentSuccess
	case provider.StatusFailed:
		resp.Status = provider.PaymentFailed
	default:
		resp.Status = provider.PaymentPending
	}
	if req.Method == provider.MethodUSSD && resp.Status == provider.PaymentPending {
		resp.Status = provider.PaymentRequiresAction
		resp.Action = &provider.Action{Type: provider.ActionUSSD, Value: "*170*" + o.ProviderReference[4:12] + "#"}
	}

	log.Debug().Str("reference", req.Reference).Int("bucket", o.Bucket).
		Str("scenario", string(o.Scenario)).Msg("sandbox payment simulated")
	return resp, nil
}

func (p *Provider) RefundPayment(ctx context.Context, req provider.RefundRequest) (*provider.RefundResponse, error) {
	if req.ProviderReference == "" && req.Reference == "" {
		return nil, provider.NewError(p.Type(), provider.ErrInvalidRequest, "reference is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, provider.FromContext(p.Type(), err)
	}
	amount := decimal.Zero
	if req.Amount != nil {
		amount = *req.Amount
	}
	seed := "refund:" + req.ProviderReference + ":" + req.Reference + ":" + amount.String()
	return &provider.RefundResponse{
		Provider:          p.Type(),
		ProviderReference: req.ProviderReference,
		RefundReference:   "sbx_rf_" + uuid.NewSHA1(namespace, []byte(seed)).String(),
		Status:            provider.StatusSuccess,
		Amount:            amount,
	}, nil
}

func (p *Provider) HealthCheck(context.Context) error { return nil }

func (p *Provider) Reconcile(context.Context, time.Time, time.Time) ([]provider.WebhookPayload, error) {
	return nil, provider.ErrUnsupported
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type callback struct {
	EventID           string          `json:"event_id"`
	Event             string          `json:"event"`
	Reference         string          `json:"reference"`
	ProviderReference string          `json:"provider_reference"`
	Scenario          string          `json:"scenario"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
}

// SimulateWebhook returns the callback body the simulator would deliver for req.
func SimulateWebhook(req provider.PaymentRequest) []byte {
	o := Simulate(req.Reference, operatorOf(req), req.Amount, 0)
	body, _ := json.Marshal(callback{
		EventID:           "evt_" + o.ProviderReference[4:],
		Event:             "payment.updated",
		Reference:         req.Reference,
		ProviderReference: o.ProviderReference,
		Scenario:          string(o.Scenario),
		Amount:            req.Amount,
		Currency:          strings.ToUpper(req.Currency),
	})
	return body
}

// ValidateWebhookSignature always succeeds; the simulator has no secret.
func (p *Provider) ValidateWebhookSignature(http.Header, []byte) bool { return true }

func (p *Provider) ParseWebhook(_ http.Header, body []byte) (*provider.WebhookPayload, error) {
	var cb struct {
		EventID           string           `json:"event_id"`
		Event             string           `json:"event"`
		Reference         string           `json:"reference"`
		ProviderReference string           `json:"provider_reference"`
		Scenario          string           `json:"scenario"`
		Amount            base.FlexDecimal `json:"amount"`
		Currency          string           `json:"currency"`
	}
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "malformed sandbox callback", Raw: body, Err: err}
	}
	return &provider.WebhookPayload{
		Provider:          p.Type(),
		EventID:           cb.EventID,
		Event:             cb.Event,
		Reference:         cb.Reference,
		ProviderReference: cb.ProviderReference,
		Status:            cb.Scenario,
		Amount:            cb.Amount.Decimal,
		Currency:          strings.ToUpper(cb.Currency),
		Raw:               append(json.RawMessage(nil), body...),
	}, nil
}

func (p *Provider) NormalizeStatus(native string) provider.Status {
	switch Scenario(strings.ToUpper(strings.TrimSpace(native))) {
	case ScenarioSuccess:
		return provider.StatusSuccess
	case ScenarioFailed, ScenarioFraud, ScenarioCancelled, ScenarioNetworkFlap:
		return provider.StatusFailed
	default:
		return provider.StatusPending
	}
}

func (p *Provider) ToMajorUnits(amount decimal.Decimal, _ string) decimal.Decimal { return amount }

func (p *Provider) EventKind(event string) provider.EventKind {
	if strings.HasPrefix(event, "refund.") {
		return provider.KindRefund
	}
	return provider.KindPayment
}
