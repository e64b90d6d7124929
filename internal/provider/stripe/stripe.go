package stripe

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/provider"
	"paybridge/internal/provider/base"

	"github.com/shopspring/decimal"
	stripego "github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

const DefaultTolerance = 5 * time.Minute

// Provider wraps a per-instance stripe client; it never touches stripe-go globals.
type Provider struct {
	cfg       config.StripeCfg
	api       *client.API
	validator *base.RequestValidator
	caps      provider.Capabilities
	now       func() time.Time
}

func New(cfg config.StripeCfg, timeout time.Duration) *Provider {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = DefaultTolerance
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	// retries are owned by the payment service, not the SDK
	bc := &stripego.BackendConfig{
		HTTPClient:        &http.Client{Timeout: timeout},
		MaxNetworkRetries: stripego.Int64(0),
		LeveledLogger:     &stripego.LeveledLogger{Level: stripego.LevelError},
	}
	if cfg.BaseURL != "" {
		bc.URL = stripego.String(strings.TrimRight(cfg.BaseURL, "/"))
	}
	backend := stripego.GetBackendWithConfig(stripego.APIBackend, bc)
	api := client.New(cfg.SecretKey, &stripego.Backends{API: backend, Connect: backend, Uploads: backend})

	caps := provider.Capabilities{
		Methods:                []provider.Method{provider.MethodCard, provider.MethodWallet, provider.MethodBank},
		Countries:              []string{"*"},
		Currencies:             []string{"USD", "EUR", "GBP", "CAD", "AUD", "JPY", "ZAR", "NGN", "KES", "GHS"},
		MinAmount:              decimal.RequireFromString("0.50"),
		MaxAmount:              decimal.NewFromInt(999999),
		FeePercent:             decimal.RequireFromString("2.9"),
		FeeFixed:               decimal.RequireFromString("0.30"),
		SupportsWebhooks:       true,
		SupportsRefund:         true,
		SupportsPartialRefund:  true,
		SupportsReconciliation: true,
		PCIScope:               true,
		RiskLevel:              provider.RiskLow,
	}
	return &Provider{cfg: cfg, api: api, validator: base.NewRequestValidator(caps), caps: caps, now: time.Now}
}

// WithClock overrides the clock used by the replay window.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

func (p *Provider) Type() provider.ProviderType         { return provider.ProviderStripe }
func (p *Provider) Name() string                        { return "Stripe" }
func (p *Provider) Capabilities() provider.Capabilities { return p.caps }
func (p *Provider) WebhookSecretConfigured() bool       { return p.cfg.WebhookSecret != "" }

// InitiatePayment creates a PaymentIntent. The reference travels in metadata so
// webhooks can be correlated, and doubles as the idempotency key.
func (p *Provider) InitiatePayment(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if err := p.validator.Validate(p.Type(), &req); err != nil {
		return nil, err
	}

	params := &stripego.PaymentIntentParams{
		Amount:   stripego.Int64(base.MajorToMinor(req.Amount, req.Currency)),
		Currency: stripego.String(strings.ToLower(req.Currency)),
		AutomaticPaymentMethods: &stripego.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripego.Bool(true),
		},
	}
	if req.Description != "" {
		params.Description = stripego.String(req.Description)
	}
	if req.Customer.Email != "" {
		params.ReceiptEmail = stripego.String(req.Customer.Email)
	}
	params.AddMetadata("reference", req.Reference)
	if req.WebhookURL != "" {
		params.AddMetadata("webhook_url", req.WebhookURL)
	}
	params.IdempotencyKey = stripego.String(req.IdempotencyToken())
	params.Context = ctx

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, p.mapError(ctx, err)
	}

	resp := &provider.PaymentResponse{
		Provider:          p.Type(),
		ProviderReference: pi.ID,
		Status:            paymentStatus(pi.Status),
	}
	if pi.LastResponse != nil {
		resp.Raw = pi.LastResponse.RawJSON
	}
	if pi.NextAction != nil && pi.NextAction.RedirectToURL != nil {
		resp.RedirectURL = pi.NextAction.RedirectToURL.URL
		resp.Action = &provider.Action{Type: provider.ActionRedirect, Value: pi.NextAction.RedirectToURL.URL}
	}
	return resp, nil
}

func paymentStatus(s stripego.PaymentIntentStatus) provider.PaymentStatus {
	switch s {
	case stripego.PaymentIntentStatusSucceeded:
		return provider.PaymentSuccess
	case stripego.PaymentIntentStatusCanceled:
		return provider.PaymentFailed
	case stripego.PaymentIntentStatusRequiresAction:
		return provider.PaymentRequiresAction
	default:
		return provider.PaymentPending
	}
}

func (p *Provider) RefundPayment(ctx context.Context, req provider.RefundRequest) (*provider.RefundResponse, error) {
	if req.ProviderReference == "" {
		return nil, provider.NewError(p.Type(), provider.ErrInvalidRequest, "payment intent id is required")
	}
	params := &stripego.RefundParams{PaymentIntent: stripego.String(req.ProviderReference)}
	idem := "refund:" + req.ProviderReference + ":full"
	if req.Amount != nil {
		minor := base.MajorToMinor(*req.Amount, req.Currency)
		params.Amount = stripego.Int64(minor)
		idem = "refund:" + req.ProviderReference + ":" + decimal.NewFromInt(minor).String()
	}
	if req.Reference != "" {
		params.AddMetadata("reference", req.Reference)
	}
	if req.Reason != "" {
		params.AddMetadata("reason", req.Reason)
	}
	params.IdempotencyKey = stripego.String(idem)
	params.Context = ctx

	r, err := p.api.Refunds.New(params)
	if err != nil {
		return nil, p.mapError(ctx, err)
	}
	out := &provider.RefundResponse{
		Provider:          p.Type(),
		ProviderReference: req.ProviderReference,
		RefundReference:   r.ID,
		Status:            p.NormalizeStatus(string(r.Status)),
		Amount:            p.ToMajorUnits(decimal.NewFromInt(r.Amount), string(r.Currency)),
	}
	if r.LastResponse != nil {
		out.Raw = r.LastResponse.RawJSON
	}
	return out, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	params := &stripego.BalanceParams{}
	params.Context = ctx
	if _, err := p.api.Balance.Get(params); err != nil {
		return p.mapError(ctx, err)
	}
	return nil
}

var reconcileEvents = []string{
	"payment_intent.succeeded",
	"payment_intent.payment_failed",
	"payment_intent.canceled",
	"refund.updated",
	"refund.failed",
}

// Reconcile replays the settlement events Stripe recorded in [from, to].
func (p *Provider) Reconcile(ctx context.Context, from, to time.Time) ([]provider.WebhookPayload, error) {
	params := &stripego.EventListParams{
		CreatedRange: &stripego.RangeQueryParams{
			GreaterThanOrEqual: from.Unix(),
			LesserThanOrEqual:  to.Unix(),
		},
		Types: stripego.StringSlice(reconcileEvents),
	}
	params.Context = ctx
	params.Limit = stripego.Int64(100)

	var out []provider.WebhookPayload
	it := p.api.Events.List(params)
	for it.Next() {
		e := it.Event()
		if e.Data == nil {
			continue
		}
		payload, err := p.payloadFrom(e.ID, string(e.Type), e.Data.Raw)
		if err != nil || payload.Reference == "" {
			continue
		}
		out = append(out, *payload)
	}
	if err := it.Err(); err != nil {
		return out, p.mapError(ctx, err)
	}
	return out, nil
}

// mapError translates stripe-go errors into ProviderErrors.
func (p *Provider) mapError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return provider.FromContext(p.Type(), ctxErr)
	}
	var se *stripego.Error
	if !errors.As(err, &se) {
		// transport level failure
		return provider.Transient(p.Type(), provider.ErrProviderDown, err)
	}

	pe := &provider.ProviderError{Provider: p.Type(), Message: se.Msg, Err: err}
	switch {
	case se.HTTPStatusCode >= 500:
		pe.Code, pe.Retryable = provider.ErrProviderDown, true
	case se.HTTPStatusCode == http.StatusTooManyRequests,
		se.Code == stripego.ErrorCodeRateLimit,
		se.Code == stripego.ErrorCodeLockTimeout,
		se.Code == stripego.ErrorCodeIdempotencyKeyInUse:
		pe.Code, pe.Retryable = provider.ErrRateLimited, true
	case se.HTTPStatusCode == http.StatusUnauthorized || se.HTTPStatusCode == http.StatusForbidden:
		pe.Code = provider.ErrAuthenticationFailed
	case se.Code == stripego.ErrorCodeAmountTooSmall || se.Code == stripego.ErrorCodeAmountTooLarge:
		pe.Code = provider.ErrInvalidAmount
	default:
		pe.Code = provider.ErrProviderRejected
	}
	return pe
}
