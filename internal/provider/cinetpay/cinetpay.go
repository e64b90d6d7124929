package cinetpay

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/provider"
	"paybridge/internal/provider/base"

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL  = "https://api-checkout.cinetpay.com"
	SignatureHeader = "x-cinetpay-signature"
	TimestampHeader = "x-cinetpay-timestamp"
)

// Provider drives CinetPay hosted checkout for West and Central African mobile money.
type Provider struct {
	cfg       config.CinetPayCfg
	client    *base.HTTPClient
	validator *base.RequestValidator
	caps      provider.Capabilities
	now       func() time.Time
}

func New(cfg config.CinetPayCfg, timeout time.Duration) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	client := base.NewHTTPClient(provider.ProviderCinetPay, timeout)
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))

	caps := provider.Capabilities{
		Methods:          []provider.Method{provider.MethodMobileMoney, provider.MethodCard, provider.MethodWallet},
		Countries:        []string{"CI", "SN", "CM", "BF", "ML", "TG", "BJ", "NE", "GN", "CD"},
		Currencies:       []string{"XOF", "XAF", "GNF", "CDF", "USD"},
		MinAmount:        decimal.NewFromInt(100),
		MaxAmount:        decimal.NewFromInt(1500000),
		FeePercent:       decimal.RequireFromString("3.5"),
		SupportsWebhooks: true,
		RiskLevel:        provider.RiskHigh,
	}
	return &Provider{cfg: cfg, client: client, validator: base.NewRequestValidator(caps), caps: caps, now: time.Now}
}

// WithClock overrides the clock used for timestamp freshness checks.
func (p *Provider) WithClock(now func() time.Time) *Provider {
	p.now = now
	return p
}

func (p *Provider) Type() provider.ProviderType         { return provider.ProviderCinetPay }
func (p *Provider) Name() string                        { return "CinetPay" }
func (p *Provider) Capabilities() provider.Capabilities { return p.caps }
func (p *Provider) WebhookSecretConfigured() bool       { return p.cfg.SecretKey != "" }

type envelope struct {
	Code        string          `json:"code"`
	Message     string          `json:"message"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
}

var channels = map[provider.Method]string{
	provider.MethodMobileMoney: "MOBILE_MONEY",
	provider.MethodCard:        "CREDIT_CARD",
	provider.MethodWallet:      "WALLET",
}

func (p *Provider) InitiatePayment(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if err := p.validator.Validate(p.Type(), &req); err != nil {
		return nil, err
	}
	if !req.Amount.Equal(req.Amount.Truncate(0)) {
		return nil, provider.NewError(p.Type(), provider.ErrInvalidAmount, "cinetpay only accepts whole %s amounts, got %s", req.Currency, req.Amount)
	}
	if (req.Currency == "XOF" || req.Currency == "XAF") && !req.Amount.Mod(decimal.NewFromInt(5)).IsZero() {
		return nil, provider.NewError(p.Type(), provider.ErrInvalidAmount, "%s amounts must be a multiple of 5", req.Currency)
	}

	ch := channels[req.Method]
	if ch == "" {
		ch = "ALL"
	}
	body := map[string]any{
		"apikey":                p.cfg.APIKey,
		"site_id":               p.cfg.SiteID,
		"transaction_id":        req.Reference,
		"amount":                req.Amount.IntPart(),
		"currency":              req.Currency,
		"description":           req.Description,
		"notify_url":            req.WebhookURL,
		"return_url":            req.ReturnURL,
		"channels":              ch,
		"customer_name":         req.Customer.Name,
		"customer_email":        req.Customer.Email,
		"customer_phone_number": req.Customer.Phone,
	}
	if req.Operator != "" {
		body["metadata"] = req.Operator
	}

	resp, err := p.client.PostJSON(ctx, "/v2/payment", body)
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := resp.Decode(p.Type(), &env); err != nil {
		return nil, err
	}
	if env.Code != "201" {
		return nil, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrProviderRejected, Message: env.Message + " " + env.Description, Raw: resp.Body}
	}
	var data struct {
		PaymentToken string `json:"payment_token"`
		PaymentURL   string `json:"payment_url"`
	}
	_ = json.Unmarshal(env.Data, &data)

	out := &provider.PaymentResponse{
		Provider:          p.Type(),
		ProviderReference: data.PaymentToken,
		Status:            provider.PaymentPending,
		RedirectURL:       data.PaymentURL,
		Raw:               resp.Body,
	}
	if req.Method == provider.MethodMobileMoney && data.PaymentURL != "" {
		out.Status = provider.PaymentRequiresAction
		out.Action = &provider.Action{Type: provider.ActionRedirect, Value: data.PaymentURL}
	}
	return out, nil
}

func (p *Provider) RefundPayment(context.Context, provider.RefundRequest) (*provider.RefundResponse, error) {
	return nil, provider.NewError(p.Type(), provider.ErrRefundNotSupported, "cinetpay does not expose refunds through the API")
}

// HealthCheck hits the status endpoint; any answer short of a transport or 5xx failure is healthy.
func (p *Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.PostJSON(ctx, "/v2/payment/check", map[string]string{
		"apikey": p.cfg.APIKey, "site_id": p.cfg.SiteID, "transaction_id": "healthcheck",
	})
	if err != nil && !provider.IsRetryable(err) {
		return nil
	}
	return err
}

func (p *Provider) Reconcile(context.Context, time.Time, time.Time) ([]provider.WebhookPayload, error) {
	return nil, provider.ErrUnsupported
}
