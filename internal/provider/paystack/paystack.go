package paystack

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/provider"
	"paybridge/internal/provider/base"

	"github.com/shopspring/decimal"
)

const (
	DefaultBaseURL  = "https://api.paystack.co"
	SignatureHeader = "x-paystack-signature"

	maxReconcilePages = 50
)

// Provider talks to the Paystack REST API.
type Provider struct {
	cfg       config.PaystackCfg
	client    *base.HTTPClient
	validator *base.RequestValidator
	caps      provider.Capabilities
}

func New(cfg config.PaystackCfg, timeout time.Duration) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	client := base.NewHTTPClient(provider.ProviderPaystack, timeout)
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("Authorization", "Bearer "+cfg.SecretKey)

	caps := provider.Capabilities{
		Methods:                []provider.Method{provider.MethodCard, provider.MethodBank, provider.MethodUSSD, provider.MethodMobileMoney},
		Countries:              []string{"NG", "GH", "ZA", "KE", "CI"},
		Currencies:             []string{"NGN", "GHS", "ZAR", "KES", "USD", "XOF"},
		MinAmount:              decimal.NewFromInt(1),
		FeePercent:             decimal.RequireFromString("1.5"),
		SupportsWebhooks:       true,
		SupportsRefund:         true,
		SupportsPartialRefund:  true,
		SupportsReconciliation: true,
		RequiresKYC:            true,
		RiskLevel:              provider.RiskMedium,
	}
	return &Provider{cfg: cfg, client: client, validator: base.NewRequestValidator(caps), caps: caps}
}

func (p *Provider) Type() provider.ProviderType         { return provider.ProviderPaystack }
func (p *Provider) Name() string                        { return "Paystack" }
func (p *Provider) Capabilities() provider.Capabilities { return p.caps }
func (p *Provider) WebhookSecretConfigured() bool       { return p.cfg.SecretKey != "" }

type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		PageCount int `json:"pageCount"`
	} `json:"meta"`
}

func (p *Provider) call(ctx context.Context, method, endpoint string, payload any) (*envelope, []byte, error) {
	var (
		resp *base.HTTPResponse
		err  error
	)
	if method == "GET" {
		resp, err = p.client.Get(ctx, endpoint)
	} else {
		resp, err = p.client.PostJSON(ctx, endpoint, payload)
	}
	if err != nil {
		return nil, nil, err
	}
	var env envelope
	if err := resp.Decode(p.Type(), &env); err != nil {
		return nil, resp.Body, err
	}
	if !env.Status {
		return nil, resp.Body, &provider.ProviderError{
			Provider: p.Type(), Code: provider.ErrProviderRejected, Message: env.Message, Raw: resp.Body,
		}
	}
	return &env, resp.Body, nil
}

var channels = map[provider.Method]string{
	provider.MethodCard:        "card",
	provider.MethodBank:        "bank_transfer",
	provider.MethodUSSD:        "ussd",
	provider.MethodMobileMoney: "mobile_money",
}

// InitiatePayment creates a hosted checkout. Paystack deduplicates on reference.
func (p *Provider) InitiatePayment(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if err := p.validator.Validate(p.Type(), &req); err != nil {
		return nil, err
	}
	if req.Customer.Email == "" {
		return nil, provider.NewError(p.Type(), provider.ErrInvalidRequest, "customer email is required")
	}

	body := map[string]any{
		"email":        req.Customer.Email,
		"amount":       base.MajorToMinor(req.Amount, req.Currency),
		"currency":     req.Currency,
		"reference":    req.Reference,
		"callback_url": req.ReturnURL,
		"metadata":     map[string]string{"webhook_url": req.WebhookURL, "description": req.Description},
	}
	if ch, ok := channels[req.Method]; ok {
		body["channels"] = []string{ch}
	}

	env, raw, err := p.call(ctx, "POST", "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}
	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "decode initialize data", Raw: raw, Err: err}
	}
	ref := data.Reference
	if ref == "" {
		ref = req.Reference
	}
	return &provider.PaymentResponse{
		Provider:          p.Type(),
		ProviderReference: ref,
		Status:            provider.PaymentPending,
		RedirectURL:       data.AuthorizationURL,
		Raw:               raw,
	}, nil
}

func (p *Provider) RefundPayment(ctx context.Context, req provider.RefundRequest) (*provider.RefundResponse, error) {
	txn := req.ProviderReference
	if txn == "" {
		txn = req.Reference
	}
	if txn == "" {
		return nil, provider.NewError(p.Type(), provider.ErrInvalidRequest, "transaction reference is required")
	}
	body := map[string]any{"transaction": txn}
	if req.Amount != nil {
		body["amount"] = base.MajorToMinor(*req.Amount, req.Currency)
	}
	if req.Currency != "" {
		body["currency"] = req.Currency
	}
	if req.Reason != "" {
		body["merchant_note"] = req.Reason
	}

	env, raw, err := p.call(ctx, "POST", "/refund", body)
	if err != nil {
		return nil, err
	}
	var data struct {
		ID       base.FlexString  `json:"id"`
		Status   string           `json:"status"`
		Amount   base.FlexDecimal `json:"amount"`
		Currency string           `json:"currency"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "decode refund data", Raw: raw, Err: err}
	}
	currency := data.Currency
	if currency == "" {
		currency = req.Currency
	}
	return &provider.RefundResponse{
		Provider:          p.Type(),
		ProviderReference: txn,
		RefundReference:   data.ID.String(),
		Status:            p.NormalizeStatus(data.Status),
		Amount:            p.ToMajorUnits(data.Amount.Decimal, currency),
		Raw:               raw,
	}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, _, err := p.call(ctx, "GET", "/balance", nil)
	return err
}

// Reconcile lists transactions created in [from, to] as webhook payloads.
func (p *Provider) Reconcile(ctx context.Context, from, to time.Time) ([]provider.WebhookPayload, error) {
	var out []provider.WebhookPayload
	for page := 1; page <= maxReconcilePages; page++ {
		q := url.Values{}
		q.Set("from", from.UTC().Format(time.RFC3339))
		q.Set("to", to.UTC().Format(time.RFC3339))
		q.Set("perPage", "100")
		q.Set("page", fmt.Sprint(page))

		env, raw, err := p.call(ctx, "GET", "/transaction?"+q.Encode(), nil)
		if err != nil {
			return out, err
		}
		var items []json.RawMessage
		if err := json.Unmarshal(env.Data, &items); err != nil {
			return out, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "decode transaction list", Raw: raw, Err: err}
		}
		for _, item := range items {
			var d eventData
			if err := json.Unmarshal(item, &d); err != nil || d.Reference == "" {
				continue
			}
			// an abandoned or ongoing checkout can still be paid; only settled rows are replayed
			if !p.NormalizeStatus(d.Status).Terminal() {
				continue
			}
			out = append(out, provider.WebhookPayload{
				Provider:          p.Type(),
				EventID:           d.ID.String(),
				Event:             "charge." + d.Status,
				Reference:         d.Reference,
				ProviderReference: d.ID.String(),
				Status:            d.Status,
				Amount:            d.Amount.Decimal,
				Currency:          d.Currency,
				Raw:               item,
			})
		}
		if page >= env.Meta.PageCount {
			break
		}
	}
	return out, nil
}
