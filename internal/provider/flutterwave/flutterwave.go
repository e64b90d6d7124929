package flutterwave

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
	DefaultBaseURL  = "https://api.flutterwave.com"
	SignatureHeader = "verif-hash"

	maxReconcilePages = 50
)

// Provider talks to the Flutterwave v3 API.
type Provider struct {
	cfg       config.FlutterwaveCfg
	client    *base.HTTPClient
	validator *base.RequestValidator
	caps      provider.Capabilities
}

func New(cfg config.FlutterwaveCfg, timeout time.Duration) *Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	client := base.NewHTTPClient(provider.ProviderFlutterwave, timeout)
	client.SetBaseURL(strings.TrimRight(cfg.BaseURL, "/"))
	client.SetHeader("Authorization", "Bearer "+cfg.SecretKey)

	caps := provider.Capabilities{
		Methods:                []provider.Method{provider.MethodCard, provider.MethodMobileMoney, provider.MethodBank, provider.MethodUSSD},
		Countries:              []string{"NG", "GH", "KE", "UG", "TZ", "ZA", "RW", "CM", "CI", "SN"},
		Currencies:             []string{"NGN", "GHS", "KES", "UGX", "TZS", "ZAR", "RWF", "XAF", "XOF", "USD", "EUR", "GBP"},
		MinAmount:              decimal.NewFromInt(1),
		FeePercent:             decimal.RequireFromString("1.4"),
		SupportsWebhooks:       true,
		SupportsRefund:         true,
		SupportsPartialRefund:  true,
		SupportsReconciliation: true,
		RequiresKYC:            true,
		RiskLevel:              provider.RiskMedium,
	}
	return &Provider{cfg: cfg, client: client, validator: base.NewRequestValidator(caps), caps: caps}
}

func (p *Provider) Type() provider.ProviderType         { return provider.ProviderFlutterwave }
func (p *Provider) Name() string                        { return "Flutterwave" }
func (p *Provider) Capabilities() provider.Capabilities { return p.caps }
func (p *Provider) WebhookSecretConfigured() bool       { return p.cfg.SecretHash != "" }

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		PageInfo struct {
			TotalPages int `json:"total_pages"`
		} `json:"page_info"`
	} `json:"meta"`
}

func (p *Provider) call(ctx context.Context, endpoint string, payload any) (*envelope, []byte, error) {
	var (
		resp *base.HTTPResponse
		err  error
	)
	if payload == nil {
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
	if env.Status != "success" {
		return nil, resp.Body, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrProviderRejected, Message: env.Message, Raw: resp.Body}
	}
	return &env, resp.Body, nil
}

var paymentOptions = map[provider.Method]string{
	provider.MethodCard:        "card",
	provider.MethodMobileMoney: "mobilemoney",
	provider.MethodBank:        "banktransfer",
	provider.MethodUSSD:        "ussd",
}

// InitiatePayment creates a Standard checkout link keyed by tx_ref.
func (p *Provider) InitiatePayment(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if err := p.validator.Validate(p.Type(), &req); err != nil {
		return nil, err
	}
	body := map[string]any{
		"tx_ref":          req.Reference,
		"amount":          req.Amount.String(),
		"currency":        req.Currency,
		"redirect_url":    req.ReturnURL,
		"payment_options": paymentOptions[req.Method],
		"customer": map[string]string{
			"email":       req.Customer.Email,
			"phonenumber": req.Customer.Phone,
			"name":        req.Customer.Name,
		},
		"meta":           map[string]string{"webhook_url": req.WebhookURL},
		"customizations": map[string]string{"description": req.Description},
	}

	env, raw, err := p.call(ctx, "/v3/payments", body)
	if err != nil {
		return nil, err
	}
	var data struct {
		Link string `json:"link"`
	}
	_ = json.Unmarshal(env.Data, &data)
	return &provider.PaymentResponse{
		Provider:          p.Type(),
		ProviderReference: req.Reference,
		Status:            provider.PaymentPending,
		RedirectURL:       data.Link,
		Raw:               raw,
	}, nil
}

// transactionID resolves the numeric id refunds need from our tx_ref.
func (p *Provider) transactionID(ctx context.Context, req provider.RefundRequest) (string, error) {
	if req.ProviderReference != "" {
		return req.ProviderReference, nil
	}
	if req.Reference == "" {
		return "", provider.NewError(p.Type(), provider.ErrInvalidRequest, "reference or provider reference is required")
	}
	env, raw, err := p.call(ctx, "/v3/transactions/verify_by_reference?tx_ref="+url.QueryEscape(req.Reference), nil)
	if err != nil {
		return "", err
	}
	var data struct {
		ID base.FlexString `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil || data.ID == "" {
		return "", &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "transaction id missing", Raw: raw, Err: err}
	}
	return data.ID.String(), nil
}

func (p *Provider) RefundPayment(ctx context.Context, req provider.RefundRequest) (*provider.RefundResponse, error) {
	id, err := p.transactionID(ctx, req)
	if err != nil {
		return nil, err
	}
	body := map[string]any{}
	if req.Amount != nil {
		body["amount"] = req.Amount.String()
	}
	if req.Reason != "" {
		body["comments"] = req.Reason
	}

	env, raw, err := p.call(ctx, "/v3/transactions/"+url.PathEscape(id)+"/refund", body)
	if err != nil {
		return nil, err
	}
	var data struct {
		ID             base.FlexString  `json:"id"`
		Status         string           `json:"status"`
		AmountRefunded base.FlexDecimal `json:"amount_refunded"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "decode refund data", Raw: raw, Err: err}
	}
	return &provider.RefundResponse{
		Provider:          p.Type(),
		ProviderReference: id,
		RefundReference:   data.ID.String(),
		Status:            p.NormalizeStatus(data.Status),
		Amount:            data.AmountRefunded.Decimal,
		Raw:               raw,
	}, nil
}

func (p *Provider) HealthCheck(ctx context.Context) error {
	_, _, err := p.call(ctx, "/v3/balances", nil)
	return err
}

func (p *Provider) Reconcile(ctx context.Context, from, to time.Time) ([]provider.WebhookPayload, error) {
	var out []provider.WebhookPayload
	for page := 1; page <= maxReconcilePages; page++ {
		q := url.Values{}
		q.Set("from", from.UTC().Format("2006-01-02"))
		q.Set("to", to.UTC().Format("2006-01-02"))
		q.Set("page", fmt.Sprint(page))

		env, raw, err := p.call(ctx, "/v3/transactions?"+q.Encode(), nil)
		if err != nil {
			return out, err
		}
		var items []json.RawMessage
		if err := json.Unmarshal(env.Data, &items); err != nil {
			return out, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "decode transaction list", Raw: raw, Err: err}
		}
		for _, item := range items {
			var d eventData
			if err := json.Unmarshal(item, &d); err != nil || d.TxRef == "" {
				continue
			}
			out = append(out, provider.WebhookPayload{
				Provider:          p.Type(),
				EventID:           d.ID.String(),
				Event:             "charge.completed",
				Reference:         d.TxRef,
				ProviderReference: d.ID.String(),
				Status:            d.Status,
				Amount:            d.Amount.Decimal,
				Currency:          d.Currency,
				Raw:               item,
			})
		}
		if page >= env.Meta.PageInfo.TotalPages {
			break
		}
	}
	return out, nil
}
