package cinetpay

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"paybridge/internal/provider"
	"paybridge/internal/provider/base"

	"github.com/shopspring/decimal"
)

type notification struct {
	TransID     string           `json:"cpm_trans_id"`
	SiteID      string           `json:"cpm_site_id"`
	PayID       string           `json:"cpm_payid"`
	Amount      base.FlexDecimal `json:"cpm_amount"`
	Currency    string           `json:"cpm_currency"`
	Result      string           `json:"cpm_result"`
	TransStatus string           `json:"cpm_trans_status"`
	Method      string           `json:"payment_method"`
	Phone       string           `json:"cel_phone_num"`
	Error       string           `json:"cpm_error_message"`
}

// Sign returns the x-cinetpay-signature value for body sent at timestamp.
func Sign(secret string, body []byte, timestamp string) string {
	return base.HMACHex(sha256.New, secret, body, []byte(timestamp))
}

// SignedHeaders builds the full header set for a notification sent at t.
func SignedHeaders(secret string, body []byte, t time.Time) http.Header {
	ts := strconv.FormatInt(t.Unix(), 10)
	h := http.Header{}
	h.Set(TimestampHeader, ts)
	h.Set(SignatureHeader, Sign(secret, body, ts))
	return h
}

func (p *Provider) ValidateWebhookSignature(headers http.Header, body []byte) bool {
	if p.cfg.SecretKey == "" {
		return true
	}
	ts := strings.TrimSpace(headers.Get(TimestampHeader))
	if ts == "" {
		return false
	}
	if p.cfg.Tolerance > 0 {
		sec, err := strconv.ParseInt(ts, 10, 64)
		if err != nil {
			return false
		}
		skew := p.now().Sub(time.Unix(sec, 0))
		if skew < 0 {
			skew = -skew
		}
		if skew > p.cfg.Tolerance {
			return false
		}
	}
	return base.EqualHex(Sign(p.cfg.SecretKey, body, ts), headers.Get(SignatureHeader))
}

// ParseWebhook accepts the JSON body and the form-encoded body CinetPay posts to notify_url.
func (p *Provider) ParseWebhook(_ http.Header, body []byte) (*provider.WebhookPayload, error) {
	var n notification
	raw := append(json.RawMessage(nil), body...)
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, &n); err != nil {
			return nil, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "malformed cinetpay notification", Raw: body, Err: err}
		}
	} else {
		form, err := url.ParseQuery(string(trimmed))
		if err != nil || form.Get("cpm_trans_id") == "" {
			return nil, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "malformed cinetpay notification", Raw: body, Err: err}
		}
		n = notification{
			TransID:     form.Get("cpm_trans_id"),
			SiteID:      form.Get("cpm_site_id"),
			PayID:       form.Get("cpm_payid"),
			Currency:    form.Get("cpm_currency"),
			Result:      form.Get("cpm_result"),
			TransStatus: form.Get("cpm_trans_status"),
			Method:      form.Get("payment_method"),
			Phone:       form.Get("cel_phone_num"),
			Error:       form.Get("cpm_error_message"),
		}
		if a := form.Get("cpm_amount"); a != "" {
			if v, err := decimal.NewFromString(a); err == nil {
				n.Amount.Decimal = v
			}
		}
		// the form body verbatim, as a JSON string so Raw stays valid JSON
		raw, _ = json.Marshal(string(body))
	}

	status := n.TransStatus
	if status == "" {
		status = n.Result
	}
	return &provider.WebhookPayload{
		Provider:          p.Type(),
		EventID:           n.PayID,
		Event:             "payment.notification",
		Reference:         n.TransID,
		ProviderReference: n.PayID,
		Status:            status,
		Amount:            n.Amount.Decimal,
		Currency:          strings.ToUpper(n.Currency),
		Raw:               raw,
	}, nil
}

func (p *Provider) NormalizeStatus(native string) provider.Status {
	switch strings.ToUpper(strings.TrimSpace(native)) {
	case "ACCEPTED", "00":
		return provider.StatusSuccess
	case "REFUSED", "CANCELED", "CANCELLED", "FAILED":
		return provider.StatusFailed
	default:
		return provider.StatusPending
	}
}

// ToMajorUnits is the identity; CFA francs have no minor unit.
func (p *Provider) ToMajorUnits(amount decimal.Decimal, _ string) decimal.Decimal {
	return amount
}

func (p *Provider) EventKind(string) provider.EventKind { return provider.KindPayment }
