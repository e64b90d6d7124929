package stripe

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"paybridge/internal/provider"
	"paybridge/internal/provider/base"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79/webhook"
)

const SignatureHeader = "Stripe-Signature"

// Sign builds a Stripe-Signature header value for payload at t.
func Sign(secret string, payload []byte, t time.Time) string {
	sig := webhook.ComputeSignature(t, payload, secret)
	return fmt.Sprintf("t=%d,v1=%s", t.Unix(), hex.EncodeToString(sig))
}

// ValidateWebhookSignature verifies the v1 HMAC over "{t}.{payload}" and rejects
// timestamps outside the replay window in either direction.
func (p *Provider) ValidateWebhookSignature(headers http.Header, body []byte) bool {
	if p.cfg.WebhookSecret == "" {
		return true
	}
	header := headers.Get(SignatureHeader)
	ts, ok := signedAt(header)
	if !ok {
		return false
	}
	skew := p.now().Sub(ts)
	if skew < 0 {
		skew = -skew
	}
	if skew > p.cfg.Tolerance {
		return false
	}
	return webhook.ValidatePayloadIgnoringTolerance(body, header, p.cfg.WebhookSecret) == nil
}

func signedAt(header string) (time.Time, bool) {
	for _, part := range strings.Split(header, ",") {
		k, v, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found || k != "t" {
			continue
		}
		sec, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(sec, 0), true
	}
	return time.Time{}, false
}

type event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

type object struct {
	ID             string            `json:"id"`
	Object         string            `json:"object"`
	Status         string            `json:"status"`
	Amount         base.FlexDecimal  `json:"amount"`
	AmountReceived base.FlexDecimal  `json:"amount_received"`
	AmountRefunded base.FlexDecimal  `json:"amount_refunded"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
	PaymentIntent  json.RawMessage   `json:"payment_intent"`
}

func (p *Provider) ParseWebhook(_ http.Header, body []byte) (*provider.WebhookPayload, error) {
	var evt event
	if err := json.Unmarshal(body, &evt); err != nil || evt.Type == "" {
		return nil, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "malformed stripe event", Raw: body, Err: err}
	}
	payload, err := p.payloadFrom(evt.ID, evt.Type, evt.Data.Object)
	if err != nil {
		return nil, err
	}
	payload.Raw = append(json.RawMessage(nil), body...)
	return payload, nil
}

// payloadFrom is shared by webhook parsing and event replay.
func (p *Provider) payloadFrom(id, eventType string, raw json.RawMessage) (*provider.WebhookPayload, error) {
	var obj object
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "malformed stripe event object", Raw: raw, Err: err}
	}

	out := &provider.WebhookPayload{
		Provider:          p.Type(),
		EventID:           id,
		Event:             eventType,
		Reference:         obj.Metadata["reference"],
		ProviderReference: obj.ID,
		Currency:          strings.ToUpper(obj.Currency),
		Raw:               raw,
	}

	if p.EventKind(eventType) == provider.KindRefund {
		out.Amount = obj.Amount.Decimal
		if obj.Object == "charge" {
			out.Amount = obj.AmountRefunded.Decimal
		}
		out.Status = obj.Status
		if eventType == "refund.failed" {
			out.Status = "failed"
		}
		if pi := intentID(obj.PaymentIntent); pi != "" {
			out.ProviderReference = pi
		}
	} else {
		out.Amount = obj.Amount.Decimal
		if !obj.AmountReceived.IsZero() {
			out.Amount = obj.AmountReceived.Decimal
		}
		out.Status = statusFromType(eventType, obj.Status)
	}
	return out, nil
}

func statusFromType(eventType, fallback string) string {
	switch eventType {
	case "payment_intent.succeeded", "charge.succeeded":
		return "succeeded"
	case "payment_intent.payment_failed", "charge.failed":
		return "failed"
	case "payment_intent.canceled":
		return "canceled"
	}
	return fallback
}

// intentID accepts payment_intent as either an id string or an expanded object.
func intentID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if json.Unmarshal(raw, &id) == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &obj)
	return obj.ID
}

func (p *Provider) NormalizeStatus(native string) provider.Status {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "succeeded", "paid":
		return provider.StatusSuccess
	case "failed", "canceled", "requires_payment_method_failed":
		return provider.StatusFailed
	default:
		return provider.StatusPending
	}
}

func (p *Provider) ToMajorUnits(amount decimal.Decimal, currency string) decimal.Decimal {
	return base.MinorToMajor(amount, currency)
}

func (p *Provider) EventKind(event string) provider.EventKind {
	if strings.HasPrefix(event, "charge.refund") || strings.HasPrefix(event, "refund.") {
		return provider.KindRefund
	}
	return provider.KindPayment
}
