package paystack

import (
	"crypto/sha512"
	"encoding/json"
	"net/http"
	"strings"

	"paybridge/internal/provider"
	"paybridge/internal/provider/base"

	"github.com/shopspring/decimal"
)

type eventData struct {
	ID                   base.FlexString  `json:"id"`
	Reference            string           `json:"reference"`
	Status               string           `json:"status"`
	Amount               base.FlexDecimal `json:"amount"`
	Currency             string           `json:"currency"`
	TransactionReference string           `json:"transaction_reference"`
	Transaction          *struct {
		ID        base.FlexString `json:"id"`
		Reference string          `json:"reference"`
	} `json:"transaction"`
}

// Sign returns the x-paystack-signature value for body.
func Sign(secret string, body []byte) string {
	return base.HMACHex(sha512.New, secret, body)
}

// ValidateWebhookSignature checks HMAC-SHA512 of the raw body.
// Without a configured secret every callback is trusted.
func (p *Provider) ValidateWebhookSignature(headers http.Header, body []byte) bool {
	if p.cfg.SecretKey == "" {
		return true
	}
	return base.EqualHex(Sign(p.cfg.SecretKey, body), headers.Get(SignatureHeader))
}

func (p *Provider) ParseWebhook(_ http.Header, body []byte) (*provider.WebhookPayload, error) {
	var evt struct {
		Event string    `json:"event"`
		Data  eventData `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "malformed paystack webhook", Raw: body, Err: err}
	}
	d := evt.Data

	ref := d.Reference
	providerRef := d.ID.String()
	if p.EventKind(evt.Event) == provider.KindRefund {
		ref = d.TransactionReference
		if ref == "" && d.Transaction != nil {
			ref = d.Transaction.Reference
		}
		if d.Transaction != nil && d.Transaction.ID != "" {
			providerRef = d.Transaction.ID.String()
		}
	}

	status := d.Status
	if status == "" {
		// refund.processed, charge.success ...
		if i := strings.LastIndex(evt.Event, "."); i >= 0 {
			status = evt.Event[i+1:]
		}
	}

	return &provider.WebhookPayload{
		Provider:          p.Type(),
		EventID:           d.ID.String(),
		Event:             evt.Event,
		Reference:         ref,
		ProviderReference: providerRef,
		Status:            status,
		Amount:            d.Amount.Decimal,
		Currency:          strings.ToUpper(d.Currency),
		Raw:               append(json.RawMessage(nil), body...),
	}, nil
}

func (p *Provider) NormalizeStatus(native string) provider.Status {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "success", "processed":
		return provider.StatusSuccess
	case "failed", "reversed":
		return provider.StatusFailed
	default:
		// abandoned, ongoing, pending, queued: the payer may still complete it
		return provider.StatusPending
	}
}

// ToMajorUnits converts kobo/pesewas to naira/cedis.
func (p *Provider) ToMajorUnits(amount decimal.Decimal, currency string) decimal.Decimal {
	return base.MinorToMajor(amount, currency)
}

func (p *Provider) EventKind(event string) provider.EventKind {
	if strings.HasPrefix(strings.ToLower(event), "refund.") {
		return provider.KindRefund
	}
	return provider.KindPayment
}
