package flutterwave

import (
	"encoding/json"
	"net/http"
	"strings"

	"paybridge/internal/provider"
	"paybridge/internal/provider/base"

	"github.com/shopspring/decimal"
)

type eventData struct {
	ID       base.FlexString  `json:"id"`
	TxRef    string           `json:"tx_ref"`
	FlwRef   string           `json:"flw_ref"`
	Status   string           `json:"status"`
	Amount   base.FlexDecimal `json:"amount"`
	Currency string           `json:"currency"`
}

// Sign returns the verif-hash value: hex SHA-256 of body followed by secret.
func Sign(secret string, body []byte) string {
	return base.SHA256Hex(body, []byte(secret))
}

func (p *Provider) ValidateWebhookSignature(headers http.Header, body []byte) bool {
	if p.cfg.SecretHash == "" {
		return true
	}
	return base.EqualHex(Sign(p.cfg.SecretHash, body), headers.Get(SignatureHeader))
}

func (p *Provider) ParseWebhook(_ http.Header, body []byte) (*provider.WebhookPayload, error) {
	var evt struct {
		Event     string    `json:"event"`
		EventType string    `json:"event.type"`
		Data      eventData `json:"data"`
	}
	if err := json.Unmarshal(body, &evt); err != nil {
		return nil, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "malformed flutterwave webhook", Raw: body, Err: err}
	}
	name := evt.Event
	if name == "" {
		name = evt.EventType
	}
	d := evt.Data
	return &provider.WebhookPayload{
		Provider:          p.Type(),
		EventID:           d.ID.String(),
		Event:             name,
		Reference:         d.TxRef,
		ProviderReference: d.ID.String(),
		Status:            d.Status,
		Amount:            d.Amount.Decimal,
		Currency:          strings.ToUpper(d.Currency),
		Raw:               append(json.RawMessage(nil), body...),
	}, nil
}

func (p *Provider) NormalizeStatus(native string) provider.Status {
	switch strings.ToLower(strings.TrimSpace(native)) {
	case "successful", "success", "completed":
		return provider.StatusSuccess
	case "failed", "cancelled":
		return provider.StatusFailed
	default:
		return provider.StatusPending
	}
}

// ToMajorUnits is the identity: Flutterwave already reports major units.
func (p *Provider) ToMajorUnits(amount decimal.Decimal, _ string) decimal.Decimal {
	return amount
}

func (p *Provider) EventKind(event string) provider.EventKind {
	if strings.HasPrefix(strings.ToLower(event), "refund") {
		return provider.KindRefund
	}
	return provider.KindPayment
}
