package webhook

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"paybridge/internal/provider"
)

// ErrIgnored marks a well-formed event that carries no state change,
// such as a refund that is still pending.
var ErrIgnored = errors.New("event carries no state change")

// Mapper converts adapter payloads to NormalizedWebhookEvent.
type Mapper struct {
	now func() time.Time
}

func NewMapper() *Mapper { return &Mapper{now: time.Now} }

// Map parses body with the adapter and normalizes the result.
func (m *Mapper) Map(p provider.Provider, headers http.Header, body []byte) (*provider.NormalizedWebhookEvent, error) {
	payload, err := p.ParseWebhook(headers, body)
	if err != nil {
		var pe *provider.ProviderError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &provider.ProviderError{Provider: p.Type(), Code: provider.ErrParseFailed, Message: "unparseable webhook", Raw: body, Err: err}
	}
	return m.Normalize(p, *payload)
}

// Normalize applies the adapter's status, unit and kind mapping.
func (m *Mapper) Normalize(p provider.Provider, payload provider.WebhookPayload) (*provider.NormalizedWebhookEvent, error) {
	ref := strings.TrimSpace(payload.Reference)
	if ref == "" {
		return nil, provider.NewError(p.Type(), provider.ErrParseFailed, "webhook has no merchant reference")
	}

	status := p.NormalizeStatus(payload.Status)
	evtType, ok := eventType(p.EventKind(payload.Event), status)
	evt := &provider.NormalizedWebhookEvent{
		Provider:          p.Type(),
		EventID:           payload.EventID,
		EventType:         evtType,
		Status:            status,
		Reference:         ref,
		ProviderReference: payload.ProviderReference,
		Amount:            p.ToMajorUnits(payload.Amount, payload.Currency),
		Currency:          strings.ToUpper(payload.Currency),
		ReceivedAt:        m.now().UTC(),
		Raw:               payload.Raw,
	}
	if !ok {
		return evt, ErrIgnored
	}
	return evt, nil
}

func eventType(kind provider.EventKind, status provider.Status) (provider.EventType, bool) {
	if kind == provider.KindRefund {
		switch status {
		case provider.StatusSuccess:
			return provider.EventRefundSuccess, true
		case provider.StatusFailed:
			return provider.EventRefundFailed, true
		default:
			return "", false
		}
	}
	switch status {
	case provider.StatusSuccess:
		return provider.EventPaymentSuccess, true
	case provider.StatusFailed:
		return provider.EventPaymentFailed, true
	default:
		return provider.EventPaymentCreated, true
	}
}
