// Package webhook turns provider callbacks into canonical events applied at most once.
package webhook

import (
	"errors"
	"fmt"
	"net/http"

	"paybridge/internal/provider"
)

// ErrUnknownProvider is returned when the path names no registered adapter.
var ErrUnknownProvider = errors.New("unknown provider")

// Validator authenticates a delivery before anything parses it.
type Validator struct {
	registry *provider.Registry
	strict   bool
}

// NewValidator builds a validator. In strict mode adapters without a webhook
// secret reject every callback instead of trusting it.
func NewValidator(reg *provider.Registry, strict bool) *Validator {
	return &Validator{registry: reg, strict: strict}
}

func (v *Validator) Validate(name string, headers http.Header, body []byte) (provider.Provider, error) {
	p, err := v.registry.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	if v.strict && !p.WebhookSecretConfigured() {
		return nil, provider.NewError(p.Type(), provider.ErrAuthenticationFailed, "webhook secret not configured")
	}
	if !p.ValidateWebhookSignature(headers, body) {
		return nil, provider.NewError(p.Type(), provider.ErrAuthenticationFailed, "invalid webhook signature")
	}
	return p, nil
}
