package base

import (
	"regexp"
	"strings"

	"paybridge/internal/provider"

	"github.com/shopspring/decimal"
)

var (
	currencyPattern  = regexp.MustCompile(`^[A-Z]{3}$`)
	referencePattern = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,100}$`)
	msisdnPattern    = regexp.MustCompile(`^[1-9]\d{7,14}$`)
)

// NormalizePhone strips formatting and returns E.164 digits without the plus sign.
func NormalizePhone(phone string) (string, bool) {
	normalized := strings.NewReplacer(" ", "", "-", "", "+", "", "(", "", ")", "").Replace(phone)
	if strings.HasPrefix(normalized, "00") {
		normalized = normalized[2:]
	}
	return normalized, msisdnPattern.MatchString(normalized)
}

// AmountValidator checks an amount against a rail's limits
type AmountValidator struct {
	min, max decimal.Decimal
	currency string
}

func NewAmountValidator(currency string, min, max decimal.Decimal) *AmountValidator {
	return &AmountValidator{min: min, max: max, currency: currency}
}

// ValidateAmount validates payment amount
func (v *AmountValidator) ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return &provider.ProviderError{Code: provider.ErrInvalidAmount, Message: "amount must be greater than zero"}
	}
	if amount.LessThan(v.min) {
		return &provider.ProviderError{Code: provider.ErrInvalidAmount, Message: "amount must be at least " + v.min.String() + " " + v.currency}
	}
	if !v.max.IsZero() && amount.GreaterThan(v.max) {
		return &provider.ProviderError{Code: provider.ErrInvalidAmount, Message: "amount must not exceed " + v.max.String() + " " + v.currency}
	}
	if !amount.Equal(amount.Round(MinorExponent(v.currency))) {
		return &provider.ProviderError{Code: provider.ErrInvalidAmount, Message: "amount has more precision than " + v.currency + " allows"}
	}
	return nil
}

// RequestValidator checks a PaymentRequest against an adapter's capabilities.
type RequestValidator struct {
	caps provider.Capabilities
}

func NewRequestValidator(caps provider.Capabilities) *RequestValidator {
	return &RequestValidator{caps: caps}
}

// ValidateRequest validates and normalizes req in place.
func ValidateRequest(req *provider.PaymentRequest) error {
	req.Reference = strings.TrimSpace(req.Reference)
	if !referencePattern.MatchString(req.Reference) {
		return &provider.ProviderError{Code: provider.ErrInvalidRequest, Message: "reference is required and must be 1-100 URL-safe characters"}
	}

	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))
	if !currencyPattern.MatchString(req.Currency) {
		return &provider.ProviderError{Code: provider.ErrInvalidRequest, Message: "currency must be a 3-letter ISO code"}
	}
	if !req.Amount.IsPositive() {
		return &provider.ProviderError{Code: provider.ErrInvalidAmount, Message: "amount must be greater than zero"}
	}

	req.Method = provider.Method(strings.ToUpper(string(req.Method)))
	if req.Method == "" {
		req.Method = provider.MethodCard
	}
	req.Country = strings.ToUpper(strings.TrimSpace(req.Country))

	if req.Customer.Phone != "" {
		phone, ok := NormalizePhone(req.Customer.Phone)
		if !ok {
			return &provider.ProviderError{Code: provider.ErrInvalidRequest, Message: "invalid phone number format"}
		}
		req.Customer.Phone = phone
	}
	if req.Method == provider.MethodMobileMoney && req.Customer.Phone == "" {
		return &provider.ProviderError{Code: provider.ErrInvalidRequest, Message: "mobile money payments require a customer phone"}
	}
	return nil
}

// Validate runs ValidateRequest and then the rail specific limits.
func (v *RequestValidator) Validate(p provider.ProviderType, req *provider.PaymentRequest) error {
	if err := ValidateRequest(req); err != nil {
		return tag(p, err)
	}
	if !v.caps.Covers(req.Currency, req.Country, req.Method) {
		return provider.NewError(p, provider.ErrInvalidRequest, "%s/%s/%s is not supported", req.Currency, req.Country, req.Method)
	}
	if err := NewAmountValidator(req.Currency, v.caps.MinAmount, v.caps.MaxAmount).ValidateAmount(req.Amount); err != nil {
		return tag(p, err)
	}
	return nil
}

func tag(p provider.ProviderType, err error) error {
	if pe, ok := err.(*provider.ProviderError); ok {
		pe.Provider = p
	}
	return err
}
