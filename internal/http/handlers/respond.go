package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"paybridge/internal/provider"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// writeProviderError answers with the stable code only; wrapped transport
// errors stay in the logs.
func writeProviderError(w http.ResponseWriter, err error) {
	var pe *provider.ProviderError
	if !errors.As(err, &pe) {
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: provider.ErrUnknownError, Message: "internal error", Retryable: true})
		return
	}
	writeJSON(w, statusFor(pe.Code), errorBody{Code: pe.Code, Message: pe.Message, Retryable: pe.Retryable})
}

func statusFor(code string) int {
	switch code {
	case provider.ErrInvalidRequest, provider.ErrInvalidAmount:
		return http.StatusBadRequest
	case provider.ErrProviderNotFound:
		return http.StatusNotFound
	case provider.ErrNoProviderAvailable, provider.ErrRefundNotSupported, provider.ErrNotSupported, provider.ErrProviderRejected:
		return http.StatusUnprocessableEntity
	case provider.ErrRateLimited, provider.ErrProviderDown:
		return http.StatusServiceUnavailable
	case provider.ErrCancelled:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}
