package handlers

import (
	"encoding/json"
	"net/http"

	"paybridge/internal/provider"
	"paybridge/internal/services/payment"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

type paymentReq struct {
	provider.PaymentRequest
	Provider string `json:"provider,omitempty"` // optional pin, skips routing
}

// InitiatePayment handles POST /api/v1/payments.
func InitiatePayment(svc *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in paymentReq
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Code: provider.ErrInvalidRequest, Message: "invalid JSON"})
			return
		}

		var (
			resp *provider.PaymentResponse
			err  error
		)
		if in.Provider != "" {
			resp, err = svc.InitiateWith(r.Context(), in.Provider, in.PaymentRequest)
		} else {
			resp, err = svc.Initiate(r.Context(), in.PaymentRequest)
		}
		if err != nil {
			zerolog.Ctx(r.Context()).Warn().Err(err).Str("reference", in.Reference).Msg("payment not initiated")
			writeProviderError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, resp)
	}
}

// RefundPayment handles POST /api/v1/refunds/{provider}.
func RefundPayment(svc *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in provider.RefundRequest
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Code: provider.ErrInvalidRequest, Message: "invalid JSON"})
			return
		}
		resp, err := svc.Refund(r.Context(), chi.URLParam(r, "provider"), in)
		if err != nil {
			writeProviderError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
