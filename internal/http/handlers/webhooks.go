package handlers

import (
	"errors"
	"io"
	"net/http"

	"paybridge/internal/domain/event"
	"paybridge/internal/webhook"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Webhook receives POST /webhooks/{provider}. Anything the pipeline accepts,
// duplicates and unparseable bodies included, is acknowledged with 200.
func Webhook(h *webhook.Handler, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "provider")

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				http.Error(w, "payload too large", http.StatusRequestEntityTooLarge)
				return
			}
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		res, err := h.Handle(r.Context(), name, r.Header, body)
		if err != nil {
			switch {
			case errors.Is(err, webhook.ErrUnknownProvider):
				http.Error(w, "not found", http.StatusNotFound)
			case res.Outcome == event.OutcomeRejected:
				http.Error(w, "unauthorized", http.StatusUnauthorized)
			default:
				zerolog.Ctx(r.Context()).Error().Err(err).Str("provider", name).Msg("webhook not applied")
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}
}
