package handlers

import (
	"net/http"

	"paybridge/internal/provider"
	"paybridge/internal/services/payment"
)

// ListProviders handles GET /api/v1/providers.
func ListProviders(reg *provider.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": reg.GetAllProviderInfo()})
	}
}

// Health probes every provider. It answers 503 only when none is healthy.
func Health(svc *payment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := svc.Health(r.Context())
		status, healthy := "ok", 0
		for _, h := range results {
			if h.Healthy {
				healthy++
			}
		}
		code := http.StatusOK
		switch {
		case healthy == 0 && len(results) > 0:
			status, code = "down", http.StatusServiceUnavailable
		case healthy < len(results):
			status = "degraded"
		}
		writeJSON(w, code, map[string]any{"status": status, "providers": results})
	}
}
