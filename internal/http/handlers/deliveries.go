package handlers

import (
	"context"
	"net/http"
	"strconv"

	"paybridge/internal/store/repositories"

	"github.com/rs/zerolog"
)

// ListReview handles GET /api/v1/deliveries/review: deliveries that were
// acknowledged but not applied.
func ListReview(repo repositories.DeliveryRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
				limit = n
			}
		}
		items, err := repo.ListForReview(r.Context(), limit)
		if err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("list review deliveries")
			http.Error(w, "db error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"data": items})
	}
}

// Reconciler runs one reconciliation pass.
type Reconciler interface {
	RunOnce(ctx context.Context) error
}

// TriggerReconcile handles POST /api/v1/reconcile.
func TriggerReconcile(rc Reconciler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := rc.RunOnce(r.Context()); err != nil {
			zerolog.Ctx(r.Context()).Error().Err(err).Msg("manual reconcile failed")
			writeJSON(w, http.StatusBadGateway, map[string]any{"status": "partial"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}
