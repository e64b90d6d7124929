package httpx

import (
	"net/http"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/http/handlers"
	middlewarex "paybridge/internal/http/middleware"
	"paybridge/internal/provider"
	"paybridge/internal/services/payment"
	"paybridge/internal/store/repositories"
	"paybridge/internal/webhook"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultMaxBody = 1 << 20

// RouterDependencies holds all dependencies for the HTTP router
type RouterDependencies struct {
	Config     config.Cfg
	Registry   *provider.Registry
	Webhooks   *webhook.Handler
	Payments   *payment.Service
	Deliveries repositories.DeliveryRepository
	Reconciler handlers.Reconciler // optional
	Gatherer   prometheus.Gatherer // optional, defaults to the global registry
}

func NewRouter(deps RouterDependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middlewarex.RequestLogger)
	r.Use(chimw.Recoverer)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	maxBody := deps.Config.Webhook.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBody
	}

	r.Get("/health", handlers.Health(deps.Payments))
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// public, authenticated per provider by signature
	r.Post("/webhooks/{provider}", handlers.Webhook(deps.Webhooks, maxBody))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(chimw.Logger)
		r.Use(chimw.Timeout(60 * time.Second))
		r.Use(middlewarex.BearerAuth(deps.Config.Sec.APIToken))

		r.Post("/payments", handlers.InitiatePayment(deps.Payments))
		r.Post("/refunds/{provider}", handlers.RefundPayment(deps.Payments))
		r.Get("/providers", handlers.ListProviders(deps.Registry))
		r.Get("/deliveries/review", handlers.ListReview(deps.Deliveries))
		if deps.Reconciler != nil {
			r.Post("/reconcile", handlers.TriggerReconcile(deps.Reconciler))
		}
	})

	return r
}
