package payment

import (
	"context"
	"strings"
	"time"

	"paybridge/internal/metrics"
	"paybridge/internal/provider"
	"paybridge/internal/provider/base"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Service drives outbound payment operations through the router.
type Service struct {
	registry *provider.Registry
	router   *provider.Router
	policy   base.RetryPolicy
	baseURL  string
	metrics  *metrics.Metrics
}

// NewService creates a new payment service. baseURL is the public address
// providers call back on.
func NewService(reg *provider.Registry, router *provider.Router, policy base.RetryPolicy, baseURL string, m *metrics.Metrics) *Service {
	return &Service{
		registry: reg,
		router:   router,
		policy:   policy,
		baseURL:  strings.TrimRight(baseURL, "/"),
		metrics:  m,
	}
}

// WebhookURL is where provider p must deliver callbacks.
func (s *Service) WebhookURL(p provider.ProviderType) string {
	return s.baseURL + "/webhooks/" + string(p)
}

// Initiate validates req, routes it to a provider and starts the payment.
func (s *Service) Initiate(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if err := base.ValidateRequest(&req); err != nil {
		return nil, err
	}
	p, err := s.router.Route(ctx, provider.RouteRequest{
		Currency: req.Currency,
		Country:  req.Country,
		Method:   req.Method,
		Amount:   req.Amount,
	})
	if err != nil {
		return nil, err
	}
	return s.initiate(ctx, p, req)
}

// InitiateWith skips routing and uses the named provider.
func (s *Service) InitiateWith(ctx context.Context, name string, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	if err := base.ValidateRequest(&req); err != nil {
		return nil, err
	}
	p, err := s.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	if cfg, ok := s.registry.Config(p.Type()); ok && !cfg.Enabled {
		return nil, provider.NewError(p.Type(), provider.ErrNoProviderAvailable, "provider is disabled")
	}
	return s.initiate(ctx, p, req)
}

func (s *Service) initiate(ctx context.Context, p provider.Provider, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	// callbacks always come back through our own endpoint
	req.WebhookURL = s.WebhookURL(p.Type())

	start := time.Now()
	resp, err := base.Retry(ctx, s.policy, p.Type(), func(ctx context.Context) (*provider.PaymentResponse, error) {
		return p.InitiatePayment(ctx, req)
	})
	s.observe(p.Type(), "initiate", err, start)
	if err != nil {
		log.Error().Err(err).
			Str("provider", string(p.Type())).
			Str("reference", req.Reference).
			Str("code", provider.CodeOf(err)).
			Msg("initiate payment failed")
		return nil, err
	}

	log.Info().
		Str("provider", string(p.Type())).
		Str("reference", req.Reference).
		Str("provider_reference", resp.ProviderReference).
		Str("status", string(resp.Status)).
		Dur("took", time.Since(start)).
		Msg("payment initiated")
	return resp, nil
}

// Refund refunds through the named provider after checking its capabilities.
func (s *Service) Refund(ctx context.Context, name string, req provider.RefundRequest) (*provider.RefundResponse, error) {
	p, err := s.registry.Lookup(name)
	if err != nil {
		return nil, err
	}
	caps := p.Capabilities()
	if !caps.SupportsRefund {
		return nil, provider.NewError(p.Type(), provider.ErrRefundNotSupported, "provider does not support refunds")
	}
	if req.Amount != nil {
		if !req.Amount.IsPositive() {
			return nil, provider.NewError(p.Type(), provider.ErrInvalidAmount, "refund amount must be greater than zero")
		}
		if !caps.SupportsPartialRefund {
			return nil, provider.NewError(p.Type(), provider.ErrRefundNotSupported, "provider does not support partial refunds")
		}
	}
	req.Currency = strings.ToUpper(strings.TrimSpace(req.Currency))

	start := time.Now()
	resp, err := base.Retry(ctx, s.policy, p.Type(), func(ctx context.Context) (*provider.RefundResponse, error) {
		return p.RefundPayment(ctx, req)
	})
	s.observe(p.Type(), "refund", err, start)
	if err != nil {
		log.Error().Err(err).Str("provider", string(p.Type())).Str("reference", req.Reference).Msg("refund failed")
		return nil, err
	}
	log.Info().
		Str("provider", string(p.Type())).
		Str("reference", req.Reference).
		Str("refund_reference", resp.RefundReference).
		Str("status", string(resp.Status)).
		Msg("refund requested")
	return resp, nil
}

// ProviderHealth is the result of one health probe.
type ProviderHealth struct {
	Provider provider.ProviderType `json:"provider"`
	Healthy  bool                  `json:"healthy"`
	Code     string                `json:"code,omitempty"`
}

// Health probes every registered provider concurrently.
func (s *Service) Health(ctx context.Context) []ProviderHealth {
	types := s.registry.ListProviders()
	out := make([]ProviderHealth, len(types))

	var g errgroup.Group
	g.SetLimit(8)
	for i, t := range types {
		i, t := i, t
		g.Go(func() error {
			out[i] = ProviderHealth{Provider: t, Healthy: true}
			p, err := s.registry.GetProvider(t)
			if err == nil {
				hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err = p.HealthCheck(hctx)
				cancel()
			}
			if err != nil && provider.CodeOf(err) != provider.ErrNotSupported {
				out[i].Healthy = false
				out[i].Code = provider.CodeOf(err)
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (s *Service) observe(p provider.ProviderType, op string, err error, start time.Time) {
	code := ""
	if err != nil {
		code = provider.CodeOf(err)
	}
	s.metrics.ObserveOutbound(string(p), op, code, time.Since(start))
}
