// Package bootstrap builds the provider registry from configuration.
package bootstrap

import (
	"paybridge/internal/config"
	"paybridge/internal/provider"
	"paybridge/internal/provider/cinetpay"
	"paybridge/internal/provider/flutterwave"
	"paybridge/internal/provider/paystack"
	"paybridge/internal/provider/sandbox"
	"paybridge/internal/provider/stripe"

	"github.com/rs/zerolog/log"
)

// NewRegistry registers every adapter that has credentials. The sandbox is
// always registered; whether it is routable depends on its route config.
func NewRegistry(cfg config.Cfg) *provider.Registry {
	reg := provider.NewRegistry()
	pc := cfg.Providers
	timeout := cfg.Outbound.Timeout

	if pc.Stripe.SecretKey != "" {
		reg.RegisterProvider(stripe.New(pc.Stripe, timeout), routeConfig(pc.Stripe.Route))
	}
	if pc.Paystack.SecretKey != "" {
		reg.RegisterProvider(paystack.New(pc.Paystack, timeout), routeConfig(pc.Paystack.Route))
	}
	if pc.Flutterwave.SecretKey != "" {
		reg.RegisterProvider(flutterwave.New(pc.Flutterwave, timeout), routeConfig(pc.Flutterwave.Route))
	}
	if pc.CinetPay.APIKey != "" {
		reg.RegisterProvider(cinetpay.New(pc.CinetPay, timeout), routeConfig(pc.CinetPay.Route))
	}
	reg.RegisterProvider(sandbox.New(pc.Sandbox), routeConfig(pc.Sandbox.Route))

	log.Info().Int("count", len(reg.ListProviders())).Msg("provider registry ready")
	return reg
}

func routeConfig(r config.RouteCfg) provider.ProviderConfig {
	return provider.ProviderConfig{
		Environment: r.Environment,
		Enabled:     r.Enabled,
		Weight:      r.Weight,
		Priority:    r.Priority,
	}
}
