package config

import (
	"strings"
	"testing"
	"time"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.App.Env != "sandbox" || cfg.App.Port != "8080" {
		t.Fatalf("unexpected app defaults: %+v", cfg.App)
	}
	if cfg.Sec.StrictSignatures {
		t.Fatal("strict signatures should be off outside production")
	}
	if !cfg.Providers.Sandbox.Route.Enabled || cfg.Providers.Sandbox.Route.Environment != "sandbox" {
		t.Fatalf("sandbox should be enabled by default: %+v", cfg.Providers.Sandbox.Route)
	}
	if cfg.Providers.Stripe.Route.Enabled {
		t.Fatal("stripe must stay disabled without a secret key")
	}
	if cfg.Providers.Stripe.Tolerance != 5*time.Minute {
		t.Fatalf("expected 5m stripe tolerance, got %s", cfg.Providers.Stripe.Tolerance)
	}
	if cfg.Providers.CinetPay.Tolerance != 0 {
		t.Fatalf("cinetpay freshness check must be off by default, got %s", cfg.Providers.CinetPay.Tolerance)
	}
	if cfg.Webhook.MaxBodyBytes != 1<<20 {
		t.Fatalf("unexpected body limit %d", cfg.Webhook.MaxBodyBytes)
	}
}

func TestParseProviderOverrides(t *testing.T) {
	t.Setenv("PAYSTACK_SECRET_KEY", "sk_test_x")
	t.Setenv("PAYSTACK_WEIGHT", "7")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("APP_BASE_URL", "https://pay.example.com/")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.Providers.Paystack.Route.Enabled || cfg.Providers.Paystack.Route.Weight != 7 {
		t.Fatalf("paystack route not applied: %+v", cfg.Providers.Paystack.Route)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("brokers not split: %v", cfg.Kafka.Brokers)
	}
	if cfg.App.BaseURL != "https://pay.example.com" {
		t.Fatalf("trailing slash not trimmed: %s", cfg.App.BaseURL)
	}
}

func TestParseProductionGates(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	_, err := Parse()
	if err == nil || !strings.Contains(err.Error(), "API_TOKEN") {
		t.Fatalf("expected API_TOKEN error, got %v", err)
	}

	t.Setenv("API_TOKEN", "tok")
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !cfg.Sec.StrictSignatures {
		t.Fatal("strict signatures should default on in production")
	}
	if cfg.Providers.Sandbox.Route.Enabled {
		t.Fatal("sandbox must be disabled by default in production")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	t.Setenv("ROUTING_STRATEGY", "random")
	t.Setenv("STRIPE_WEIGHT", "-1")
	_, err := Parse()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"ROUTING_STRATEGY", "STRIPE_WEIGHT"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}
