package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/provider"
	"paybridge/internal/provider/cinetpay"
	"paybridge/internal/provider/flutterwave"
	"paybridge/internal/provider/paystack"
	"paybridge/internal/provider/stripe"
)

func TestSignedHeadersValidate(t *testing.T) {
	body := []byte(`{"event":"charge.success"}`)
	now := time.Now()

	adapters := map[provider.ProviderType]provider.Provider{
		provider.ProviderStripe:      stripe.New(config.StripeCfg{SecretKey: "sk", WebhookSecret: "whsec"}, 0),
		provider.ProviderPaystack:    paystack.New(config.PaystackCfg{SecretKey: "whsec"}, 0),
		provider.ProviderFlutterwave: flutterwave.New(config.FlutterwaveCfg{SecretKey: "sk", SecretHash: "whsec"}, 0),
		provider.ProviderCinetPay:    cinetpay.New(config.CinetPayCfg{APIKey: "k", SiteID: "1", SecretKey: "whsec"}, 0),
	}
	for name, p := range adapters {
		h, err := signedHeaders(name, "whsec", body, now)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !p.ValidateWebhookSignature(h, body) {
			t.Fatalf("%s rejected headers built by sign", name)
		}
	}

	if _, err := signedHeaders("nope", "x", body, now); err == nil {
		t.Fatal("unknown provider should fail")
	}
}

func TestSimulateCommand(t *testing.T) {
	cmd := simulateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--reference", "R1", "--amount", "100"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out.String(), `"bucket": 74`) || !strings.Contains(out.String(), `"FAILED"`) {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}
