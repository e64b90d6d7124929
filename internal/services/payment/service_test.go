package payment

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/provider"
	"paybridge/internal/provider/base"
	"paybridge/internal/provider/cinetpay"
	"paybridge/internal/provider/sandbox"

	"github.com/shopspring/decimal"
)

// flaky fails with a retryable error a fixed number of times.
type flaky struct {
	*sandbox.Provider
	failures int32
	calls    int32
	lastURL  atomic.Value
}

func (f *flaky) InitiatePayment(ctx context.Context, req provider.PaymentRequest) (*provider.PaymentResponse, error) {
	n := atomic.AddInt32(&f.calls, 1)
	f.lastURL.Store(req.WebhookURL)
	if n <= f.failures {
		return nil, provider.Transient(provider.ProviderSandbox, provider.ErrProviderDown, nil)
	}
	return f.Provider.InitiatePayment(ctx, req)
}

func fastPolicy() base.RetryPolicy {
	return base.RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond, AttemptTimeout: time.Second}
}

func newService(p provider.Provider) (*Service, *provider.Registry) {
	reg := provider.NewRegistry()
	reg.RegisterProvider(p, provider.ProviderConfig{Enabled: true, Weight: 1, Environment: "sandbox"})
	router := provider.NewRouter(reg, provider.StrategyPriority, "sandbox")
	return NewService(reg, router, fastPolicy(), "https://pay.example.com/", nil), reg
}

func TestInitiateRetriesAndForcesWebhookURL(t *testing.T) {
	f := &flaky{Provider: sandbox.New(config.SandboxCfg{}), failures: 2}
	svc, _ := newService(f)

	resp, err := svc.Initiate(context.Background(), provider.PaymentRequest{
		Reference:  "TX-1",
		Amount:     decimal.NewFromInt(50),
		Currency:   "usd",
		WebhookURL: "https://attacker.example/hook",
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if f.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", f.calls)
	}
	if got := f.lastURL.Load().(string); got != "https://pay.example.com/webhooks/sandbox" {
		t.Fatalf("webhook url not forced: %s", got)
	}
	if resp.Status != provider.PaymentSuccess {
		t.Fatalf("unexpected status %s", resp.Status)
	}
}

func TestInitiateGivesUp(t *testing.T) {
	f := &flaky{Provider: sandbox.New(config.SandboxCfg{}), failures: 100}
	svc, _ := newService(f)
	_, err := svc.Initiate(context.Background(), provider.PaymentRequest{Reference: "TX-2", Amount: decimal.NewFromInt(5), Currency: "USD"})
	if provider.CodeOf(err) != provider.ErrProviderDown {
		t.Fatalf("expected PROVIDER_DOWN, got %v", err)
	}
	if f.calls != 4 {
		t.Fatalf("expected 1 attempt + 3 retries, got %d", f.calls)
	}
}

func TestInitiateValidationAndRouting(t *testing.T) {
	svc, _ := newService(sandbox.New(config.SandboxCfg{}))
	ctx := context.Background()

	_, err := svc.Initiate(ctx, provider.PaymentRequest{Reference: "", Amount: decimal.NewFromInt(5), Currency: "USD"})
	if provider.CodeOf(err) != provider.ErrInvalidRequest {
		t.Fatalf("expected INVALID_REQUEST, got %v", err)
	}
	_, err = svc.Initiate(ctx, provider.PaymentRequest{Reference: "X", Amount: decimal.NewFromInt(5), Currency: "JPY"})
	if provider.CodeOf(err) != provider.ErrNoProviderAvailable || provider.IsRetryable(err) {
		t.Fatalf("expected terminal NO_PROVIDER_AVAILABLE, got %v", err)
	}
}

func TestRefundCapabilities(t *testing.T) {
	reg := provider.NewRegistry()
	reg.RegisterProvider(sandbox.New(config.SandboxCfg{}), provider.ProviderConfig{Enabled: true})
	reg.RegisterProvider(cinetpay.New(config.CinetPayCfg{APIKey: "k"}, time.Second), provider.ProviderConfig{Enabled: true})
	svc := NewService(reg, provider.NewRouter(reg, provider.StrategyPriority, ""), fastPolicy(), "http://localhost", nil)
	ctx := context.Background()

	_, err := svc.Refund(ctx, "cinetpay", provider.RefundRequest{Reference: "X"})
	if provider.CodeOf(err) != provider.ErrRefundNotSupported {
		t.Fatalf("expected REFUND_NOT_SUPPORTED, got %v", err)
	}

	amt := decimal.NewFromInt(20)
	resp, err := svc.Refund(ctx, "sandbox", provider.RefundRequest{ProviderReference: "sbx_1", Reference: "TX-1", Amount: &amt})
	if err != nil || resp.Status != provider.StatusSuccess || !resp.Amount.Equal(amt) {
		t.Fatalf("sandbox refund: resp=%+v err=%v", resp, err)
	}

	_, err = svc.Refund(ctx, "nope", provider.RefundRequest{})
	if provider.CodeOf(err) != provider.ErrProviderNotFound {
		t.Fatalf("expected PROVIDER_NOT_FOUND, got %v", err)
	}
}

func TestHealth(t *testing.T) {
	svc, _ := newService(sandbox.New(config.SandboxCfg{}))
	h := svc.Health(context.Background())
	if len(h) != 1 || !h[0].Healthy || h[0].Provider != provider.ProviderSandbox {
		t.Fatalf("unexpected health: %+v", h)
	}
}
