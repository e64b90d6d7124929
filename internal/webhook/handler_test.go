package webhook

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"paybridge/internal/config"
	"paybridge/internal/domain/event"
	"paybridge/internal/provider"
	"paybridge/internal/provider/paystack"
	"paybridge/internal/provider/sandbox"
	"paybridge/internal/store/memory"
	"paybridge/internal/store/repositories"

	"github.com/shopspring/decimal"
)

type recordingLedger struct {
	mu     sync.Mutex
	events []provider.NormalizedWebhookEvent
	fail   error
}

func (l *recordingLedger) Apply(_ context.Context, evt provider.NormalizedWebhookEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	l.events = append(l.events, evt)
	return nil
}

func (l *recordingLedger) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.events)
}

// countingPaystack records whether parsing was reached.
type countingPaystack struct {
	*paystack.Provider
	parses int32
}

func (c *countingPaystack) ParseWebhook(h http.Header, body []byte) (*provider.WebhookPayload, error) {
	atomic.AddInt32(&c.parses, 1)
	return c.Provider.ParseWebhook(h, body)
}

type fixture struct {
	handler    *Handler
	ledger     *recordingLedger
	deliveries *memory.Deliveries
	registry   *provider.Registry
	paystack   *countingPaystack
}

func newFixture(t *testing.T, strict bool, ledger repositories.Ledger) *fixture {
	t.Helper()
	reg := provider.NewRegistry()
	reg.RegisterProvider(sandbox.New(config.SandboxCfg{}), provider.ProviderConfig{Enabled: true, Weight: 1})
	ps := &countingPaystack{Provider: paystack.New(config.PaystackCfg{SecretKey: "sk_test"}, 0)}
	reg.RegisterProvider(ps, provider.ProviderConfig{Enabled: true, Weight: 1})

	rec := &recordingLedger{}
	if ledger == nil {
		ledger = rec
	}
	deliveries := memory.NewDeliveries()
	h := NewHandler(NewValidator(reg, strict), NewMapper(), memory.NewDedupe(), ledger, deliveries, nil)
	return &fixture{handler: h, ledger: rec, deliveries: deliveries, registry: reg, paystack: ps}
}

func TestEndToEndSandbox(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()
	sbx, _ := f.registry.GetProvider(provider.ProviderSandbox)

	req := provider.PaymentRequest{Reference: "TX-1", Amount: decimal.NewFromInt(50), Currency: "USD", Method: provider.MethodCard}
	resp, err := sbx.InitiatePayment(ctx, req)
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if resp.Status != provider.PaymentSuccess {
		t.Fatalf("TX-1/50/USD should succeed, got %s", resp.Status)
	}

	body := sandbox.SimulateWebhook(req)
	res, err := f.handler.Handle(ctx, "sandbox", http.Header{}, body)
	if err != nil {
		t.Fatalf("handle: %v", err)
	}
	if res.Outcome != event.OutcomeApplied {
		t.Fatalf("expected applied, got %s", res.Outcome)
	}
	if res.Event.Status != provider.StatusSuccess || res.Event.EventType != provider.EventPaymentSuccess {
		t.Fatalf("normalized status should match initiation: %+v", res.Event)
	}
	if res.Event.Reference != "TX-1" || !res.Event.Amount.Equal(decimal.NewFromInt(50)) || res.Event.Currency != "USD" {
		t.Fatalf("unexpected normalized event: %+v", res.Event)
	}

	res, err = f.handler.Handle(ctx, "sandbox", http.Header{}, body)
	if err != nil || res.Outcome != event.OutcomeDuplicate {
		t.Fatalf("second delivery: outcome=%s err=%v", res.Outcome, err)
	}
	if f.ledger.count() != 1 {
		t.Fatalf("ledger saw %d events, want 1", f.ledger.count())
	}
	if n := len(f.deliveries.All()); n != 2 {
		t.Fatalf("both deliveries should be audited, got %d", n)
	}
}

func TestConcurrentDuplicatesApplyOnce(t *testing.T) {
	f := newFixture(t, false, nil)
	body := sandbox.SimulateWebhook(provider.PaymentRequest{Reference: "TX-2", Amount: decimal.NewFromInt(10), Currency: "USD", Method: provider.MethodCard})

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.handler.Handle(context.Background(), "sandbox", nil, body); err != nil {
				t.Errorf("handle: %v", err)
			}
		}()
	}
	wg.Wait()
	if f.ledger.count() != 1 {
		t.Fatalf("ledger saw %d events, want 1", f.ledger.count())
	}
}

func TestBadSignatureNeverParses(t *testing.T) {
	f := newFixture(t, false, nil)
	body := []byte(`{"event":"charge.success","data":{"reference":"REF-1","status":"success","amount":5000,"currency":"NGN"}}`)
	h := http.Header{}
	h.Set(paystack.SignatureHeader, paystack.Sign("wrong", body))

	_, err := f.handler.Handle(context.Background(), "paystack", h, body)
	if provider.CodeOf(err) != provider.ErrAuthenticationFailed {
		t.Fatalf("expected AUTHENTICATION_FAILED, got %v", err)
	}
	if atomic.LoadInt32(&f.paystack.parses) != 0 {
		t.Fatal("parse must not run after a failed signature check")
	}
	if f.ledger.count() != 0 || len(f.deliveries.All()) != 0 {
		t.Fatal("rejected delivery must not change state")
	}

	h.Set(paystack.SignatureHeader, paystack.Sign("sk_test", body))
	res, err := f.handler.Handle(context.Background(), "paystack", h, body)
	if err != nil || res.Outcome != event.OutcomeApplied {
		t.Fatalf("signed delivery: outcome=%s err=%v", res.Outcome, err)
	}
	if !res.Event.Amount.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("5000 kobo should be 50 NGN, got %s", res.Event.Amount)
	}
}

func TestUnknownProvider(t *testing.T) {
	f := newFixture(t, false, nil)
	_, err := f.handler.Handle(context.Background(), "mpesa", nil, []byte(`{}`))
	if !errors.Is(err, ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestStrictModeRejectsUnsignedAdapters(t *testing.T) {
	f := newFixture(t, true, nil)
	unsigned := paystack.New(config.PaystackCfg{}, 0)
	f.registry.RegisterProvider(unsigned, provider.ProviderConfig{Enabled: true})

	_, err := f.handler.Handle(context.Background(), "paystack", nil, []byte(`{"event":"charge.success","data":{"reference":"R"}}`))
	if provider.CodeOf(err) != provider.ErrAuthenticationFailed {
		t.Fatalf("strict mode should reject, got %v", err)
	}

	// the simulator never needs a secret
	body := sandbox.SimulateWebhook(provider.PaymentRequest{Reference: "TX-3", Amount: decimal.NewFromInt(1), Currency: "USD", Method: provider.MethodCard})
	if _, err := f.handler.Handle(context.Background(), "sandbox", nil, body); err != nil {
		t.Fatalf("sandbox in strict mode: %v", err)
	}
}

func TestParseFailureIsAcknowledged(t *testing.T) {
	f := newFixture(t, false, nil)
	for _, body := range []string{`not json`, `{"event":"payment.updated","scenario":"SUCCESS"}`} {
		res, err := f.handler.Handle(context.Background(), "sandbox", nil, []byte(body))
		if err != nil || res.Outcome != event.OutcomeParseFailed {
			t.Fatalf("%s: outcome=%s err=%v", body, res.Outcome, err)
		}
	}
	review, _ := f.deliveries.ListForReview(context.Background(), 10)
	if len(review) != 2 {
		t.Fatalf("parse failures should be flagged for review, got %d", len(review))
	}
	if f.ledger.count() != 0 {
		t.Fatal("nothing should reach the ledger")
	}
}

func TestLedgerFailureReleasesClaim(t *testing.T) {
	ledger := &recordingLedger{fail: errors.New("bus down")}
	f := newFixture(t, false, ledger)
	body := sandbox.SimulateWebhook(provider.PaymentRequest{Reference: "TX-4", Amount: decimal.NewFromInt(7), Currency: "USD", Method: provider.MethodCard})

	res, err := f.handler.Handle(context.Background(), "sandbox", nil, body)
	if err == nil || res.Outcome != event.OutcomeFailed {
		t.Fatalf("expected failure, got outcome=%s err=%v", res.Outcome, err)
	}

	ledger.mu.Lock()
	ledger.fail = nil
	ledger.mu.Unlock()
	res, err = f.handler.Handle(context.Background(), "sandbox", nil, body)
	if err != nil || res.Outcome != event.OutcomeApplied {
		t.Fatalf("redelivery after recovery: outcome=%s err=%v", res.Outcome, err)
	}
}

func TestPendingRefundIgnored(t *testing.T) {
	f := newFixture(t, false, nil)
	body := []byte(`{"event":"refund.pending","data":{"status":"pending","amount":1000,"currency":"NGN","transaction_reference":"REF-9"}}`)
	h := http.Header{}
	h.Set(paystack.SignatureHeader, paystack.Sign("sk_test", body))

	res, err := f.handler.Handle(context.Background(), "paystack", h, body)
	if err != nil || res.Outcome != event.OutcomeIgnored {
		t.Fatalf("outcome=%s err=%v", res.Outcome, err)
	}
	if f.ledger.count() != 0 {
		t.Fatal("pending refund must not reach the ledger")
	}
}

func TestSettledPhaseTakesFirstOutcome(t *testing.T) {
	f := newFixture(t, false, nil)
	p, _ := f.registry.GetProvider(provider.ProviderSandbox)
	ok := provider.WebhookPayload{Provider: provider.ProviderSandbox, Reference: "TX-5", Status: "SUCCESS", Event: "payment.updated"}
	failed := ok
	failed.Status = "FAILED"

	if res, err := f.handler.Apply(context.Background(), p, ok); err != nil || res.Outcome != event.OutcomeApplied {
		t.Fatalf("first: outcome=%s err=%v", res.Outcome, err)
	}
	if res, err := f.handler.Apply(context.Background(), p, failed); err != nil || res.Outcome != event.OutcomeDuplicate {
		t.Fatalf("contradicting outcome should be a duplicate: outcome=%s err=%v", res.Outcome, err)
	}
	if f.ledger.events[0].Status != provider.StatusSuccess {
		t.Fatal("first terminal outcome wins")
	}
}

func TestAbandonedCheckoutDoesNotSettle(t *testing.T) {
	f := newFixture(t, false, nil)
	ctx := context.Background()
	p, _ := f.registry.GetProvider(provider.ProviderPaystack)

	// the row a transaction listing returns before the payer finishes
	abandoned := provider.WebhookPayload{
		Provider: provider.ProviderPaystack, EventID: "7", Event: "charge.abandoned", Reference: "REF-7",
		Status: "abandoned", Amount: decimal.NewFromInt(5000), Currency: "NGN",
	}
	res, err := f.handler.Apply(ctx, p, abandoned)
	if err != nil {
		t.Fatalf("apply abandoned: %v", err)
	}
	if res.Event != nil && res.Event.Status != provider.StatusPending {
		t.Fatalf("abandoned checkout must stay PENDING, got %s", res.Event.Status)
	}

	body := []byte(`{"event":"charge.success","data":{"id":7,"reference":"REF-7","status":"success","amount":5000,"currency":"NGN"}}`)
	h := http.Header{}
	h.Set(paystack.SignatureHeader, paystack.Sign("sk_test", body))
	res, err = f.handler.Handle(ctx, "paystack", h, body)
	if err != nil || res.Outcome != event.OutcomeApplied {
		t.Fatalf("charge.success after abandoned: outcome=%s err=%v", res.Outcome, err)
	}
	if res.Event.EventType != provider.EventPaymentSuccess {
		t.Fatalf("expected PAYMENT_SUCCESS, got %s", res.Event.EventType)
	}
	for _, evt := range f.ledger.events {
		if evt.EventType == provider.EventPaymentFailed {
			t.Fatal("ledger must never see a failure for a paid checkout")
		}
	}
}
