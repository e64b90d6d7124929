package cinetpay

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"paybridge/internal/config"
	"paybridge/internal/provider"

	"github.com/shopspring/decimal"
)

const notifyJSON = `{"cpm_trans_id":"ORDER-7","cpm_site_id":"445160","cpm_payid":"P-1","cpm_amount":"1500","cpm_currency":"xof","cpm_result":"00","cpm_trans_status":"ACCEPTED"}`

func TestSignatureIntegrity(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	p := New(config.CinetPayCfg{SecretKey: "cp-secret"}, time.Second).WithClock(func() time.Time { return now })
	body := []byte(notifyJSON)
	h := SignedHeaders("cp-secret", body, now)

	if !p.ValidateWebhookSignature(h, body) {
		t.Fatal("valid signature rejected")
	}
	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x20
		if p.ValidateWebhookSignature(h, mutated) {
			t.Fatalf("mutation at byte %d accepted", i)
		}
	}

	// the timestamp is part of the signed message
	h2 := h.Clone()
	h2.Set(TimestampHeader, strconv.FormatInt(now.Unix()+1, 10))
	if p.ValidateWebhookSignature(h2, body) {
		t.Fatal("changed timestamp accepted")
	}

	h3 := h.Clone()
	h3.Del(TimestampHeader)
	if p.ValidateWebhookSignature(h3, body) {
		t.Fatal("missing timestamp accepted")
	}
}

func TestToleranceOptIn(t *testing.T) {
	sent := time.Unix(1_700_000_000, 0)
	later := sent.Add(time.Hour)
	body := []byte(notifyJSON)
	h := SignedHeaders("s", body, sent)

	lenient := New(config.CinetPayCfg{SecretKey: "s"}, time.Second).WithClock(func() time.Time { return later })
	if !lenient.ValidateWebhookSignature(h, body) {
		t.Fatal("without a tolerance old timestamps are accepted")
	}

	strict := New(config.CinetPayCfg{SecretKey: "s", Tolerance: 5 * time.Minute}, time.Second).WithClock(func() time.Time { return later })
	if strict.ValidateWebhookSignature(h, body) {
		t.Fatal("stale timestamp accepted with tolerance set")
	}
}

func TestParseJSONAndForm(t *testing.T) {
	p := New(config.CinetPayCfg{}, time.Second)

	payload, err := p.ParseWebhook(nil, []byte(notifyJSON))
	if err != nil {
		t.Fatalf("parse json: %v", err)
	}
	if payload.Reference != "ORDER-7" || payload.Currency != "XOF" || !payload.Amount.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if p.NormalizeStatus(payload.Status) != provider.StatusSuccess {
		t.Fatal("ACCEPTED should map to SUCCESS")
	}
	if string(payload.Raw) != notifyJSON {
		t.Fatalf("raw json changed: %s", payload.Raw)
	}

	form := url.Values{}
	form.Set("cpm_trans_id", "ORDER-8")
	form.Set("cpm_amount", "2000")
	form.Set("cpm_currency", "XOF")
	form.Set("cpm_result", "627")
	form.Set("cpm_trans_status", "REFUSED")
	formBody := form.Encode()
	payload, err = p.ParseWebhook(nil, []byte(formBody))
	if err != nil {
		t.Fatalf("parse form: %v", err)
	}
	if payload.Reference != "ORDER-8" || p.NormalizeStatus(payload.Status) != provider.StatusFailed {
		t.Fatalf("unexpected form payload: %+v", payload)
	}
	var rawForm string
	if err := json.Unmarshal(payload.Raw, &rawForm); err != nil || rawForm != formBody {
		t.Fatalf("raw should carry the form body verbatim, got %s (%v)", payload.Raw, err)
	}

	if _, err := p.ParseWebhook(nil, []byte("garbage")); provider.CodeOf(err) != provider.ErrParseFailed {
		t.Fatalf("expected PARSE_FAILED, got %v", err)
	}
}

func TestStatusFallsBackToResultCode(t *testing.T) {
	p := New(config.CinetPayCfg{}, time.Second)
	payload, err := p.ParseWebhook(nil, []byte(`{"cpm_trans_id":"X","cpm_result":"00"}`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if p.NormalizeStatus(payload.Status) != provider.StatusSuccess {
		t.Fatalf("result code 00 should be SUCCESS, got %q", payload.Status)
	}
	for _, s := range []string{"", "WAITING_CUSTOMER_PAYMENT", "623", "canceled"} {
		got := p.NormalizeStatus(s)
		if got != provider.StatusPending && got != provider.StatusFailed && got != provider.StatusSuccess {
			t.Fatalf("status %q escaped the normalized set", s)
		}
	}
}

func TestRefundNotSupported(t *testing.T) {
	p := New(config.CinetPayCfg{}, time.Second)
	_, err := p.RefundPayment(context.Background(), provider.RefundRequest{Reference: "X"})
	if provider.CodeOf(err) != provider.ErrRefundNotSupported || provider.IsRetryable(err) {
		t.Fatalf("expected terminal REFUND_NOT_SUPPORTED, got %v", err)
	}
}

func TestInitiateMobileMoney(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"201","message":"CREATED","data":{"payment_token":"tok-1","payment_url":"https://checkout.cinetpay.com/payment/tok-1"}}`))
	}))
	defer srv.Close()

	p := New(config.CinetPayCfg{APIKey: "a", SiteID: "1", BaseURL: srv.URL}, time.Second)
	resp, err := p.InitiatePayment(context.Background(), provider.PaymentRequest{
		Reference: "ORDER-9",
		Amount:    decimal.NewFromInt(1000),
		Currency:  "XOF",
		Method:    provider.MethodMobileMoney,
		Customer:  provider.Customer{Phone: "2250700000000"},
	})
	if err != nil {
		t.Fatalf("initiate: %v", err)
	}
	if resp.Status != provider.PaymentRequiresAction || resp.Action == nil || resp.ProviderReference != "tok-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	_, err = p.InitiatePayment(context.Background(), provider.PaymentRequest{
		Reference: "ORDER-10", Amount: decimal.NewFromInt(1002), Currency: "XOF", Method: provider.MethodCard,
	})
	if provider.CodeOf(err) != provider.ErrInvalidAmount {
		t.Fatalf("XOF amount not multiple of 5 should fail, got %v", err)
	}
}

func TestInitiateRejectsFractionalAmount(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"code":"201","message":"CREATED","data":{"payment_token":"tok-2","payment_url":"https://checkout.cinetpay.com/payment/tok-2"}}`))
	}))
	defer srv.Close()

	p := New(config.CinetPayCfg{APIKey: "a", SiteID: "1", BaseURL: srv.URL}, time.Second)
	_, err := p.InitiatePayment(context.Background(), provider.PaymentRequest{
		Reference: "ORDER-11", Amount: decimal.RequireFromString("150.75"), Currency: "USD", Method: provider.MethodCard,
	})
	if provider.CodeOf(err) != provider.ErrInvalidAmount {
		t.Fatalf("fractional USD amount should fail with INVALID_AMOUNT, got %v", err)
	}
	if hits != 0 {
		t.Fatalf("no checkout should be created for a fractional amount, server saw %d calls", hits)
	}

	if _, err := p.InitiatePayment(context.Background(), provider.PaymentRequest{
		Reference: "ORDER-12", Amount: decimal.RequireFromString("150.00"), Currency: "USD", Method: provider.MethodCard,
	}); err != nil {
		t.Fatalf("whole USD amount should pass: %v", err)
	}
}
