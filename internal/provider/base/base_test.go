package base

import (
	"context"
	"crypto/sha512"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"paybridge/internal/provider"

	"github.com/shopspring/decimal"
)

func TestMinorToMajor(t *testing.T) {
	cases := []struct {
		in       string
		currency string
		want     string
	}{
		{"1050", "USD", "10.5"},
		{"250000", "NGN", "2500"},
		{"1", "EUR", "0.01"},
		{"5000", "XOF", "5000"},
		{"1050.5", "USD", "10.51"},
		{"0", "USD", "0"},
	}
	for _, c := range cases {
		got := MinorToMajor(decimal.RequireFromString(c.in), c.currency)
		if !got.Equal(decimal.RequireFromString(c.want)) {
			t.Fatalf("MinorToMajor(%s %s) = %s, want %s", c.in, c.currency, got, c.want)
		}
	}
}

func TestMajorToMinor(t *testing.T) {
	if got := MajorToMinor(decimal.RequireFromString("10.5"), "USD"); got != 1050 {
		t.Fatalf("expected 1050, got %d", got)
	}
	if got := MajorToMinor(decimal.RequireFromString("10.005"), "USD"); got != 1001 {
		t.Fatalf("expected half-up rounding to 1001, got %d", got)
	}
	if got := MajorToMinor(decimal.NewFromInt(2500), "XOF"); got != 2500 {
		t.Fatalf("expected 2500, got %d", got)
	}
}

func TestEqualHex(t *testing.T) {
	sig := HMACHex(sha512.New, "secret", []byte("payload"))
	if !EqualHex(sig, sig) {
		t.Fatal("identical digests must match")
	}
	if !EqualHex(sig, "  "+sig+"\n") {
		t.Fatal("surrounding whitespace should be ignored")
	}
	if EqualHex(sig, "") {
		t.Fatal("empty candidate must not match")
	}
	if EqualHex(sig, HMACHex(sha512.New, "secret", []byte("payloae"))) {
		t.Fatal("different payloads must not match")
	}
}

func TestValidateRequest(t *testing.T) {
	req := provider.PaymentRequest{
		Reference: " INV-1 ",
		Amount:    decimal.NewFromInt(10),
		Currency:  "usd",
		Method:    "mobile_money",
		Customer:  provider.Customer{Phone: "+254 712-345-678"},
	}
	if err := ValidateRequest(&req); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if req.Reference != "INV-1" || req.Currency != "USD" || req.Method != provider.MethodMobileMoney {
		t.Fatalf("request not normalized: %+v", req)
	}
	if req.Customer.Phone != "254712345678" {
		t.Fatalf("phone not normalized: %s", req.Customer.Phone)
	}

	bad := provider.PaymentRequest{Reference: "X", Amount: decimal.Zero, Currency: "USD"}
	if err := ValidateRequest(&bad); provider.CodeOf(err) != provider.ErrInvalidAmount {
		t.Fatalf("expected INVALID_AMOUNT, got %v", err)
	}
	mm := provider.PaymentRequest{Reference: "X", Amount: decimal.NewFromInt(1), Currency: "XOF", Method: provider.MethodMobileMoney}
	if err := ValidateRequest(&mm); provider.CodeOf(err) != provider.ErrInvalidRequest {
		t.Fatalf("expected INVALID_REQUEST for missing phone, got %v", err)
	}
}

func TestRequestValidatorPrecision(t *testing.T) {
	v := NewRequestValidator(provider.Capabilities{
		Methods:    []provider.Method{provider.MethodCard},
		Countries:  []string{"*"},
		Currencies: []string{"USD", "XOF"},
		MinAmount:  decimal.NewFromInt(1),
	})
	req := provider.PaymentRequest{Reference: "R", Amount: decimal.RequireFromString("10.001"), Currency: "USD", Method: provider.MethodCard}
	if err := v.Validate(provider.ProviderStripe, &req); provider.CodeOf(err) != provider.ErrInvalidAmount {
		t.Fatalf("expected precision error, got %v", err)
	}
	req = provider.PaymentRequest{Reference: "R", Amount: decimal.RequireFromString("10.5"), Currency: "XOF", Method: provider.MethodCard}
	if err := v.Validate(provider.ProviderStripe, &req); provider.CodeOf(err) != provider.ErrInvalidAmount {
		t.Fatalf("XOF has no minor unit, got %v", err)
	}
	req = provider.PaymentRequest{Reference: "R", Amount: decimal.RequireFromString("10.5"), Currency: "EUR", Method: provider.MethodCard}
	if err := v.Validate(provider.ProviderStripe, &req); provider.CodeOf(err) != provider.ErrInvalidRequest {
		t.Fatalf("unsupported currency should be rejected, got %v", err)
	}
}

func TestHTTPClientClassifiesStatuses(t *testing.T) {
	status := int32(http.StatusServiceUnavailable)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer sk" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.WriteHeader(int(atomic.LoadInt32(&status)))
		w.Write([]byte(`{"ok":false}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(provider.ProviderPaystack, time.Second)
	c.SetBaseURL(srv.URL)
	c.SetHeader("Authorization", "Bearer sk")

	_, err := c.Get(context.Background(), "/x")
	if provider.CodeOf(err) != provider.ErrProviderDown || !provider.IsRetryable(err) {
		t.Fatalf("5xx should be retryable PROVIDER_DOWN, got %v", err)
	}

	atomic.StoreInt32(&status, http.StatusTooManyRequests)
	_, err = c.Get(context.Background(), "/x")
	if provider.CodeOf(err) != provider.ErrRateLimited || !provider.IsRetryable(err) {
		t.Fatalf("429 should be retryable, got %v", err)
	}

	atomic.StoreInt32(&status, http.StatusBadRequest)
	_, err = c.PostJSON(context.Background(), "/x", map[string]string{"a": "b"})
	if provider.CodeOf(err) != provider.ErrProviderRejected || provider.IsRetryable(err) {
		t.Fatalf("400 should be terminal, got %v", err)
	}

	c.SetHeader("Authorization", "Bearer wrong")
	_, err = c.Get(context.Background(), "/x")
	if provider.CodeOf(err) != provider.ErrAuthenticationFailed {
		t.Fatalf("401 should map to AUTHENTICATION_FAILED, got %v", err)
	}
}

func TestRetryStopsOnTerminalError(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{MaxRetries: 5, InitialInterval: time.Millisecond}, provider.ProviderSandbox,
		func(ctx context.Context) (int, error) {
			calls++
			return 0, provider.NewError(provider.ProviderSandbox, provider.ErrProviderRejected, "declined")
		})
	if calls != 1 {
		t.Fatalf("terminal error retried %d times", calls)
	}
	if provider.CodeOf(err) != provider.ErrProviderRejected {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRetryRecoversTransientError(t *testing.T) {
	calls := 0
	got, err := Retry(context.Background(), RetryPolicy{MaxRetries: 3, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}, provider.ProviderSandbox,
		func(ctx context.Context) (string, error) {
			calls++
			if calls < 3 {
				return "", provider.Transient(provider.ProviderSandbox, provider.ErrProviderDown, errors.New("boom"))
			}
			return "ok", nil
		})
	if err != nil || got != "ok" || calls != 3 {
		t.Fatalf("got %q err=%v calls=%d", got, err, calls)
	}
}

func TestRetryBoundedAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), RetryPolicy{MaxRetries: 2, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}, provider.ProviderSandbox,
		func(ctx context.Context) (int, error) {
			calls++
			return 0, provider.Transient(provider.ProviderSandbox, provider.ErrProviderDown, errors.New("down"))
		})
	if calls != 3 {
		t.Fatalf("expected 1 attempt + 2 retries, got %d", calls)
	}
	if !provider.IsRetryable(err) {
		t.Fatalf("last error should stay retryable: %v", err)
	}
}

func TestRetryCancelledIsRetryable(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Retry(ctx, DefaultRetryPolicy(), provider.ProviderSandbox, func(ctx context.Context) (int, error) {
		return 0, ctx.Err()
	})
	if provider.CodeOf(err) != provider.ErrCancelled || !provider.IsRetryable(err) {
		t.Fatalf("expected retryable CANCELLED, got %v", err)
	}
}
