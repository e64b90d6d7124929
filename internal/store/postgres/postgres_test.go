package postgres

import (
	"context"
	"os"
	"strings"
	"testing"

	"paybridge/internal/domain/event"
	"paybridge/internal/provider"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// These tests need a disposable database: PAYBRIDGE_TEST_DSN=postgres://...
func newRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("PAYBRIDGE_TEST_DSN")
	if dsn == "" {
		t.Skip("PAYBRIDGE_TEST_DSN not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)
	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("schema: %v", err)
	}
	return NewRepo(pool)
}

func TestClaimOnConflict(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()
	key := "test:" + uuid.NewString() + ":PAYMENT_SETTLED"
	t.Cleanup(func() { _ = r.Release(ctx, key) })

	ok, err := r.Claim(ctx, key)
	if err != nil || !ok {
		t.Fatalf("first claim: ok=%v err=%v", ok, err)
	}
	ok, err = r.Claim(ctx, key)
	if err != nil || ok {
		t.Fatalf("second claim: ok=%v err=%v", ok, err)
	}
}

func TestDeliveryRoundTrip(t *testing.T) {
	r := newRepo(t)
	ctx := context.Background()

	body := `{"event": "??",  "data":{"z":1,"a":2}}`
	d := event.NewDelivery(provider.ProviderPaystack, event.SourceWebhook, []byte(body))
	if err := r.Save(ctx, d); err != nil {
		t.Fatalf("save received: %v", err)
	}
	_ = d.Finish(event.OutcomeParseFailed, nil)
	if err := r.Save(ctx, d); err != nil {
		t.Fatalf("save finished: %v", err)
	}

	items, err := r.ListForReview(ctx, 50)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for _, it := range items {
		if it.ID == d.ID {
			if it.Outcome != event.OutcomeParseFailed || it.Provider != provider.ProviderPaystack {
				t.Fatalf("unexpected row: %+v", it)
			}
			if string(it.Raw) != body {
				t.Fatalf("stored payload was rewritten: %s", it.Raw)
			}
			return
		}
	}
	t.Fatal("finished parse failure not listed for review")
}

func TestSchemaStoresPayloadAsText(t *testing.T) {
	if strings.Contains(schema, "JSONB") {
		t.Fatal("payload_json must be JSON so the audit copy keeps whitespace and key order")
	}
	if !strings.Contains(schema, "payload_json  JSON NOT NULL") {
		t.Fatal("webhook_deliveries.payload_json column missing")
	}
}
