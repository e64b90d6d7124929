package postgres

import (
	"context"

	"paybridge/internal/domain/event"
	"paybridge/internal/provider"

	"github.com/jackc/pgx/v5"
)

// Save upserts by id so a delivery can be written on receipt and again when finished.
func (r *Repo) Save(ctx context.Context, d *event.Delivery) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO webhook_deliveries
			(id, provider, source, event_id, event_type, reference, dedupe_key,
			 outcome, needs_review, error, payload_json, received_at, processed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		ON CONFLICT (id) DO UPDATE
		  SET event_id     = EXCLUDED.event_id,
		      event_type   = EXCLUDED.event_type,
		      reference    = EXCLUDED.reference,
		      dedupe_key   = EXCLUDED.dedupe_key,
		      outcome      = EXCLUDED.outcome,
		      needs_review = EXCLUDED.needs_review,
		      error        = EXCLUDED.error,
		      processed_at = EXCLUDED.processed_at`,
		d.ID, string(d.Provider), string(d.Source), d.EventID, string(d.EventType), d.Reference, d.DedupeKey,
		string(d.Outcome), d.NeedsReview, d.Error, []byte(d.Raw), d.ReceivedAt, d.ProcessedAt,
	)
	return err
}

func (r *Repo) ListForReview(ctx context.Context, limit int) ([]*event.Delivery, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `
		SELECT id, provider, source, event_id, event_type, reference, dedupe_key,
		       outcome, needs_review, error, payload_json, received_at, processed_at
		FROM webhook_deliveries
		WHERE needs_review
		ORDER BY received_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*event.Delivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDelivery(row pgx.Row) (*event.Delivery, error) {
	var (
		d                           event.Delivery
		prov, src, evtType, outcome string
		raw                         []byte
	)
	err := row.Scan(&d.ID, &prov, &src, &d.EventID, &evtType, &d.Reference, &d.DedupeKey,
		&outcome, &d.NeedsReview, &d.Error, &raw, &d.ReceivedAt, &d.ProcessedAt)
	if err != nil {
		return nil, err
	}
	d.Provider = provider.ProviderType(prov)
	d.Source = event.Source(src)
	d.EventType = provider.EventType(evtType)
	d.Outcome = event.Outcome(outcome)
	d.Raw = raw
	return &d, nil
}
