package postgres

import (
	"context"
	"fmt"
)

// Claim relies on the primary key: of two concurrent inserts only one affects a row.
func (r *Repo) Claim(ctx context.Context, key string) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO webhook_dedupe (dedupe_key) VALUES ($1) ON CONFLICT (dedupe_key) DO NOTHING`, key)
	if err != nil {
		return false, fmt.Errorf("dedupe claim %s: %w", key, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *Repo) Release(ctx context.Context, key string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM webhook_dedupe WHERE dedupe_key = $1`, key); err != nil {
		return fmt.Errorf("dedupe release %s: %w", key, err)
	}
	return nil
}
