// Package memory holds process-local stores for tests and sandbox runs.
package memory

import (
	"context"
	"sync"

	"paybridge/internal/domain/event"
)

// Dedupe claims keys with sync.Map.LoadOrStore, which is atomic per key.
type Dedupe struct {
	keys sync.Map
}

func NewDedupe() *Dedupe { return &Dedupe{} }

func (d *Dedupe) Claim(_ context.Context, key string) (bool, error) {
	_, loaded := d.keys.LoadOrStore(key, struct{}{})
	return !loaded, nil
}

func (d *Dedupe) Release(_ context.Context, key string) error {
	d.keys.Delete(key)
	return nil
}

// Deliveries is an append-only in-memory audit log.
type Deliveries struct {
	mu    sync.Mutex
	items []*event.Delivery
}

func NewDeliveries() *Deliveries { return &Deliveries{} }

func (s *Deliveries) Save(_ context.Context, d *event.Delivery) error {
	cp := *d
	s.mu.Lock()
	s.items = append(s.items, &cp)
	s.mu.Unlock()
	return nil
}

func (s *Deliveries) ListForReview(_ context.Context, limit int) ([]*event.Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*event.Delivery
	for i := len(s.items) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		if s.items[i].NeedsReview {
			cp := *s.items[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// All returns every saved delivery in arrival order.
func (s *Deliveries) All() []*event.Delivery {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*event.Delivery, len(s.items))
	copy(out, s.items)
	return out
}
