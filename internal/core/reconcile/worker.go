package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"paybridge/internal/metrics"
	"paybridge/internal/provider"
	"paybridge/internal/webhook"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Applier feeds a pulled payload through the dedupe path.
type Applier interface {
	Apply(ctx context.Context, p provider.Provider, payload provider.WebhookPayload) (webhook.Result, error)
}

// Worker periodically pulls settlement events from providers that support it
// and applies the ones whose webhooks never arrived.
type Worker struct {
	registry *provider.Registry
	applier  Applier
	metrics  *metrics.Metrics
	every    time.Duration
	overlap  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	lastRun time.Time
}

func NewWorker(reg *provider.Registry, applier Applier, every, overlap time.Duration, m *metrics.Metrics) *Worker {
	if every <= 0 {
		every = 5 * time.Minute
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Worker{registry: reg, applier: applier, metrics: m, every: every, overlap: overlap, now: time.Now}
}

func (w *Worker) Run(ctx context.Context) {
	log.Info().Dur("every", w.every).Dur("overlap", w.overlap).Msg("reconcile worker: started")
	t := time.NewTicker(w.every)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("reconcile worker: stopping")
			return
		case <-t.C:
			if err := w.RunOnce(ctx); err != nil {
				log.Error().Err(err).Msg("reconcile run failed")
			}
		}
	}
}

// window returns [lastRun-overlap, now]; the first run looks back one interval.
func (w *Worker) window() (time.Time, time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	to := w.now().UTC()
	from := w.lastRun
	if from.IsZero() {
		from = to.Add(-w.every)
	}
	return from.Add(-w.overlap), to
}

// RunOnce reconciles every eligible provider concurrently. The window only
// advances when all providers succeeded, so a failed pull is retried next tick.
func (w *Worker) RunOnce(ctx context.Context) error {
	from, to := w.window()

	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs []error
	)
	for _, info := range w.registry.GetAllProviderInfo() {
		if !info.Config.Enabled || !info.Capabilities.SupportsReconciliation {
			continue
		}
		p, err := w.registry.GetProvider(info.Type)
		if err != nil {
			continue
		}
		g.Go(func() error {
			if err := w.reconcileProvider(ctx, p, from, to); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	w.mu.Lock()
	w.lastRun = to
	w.mu.Unlock()
	return nil
}

func (w *Worker) reconcileProvider(ctx context.Context, p provider.Provider, from, to time.Time) error {
	name := string(p.Type())
	payloads, err := p.Reconcile(ctx, from, to)
	if err != nil {
		if provider.CodeOf(err) == provider.ErrNotSupported {
			return nil
		}
		return fmt.Errorf("reconcile %s: %w", name, err)
	}

	counts := map[string]int{}
	for _, payload := range payloads {
		res, err := w.applier.Apply(ctx, p, payload)
		if err != nil {
			// the claim was released, the next run retries it
			log.Error().Err(err).Str("provider", name).Str("reference", payload.Reference).Msg("reconciled event not applied")
			w.metrics.IncReconciled(name, "failed")
			counts["failed"]++
			continue
		}
		w.metrics.IncReconciled(name, string(res.Outcome))
		counts[string(res.Outcome)]++
	}

	log.Info().
		Str("provider", name).
		Time("from", from).
		Time("to", to).
		Int("pulled", len(payloads)).
		Int("applied", counts["applied"]).
		Int("duplicate", counts["duplicate"]).
		Msg("reconcile: provider done")
	return nil
}
