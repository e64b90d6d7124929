package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"paybridge/internal/domain/event"
	"paybridge/internal/metrics"
	"paybridge/internal/provider"
	"paybridge/internal/store/repositories"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrQueueFull = errors.New("dispatch queue full")
	ErrClosed    = errors.New("dispatcher closed")
)

// Dispatcher queues events in memory and delivers them to the next ledger
// from worker goroutines, so webhook requests return before slow hand-offs.
type Dispatcher struct {
	next    repositories.Ledger
	release repositories.DedupeStore
	metrics *metrics.Metrics

	queue      chan provider.NormalizedWebhookEvent
	workers    int
	maxRetries uint64
	interval   time.Duration

	// cancelled when Close gives up waiting; workers then release instead of delivering
	run   context.Context
	abort context.CancelFunc

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

func NewDispatcher(next repositories.Ledger, workers, size int, m *metrics.Metrics) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if size <= 0 {
		size = 1024
	}
	run, abort := context.WithCancel(context.Background())
	return &Dispatcher{
		run:        run,
		abort:      abort,
		next:       next,
		metrics:    m,
		queue:      make(chan provider.NormalizedWebhookEvent, size),
		workers:    workers,
		maxRetries: 5,
		interval:   200 * time.Millisecond,
	}
}

// WithRelease makes exhausted deliveries release their dedupe claim, so a
// provider redelivery or the next reconciliation run can apply them again.
func (d *Dispatcher) WithRelease(store repositories.DedupeStore) *Dispatcher {
	d.release = store
	return d
}

// WithRetry overrides the per-event retry budget.
func (d *Dispatcher) WithRetry(maxRetries uint64, interval time.Duration) *Dispatcher {
	d.maxRetries = maxRetries
	d.interval = interval
	return d
}

// Start launches the workers. They exit once Close has drained the queue.
func (d *Dispatcher) Start() {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.work(i)
	}
	log.Info().Int("workers", d.workers).Int("queue_size", cap(d.queue)).Msg("dispatcher started")
}

// Apply enqueues without blocking. A full queue is an error so the webhook
// is answered with 5xx and the provider redelivers later.
func (d *Dispatcher) Apply(_ context.Context, evt provider.NormalizedWebhookEvent) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- evt:
		d.metrics.SetQueueDepth(len(d.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops intake and waits for queued events, bounded by ctx. When ctx
// expires first, in-flight retries are cancelled and every event that was not
// handed off has its dedupe claim released, so the provider's redelivery or
// the next reconciliation run applies it instead of seeing a duplicate.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		d.abort()
		return nil
	case <-ctx.Done():
	}

	d.abort()
	dropped := 0
	for evt := range d.queue {
		d.releaseClaim(evt, "dispatcher closed before hand-off")
		dropped++
	}
	log.Warn().Int("released", dropped).Msg("dispatcher close timed out, queued events released")
	return ctx.Err()
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for evt := range d.queue {
		d.metrics.SetQueueDepth(len(d.queue))
		if d.run.Err() != nil {
			d.releaseClaim(evt, "dispatcher closed before hand-off")
			continue
		}
		d.deliver(id, evt)
	}
}

func (d *Dispatcher) deliver(worker int, evt provider.NormalizedWebhookEvent) {
	key := event.DedupeKey(evt)
	ctx := d.run

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = d.interval
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, d.maxRetries), ctx)

	err := backoff.RetryNotify(func() error {
		return d.next.Apply(ctx, evt)
	}, b, func(err error, wait time.Duration) {
		log.Warn().Err(err).Int("worker", worker).Str("dedupe_key", key).Dur("retry_in", wait).Msg("ledger hand-off failed, retrying")
	})
	if err == nil {
		return
	}

	log.Error().Err(err).Int("worker", worker).Str("dedupe_key", key).Msg("ledger hand-off exhausted retries")
	d.releaseClaim(evt, "ledger hand-off failed")
}

func (d *Dispatcher) releaseClaim(evt provider.NormalizedWebhookEvent, reason string) {
	key := event.DedupeKey(evt)
	if d.release == nil {
		log.Error().Str("dedupe_key", key).Str("reason", reason).Msg("event dropped with its claim held, needs manual replay")
		return
	}
	// the run context may already be cancelled here
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.release.Release(ctx, key); err != nil {
		log.Error().Err(err).Str("dedupe_key", key).Str("reason", reason).Msg("dedupe release failed, event needs manual replay")
		return
	}
	log.Warn().Str("dedupe_key", key).Str("reason", reason).Msg("dedupe claim released")
}
