package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is safe to use as a nil pointer; every method becomes a no-op.
type Metrics struct {
	webhookDeliveries *prometheus.CounterVec
	webhookDuration   *prometheus.HistogramVec
	outboundCalls     *prometheus.CounterVec
	outboundDuration  *prometheus.HistogramVec
	reconcileApplied  *prometheus.CounterVec
	dispatchQueue     prometheus.Gauge
}

// New registers the collectors on registerer, or the default registry when nil.
func New(registerer prometheus.Registerer, environment string) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	environment = strings.TrimSpace(environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{"service": "paybridge", "env": environment}

	webhookDeliveries := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "paybridge_webhook_deliveries_total",
			Help:        "Inbound webhook deliveries by provider and outcome.",
			ConstLabels: constLabels,
		},
		[]string{"provider", "outcome"}, // applied | duplicate | ignored | parse_failed | rejected | failed
	)
	webhookDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "paybridge_webhook_duration_seconds",
			Help:        "Time from receipt to acknowledgement of a webhook.",
			Buckets:     []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
			ConstLabels: constLabels,
		},
		[]string{"provider"},
	)
	outboundCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "paybridge_outbound_calls_total",
			Help:        "Outbound provider calls by operation and result code.",
			ConstLabels: constLabels,
		},
		[]string{"provider", "operation", "code"},
	)
	outboundDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:        "paybridge_outbound_duration_seconds",
			Help:        "Outbound provider call latency including retries.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		},
		[]string{"provider", "operation"},
	)
	reconcileApplied := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name:        "paybridge_reconcile_events_total",
			Help:        "Events pulled by reconciliation, by outcome.",
			ConstLabels: constLabels,
		},
		[]string{"provider", "outcome"},
	)
	dispatchQueue := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name:        "paybridge_dispatch_queue_depth",
			Help:        "Normalized events waiting for ledger hand-off.",
			ConstLabels: constLabels,
		},
	)

	registerer.MustRegister(
		webhookDeliveries,
		webhookDuration,
		outboundCalls,
		outboundDuration,
		reconcileApplied,
		dispatchQueue,
	)

	return &Metrics{
		webhookDeliveries: webhookDeliveries,
		webhookDuration:   webhookDuration,
		outboundCalls:     outboundCalls,
		outboundDuration:  outboundDuration,
		reconcileApplied:  reconcileApplied,
		dispatchQueue:     dispatchQueue,
	}
}

func (m *Metrics) ObserveWebhook(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.webhookDeliveries.WithLabelValues(provider, outcome).Inc()
	m.webhookDuration.WithLabelValues(provider).Observe(d.Seconds())
}

func (m *Metrics) ObserveOutbound(provider, operation, code string, d time.Duration) {
	if m == nil {
		return
	}
	if code == "" {
		code = "OK"
	}
	m.outboundCalls.WithLabelValues(provider, operation, code).Inc()
	m.outboundDuration.WithLabelValues(provider, operation).Observe(d.Seconds())
}

func (m *Metrics) IncReconciled(provider, outcome string) {
	if m == nil {
		return
	}
	m.reconcileApplied.WithLabelValues(provider, outcome).Inc()
}

func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.dispatchQueue.Set(float64(n))
}
