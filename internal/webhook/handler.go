package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"paybridge/internal/domain/event"
	"paybridge/internal/metrics"
	"paybridge/internal/provider"
	"paybridge/internal/store/repositories"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Pipeline stages, logged under the "stage" key.
const (
	StageReceived         = "RECEIVED"
	StageSignatureChecked = "SIGNATURE_CHECKED"
	StageParsed           = "PARSED"
	StageNormalized       = "NORMALIZED"
	StageDeduped          = "DEDUPED"
	StageAcknowledged     = "ACKNOWLEDGED"
)

// Result is what the caller needs to answer the provider.
type Result struct {
	Outcome    event.Outcome
	DeliveryID uuid.UUID
	Event      *provider.NormalizedWebhookEvent
}

// Handler runs validate, map, claim and hand-off for each delivery.
type Handler struct {
	validator  *Validator
	mapper     *Mapper
	dedupe     repositories.DedupeStore
	ledger     repositories.Ledger
	deliveries repositories.DeliveryRepository
	metrics    *metrics.Metrics
}

func NewHandler(
	validator *Validator,
	mapper *Mapper,
	dedupe repositories.DedupeStore,
	ledger repositories.Ledger,
	deliveries repositories.DeliveryRepository,
	m *metrics.Metrics,
) *Handler {
	return &Handler{
		validator:  validator,
		mapper:     mapper,
		dedupe:     dedupe,
		ledger:     ledger,
		deliveries: deliveries,
		metrics:    m,
	}
}

// Handle processes one inbound delivery. A nil error means the provider must
// be acknowledged, including duplicates and unparseable bodies.
func (h *Handler) Handle(ctx context.Context, name string, headers http.Header, body []byte) (Result, error) {
	start := time.Now()
	logger := log.With().Str("provider", name).Int("bytes", len(body)).Logger()
	logger.Debug().Str("stage", StageReceived).Msg("webhook received")

	p, err := h.validator.Validate(name, headers, body)
	if err != nil {
		if !errors.Is(err, ErrUnknownProvider) {
			logger.Warn().Err(err).Str("stage", StageReceived).Msg("webhook rejected")
		}
		h.metrics.ObserveWebhook(name, string(event.OutcomeRejected), time.Since(start))
		return Result{Outcome: event.OutcomeRejected}, err
	}
	logger.Debug().Str("stage", StageSignatureChecked).Msg("signature ok")

	d := event.NewDelivery(p.Type(), event.SourceWebhook, body)
	evt, err := h.mapper.Map(p, headers, body)
	res := h.settle(ctx, logger, d, evt, err)
	h.metrics.ObserveWebhook(string(p.Type()), string(res.result.Outcome), time.Since(start))
	return res.result, res.err
}

// Apply feeds a payload pulled by reconciliation through the same dedupe path.
func (h *Handler) Apply(ctx context.Context, p provider.Provider, payload provider.WebhookPayload) (Result, error) {
	logger := log.With().Str("provider", string(p.Type())).Str("source", string(event.SourceReconcile)).Logger()
	d := event.NewDelivery(p.Type(), event.SourceReconcile, payload.Raw)
	evt, err := h.mapper.Normalize(p, payload)
	res := h.settle(ctx, logger, d, evt, err)
	return res.result, res.err
}

type settled struct {
	result Result
	err    error
}

func (h *Handler) settle(ctx context.Context, logger zerolog.Logger, d *event.Delivery, evt *provider.NormalizedWebhookEvent, mapErr error) settled {
	res := Result{DeliveryID: d.ID, Event: evt}

	switch {
	case errors.Is(mapErr, ErrIgnored):
		d.Reference = evt.Reference
		d.EventID = evt.EventID
		h.finish(ctx, logger, d, event.OutcomeIgnored, nil)
		res.Outcome = event.OutcomeIgnored
		logger.Info().Str("stage", StageAcknowledged).Str("reference", evt.Reference).Msg("webhook ignored, no state change")
		return settled{result: res}
	case mapErr != nil:
		// acknowledged so the provider stops retrying; kept for manual review
		h.finish(ctx, logger, d, event.OutcomeParseFailed, mapErr)
		res.Outcome = event.OutcomeParseFailed
		logger.Warn().Err(mapErr).Str("stage", StageParsed).Str("delivery_id", d.ID.String()).Msg("webhook parse failed")
		return settled{result: res}
	}

	d.Attach(*evt)
	logger = logger.With().Str("reference", evt.Reference).Str("event_type", string(evt.EventType)).Logger()
	logger.Debug().Str("stage", StageNormalized).Str("status", string(evt.Status)).Msg("webhook normalized")

	key := d.DedupeKey
	claimed, err := h.dedupe.Claim(ctx, key)
	if err != nil {
		h.finish(ctx, logger, d, event.OutcomeFailed, err)
		res.Outcome = event.OutcomeFailed
		return settled{result: res, err: fmt.Errorf("dedupe claim: %w", err)}
	}
	logger.Debug().Str("stage", StageDeduped).Bool("first", claimed).Msg("dedupe checked")

	if !claimed {
		h.finish(ctx, logger, d, event.OutcomeDuplicate, nil)
		res.Outcome = event.OutcomeDuplicate
		logger.Info().Str("stage", StageAcknowledged).Str("dedupe_key", key).Msg("duplicate webhook acknowledged")
		return settled{result: res}
	}

	if err := h.ledger.Apply(ctx, *evt); err != nil {
		if rerr := h.dedupe.Release(ctx, key); rerr != nil {
			logger.Error().Err(rerr).Str("dedupe_key", key).Msg("dedupe release failed, redelivery will be treated as duplicate")
		}
		h.finish(ctx, logger, d, event.OutcomeFailed, err)
		res.Outcome = event.OutcomeFailed
		return settled{result: res, err: fmt.Errorf("ledger hand-off: %w", err)}
	}

	h.finish(ctx, logger, d, event.OutcomeApplied, nil)
	res.Outcome = event.OutcomeApplied
	logger.Info().Str("stage", StageAcknowledged).Str("dedupe_key", key).Msg("webhook applied")
	return settled{result: res}
}

// finish records the delivery. The audit write never changes the answer to the provider.
func (h *Handler) finish(ctx context.Context, logger zerolog.Logger, d *event.Delivery, o event.Outcome, cause error) {
	_ = d.Finish(o, cause)
	if h.deliveries == nil {
		return
	}
	if err := h.deliveries.Save(ctx, d); err != nil {
		logger.Error().Err(err).Str("delivery_id", d.ID.String()).Msg("save delivery failed")
	}
}
