package events

import (
	"context"

	"paybridge/internal/domain/event"
	"paybridge/internal/provider"

	"github.com/rs/zerolog/log"
)

// LogLedger writes events to the log. Used when no broker is configured.
type LogLedger struct{}

func (LogLedger) Apply(_ context.Context, evt provider.NormalizedWebhookEvent) error {
	log.Info().
		Str("dedupe_key", event.DedupeKey(evt)).
		Str("provider", string(evt.Provider)).
		Str("event_type", string(evt.EventType)).
		Str("status", string(evt.Status)).
		Str("reference", evt.Reference).
		Str("amount", evt.Amount.String()).
		Str("currency", evt.Currency).
		Msg("ledger event")
	return nil
}
