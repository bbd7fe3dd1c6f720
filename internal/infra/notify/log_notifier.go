// Package notify holds outbound user-notification adapters. The platform's
// push/email pipeline lives in another service; this process only needs a
// delivery seam, so the default adapter records the event in the structured
// log for that pipeline to consume.
package notify

import (
	"context"

	"github.com/rs/zerolog"

	"rahala-payments/internal/domain/ports/adapter"
)

var _ adapter.Notifier = (*LogNotifier)(nil)

type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(logger *zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: logger.With().Str("component", "Notifier").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, recipientID, eventType string, payload map[string]any) error {
	n.log.Info().
		Str("recipient_id", recipientID).
		Str("event_type", eventType).
		Fields(payload).
		Msg("notification emitted")
	return nil
}
