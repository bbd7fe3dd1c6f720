package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"rahala-payments/internal/usecase"
)

// ExpiryWorker periodically downgrades lapsed subscribers and closes
// promotions that ran past their end date.
type ExpiryWorker struct {
	interval time.Duration
	subUC    usecase.SubscriptionUseCase
	promoUC  usecase.PromotionUseCase
	log      *zerolog.Logger
}

func NewExpiryWorker(interval time.Duration, subUC usecase.SubscriptionUseCase, promoUC usecase.PromotionUseCase, logger *zerolog.Logger) *ExpiryWorker {
	if interval <= 0 {
		interval = time.Hour
	}
	exprLog := logger.With().Str("component", "ExpiryWorker").Logger()
	return &ExpiryWorker{
		interval: interval,
		subUC:    subUC,
		promoUC:  promoUC,
		log:      &exprLog,
	}
}

func (w *ExpiryWorker) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry worker")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry worker")
			return ctx.Err()
		case <-ticker.C:
			n, err := w.subUC.FinishExpired(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("subscription expiry error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("expired subscriptions finished")
			}

			n, err = w.promoUC.ExpireSweep(ctx)
			if err != nil {
				w.log.Error().Err(err).Msg("promotion expiry error")
			}
			if n > 0 {
				w.log.Info().Int("count", n).Msg("expired promotions closed")
			}
		}
	}
}
