package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"rahala-payments/internal/domain"
	"rahala-payments/internal/domain/model"
	"rahala-payments/internal/domain/ports/adapter"
	"rahala-payments/internal/domain/ports/repository"
	"rahala-payments/internal/infra/metrics"
	"rahala-payments/internal/infra/redis"
	"rahala-payments/internal/usecase"
)

const reconcilerLockKey = "sched:payment_reconciler"

// PaymentReconciler periodically scans for stale pending payments and asks the
// gateway what actually happened to them. This covers webhooks that were lost,
// rejected or crashed mid-handle: the gateway's transaction inquiry is the
// source of truth. A payment with no gateway transaction id has nothing to
// inquire about and is left alone.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	payments   repository.PaymentRepository
	gateway    adapter.PaymentGateway
	locker     redis.Locker
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a pending payment must be to retry
	log        *zerolog.Logger
}

func NewPaymentReconciler(
	uc usecase.PaymentUseCase,
	payments repository.PaymentRepository,
	gateway adapter.PaymentGateway,
	locker redis.Locker,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 30 * time.Minute
	}
	l := logger.With().Str("component", "PaymentReconciler").Logger()
	return &PaymentReconciler{
		uc:         uc,
		payments:   payments,
		gateway:    gateway,
		locker:     locker,
		interval:   interval,
		staleAfter: staleAfter,
		log:        &l,
	}
}

func (w *PaymentReconciler) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Dur("stale_after", w.staleAfter).Msg("Starting payment reconciler")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping payment reconciler")
			return ctx.Err()
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	if w.locker != nil {
		token, err := w.locker.TryLock(ctx, reconcilerLockKey, w.interval)
		if err != nil {
			if !errors.Is(err, domain.ErrLockNotAcquired) {
				w.log.Warn().Err(err).Msg("reconciler lock error")
			}
			return
		}
		defer func() {
			if err := w.locker.Unlock(ctx, reconcilerLockKey, token); err != nil {
				w.log.Warn().Err(err).Msg("reconciler unlock error")
			}
		}()
	}

	cutoff := time.Now().Add(-w.staleAfter)
	pending, err := w.payments.ListPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending error")
		return
	}
	for _, p := range pending {
		w.reconcile(ctx, p)
	}
}

func (w *PaymentReconciler) reconcile(ctx context.Context, p *model.Payment) {
	if p.TransactionID == "" {
		// Checkout was never reached; leave it for the user to retry or abandon.
		return
	}

	res, err := w.gateway.Inquire(ctx, p.TransactionID)
	if err != nil || res == nil {
		metrics.IncReconcilerInconclusive()
		w.log.Warn().Err(err).Str("payment_id", p.ID).Str("transaction_id", p.TransactionID).
			Msg("inquiry inconclusive, payment stays pending")
		return
	}

	switch {
	case res.Success:
		transitioned, err := w.uc.MarkCompleted(ctx, p.ID, p.TransactionID)
		if err != nil {
			w.log.Error().Err(err).Str("payment_id", p.ID).Msg("reconcile complete failed")
			return
		}
		if transitioned {
			metrics.IncReconcilerResolved("completed")
			w.log.Info().Str("payment_id", p.ID).Msg("reconciled payment as completed")
		}
	case isTerminalFailure(res.Status):
		if err := w.uc.MarkFailed(ctx, p.ID, "reconciler: gateway reported "+res.Status); err != nil {
			w.log.Error().Err(err).Str("payment_id", p.ID).Msg("reconcile fail failed")
			return
		}
		metrics.IncReconcilerResolved("failed")
		w.log.Info().Str("payment_id", p.ID).Str("gateway_status", res.Status).
			Msg("reconciled payment as failed")
	default:
		// Gateway answered but the transaction is still in flight.
		metrics.IncReconcilerInconclusive()
	}
}

// isTerminalFailure reports whether a gateway transaction status means the
// charge can never succeed. Anything unrecognized stays pending.
func isTerminalFailure(status string) bool {
	switch status {
	case "declined", "failed", "voided", "expired":
		return true
	}
	return false
}
