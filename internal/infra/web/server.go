package web

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rahala-payments/internal/config"
	"rahala-payments/internal/infra/payment"
	"rahala-payments/internal/infra/redis"
	"rahala-payments/internal/usecase"
)

// Server is the HTTP face of the payments service: the PayMob webhook, the
// authenticated payment/subscription/promotion API and the ops endpoints.
type Server struct {
	cfg       *config.Config
	paymentUC usecase.PaymentUseCase
	subUC     usecase.SubscriptionUseCase
	promoUC   usecase.PromotionUseCase
	verifier  *payment.SignatureVerifier
	limiter   *redis.RateLimiter
	log       *zerolog.Logger

	server *http.Server
}

func NewServer(
	cfg *config.Config,
	paymentUC usecase.PaymentUseCase,
	subUC usecase.SubscriptionUseCase,
	promoUC usecase.PromotionUseCase,
	verifier *payment.SignatureVerifier,
	limiter *redis.RateLimiter,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "WebServer").Logger()
	return &Server{
		cfg:       cfg,
		paymentUC: paymentUC,
		subUC:     subUC,
		promoUC:   promoUC,
		verifier:  verifier,
		limiter:   limiter,
		log:       &l,
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	base := []Middleware{
		TraceID(),
		Recover(s.log),
		RequestLog(s.log),
		Timeout(s.cfg.Server.RequestTimeout),
	}
	auth := jwtAuth(s.cfg.Auth.JWTSecret, s.log)

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		webhook := Chain(
			http.HandlerFunc(s.handlePayMobWebhook),
			append(base, RateLimitBySource(s.limiter, s.cfg.Webhook.RateLimit, s.cfg.Webhook.RateLimitWindow, s.log))...,
		)
		r.Method(http.MethodPost, "/payments/webhook/paymob", webhook)

		authed := func(h http.HandlerFunc) http.Handler {
			return Chain(h, append(base, auth)...)
		}

		r.Method(http.MethodGet, "/payments", authed(s.handleListPayments))
		r.Method(http.MethodGet, "/payments/{id}", authed(s.handleGetPayment))

		r.Method(http.MethodPost, "/subscriptions", authed(s.handleInitiateSubscription))
		r.Method(http.MethodGet, "/subscriptions/status", authed(s.handleSubscriptionStatus))
		r.Method(http.MethodPost, "/subscriptions/cancel", authed(s.handleCancelSubscription))

		r.Method(http.MethodPost, "/promotions", authed(s.handleCreatePromotion))
		r.Method(http.MethodPost, "/promotions/{id}/approval", authed(s.handlePromotionApproval))
		r.Method(http.MethodPost, "/promotions/{id}/cancel", authed(s.handleCancelPromotion))
		r.Method(http.MethodGet, "/promotions/active", Chain(http.HandlerFunc(s.handleActivePromotions), base...))

		r.Method(http.MethodGet, "/commissions", authed(s.handleListCommissions))
	})

	return r
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler: s.Routes(),
	}
	s.log.Info().Int("port", s.cfg.Server.Port).Msg("HTTP server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
