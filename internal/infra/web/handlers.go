package web

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"rahala-payments/internal/domain"
	"rahala-payments/internal/domain/model"
	"rahala-payments/internal/infra/logging"
	"rahala-payments/internal/infra/metrics"
	"rahala-payments/internal/infra/payment"
)

const maxWebhookBody = 1 << 20 // 1 MiB

// signatureFromHeaders extracts the HMAC signature. PayMob deployments have
// shipped it under three different header names over time.
func signatureFromHeaders(r *http.Request) string {
	for _, h := range []string{"X-Paymob-Signature", "Hmac", "Signature"} {
		if v := r.Header.Get(h); v != "" {
			return v
		}
	}
	return r.URL.Query().Get("hmac")
}

func (s *Server) handlePayMobWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := logging.With(ctx, s.log)

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		metrics.IncWebhook("malformed")
		http.Error(w, "unreadable body", http.StatusBadRequest)
		return
	}

	var payload payment.WebhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		metrics.IncWebhook("malformed")
		l.Warn().Err(err).Msg("webhook payload does not parse")
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	orderID := payload.OrderID()
	if orderID == "" {
		metrics.IncWebhook("missing_order")
		l.Warn().Msg("webhook payload has no order id")
		http.Error(w, "missing order id", http.StatusBadRequest)
		return
	}

	p, err := s.paymentUC.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			metrics.IncWebhook("unknown_order")
			l.Warn().Str("order_id", orderID).Msg("webhook for unknown order")
			http.Error(w, "unknown order", http.StatusNotFound)
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	ctx = logging.WithPaymentID(ctx, p.ID)
	l = logging.With(ctx, s.log)

	signature := signatureFromHeaders(r)
	verified := s.verifier.Verify(&payload, signature)

	// Every delivery is audited, forged ones included. The audit row is the
	// first place to look when a dispute comes in.
	lastError := ""
	if !verified {
		lastError = domain.ErrInvalidSignature.Error()
	}
	if err := s.paymentUC.RecordWebhook(ctx, p.ID, raw, signature, lastError); err != nil {
		l.Error().Err(err).Msg("webhook audit write failed")
	}

	if !verified {
		metrics.IncWebhookSignatureFailure()
		metrics.IncWebhook("invalid_signature")
		http.Error(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	switch {
	case payload.IsSuccessful():
		if _, err := s.paymentUC.MarkCompleted(ctx, p.ID, payload.TransactionIDString()); err != nil {
			metrics.IncWebhook("error")
			l.Error().Err(err).Msg("webhook completion failed")
			// 500 makes the gateway retry; MarkCompleted is idempotent.
			http.Error(w, "processing failed", http.StatusInternalServerError)
			return
		}
	case payload.Status != nil && strings.EqualFold(*payload.Status, "pending"):
		// Not a final outcome; wait for the next callback or the reconciler.
	default:
		status := "unknown"
		if payload.Status != nil {
			status = *payload.Status
		}
		if err := s.paymentUC.MarkFailed(ctx, p.ID, "gateway reported "+status); err != nil {
			metrics.IncWebhook("error")
			l.Error().Err(err).Msg("webhook failure handling failed")
			http.Error(w, "processing failed", http.StatusInternalServerError)
			return
		}
	}

	metrics.IncWebhook("processed")
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

type initiateSubscriptionRequest struct {
	PlanID string `json:"plan_id"`
}

func (s *Server) handleInitiateSubscription(w http.ResponseWriter, r *http.Request) {
	userID := logging.UserID(r.Context())

	var req initiateSubscriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.PlanID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := s.paymentUC.InitiateSubscription(r.Context(), userID, req.PlanID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrActiveSubscription):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "plan not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrGatewayAuth), errors.Is(err, domain.ErrGatewayOrder), errors.Is(err, domain.ErrGatewayPaymentKey):
			http.Error(w, "payment gateway unavailable", http.StatusBadGateway)
		default:
			http.Error(w, "Failed to initiate payment", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (s *Server) handleSubscriptionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := s.subUC.Status(r.Context(), logging.UserID(r.Context()))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			http.Error(w, "user not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get status", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleCancelSubscription(w http.ResponseWriter, r *http.Request) {
	err := s.subUC.Cancel(r.Context(), logging.UserID(r.Context()))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNoActiveSubscription):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "user not found", http.StatusNotFound)
		default:
			http.Error(w, "Failed to cancel", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

type paymentResponse struct {
	ID          string     `json:"id"`
	PlanID      *string    `json:"plan_id,omitempty"`
	Purpose     string     `json:"purpose"`
	Amount      float64    `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	OrderID     string     `json:"order_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func toPaymentResponse(p *model.Payment) paymentResponse {
	purpose := "promotion"
	if p.IsSubscription() {
		purpose = "subscription"
	}
	return paymentResponse{
		ID:          p.ID,
		PlanID:      p.PlanID,
		Purpose:     purpose,
		Amount:      p.Amount,
		Currency:    p.Currency,
		Status:      string(p.Status),
		OrderID:     p.OrderID,
		CreatedAt:   p.CreatedAt,
		CompletedAt: p.CompletedAt,
	}
}

func (s *Server) handleListPayments(w http.ResponseWriter, r *http.Request) {
	payments, err := s.paymentUC.ListForUser(r.Context(), logging.UserID(r.Context()))
	if err != nil {
		http.Error(w, "Failed to list payments", http.StatusInternalServerError)
		return
	}
	out := make([]paymentResponse, 0, len(payments))
	for _, p := range payments {
		out = append(out, toPaymentResponse(p))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetPayment(w http.ResponseWriter, r *http.Request) {
	p, err := s.paymentUC.GetForUser(r.Context(), logging.UserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, domain.ErrPaymentNotFound) {
			http.Error(w, "payment not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get payment", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toPaymentResponse(p))
}

type createPromotionRequest struct {
	TripID  string `json:"trip_id"`
	OwnerID string `json:"owner_id"`
	PlanID  string `json:"plan_id"`
	Message string `json:"message"`
}

func (s *Server) handleCreatePromotion(w http.ResponseWriter, r *http.Request) {
	sponsorID := logging.UserID(r.Context())

	var req createPromotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TripID == "" || req.PlanID == "" || req.OwnerID == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := s.promoUC.Request(r.Context(), sponsorID, req.TripID, req.OwnerID, req.PlanID, req.Message)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPromotionNotEligible):
			http.Error(w, err.Error(), http.StatusForbidden)
		case errors.Is(err, domain.ErrPromotionAlreadyExists):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "plan not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrGatewayAuth), errors.Is(err, domain.ErrGatewayOrder), errors.Is(err, domain.ErrGatewayPaymentKey):
			http.Error(w, "payment gateway unavailable", http.StatusBadGateway)
		default:
			http.Error(w, "Failed to create promotion request", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"request_id": result.Request.ID,
		"status":     result.Request.Status,
		"checkout":   result.Checkout,
	})
}

type promotionApprovalRequest struct {
	Action string `json:"action"` // approve | reject
}

func (s *Server) handlePromotionApproval(w http.ResponseWriter, r *http.Request) {
	ownerID := logging.UserID(r.Context())
	requestID := chi.URLParam(r, "id")

	var req promotionApprovalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	var err error
	switch req.Action {
	case "approve":
		err = s.promoUC.Approve(r.Context(), ownerID, requestID)
	case "reject":
		err = s.promoUC.Reject(r.Context(), ownerID, requestID)
	default:
		http.Error(w, "action must be approve or reject", http.StatusBadRequest)
		return
	}
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "request not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrPromotionNotPayable):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, domain.ErrOperationFailed):
			http.Error(w, "request is not pending", http.StatusConflict)
		default:
			http.Error(w, "Failed to process approval", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Action + "d"})
}

func (s *Server) handleCancelPromotion(w http.ResponseWriter, r *http.Request) {
	sponsorID := logging.UserID(r.Context())
	err := s.promoUC.Cancel(r.Context(), sponsorID, chi.URLParam(r, "id"))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			http.Error(w, "request not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrOperationFailed):
			http.Error(w, "request cannot be cancelled", http.StatusConflict)
		default:
			http.Error(w, "Failed to cancel", http.StatusInternalServerError)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleActivePromotions(w http.ResponseWriter, r *http.Request) {
	feed, err := s.promoUC.ActiveFeed(r.Context(), 50)
	if err != nil {
		http.Error(w, "Failed to load feed", http.StatusInternalServerError)
		return
	}
	type feedItem struct {
		RequestID     string `json:"request_id"`
		PriorityScore int    `json:"priority_score"`
	}
	out := make([]feedItem, 0, len(feed))
	for _, ap := range feed {
		out = append(out, feedItem{RequestID: ap.RequestID, PriorityScore: ap.PriorityScore})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleListCommissions(w http.ResponseWriter, r *http.Request) {
	commissions, err := s.promoUC.ListCommissions(r.Context(), logging.UserID(r.Context()))
	if err != nil {
		http.Error(w, "Failed to list commissions", http.StatusInternalServerError)
		return
	}
	type commissionResponse struct {
		ID        string     `json:"id"`
		RequestID string     `json:"request_id"`
		Amount    float64    `json:"amount"`
		Currency  string     `json:"currency"`
		Status    string     `json:"status"`
		CreatedAt time.Time  `json:"created_at"`
		PaidAt    *time.Time `json:"paid_at,omitempty"`
	}
	type earningsSummary struct {
		Paid    float64 `json:"paid"`
		Pending float64 `json:"pending"`
		Total   float64 `json:"total"`
	}
	out := make([]commissionResponse, 0, len(commissions))
	var summary earningsSummary
	for _, c := range commissions {
		switch c.Status {
		case model.CommissionStatusPaid:
			summary.Paid += c.Amount
			summary.Total += c.Amount
		case model.CommissionStatusPending:
			summary.Pending += c.Amount
			summary.Total += c.Amount
		}
		out = append(out, commissionResponse{
			ID:        c.ID,
			RequestID: c.RequestID,
			Amount:    c.Amount,
			Currency:  c.Currency,
			Status:    string(c.Status),
			CreatedAt: c.CreatedAt,
			PaidAt:    c.PaidAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"commissions": out,
		"summary":     summary,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
