package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
)

// WebhookPayload is the strongly-typed decode target for PayMob transaction
// callbacks. Fields that participate in signature computation are pointers so
// an absent field is distinguishable from a zero value; verification rejects
// rather than guesses when one is missing.
type WebhookPayload struct {
	TransactionID  *int64  `json:"id"`
	Success        *bool   `json:"success"`
	Status         *string `json:"status"`
	AmountCents    *int64  `json:"amount_cents"`
	Currency       *string `json:"currency"`
	DeliveryNeeded *bool   `json:"delivery_needed"`
	Email          *string `json:"email"`
	FirstName      *string `json:"first_name"`
	LastName       *string `json:"last_name"`
	IntegrationID  *int64  `json:"integration_id"`
	PhoneNumber    *string `json:"phone_number"`
	Order          struct {
		ID *int64 `json:"id"`
	} `json:"order"`
}

// OrderID returns the provider order id as a string, empty when absent.
func (p *WebhookPayload) OrderID() string {
	if p.Order.ID == nil {
		return ""
	}
	return strconv.FormatInt(*p.Order.ID, 10)
}

// TransactionIDString returns the transaction id as a string, empty when absent.
func (p *WebhookPayload) TransactionIDString() string {
	if p.TransactionID == nil {
		return ""
	}
	return strconv.FormatInt(*p.TransactionID, 10)
}

// IsSuccessful reports the success flag combined with the textual status.
func (p *WebhookPayload) IsSuccessful() bool {
	return p.Success != nil && *p.Success &&
		p.Status != nil && strings.EqualFold(*p.Status, "success")
}

// SignatureVerifier authenticates inbound PayMob callbacks with the
// pre-shared HMAC secret. Verify is a pure predicate: it never errors, and
// any missing field, missing secret or digest mismatch yields false.
type SignatureVerifier struct {
	secret string
	log    *zerolog.Logger
}

func NewSignatureVerifier(secret string, logger *zerolog.Logger) *SignatureVerifier {
	l := logger.With().Str("component", "SignatureVerifier").Logger()
	return &SignatureVerifier{secret: secret, log: &l}
}

// Verify computes HMAC-SHA512 over the canonical concatenation of webhook
// fields and compares it to the received signature in constant time. The
// field order and formatting (lowercase booleans, stringified integers) must
// match PayMob's algorithm bit-for-bit, or every webhook is rejected.
func (v *SignatureVerifier) Verify(p *WebhookPayload, signature string) bool {
	if v.secret == "" {
		v.log.Error().Msg("HMAC secret not configured; rejecting webhook")
		return false
	}
	if p == nil || signature == "" {
		v.log.Warn().Msg("missing payload or signature")
		return false
	}

	canonical, ok := canonicalString(p)
	if !ok {
		v.log.Warn().Msg("webhook missing fields required for signature computation")
		return false
	}

	mac := hmac.New(sha512.New, []byte(v.secret))
	mac.Write([]byte(canonical))
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(strings.ToLower(signature))) {
		v.log.Warn().
			Str("computed_digest", computed).
			Str("received_signature", signature).
			Msg("webhook signature mismatch")
		return false
	}
	return true
}

// canonicalString joins the signature fields in PayMob's fixed order. Returns
// ok=false if any field is absent.
func canonicalString(p *WebhookPayload) (string, bool) {
	if p.AmountCents == nil || p.Currency == nil || p.DeliveryNeeded == nil ||
		p.Email == nil || p.FirstName == nil || p.TransactionID == nil ||
		p.IntegrationID == nil || p.LastName == nil || p.Order.ID == nil ||
		p.PhoneNumber == nil {
		return "", false
	}
	parts := []string{
		strconv.FormatInt(*p.AmountCents, 10),
		*p.Currency,
		strconv.FormatBool(*p.DeliveryNeeded),
		*p.Email,
		*p.FirstName,
		strconv.FormatInt(*p.TransactionID, 10),
		strconv.FormatInt(*p.IntegrationID, 10),
		*p.LastName,
		strconv.FormatInt(*p.Order.ID, 10),
		*p.PhoneNumber,
	}
	return strings.Join(parts, "."), true
}
