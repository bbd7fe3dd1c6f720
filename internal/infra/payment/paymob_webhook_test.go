//go:build !integration

package payment

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"
)

const testSecret = "test-hmac-secret"

func signedPayload(t *testing.T) (*WebhookPayload, string) {
	t.Helper()
	raw := `{
		"id": 9001,
		"success": true,
		"status": "SUCCESS",
		"amount_cents": 9900,
		"currency": "EGP",
		"delivery_needed": false,
		"email": "traveler@example.com",
		"first_name": "Sara",
		"last_name": "Hassan",
		"integration_id": 12345,
		"phone_number": "+201000000000",
		"order": {"id": 7001}
	}`
	var p WebhookPayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal fixture: %v", err)
	}

	canonical := strings.Join([]string{
		"9900", "EGP", "false", "traveler@example.com", "Sara",
		"9001", "12345", "Hassan", "7001", "+201000000000",
	}, ".")
	mac := hmac.New(sha512.New, []byte(testSecret))
	mac.Write([]byte(canonical))
	return &p, hex.EncodeToString(mac.Sum(nil))
}

func TestSignatureVerifier_Verify(t *testing.T) {
	v := NewSignatureVerifier(testSecret, newTestLogger())

	t.Run("accepts a correctly signed payload", func(t *testing.T) {
		p, sig := signedPayload(t)
		if !v.Verify(p, sig) {
			t.Fatal("expected valid signature to verify")
		}
	})

	t.Run("accepts an uppercase hex signature", func(t *testing.T) {
		p, sig := signedPayload(t)
		if !v.Verify(p, strings.ToUpper(sig)) {
			t.Fatal("signature comparison must be case-insensitive on hex")
		}
	})

	t.Run("is deterministic", func(t *testing.T) {
		p, sig := signedPayload(t)
		for i := 0; i < 3; i++ {
			if !v.Verify(p, sig) {
				t.Fatalf("verification flipped on run %d", i)
			}
		}
	})

	t.Run("rejects when any signed field is tampered", func(t *testing.T) {
		tamper := []struct {
			name   string
			mutate func(p *WebhookPayload)
		}{
			{"amount_cents", func(p *WebhookPayload) { *p.AmountCents = 1 }},
			{"currency", func(p *WebhookPayload) { *p.Currency = "USD" }},
			{"delivery_needed", func(p *WebhookPayload) { *p.DeliveryNeeded = true }},
			{"email", func(p *WebhookPayload) { *p.Email = "attacker@example.com" }},
			{"first_name", func(p *WebhookPayload) { *p.FirstName = "Eve" }},
			{"transaction_id", func(p *WebhookPayload) { *p.TransactionID = 1 }},
			{"integration_id", func(p *WebhookPayload) { *p.IntegrationID = 1 }},
			{"last_name", func(p *WebhookPayload) { *p.LastName = "Mallory" }},
			{"order_id", func(p *WebhookPayload) { *p.Order.ID = 1 }},
			{"phone_number", func(p *WebhookPayload) { *p.PhoneNumber = "+20100000999" }},
		}
		for _, tc := range tamper {
			t.Run(tc.name, func(t *testing.T) {
				p, sig := signedPayload(t)
				tc.mutate(p)
				if v.Verify(p, sig) {
					t.Errorf("tampered %s must not verify", tc.name)
				}
			})
		}
	})

	t.Run("rejects when a signed field is missing", func(t *testing.T) {
		p, sig := signedPayload(t)
		p.PhoneNumber = nil
		if v.Verify(p, sig) {
			t.Fatal("payload with a missing signed field must not verify")
		}
	})

	t.Run("rejects an empty signature", func(t *testing.T) {
		p, _ := signedPayload(t)
		if v.Verify(p, "") {
			t.Fatal("empty signature must not verify")
		}
	})

	t.Run("rejects everything when the secret is not configured", func(t *testing.T) {
		unconfigured := NewSignatureVerifier("", newTestLogger())
		p, sig := signedPayload(t)
		if unconfigured.Verify(p, sig) {
			t.Fatal("verifier without a secret must reject")
		}
	})

	t.Run("rejects a nil payload", func(t *testing.T) {
		if v.Verify(nil, "deadbeef") {
			t.Fatal("nil payload must not verify")
		}
	})
}

func TestWebhookPayload_Accessors(t *testing.T) {
	p, _ := signedPayload(t)

	if p.OrderID() != "7001" {
		t.Errorf("OrderID: got %q", p.OrderID())
	}
	if p.TransactionIDString() != "9001" {
		t.Errorf("TransactionIDString: got %q", p.TransactionIDString())
	}
	if !p.IsSuccessful() {
		t.Error("expected success flag with status SUCCESS to be successful")
	}

	*p.Success = false
	if p.IsSuccessful() {
		t.Error("success=false must not be successful")
	}

	var empty WebhookPayload
	if empty.OrderID() != "" || empty.TransactionIDString() != "" {
		t.Error("absent identifiers must render as empty strings")
	}
}
