package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"rahala-payments/internal/config"
	"rahala-payments/internal/domain"
	"rahala-payments/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.PaymentGateway = (*PayMobGateway)(nil)

// PayMobGateway implements adapter.PaymentGateway with direct HTTP calls to
// the PayMob Accept API. The auth token is cached per instance for its short
// provider-side lifetime; no retries happen here.
type PayMobGateway struct {
	apiKey        string
	integrationID string
	iframeID      string
	baseURL       string
	defaultPhone  string

	client *http.Client
	log    *zerolog.Logger

	authToken string
}

func NewPayMobGateway(cfg config.PayMobConfig, logger *zerolog.Logger) (*PayMobGateway, error) {
	if cfg.APIKey == "" || cfg.IntegrationID == "" || cfg.IframeID == "" {
		return nil, domain.ErrInvalidArgument
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://accept.paymob.com/api"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	l := logger.With().Str("component", "PayMobGateway").Logger()
	return &PayMobGateway{
		apiKey:        cfg.APIKey,
		integrationID: cfg.IntegrationID,
		iframeID:      cfg.IframeID,
		baseURL:       baseURL,
		defaultPhone:  cfg.DefaultPhone,
		client:        &http.Client{Timeout: timeout},
		log:           &l,
	}, nil
}

type authResponse struct {
	Token string `json:"token"`
}

// Authenticate exchanges the static API key for a bearer token and caches it.
func (g *PayMobGateway) Authenticate(ctx context.Context) (string, error) {
	body, status, err := g.postJSON(ctx, "/auth/tokens", map[string]any{"api_key": g.apiKey})
	if err != nil || status/100 != 2 {
		g.log.Error().Err(err).Int("status", status).Msg("authentication failed")
		return "", fmt.Errorf("%w: status %d", domain.ErrGatewayAuth, status)
	}
	var resp authResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
		g.log.Error().Err(err).Msg("authentication response malformed")
		return "", domain.ErrGatewayAuth
	}
	g.authToken = resp.Token
	g.log.Debug().Msg("authenticated with PayMob")
	return resp.Token, nil
}

type orderResponse struct {
	ID int64 `json:"id"`
}

// CreateOrder registers an order. The amount is converted to the provider's
// minor-unit integer (piasters).
func (g *PayMobGateway) CreateOrder(ctx context.Context, amount float64, currency string) (string, error) {
	if err := g.ensureToken(ctx); err != nil {
		return "", err
	}
	payload := map[string]any{
		"auth_token":      g.authToken,
		"delivery_needed": "false",
		"amount_cents":    MinorUnits(amount),
		"currency":        currency,
		"items":           []any{},
	}
	body, status, err := g.postJSON(ctx, "/ecommerce/orders", payload)
	if err != nil || status/100 != 2 {
		g.log.Error().Err(err).Int("status", status).Str("body", string(body)).Msg("order creation failed")
		return "", fmt.Errorf("%w: status %d", domain.ErrGatewayOrder, status)
	}
	var resp orderResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.ID == 0 {
		return "", domain.ErrGatewayOrder
	}
	orderID := fmt.Sprintf("%d", resp.ID)
	g.log.Info().Str("order_id", orderID).Msg("PayMob order created")
	return orderID, nil
}

type paymentKeyResponse struct {
	Token string `json:"token"`
}

// CreatePaymentKey returns the opaque checkout token for an order. PayMob
// rejects empty required billing fields, so blanks are padded with "NA" and
// the configured default phone number.
func (g *PayMobGateway) CreatePaymentKey(ctx context.Context, orderID string, amount float64, billing adapter.BillingDetails, currency string) (string, error) {
	if err := g.ensureToken(ctx); err != nil {
		return "", err
	}
	payload := map[string]any{
		"auth_token":     g.authToken,
		"amount_cents":   MinorUnits(amount),
		"expiration":     3600,
		"order_id":       orderID,
		"billing_data":   g.billingData(billing),
		"currency":       currency,
		"integration_id": g.integrationID,
	}
	body, status, err := g.postJSON(ctx, "/acceptance/payment_keys", payload)
	if err != nil || status/100 != 2 {
		g.log.Error().Err(err).Int("status", status).Str("order_id", orderID).Msg("payment key creation failed")
		return "", fmt.Errorf("%w: status %d", domain.ErrGatewayPaymentKey, status)
	}
	var resp paymentKeyResponse
	if err := json.Unmarshal(body, &resp); err != nil || resp.Token == "" {
		return "", domain.ErrGatewayPaymentKey
	}
	g.log.Info().Str("order_id", orderID).Msg("PayMob payment key created")
	return resp.Token, nil
}

type inquiryResponse struct {
	Success bool   `json:"success"`
	Status  string `json:"status"`
}

// Inquire fetches the provider-side view of a transaction. Fails soft: any
// transport error or non-2xx status yields a nil result, which callers must
// treat as "unknown, do not transition state".
func (g *PayMobGateway) Inquire(ctx context.Context, transactionID string) (*adapter.InquiryResult, error) {
	if err := g.ensureToken(ctx); err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/acceptance/transactions/%s", g.baseURL, transactionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+g.authToken)
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn().Err(err).Str("transaction_id", transactionID).Msg("inquiry request failed")
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		g.log.Warn().Int("status", resp.StatusCode).Str("transaction_id", transactionID).Msg("inquiry returned non-2xx")
		return nil, fmt.Errorf("inquiry status %d", resp.StatusCode)
	}
	var parsed inquiryResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal inquiry response: %w", err)
	}
	return &adapter.InquiryResult{Success: parsed.Success, Status: parsed.Status, Raw: body}, nil
}

// CheckoutURL renders the hosted iframe URL for a payment token.
func (g *PayMobGateway) CheckoutURL(paymentToken string) string {
	return fmt.Sprintf("https://accept.paymob.com/api/acceptance/iframes/%s?payment_token=%s", g.iframeID, paymentToken)
}

// MinorUnits converts a major-unit amount to the gateway's integer cents.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

func (g *PayMobGateway) ensureToken(ctx context.Context) error {
	if g.authToken != "" {
		return nil
	}
	_, err := g.Authenticate(ctx)
	return err
}

func (g *PayMobGateway) billingData(b adapter.BillingDetails) map[string]any {
	phone := b.Phone
	if phone == "" {
		phone = g.defaultPhone
	}
	return map[string]any{
		"apartment":       "NA",
		"email":           b.Email,
		"floor":           "NA",
		"first_name":      orNA(b.FirstName),
		"street":          "NA",
		"building":        "NA",
		"phone_number":    phone,
		"shipping_method": "NA",
		"postal_code":     "NA",
		"city":            "NA",
		"country":         "EG",
		"last_name":       orNA(b.LastName),
		"state":           "NA",
	}
}

func orNA(s string) string {
	if s == "" {
		return "NA"
	}
	return s
}

func (g *PayMobGateway) postJSON(ctx context.Context, path string, payload any) ([]byte, int, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, 0, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
