package adapter

import "context"

// BillingDetails carries the customer fields PayMob requires on a payment
// key. Empty fields are filled with placeholder values by the gateway client,
// since the provider rejects blank required billing data.
type BillingDetails struct {
	Email     string
	FirstName string
	LastName  string
	Phone     string
}

// InquiryResult is the outcome of a transaction status inquiry. A nil
// *InquiryResult from Inquire means "unknown": the caller must not move the
// payment to a terminal state on it.
type InquiryResult struct {
	Success bool
	Status  string
	Raw     []byte
}

// PaymentGateway is the outbound port to the payment provider. All calls are
// synchronous HTTP with a bounded timeout; retry policy belongs to the
// reconciliation sweep, not to implementations.
type PaymentGateway interface {
	// Authenticate exchanges the API key for a short-lived bearer token.
	Authenticate(ctx context.Context) (string, error)
	// CreateOrder registers an order for the amount (major units) and returns
	// the provider order id.
	CreateOrder(ctx context.Context, amount float64, currency string) (string, error)
	// CreatePaymentKey returns the opaque checkout token for an order.
	CreatePaymentKey(ctx context.Context, orderID string, amount float64, billing BillingDetails, currency string) (string, error)
	// Inquire fetches the provider-side status of a transaction. Fails soft:
	// network errors and non-2xx responses yield (nil, err).
	Inquire(ctx context.Context, transactionID string) (*InquiryResult, error)
	// CheckoutURL renders the hosted checkout URL for a payment token. Pure
	// string templating, no I/O.
	CheckoutURL(paymentToken string) string
}
