package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("operation failed")
	ErrInvalidExecContext = errors.New("invalid execution context for query")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrLockNotAcquired    = errors.New("distributed lock not acquired")

	// Payment lifecycle
	ErrPaymentNotFound   = errors.New("payment not found")
	ErrInvalidSignature  = errors.New("webhook signature verification failed")
	ErrPaymentNotPending = errors.New("payment is not pending")
	ErrGatewayAuth       = errors.New("gateway authentication failed")
	ErrGatewayOrder      = errors.New("gateway order creation failed")
	ErrGatewayPaymentKey = errors.New("gateway payment key creation failed")

	// Entitlements
	ErrEntitlementActivation  = errors.New("entitlement activation failed")
	ErrActiveSubscription     = errors.New("user already has an active subscription")
	ErrNoActiveSubscription   = errors.New("no active subscription")
	ErrPromotionNotEligible   = errors.New("user is not eligible to promote this trip")
	ErrPromotionAlreadyExists = errors.New("an active promotion request already exists for this trip")
	ErrPromotionNotPayable    = errors.New("promotion payment is not completed")
)
