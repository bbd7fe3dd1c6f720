package adapter

import "context"

// Notifier dispatches a user-facing notification. Delivery is fire-and-forget
// from the caller's perspective: implementations log failures, and callers
// never roll back payment state because a notification could not be sent.
type Notifier interface {
	Notify(ctx context.Context, recipientID, eventType string, payload map[string]any) error
}
