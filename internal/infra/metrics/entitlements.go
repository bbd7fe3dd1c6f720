package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		entitlementActivations,
		entitlementFailures,
		reconcilerResolved,
		reconcilerInconclusive,
	)
}

var (
	entitlementActivations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_activations_total",
			Help: "Entitlements granted on payment completion, by purpose (subscription/promotion).",
		},
		[]string{"purpose"},
	)

	// A completed payment whose entitlement could not be granted is a
	// business-critical inconsistency; this counter feeds the alert.
	entitlementFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitlement_activation_failures_total",
			Help: "Completed payments whose downstream entitlement failed to activate.",
		},
		[]string{"purpose"},
	)

	reconcilerResolved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_reconciler_resolved_total",
			Help: "Stale pending payments resolved by the reconciliation sweep, by outcome.",
		},
		[]string{"outcome"},
	)

	reconcilerInconclusive = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payment_reconciler_inconclusive_total",
			Help: "Sweep inquiries that returned no usable gateway status.",
		},
	)
)

func IncEntitlementActivated(purpose string) {
	entitlementActivations.WithLabelValues(norm(purpose)).Inc()
}

func IncEntitlementFailure(purpose string) {
	entitlementFailures.WithLabelValues(norm(purpose)).Inc()
}

func IncReconcilerResolved(outcome string) {
	reconcilerResolved.WithLabelValues(norm(outcome)).Inc()
}

func IncReconcilerInconclusive() {
	reconcilerInconclusive.Inc()
}
