package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		subscriptionsActivated,
		subscriptionsExpired,
		promotionsActivated,
		promotionsExpired,
		commissionsCreated,
		unknownPlanDurations,
	)
}

var (
	subscriptionsActivated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_activated_total",
			Help: "Subscriptions granted after payment, by tier.",
		},
		[]string{"tier"},
	)

	subscriptionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Paid subscriptions reset to free by the expiry sweep.",
		},
	)

	promotionsActivated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promotions_activated_total",
			Help: "Promotion requests approved and activated.",
		},
	)

	promotionsExpired = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "promotions_expired_total",
			Help: "Active promotions closed by the expiry sweep.",
		},
	)

	commissionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "promotion_commissions_created_total",
			Help: "Owner commissions created, by currency.",
		},
		[]string{"currency"},
	)

	unknownPlanDurations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscription_unknown_plan_durations_total",
			Help: "Activations that fell back to the 30-day default because the plan duration was unrecognised.",
		},
	)
)

func IncSubscriptionActivated(tier string) {
	subscriptionsActivated.WithLabelValues(norm(tier)).Inc()
}

func AddSubscriptionsExpired(n int) {
	subscriptionsExpired.Add(float64(n))
}

func IncPromotionActivated() { promotionsActivated.Inc() }

func AddPromotionsExpired(n int) { promotionsExpired.Add(float64(n)) }

func IncCommissionCreated(currency string) {
	commissionsCreated.WithLabelValues(norm(currency)).Inc()
}

func IncUnknownPlanDuration() { unknownPlanDurations.Inc() }
