package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Counters for the fulfillment core. Labels stay low-cardinality: event types
// and coarse results only, never order keys or emails.
var (
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Name:      "webhook_events_total",
		Help:      "Inbound webhook deliveries by source and result.",
	}, []string{"source", "result"})

	OrdersCompleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Name:      "orders_completed_total",
		Help:      "Orders transitioned to completed.",
	})

	PointsEarned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Name:      "points_earned_total",
		Help:      "Loyalty points accrued.",
	})

	PointsRedeemed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Name:      "points_redeemed_total",
		Help:      "Loyalty points redeemed.",
	})

	PromotionValidations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Name:      "promotion_validations_total",
		Help:      "Promotion code validations by result.",
	}, []string{"result"})

	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "fulfillment",
		Name:      "rate_limited_requests_total",
		Help:      "Requests rejected by the promotion rate limiter.",
	})
)
