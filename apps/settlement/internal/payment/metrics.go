package payment

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "settlement"

var (
	payoutTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_transitions_total",
			Help:      "Payout events recorded, by event type",
		},
		[]string{"event_type"},
	)

	payoutAmountCents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payout_created_amount_cents_total",
			Help:      "Sum of created payout amounts in cents",
		},
		[]string{"chain", "token"},
	)

	escrowTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escrow_transitions_total",
			Help:      "Escrow events recorded, by event type",
		},
		[]string{"event_type"},
	)

	webhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Webhook deliveries recorded, by event type",
		},
		[]string{"event_type"},
	)

	policyViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "policy_violations_total",
			Help:      "Autopay attempts rejected by the owner's payment policy",
		},
	)

	disputeTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispute_transitions_total",
			Help:      "Dispute events recorded, by event type",
		},
		[]string{"event_type"},
	)
)

// tally collects counter increments during a transaction so they are only
// published once it commits.
type tally struct {
	payoutEvents  []string
	escrowEvents  []string
	disputeEvents []string
	deliveries    []string
}

func (t *tally) publish() {
	for _, e := range t.payoutEvents {
		payoutTransitions.WithLabelValues(e).Inc()
	}
	for _, e := range t.escrowEvents {
		escrowTransitions.WithLabelValues(e).Inc()
	}
	for _, e := range t.disputeEvents {
		disputeTransitions.WithLabelValues(e).Inc()
	}
	for _, e := range t.deliveries {
		webhookDeliveries.WithLabelValues(e).Inc()
	}
}
