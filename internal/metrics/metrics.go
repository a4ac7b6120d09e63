// Package metrics exposes prometheus counters for the notification pipeline
// and subscription reconciliation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsReceived counts notifications accepted at the webhook
	// intake and enqueued for processing.
	NotificationsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "idpmon_notifications_received_total",
			Help: "Notifications enqueued from the webhook intake.",
		})

	// NotificationsDuplicate counts notifications skipped because their
	// resource id was already processed.
	NotificationsDuplicate = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "idpmon_notifications_duplicate_total",
			Help: "Notifications skipped by the idempotency check.",
		})

	// AlertsProcessed counts terminal processing outcomes by kind.
	AlertsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idpmon_alerts_processed_total",
			Help: "Terminal alert processing outcomes.",
		},
		[]string{"outcome"},
	)

	// ExternalCallErrors counts failed calls to external systems.
	ExternalCallErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idpmon_external_call_errors_total",
			Help: "Failed calls to external systems, by system.",
		},
		[]string{"system"},
	)

	// SubscriptionOps counts subscription reconciliation actions.
	SubscriptionOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "idpmon_subscription_ops_total",
			Help: "Subscription reconciliation actions taken.",
		},
		[]string{"op"},
	)
)
