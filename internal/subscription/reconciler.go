// Package subscription converges the alerting service's webhook
// subscriptions to a single desired instance for this service's target URL.
package subscription

import (
	"context"
	"fmt"
	"time"

	"idpmon/internal/logger"
	"idpmon/internal/metrics"
	"idpmon/pkg/models"
)

// API is the slice of the alerting service the reconciler consumes.
type API interface {
	ListSubscriptions(ctx context.Context) ([]models.Subscription, error)
	CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error)
	RenewSubscription(ctx context.Context, id string, expires time.Time) error
	DeleteSubscription(ctx context.Context, id string) error
}

// Config describes the single desired subscription.
type Config struct {
	NotificationURL string
	Resource        string
	ClientState     string
	ExpirationDays  int
}

// DefaultClientState is used when no client state is configured.
const DefaultClientState = "DefaultClientState"

// Reconciler converges subscription state. Each pass is sequential and
// idempotent: re-running against unchanged state renews rather than
// duplicates.
type Reconciler struct {
	api API
	cfg Config
	now func() time.Time
}

// NewReconciler creates a reconciler for the desired subscription.
func NewReconciler(api API, cfg Config) *Reconciler {
	if cfg.ExpirationDays <= 0 {
		cfg.ExpirationDays = 7
	}
	if cfg.ClientState == "" {
		cfg.ClientState = DefaultClientState
	}
	return &Reconciler{api: api, cfg: cfg, now: time.Now}
}

// Reconcile runs one pass: expired subscriptions are deleted, the first
// matching subscription for our target URL and resource is renewed, any
// further match (or a wrong-resource match) is deleted as a duplicate, and a
// new subscription is created when nothing was renewed. Subscriptions
// pointing at other URLs are left alone. After a successful pass at most one
// live subscription exists for the target URL and resource.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	if r.cfg.NotificationURL == "" {
		return fmt.Errorf("notification URL is not configured")
	}

	subs, err := r.api.ListSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}

	now := r.now()
	expires := now.AddDate(0, 0, r.cfg.ExpirationDays)
	renewed := false

	for _, sub := range subs {
		switch {
		case sub.ExpirationDateTime.Before(now):
			if err := r.api.DeleteSubscription(ctx, sub.ID); err != nil {
				logger.Errorf("Failed to delete expired subscription '%s': %v", sub.ID, err)
				continue
			}
			metrics.SubscriptionOps.WithLabelValues("delete_expired").Inc()
			logger.Infof("Deleted expired subscription '%s'", sub.ID)

		case sub.NotificationURL == r.cfg.NotificationURL:
			if !renewed && sub.Resource == r.cfg.Resource {
				if err := r.api.RenewSubscription(ctx, sub.ID, expires); err != nil {
					return fmt.Errorf("failed to renew subscription '%s': %w", sub.ID, err)
				}
				renewed = true
				metrics.SubscriptionOps.WithLabelValues("renew").Inc()
				logger.Infof("Updated subscription '%s' expiry time to %s", sub.ID, expires.Format(time.RFC3339))
			} else {
				if err := r.api.DeleteSubscription(ctx, sub.ID); err != nil {
					logger.Errorf("Failed to delete extra subscription '%s': %v", sub.ID, err)
					continue
				}
				metrics.SubscriptionOps.WithLabelValues("delete_duplicate").Inc()
				logger.Infof("Deleted extra subscription '%s'", sub.ID)
			}
		}
	}

	if !renewed {
		created, err := r.api.CreateSubscription(ctx, models.Subscription{
			ChangeType:         "updated",
			NotificationURL:    r.cfg.NotificationURL,
			Resource:           r.cfg.Resource,
			ExpirationDateTime: expires,
			ClientState:        r.cfg.ClientState,
		})
		if err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		metrics.SubscriptionOps.WithLabelValues("create").Inc()
		logger.Infof("Created new subscription '%s' expiring on %s", created.ID, created.ExpirationDateTime.Format(time.RFC3339))
	}

	return nil
}
