package subscription

import (
	"context"
	"fmt"
	"testing"
	"time"

	"idpmon/pkg/models"
)

type fakeAPI struct {
	subs    []models.Subscription
	created []models.Subscription
	renewed []string
	deleted []string

	renewErr error
}

func (f *fakeAPI) ListSubscriptions(ctx context.Context) ([]models.Subscription, error) {
	out := make([]models.Subscription, len(f.subs))
	copy(out, f.subs)
	return out, nil
}

func (f *fakeAPI) CreateSubscription(ctx context.Context, sub models.Subscription) (*models.Subscription, error) {
	sub.ID = fmt.Sprintf("created-%d", len(f.created)+1)
	f.created = append(f.created, sub)
	f.subs = append(f.subs, sub)
	return &sub, nil
}

func (f *fakeAPI) RenewSubscription(ctx context.Context, id string, expires time.Time) error {
	if f.renewErr != nil {
		return f.renewErr
	}
	f.renewed = append(f.renewed, id)
	for i := range f.subs {
		if f.subs[i].ID == id {
			f.subs[i].ExpirationDateTime = expires
		}
	}
	return nil
}

func (f *fakeAPI) DeleteSubscription(ctx context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	var kept []models.Subscription
	for _, s := range f.subs {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	f.subs = kept
	return nil
}

func testReconciler(api API) *Reconciler {
	r := NewReconciler(api, Config{
		NotificationURL: "https://idpmon.example.com/notifications",
		Resource:        "/security/alerts",
	})
	r.now = func() time.Time { return time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC) }
	return r
}

func TestReconcileDeletesExpiredAndRenewsMatching(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeAPI{subs: []models.Subscription{
		{ID: "expired", NotificationURL: "https://idpmon.example.com/notifications", Resource: "/security/alerts", ExpirationDateTime: now.AddDate(0, 0, -1)},
		{ID: "live", NotificationURL: "https://idpmon.example.com/notifications", Resource: "/security/alerts", ExpirationDateTime: now.AddDate(0, 0, 2)},
		{ID: "other-app", NotificationURL: "https://other.example.com/hook", Resource: "/security/alerts", ExpirationDateTime: now.AddDate(0, 0, 2)},
	}}

	if err := testReconciler(api).Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	if len(api.deleted) != 1 || api.deleted[0] != "expired" {
		t.Fatalf("expected only the expired subscription deleted, got %v", api.deleted)
	}
	if len(api.renewed) != 1 || api.renewed[0] != "live" {
		t.Fatalf("expected the live subscription renewed, got %v", api.renewed)
	}
	if len(api.created) != 0 {
		t.Fatalf("no subscription should be created when one was renewed, got %v", api.created)
	}
	// Subscriptions belonging to other consumers are untouched.
	for _, id := range api.deleted {
		if id == "other-app" {
			t.Fatalf("foreign subscription must be left alone")
		}
	}
}

func TestReconcileDeletesDuplicatesForOurURL(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeAPI{subs: []models.Subscription{
		{ID: "first", NotificationURL: "https://idpmon.example.com/notifications", Resource: "/security/alerts", ExpirationDateTime: now.AddDate(0, 0, 2)},
		{ID: "dupe", NotificationURL: "https://idpmon.example.com/notifications", Resource: "/security/alerts", ExpirationDateTime: now.AddDate(0, 0, 3)},
		{ID: "wrong-resource", NotificationURL: "https://idpmon.example.com/notifications", Resource: "/other", ExpirationDateTime: now.AddDate(0, 0, 3)},
	}}

	if err := testReconciler(api).Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	if len(api.renewed) != 1 || api.renewed[0] != "first" {
		t.Fatalf("expected only the first match renewed, got %v", api.renewed)
	}
	if len(api.deleted) != 2 {
		t.Fatalf("expected duplicate and wrong-resource subscriptions deleted, got %v", api.deleted)
	}
}

func TestReconcileCreatesWhenNothingMatches(t *testing.T) {
	api := &fakeAPI{}

	if err := testReconciler(api).Reconcile(context.Background()); err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	if len(api.created) != 1 {
		t.Fatalf("expected 1 created subscription, got %d", len(api.created))
	}
	sub := api.created[0]
	if sub.ChangeType != "updated" {
		t.Fatalf("unexpected change type: %q", sub.ChangeType)
	}
	if sub.ClientState != DefaultClientState {
		t.Fatalf("unexpected client state: %q", sub.ClientState)
	}
	want := time.Date(2026, 7, 8, 0, 0, 0, 0, time.UTC)
	if !sub.ExpirationDateTime.Equal(want) {
		t.Fatalf("expected 7 day expiry %v, got %v", want, sub.ExpirationDateTime)
	}
}

func TestReconcileIsIdempotentAcrossRuns(t *testing.T) {
	api := &fakeAPI{}
	r := testReconciler(api)

	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}
	if err := r.Reconcile(context.Background()); err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}

	if len(api.created) != 1 {
		t.Fatalf("second run must renew, not create, got %d creations", len(api.created))
	}
	if len(api.renewed) != 1 {
		t.Fatalf("expected second run to renew the created subscription, got %v", api.renewed)
	}
	if len(api.subs) != 1 {
		t.Fatalf("expected exactly one live subscription, got %d", len(api.subs))
	}
}

func TestReconcileRequiresNotificationURL(t *testing.T) {
	r := NewReconciler(&fakeAPI{}, Config{Resource: "/security/alerts"})
	if err := r.Reconcile(context.Background()); err == nil {
		t.Fatalf("expected an error without a notification URL")
	}
}

func TestReconcilePropagatesRenewFailure(t *testing.T) {
	now := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	api := &fakeAPI{
		subs: []models.Subscription{
			{ID: "live", NotificationURL: "https://idpmon.example.com/notifications", Resource: "/security/alerts", ExpirationDateTime: now.AddDate(0, 0, 2)},
		},
		renewErr: fmt.Errorf("service unavailable"),
	}

	if err := testReconciler(api).Reconcile(context.Background()); err == nil {
		t.Fatalf("expected renew failure to surface")
	}
}
