package models

import "time"

// ChangeNotification is one change notification delivered by the alerting
// service webhook. Field names follow the Graph changeNotification resource.
type ChangeNotification struct {
	ChangeType                     string       `json:"changeType"`
	ClientState                    string       `json:"clientState"`
	Resource                       string       `json:"resource"`
	ResourceData                   ResourceData `json:"resourceData"`
	SubscriptionExpirationDateTime time.Time    `json:"subscriptionExpirationDateTime"`
	SubscriptionID                 string       `json:"subscriptionId"`
	TenantID                       string       `json:"tenantId"`
}

// ResourceData carries the id of the changed resource.
type ResourceData struct {
	ID string `json:"id"`
}

// NotificationBatch is the webhook request body: an array of notifications
// under a "value" key.
type NotificationBatch struct {
	Value []ChangeNotification `json:"value"`
}
