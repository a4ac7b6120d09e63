package models

import "time"

// Subscription is one webhook subscription registered with the alerting
// service.
type Subscription struct {
	ID                 string    `json:"id,omitempty"`
	ChangeType         string    `json:"changeType"`
	NotificationURL    string    `json:"notificationUrl"`
	Resource           string    `json:"resource"`
	ExpirationDateTime time.Time `json:"expirationDateTime"`
	ClientState        string    `json:"clientState,omitempty"`
}
