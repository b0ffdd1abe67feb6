package model

import "time"

const WildcardEvent = "*"

type SubscriptionStatus string

const (
	SubscriptionActive SubscriptionStatus = "active"
	SubscriptionPaused SubscriptionStatus = "paused"
)

type PayoutWebhookSubscription struct {
	ID          string             `db:"id" json:"id"`
	OwnerUserID string             `db:"owner_user_id" json:"owner_user_id"`
	TargetURL   string             `db:"target_url" json:"target_url"`
	Events      []string           `db:"events" json:"events"`
	Description *string            `db:"description" json:"description,omitempty"`
	Secret      string             `db:"secret" json:"secret,omitempty"`
	Status      SubscriptionStatus `db:"status" json:"status"`
	CreatedAt   time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `db:"updated_at" json:"updated_at"`
}

// Matches reports whether the subscription wants the given event type.
func (s PayoutWebhookSubscription) Matches(eventType string) bool {
	for _, e := range s.Events {
		if e == WildcardEvent || e == eventType {
			return true
		}
	}
	return false
}

const DeliveryStatusDelivered = "delivered"

type PayoutWebhookDelivery struct {
	ID               string         `db:"id" json:"id"`
	SubscriptionID   string         `db:"subscription_id" json:"subscription_id"`
	OwnerUserID      string         `db:"owner_user_id" json:"owner_user_id"`
	PayoutID         string         `db:"payout_id" json:"payout_id"`
	PayoutEventID    string         `db:"payout_event_id" json:"payout_event_id"`
	EventType        string         `db:"event_type" json:"event_type"`
	RequestPayload   map[string]any `db:"request_payload" json:"request_payload"`
	RequestSignature string         `db:"request_signature" json:"request_signature"`
	DeliveryStatus   string         `db:"delivery_status" json:"delivery_status"`
	ResponseStatus   int            `db:"response_status" json:"response_status"`
	ResponseBody     string         `db:"response_body" json:"response_body"`
	DeliveredAt      time.Time      `db:"delivered_at" json:"delivered_at"`
	CreatedAt        time.Time      `db:"created_at" json:"created_at"`
}

type DeliveryFilter struct {
	OwnerUserID    string
	SubscriptionID string
	PayoutID       string
	Limit          int
}
