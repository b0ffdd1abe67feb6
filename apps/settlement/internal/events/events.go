package events

import (
	"encoding/json"
	"time"
)

// SettlementEvent is the message published to the settlement topic for every
// payout, escrow and dispute event.
type SettlementEvent struct {
	EventID     string          `json:"event_id"`
	Aggregate   string          `json:"aggregate"`
	AggregateID string          `json:"aggregate_id"`
	EventType   string          `json:"event_type"`
	OwnerUserID string          `json:"owner_user_id"`
	EventData   json.RawMessage `json:"event_data"`
	OccurredAt  time.Time       `json:"occurred_at"`
	Timestamp   time.Time       `json:"timestamp"`
}

// EventData is the body stored in the outbox row and carried in SettlementEvent.EventData.
type EventData struct {
	ActorID *string        `json:"actor_id,omitempty"`
	Status  string         `json:"status"`
	Payload map[string]any `json:"payload"`
}

// Chain confirmation outcomes carried by PayoutConfirmationEvent.
const (
	ConfirmationConfirmed = "confirmed"
	ConfirmationFailed    = "failed"
)

// PayoutConfirmationEvent is consumed from the confirmation topic. It reports the
// on-chain outcome of a payout an agent submitted without immediate confirmation.
type PayoutConfirmationEvent struct {
	PayoutID    string    `json:"payout_id"`
	OwnerUserID string    `json:"owner_user_id"`
	AgentID     string    `json:"agent_id"`
	TxHash      string    `json:"tx_hash"`
	Status      string    `json:"status"`
	Reason      string    `json:"reason,omitempty"`
	ObservedAt  time.Time `json:"observed_at"`
}
