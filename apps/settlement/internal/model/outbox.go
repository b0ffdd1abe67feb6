package model

import (
	"encoding/json"
	"time"
)

const (
	OutboxStatusUnsent     = "unsent"
	OutboxStatusProcessing = "processing"
	OutboxStatusSent       = "sent"
)

const (
	AggregatePayout  = "payout"
	AggregateEscrow  = "escrow"
	AggregateDispute = "dispute"
)

// OutboxEvent is a settlement event waiting to be relayed to the event bus.
type OutboxEvent struct {
	ID          string          `db:"id"`
	Aggregate   string          `db:"aggregate"`
	AggregateID string          `db:"aggregate_id"`
	EventType   string          `db:"event_type"`
	OwnerUserID string          `db:"owner_user_id"`
	Status      string          `db:"status"`
	EventBlob   json.RawMessage `db:"event_blob"`
	CreatedAt   time.Time       `db:"created_at"`
}
