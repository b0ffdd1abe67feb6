package model

import "time"

type EscrowStatus string

const (
	EscrowStatusHeld      EscrowStatus = "held"
	EscrowStatusReleased  EscrowStatus = "released"
	EscrowStatusCancelled EscrowStatus = "cancelled"
	EscrowStatusExpired   EscrowStatus = "expired"
)

const (
	EventEscrowCreated  = "escrow_created"
	EventEscrowReleased = "escrow_released"
)

type EscrowHold struct {
	ID              string       `db:"id" json:"id"`
	OwnerUserID     string       `db:"owner_user_id" json:"owner_user_id"`
	PayeeID         string       `db:"payee_id" json:"payee_id"`
	SourceType      SourceType   `db:"source_type" json:"source_type"`
	SourceID        *string      `db:"source_id" json:"source_id,omitempty"`
	WalletID        string       `db:"wallet_id" json:"wallet_id"`
	Chain           string       `db:"chain" json:"chain"`
	Network         string       `db:"network" json:"network"`
	Token           string       `db:"token" json:"token"`
	AmountCents     int64        `db:"amount_cents" json:"amount_cents"`
	Status          EscrowStatus `db:"status" json:"status"`
	Note            *string      `db:"note" json:"note,omitempty"`
	ReleasePayoutID *string      `db:"release_payout_id" json:"release_payout_id,omitempty"`
	ReleasedAt      *time.Time   `db:"released_at" json:"released_at,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time    `db:"updated_at" json:"updated_at"`
}

type EscrowEvent struct {
	ID          string         `db:"id" json:"id"`
	EscrowID    string         `db:"escrow_id" json:"escrow_id"`
	OwnerUserID string         `db:"owner_user_id" json:"owner_user_id"`
	EventType   string         `db:"event_type" json:"event_type"`
	ActorID     *string        `db:"actor_id" json:"actor_id,omitempty"`
	Payload     map[string]any `db:"payload" json:"payload"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

type EscrowFilter struct {
	OwnerUserID string
	Status      EscrowStatus
	SourceType  SourceType
	SourceID    string
	Limit       int
}
