package model

import (
	"time"
)

type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "pending"
	PayoutStatusApproved  PayoutStatus = "approved"
	PayoutStatusSubmitted PayoutStatus = "submitted"
	PayoutStatusConfirmed PayoutStatus = "confirmed"
	PayoutStatusFailed    PayoutStatus = "failed"
	PayoutStatusCancelled PayoutStatus = "cancelled"
)

// IsTerminal reports whether no further transition is possible.
func (s PayoutStatus) IsTerminal() bool {
	return s == PayoutStatusConfirmed || s == PayoutStatusFailed || s == PayoutStatusCancelled
}

// DailyCapStatuses are the payout statuses counted against the daily autopay limit.
var DailyCapStatuses = []PayoutStatus{PayoutStatusPending, PayoutStatusApproved, PayoutStatusSubmitted, PayoutStatusConfirmed}

type ExecutionMode string

const (
	ExecutionModeManual    ExecutionMode = "manual"
	ExecutionModeAgentAuto ExecutionMode = "agent_auto"
)

func (m ExecutionMode) Valid() bool {
	return m == ExecutionModeManual || m == ExecutionModeAgentAuto
}

type SourceType string

const (
	SourceTypeBounty  SourceType = "bounty"
	SourceTypeBooking SourceType = "booking"
	SourceTypeManual  SourceType = "manual"
)

func (s SourceType) Valid() bool {
	return s == SourceTypeBounty || s == SourceTypeBooking || s == SourceTypeManual
}

type CryptoPayout struct {
	ID               string        `db:"id" json:"id"`
	OwnerUserID      string        `db:"owner_user_id" json:"owner_user_id"`
	PayeeID          string        `db:"payee_id" json:"payee_id"`
	SourceType       SourceType    `db:"source_type" json:"source_type"`
	SourceID         *string       `db:"source_id" json:"source_id,omitempty"`
	WalletID         string        `db:"wallet_id" json:"wallet_id"`
	DestinationAddr  string        `db:"destination_address" json:"destination_address"`
	Chain            string        `db:"chain" json:"chain"`
	Network          string        `db:"network" json:"network"`
	Token            string        `db:"token" json:"token"`
	AmountCents      int64         `db:"amount_cents" json:"amount_cents"`
	Status           PayoutStatus  `db:"status" json:"status"`
	ExecutionMode    ExecutionMode `db:"execution_mode" json:"execution_mode"`
	IdempotencyKey   *string       `db:"idempotency_key" json:"idempotency_key,omitempty"`
	RequestedByAgent *string       `db:"requested_by_agent_id" json:"requested_by_agent_id,omitempty"`
	ApprovedBy       *string       `db:"approved_by" json:"approved_by,omitempty"`
	TxHash           *string       `db:"tx_hash" json:"tx_hash,omitempty"`
	FailureReason    *string       `db:"failure_reason" json:"failure_reason,omitempty"`
	ApprovedAt       *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	SubmittedAt      *time.Time    `db:"submitted_at" json:"submitted_at,omitempty"`
	ConfirmedAt      *time.Time    `db:"confirmed_at" json:"confirmed_at,omitempty"`
	FailedAt         *time.Time    `db:"failed_at" json:"failed_at,omitempty"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time     `db:"updated_at" json:"updated_at"`
}

const (
	EventPayoutCreated      = "payout_created"
	EventPayoutAutoApproved = "payout_auto_approved"
	EventPayoutApproved     = "payout_approved"
	EventPayoutSubmitted    = "payout_submitted"
	EventPayoutConfirmed    = "payout_confirmed"
	EventPayoutFailed       = "payout_failed"
)

// PayoutEventTypes lists every event a webhook subscription may filter on.
var PayoutEventTypes = []string{
	EventPayoutCreated,
	EventPayoutAutoApproved,
	EventPayoutApproved,
	EventPayoutSubmitted,
	EventPayoutConfirmed,
	EventPayoutFailed,
}

type PayoutEvent struct {
	ID          string         `db:"id" json:"id"`
	PayoutID    string         `db:"payout_id" json:"payout_id"`
	OwnerUserID string         `db:"owner_user_id" json:"owner_user_id"`
	EventType   string         `db:"event_type" json:"event_type"`
	ActorID     *string        `db:"actor_id" json:"actor_id,omitempty"`
	Payload     map[string]any `db:"payload" json:"payload"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
}

type PayoutFilter struct {
	OwnerUserID string
	Status      PayoutStatus
	PayeeID     string
	SourceType  SourceType
	Limit       int
}
