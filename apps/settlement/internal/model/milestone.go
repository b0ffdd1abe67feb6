package model

import "time"

type MilestoneStatus string

const (
	MilestonePlanned    MilestoneStatus = "planned"
	MilestoneInProgress MilestoneStatus = "in_progress"
	MilestoneCompleted  MilestoneStatus = "completed"
	MilestonePaid       MilestoneStatus = "paid"
	MilestoneCancelled  MilestoneStatus = "cancelled"
)

type BookingMilestone struct {
	ID          string          `db:"id" json:"id"`
	OwnerUserID string          `db:"owner_user_id" json:"owner_user_id"`
	SourceType  SourceType      `db:"source_type" json:"source_type"`
	SourceID    string          `db:"source_id" json:"source_id"`
	Title       string          `db:"title" json:"title"`
	AmountCents int64           `db:"amount_cents" json:"amount_cents"`
	Status      MilestoneStatus `db:"status" json:"status"`
	DueAt       *time.Time      `db:"due_at" json:"due_at,omitempty"`
	PayoutID    *string         `db:"payout_id" json:"payout_id,omitempty"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

type MilestoneFilter struct {
	OwnerUserID string
	SourceType  SourceType
	SourceID    string
	Status      MilestoneStatus
}
