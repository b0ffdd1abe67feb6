package model

import "time"

// Marketplace records owned by the booking/bounty collaborators. The settlement
// engine only reads them to resolve amounts, cancellation and ownership.

const (
	SourceStatusCancelled     = "cancelled"
	ApplicationStatusAccepted = "accepted"
)

type Booking struct {
	ID              string    `db:"id" json:"id"`
	UserID          string    `db:"user_id" json:"user_id"`
	HumanID         string    `db:"human_id" json:"human_id"`
	TotalPriceCents int64     `db:"total_price_cents" json:"total_price_cents"`
	Status          string    `db:"status" json:"status"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

type Bounty struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	BudgetCents int64     `db:"budget_cents" json:"budget_cents"`
	Status      string    `db:"status" json:"status"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

type BountyApplication struct {
	ID                 string    `db:"id" json:"id"`
	BountyID           string    `db:"bounty_id" json:"bounty_id"`
	HumanID            string    `db:"human_id" json:"human_id"`
	ProposedPriceCents int64     `db:"proposed_price_cents" json:"proposed_price_cents"`
	Status             string    `db:"status" json:"status"`
	CreatedAt          time.Time `db:"created_at" json:"created_at"`
}
