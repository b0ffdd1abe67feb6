package model

import "time"

type DisputeTargetType string

const (
	DisputeTargetBooking DisputeTargetType = "booking"
	DisputeTargetPayout  DisputeTargetType = "payout"
	DisputeTargetEscrow  DisputeTargetType = "escrow"
	DisputeTargetBounty  DisputeTargetType = "bounty"
)

func (t DisputeTargetType) Valid() bool {
	switch t {
	case DisputeTargetBooking, DisputeTargetPayout, DisputeTargetEscrow, DisputeTargetBounty:
		return true
	}
	return false
}

type DisputeStatus string

const (
	DisputeStatusOpen        DisputeStatus = "open"
	DisputeStatusUnderReview DisputeStatus = "under_review"
	DisputeStatusResolved    DisputeStatus = "resolved"
	DisputeStatusRejected    DisputeStatus = "rejected"
)

func (s DisputeStatus) IsTerminal() bool {
	return s == DisputeStatusResolved || s == DisputeStatusRejected
}

type DisputeResolution string

const (
	ResolutionRefund   DisputeResolution = "refund"
	ResolutionRelease  DisputeResolution = "release"
	ResolutionSplit    DisputeResolution = "split"
	ResolutionNoAction DisputeResolution = "no_action"
	ResolutionReject   DisputeResolution = "reject"
)

func (r DisputeResolution) Valid() bool {
	switch r {
	case ResolutionRefund, ResolutionRelease, ResolutionSplit, ResolutionNoAction, ResolutionReject:
		return true
	}
	return false
}

const (
	EventDisputeOpened   = "dispute_opened"
	EventDisputeResolved = "dispute_resolved"
)

type Dispute struct {
	ID             string             `db:"id" json:"id"`
	OpenedBy       string             `db:"opened_by" json:"opened_by"`
	TargetType     DisputeTargetType  `db:"target_type" json:"target_type"`
	TargetID       string             `db:"target_id" json:"target_id"`
	Reason         string             `db:"reason" json:"reason"`
	Details        *string            `db:"details" json:"details,omitempty"`
	Status         DisputeStatus      `db:"status" json:"status"`
	Resolution     *DisputeResolution `db:"resolution" json:"resolution,omitempty"`
	ResolutionNote *string            `db:"resolution_note" json:"resolution_note,omitempty"`
	ResolvedBy     *string            `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt     *time.Time         `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt      time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time          `db:"updated_at" json:"updated_at"`
}

type DisputeEvent struct {
	ID        string         `db:"id" json:"id"`
	DisputeID string         `db:"dispute_id" json:"dispute_id"`
	EventType string         `db:"event_type" json:"event_type"`
	ActorID   *string        `db:"actor_id" json:"actor_id,omitempty"`
	Payload   map[string]any `db:"payload" json:"payload"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
}

// DisputeFilter scopes a listing. An empty OpenedBy lists every dispute (reviewer view).
type DisputeFilter struct {
	OpenedBy   string
	Status     DisputeStatus
	TargetType DisputeTargetType
	TargetID   string
	Limit      int
}
