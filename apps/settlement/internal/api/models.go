package api

import (
	"settlement/apps/settlement/internal/model"
)

// ErrorResponse represents the API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// ListResponse wraps collection results
type ListResponse[T any] struct {
	Items []T `json:"items"`
	Count int `json:"count"`
}

func newListResponse[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Items: items, Count: len(items)}
}

// ActorRequest is the body of approve requests
type ActorRequest struct {
	ActorID string `json:"actor_id"`
}

// FailRequest is the body of POST /api/payouts/{payout_id}/fail
type FailRequest struct {
	Reason  string `json:"reason"`
	ActorID string `json:"actor_id"`
}

// ExecuteRequest is the body of POST /api/payouts/{payout_id}/execute
type ExecuteRequest struct {
	AgentID            string  `json:"agent_id"`
	TxHash             *string `json:"tx_hash,omitempty"`
	ConfirmImmediately *bool   `json:"confirm_immediately,omitempty"`
}

// ChallengeRequest is the body of POST /api/wallets/{wallet_id}/challenges
type ChallengeRequest struct {
	ExpiresInMinutes int `json:"expires_in_minutes"`
}

// VerifyRequest is the body of POST /api/challenges/{challenge_id}/verify
type VerifyRequest struct {
	Signature string `json:"signature"`
}

// CompleteMilestoneRequest is the body of POST /api/milestones/{milestone_id}/complete
type CompleteMilestoneRequest struct {
	AutoCreatePayout bool                          `json:"auto_create_payout"`
	Payout           *MilestonePayoutConfigRequest `json:"payout,omitempty"`
}

// MilestonePayoutConfigRequest mirrors the payout configuration accepted on completion
type MilestonePayoutConfigRequest struct {
	Chain              string              `json:"chain"`
	Network            string              `json:"network"`
	Token              string              `json:"token"`
	WalletID           *string             `json:"wallet_id,omitempty"`
	ExecutionMode      model.ExecutionMode `json:"execution_mode"`
	AgentID            *string             `json:"agent_id,omitempty"`
	IdempotencyKey     *string             `json:"idempotency_key,omitempty"`
	AutoExecute        bool                `json:"auto_execute"`
	TxHash             *string             `json:"tx_hash,omitempty"`
	ConfirmImmediately *bool               `json:"confirm_immediately,omitempty"`
}

// HealthResponse is returned by GET /api/health
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}
