package model

import "time"

type PaymentPolicy struct {
	OwnerUserID          string    `db:"owner_user_id" json:"owner_user_id"`
	AutopayEnabled       bool      `db:"autopay_enabled" json:"autopay_enabled"`
	RequireApproval      bool      `db:"require_approval" json:"require_approval"`
	MaxSinglePayoutCents int64     `db:"max_single_payout_cents" json:"max_single_payout_cents"`
	MaxDailyPayoutCents  int64     `db:"max_daily_payout_cents" json:"max_daily_payout_cents"`
	AllowedChains        []string  `db:"allowed_chains" json:"allowed_chains"`
	AllowedTokens        []string  `db:"allowed_tokens" json:"allowed_tokens"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// PolicyUpdate carries the fields of a partial policy update; nil means "leave unchanged".
type PolicyUpdate struct {
	AutopayEnabled       *bool    `json:"autopay_enabled,omitempty"`
	RequireApproval      *bool    `json:"require_approval,omitempty"`
	MaxSinglePayoutCents *int64   `json:"max_single_payout_cents,omitempty"`
	MaxDailyPayoutCents  *int64   `json:"max_daily_payout_cents,omitempty"`
	AllowedChains        []string `json:"allowed_chains,omitempty"`
	AllowedTokens        []string `json:"allowed_tokens,omitempty"`
}

func (u PolicyUpdate) Empty() bool {
	return u.AutopayEnabled == nil && u.RequireApproval == nil && u.MaxSinglePayoutCents == nil &&
		u.MaxDailyPayoutCents == nil && u.AllowedChains == nil && u.AllowedTokens == nil
}

type FeeEstimate struct {
	Chain             string        `json:"chain"`
	Network           string        `json:"network"`
	Token             string        `json:"token"`
	ExecutionMode     ExecutionMode `json:"execution_mode"`
	AmountCents       int64         `json:"amount_cents"`
	NetworkFeeCents   int64         `json:"network_fee_cents"`
	PlatformFeeCents  int64         `json:"platform_fee_cents"`
	TotalDebitCents   int64         `json:"total_debit_cents"`
	RecipientNetCents int64         `json:"recipient_net_cents"`
}
