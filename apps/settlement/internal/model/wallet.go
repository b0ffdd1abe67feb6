package model

import "time"

type VerificationStatus string

const (
	VerificationUnverified VerificationStatus = "unverified"
	VerificationVerified   VerificationStatus = "verified"
	VerificationRejected   VerificationStatus = "rejected"
)

type Wallet struct {
	ID                 string             `db:"id" json:"id"`
	PayeeID            string             `db:"payee_id" json:"payee_id"`
	Chain              string             `db:"chain" json:"chain"`
	Network            string             `db:"network" json:"network"`
	Token              string             `db:"token" json:"token"`
	Address            string             `db:"address" json:"address"`
	Label              *string            `db:"label" json:"label,omitempty"`
	IsDefault          bool               `db:"is_default" json:"is_default"`
	VerificationStatus VerificationStatus `db:"verification_status" json:"verification_status"`
	VerifiedAt         *time.Time         `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// SameRoute reports whether the wallet serves the given chain/network/token tuple.
func (w Wallet) SameRoute(chain, network, token string) bool {
	return w.Chain == chain && w.Network == network && w.Token == token
}

type WalletFilter struct {
	PayeeID string
	Chain   string
	Network string
	Token   string
}

type ChallengeStatus string

const (
	ChallengePending  ChallengeStatus = "pending"
	ChallengeVerified ChallengeStatus = "verified"
	ChallengeExpired  ChallengeStatus = "expired"
	ChallengeRejected ChallengeStatus = "rejected"
)

type WalletVerificationChallenge struct {
	ID                    string          `db:"id" json:"id"`
	WalletID              string          `db:"wallet_id" json:"wallet_id"`
	PayeeID               string          `db:"payee_id" json:"payee_id"`
	Nonce                 string          `db:"nonce" json:"nonce"`
	Message               string          `db:"message" json:"message"`
	ExpectedSignatureHash string          `db:"expected_signature_hash" json:"-"`
	Status                ChallengeStatus `db:"status" json:"status"`
	ExpiresAt             time.Time       `db:"expires_at" json:"expires_at"`
	VerifiedAt            *time.Time      `db:"verified_at" json:"verified_at,omitempty"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
}
