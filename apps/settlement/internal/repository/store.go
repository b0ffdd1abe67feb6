package repository

import (
	"context"
	"errors"
	"time"

	"settlement/apps/settlement/internal/model"
)

// ErrDuplicateIdempotencyKey is returned by InsertPayout when the owner already
// has a payout with the same idempotency key.
var ErrDuplicateIdempotencyKey = errors.New("duplicate payout idempotency key")

// Queries is the full set of persistence operations used by the settlement engine.
// Getters return (nil, nil) when the row does not exist.
type Queries interface {
	// Serializes payout creation per owner until the surrounding transaction ends.
	LockOwner(ctx context.Context, ownerUserID string) error
	// Serializes milestone creation per booking or bounty until the surrounding transaction ends.
	LockSource(ctx context.Context, sourceType model.SourceType, sourceID string) error

	GetPolicy(ctx context.Context, ownerUserID string) (*model.PaymentPolicy, error)
	InsertPolicyIfMissing(ctx context.Context, policy model.PaymentPolicy) error
	UpdatePolicy(ctx context.Context, policy model.PaymentPolicy) error
	SumPayoutsCreatedBetween(ctx context.Context, ownerUserID string, from, to time.Time, statuses []model.PayoutStatus) (int64, error)

	UpsertWallet(ctx context.Context, wallet model.Wallet) (*model.Wallet, error)
	GetWallet(ctx context.Context, walletID string) (*model.Wallet, error)
	GetDefaultWallet(ctx context.Context, payeeID, chain, network, token string) (*model.Wallet, error)
	ClearDefaultWallets(ctx context.Context, payeeID, chain, network, token, exceptAddress string) error
	SetWalletDefault(ctx context.Context, walletID string) error
	ListWallets(ctx context.Context, filter model.WalletFilter) ([]model.Wallet, error)
	UpdateWalletVerification(ctx context.Context, walletID string, status model.VerificationStatus, verifiedAt *time.Time) error

	InsertChallenge(ctx context.Context, challenge model.WalletVerificationChallenge) error
	GetChallenge(ctx context.Context, challengeID string) (*model.WalletVerificationChallenge, error)
	UpdateChallengeStatus(ctx context.Context, challengeID string, status model.ChallengeStatus, verifiedAt *time.Time) error
	ListChallenges(ctx context.Context, walletID string) ([]model.WalletVerificationChallenge, error)

	InsertPayout(ctx context.Context, payout model.CryptoPayout) error
	GetPayout(ctx context.Context, ownerUserID, payoutID string) (*model.CryptoPayout, error)
	GetPayoutByID(ctx context.Context, payoutID string) (*model.CryptoPayout, error)
	GetPayoutByIdempotencyKey(ctx context.Context, ownerUserID, key string) (*model.CryptoPayout, error)
	ListPayouts(ctx context.Context, filter model.PayoutFilter) ([]model.CryptoPayout, error)
	UpdatePayout(ctx context.Context, payout model.CryptoPayout) error
	InsertPayoutEvent(ctx context.Context, event model.PayoutEvent) error
	ListPayoutEvents(ctx context.Context, payoutID string) ([]model.PayoutEvent, error)

	InsertSubscription(ctx context.Context, sub model.PayoutWebhookSubscription) error
	ListSubscriptions(ctx context.Context, ownerUserID string, activeOnly bool) ([]model.PayoutWebhookSubscription, error)
	InsertDelivery(ctx context.Context, delivery model.PayoutWebhookDelivery) error
	ListDeliveries(ctx context.Context, filter model.DeliveryFilter) ([]model.PayoutWebhookDelivery, error)

	InsertEscrow(ctx context.Context, escrow model.EscrowHold) error
	GetEscrow(ctx context.Context, ownerUserID, escrowID string) (*model.EscrowHold, error)
	GetEscrowByID(ctx context.Context, escrowID string) (*model.EscrowHold, error)
	ListEscrows(ctx context.Context, filter model.EscrowFilter) ([]model.EscrowHold, error)
	UpdateEscrow(ctx context.Context, escrow model.EscrowHold) error
	InsertEscrowEvent(ctx context.Context, event model.EscrowEvent) error
	ListEscrowEvents(ctx context.Context, escrowID string) ([]model.EscrowEvent, error)

	InsertMilestone(ctx context.Context, milestone model.BookingMilestone) error
	GetMilestone(ctx context.Context, ownerUserID, milestoneID string) (*model.BookingMilestone, error)
	ListMilestones(ctx context.Context, filter model.MilestoneFilter) ([]model.BookingMilestone, error)
	UpdateMilestone(ctx context.Context, milestone model.BookingMilestone) error
	SumActiveMilestones(ctx context.Context, sourceType model.SourceType, sourceID string) (int64, error)

	InsertDispute(ctx context.Context, dispute model.Dispute) error
	GetDispute(ctx context.Context, disputeID string) (*model.Dispute, error)
	ListDisputes(ctx context.Context, filter model.DisputeFilter) ([]model.Dispute, error)
	UpdateDispute(ctx context.Context, dispute model.Dispute) error
	InsertDisputeEvent(ctx context.Context, event model.DisputeEvent) error
	ListDisputeEvents(ctx context.Context, disputeID string) ([]model.DisputeEvent, error)

	InsertBooking(ctx context.Context, booking model.Booking) error
	GetBooking(ctx context.Context, bookingID string) (*model.Booking, error)
	InsertBounty(ctx context.Context, bounty model.Bounty) error
	GetBounty(ctx context.Context, bountyID string) (*model.Bounty, error)
	InsertBountyApplication(ctx context.Context, app model.BountyApplication) error
	GetAcceptedApplication(ctx context.Context, bountyID string) (*model.BountyApplication, error)
	HasBountyApplication(ctx context.Context, bountyID, humanID string) (bool, error)

	StoreOutboxEvent(ctx context.Context, event model.OutboxEvent) error
	GetUnsentEventsForProcessing(ctx context.Context, limit int) ([]model.OutboxEvent, error)
	MarkEventAsSent(ctx context.Context, eventID string) error
	MarkEventAsFailed(ctx context.Context, eventID string) error
}

// Store runs Queries inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise.
type Store interface {
	WithTx(ctx context.Context, fn func(q Queries) error) error
}
