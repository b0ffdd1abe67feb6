package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"settlement/apps/settlement/internal/model"
)

// MemoryStore is an in-process Store used by tests and the STORE_DRIVER=memory
// mode. Transactions are serialized by a single mutex and work on a copy of the
// data that replaces the live state only when fn succeeds.
type MemoryStore struct {
	mu   sync.Mutex
	data *memData
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: &memData{policies: map[string]model.PaymentPolicy{}}}
}

func (s *MemoryStore) WithTx(ctx context.Context, fn func(q Queries) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	working := s.data.clone()
	if err := fn(&memQueries{d: working}); err != nil {
		return err
	}
	s.data = working
	return nil
}

type memData struct {
	policies      map[string]model.PaymentPolicy
	wallets       []model.Wallet
	challenges    []model.WalletVerificationChallenge
	payouts       []model.CryptoPayout
	payoutEvents  []model.PayoutEvent
	subscriptions []model.PayoutWebhookSubscription
	deliveries    []model.PayoutWebhookDelivery
	escrows       []model.EscrowHold
	escrowEvents  []model.EscrowEvent
	milestones    []model.BookingMilestone
	disputes      []model.Dispute
	disputeEvents []model.DisputeEvent
	bookings      []model.Booking
	bounties      []model.Bounty
	applications  []model.BountyApplication
	outbox        []model.OutboxEvent
}

// clone copies every collection. Rows are values and are replaced, never
// mutated through shared pointers, so a shallow copy per slice is enough.
func (d *memData) clone() *memData {
	c := &memData{
		policies:      make(map[string]model.PaymentPolicy, len(d.policies)),
		wallets:       slices.Clone(d.wallets),
		challenges:    slices.Clone(d.challenges),
		payouts:       slices.Clone(d.payouts),
		payoutEvents:  slices.Clone(d.payoutEvents),
		subscriptions: slices.Clone(d.subscriptions),
		deliveries:    slices.Clone(d.deliveries),
		escrows:       slices.Clone(d.escrows),
		escrowEvents:  slices.Clone(d.escrowEvents),
		milestones:    slices.Clone(d.milestones),
		disputes:      slices.Clone(d.disputes),
		disputeEvents: slices.Clone(d.disputeEvents),
		bookings:      slices.Clone(d.bookings),
		bounties:      slices.Clone(d.bounties),
		applications:  slices.Clone(d.applications),
		outbox:        slices.Clone(d.outbox),
	}
	for k, v := range d.policies {
		c.policies[k] = v
	}
	return c
}

type memQueries struct {
	d *memData
}

func (q *memQueries) LockOwner(ctx context.Context, ownerUserID string) error {
	return nil
}

func (q *memQueries) LockSource(ctx context.Context, sourceType model.SourceType, sourceID string) error {
	return nil
}

func copyPolicy(p model.PaymentPolicy) model.PaymentPolicy {
	p.AllowedChains = slices.Clone(p.AllowedChains)
	p.AllowedTokens = slices.Clone(p.AllowedTokens)
	return p
}

func (q *memQueries) GetPolicy(ctx context.Context, ownerUserID string) (*model.PaymentPolicy, error) {
	p, ok := q.d.policies[ownerUserID]
	if !ok {
		return nil, nil
	}
	p = copyPolicy(p)
	return &p, nil
}

func (q *memQueries) InsertPolicyIfMissing(ctx context.Context, policy model.PaymentPolicy) error {
	if _, ok := q.d.policies[policy.OwnerUserID]; !ok {
		q.d.policies[policy.OwnerUserID] = copyPolicy(policy)
	}
	return nil
}

func (q *memQueries) UpdatePolicy(ctx context.Context, policy model.PaymentPolicy) error {
	if _, ok := q.d.policies[policy.OwnerUserID]; ok {
		q.d.policies[policy.OwnerUserID] = copyPolicy(policy)
	}
	return nil
}

func (q *memQueries) SumPayoutsCreatedBetween(ctx context.Context, ownerUserID string, from, to time.Time, statuses []model.PayoutStatus) (int64, error) {
	var total int64
	for _, p := range q.d.payouts {
		if p.OwnerUserID != ownerUserID || p.CreatedAt.Before(from) || !p.CreatedAt.Before(to) {
			continue
		}
		if slices.Contains(statuses, p.Status) {
			total += p.AmountCents
		}
	}
	return total, nil
}

func (q *memQueries) UpsertWallet(ctx context.Context, wallet model.Wallet) (*model.Wallet, error) {
	for i, w := range q.d.wallets {
		if w.PayeeID == wallet.PayeeID && w.SameRoute(wallet.Chain, wallet.Network, wallet.Token) && w.Address == wallet.Address {
			if wallet.Label != nil {
				w.Label = wallet.Label
			}
			w.IsDefault = w.IsDefault || wallet.IsDefault
			w.UpdatedAt = wallet.UpdatedAt
			q.d.wallets[i] = w
			return &w, nil
		}
	}
	q.d.wallets = append(q.d.wallets, wallet)
	return &wallet, nil
}

func (q *memQueries) walletIndex(walletID string) int {
	return slices.IndexFunc(q.d.wallets, func(w model.Wallet) bool { return w.ID == walletID })
}

func (q *memQueries) GetWallet(ctx context.Context, walletID string) (*model.Wallet, error) {
	i := q.walletIndex(walletID)
	if i < 0 {
		return nil, nil
	}
	w := q.d.wallets[i]
	return &w, nil
}

func (q *memQueries) GetDefaultWallet(ctx context.Context, payeeID, chain, network, token string) (*model.Wallet, error) {
	for _, w := range q.d.wallets {
		if w.PayeeID == payeeID && w.SameRoute(chain, network, token) && w.IsDefault {
			return &w, nil
		}
	}
	return nil, nil
}

func (q *memQueries) ClearDefaultWallets(ctx context.Context, payeeID, chain, network, token, exceptAddress string) error {
	for i, w := range q.d.wallets {
		if w.PayeeID == payeeID && w.SameRoute(chain, network, token) && w.IsDefault && w.Address != exceptAddress {
			w.IsDefault = false
			q.d.wallets[i] = w
		}
	}
	return nil
}

func (q *memQueries) SetWalletDefault(ctx context.Context, walletID string) error {
	if i := q.walletIndex(walletID); i >= 0 {
		q.d.wallets[i].IsDefault = true
	}
	return nil
}

func (q *memQueries) ListWallets(ctx context.Context, filter model.WalletFilter) ([]model.Wallet, error) {
	var out []model.Wallet
	for _, w := range q.d.wallets {
		if w.PayeeID != filter.PayeeID ||
			(filter.Chain != "" && w.Chain != filter.Chain) ||
			(filter.Network != "" && w.Network != filter.Network) ||
			(filter.Token != "" && w.Token != filter.Token) {
			continue
		}
		out = append(out, w)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (q *memQueries) UpdateWalletVerification(ctx context.Context, walletID string, status model.VerificationStatus, verifiedAt *time.Time) error {
	if i := q.walletIndex(walletID); i >= 0 {
		q.d.wallets[i].VerificationStatus = status
		q.d.wallets[i].VerifiedAt = verifiedAt
	}
	return nil
}

func (q *memQueries) InsertChallenge(ctx context.Context, challenge model.WalletVerificationChallenge) error {
	q.d.challenges = append(q.d.challenges, challenge)
	return nil
}

func (q *memQueries) GetChallenge(ctx context.Context, challengeID string) (*model.WalletVerificationChallenge, error) {
	for _, c := range q.d.challenges {
		if c.ID == challengeID {
			return &c, nil
		}
	}
	return nil, nil
}

func (q *memQueries) UpdateChallengeStatus(ctx context.Context, challengeID string, status model.ChallengeStatus, verifiedAt *time.Time) error {
	for i := range q.d.challenges {
		if q.d.challenges[i].ID == challengeID {
			q.d.challenges[i].Status = status
			q.d.challenges[i].VerifiedAt = verifiedAt
		}
	}
	return nil
}

func (q *memQueries) ListChallenges(ctx context.Context, walletID string) ([]model.WalletVerificationChallenge, error) {
	var out []model.WalletVerificationChallenge
	for i := len(q.d.challenges) - 1; i >= 0; i-- {
		if q.d.challenges[i].WalletID == walletID {
			out = append(out, q.d.challenges[i])
		}
	}
	return out, nil
}

func (q *memQueries) InsertPayout(ctx context.Context, payout model.CryptoPayout) error {
	if payout.IdempotencyKey != nil {
		existing, _ := q.GetPayoutByIdempotencyKey(ctx, payout.OwnerUserID, *payout.IdempotencyKey)
		if existing != nil {
			return ErrDuplicateIdempotencyKey
		}
	}
	q.d.payouts = append(q.d.payouts, payout)
	return nil
}

func (q *memQueries) findPayout(match func(model.CryptoPayout) bool) *model.CryptoPayout {
	for _, p := range q.d.payouts {
		if match(p) {
			return &p
		}
	}
	return nil
}

func (q *memQueries) GetPayout(ctx context.Context, ownerUserID, payoutID string) (*model.CryptoPayout, error) {
	return q.findPayout(func(p model.CryptoPayout) bool { return p.OwnerUserID == ownerUserID && p.ID == payoutID }), nil
}

func (q *memQueries) GetPayoutByID(ctx context.Context, payoutID string) (*model.CryptoPayout, error) {
	return q.findPayout(func(p model.CryptoPayout) bool { return p.ID == payoutID }), nil
}

func (q *memQueries) GetPayoutByIdempotencyKey(ctx context.Context, ownerUserID, key string) (*model.CryptoPayout, error) {
	return q.findPayout(func(p model.CryptoPayout) bool {
		return p.OwnerUserID == ownerUserID && p.IdempotencyKey != nil && *p.IdempotencyKey == key
	}), nil
}

func (q *memQueries) ListPayouts(ctx context.Context, filter model.PayoutFilter) ([]model.CryptoPayout, error) {
	var out []model.CryptoPayout
	for _, p := range q.d.payouts {
		if p.OwnerUserID != filter.OwnerUserID ||
			(filter.Status != "" && p.Status != filter.Status) ||
			(filter.PayeeID != "" && p.PayeeID != filter.PayeeID) ||
			(filter.SourceType != "" && p.SourceType != filter.SourceType) {
			continue
		}
		out = append(out, p)
	}
	sortNewestFirst(out, func(p model.CryptoPayout) time.Time { return p.CreatedAt })
	return truncate(out, filter.Limit), nil
}

func (q *memQueries) UpdatePayout(ctx context.Context, payout model.CryptoPayout) error {
	for i := range q.d.payouts {
		if q.d.payouts[i].ID == payout.ID {
			q.d.payouts[i] = payout
		}
	}
	return nil
}

func (q *memQueries) InsertPayoutEvent(ctx context.Context, event model.PayoutEvent) error {
	q.d.payoutEvents = append(q.d.payoutEvents, event)
	return nil
}

func (q *memQueries) ListPayoutEvents(ctx context.Context, payoutID string) ([]model.PayoutEvent, error) {
	var out []model.PayoutEvent
	for _, e := range q.d.payoutEvents {
		if e.PayoutID == payoutID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (q *memQueries) InsertSubscription(ctx context.Context, sub model.PayoutWebhookSubscription) error {
	sub.Events = slices.Clone(sub.Events)
	q.d.subscriptions = append(q.d.subscriptions, sub)
	return nil
}

func (q *memQueries) ListSubscriptions(ctx context.Context, ownerUserID string, activeOnly bool) ([]model.PayoutWebhookSubscription, error) {
	var out []model.PayoutWebhookSubscription
	for _, s := range q.d.subscriptions {
		if s.OwnerUserID != ownerUserID || (activeOnly && s.Status != model.SubscriptionActive) {
			continue
		}
		s.Events = slices.Clone(s.Events)
		out = append(out, s)
	}
	return out, nil
}

func (q *memQueries) InsertDelivery(ctx context.Context, delivery model.PayoutWebhookDelivery) error {
	q.d.deliveries = append(q.d.deliveries, delivery)
	return nil
}

func (q *memQueries) ListDeliveries(ctx context.Context, filter model.DeliveryFilter) ([]model.PayoutWebhookDelivery, error) {
	var out []model.PayoutWebhookDelivery
	for _, d := range q.d.deliveries {
		if d.OwnerUserID != filter.OwnerUserID ||
			(filter.SubscriptionID != "" && d.SubscriptionID != filter.SubscriptionID) ||
			(filter.PayoutID != "" && d.PayoutID != filter.PayoutID) {
			continue
		}
		out = append(out, d)
	}
	sortNewestFirst(out, func(d model.PayoutWebhookDelivery) time.Time { return d.CreatedAt })
	return truncate(out, filter.Limit), nil
}

func (q *memQueries) InsertEscrow(ctx context.Context, escrow model.EscrowHold) error {
	q.d.escrows = append(q.d.escrows, escrow)
	return nil
}

func (q *memQueries) GetEscrow(ctx context.Context, ownerUserID, escrowID string) (*model.EscrowHold, error) {
	for _, e := range q.d.escrows {
		if e.OwnerUserID == ownerUserID && e.ID == escrowID {
			return &e, nil
		}
	}
	return nil, nil
}

func (q *memQueries) GetEscrowByID(ctx context.Context, escrowID string) (*model.EscrowHold, error) {
	for _, e := range q.d.escrows {
		if e.ID == escrowID {
			return &e, nil
		}
	}
	return nil, nil
}

func (q *memQueries) ListEscrows(ctx context.Context, filter model.EscrowFilter) ([]model.EscrowHold, error) {
	var out []model.EscrowHold
	for _, e := range q.d.escrows {
		if e.OwnerUserID != filter.OwnerUserID ||
			(filter.Status != "" && e.Status != filter.Status) ||
			(filter.SourceType != "" && e.SourceType != filter.SourceType) ||
			(filter.SourceID != "" && (e.SourceID == nil || *e.SourceID != filter.SourceID)) {
			continue
		}
		out = append(out, e)
	}
	sortNewestFirst(out, func(e model.EscrowHold) time.Time { return e.CreatedAt })
	return truncate(out, filter.Limit), nil
}

func (q *memQueries) UpdateEscrow(ctx context.Context, escrow model.EscrowHold) error {
	for i := range q.d.escrows {
		if q.d.escrows[i].ID == escrow.ID {
			q.d.escrows[i] = escrow
		}
	}
	return nil
}

func (q *memQueries) InsertEscrowEvent(ctx context.Context, event model.EscrowEvent) error {
	q.d.escrowEvents = append(q.d.escrowEvents, event)
	return nil
}

func (q *memQueries) ListEscrowEvents(ctx context.Context, escrowID string) ([]model.EscrowEvent, error) {
	var out []model.EscrowEvent
	for _, e := range q.d.escrowEvents {
		if e.EscrowID == escrowID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (q *memQueries) InsertMilestone(ctx context.Context, milestone model.BookingMilestone) error {
	q.d.milestones = append(q.d.milestones, milestone)
	return nil
}

func (q *memQueries) GetMilestone(ctx context.Context, ownerUserID, milestoneID string) (*model.BookingMilestone, error) {
	for _, m := range q.d.milestones {
		if m.OwnerUserID == ownerUserID && m.ID == milestoneID {
			return &m, nil
		}
	}
	return nil, nil
}

func (q *memQueries) ListMilestones(ctx context.Context, filter model.MilestoneFilter) ([]model.BookingMilestone, error) {
	var out []model.BookingMilestone
	for _, m := range q.d.milestones {
		if m.OwnerUserID != filter.OwnerUserID ||
			(filter.SourceType != "" && m.SourceType != filter.SourceType) ||
			(filter.SourceID != "" && m.SourceID != filter.SourceID) ||
			(filter.Status != "" && m.Status != filter.Status) {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (q *memQueries) UpdateMilestone(ctx context.Context, milestone model.BookingMilestone) error {
	for i := range q.d.milestones {
		if q.d.milestones[i].ID == milestone.ID {
			q.d.milestones[i] = milestone
		}
	}
	return nil
}

func (q *memQueries) SumActiveMilestones(ctx context.Context, sourceType model.SourceType, sourceID string) (int64, error) {
	var total int64
	for _, m := range q.d.milestones {
		if m.SourceType == sourceType && m.SourceID == sourceID && m.Status != model.MilestoneCancelled {
			total += m.AmountCents
		}
	}
	return total, nil
}

func (q *memQueries) InsertDispute(ctx context.Context, dispute model.Dispute) error {
	q.d.disputes = append(q.d.disputes, dispute)
	return nil
}

func (q *memQueries) GetDispute(ctx context.Context, disputeID string) (*model.Dispute, error) {
	for _, d := range q.d.disputes {
		if d.ID == disputeID {
			return &d, nil
		}
	}
	return nil, nil
}

func (q *memQueries) ListDisputes(ctx context.Context, filter model.DisputeFilter) ([]model.Dispute, error) {
	var out []model.Dispute
	for _, d := range q.d.disputes {
		if (filter.OpenedBy != "" && d.OpenedBy != filter.OpenedBy) ||
			(filter.Status != "" && d.Status != filter.Status) ||
			(filter.TargetType != "" && d.TargetType != filter.TargetType) ||
			(filter.TargetID != "" && d.TargetID != filter.TargetID) {
			continue
		}
		out = append(out, d)
	}
	sortNewestFirst(out, func(d model.Dispute) time.Time { return d.CreatedAt })
	return truncate(out, filter.Limit), nil
}

func (q *memQueries) UpdateDispute(ctx context.Context, dispute model.Dispute) error {
	for i := range q.d.disputes {
		if q.d.disputes[i].ID == dispute.ID {
			q.d.disputes[i] = dispute
		}
	}
	return nil
}

func (q *memQueries) InsertDisputeEvent(ctx context.Context, event model.DisputeEvent) error {
	q.d.disputeEvents = append(q.d.disputeEvents, event)
	return nil
}

func (q *memQueries) ListDisputeEvents(ctx context.Context, disputeID string) ([]model.DisputeEvent, error) {
	var out []model.DisputeEvent
	for _, e := range q.d.disputeEvents {
		if e.DisputeID == disputeID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (q *memQueries) InsertBooking(ctx context.Context, booking model.Booking) error {
	if b, _ := q.GetBooking(ctx, booking.ID); b == nil {
		q.d.bookings = append(q.d.bookings, booking)
	}
	return nil
}

func (q *memQueries) GetBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	for _, b := range q.d.bookings {
		if b.ID == bookingID {
			return &b, nil
		}
	}
	return nil, nil
}

func (q *memQueries) InsertBounty(ctx context.Context, bounty model.Bounty) error {
	if b, _ := q.GetBounty(ctx, bounty.ID); b == nil {
		q.d.bounties = append(q.d.bounties, bounty)
	}
	return nil
}

func (q *memQueries) GetBounty(ctx context.Context, bountyID string) (*model.Bounty, error) {
	for _, b := range q.d.bounties {
		if b.ID == bountyID {
			return &b, nil
		}
	}
	return nil, nil
}

func (q *memQueries) InsertBountyApplication(ctx context.Context, app model.BountyApplication) error {
	for _, a := range q.d.applications {
		if a.ID == app.ID {
			return nil
		}
	}
	q.d.applications = append(q.d.applications, app)
	return nil
}

func (q *memQueries) GetAcceptedApplication(ctx context.Context, bountyID string) (*model.BountyApplication, error) {
	var found *model.BountyApplication
	for _, a := range q.d.applications {
		if a.BountyID != bountyID || a.Status != model.ApplicationStatusAccepted {
			continue
		}
		if found == nil || a.CreatedAt.Before(found.CreatedAt) {
			a := a
			found = &a
		}
	}
	return found, nil
}

func (q *memQueries) HasBountyApplication(ctx context.Context, bountyID, humanID string) (bool, error) {
	return slices.ContainsFunc(q.d.applications, func(a model.BountyApplication) bool {
		return a.BountyID == bountyID && a.HumanID == humanID
	}), nil
}

func (q *memQueries) StoreOutboxEvent(ctx context.Context, event model.OutboxEvent) error {
	q.d.outbox = append(q.d.outbox, event)
	return nil
}

func (q *memQueries) GetUnsentEventsForProcessing(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	var out []model.OutboxEvent
	for i := range q.d.outbox {
		if len(out) >= limit {
			break
		}
		if q.d.outbox[i].Status == model.OutboxStatusUnsent {
			q.d.outbox[i].Status = model.OutboxStatusProcessing
			out = append(out, q.d.outbox[i])
		}
	}
	return out, nil
}

func (q *memQueries) MarkEventAsSent(ctx context.Context, eventID string) error {
	for i := range q.d.outbox {
		if q.d.outbox[i].ID == eventID {
			q.d.outbox[i].Status = model.OutboxStatusSent
		}
	}
	return nil
}

func (q *memQueries) MarkEventAsFailed(ctx context.Context, eventID string) error {
	for i := range q.d.outbox {
		if q.d.outbox[i].ID == eventID && q.d.outbox[i].Status == model.OutboxStatusProcessing {
			q.d.outbox[i].Status = model.OutboxStatusUnsent
		}
	}
	return nil
}

func sortNewestFirst[T any](rows []T, createdAt func(T) time.Time) {
	// Reverse first so equal timestamps keep newest-inserted first.
	slices.Reverse(rows)
	sort.SliceStable(rows, func(i, j int) bool { return createdAt(rows[i]).After(createdAt(rows[j])) })
}

func truncate[T any](rows []T, limit int) []T {
	if limit > 0 && len(rows) > limit {
		return rows[:limit]
	}
	return rows
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*PostgresStore)(nil)
