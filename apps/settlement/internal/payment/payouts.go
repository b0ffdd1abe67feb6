package payment

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

// CreateIntentInput describes a payout request. For booking and bounty sources the
// amount and payee default to the source's price and booked human.
type CreateIntentInput struct {
	OwnerUserID    string              `json:"-" validate:"required"`
	SourceType     model.SourceType    `json:"source_type" validate:"required,oneof=bounty booking manual"`
	SourceID       *string             `json:"source_id,omitempty"`
	AmountCents    *int64              `json:"amount_cents,omitempty"`
	PayeeID        *string             `json:"payee_id,omitempty"`
	Chain          string              `json:"chain" validate:"required"`
	Network        string              `json:"network" validate:"required"`
	Token          string              `json:"token" validate:"required"`
	WalletID       *string             `json:"wallet_id,omitempty"`
	ExecutionMode  model.ExecutionMode `json:"execution_mode" validate:"omitempty,oneof=manual agent_auto"`
	AgentID        *string             `json:"agent_id,omitempty"`
	IdempotencyKey *string             `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
}

func (s *Service) normalizeRoute(chain, network, token *string) error {
	*chain = strings.ToLower(strings.TrimSpace(*chain))
	*network = strings.ToLower(strings.TrimSpace(*network))
	*token = strings.ToUpper(strings.TrimSpace(*token))
	if err := s.networks.ValidateRoute(*chain, *network, *token); err != nil {
		return invalidf("%v", err)
	}
	return nil
}

// CreateIntent creates a payout, or returns the owner's existing payout for the
// same idempotency key unchanged.
func (s *Service) CreateIntent(ctx context.Context, in CreateIntentInput) (*model.CryptoPayout, error) {
	if in.ExecutionMode == "" {
		in.ExecutionMode = model.ExecutionModeManual
	}
	if in.IdempotencyKey != nil && strings.TrimSpace(*in.IdempotencyKey) == "" {
		in.IdempotencyKey = nil
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := s.normalizeRoute(&in.Chain, &in.Network, &in.Token); err != nil {
		return nil, err
	}

	t := &tally{}
	var payout *model.CryptoPayout
	var replayed bool
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		payout, replayed, err = s.createIntent(ctx, q, t, in)
		return err
	})
	if err != nil {
		return nil, err
	}
	t.publish()

	if replayed {
		s.logger.Info("Payout intent replayed",
			zap.String("payout_id", payout.ID),
			zap.String("owner_user_id", payout.OwnerUserID))
		return payout, nil
	}
	payoutAmountCents.WithLabelValues(payout.Chain, payout.Token).Add(float64(payout.AmountCents))
	s.logger.Info("Payout intent created",
		zap.String("payout_id", payout.ID),
		zap.String("owner_user_id", payout.OwnerUserID),
		zap.String("payee_id", payout.PayeeID),
		zap.String("status", string(payout.Status)),
		zap.String("execution_mode", string(payout.ExecutionMode)),
		zap.Int64("amount_cents", payout.AmountCents))
	return payout, nil
}

// createIntent runs inside the caller's transaction so escrow release and
// milestone completion share it.
func (s *Service) createIntent(ctx context.Context, q repository.Queries, t *tally, in CreateIntentInput) (*model.CryptoPayout, bool, error) {
	// Serializes this owner's creations so the daily cap sees every committed payout.
	if err := q.LockOwner(ctx, in.OwnerUserID); err != nil {
		return nil, false, err
	}

	if in.IdempotencyKey != nil {
		existing, err := q.GetPayoutByIdempotencyKey(ctx, in.OwnerUserID, *in.IdempotencyKey)
		if err != nil || existing != nil {
			return existing, existing != nil, err
		}
	}

	source, err := s.resolveSource(ctx, q, in.OwnerUserID, in.SourceType, in.SourceID, in.AmountCents, in.PayeeID)
	if err != nil {
		return nil, false, err
	}

	wallet, err := s.ResolveWalletForPayout(ctx, q, source.payeeID, in.Chain, in.Network, in.Token, in.WalletID)
	if err != nil {
		return nil, false, err
	}

	policy, err := s.loadPolicy(ctx, q, in.OwnerUserID)
	if err != nil {
		return nil, false, err
	}
	if in.ExecutionMode == model.ExecutionModeAgentAuto {
		if err := AssertVerifiedForAutoPay(wallet); err != nil {
			return nil, false, err
		}
		if err := s.AssertAutopayAllowed(ctx, q, policy, source.amountCents, in.Chain, in.Token, in.OwnerUserID); err != nil {
			return nil, false, err
		}
	}

	now := s.now()
	payout := &model.CryptoPayout{
		ID:               newID(),
		OwnerUserID:      in.OwnerUserID,
		PayeeID:          source.payeeID,
		SourceType:       in.SourceType,
		SourceID:         source.sourceID,
		WalletID:         wallet.ID,
		DestinationAddr:  wallet.Address,
		Chain:            in.Chain,
		Network:          in.Network,
		Token:            in.Token,
		AmountCents:      source.amountCents,
		Status:           model.PayoutStatusPending,
		ExecutionMode:    in.ExecutionMode,
		IdempotencyKey:   in.IdempotencyKey,
		RequestedByAgent: in.AgentID,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	autoApprove := in.ExecutionMode == model.ExecutionModeAgentAuto && !policy.RequireApproval
	if autoApprove {
		payout.Status = model.PayoutStatusApproved
		payout.ApprovedAt = timePtr(now)
		payout.ApprovedBy = in.AgentID
	}

	if err := q.InsertPayout(ctx, *payout); err != nil {
		if errors.Is(err, repository.ErrDuplicateIdempotencyKey) && in.IdempotencyKey != nil {
			existing, getErr := q.GetPayoutByIdempotencyKey(ctx, in.OwnerUserID, *in.IdempotencyKey)
			if getErr != nil {
				return nil, false, getErr
			}
			return existing, true, nil
		}
		return nil, false, err
	}

	actor := in.AgentID
	if actor == nil {
		actor = strPtr(in.OwnerUserID)
	}
	err = s.recordPayoutEvent(ctx, q, t, payout, model.EventPayoutCreated, actor, map[string]any{
		"source_type":    string(payout.SourceType),
		"execution_mode": string(payout.ExecutionMode),
		"wallet_id":      payout.WalletID,
	})
	if err != nil {
		return nil, false, err
	}
	if autoApprove {
		err = s.recordPayoutEvent(ctx, q, t, payout, model.EventPayoutAutoApproved, in.AgentID, map[string]any{
			"reason": "policy does not require approval",
		})
		if err != nil {
			return nil, false, err
		}
	}
	return payout, false, nil
}

// assertReplayFor rejects a replayed payout that was created for a different
// source or amount, so an idempotency key cannot link a foreign payout.
func assertReplayFor(payout *model.CryptoPayout, sourceType model.SourceType, sourceID string, amountCents int64) error {
	if payout.SourceType == sourceType && payout.SourceID != nil && *payout.SourceID == sourceID && payout.AmountCents == amountCents {
		return nil
	}
	key := ""
	if payout.IdempotencyKey != nil {
		key = *payout.IdempotencyKey
	}
	return newError(KindInvalidTransition, "idempotency key %q already used by payout %s", key, payout.ID)
}

func (s *Service) getOwnedPayout(ctx context.Context, q repository.Queries, ownerUserID, payoutID string) (*model.CryptoPayout, error) {
	payout, err := q.GetPayout(ctx, ownerUserID, payoutID)
	if err != nil {
		return nil, err
	}
	if payout == nil {
		return nil, notFound("payout", payoutID)
	}
	return payout, nil
}

// Approve moves a pending payout to approved.
func (s *Service) Approve(ctx context.Context, ownerUserID, payoutID, actorID string) (*model.CryptoPayout, error) {
	t := &tally{}
	var payout *model.CryptoPayout
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		payout, err = s.getOwnedPayout(ctx, q, ownerUserID, payoutID)
		if err != nil {
			return err
		}
		if payout.Status != model.PayoutStatusPending {
			return newError(KindInvalidTransition, "payout %s is %s, only pending payouts can be approved", payoutID, payout.Status)
		}

		now := s.now()
		actor := optional(actorID)
		if actor == nil {
			actor = strPtr(ownerUserID)
		}
		payout.Status = model.PayoutStatusApproved
		payout.ApprovedAt = timePtr(now)
		payout.ApprovedBy = actor
		payout.UpdatedAt = now
		if err := q.UpdatePayout(ctx, *payout); err != nil {
			return err
		}
		return s.recordPayoutEvent(ctx, q, t, payout, model.EventPayoutApproved, actor, nil)
	})
	if err != nil {
		return nil, err
	}
	t.publish()

	s.logger.Info("Payout approved", zap.String("payout_id", payoutID), zap.String("owner_user_id", ownerUserID))
	return payout, nil
}

type ExecuteInput struct {
	OwnerUserID        string  `json:"-" validate:"required"`
	PayoutID           string  `json:"payout_id" validate:"required"`
	AgentID            string  `json:"agent_id" validate:"required"`
	TxHash             *string `json:"tx_hash,omitempty" validate:"omitempty,max=128"`
	ConfirmImmediately *bool   `json:"confirm_immediately,omitempty"`
}

func (in ExecuteInput) confirm() bool {
	return in.ConfirmImmediately == nil || *in.ConfirmImmediately
}

// ExecuteByAgent submits (and by default confirms) an agent_auto payout after
// re-checking wallet verification and the owner's current policy.
func (s *Service) ExecuteByAgent(ctx context.Context, in ExecuteInput) (*model.CryptoPayout, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}

	t := &tally{}
	var payout *model.CryptoPayout
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		payout, err = s.getOwnedPayout(ctx, q, in.OwnerUserID, in.PayoutID)
		if err != nil {
			return err
		}
		return s.executeByAgent(ctx, q, t, payout, in)
	})
	if err != nil {
		return nil, err
	}
	t.publish()

	s.logger.Info("Payout executed by agent",
		zap.String("payout_id", payout.ID),
		zap.String("agent_id", in.AgentID),
		zap.String("status", string(payout.Status)),
		zap.Stringp("tx_hash", payout.TxHash))
	return payout, nil
}

func (s *Service) executeByAgent(ctx context.Context, q repository.Queries, t *tally, payout *model.CryptoPayout, in ExecuteInput) error {
	if payout.ExecutionMode != model.ExecutionModeAgentAuto {
		return newError(KindInvalidTransition, "payout %s uses %s execution, agents may only execute agent_auto payouts", payout.ID, payout.ExecutionMode)
	}
	if payout.Status.IsTerminal() {
		return newError(KindInvalidTransition, "payout %s is already %s", payout.ID, payout.Status)
	}

	wallet, err := q.GetWallet(ctx, payout.WalletID)
	if err != nil {
		return err
	}
	if err := AssertVerifiedForAutoPay(wallet); err != nil {
		return err
	}

	// Serializes with createIntent so the daily cap re-check sees committed payouts.
	if err := q.LockOwner(ctx, payout.OwnerUserID); err != nil {
		return err
	}
	policy, err := s.loadPolicy(ctx, q, payout.OwnerUserID)
	if err != nil {
		return err
	}
	var counted int64
	if from, to := dayWindow(s.now()); !payout.CreatedAt.Before(from) && payout.CreatedAt.Before(to) {
		counted = payout.AmountCents
	}
	if err := s.assertAutopayAllowed(ctx, q, policy, payout.AmountCents, payout.Chain, payout.Token, payout.OwnerUserID, counted); err != nil {
		return err
	}

	agent := strPtr(in.AgentID)
	now := s.now()

	if payout.Status == model.PayoutStatusPending {
		if policy.RequireApproval {
			return newError(KindApprovalRequired, "payout %s requires owner approval before execution", payout.ID)
		}
		payout.Status = model.PayoutStatusApproved
		payout.ApprovedAt = timePtr(now)
		payout.ApprovedBy = agent
		payout.UpdatedAt = now
		if err := q.UpdatePayout(ctx, *payout); err != nil {
			return err
		}
		if err := s.recordPayoutEvent(ctx, q, t, payout, model.EventPayoutAutoApproved, agent, map[string]any{
			"reason": "approved at execution, policy does not require approval",
		}); err != nil {
			return err
		}
	}

	if payout.Status == model.PayoutStatusApproved {
		txHash := ""
		if in.TxHash != nil {
			txHash = strings.TrimSpace(*in.TxHash)
		}
		if txHash == "" {
			txHash = SimulatedTxHash(s.networks.FamilyOf(payout.Chain), *payout)
		}
		payout.Status = model.PayoutStatusSubmitted
		payout.TxHash = strPtr(txHash)
		payout.SubmittedAt = timePtr(now)
		payout.UpdatedAt = now
		if err := q.UpdatePayout(ctx, *payout); err != nil {
			return err
		}
		if err := s.recordPayoutEvent(ctx, q, t, payout, model.EventPayoutSubmitted, agent, map[string]any{
			"tx_hash": txHash,
		}); err != nil {
			return err
		}
	}

	if payout.Status != model.PayoutStatusSubmitted {
		return newError(KindInvalidTransition, "payout %s is %s and cannot be executed", payout.ID, payout.Status)
	}
	if !in.confirm() {
		return nil
	}

	payout.Status = model.PayoutStatusConfirmed
	payout.ConfirmedAt = timePtr(now)
	payout.UpdatedAt = now
	if err := q.UpdatePayout(ctx, *payout); err != nil {
		return err
	}
	return s.recordPayoutEvent(ctx, q, t, payout, model.EventPayoutConfirmed, agent, map[string]any{
		"tx_hash": *payout.TxHash,
	})
}

// Fail marks a payout as failed with reason unless it is confirmed or cancelled.
func (s *Service) Fail(ctx context.Context, ownerUserID, payoutID, reason, actorID string) (*model.CryptoPayout, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, invalidf("reason is required")
	}

	t := &tally{}
	var payout *model.CryptoPayout
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		payout, err = s.getOwnedPayout(ctx, q, ownerUserID, payoutID)
		if err != nil {
			return err
		}
		// A failed payout may be failed again to record a newer reason.
		if payout.Status == model.PayoutStatusConfirmed || payout.Status == model.PayoutStatusCancelled {
			return newError(KindInvalidTransition, "payout %s is already %s", payoutID, payout.Status)
		}

		now := s.now()
		actor := optional(actorID)
		if actor == nil {
			actor = strPtr(ownerUserID)
		}
		payout.Status = model.PayoutStatusFailed
		payout.FailureReason = strPtr(reason)
		payout.FailedAt = timePtr(now)
		payout.UpdatedAt = now
		if err := q.UpdatePayout(ctx, *payout); err != nil {
			return err
		}
		return s.recordPayoutEvent(ctx, q, t, payout, model.EventPayoutFailed, actor, map[string]any{"reason": reason})
	})
	if err != nil {
		return nil, err
	}
	t.publish()

	s.logger.Warn("Payout failed",
		zap.String("payout_id", payoutID),
		zap.String("owner_user_id", ownerUserID),
		zap.String("reason", reason))
	return payout, nil
}

func (s *Service) GetPayout(ctx context.Context, ownerUserID, payoutID string) (*model.CryptoPayout, error) {
	var payout *model.CryptoPayout
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		payout, err = s.getOwnedPayout(ctx, q, ownerUserID, payoutID)
		return err
	})
	return payout, err
}

func (s *Service) ListPayouts(ctx context.Context, filter model.PayoutFilter) ([]model.CryptoPayout, error) {
	if filter.Status != "" {
		switch filter.Status {
		case model.PayoutStatusPending, model.PayoutStatusApproved, model.PayoutStatusSubmitted,
			model.PayoutStatusConfirmed, model.PayoutStatusFailed, model.PayoutStatusCancelled:
		default:
			return nil, invalidf("unsupported payout status %q", filter.Status)
		}
	}
	if filter.SourceType != "" && !filter.SourceType.Valid() {
		return nil, invalidf("unsupported source_type %q", filter.SourceType)
	}
	filter.Limit = clampLimit(filter.Limit)

	var payouts []model.CryptoPayout
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		payouts, err = q.ListPayouts(ctx, filter)
		return err
	})
	return payouts, err
}

// ListPayoutEvents returns the payout's audit trail in creation order.
func (s *Service) ListPayoutEvents(ctx context.Context, ownerUserID, payoutID string) ([]model.PayoutEvent, error) {
	var events []model.PayoutEvent
	err := s.withTx(ctx, func(q repository.Queries) error {
		if _, err := s.getOwnedPayout(ctx, q, ownerUserID, payoutID); err != nil {
			return err
		}
		var err error
		events, err = q.ListPayoutEvents(ctx, payoutID)
		return err
	})
	return events, err
}
