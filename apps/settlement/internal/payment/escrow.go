package payment

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

type CreateHoldInput struct {
	OwnerUserID string           `json:"-" validate:"required"`
	SourceType  model.SourceType `json:"source_type" validate:"required,oneof=bounty booking manual"`
	SourceID    *string          `json:"source_id,omitempty"`
	AmountCents *int64           `json:"amount_cents,omitempty"`
	PayeeID     *string          `json:"payee_id,omitempty"`
	Chain       string           `json:"chain" validate:"required"`
	Network     string           `json:"network" validate:"required"`
	Token       string           `json:"token" validate:"required"`
	WalletID    *string          `json:"wallet_id,omitempty"`
	Note        *string          `json:"note,omitempty" validate:"omitempty,max=1000"`
}

// CreateHold commits funds against a source and binds the destination wallet.
// No payout exists until the hold is released.
func (s *Service) CreateHold(ctx context.Context, in CreateHoldInput) (*model.EscrowHold, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := s.normalizeRoute(&in.Chain, &in.Network, &in.Token); err != nil {
		return nil, err
	}

	t := &tally{}
	var hold *model.EscrowHold
	err := s.withTx(ctx, func(q repository.Queries) error {
		source, err := s.resolveSource(ctx, q, in.OwnerUserID, in.SourceType, in.SourceID, in.AmountCents, in.PayeeID)
		if err != nil {
			return err
		}
		wallet, err := s.ResolveWalletForPayout(ctx, q, source.payeeID, in.Chain, in.Network, in.Token, in.WalletID)
		if err != nil {
			return err
		}

		now := s.now()
		hold = &model.EscrowHold{
			ID:          newID(),
			OwnerUserID: in.OwnerUserID,
			PayeeID:     source.payeeID,
			SourceType:  in.SourceType,
			SourceID:    source.sourceID,
			WalletID:    wallet.ID,
			Chain:       in.Chain,
			Network:     in.Network,
			Token:       in.Token,
			AmountCents: source.amountCents,
			Status:      model.EscrowStatusHeld,
			Note:        in.Note,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := q.InsertEscrow(ctx, *hold); err != nil {
			return err
		}
		return s.recordEscrowEvent(ctx, q, t, hold, model.EventEscrowCreated, strPtr(in.OwnerUserID), map[string]any{
			"source_type": string(hold.SourceType),
			"wallet_id":   hold.WalletID,
		})
	})
	if err != nil {
		return nil, err
	}
	t.publish()

	s.logger.Info("Escrow hold created",
		zap.String("escrow_id", hold.ID),
		zap.String("owner_user_id", hold.OwnerUserID),
		zap.Int64("amount_cents", hold.AmountCents))
	return hold, nil
}

type ReleaseInput struct {
	OwnerUserID        string              `json:"-" validate:"required"`
	EscrowID           string              `json:"escrow_id" validate:"required"`
	ExecutionMode      model.ExecutionMode `json:"execution_mode" validate:"omitempty,oneof=manual agent_auto"`
	AgentID            *string             `json:"agent_id,omitempty"`
	IdempotencyKey     *string             `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`
	AutoExecute        bool                `json:"auto_execute"`
	TxHash             *string             `json:"tx_hash,omitempty"`
	ConfirmImmediately *bool               `json:"confirm_immediately,omitempty"`
}

type ReleaseResult struct {
	Escrow model.EscrowHold   `json:"escrow"`
	Payout model.CryptoPayout `json:"payout"`
}

// Release turns a held escrow into exactly one manual-source payout for the
// held amount, wallet and payee.
func (s *Service) Release(ctx context.Context, in ReleaseInput) (*ReleaseResult, error) {
	if in.ExecutionMode == "" {
		in.ExecutionMode = model.ExecutionModeManual
	}
	if err := s.check(in); err != nil {
		return nil, err
	}
	if in.AutoExecute && in.ExecutionMode == model.ExecutionModeAgentAuto && (in.AgentID == nil || strings.TrimSpace(*in.AgentID) == "") {
		return nil, invalidf("agent_id is required to auto-execute a release")
	}

	t := &tally{}
	var result *ReleaseResult
	err := s.withTx(ctx, func(q repository.Queries) error {
		hold, err := s.getOwnedEscrow(ctx, q, in.OwnerUserID, in.EscrowID)
		if err != nil {
			return err
		}
		if hold.Status != model.EscrowStatusHeld {
			return newError(KindInvalidTransition, "escrow %s is %s, only held escrows can be released", hold.ID, hold.Status)
		}

		payout, replayed, err := s.createIntent(ctx, q, t, CreateIntentInput{
			OwnerUserID:    in.OwnerUserID,
			SourceType:     model.SourceTypeManual,
			SourceID:       strPtr(hold.ID),
			AmountCents:    &hold.AmountCents,
			PayeeID:        &hold.PayeeID,
			Chain:          hold.Chain,
			Network:        hold.Network,
			Token:          hold.Token,
			WalletID:       &hold.WalletID,
			ExecutionMode:  in.ExecutionMode,
			AgentID:        in.AgentID,
			IdempotencyKey: in.IdempotencyKey,
		})
		if err != nil {
			return err
		}
		if replayed {
			if err := assertReplayFor(payout, model.SourceTypeManual, hold.ID, hold.AmountCents); err != nil {
				return err
			}
			if payout.WalletID != hold.WalletID {
				return newError(KindInvalidTransition, "payout %s does not pay escrow wallet %s", payout.ID, hold.WalletID)
			}
		}

		now := s.now()
		hold.Status = model.EscrowStatusReleased
		hold.ReleasePayoutID = &payout.ID
		hold.ReleasedAt = timePtr(now)
		hold.UpdatedAt = now
		if err := q.UpdateEscrow(ctx, *hold); err != nil {
			return err
		}
		actor := in.AgentID
		if actor == nil {
			actor = strPtr(in.OwnerUserID)
		}
		if err := s.recordEscrowEvent(ctx, q, t, hold, model.EventEscrowReleased, actor, map[string]any{
			"payout_id":      payout.ID,
			"execution_mode": string(in.ExecutionMode),
		}); err != nil {
			return err
		}

		if in.ExecutionMode == model.ExecutionModeAgentAuto && in.AutoExecute {
			if err := s.executeByAgent(ctx, q, t, payout, ExecuteInput{
				OwnerUserID:        in.OwnerUserID,
				PayoutID:           payout.ID,
				AgentID:            *in.AgentID,
				TxHash:             in.TxHash,
				ConfirmImmediately: in.ConfirmImmediately,
			}); err != nil {
				return err
			}
		}

		result = &ReleaseResult{Escrow: *hold, Payout: *payout}
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.publish()

	s.logger.Info("Escrow released",
		zap.String("escrow_id", result.Escrow.ID),
		zap.String("payout_id", result.Payout.ID),
		zap.String("payout_status", string(result.Payout.Status)))
	return result, nil
}

func (s *Service) getOwnedEscrow(ctx context.Context, q repository.Queries, ownerUserID, escrowID string) (*model.EscrowHold, error) {
	hold, err := q.GetEscrow(ctx, ownerUserID, escrowID)
	if err != nil {
		return nil, err
	}
	if hold == nil {
		return nil, notFound("escrow", escrowID)
	}
	return hold, nil
}

func (s *Service) GetEscrow(ctx context.Context, ownerUserID, escrowID string) (*model.EscrowHold, error) {
	var hold *model.EscrowHold
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		hold, err = s.getOwnedEscrow(ctx, q, ownerUserID, escrowID)
		return err
	})
	return hold, err
}

func (s *Service) ListEscrows(ctx context.Context, filter model.EscrowFilter) ([]model.EscrowHold, error) {
	if filter.SourceType != "" && !filter.SourceType.Valid() {
		return nil, invalidf("unsupported source_type %q", filter.SourceType)
	}
	filter.Limit = clampLimit(filter.Limit)

	var holds []model.EscrowHold
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		holds, err = q.ListEscrows(ctx, filter)
		return err
	})
	return holds, err
}

func (s *Service) ListEscrowEvents(ctx context.Context, ownerUserID, escrowID string) ([]model.EscrowEvent, error) {
	var events []model.EscrowEvent
	err := s.withTx(ctx, func(q repository.Queries) error {
		if _, err := s.getOwnedEscrow(ctx, q, ownerUserID, escrowID); err != nil {
			return err
		}
		var err error
		events, err = q.ListEscrowEvents(ctx, escrowID)
		return err
	})
	return events, err
}
