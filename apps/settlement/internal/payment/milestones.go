package payment

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

type CreateMilestoneInput struct {
	OwnerUserID string           `json:"-" validate:"required"`
	SourceType  model.SourceType `json:"source_type" validate:"required,oneof=booking bounty"`
	SourceID    string           `json:"source_id" validate:"required"`
	Title       string           `json:"title" validate:"required,max=200"`
	AmountCents int64            `json:"amount_cents" validate:"gt=0"`
	DueAt       *time.Time       `json:"due_at,omitempty"`
}

// CreateMilestone adds a checkpoint while keeping the sum of non-cancelled
// milestones within the source's price or budget.
func (s *Service) CreateMilestone(ctx context.Context, in CreateMilestoneInput) (*model.BookingMilestone, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.SourceID = strings.TrimSpace(in.SourceID)
	if err := s.check(in); err != nil {
		return nil, err
	}

	var milestone *model.BookingMilestone
	err := s.withTx(ctx, func(q repository.Queries) error {
		if err := q.LockSource(ctx, in.SourceType, in.SourceID); err != nil {
			return err
		}
		capCents, err := s.milestoneCap(ctx, q, in.OwnerUserID, in.SourceType, in.SourceID)
		if err != nil {
			return err
		}
		committed, err := q.SumActiveMilestones(ctx, in.SourceType, in.SourceID)
		if err != nil {
			return err
		}
		if committed+in.AmountCents > capCents {
			return invalidf("milestones would total %d, exceeding the %s cap of %d",
				committed+in.AmountCents, in.SourceType, capCents)
		}

		now := s.now()
		milestone = &model.BookingMilestone{
			ID:          newID(),
			OwnerUserID: in.OwnerUserID,
			SourceType:  in.SourceType,
			SourceID:    in.SourceID,
			Title:       in.Title,
			AmountCents: in.AmountCents,
			Status:      model.MilestonePlanned,
			DueAt:       in.DueAt,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return q.InsertMilestone(ctx, *milestone)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Milestone created",
		zap.String("milestone_id", milestone.ID),
		zap.String("source_type", string(milestone.SourceType)),
		zap.String("source_id", milestone.SourceID),
		zap.Int64("amount_cents", milestone.AmountCents))
	return milestone, nil
}

// milestoneCap returns the budget of an owned, non-cancelled source.
func (s *Service) milestoneCap(ctx context.Context, q repository.Queries, ownerUserID string, sourceType model.SourceType, sourceID string) (int64, error) {
	switch sourceType {
	case model.SourceTypeBooking:
		booking, err := q.GetBooking(ctx, sourceID)
		if err != nil {
			return 0, err
		}
		if booking == nil || booking.UserID != ownerUserID {
			return 0, newError(KindSourceUnavailable, "booking %s not found", sourceID)
		}
		if booking.Status == model.SourceStatusCancelled {
			return 0, newError(KindSourceUnavailable, "booking %s is cancelled", sourceID)
		}
		return booking.TotalPriceCents, nil
	case model.SourceTypeBounty:
		bounty, err := q.GetBounty(ctx, sourceID)
		if err != nil {
			return 0, err
		}
		if bounty == nil || bounty.UserID != ownerUserID {
			return 0, newError(KindSourceUnavailable, "bounty %s not found", sourceID)
		}
		if bounty.Status == model.SourceStatusCancelled {
			return 0, newError(KindSourceUnavailable, "bounty %s is cancelled", sourceID)
		}
		return bounty.BudgetCents, nil
	}
	return 0, invalidf("milestones support booking and bounty sources, not %q", sourceType)
}

func (s *Service) ListMilestones(ctx context.Context, filter model.MilestoneFilter) ([]model.BookingMilestone, error) {
	var milestones []model.BookingMilestone
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		milestones, err = q.ListMilestones(ctx, filter)
		return err
	})
	return milestones, err
}

// MilestonePayoutConfig configures the payout created when a milestone completes.
type MilestonePayoutConfig struct {
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

type CompleteMilestoneInput struct {
	OwnerUserID      string                 `json:"-" validate:"required"`
	MilestoneID      string                 `json:"milestone_id" validate:"required"`
	AutoCreatePayout bool                   `json:"auto_create_payout"`
	Payout           *MilestonePayoutConfig `json:"payout,omitempty"`
}

type CompleteMilestoneResult struct {
	Milestone model.BookingMilestone `json:"milestone"`
	Payout    *model.CryptoPayout    `json:"payout,omitempty"`
}

// CompleteMilestone marks the milestone completed and optionally pays it out.
// It ends paid only when the created payout reached confirmed.
func (s *Service) CompleteMilestone(ctx context.Context, in CompleteMilestoneInput) (*CompleteMilestoneResult, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	cfg := in.Payout
	if in.AutoCreatePayout {
		if cfg == nil {
			return nil, invalidf("payout configuration is required when auto_create_payout is set")
		}
		if cfg.ExecutionMode == "" {
			cfg.ExecutionMode = model.ExecutionModeManual
		}
		if !cfg.ExecutionMode.Valid() {
			return nil, invalidf("unsupported execution_mode %q", cfg.ExecutionMode)
		}
		if err := s.normalizeRoute(&cfg.Chain, &cfg.Network, &cfg.Token); err != nil {
			return nil, err
		}
		if cfg.AutoExecute && cfg.ExecutionMode == model.ExecutionModeAgentAuto && (cfg.AgentID == nil || *cfg.AgentID == "") {
			return nil, invalidf("agent_id is required to auto-execute a milestone payout")
		}
	}

	t := &tally{}
	var result *CompleteMilestoneResult
	err := s.withTx(ctx, func(q repository.Queries) error {
		milestone, err := q.GetMilestone(ctx, in.OwnerUserID, in.MilestoneID)
		if err != nil {
			return err
		}
		if milestone == nil {
			return notFound("milestone", in.MilestoneID)
		}
		if milestone.Status == model.MilestoneCancelled || milestone.Status == model.MilestonePaid {
			return newError(KindInvalidTransition, "milestone %s is %s", milestone.ID, milestone.Status)
		}

		now := s.now()
		result = &CompleteMilestoneResult{}
		milestone.Status = model.MilestoneCompleted
		if milestone.CompletedAt == nil {
			milestone.CompletedAt = timePtr(now)
		}

		if in.AutoCreatePayout {
			key := cfg.IdempotencyKey
			if key == nil || *key == "" {
				key = strPtr("milestone:" + milestone.ID)
			}
			sourceID := milestone.SourceID
			payout, replayed, err := s.createIntent(ctx, q, t, CreateIntentInput{
				OwnerUserID:    in.OwnerUserID,
				SourceType:     milestone.SourceType,
				SourceID:       &sourceID,
				AmountCents:    &milestone.AmountCents,
				Chain:          cfg.Chain,
				Network:        cfg.Network,
				Token:          cfg.Token,
				WalletID:       cfg.WalletID,
				ExecutionMode:  cfg.ExecutionMode,
				AgentID:        cfg.AgentID,
				IdempotencyKey: key,
			})
			if err != nil {
				return err
			}
			if replayed {
				if err := assertReplayFor(payout, milestone.SourceType, milestone.SourceID, milestone.AmountCents); err != nil {
					return err
				}
				if milestone.PayoutID != nil && *milestone.PayoutID != payout.ID {
					return newError(KindInvalidTransition, "milestone %s is already linked to payout %s", milestone.ID, *milestone.PayoutID)
				}
			}

			if cfg.ExecutionMode == model.ExecutionModeAgentAuto && cfg.AutoExecute && !payout.Status.IsTerminal() {
				if err := s.executeByAgent(ctx, q, t, payout, ExecuteInput{
					OwnerUserID:        in.OwnerUserID,
					PayoutID:           payout.ID,
					AgentID:            *cfg.AgentID,
					TxHash:             cfg.TxHash,
					ConfirmImmediately: cfg.ConfirmImmediately,
				}); err != nil {
					return err
				}
			}

			milestone.PayoutID = &payout.ID
			if payout.Status == model.PayoutStatusConfirmed {
				milestone.Status = model.MilestonePaid
			}
			result.Payout = payout
		}

		milestone.UpdatedAt = now
		if err := q.UpdateMilestone(ctx, *milestone); err != nil {
			return err
		}
		result.Milestone = *milestone
		return nil
	})
	if err != nil {
		return nil, err
	}
	t.publish()

	s.logger.Info("Milestone completed",
		zap.String("milestone_id", result.Milestone.ID),
		zap.String("status", string(result.Milestone.Status)),
		zap.Stringp("payout_id", result.Milestone.PayoutID))
	return result, nil
}
