package payment

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

type OpenDisputeInput struct {
	UserID     string                  `json:"-" validate:"required"`
	TargetType model.DisputeTargetType `json:"target_type" validate:"required,oneof=booking payout escrow bounty"`
	TargetID   string                  `json:"target_id" validate:"required"`
	Reason     string                  `json:"reason" validate:"required,max=2000"`
	Details    *string                 `json:"details,omitempty" validate:"omitempty,max=10000"`
}

// CanAct reports whether userID is a party to the dispute target: the booking's
// client or booked human, the payout or escrow owner or payee, or the bounty
// owner or one of its applicants.
func (s *Service) CanAct(ctx context.Context, q repository.Queries, userID string, targetType model.DisputeTargetType, targetID string) (bool, error) {
	switch targetType {
	case model.DisputeTargetBooking:
		booking, err := q.GetBooking(ctx, targetID)
		if err != nil || booking == nil {
			return false, err
		}
		return booking.UserID == userID || booking.HumanID == userID, nil
	case model.DisputeTargetPayout:
		payout, err := q.GetPayoutByID(ctx, targetID)
		if err != nil || payout == nil {
			return false, err
		}
		return payout.OwnerUserID == userID || payout.PayeeID == userID, nil
	case model.DisputeTargetEscrow:
		hold, err := q.GetEscrowByID(ctx, targetID)
		if err != nil || hold == nil {
			return false, err
		}
		return hold.OwnerUserID == userID || hold.PayeeID == userID, nil
	case model.DisputeTargetBounty:
		bounty, err := q.GetBounty(ctx, targetID)
		if err != nil || bounty == nil {
			return false, err
		}
		if bounty.UserID == userID {
			return true, nil
		}
		return q.HasBountyApplication(ctx, targetID, userID)
	}
	return false, nil
}

func (s *Service) OpenDispute(ctx context.Context, in OpenDisputeInput) (*model.Dispute, error) {
	in.Reason = strings.TrimSpace(in.Reason)
	in.TargetID = strings.TrimSpace(in.TargetID)
	if err := s.check(in); err != nil {
		return nil, err
	}

	t := &tally{}
	var dispute *model.Dispute
	err := s.withTx(ctx, func(q repository.Queries) error {
		ok, err := s.CanAct(ctx, q, in.UserID, in.TargetType, in.TargetID)
		if err != nil {
			return err
		}
		if !ok {
			return notFound(string(in.TargetType), in.TargetID)
		}

		now := s.now()
		dispute = &model.Dispute{
			ID:         newID(),
			OpenedBy:   in.UserID,
			TargetType: in.TargetType,
			TargetID:   in.TargetID,
			Reason:     in.Reason,
			Details:    in.Details,
			Status:     model.DisputeStatusOpen,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := q.InsertDispute(ctx, *dispute); err != nil {
			return err
		}
		return s.recordDisputeEvent(ctx, q, t, dispute, model.EventDisputeOpened, strPtr(in.UserID), map[string]any{
			"target_type": string(dispute.TargetType),
			"target_id":   dispute.TargetID,
			"reason":      dispute.Reason,
		})
	})
	if err != nil {
		return nil, err
	}
	t.publish()

	s.logger.Info("Dispute opened",
		zap.String("dispute_id", dispute.ID),
		zap.String("opened_by", dispute.OpenedBy),
		zap.String("target_type", string(dispute.TargetType)),
		zap.String("target_id", dispute.TargetID))
	return dispute, nil
}

type ResolveDisputeInput struct {
	ReviewerID string                  `json:"-" validate:"required"`
	DisputeID  string                  `json:"dispute_id" validate:"required"`
	Decision   model.DisputeResolution `json:"decision" validate:"required,oneof=refund release split no_action reject"`
	Note       *string                 `json:"note,omitempty" validate:"omitempty,max=10000"`
}

// ResolveDispute records a reviewer's decision. It does not move funds; any
// follow-up payout or escrow action is left to the caller.
func (s *Service) ResolveDispute(ctx context.Context, in ResolveDisputeInput) (*model.Dispute, error) {
	if err := s.check(in); err != nil {
		return nil, err
	}
	if !s.IsReviewer(in.ReviewerID) {
		return nil, newError(KindForbidden, "user %s is not a dispute reviewer", in.ReviewerID)
	}

	t := &tally{}
	var dispute *model.Dispute
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		dispute, err = q.GetDispute(ctx, in.DisputeID)
		if err != nil {
			return err
		}
		if dispute == nil {
			return notFound("dispute", in.DisputeID)
		}
		if dispute.Status.IsTerminal() {
			return newError(KindInvalidTransition, "dispute %s is already %s", dispute.ID, dispute.Status)
		}

		now := s.now()
		decision := in.Decision
		dispute.Status = model.DisputeStatusResolved
		if decision == model.ResolutionReject {
			dispute.Status = model.DisputeStatusRejected
		}
		dispute.Resolution = &decision
		dispute.ResolutionNote = in.Note
		dispute.ResolvedBy = strPtr(in.ReviewerID)
		dispute.ResolvedAt = timePtr(now)
		dispute.UpdatedAt = now
		if err := q.UpdateDispute(ctx, *dispute); err != nil {
			return err
		}
		return s.recordDisputeEvent(ctx, q, t, dispute, model.EventDisputeResolved, strPtr(in.ReviewerID), map[string]any{
			"resolution": string(decision),
		})
	})
	if err != nil {
		return nil, err
	}
	t.publish()

	s.logger.Info("Dispute resolved",
		zap.String("dispute_id", dispute.ID),
		zap.String("status", string(dispute.Status)),
		zap.String("resolved_by", in.ReviewerID))
	return dispute, nil
}

// visibleDispute loads a dispute the user opened, or any dispute for reviewers.
func (s *Service) visibleDispute(ctx context.Context, q repository.Queries, userID, disputeID string) (*model.Dispute, error) {
	dispute, err := q.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute == nil || (dispute.OpenedBy != userID && !s.IsReviewer(userID)) {
		return nil, notFound("dispute", disputeID)
	}
	return dispute, nil
}

func (s *Service) GetDispute(ctx context.Context, userID, disputeID string) (*model.Dispute, error) {
	var dispute *model.Dispute
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		dispute, err = s.visibleDispute(ctx, q, userID, disputeID)
		return err
	})
	return dispute, err
}

// ListDisputes lists the user's own disputes; reviewers see every dispute.
func (s *Service) ListDisputes(ctx context.Context, userID string, filter model.DisputeFilter) ([]model.Dispute, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, invalidf("user id is required")
	}
	if filter.TargetType != "" && !filter.TargetType.Valid() {
		return nil, invalidf("unsupported target_type %q", filter.TargetType)
	}
	filter.OpenedBy = userID
	if s.IsReviewer(userID) {
		filter.OpenedBy = ""
	}
	filter.Limit = clampLimit(filter.Limit)

	var disputes []model.Dispute
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		disputes, err = q.ListDisputes(ctx, filter)
		return err
	})
	return disputes, err
}

func (s *Service) ListDisputeEvents(ctx context.Context, userID, disputeID string) ([]model.DisputeEvent, error) {
	var events []model.DisputeEvent
	err := s.withTx(ctx, func(q repository.Queries) error {
		if _, err := s.visibleDispute(ctx, q, userID, disputeID); err != nil {
			return err
		}
		var err error
		events, err = q.ListDisputeEvents(ctx, disputeID)
		return err
	})
	return events, err
}
