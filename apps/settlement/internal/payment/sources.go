package payment

import (
	"context"
	"strings"

	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

type fundingSource struct {
	sourceID    *string
	payeeID     string
	amountCents int64
}

// resolveSource derives the payee and amount of a payout or hold from its
// source. An explicit amount overrides the source price; an explicit payee must
// agree with the source's human.
func (s *Service) resolveSource(ctx context.Context, q repository.Queries, ownerUserID string, sourceType model.SourceType, sourceID *string, amountCents *int64, payeeID *string) (*fundingSource, error) {
	var src fundingSource

	switch sourceType {
	case model.SourceTypeManual:
		if payeeID == nil || strings.TrimSpace(*payeeID) == "" {
			return nil, invalidf("payee_id is required for manual payouts")
		}
		if amountCents == nil {
			return nil, invalidf("amount_cents is required for manual payouts")
		}
		src.sourceID = optionalPtr(sourceID)
		src.payeeID = strings.TrimSpace(*payeeID)
		src.amountCents = *amountCents

	case model.SourceTypeBooking:
		id, err := requireSourceID(sourceType, sourceID)
		if err != nil {
			return nil, err
		}
		booking, err := q.GetBooking(ctx, id)
		if err != nil {
			return nil, err
		}
		if booking == nil || booking.UserID != ownerUserID {
			return nil, newError(KindSourceUnavailable, "booking %s not found", id)
		}
		if booking.Status == model.SourceStatusCancelled {
			return nil, newError(KindSourceUnavailable, "booking %s is cancelled", id)
		}
		src.sourceID = &booking.ID
		src.payeeID = booking.HumanID
		src.amountCents = booking.TotalPriceCents

	case model.SourceTypeBounty:
		id, err := requireSourceID(sourceType, sourceID)
		if err != nil {
			return nil, err
		}
		bounty, err := q.GetBounty(ctx, id)
		if err != nil {
			return nil, err
		}
		if bounty == nil || bounty.UserID != ownerUserID {
			return nil, newError(KindSourceUnavailable, "bounty %s not found", id)
		}
		if bounty.Status == model.SourceStatusCancelled {
			return nil, newError(KindSourceUnavailable, "bounty %s is cancelled", id)
		}
		app, err := q.GetAcceptedApplication(ctx, id)
		if err != nil {
			return nil, err
		}
		if app == nil {
			return nil, newError(KindSourceUnavailable, "bounty %s has no accepted application", id)
		}
		src.sourceID = &bounty.ID
		src.payeeID = app.HumanID
		src.amountCents = app.ProposedPriceCents

	default:
		return nil, invalidf("unsupported source_type %q", sourceType)
	}

	if sourceType != model.SourceTypeManual {
		if payeeID != nil && strings.TrimSpace(*payeeID) != "" && strings.TrimSpace(*payeeID) != src.payeeID {
			return nil, invalidf("payee_id %s does not match the %s payee", *payeeID, sourceType)
		}
		if amountCents != nil {
			src.amountCents = *amountCents
		}
	}
	if src.amountCents <= 0 {
		return nil, invalidf("amount_cents must be positive")
	}
	return &src, nil
}

func requireSourceID(sourceType model.SourceType, sourceID *string) (string, error) {
	if sourceID == nil || strings.TrimSpace(*sourceID) == "" {
		return "", invalidf("source_id is required for %s sources", sourceType)
	}
	return strings.TrimSpace(*sourceID), nil
}

func optionalPtr(v *string) *string {
	if v == nil {
		return nil
	}
	return optional(*v)
}
