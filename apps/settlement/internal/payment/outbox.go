package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"settlement/apps/settlement/internal/events"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

// enqueue appends a settlement event to the relay outbox in the caller's transaction.
func enqueue(ctx context.Context, q repository.Queries, eventID, aggregate, aggregateID, eventType, ownerUserID, status string, actorID *string, payload map[string]any, at time.Time) error {
	blob, err := json.Marshal(events.EventData{ActorID: actorID, Status: status, Payload: payload})
	if err != nil {
		return fmt.Errorf("failed to encode outbox event: %w", err)
	}
	return q.StoreOutboxEvent(ctx, model.OutboxEvent{
		ID:          eventID,
		Aggregate:   aggregate,
		AggregateID: aggregateID,
		EventType:   eventType,
		OwnerUserID: ownerUserID,
		Status:      model.OutboxStatusUnsent,
		EventBlob:   blob,
		CreatedAt:   at,
	})
}

// recordPayoutEvent appends to the payout audit log, fans the event out to
// webhook subscriptions and enqueues it for the relay.
func (s *Service) recordPayoutEvent(ctx context.Context, q repository.Queries, t *tally, payout *model.CryptoPayout, eventType string, actorID *string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["status"] = string(payout.Status)
	payload["amount_cents"] = payout.AmountCents

	event := model.PayoutEvent{
		ID:          newID(),
		PayoutID:    payout.ID,
		OwnerUserID: payout.OwnerUserID,
		EventType:   eventType,
		ActorID:     actorID,
		Payload:     payload,
		CreatedAt:   s.now(),
	}
	if err := q.InsertPayoutEvent(ctx, event); err != nil {
		return err
	}
	if err := s.fanOut(ctx, q, t, payout, event); err != nil {
		return err
	}
	t.payoutEvents = append(t.payoutEvents, eventType)

	return enqueue(ctx, q, event.ID, model.AggregatePayout, payout.ID, eventType, payout.OwnerUserID,
		string(payout.Status), actorID, payload, event.CreatedAt)
}

func (s *Service) recordEscrowEvent(ctx context.Context, q repository.Queries, t *tally, escrow *model.EscrowHold, eventType string, actorID *string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["status"] = string(escrow.Status)
	payload["amount_cents"] = escrow.AmountCents

	event := model.EscrowEvent{
		ID:          newID(),
		EscrowID:    escrow.ID,
		OwnerUserID: escrow.OwnerUserID,
		EventType:   eventType,
		ActorID:     actorID,
		Payload:     payload,
		CreatedAt:   s.now(),
	}
	if err := q.InsertEscrowEvent(ctx, event); err != nil {
		return err
	}
	t.escrowEvents = append(t.escrowEvents, eventType)

	return enqueue(ctx, q, event.ID, model.AggregateEscrow, escrow.ID, eventType, escrow.OwnerUserID,
		string(escrow.Status), actorID, payload, event.CreatedAt)
}

func (s *Service) recordDisputeEvent(ctx context.Context, q repository.Queries, t *tally, dispute *model.Dispute, eventType string, actorID *string, payload map[string]any) error {
	if payload == nil {
		payload = map[string]any{}
	}
	payload["status"] = string(dispute.Status)

	event := model.DisputeEvent{
		ID:        newID(),
		DisputeID: dispute.ID,
		EventType: eventType,
		ActorID:   actorID,
		Payload:   payload,
		CreatedAt: s.now(),
	}
	if err := q.InsertDisputeEvent(ctx, event); err != nil {
		return err
	}
	t.disputeEvents = append(t.disputeEvents, eventType)

	return enqueue(ctx, q, event.ID, model.AggregateDispute, dispute.ID, eventType, dispute.OpenedBy,
		string(dispute.Status), actorID, payload, event.CreatedAt)
}
