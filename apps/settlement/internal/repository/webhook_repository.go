package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"settlement/apps/settlement/internal/model"
)

func (q *pgQueries) InsertSubscription(ctx context.Context, s model.PayoutWebhookSubscription) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO payout_webhook_subscriptions (id, owner_user_id, target_url, events, description, secret, status,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, s.ID, s.OwnerUserID, s.TargetURL, pq.Array(s.Events), s.Description, s.Secret, s.Status, s.CreatedAt, s.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert webhook subscription: %w", err)
	}
	return nil
}

func (q *pgQueries) ListSubscriptions(ctx context.Context, ownerUserID string, activeOnly bool) ([]model.PayoutWebhookSubscription, error) {
	p := &predicates{}
	p.add("owner_user_id = $%d", ownerUserID)
	if activeOnly {
		p.add("status = $%d", model.SubscriptionActive)
	}

	rows, err := q.db.QueryContext(ctx, `
		SELECT id, owner_user_id, target_url, events, description, secret, status, created_at, updated_at
		FROM payout_webhook_subscriptions`+p.where()+`
		ORDER BY created_at`, p.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []model.PayoutWebhookSubscription
	for rows.Next() {
		var s model.PayoutWebhookSubscription
		if err := rows.Scan(&s.ID, &s.OwnerUserID, &s.TargetURL, pq.Array(&s.Events), &s.Description, &s.Secret,
			&s.Status, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook subscription: %w", err)
		}
		subs = append(subs, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhook subscriptions: %w", err)
	}
	return subs, nil
}

func (q *pgQueries) InsertDelivery(ctx context.Context, d model.PayoutWebhookDelivery) error {
	payload, err := marshalPayload(d.RequestPayload)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO payout_webhook_deliveries (id, subscription_id, owner_user_id, payout_id, payout_event_id, event_type,
			request_payload, request_signature, delivery_status, response_status, response_body, delivered_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, d.ID, d.SubscriptionID, d.OwnerUserID, d.PayoutID, d.PayoutEventID, d.EventType, payload, d.RequestSignature,
		d.DeliveryStatus, d.ResponseStatus, d.ResponseBody, d.DeliveredAt, d.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert webhook delivery: %w", err)
	}
	return nil
}

func (q *pgQueries) ListDeliveries(ctx context.Context, filter model.DeliveryFilter) ([]model.PayoutWebhookDelivery, error) {
	p := &predicates{}
	p.add("owner_user_id = $%d", filter.OwnerUserID)
	if filter.SubscriptionID != "" {
		p.add("subscription_id = $%d", filter.SubscriptionID)
	}
	if filter.PayoutID != "" {
		p.add("payout_id = $%d", filter.PayoutID)
	}
	query := `
		SELECT id, subscription_id, owner_user_id, payout_id, payout_event_id, event_type, request_payload,
			request_signature, delivery_status, response_status, response_body, delivered_at, created_at
		FROM payout_webhook_deliveries` + p.where() + ` ORDER BY created_at DESC`
	query += p.limit(filter.Limit)

	rows, err := q.db.QueryContext(ctx, query, p.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []model.PayoutWebhookDelivery
	for rows.Next() {
		var d model.PayoutWebhookDelivery
		var raw []byte
		if err := rows.Scan(&d.ID, &d.SubscriptionID, &d.OwnerUserID, &d.PayoutID, &d.PayoutEventID, &d.EventType,
			&raw, &d.RequestSignature, &d.DeliveryStatus, &d.ResponseStatus, &d.ResponseBody, &d.DeliveredAt,
			&d.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan webhook delivery: %w", err)
		}
		if d.RequestPayload, err = unmarshalPayload(raw); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating webhook deliveries: %w", err)
	}
	return deliveries, nil
}
