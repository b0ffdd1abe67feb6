package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
)

func (q *pgQueries) StoreOutboxEvent(ctx context.Context, event model.OutboxEvent) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO event_outbox (id, aggregate, aggregate_id, event_type, owner_user_id, status, event_blob, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO NOTHING
	`, event.ID, event.Aggregate, event.AggregateID, event.EventType, event.OwnerUserID, event.Status,
		[]byte(event.EventBlob), event.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to store outbox event: %w", err)
	}

	q.logger.Debug("Stored event",
		zap.String("event_type", event.EventType),
		zap.String("aggregate", event.Aggregate),
		zap.String("aggregate_id", event.AggregateID))
	return nil
}

// GetUnsentEventsForProcessing claims up to limit unsent events by moving them to
// 'processing'. Rows locked by a concurrent relay are skipped.
func (q *pgQueries) GetUnsentEventsForProcessing(ctx context.Context, limit int) ([]model.OutboxEvent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, aggregate, aggregate_id, event_type, owner_user_id, status, event_blob, created_at
		FROM event_outbox
		WHERE status = $1
		ORDER BY seq
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`, model.OutboxStatusUnsent, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to select unsent events: %w", err)
	}
	defer rows.Close()

	var events []model.OutboxEvent
	for rows.Next() {
		var event model.OutboxEvent
		var blob []byte
		if err := rows.Scan(&event.ID, &event.Aggregate, &event.AggregateID, &event.EventType, &event.OwnerUserID,
			&event.Status, &blob, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan outbox event: %w", err)
		}
		event.EventBlob = blob
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating outbox events: %w", err)
	}
	rows.Close()

	for i := range events {
		if _, err := q.db.ExecContext(ctx, `
			UPDATE event_outbox SET status = $2 WHERE id = $1 AND status = $3
		`, events[i].ID, model.OutboxStatusProcessing, model.OutboxStatusUnsent); err != nil {
			return nil, fmt.Errorf("failed to claim outbox event: %w", err)
		}
		events[i].Status = model.OutboxStatusProcessing
	}

	return events, nil
}

func (q *pgQueries) MarkEventAsSent(ctx context.Context, eventID string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE event_outbox SET status = $2 WHERE id = $1`, eventID, model.OutboxStatusSent)
	if err != nil {
		return fmt.Errorf("failed to mark event as sent: %w", err)
	}
	return nil
}

// MarkEventAsFailed returns a claimed event to the unsent pool.
func (q *pgQueries) MarkEventAsFailed(ctx context.Context, eventID string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE event_outbox SET status = $2 WHERE id = $1 AND status = $3
	`, eventID, model.OutboxStatusUnsent, model.OutboxStatusProcessing)
	if err != nil {
		return fmt.Errorf("failed to mark event as failed: %w", err)
	}
	return nil
}
