package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
)

const disputeColumns = `id, opened_by, target_type, target_id, reason, details, status, resolution, resolution_note,
	resolved_by, resolved_at, created_at, updated_at`

func scanDispute(row rowScanner) (*model.Dispute, error) {
	var d model.Dispute
	err := row.Scan(&d.ID, &d.OpenedBy, &d.TargetType, &d.TargetID, &d.Reason, &d.Details, &d.Status, &d.Resolution,
		&d.ResolutionNote, &d.ResolvedBy, &d.ResolvedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (q *pgQueries) InsertDispute(ctx context.Context, d model.Dispute) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO disputes (`+disputeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, d.ID, d.OpenedBy, d.TargetType, d.TargetID, d.Reason, d.Details, d.Status, d.Resolution, d.ResolutionNote,
		d.ResolvedBy, d.ResolvedAt, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert dispute: %w", err)
	}

	q.logger.Info("Opened dispute",
		zap.String("dispute_id", d.ID),
		zap.String("target_type", string(d.TargetType)),
		zap.String("target_id", d.TargetID))
	return nil
}

func (q *pgQueries) GetDispute(ctx context.Context, disputeID string) (*model.Dispute, error) {
	d, err := scanDispute(q.db.QueryRowContext(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE id = $1 FOR UPDATE`, disputeID))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get dispute: %w", err)
	}
	return d, nil
}

func (q *pgQueries) ListDisputes(ctx context.Context, filter model.DisputeFilter) ([]model.Dispute, error) {
	p := &predicates{}
	if filter.OpenedBy != "" {
		p.add("opened_by = $%d", filter.OpenedBy)
	}
	if filter.Status != "" {
		p.add("status = $%d", filter.Status)
	}
	if filter.TargetType != "" {
		p.add("target_type = $%d", filter.TargetType)
	}
	if filter.TargetID != "" {
		p.add("target_id = $%d", filter.TargetID)
	}
	query := `SELECT ` + disputeColumns + ` FROM disputes` + p.where() + ` ORDER BY created_at DESC`
	query += p.limit(filter.Limit)

	rows, err := q.db.QueryContext(ctx, query, p.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list disputes: %w", err)
	}
	defer rows.Close()

	var disputes []model.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dispute: %w", err)
		}
		disputes = append(disputes, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating disputes: %w", err)
	}
	return disputes, nil
}

func (q *pgQueries) UpdateDispute(ctx context.Context, d model.Dispute) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE disputes
		SET status = $2, resolution = $3, resolution_note = $4, resolved_by = $5, resolved_at = $6, updated_at = $7
		WHERE id = $1
	`, d.ID, d.Status, d.Resolution, d.ResolutionNote, d.ResolvedBy, d.ResolvedAt, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update dispute: %w", err)
	}

	q.logger.Info("Updated dispute",
		zap.String("dispute_id", d.ID),
		zap.String("status", string(d.Status)))
	return nil
}

func (q *pgQueries) InsertDisputeEvent(ctx context.Context, e model.DisputeEvent) error {
	payload, err := marshalPayload(e.Payload)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO dispute_events (id, dispute_id, event_type, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.DisputeID, e.EventType, e.ActorID, payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert dispute event: %w", err)
	}
	return nil
}

func (q *pgQueries) ListDisputeEvents(ctx context.Context, disputeID string) ([]model.DisputeEvent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, dispute_id, event_type, actor_id, payload, created_at
		FROM dispute_events
		WHERE dispute_id = $1
		ORDER BY seq
	`, disputeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dispute events: %w", err)
	}
	defer rows.Close()

	var events []model.DisputeEvent
	for rows.Next() {
		var e model.DisputeEvent
		var raw []byte
		if err := rows.Scan(&e.ID, &e.DisputeID, &e.EventType, &e.ActorID, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dispute event: %w", err)
		}
		if e.Payload, err = unmarshalPayload(raw); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating dispute events: %w", err)
	}
	return events, nil
}
