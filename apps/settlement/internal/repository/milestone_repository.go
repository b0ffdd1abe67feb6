package repository

import (
	"context"
	"fmt"

	"settlement/apps/settlement/internal/model"
)

const milestoneColumns = `id, owner_user_id, source_type, source_id, title, amount_cents, status, due_at, payout_id,
	completed_at, created_at, updated_at`

func scanMilestone(row rowScanner) (*model.BookingMilestone, error) {
	var m model.BookingMilestone
	err := row.Scan(&m.ID, &m.OwnerUserID, &m.SourceType, &m.SourceID, &m.Title, &m.AmountCents, &m.Status, &m.DueAt,
		&m.PayoutID, &m.CompletedAt, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (q *pgQueries) InsertMilestone(ctx context.Context, m model.BookingMilestone) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO booking_milestones (`+milestoneColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, m.ID, m.OwnerUserID, m.SourceType, m.SourceID, m.Title, m.AmountCents, m.Status, m.DueAt, m.PayoutID,
		m.CompletedAt, m.CreatedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert milestone: %w", err)
	}
	return nil
}

func (q *pgQueries) GetMilestone(ctx context.Context, ownerUserID, milestoneID string) (*model.BookingMilestone, error) {
	m, err := scanMilestone(q.db.QueryRowContext(ctx, `
		SELECT `+milestoneColumns+`
		FROM booking_milestones
		WHERE owner_user_id = $1 AND id = $2
		FOR UPDATE
	`, ownerUserID, milestoneID))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}
	return m, nil
}

func (q *pgQueries) ListMilestones(ctx context.Context, filter model.MilestoneFilter) ([]model.BookingMilestone, error) {
	p := &predicates{}
	p.add("owner_user_id = $%d", filter.OwnerUserID)
	if filter.SourceType != "" {
		p.add("source_type = $%d", filter.SourceType)
	}
	if filter.SourceID != "" {
		p.add("source_id = $%d", filter.SourceID)
	}
	if filter.Status != "" {
		p.add("status = $%d", filter.Status)
	}

	rows, err := q.db.QueryContext(ctx,
		`SELECT `+milestoneColumns+` FROM booking_milestones`+p.where()+` ORDER BY created_at`, p.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list milestones: %w", err)
	}
	defer rows.Close()

	var milestones []model.BookingMilestone
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan milestone: %w", err)
		}
		milestones = append(milestones, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating milestones: %w", err)
	}
	return milestones, nil
}

func (q *pgQueries) UpdateMilestone(ctx context.Context, m model.BookingMilestone) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE booking_milestones
		SET status = $2, payout_id = $3, completed_at = $4, updated_at = $5
		WHERE id = $1
	`, m.ID, m.Status, m.PayoutID, m.CompletedAt, m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update milestone: %w", err)
	}
	return nil
}

// SumActiveMilestones totals every non-cancelled milestone attached to the source.
// LockSource takes a transaction-scoped advisory lock on the booking or bounty so
// the budget check and the insert see every committed milestone.
func (q *pgQueries) LockSource(ctx context.Context, sourceType model.SourceType, sourceID string) error {
	_, err := q.db.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1 || ':' || $2))`, string(sourceType), sourceID)
	if err != nil {
		return fmt.Errorf("failed to lock %s %s: %w", sourceType, sourceID, err)
	}
	return nil
}

func (q *pgQueries) SumActiveMilestones(ctx context.Context, sourceType model.SourceType, sourceID string) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM booking_milestones
		WHERE source_type = $1 AND source_id = $2 AND status <> $3
	`, sourceType, sourceID, model.MilestoneCancelled).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum milestones: %w", err)
	}
	return total, nil
}
