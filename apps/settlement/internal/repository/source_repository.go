package repository

import (
	"context"
	"fmt"

	"settlement/apps/settlement/internal/model"
)

func (q *pgQueries) InsertBooking(ctx context.Context, b model.Booking) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO bookings (id, user_id, human_id, total_price_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, b.ID, b.UserID, b.HumanID, b.TotalPriceCents, b.Status, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert booking: %w", err)
	}
	return nil
}

func (q *pgQueries) GetBooking(ctx context.Context, bookingID string) (*model.Booking, error) {
	var b model.Booking
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, human_id, total_price_cents, status, created_at
		FROM bookings WHERE id = $1
	`, bookingID).Scan(&b.ID, &b.UserID, &b.HumanID, &b.TotalPriceCents, &b.Status, &b.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return &b, nil
}

func (q *pgQueries) InsertBounty(ctx context.Context, b model.Bounty) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO bounties (id, user_id, budget_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, b.ID, b.UserID, b.BudgetCents, b.Status, b.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bounty: %w", err)
	}
	return nil
}

func (q *pgQueries) GetBounty(ctx context.Context, bountyID string) (*model.Bounty, error) {
	var b model.Bounty
	err := q.db.QueryRowContext(ctx, `
		SELECT id, user_id, budget_cents, status, created_at
		FROM bounties WHERE id = $1
	`, bountyID).Scan(&b.ID, &b.UserID, &b.BudgetCents, &b.Status, &b.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bounty: %w", err)
	}
	return &b, nil
}

func (q *pgQueries) InsertBountyApplication(ctx context.Context, a model.BountyApplication) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO bounty_applications (id, bounty_id, human_id, proposed_price_cents, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`, a.ID, a.BountyID, a.HumanID, a.ProposedPriceCents, a.Status, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert bounty application: %w", err)
	}
	return nil
}

// GetAcceptedApplication returns the earliest accepted application for the bounty.
func (q *pgQueries) GetAcceptedApplication(ctx context.Context, bountyID string) (*model.BountyApplication, error) {
	var a model.BountyApplication
	err := q.db.QueryRowContext(ctx, `
		SELECT id, bounty_id, human_id, proposed_price_cents, status, created_at
		FROM bounty_applications
		WHERE bounty_id = $1 AND status = $2
		ORDER BY created_at
		LIMIT 1
	`, bountyID, model.ApplicationStatusAccepted).Scan(&a.ID, &a.BountyID, &a.HumanID, &a.ProposedPriceCents,
		&a.Status, &a.CreatedAt)
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get accepted application: %w", err)
	}
	return &a, nil
}

func (q *pgQueries) HasBountyApplication(ctx context.Context, bountyID, humanID string) (bool, error) {
	var exists bool
	err := q.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM bounty_applications WHERE bounty_id = $1 AND human_id = $2)
	`, bountyID, humanID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check bounty application: %w", err)
	}
	return exists, nil
}
