package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
)

const escrowColumns = `id, owner_user_id, payee_id, source_type, source_id, wallet_id, chain, network, token,
	amount_cents, status, note, release_payout_id, released_at, created_at, updated_at`

func scanEscrow(row rowScanner) (*model.EscrowHold, error) {
	var e model.EscrowHold
	err := row.Scan(&e.ID, &e.OwnerUserID, &e.PayeeID, &e.SourceType, &e.SourceID, &e.WalletID, &e.Chain, &e.Network,
		&e.Token, &e.AmountCents, &e.Status, &e.Note, &e.ReleasePayoutID, &e.ReleasedAt, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (q *pgQueries) InsertEscrow(ctx context.Context, e model.EscrowHold) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO escrow_holds (`+escrowColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, e.ID, e.OwnerUserID, e.PayeeID, e.SourceType, e.SourceID, e.WalletID, e.Chain, e.Network, e.Token,
		e.AmountCents, e.Status, e.Note, e.ReleasePayoutID, e.ReleasedAt, e.CreatedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert escrow hold: %w", err)
	}

	q.logger.Info("Created escrow hold",
		zap.String("escrow_id", e.ID),
		zap.String("owner_user_id", e.OwnerUserID),
		zap.Int64("amount_cents", e.AmountCents))
	return nil
}

func (q *pgQueries) getEscrow(ctx context.Context, where string, args ...any) (*model.EscrowHold, error) {
	e, err := scanEscrow(q.db.QueryRowContext(ctx, `SELECT `+escrowColumns+` FROM escrow_holds WHERE `+where, args...))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get escrow hold: %w", err)
	}
	return e, nil
}

func (q *pgQueries) GetEscrow(ctx context.Context, ownerUserID, escrowID string) (*model.EscrowHold, error) {
	return q.getEscrow(ctx, `owner_user_id = $1 AND id = $2 FOR UPDATE`, ownerUserID, escrowID)
}

func (q *pgQueries) GetEscrowByID(ctx context.Context, escrowID string) (*model.EscrowHold, error) {
	return q.getEscrow(ctx, `id = $1`, escrowID)
}

func (q *pgQueries) ListEscrows(ctx context.Context, filter model.EscrowFilter) ([]model.EscrowHold, error) {
	p := &predicates{}
	p.add("owner_user_id = $%d", filter.OwnerUserID)
	if filter.Status != "" {
		p.add("status = $%d", filter.Status)
	}
	if filter.SourceType != "" {
		p.add("source_type = $%d", filter.SourceType)
	}
	if filter.SourceID != "" {
		p.add("source_id = $%d", filter.SourceID)
	}
	query := `SELECT ` + escrowColumns + ` FROM escrow_holds` + p.where() + ` ORDER BY created_at DESC`
	query += p.limit(filter.Limit)

	rows, err := q.db.QueryContext(ctx, query, p.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list escrow holds: %w", err)
	}
	defer rows.Close()

	var holds []model.EscrowHold
	for rows.Next() {
		e, err := scanEscrow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan escrow hold: %w", err)
		}
		holds = append(holds, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escrow holds: %w", err)
	}
	return holds, nil
}

func (q *pgQueries) UpdateEscrow(ctx context.Context, e model.EscrowHold) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE escrow_holds
		SET status = $2, release_payout_id = $3, released_at = $4, updated_at = $5
		WHERE id = $1
	`, e.ID, e.Status, e.ReleasePayoutID, e.ReleasedAt, e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update escrow hold: %w", err)
	}

	q.logger.Info("Updated escrow hold",
		zap.String("escrow_id", e.ID),
		zap.String("status", string(e.Status)))
	return nil
}

func (q *pgQueries) InsertEscrowEvent(ctx context.Context, e model.EscrowEvent) error {
	payload, err := marshalPayload(e.Payload)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO escrow_events (id, escrow_id, owner_user_id, event_type, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.EscrowID, e.OwnerUserID, e.EventType, e.ActorID, payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert escrow event: %w", err)
	}
	return nil
}

func (q *pgQueries) ListEscrowEvents(ctx context.Context, escrowID string) ([]model.EscrowEvent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, escrow_id, owner_user_id, event_type, actor_id, payload, created_at
		FROM escrow_events
		WHERE escrow_id = $1
		ORDER BY seq
	`, escrowID)
	if err != nil {
		return nil, fmt.Errorf("failed to list escrow events: %w", err)
	}
	defer rows.Close()

	var events []model.EscrowEvent
	for rows.Next() {
		var e model.EscrowEvent
		var raw []byte
		if err := rows.Scan(&e.ID, &e.EscrowID, &e.OwnerUserID, &e.EventType, &e.ActorID, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan escrow event: %w", err)
		}
		if e.Payload, err = unmarshalPayload(raw); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating escrow events: %w", err)
	}
	return events, nil
}
