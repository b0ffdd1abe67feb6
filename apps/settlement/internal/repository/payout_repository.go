package repository

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
)

const payoutColumns = `id, owner_user_id, payee_id, source_type, source_id, wallet_id, destination_address, chain, network,
	token, amount_cents, status, execution_mode, idempotency_key, requested_by_agent_id, approved_by, tx_hash,
	failure_reason, approved_at, submitted_at, confirmed_at, failed_at, created_at, updated_at`

func scanPayout(row rowScanner) (*model.CryptoPayout, error) {
	var p model.CryptoPayout
	err := row.Scan(&p.ID, &p.OwnerUserID, &p.PayeeID, &p.SourceType, &p.SourceID, &p.WalletID, &p.DestinationAddr,
		&p.Chain, &p.Network, &p.Token, &p.AmountCents, &p.Status, &p.ExecutionMode, &p.IdempotencyKey,
		&p.RequestedByAgent, &p.ApprovedBy, &p.TxHash, &p.FailureReason, &p.ApprovedAt, &p.SubmittedAt,
		&p.ConfirmedAt, &p.FailedAt, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertPayout returns ErrDuplicateIdempotencyKey when the (owner, idempotency key) pair already exists.
func (q *pgQueries) InsertPayout(ctx context.Context, p model.CryptoPayout) error {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO crypto_payouts (`+payoutColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)
		ON CONFLICT (owner_user_id, idempotency_key) WHERE idempotency_key IS NOT NULL DO NOTHING
	`, p.ID, p.OwnerUserID, p.PayeeID, p.SourceType, p.SourceID, p.WalletID, p.DestinationAddr, p.Chain, p.Network,
		p.Token, p.AmountCents, p.Status, p.ExecutionMode, p.IdempotencyKey, p.RequestedByAgent, p.ApprovedBy,
		p.TxHash, p.FailureReason, p.ApprovedAt, p.SubmittedAt, p.ConfirmedAt, p.FailedAt, p.CreatedAt, p.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to insert payout: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateIdempotencyKey
	}

	q.logger.Info("Created payout",
		zap.String("payout_id", p.ID),
		zap.String("owner_user_id", p.OwnerUserID),
		zap.String("status", string(p.Status)),
		zap.Int64("amount_cents", p.AmountCents))
	return nil
}

func (q *pgQueries) getPayout(ctx context.Context, where string, args ...any) (*model.CryptoPayout, error) {
	p, err := scanPayout(q.db.QueryRowContext(ctx, `SELECT `+payoutColumns+` FROM crypto_payouts WHERE `+where, args...))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payout: %w", err)
	}
	return p, nil
}

func (q *pgQueries) GetPayout(ctx context.Context, ownerUserID, payoutID string) (*model.CryptoPayout, error) {
	return q.getPayout(ctx, `owner_user_id = $1 AND id = $2 FOR UPDATE`, ownerUserID, payoutID)
}

func (q *pgQueries) GetPayoutByID(ctx context.Context, payoutID string) (*model.CryptoPayout, error) {
	return q.getPayout(ctx, `id = $1`, payoutID)
}

func (q *pgQueries) GetPayoutByIdempotencyKey(ctx context.Context, ownerUserID, key string) (*model.CryptoPayout, error) {
	return q.getPayout(ctx, `owner_user_id = $1 AND idempotency_key = $2`, ownerUserID, key)
}

func (q *pgQueries) ListPayouts(ctx context.Context, filter model.PayoutFilter) ([]model.CryptoPayout, error) {
	p := &predicates{}
	p.add("owner_user_id = $%d", filter.OwnerUserID)
	if filter.Status != "" {
		p.add("status = $%d", filter.Status)
	}
	if filter.PayeeID != "" {
		p.add("payee_id = $%d", filter.PayeeID)
	}
	if filter.SourceType != "" {
		p.add("source_type = $%d", filter.SourceType)
	}
	query := `SELECT ` + payoutColumns + ` FROM crypto_payouts` + p.where() + ` ORDER BY created_at DESC`
	query += p.limit(filter.Limit)

	rows, err := q.db.QueryContext(ctx, query, p.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list payouts: %w", err)
	}
	defer rows.Close()

	var payouts []model.CryptoPayout
	for rows.Next() {
		payout, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payout: %w", err)
		}
		payouts = append(payouts, *payout)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payouts: %w", err)
	}
	return payouts, nil
}

func (q *pgQueries) UpdatePayout(ctx context.Context, p model.CryptoPayout) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE crypto_payouts
		SET status = $2, approved_by = $3, tx_hash = $4, failure_reason = $5, approved_at = $6, submitted_at = $7,
			confirmed_at = $8, failed_at = $9, updated_at = $10
		WHERE id = $1
	`, p.ID, p.Status, p.ApprovedBy, p.TxHash, p.FailureReason, p.ApprovedAt, p.SubmittedAt, p.ConfirmedAt,
		p.FailedAt, p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to update payout: %w", err)
	}

	q.logger.Info("Updated payout status",
		zap.String("payout_id", p.ID),
		zap.String("status", string(p.Status)))
	return nil
}

func (q *pgQueries) InsertPayoutEvent(ctx context.Context, e model.PayoutEvent) error {
	payload, err := marshalPayload(e.Payload)
	if err != nil {
		return err
	}
	_, err = q.db.ExecContext(ctx, `
		INSERT INTO payout_events (id, payout_id, owner_user_id, event_type, actor_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, e.ID, e.PayoutID, e.OwnerUserID, e.EventType, e.ActorID, payload, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert payout event: %w", err)
	}
	return nil
}

func (q *pgQueries) ListPayoutEvents(ctx context.Context, payoutID string) ([]model.PayoutEvent, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, payout_id, owner_user_id, event_type, actor_id, payload, created_at
		FROM payout_events
		WHERE payout_id = $1
		ORDER BY seq
	`, payoutID)
	if err != nil {
		return nil, fmt.Errorf("failed to list payout events: %w", err)
	}
	defer rows.Close()

	var events []model.PayoutEvent
	for rows.Next() {
		var e model.PayoutEvent
		var raw []byte
		if err := rows.Scan(&e.ID, &e.PayoutID, &e.OwnerUserID, &e.EventType, &e.ActorID, &raw, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payout event: %w", err)
		}
		if e.Payload, err = unmarshalPayload(raw); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating payout events: %w", err)
	}
	return events, nil
}
