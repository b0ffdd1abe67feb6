package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
)

func (q *pgQueries) GetPolicy(ctx context.Context, ownerUserID string) (*model.PaymentPolicy, error) {
	var p model.PaymentPolicy
	err := q.db.QueryRowContext(ctx, `
		SELECT owner_user_id, autopay_enabled, require_approval, max_single_payout_cents, max_daily_payout_cents,
			allowed_chains, allowed_tokens, created_at, updated_at
		FROM payment_policies
		WHERE owner_user_id = $1
	`, ownerUserID).Scan(&p.OwnerUserID, &p.AutopayEnabled, &p.RequireApproval, &p.MaxSinglePayoutCents,
		&p.MaxDailyPayoutCents, pq.Array(&p.AllowedChains), pq.Array(&p.AllowedTokens), &p.CreatedAt, &p.UpdatedAt)

	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get payment policy: %w", err)
	}
	return &p, nil
}

func (q *pgQueries) InsertPolicyIfMissing(ctx context.Context, p model.PaymentPolicy) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO payment_policies (owner_user_id, autopay_enabled, require_approval, max_single_payout_cents,
			max_daily_payout_cents, allowed_chains, allowed_tokens, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (owner_user_id) DO NOTHING
	`, p.OwnerUserID, p.AutopayEnabled, p.RequireApproval, p.MaxSinglePayoutCents, p.MaxDailyPayoutCents,
		pq.Array(p.AllowedChains), pq.Array(p.AllowedTokens), p.CreatedAt, p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to insert payment policy: %w", err)
	}
	return nil
}

func (q *pgQueries) UpdatePolicy(ctx context.Context, p model.PaymentPolicy) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE payment_policies
		SET autopay_enabled = $2, require_approval = $3, max_single_payout_cents = $4, max_daily_payout_cents = $5,
			allowed_chains = $6, allowed_tokens = $7, updated_at = $8
		WHERE owner_user_id = $1
	`, p.OwnerUserID, p.AutopayEnabled, p.RequireApproval, p.MaxSinglePayoutCents, p.MaxDailyPayoutCents,
		pq.Array(p.AllowedChains), pq.Array(p.AllowedTokens), p.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to update payment policy: %w", err)
	}

	q.logger.Info("Updated payment policy", zap.String("owner_user_id", p.OwnerUserID))
	return nil
}

func (q *pgQueries) SumPayoutsCreatedBetween(ctx context.Context, ownerUserID string, from, to time.Time, statuses []model.PayoutStatus) (int64, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}

	var total int64
	err := q.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents), 0)
		FROM crypto_payouts
		WHERE owner_user_id = $1 AND created_at >= $2 AND created_at < $3 AND status = ANY($4)
	`, ownerUserID, from, to, pq.Array(names)).Scan(&total)

	if err != nil {
		return 0, fmt.Errorf("failed to sum daily payouts: %w", err)
	}
	return total, nil
}
