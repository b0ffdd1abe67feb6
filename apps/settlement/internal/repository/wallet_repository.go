package repository

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
)

const walletColumns = `id, payee_id, chain, network, token, address, label, is_default, verification_status,
	verified_at, created_at, updated_at`

func scanWallet(row rowScanner) (*model.Wallet, error) {
	var w model.Wallet
	err := row.Scan(&w.ID, &w.PayeeID, &w.Chain, &w.Network, &w.Token, &w.Address, &w.Label, &w.IsDefault,
		&w.VerificationStatus, &w.VerifiedAt, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

func (q *pgQueries) UpsertWallet(ctx context.Context, w model.Wallet) (*model.Wallet, error) {
	row := q.db.QueryRowContext(ctx, `
		INSERT INTO payee_wallets (id, payee_id, chain, network, token, address, label, is_default,
			verification_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (payee_id, chain, network, token, address) DO UPDATE SET
			label = COALESCE(EXCLUDED.label, payee_wallets.label),
			is_default = payee_wallets.is_default OR EXCLUDED.is_default,
			updated_at = EXCLUDED.updated_at
		RETURNING `+walletColumns,
		w.ID, w.PayeeID, w.Chain, w.Network, w.Token, w.Address, w.Label, w.IsDefault, w.VerificationStatus,
		w.CreatedAt, w.UpdatedAt)

	saved, err := scanWallet(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert wallet: %w", err)
	}

	q.logger.Info("Upserted wallet",
		zap.String("wallet_id", saved.ID),
		zap.String("payee_id", saved.PayeeID),
		zap.String("chain", saved.Chain),
		zap.String("network", saved.Network),
		zap.String("token", saved.Token))
	return saved, nil
}

func (q *pgQueries) GetWallet(ctx context.Context, walletID string) (*model.Wallet, error) {
	w, err := scanWallet(q.db.QueryRowContext(ctx, `SELECT `+walletColumns+` FROM payee_wallets WHERE id = $1`, walletID))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}
	return w, nil
}

func (q *pgQueries) GetDefaultWallet(ctx context.Context, payeeID, chain, network, token string) (*model.Wallet, error) {
	w, err := scanWallet(q.db.QueryRowContext(ctx, `
		SELECT `+walletColumns+`
		FROM payee_wallets
		WHERE payee_id = $1 AND chain = $2 AND network = $3 AND token = $4 AND is_default
		LIMIT 1
	`, payeeID, chain, network, token))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get default wallet: %w", err)
	}
	return w, nil
}

func (q *pgQueries) ClearDefaultWallets(ctx context.Context, payeeID, chain, network, token, exceptAddress string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE payee_wallets
		SET is_default = FALSE, updated_at = NOW()
		WHERE payee_id = $1 AND chain = $2 AND network = $3 AND token = $4 AND is_default AND address <> $5
	`, payeeID, chain, network, token, exceptAddress)
	if err != nil {
		return fmt.Errorf("failed to clear default wallets: %w", err)
	}
	return nil
}

func (q *pgQueries) SetWalletDefault(ctx context.Context, walletID string) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE payee_wallets SET is_default = TRUE, updated_at = NOW() WHERE id = $1
	`, walletID)
	if err != nil {
		return fmt.Errorf("failed to set default wallet: %w", err)
	}
	return nil
}

func (q *pgQueries) ListWallets(ctx context.Context, filter model.WalletFilter) ([]model.Wallet, error) {
	p := &predicates{}
	p.add("payee_id = $%d", filter.PayeeID)
	if filter.Chain != "" {
		p.add("chain = $%d", filter.Chain)
	}
	if filter.Network != "" {
		p.add("network = $%d", filter.Network)
	}
	if filter.Token != "" {
		p.add("token = $%d", filter.Token)
	}

	rows, err := q.db.QueryContext(ctx, `SELECT `+walletColumns+` FROM payee_wallets`+p.where()+
		` ORDER BY is_default DESC, created_at DESC`, p.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []model.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallets: %w", err)
	}
	return wallets, nil
}

func (q *pgQueries) UpdateWalletVerification(ctx context.Context, walletID string, status model.VerificationStatus, verifiedAt *time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE payee_wallets SET verification_status = $2, verified_at = $3, updated_at = NOW() WHERE id = $1
	`, walletID, status, verifiedAt)
	if err != nil {
		return fmt.Errorf("failed to update wallet verification: %w", err)
	}
	return nil
}

const challengeColumns = `id, wallet_id, payee_id, nonce, message, expected_signature_hash, status, expires_at,
	verified_at, created_at`

func scanChallenge(row rowScanner) (*model.WalletVerificationChallenge, error) {
	var c model.WalletVerificationChallenge
	err := row.Scan(&c.ID, &c.WalletID, &c.PayeeID, &c.Nonce, &c.Message, &c.ExpectedSignatureHash, &c.Status,
		&c.ExpiresAt, &c.VerifiedAt, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *pgQueries) InsertChallenge(ctx context.Context, c model.WalletVerificationChallenge) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO wallet_verification_challenges (`+challengeColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, c.ID, c.WalletID, c.PayeeID, c.Nonce, c.Message, c.ExpectedSignatureHash, c.Status, c.ExpiresAt,
		c.VerifiedAt, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert wallet challenge: %w", err)
	}
	return nil
}

func (q *pgQueries) GetChallenge(ctx context.Context, challengeID string) (*model.WalletVerificationChallenge, error) {
	c, err := scanChallenge(q.db.QueryRowContext(ctx, `
		SELECT `+challengeColumns+` FROM wallet_verification_challenges WHERE id = $1 FOR UPDATE
	`, challengeID))
	if err != nil {
		if noRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet challenge: %w", err)
	}
	return c, nil
}

func (q *pgQueries) UpdateChallengeStatus(ctx context.Context, challengeID string, status model.ChallengeStatus, verifiedAt *time.Time) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE wallet_verification_challenges SET status = $2, verified_at = $3 WHERE id = $1
	`, challengeID, status, verifiedAt)
	if err != nil {
		return fmt.Errorf("failed to update wallet challenge: %w", err)
	}
	return nil
}

func (q *pgQueries) ListChallenges(ctx context.Context, walletID string) ([]model.WalletVerificationChallenge, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT `+challengeColumns+` FROM wallet_verification_challenges WHERE wallet_id = $1 ORDER BY created_at DESC
	`, walletID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet challenges: %w", err)
	}
	defer rows.Close()

	var challenges []model.WalletVerificationChallenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet challenge: %w", err)
		}
		challenges = append(challenges, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet challenges: %w", err)
	}
	return challenges, nil
}
