package payment

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

type UpsertWalletInput struct {
	PayeeID   string  `json:"payee_id" validate:"required,max=64"`
	Chain     string  `json:"chain" validate:"required"`
	Network   string  `json:"network" validate:"required"`
	Token     string  `json:"token" validate:"required"`
	Address   string  `json:"address" validate:"required,max=64"`
	Label     *string `json:"label,omitempty" validate:"omitempty,max=100"`
	IsDefault bool    `json:"is_default"`
}

// UpsertWallet registers or updates a payee wallet keyed on (payee, chain, network,
// token, address). The group always ends up with exactly one default wallet.
func (s *Service) UpsertWallet(ctx context.Context, in UpsertWalletInput) (*model.Wallet, error) {
	in.Chain = strings.ToLower(strings.TrimSpace(in.Chain))
	in.Network = strings.ToLower(strings.TrimSpace(in.Network))
	in.Token = strings.ToUpper(strings.TrimSpace(in.Token))
	in.Address = strings.TrimSpace(in.Address)
	if err := s.check(in); err != nil {
		return nil, err
	}
	if err := s.networks.ValidateRoute(in.Chain, in.Network, in.Token); err != nil {
		return nil, invalidf("%v", err)
	}
	if err := s.networks.ValidateAddress(in.Chain, in.Address); err != nil {
		return nil, invalidf("%v", err)
	}

	var wallet *model.Wallet
	err := s.withTx(ctx, func(q repository.Queries) error {
		if in.IsDefault {
			if err := q.ClearDefaultWallets(ctx, in.PayeeID, in.Chain, in.Network, in.Token, in.Address); err != nil {
				return err
			}
		}

		now := s.now()
		saved, err := q.UpsertWallet(ctx, model.Wallet{
			ID:                 newID(),
			PayeeID:            in.PayeeID,
			Chain:              in.Chain,
			Network:            in.Network,
			Token:              in.Token,
			Address:            in.Address,
			Label:              in.Label,
			IsDefault:          in.IsDefault,
			VerificationStatus: model.VerificationUnverified,
			CreatedAt:          now,
			UpdatedAt:          now,
		})
		if err != nil {
			return err
		}

		current, err := q.GetDefaultWallet(ctx, in.PayeeID, in.Chain, in.Network, in.Token)
		if err != nil {
			return err
		}
		if current == nil {
			if err := q.SetWalletDefault(ctx, saved.ID); err != nil {
				return err
			}
		}

		wallet, err = q.GetWallet(ctx, saved.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Wallet saved",
		zap.String("wallet_id", wallet.ID),
		zap.String("payee_id", wallet.PayeeID),
		zap.String("chain", wallet.Chain),
		zap.String("network", wallet.Network),
		zap.Bool("is_default", wallet.IsDefault))
	return wallet, nil
}

func (s *Service) ListWallets(ctx context.Context, filter model.WalletFilter) ([]model.Wallet, error) {
	if strings.TrimSpace(filter.PayeeID) == "" {
		return nil, invalidf("payee_id is required")
	}
	filter.Chain = strings.ToLower(filter.Chain)
	filter.Token = strings.ToUpper(filter.Token)

	var wallets []model.Wallet
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		wallets, err = q.ListWallets(ctx, filter)
		return err
	})
	return wallets, err
}

// ResolveWalletForPayout picks the destination wallet for a payout. An explicit
// wallet must belong to the payee and serve the exact route; otherwise the
// route's default wallet is used.
func (s *Service) ResolveWalletForPayout(ctx context.Context, q repository.Queries, payeeID, chain, network, token string, walletID *string) (*model.Wallet, error) {
	if walletID != nil && *walletID != "" {
		wallet, err := q.GetWallet(ctx, *walletID)
		if err != nil {
			return nil, err
		}
		if wallet == nil || wallet.PayeeID != payeeID {
			return nil, newError(KindWalletMismatch, "wallet %s does not belong to payee %s", *walletID, payeeID)
		}
		if !wallet.SameRoute(chain, network, token) {
			return nil, newError(KindWalletMismatch, "wallet %s is registered for %s/%s/%s, not %s/%s/%s",
				wallet.ID, wallet.Chain, wallet.Network, wallet.Token, chain, network, token)
		}
		return wallet, nil
	}

	wallet, err := q.GetDefaultWallet(ctx, payeeID, chain, network, token)
	if err != nil {
		return nil, err
	}
	if wallet == nil {
		return nil, newError(KindNoWalletConfigured, "payee %s has no %s/%s/%s wallet", payeeID, chain, network, token)
	}
	return wallet, nil
}

// AssertVerifiedForAutoPay gates every agent-driven execution on proven wallet ownership.
func AssertVerifiedForAutoPay(wallet *model.Wallet) error {
	if wallet == nil {
		return newError(KindNoWalletConfigured, "destination wallet is missing")
	}
	if wallet.VerificationStatus != model.VerificationVerified {
		return newError(KindWalletNotVerified, "wallet %s is %s", wallet.ID, wallet.VerificationStatus)
	}
	return nil
}
