package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/repository"
)

func defaults(wallets []model.Wallet) []string {
	var ids []string
	for _, w := range wallets {
		if w.IsDefault {
			ids = append(ids, w.ID)
		}
	}
	return ids
}

func TestUpsertWallet_FirstWalletBecomesDefault(t *testing.T) {
	f := newFixture(t)

	w := f.wallet(t, humanID, polygonAddr, false)
	assert.True(t, w.IsDefault)
	assert.Equal(t, model.VerificationUnverified, w.VerificationStatus)

	second := f.wallet(t, humanID, otherAddr, false)
	assert.False(t, second.IsDefault)
}

func TestUpsertWallet_DefaultMovesWithinGroup(t *testing.T) {
	f := newFixture(t)
	first := f.wallet(t, humanID, polygonAddr, true)
	second := f.wallet(t, humanID, otherAddr, true)

	wallets, err := f.svc.ListWallets(f.ctx, model.WalletFilter{PayeeID: humanID})
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, []string{second.ID}, defaults(wallets))

	// Re-upserting the same natural key keeps the row id.
	again := f.wallet(t, humanID, polygonAddr, true)
	assert.Equal(t, first.ID, again.ID)

	wallets, err = f.svc.ListWallets(f.ctx, model.WalletFilter{PayeeID: humanID})
	require.NoError(t, err)
	assert.Equal(t, []string{first.ID}, defaults(wallets))
}

func TestUpsertWallet_GroupsAreIndependent(t *testing.T) {
	f := newFixture(t)
	f.wallet(t, humanID, polygonAddr, true)

	sol, err := f.svc.UpsertWallet(f.ctx, UpsertWalletInput{
		PayeeID: humanID, Chain: "solana", Network: "mainnet", Token: "USDC", Address: solanaAddr,
	})
	require.NoError(t, err)
	assert.True(t, sol.IsDefault)

	wallets, err := f.svc.ListWallets(f.ctx, model.WalletFilter{PayeeID: humanID})
	require.NoError(t, err)
	assert.Len(t, defaults(wallets), 2)
}

func TestUpsertWallet_Validation(t *testing.T) {
	f := newFixture(t)

	cases := map[string]UpsertWalletInput{
		"short evm address":  {PayeeID: humanID, Chain: "polygon", Network: "mainnet", Token: "USDC", Address: "0x1234"},
		"evm on solana":      {PayeeID: humanID, Chain: "solana", Network: "mainnet", Token: "USDC", Address: polygonAddr},
		"bad checksum":       {PayeeID: humanID, Chain: "polygon", Network: "mainnet", Token: "USDC", Address: "0x52908400098527886E0F7030069857D2E4169Ee7"},
		"network off chain":  {PayeeID: humanID, Chain: "polygon", Network: "devnet", Token: "USDC", Address: polygonAddr},
		"token off chain":    {PayeeID: humanID, Chain: "solana", Network: "mainnet", Token: "DAI", Address: solanaAddr},
		"missing payee":      {Chain: "polygon", Network: "mainnet", Token: "USDC", Address: polygonAddr},
		"unsupported chain":  {PayeeID: humanID, Chain: "tron", Network: "mainnet", Token: "USDT", Address: polygonAddr},
		"solana bad charset": {PayeeID: humanID, Chain: "solana", Network: "mainnet", Token: "SOL", Address: "0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl"},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.svc.UpsertWallet(f.ctx, in)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestResolveWalletForPayout(t *testing.T) {
	f := newFixture(t)
	def := f.wallet(t, humanID, polygonAddr, true)
	other := f.wallet(t, humanID, otherAddr, false)
	foreign := f.wallet(t, "someone-else", polygonAddr, true)

	resolve := func(payee, network string, walletID *string) (*model.Wallet, error) {
		var w *model.Wallet
		err := f.store.WithTx(f.ctx, func(q repository.Queries) error {
			var err error
			w, err = f.svc.ResolveWalletForPayout(f.ctx, q, payee, "polygon", network, "USDC", walletID)
			return err
		})
		return w, err
	}

	w, err := resolve(humanID, "mainnet", nil)
	require.NoError(t, err)
	assert.Equal(t, def.ID, w.ID)

	w, err = resolve(humanID, "mainnet", &other.ID)
	require.NoError(t, err)
	assert.Equal(t, other.ID, w.ID)

	_, err = resolve(humanID, "mainnet", &foreign.ID)
	assert.ErrorIs(t, err, ErrWalletMismatch)

	_, err = resolve(humanID, "amoy", &def.ID)
	assert.ErrorIs(t, err, ErrWalletMismatch)

	_, err = resolve(humanID, "amoy", nil)
	assert.ErrorIs(t, err, ErrNoWalletConfigured)
}

func TestAssertVerifiedForAutoPay(t *testing.T) {
	assert.ErrorIs(t, AssertVerifiedForAutoPay(&model.Wallet{VerificationStatus: model.VerificationUnverified}), ErrWalletNotVerified)
	assert.ErrorIs(t, AssertVerifiedForAutoPay(&model.Wallet{VerificationStatus: model.VerificationRejected}), ErrWalletNotVerified)
	assert.NoError(t, AssertVerifiedForAutoPay(&model.Wallet{VerificationStatus: model.VerificationVerified}))
}
