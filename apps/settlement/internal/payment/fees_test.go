package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/networks"
)

func TestEstimateFees(t *testing.T) {
	tests := []struct {
		name                         string
		chain, network, token        string
		amount                       int64
		mode                         model.ExecutionMode
		networkFee, platformFee, net int64
	}{
		{"polygon manual", "polygon", "mainnet", "USDC", 10000, model.ExecutionModeManual, 3, 100, 9997},
		{"ethereum agent", "ethereum", "mainnet", "USDC", 36000, model.ExecutionModeAgentAuto, 168, 540, 35832},
		{"base rounds up", "base", "sepolia", "USDC", 12345, model.ExecutionModeAgentAuto, 7, 186, 12338},
		{"solana net floors at zero", "solana", "devnet", "SOL", 1, model.ExecutionModeManual, 1, 1, 0},
		{"mode defaults to manual", "arbitrum", "mainnet", "USDT", 20000, "", 14, 200, 19986},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est, err := EstimateFees(networks.GlobalRegistry, tt.chain, tt.network, tt.token, tt.amount, tt.mode)
			require.NoError(t, err)
			assert.Equal(t, tt.networkFee, est.NetworkFeeCents)
			assert.Equal(t, tt.platformFee, est.PlatformFeeCents)
			assert.Equal(t, tt.amount+tt.platformFee, est.TotalDebitCents)
			assert.Equal(t, tt.net, est.RecipientNetCents)
		})
	}
}

func TestEstimateFees_AgentCostsMoreThanManual(t *testing.T) {
	manual, err := EstimateFees(networks.GlobalRegistry, "polygon", "mainnet", "USDC", 100000, model.ExecutionModeManual)
	require.NoError(t, err)
	auto, err := EstimateFees(networks.GlobalRegistry, "polygon", "mainnet", "USDC", 100000, model.ExecutionModeAgentAuto)
	require.NoError(t, err)

	assert.Greater(t, auto.PlatformFeeCents, manual.PlatformFeeCents)
	assert.Equal(t, manual.NetworkFeeCents, auto.NetworkFeeCents)
}

func TestEstimateFees_Invalid(t *testing.T) {
	cases := map[string]func() error{
		"zero amount": func() error {
			_, err := EstimateFees(networks.GlobalRegistry, "polygon", "mainnet", "USDC", 0, model.ExecutionModeManual)
			return err
		},
		"network not on chain": func() error {
			_, err := EstimateFees(networks.GlobalRegistry, "polygon", "sepolia", "USDC", 100, model.ExecutionModeManual)
			return err
		},
		"unknown mode": func() error {
			_, err := EstimateFees(networks.GlobalRegistry, "polygon", "mainnet", "USDC", 100, "instant")
			return err
		},
	}
	for name, call := range cases {
		t.Run(name, func(t *testing.T) {
			assert.ErrorIs(t, call(), ErrValidation)
		})
	}
}
