package payment

import (
	"strings"

	"github.com/shopspring/decimal"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/networks"
)

type networkFeeModel struct {
	baseCents   int64
	variableBps int64
}

// Testnets share the mainnet fee model.
var networkFees = map[string]networkFeeModel{
	"ethereum": {baseCents: 150, variableBps: 5},
	"base":     {baseCents: 5, variableBps: 1},
	"polygon":  {baseCents: 2, variableBps: 1},
	"arbitrum": {baseCents: 10, variableBps: 2},
	"optimism": {baseCents: 10, variableBps: 2},
	"solana":   {baseCents: 1, variableBps: 0},
}

var platformFeeBps = map[model.ExecutionMode]int64{
	model.ExecutionModeManual:    100,
	model.ExecutionModeAgentAuto: 150,
}

var bpsDenominator = decimal.NewFromInt(10000)

// basisPoints returns bps/10000 of amount, rounded up to the next cent.
func basisPoints(amountCents, bps int64) int64 {
	return decimal.NewFromInt(amountCents).
		Mul(decimal.NewFromInt(bps)).
		Div(bpsDenominator).
		Ceil().
		IntPart()
}

// EstimateFees is pure: it reports the network fee, platform fee, total debit
// and recipient net for a payout of amountCents.
func EstimateFees(registry *networks.Registry, chain, network, token string, amountCents int64, mode model.ExecutionMode) (*model.FeeEstimate, error) {
	if amountCents <= 0 {
		return nil, invalidf("amount_cents must be positive")
	}
	if mode == "" {
		mode = model.ExecutionModeManual
	}
	if !mode.Valid() {
		return nil, invalidf("unsupported execution_mode %q", mode)
	}
	chain, token = strings.ToLower(chain), strings.ToUpper(token)
	if err := registry.ValidateRoute(chain, network, token); err != nil {
		return nil, invalidf("%v", err)
	}

	feeModel := networkFees[chain]
	networkFee := feeModel.baseCents + basisPoints(amountCents, feeModel.variableBps)
	platformFee := basisPoints(amountCents, platformFeeBps[mode])

	net := amountCents - networkFee
	if net < 0 {
		net = 0
	}

	return &model.FeeEstimate{
		Chain:             chain,
		Network:           network,
		Token:             token,
		ExecutionMode:     mode,
		AmountCents:       amountCents,
		NetworkFeeCents:   networkFee,
		PlatformFeeCents:  platformFee,
		TotalDebitCents:   amountCents + platformFee,
		RecipientNetCents: net,
	}, nil
}

func (s *Service) EstimateFees(chain, network, token string, amountCents int64, mode model.ExecutionMode) (*model.FeeEstimate, error) {
	return EstimateFees(s.networks, chain, network, token, amountCents, mode)
}
