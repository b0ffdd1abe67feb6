package payment

import (
	"context"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/networks"
	"settlement/apps/settlement/internal/repository"
)

const (
	DefaultMaxSinglePayoutCents int64 = 100000
	DefaultMaxDailyPayoutCents  int64 = 300000
)

func defaultPolicy(ownerUserID string, now time.Time) model.PaymentPolicy {
	return model.PaymentPolicy{
		OwnerUserID:          ownerUserID,
		AutopayEnabled:       false,
		RequireApproval:      true,
		MaxSinglePayoutCents: DefaultMaxSinglePayoutCents,
		MaxDailyPayoutCents:  DefaultMaxDailyPayoutCents,
		AllowedChains:        []string{"polygon"},
		AllowedTokens:        []string{"USDC"},
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// GetPolicy returns the owner's policy, creating the default one on first access.
func (s *Service) GetPolicy(ctx context.Context, ownerUserID string) (*model.PaymentPolicy, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return nil, invalidf("user id is required")
	}

	var policy *model.PaymentPolicy
	err := s.withTx(ctx, func(q repository.Queries) error {
		var err error
		policy, err = s.loadPolicy(ctx, q, ownerUserID)
		return err
	})
	return policy, err
}

func (s *Service) loadPolicy(ctx context.Context, q repository.Queries, ownerUserID string) (*model.PaymentPolicy, error) {
	policy, err := q.GetPolicy(ctx, ownerUserID)
	if err != nil || policy != nil {
		return policy, err
	}

	// Concurrent first reads both insert; the loser's insert is a no-op.
	if err := q.InsertPolicyIfMissing(ctx, defaultPolicy(ownerUserID, s.now())); err != nil {
		return nil, err
	}
	return q.GetPolicy(ctx, ownerUserID)
}

// UpdatePolicy applies the provided fields only. An empty update returns the current policy.
func (s *Service) UpdatePolicy(ctx context.Context, ownerUserID string, update model.PolicyUpdate) (*model.PaymentPolicy, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return nil, invalidf("user id is required")
	}
	chains, tokens, err := s.normalizeAllowLists(update)
	if err != nil {
		return nil, err
	}

	var policy *model.PaymentPolicy
	err = s.withTx(ctx, func(q repository.Queries) error {
		policy, err = s.loadPolicy(ctx, q, ownerUserID)
		if err != nil {
			return err
		}
		if update.Empty() {
			return nil
		}

		if update.AutopayEnabled != nil {
			policy.AutopayEnabled = *update.AutopayEnabled
		}
		if update.RequireApproval != nil {
			policy.RequireApproval = *update.RequireApproval
		}
		if update.MaxSinglePayoutCents != nil {
			policy.MaxSinglePayoutCents = *update.MaxSinglePayoutCents
		}
		if update.MaxDailyPayoutCents != nil {
			policy.MaxDailyPayoutCents = *update.MaxDailyPayoutCents
		}
		if chains != nil {
			policy.AllowedChains = chains
		}
		if tokens != nil {
			policy.AllowedTokens = tokens
		}
		policy.UpdatedAt = s.now()

		return q.UpdatePolicy(ctx, *policy)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment policy updated",
		zap.String("owner_user_id", ownerUserID),
		zap.Bool("autopay_enabled", policy.AutopayEnabled),
		zap.Bool("require_approval", policy.RequireApproval),
		zap.Int64("max_single_payout_cents", policy.MaxSinglePayoutCents),
		zap.Int64("max_daily_payout_cents", policy.MaxDailyPayoutCents))
	return policy, nil
}

func (s *Service) normalizeAllowLists(update model.PolicyUpdate) ([]string, []string, error) {
	if update.MaxSinglePayoutCents != nil && *update.MaxSinglePayoutCents <= 0 {
		return nil, nil, invalidf("max_single_payout_cents must be positive")
	}
	if update.MaxDailyPayoutCents != nil && *update.MaxDailyPayoutCents <= 0 {
		return nil, nil, invalidf("max_daily_payout_cents must be positive")
	}

	var chains, tokens []string
	if update.AllowedChains != nil {
		if len(update.AllowedChains) == 0 {
			return nil, nil, invalidf("allowed_chains must not be empty")
		}
		for _, c := range update.AllowedChains {
			c = strings.ToLower(strings.TrimSpace(c))
			if !s.networks.IsChainSupported(c) {
				return nil, nil, invalidf("unsupported chain %q", c)
			}
			if !slices.Contains(chains, c) {
				chains = append(chains, c)
			}
		}
	}
	if update.AllowedTokens != nil {
		if len(update.AllowedTokens) == 0 {
			return nil, nil, invalidf("allowed_tokens must not be empty")
		}
		for _, t := range update.AllowedTokens {
			t = strings.ToUpper(strings.TrimSpace(t))
			if !s.networks.IsTokenSupported(t) {
				return nil, nil, invalidf("unsupported token %q", t)
			}
			if !slices.Contains(tokens, t) {
				tokens = append(tokens, t)
			}
		}
	}
	return chains, tokens, nil
}

// dayWindow returns the UTC calendar day containing t.
func dayWindow(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// AssertAutopayAllowed fails with a PolicyViolation when the policy does not allow
// an automatic payout of amountCents on chain/token today.
func (s *Service) AssertAutopayAllowed(ctx context.Context, q repository.Queries, policy *model.PaymentPolicy, amountCents int64, chain, token, ownerUserID string) error {
	return s.assertAutopayAllowed(ctx, q, policy, amountCents, chain, token, ownerUserID, 0)
}

// assertAutopayAllowed subtracts alreadyCounted from today's total, for payouts
// that are re-checked after being counted at creation.
func (s *Service) assertAutopayAllowed(ctx context.Context, q repository.Queries, policy *model.PaymentPolicy, amountCents int64, chain, token, ownerUserID string, alreadyCounted int64) error {
	violation := func(format string, args ...any) error {
		err := newError(KindPolicyViolation, format, args...)
		policyViolations.Inc()
		s.logger.Info("Autopay rejected by policy",
			zap.String("owner_user_id", ownerUserID),
			zap.Int64("amount_cents", amountCents),
			zap.String("reason", err.Message))
		return err
	}

	if !policy.AutopayEnabled {
		return violation("autopay is disabled for this account")
	}
	if amountCents > policy.MaxSinglePayoutCents {
		return violation("amount %d exceeds max single payout %d", amountCents, policy.MaxSinglePayoutCents)
	}
	if !slices.Contains(policy.AllowedChains, chain) {
		return violation("chain %s is not allowed by policy", chain)
	}
	if !slices.Contains(policy.AllowedTokens, token) {
		return violation("token %s is not allowed by policy", token)
	}

	from, to := dayWindow(s.now())
	spent, err := q.SumPayoutsCreatedBetween(ctx, ownerUserID, from, to, model.DailyCapStatuses)
	if err != nil {
		return err
	}
	if spent-alreadyCounted+amountCents > policy.MaxDailyPayoutCents {
		return violation("daily payout limit %d would be exceeded (%d already used today)",
			policy.MaxDailyPayoutCents, spent-alreadyCounted)
	}
	return nil
}

// SupportedNetworks is the static catalog of chains, tokens and settlement status enums.
type SupportedNetworks struct {
	Chains              []networks.Chain       `json:"chains"`
	Tokens              []string               `json:"tokens"`
	ExecutionModes      []string               `json:"execution_modes"`
	PayoutStatuses      []string               `json:"payout_statuses"`
	PayoutEventTypes    []string               `json:"payout_event_types"`
	EscrowStatuses      []string               `json:"escrow_statuses"`
	DisputeStatuses     []string               `json:"dispute_statuses"`
	DisputeResolutions  []string               `json:"dispute_resolutions"`
	MilestoneStatuses   []string               `json:"milestone_statuses"`
	VerificationStates  []string               `json:"wallet_verification_statuses"`
	PlatformFeeBps      map[string]int64       `json:"platform_fee_bps"`
	NetworkFeeSchedules map[string]FeeSchedule `json:"network_fee_schedules"`
}

type FeeSchedule struct {
	BaseCents   int64 `json:"base_cents"`
	VariableBps int64 `json:"variable_bps"`
}

func (s *Service) ListSupportedNetworks() SupportedNetworks {
	schedules := make(map[string]FeeSchedule, len(networkFees))
	for chain, fee := range networkFees {
		schedules[chain] = FeeSchedule{BaseCents: fee.baseCents, VariableBps: fee.variableBps}
	}
	return SupportedNetworks{
		Chains:         s.networks.Chains(),
		Tokens:         s.networks.TokenSymbols(),
		ExecutionModes: []string{string(model.ExecutionModeManual), string(model.ExecutionModeAgentAuto)},
		PayoutStatuses: []string{
			string(model.PayoutStatusPending), string(model.PayoutStatusApproved), string(model.PayoutStatusSubmitted),
			string(model.PayoutStatusConfirmed), string(model.PayoutStatusFailed), string(model.PayoutStatusCancelled),
		},
		PayoutEventTypes: model.PayoutEventTypes,
		EscrowStatuses: []string{
			string(model.EscrowStatusHeld), string(model.EscrowStatusReleased),
			string(model.EscrowStatusCancelled), string(model.EscrowStatusExpired),
		},
		DisputeStatuses: []string{
			string(model.DisputeStatusOpen), string(model.DisputeStatusUnderReview),
			string(model.DisputeStatusResolved), string(model.DisputeStatusRejected),
		},
		DisputeResolutions: []string{
			string(model.ResolutionRefund), string(model.ResolutionRelease), string(model.ResolutionSplit),
			string(model.ResolutionNoAction), string(model.ResolutionReject),
		},
		MilestoneStatuses: []string{
			string(model.MilestonePlanned), string(model.MilestoneInProgress), string(model.MilestoneCompleted),
			string(model.MilestonePaid), string(model.MilestoneCancelled),
		},
		VerificationStates: []string{
			string(model.VerificationUnverified), string(model.VerificationVerified), string(model.VerificationRejected),
		},
		PlatformFeeBps: map[string]int64{
			string(model.ExecutionModeManual):    platformFeeBps[model.ExecutionModeManual],
			string(model.ExecutionModeAgentAuto): platformFeeBps[model.ExecutionModeAgentAuto],
		},
		NetworkFeeSchedules: schedules,
	}
}
