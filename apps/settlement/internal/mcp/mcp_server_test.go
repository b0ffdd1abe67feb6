package mcp

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
	"settlement/apps/settlement/internal/repository"
)

const (
	clientID    = repository.DemoClientID
	humanID     = repository.DemoHumanID
	reviewerID  = "reviewer-1"
	polygonAddr = "0x52908400098527886e0f7030069857d2e4169ee7"
)

func newTestServer(t *testing.T) *MCPServer {
	t.Helper()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := repository.NewMemoryStore()
	require.NoError(t, repository.SeedMarketplace(context.Background(), store, now))

	service := payment.NewService(store, zap.NewNop(),
		payment.WithClock(func() time.Time { return now }),
		payment.WithReviewers([]string{reviewerID}))
	return NewMCPServer(service, zap.NewNop())
}

func call(t *testing.T, handler toolHandler, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	request := mcp.CallToolRequest{}
	request.Params.Arguments = args
	result, err := handler(context.Background(), request)
	require.NoError(t, err)
	require.NotNil(t, result)
	return result
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, result.Content)
	switch c := result.Content[0].(type) {
	case mcp.TextContent:
		return c.Text
	case *mcp.TextContent:
		return c.Text
	}
	t.Fatalf("unexpected content %T", result.Content[0])
	return ""
}

func decodeResult[T any](t *testing.T, result *mcp.CallToolResult) T {
	t.Helper()
	require.False(t, result.IsError, resultText(t, result))
	var v T
	require.NoError(t, json.Unmarshal([]byte(resultText(t, result)), &v))
	return v
}

func requireToolError(t *testing.T, result *mcp.CallToolResult, contains string) {
	t.Helper()
	require.True(t, result.IsError, resultText(t, result))
	assert.Contains(t, resultText(t, result), contains)
}

func TestToolsRequireUserID(t *testing.T) {
	s := newTestServer(t)

	requireToolError(t, call(t, s.handleGetPolicy, map[string]any{}), "user_id is required")
	requireToolError(t, call(t, s.handleListPayouts, map[string]any{"user_id": "  "}), "user_id is required")
}

func TestPolicyTools(t *testing.T) {
	s := newTestServer(t)

	policy := decodeResult[model.PaymentPolicy](t, call(t, s.handleUpdatePolicy, map[string]any{
		"user_id":                 clientID,
		"autopay_enabled":         true,
		"max_single_payout_cents": float64(20000),
		"allowed_tokens":          []any{"usdc"},
	}))
	assert.True(t, policy.AutopayEnabled)
	assert.Equal(t, int64(20000), policy.MaxSinglePayoutCents)
	assert.Equal(t, []string{"USDC"}, policy.AllowedTokens)

	policy = decodeResult[model.PaymentPolicy](t, call(t, s.handleGetPolicy, map[string]any{"user_id": clientID}))
	assert.True(t, policy.AutopayEnabled)

	requireToolError(t, call(t, s.handleUpdatePolicy, map[string]any{
		"user_id":                 clientID,
		"max_single_payout_cents": "lots",
	}), "invalid arguments")

	estimate := decodeResult[model.FeeEstimate](t, call(t, s.handleEstimateFees, map[string]any{
		"chain": "polygon", "network": "mainnet", "token": "USDC", "amount_cents": float64(5000),
	}))
	assert.Equal(t, model.ExecutionModeManual, estimate.ExecutionMode)

	networks := decodeResult[payment.SupportedNetworks](t, call(t, s.handleListNetworks, nil))
	assert.Contains(t, networks.Tokens, "USDC")
}

func TestWalletAndAgentPayoutFlow(t *testing.T) {
	s := newTestServer(t)

	wallet := decodeResult[model.Wallet](t, call(t, s.handleUpsertWallet, map[string]any{
		"user_id": humanID, "chain": "polygon", "network": "mainnet", "token": "USDC", "address": polygonAddr,
	}))
	assert.Equal(t, humanID, wallet.PayeeID)

	challenge := decodeResult[payment.ChallengeResult](t, call(t, s.handleCreateChallenge, map[string]any{
		"user_id": humanID, "wallet_id": wallet.ID,
	}))
	verified := decodeResult[payment.VerificationResult](t, call(t, s.handleVerifyChallenge, map[string]any{
		"user_id":      humanID,
		"challenge_id": challenge.Challenge.ID,
		"signature":    payment.ExpectedSignature(polygonAddr, challenge.Challenge.Nonce),
	}))
	assert.Equal(t, model.VerificationVerified, verified.Wallet.VerificationStatus)

	// Autopay is disabled until the owner opts in.
	createArgs := map[string]any{
		"user_id":         clientID,
		"source_type":     "booking",
		"source_id":       repository.DemoBookingID,
		"chain":           "polygon",
		"network":         "mainnet",
		"token":           "USDC",
		"execution_mode":  "agent_auto",
		"agent_id":        "agent-7",
		"idempotency_key": "booking-demo-1:final",
	}
	requireToolError(t, call(t, s.handleCreatePayout, createArgs), "policy_violation")

	decodeResult[model.PaymentPolicy](t, call(t, s.handleUpdatePolicy, map[string]any{
		"user_id": clientID, "autopay_enabled": true, "require_approval": false,
	}))

	payout := decodeResult[model.CryptoPayout](t, call(t, s.handleCreatePayout, createArgs))
	assert.Equal(t, model.PayoutStatusApproved, payout.Status)
	assert.Equal(t, int64(36000), payout.AmountCents)

	executed := decodeResult[model.CryptoPayout](t, call(t, s.handleExecutePayout, map[string]any{
		"user_id": clientID, "payout_id": payout.ID, "agent_id": "agent-7",
	}))
	assert.Equal(t, model.PayoutStatusConfirmed, executed.Status)
	require.NotNil(t, executed.TxHash)

	events := decodeResult[[]model.PayoutEvent](t, call(t, s.handleListPayoutEvents, map[string]any{
		"user_id": clientID, "payout_id": payout.ID,
	}))
	assert.NotEmpty(t, events)

	requireToolError(t, call(t, s.handleGetPayout, map[string]any{"user_id": humanID, "payout_id": payout.ID}), "not_found")
	requireToolError(t, call(t, s.handleFailPayout, map[string]any{
		"user_id": clientID, "payout_id": payout.ID, "reason": "late",
	}), "invalid_transition")
}

func TestEscrowMilestoneAndDisputeTools(t *testing.T) {
	s := newTestServer(t)
	decodeResult[model.Wallet](t, call(t, s.handleUpsertWallet, map[string]any{
		"user_id": humanID, "chain": "polygon", "network": "mainnet", "token": "USDC", "address": polygonAddr,
	}))

	hold := decodeResult[model.EscrowHold](t, call(t, s.handleCreateHold, map[string]any{
		"user_id": clientID, "source_type": "booking", "source_id": repository.DemoBookingID,
		"chain": "polygon", "network": "mainnet", "token": "USDC",
	}))
	assert.Equal(t, model.EscrowStatusHeld, hold.Status)

	released := decodeResult[payment.ReleaseResult](t, call(t, s.handleReleaseEscrow, map[string]any{
		"user_id": clientID, "escrow_id": hold.ID,
	}))
	assert.Equal(t, model.EscrowStatusReleased, released.Escrow.Status)
	assert.Equal(t, model.PayoutStatusPending, released.Payout.Status)

	milestone := decodeResult[model.BookingMilestone](t, call(t, s.handleCreateMilestone, map[string]any{
		"user_id": clientID, "source_type": "bounty", "source_id": repository.DemoBountyID,
		"title": "Draft", "amount_cents": float64(20000), "due_at": "2026-04-01T00:00:00Z",
	}))
	require.NotNil(t, milestone.DueAt)

	completed := decodeResult[payment.CompleteMilestoneResult](t, call(t, s.handleCompleteMilestone, map[string]any{
		"user_id": clientID, "milestone_id": milestone.ID,
	}))
	assert.Equal(t, model.MilestoneCompleted, completed.Milestone.Status)
	assert.Nil(t, completed.Payout)

	dispute := decodeResult[model.Dispute](t, call(t, s.handleOpenDispute, map[string]any{
		"user_id": humanID, "target_type": "escrow", "target_id": hold.ID, "reason": "Released too early",
	}))
	requireToolError(t, call(t, s.handleResolveDispute, map[string]any{
		"user_id": clientID, "dispute_id": dispute.ID, "decision": "refund",
	}), "forbidden")

	resolved := decodeResult[model.Dispute](t, call(t, s.handleResolveDispute, map[string]any{
		"user_id": reviewerID, "dispute_id": dispute.ID, "decision": "no_action",
	}))
	assert.Equal(t, model.DisputeStatusResolved, resolved.Status)

	all := decodeResult[[]model.Dispute](t, call(t, s.handleListDisputes, map[string]any{"user_id": reviewerID}))
	assert.Len(t, all, 1)
}

func TestWebhookTools(t *testing.T) {
	s := newTestServer(t)

	sub := decodeResult[model.PayoutWebhookSubscription](t, call(t, s.handleCreateSubscription, map[string]any{
		"user_id": clientID, "target_url": "https://hooks.example.com/x", "events": []any{"payout_confirmed"},
	}))
	assert.NotEmpty(t, sub.Secret)
	assert.Equal(t, []string{"payout_confirmed"}, sub.Events)

	subs := decodeResult[[]model.PayoutWebhookSubscription](t, call(t, s.handleListSubscriptions, map[string]any{"user_id": clientID}))
	require.Len(t, subs, 1)
	assert.Empty(t, subs[0].Secret)

	requireToolError(t, call(t, s.handleCreateSubscription, map[string]any{
		"user_id": clientID, "target_url": "https://hooks.example.com/x", "events": []any{"payout_exploded"},
	}), "validation_error")
}

func TestEveryToolIsRegistered(t *testing.T) {
	s := newTestServer(t)

	response := s.GetMCPServer().HandleMessage(context.Background(),
		json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	body, err := json.Marshal(response)
	require.NoError(t, err)

	for _, name := range []string{
		"get_payment_policy", "update_payment_policy", "estimate_fees", "list_supported_networks",
		"upsert_wallet", "list_wallets", "create_wallet_challenge", "verify_wallet_challenge", "list_wallet_challenges",
		"create_payout_intent", "approve_payout", "execute_payout", "fail_payout", "get_payout", "list_payouts", "list_payout_events",
		"create_escrow_hold", "release_escrow", "get_escrow", "list_escrows", "list_escrow_events",
		"create_milestone", "list_milestones", "complete_milestone",
		"open_dispute", "resolve_dispute", "get_dispute", "list_disputes", "list_dispute_events",
		"create_webhook_subscription", "list_webhook_subscriptions", "list_webhook_deliveries",
	} {
		assert.Contains(t, string(body), `"name":"`+name+`"`)
	}
}
