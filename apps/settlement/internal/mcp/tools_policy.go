package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"settlement/apps/settlement/internal/model"
)

func (s *MCPServer) registerPolicyTools() {
	s.addTool(mcp.NewTool("get_payment_policy",
		mcp.WithDescription("Get the caller's autopay policy. A default disabled policy is created on first read."),
		userIDOption(),
	), s.handleGetPolicy)

	s.addTool(mcp.NewTool("update_payment_policy",
		mcp.WithDescription("Partially update the caller's autopay policy. Omitted fields are left unchanged."),
		userIDOption(),
		mcp.WithBoolean("autopay_enabled", mcp.Description("Allow agent_auto payouts")),
		mcp.WithBoolean("require_approval", mcp.Description("Require owner approval before agents execute")),
		mcp.WithNumber("max_single_payout_cents", mcp.Description("Largest single automatic payout in cents")),
		mcp.WithNumber("max_daily_payout_cents", mcp.Description("Daily automatic payout cap in cents")),
		mcp.WithArray("allowed_chains", mcp.Description("Chains agents may pay out on"), mcp.WithStringItems()),
		mcp.WithArray("allowed_tokens", mcp.Description("Tokens agents may pay out in"), mcp.WithStringItems()),
	), s.handleUpdatePolicy)

	s.addTool(mcp.NewTool("estimate_fees",
		mcp.WithDescription("Estimate network and platform fees for a payout"),
		mcp.WithString("chain", mcp.Required(), mcp.Description("Chain id, e.g. polygon")),
		mcp.WithString("network", mcp.Required(), mcp.Description("mainnet or testnet")),
		mcp.WithString("token", mcp.Required(), mcp.Description("Token symbol, e.g. USDC")),
		mcp.WithNumber("amount_cents", mcp.Required(), mcp.Description("Payout amount in cents")),
		mcp.WithString("execution_mode", mcp.Description("manual (default) or agent_auto")),
	), s.handleEstimateFees)

	s.addTool(mcp.NewTool("list_supported_networks",
		mcp.WithDescription("List supported chains, tokens, lifecycle states and fee schedules"),
	), s.handleListNetworks)
}

func (s *MCPServer) handleGetPolicy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	policy, err := s.service.GetPolicy(ctx, userID)
	return s.respond("get_payment_policy", policy, err)
}

func (s *MCPServer) handleUpdatePolicy(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	var update model.PolicyUpdate
	if errResult := bindArguments(request, &update); errResult != nil {
		return errResult, nil
	}
	policy, err := s.service.UpdatePolicy(ctx, userID, update)
	return s.respond("update_payment_policy", policy, err)
}

func (s *MCPServer) handleEstimateFees(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var in struct {
		Chain         string              `json:"chain"`
		Network       string              `json:"network"`
		Token         string              `json:"token"`
		AmountCents   int64               `json:"amount_cents"`
		ExecutionMode model.ExecutionMode `json:"execution_mode"`
	}
	if errResult := bindArguments(request, &in); errResult != nil {
		return errResult, nil
	}
	estimate, err := s.service.EstimateFees(in.Chain, in.Network, in.Token, in.AmountCents, in.ExecutionMode)
	return s.respond("estimate_fees", estimate, err)
}

func (s *MCPServer) handleListNetworks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return jsonResult(s.service.ListSupportedNetworks())
}
