package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
)

func routeOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("chain", mcp.Required(), mcp.Description("Chain id, e.g. polygon")),
		mcp.WithString("network", mcp.Required(), mcp.Description("mainnet or testnet")),
		mcp.WithString("token", mcp.Required(), mcp.Description("Token symbol, e.g. USDC")),
		mcp.WithString("wallet_id", mcp.Description("Payee wallet; defaults to the payee's default wallet for the route")),
	}
}

func sourceOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("source_type", mcp.Required(), mcp.Description("bounty, booking or manual")),
		mcp.WithString("source_id", mcp.Description("Bounty or booking ID")),
		mcp.WithNumber("amount_cents", mcp.Description("Amount in cents; defaults to the source amount")),
		mcp.WithString("payee_id", mcp.Description("Payee; required for manual sources")),
	}
}

func (s *MCPServer) registerPayoutTools() {
	createOpts := []mcp.ToolOption{
		mcp.WithDescription("Create a payout intent. Repeating an idempotency_key returns the original payout."),
		userIDOption(),
	}
	createOpts = append(createOpts, sourceOptions()...)
	createOpts = append(createOpts, routeOptions()...)
	createOpts = append(createOpts,
		mcp.WithString("execution_mode", mcp.Description("manual (default) or agent_auto")),
		mcp.WithString("agent_id", mcp.Description("Requesting agent")),
		mcp.WithString("idempotency_key", mcp.Description("Deduplication key, unique per owner")),
	)
	s.addTool(mcp.NewTool("create_payout_intent", createOpts...), s.handleCreatePayout)

	s.addTool(mcp.NewTool("approve_payout",
		mcp.WithDescription("Approve a pending payout"),
		userIDOption(),
		mcp.WithString("payout_id", mcp.Required(), mcp.Description("Payout ID")),
		mcp.WithString("actor_id", mcp.Description("Approver; defaults to user_id")),
	), s.handleApprovePayout)

	s.addTool(mcp.NewTool("execute_payout",
		mcp.WithDescription("Execute an agent_auto payout as an agent. Policy and wallet verification are re-checked."),
		userIDOption(),
		mcp.WithString("payout_id", mcp.Required(), mcp.Description("Payout ID")),
		mcp.WithString("agent_id", mcp.Required(), mcp.Description("Executing agent")),
		mcp.WithString("tx_hash", mcp.Description("Transaction hash; simulated when omitted")),
		mcp.WithBoolean("confirm_immediately", mcp.Description("Mark confirmed instead of submitted (default true)")),
	), s.handleExecutePayout)

	s.addTool(mcp.NewTool("fail_payout",
		mcp.WithDescription("Mark a non-terminal payout as failed"),
		userIDOption(),
		mcp.WithString("payout_id", mcp.Required(), mcp.Description("Payout ID")),
		mcp.WithString("reason", mcp.Required(), mcp.Description("Failure reason")),
		mcp.WithString("actor_id", mcp.Description("Actor; defaults to user_id")),
	), s.handleFailPayout)

	s.addTool(mcp.NewTool("get_payout",
		mcp.WithDescription("Get one of the caller's payouts"),
		userIDOption(),
		mcp.WithString("payout_id", mcp.Required(), mcp.Description("Payout ID")),
	), s.handleGetPayout)

	s.addTool(mcp.NewTool("list_payouts",
		mcp.WithDescription("List the caller's payouts, newest first"),
		userIDOption(),
		mcp.WithString("status", mcp.Description("Filter by status")),
		mcp.WithString("payee_id", mcp.Description("Filter by payee")),
		mcp.WithString("source_type", mcp.Description("Filter by source type")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (default 50, max 200)")),
	), s.handleListPayouts)

	s.addTool(mcp.NewTool("list_payout_events",
		mcp.WithDescription("List a payout's audit events, oldest first"),
		userIDOption(),
		mcp.WithString("payout_id", mcp.Required(), mcp.Description("Payout ID")),
	), s.handleListPayoutEvents)
}

func (s *MCPServer) handleCreatePayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	var in payment.CreateIntentInput
	if errResult := bindArguments(request, &in); errResult != nil {
		return errResult, nil
	}
	in.OwnerUserID = userID
	payout, err := s.service.CreateIntent(ctx, in)
	return s.respond("create_payout_intent", payout, err)
}

func (s *MCPServer) handleApprovePayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	payoutID, err := request.RequireString("payout_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	payout, err := s.service.Approve(ctx, userID, payoutID, toString(request.GetArguments()["actor_id"]))
	return s.respond("approve_payout", payout, err)
}

func (s *MCPServer) handleExecutePayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	var in payment.ExecuteInput
	if errResult := bindArguments(request, &in); errResult != nil {
		return errResult, nil
	}
	in.OwnerUserID = userID
	payout, err := s.service.ExecuteByAgent(ctx, in)
	return s.respond("execute_payout", payout, err)
}

func (s *MCPServer) handleFailPayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	args := request.GetArguments()
	payout, err := s.service.Fail(ctx, userID, toString(args["payout_id"]), toString(args["reason"]), toString(args["actor_id"]))
	return s.respond("fail_payout", payout, err)
}

func (s *MCPServer) handleGetPayout(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	payout, err := s.service.GetPayout(ctx, userID, toString(request.GetArguments()["payout_id"]))
	return s.respond("get_payout", payout, err)
}

func (s *MCPServer) handleListPayouts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	args := request.GetArguments()
	payouts, err := s.service.ListPayouts(ctx, model.PayoutFilter{
		OwnerUserID: userID,
		Status:      model.PayoutStatus(toString(args["status"])),
		PayeeID:     toString(args["payee_id"]),
		SourceType:  model.SourceType(toString(args["source_type"])),
		Limit:       toInt(args["limit"]),
	})
	return s.respond("list_payouts", payouts, err)
}

func (s *MCPServer) handleListPayoutEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	events, err := s.service.ListPayoutEvents(ctx, userID, toString(request.GetArguments()["payout_id"]))
	return s.respond("list_payout_events", events, err)
}
