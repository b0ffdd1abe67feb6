package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
)

func (s *MCPServer) registerEscrowTools() {
	holdOpts := []mcp.ToolOption{
		mcp.WithDescription("Hold funds for a bounty, booking or manual payee until release"),
		userIDOption(),
	}
	holdOpts = append(holdOpts, sourceOptions()...)
	holdOpts = append(holdOpts, routeOptions()...)
	holdOpts = append(holdOpts, mcp.WithString("note", mcp.Description("Optional note")))
	s.addTool(mcp.NewTool("create_escrow_hold", holdOpts...), s.handleCreateHold)

	s.addTool(mcp.NewTool("release_escrow",
		mcp.WithDescription("Release a held escrow into a payout to the hold's wallet"),
		userIDOption(),
		mcp.WithString("escrow_id", mcp.Required(), mcp.Description("Escrow ID")),
		mcp.WithString("execution_mode", mcp.Description("manual (default) or agent_auto")),
		mcp.WithString("agent_id", mcp.Description("Agent for agent_auto releases")),
		mcp.WithString("idempotency_key", mcp.Description("Payout idempotency key; defaults to escrow:<id>")),
		mcp.WithBoolean("auto_execute", mcp.Description("Execute the payout immediately (agent_auto only)")),
		mcp.WithString("tx_hash", mcp.Description("Transaction hash for auto execution")),
		mcp.WithBoolean("confirm_immediately", mcp.Description("Confirm instead of submit on auto execution")),
	), s.handleReleaseEscrow)

	s.addTool(mcp.NewTool("get_escrow",
		mcp.WithDescription("Get one of the caller's escrow holds"),
		userIDOption(),
		mcp.WithString("escrow_id", mcp.Required(), mcp.Description("Escrow ID")),
	), s.handleGetEscrow)

	s.addTool(mcp.NewTool("list_escrows",
		mcp.WithDescription("List the caller's escrow holds, newest first"),
		userIDOption(),
		mcp.WithString("status", mcp.Description("Filter by status")),
		mcp.WithString("source_type", mcp.Description("Filter by source type")),
		mcp.WithString("source_id", mcp.Description("Filter by source ID")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (default 50, max 200)")),
	), s.handleListEscrows)

	s.addTool(mcp.NewTool("list_escrow_events",
		mcp.WithDescription("List an escrow hold's audit events, oldest first"),
		userIDOption(),
		mcp.WithString("escrow_id", mcp.Required(), mcp.Description("Escrow ID")),
	), s.handleListEscrowEvents)
}

func (s *MCPServer) handleCreateHold(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	var in payment.CreateHoldInput
	if errResult := bindArguments(request, &in); errResult != nil {
		return errResult, nil
	}
	in.OwnerUserID = userID
	hold, err := s.service.CreateHold(ctx, in)
	return s.respond("create_escrow_hold", hold, err)
}

func (s *MCPServer) handleReleaseEscrow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	var in payment.ReleaseInput
	if errResult := bindArguments(request, &in); errResult != nil {
		return errResult, nil
	}
	in.OwnerUserID = userID
	result, err := s.service.Release(ctx, in)
	return s.respond("release_escrow", result, err)
}

func (s *MCPServer) handleGetEscrow(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	hold, err := s.service.GetEscrow(ctx, userID, toString(request.GetArguments()["escrow_id"]))
	return s.respond("get_escrow", hold, err)
}

func (s *MCPServer) handleListEscrows(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	args := request.GetArguments()
	holds, err := s.service.ListEscrows(ctx, model.EscrowFilter{
		OwnerUserID: userID,
		Status:      model.EscrowStatus(toString(args["status"])),
		SourceType:  model.SourceType(toString(args["source_type"])),
		SourceID:    toString(args["source_id"]),
		Limit:       toInt(args["limit"]),
	})
	return s.respond("list_escrows", holds, err)
}

func (s *MCPServer) handleListEscrowEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	events, err := s.service.ListEscrowEvents(ctx, userID, toString(request.GetArguments()["escrow_id"]))
	return s.respond("list_escrow_events", events, err)
}

func (s *MCPServer) registerMilestoneTools() {
	s.addTool(mcp.NewTool("create_milestone",
		mcp.WithDescription("Plan a milestone against a booking or bounty. Active milestones may not exceed the source amount."),
		userIDOption(),
		mcp.WithString("source_type", mcp.Required(), mcp.Description("booking or bounty")),
		mcp.WithString("source_id", mcp.Required(), mcp.Description("Booking or bounty ID")),
		mcp.WithString("title", mcp.Required(), mcp.Description("Milestone title")),
		mcp.WithNumber("amount_cents", mcp.Required(), mcp.Description("Milestone amount in cents")),
		mcp.WithString("due_at", mcp.Description("RFC 3339 due date")),
	), s.handleCreateMilestone)

	s.addTool(mcp.NewTool("list_milestones",
		mcp.WithDescription("List the caller's milestones"),
		userIDOption(),
		mcp.WithString("source_type", mcp.Description("Filter by source type")),
		mcp.WithString("source_id", mcp.Description("Filter by source ID")),
		mcp.WithString("status", mcp.Description("Filter by status")),
	), s.handleListMilestones)

	s.addTool(mcp.NewTool("complete_milestone",
		mcp.WithDescription("Mark a milestone completed, optionally creating its payout"),
		userIDOption(),
		mcp.WithString("milestone_id", mcp.Required(), mcp.Description("Milestone ID")),
		mcp.WithBoolean("auto_create_payout", mcp.Description("Create a payout for the milestone amount")),
		mcp.WithObject("payout", mcp.Description("Payout configuration: chain, network, token, wallet_id, execution_mode, agent_id, idempotency_key, auto_execute, tx_hash, confirm_immediately")),
	), s.handleCompleteMilestone)
}

func (s *MCPServer) handleCreateMilestone(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	var in payment.CreateMilestoneInput
	if errResult := bindArguments(request, &in); errResult != nil {
		return errResult, nil
	}
	in.OwnerUserID = userID
	milestone, err := s.service.CreateMilestone(ctx, in)
	return s.respond("create_milestone", milestone, err)
}

func (s *MCPServer) handleListMilestones(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	args := request.GetArguments()
	milestones, err := s.service.ListMilestones(ctx, model.MilestoneFilter{
		OwnerUserID: userID,
		SourceType:  model.SourceType(toString(args["source_type"])),
		SourceID:    toString(args["source_id"]),
		Status:      model.MilestoneStatus(toString(args["status"])),
	})
	return s.respond("list_milestones", milestones, err)
}

func (s *MCPServer) handleCompleteMilestone(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	var in payment.CompleteMilestoneInput
	if errResult := bindArguments(request, &in); errResult != nil {
		return errResult, nil
	}
	in.OwnerUserID = userID
	result, err := s.service.CompleteMilestone(ctx, in)
	return s.respond("complete_milestone", result, err)
}
