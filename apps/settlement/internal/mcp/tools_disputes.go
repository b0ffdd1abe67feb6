package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
)

func (s *MCPServer) registerDisputeTools() {
	s.addTool(mcp.NewTool("open_dispute",
		mcp.WithDescription("Open a dispute on a booking, payout, escrow or bounty the caller is party to"),
		userIDOption(),
		mcp.WithString("target_type", mcp.Required(), mcp.Description("booking, payout, escrow or bounty")),
		mcp.WithString("target_id", mcp.Required(), mcp.Description("Target ID")),
		mcp.WithString("reason", mcp.Required(), mcp.Description("Short reason")),
		mcp.WithString("details", mcp.Description("Longer description")),
	), s.handleOpenDispute)

	s.addTool(mcp.NewTool("resolve_dispute",
		mcp.WithDescription("Record a reviewer decision. Funds are not moved."),
		userIDOption(),
		mcp.WithString("dispute_id", mcp.Required(), mcp.Description("Dispute ID")),
		mcp.WithString("decision", mcp.Required(), mcp.Description("refund, release, split, no_action or reject")),
		mcp.WithString("note", mcp.Description("Resolution note")),
	), s.handleResolveDispute)

	s.addTool(mcp.NewTool("get_dispute",
		mcp.WithDescription("Get a dispute the caller opened; reviewers may read any dispute"),
		userIDOption(),
		mcp.WithString("dispute_id", mcp.Required(), mcp.Description("Dispute ID")),
	), s.handleGetDispute)

	s.addTool(mcp.NewTool("list_disputes",
		mcp.WithDescription("List the caller's disputes; reviewers see all disputes"),
		userIDOption(),
		mcp.WithString("status", mcp.Description("Filter by status")),
		mcp.WithString("target_type", mcp.Description("Filter by target type")),
		mcp.WithString("target_id", mcp.Description("Filter by target ID")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (default 50, max 200)")),
	), s.handleListDisputes)

	s.addTool(mcp.NewTool("list_dispute_events",
		mcp.WithDescription("List a dispute's audit events, oldest first"),
		userIDOption(),
		mcp.WithString("dispute_id", mcp.Required(), mcp.Description("Dispute ID")),
	), s.handleListDisputeEvents)
}

func (s *MCPServer) handleOpenDispute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	var in payment.OpenDisputeInput
	if errResult := bindArguments(request, &in); errResult != nil {
		return errResult, nil
	}
	in.UserID = userID
	dispute, err := s.service.OpenDispute(ctx, in)
	return s.respond("open_dispute", dispute, err)
}

func (s *MCPServer) handleResolveDispute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	var in payment.ResolveDisputeInput
	if errResult := bindArguments(request, &in); errResult != nil {
		return errResult, nil
	}
	in.ReviewerID = userID
	dispute, err := s.service.ResolveDispute(ctx, in)
	return s.respond("resolve_dispute", dispute, err)
}

func (s *MCPServer) handleGetDispute(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	dispute, err := s.service.GetDispute(ctx, userID, toString(request.GetArguments()["dispute_id"]))
	return s.respond("get_dispute", dispute, err)
}

func (s *MCPServer) handleListDisputes(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	args := request.GetArguments()
	disputes, err := s.service.ListDisputes(ctx, userID, model.DisputeFilter{
		Status:     model.DisputeStatus(toString(args["status"])),
		TargetType: model.DisputeTargetType(toString(args["target_type"])),
		TargetID:   toString(args["target_id"]),
		Limit:      toInt(args["limit"]),
	})
	return s.respond("list_disputes", disputes, err)
}

func (s *MCPServer) handleListDisputeEvents(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	events, err := s.service.ListDisputeEvents(ctx, userID, toString(request.GetArguments()["dispute_id"]))
	return s.respond("list_dispute_events", events, err)
}

func (s *MCPServer) registerWebhookTools() {
	s.addTool(mcp.NewTool("create_webhook_subscription",
		mcp.WithDescription("Subscribe an HTTPS endpoint to payout events. The signing secret is only returned here."),
		userIDOption(),
		mcp.WithString("target_url", mcp.Required(), mcp.Description("Delivery URL")),
		mcp.WithArray("events", mcp.Description("Payout event types; all when omitted"), mcp.WithStringItems()),
		mcp.WithString("description", mcp.Description("Optional description")),
	), s.handleCreateSubscription)

	s.addTool(mcp.NewTool("list_webhook_subscriptions",
		mcp.WithDescription("List the caller's webhook subscriptions without secrets"),
		userIDOption(),
	), s.handleListSubscriptions)

	s.addTool(mcp.NewTool("list_webhook_deliveries",
		mcp.WithDescription("List queued webhook deliveries, newest first"),
		userIDOption(),
		mcp.WithString("subscription_id", mcp.Description("Filter by subscription")),
		mcp.WithString("payout_id", mcp.Description("Filter by payout")),
		mcp.WithNumber("limit", mcp.Description("Maximum rows (default 50, max 200)")),
	), s.handleListDeliveries)
}

func (s *MCPServer) handleCreateSubscription(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	var in payment.CreateSubscriptionInput
	if errResult := bindArguments(request, &in); errResult != nil {
		return errResult, nil
	}
	in.OwnerUserID = userID
	sub, err := s.service.CreateSubscription(ctx, in)
	return s.respond("create_webhook_subscription", sub, err)
}

func (s *MCPServer) handleListSubscriptions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	subs, err := s.service.ListSubscriptions(ctx, userID)
	return s.respond("list_webhook_subscriptions", subs, err)
}

func (s *MCPServer) handleListDeliveries(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	args := request.GetArguments()
	deliveries, err := s.service.ListDeliveries(ctx, model.DeliveryFilter{
		OwnerUserID:    userID,
		SubscriptionID: toString(args["subscription_id"]),
		PayoutID:       toString(args["payout_id"]),
		Limit:          toInt(args["limit"]),
	})
	return s.respond("list_webhook_deliveries", deliveries, err)
}
