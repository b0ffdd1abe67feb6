package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"settlement/apps/settlement/internal/model"
	"settlement/apps/settlement/internal/payment"
)

func (s *MCPServer) registerWalletTools() {
	s.addTool(mcp.NewTool("upsert_wallet",
		mcp.WithDescription("Register or update a payout wallet for the calling payee. The first wallet of a chain/network/token becomes the default."),
		userIDOption(),
		mcp.WithString("chain", mcp.Required(), mcp.Description("Chain id, e.g. polygon")),
		mcp.WithString("network", mcp.Required(), mcp.Description("mainnet or testnet")),
		mcp.WithString("token", mcp.Required(), mcp.Description("Token symbol, e.g. USDC")),
		mcp.WithString("address", mcp.Required(), mcp.Description("Destination address")),
		mcp.WithString("label", mcp.Description("Optional label")),
		mcp.WithBoolean("is_default", mcp.Description("Make this the default wallet for its chain/network/token")),
	), s.handleUpsertWallet)

	s.addTool(mcp.NewTool("list_wallets",
		mcp.WithDescription("List the calling payee's wallets, default first"),
		userIDOption(),
		mcp.WithString("chain", mcp.Description("Filter by chain")),
		mcp.WithString("network", mcp.Description("Filter by network")),
		mcp.WithString("token", mcp.Description("Filter by token")),
	), s.handleListWallets)

	s.addTool(mcp.NewTool("create_wallet_challenge",
		mcp.WithDescription("Issue an ownership challenge for one of the caller's wallets"),
		userIDOption(),
		mcp.WithString("wallet_id", mcp.Required(), mcp.Description("Wallet to verify")),
		mcp.WithNumber("expires_in_minutes", mcp.Description("Challenge lifetime, 1 to 1440 minutes (default 15)")),
	), s.handleCreateChallenge)

	s.addTool(mcp.NewTool("verify_wallet_challenge",
		mcp.WithDescription("Submit a signature for a pending wallet challenge"),
		userIDOption(),
		mcp.WithString("challenge_id", mcp.Required(), mcp.Description("Challenge to answer")),
		mcp.WithString("signature", mcp.Required(), mcp.Description("Signature over the challenge message")),
	), s.handleVerifyChallenge)

	s.addTool(mcp.NewTool("list_wallet_challenges",
		mcp.WithDescription("List the challenges issued for one of the caller's wallets"),
		userIDOption(),
		mcp.WithString("wallet_id", mcp.Required(), mcp.Description("Wallet ID")),
	), s.handleListChallenges)
}

func (s *MCPServer) handleUpsertWallet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	var in payment.UpsertWalletInput
	if errResult := bindArguments(request, &in); errResult != nil {
		return errResult, nil
	}
	in.PayeeID = userID
	wallet, err := s.service.UpsertWallet(ctx, in)
	return s.respond("upsert_wallet", wallet, err)
}

func (s *MCPServer) handleListWallets(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	args := request.GetArguments()
	wallets, err := s.service.ListWallets(ctx, model.WalletFilter{
		PayeeID: userID,
		Chain:   toString(args["chain"]),
		Network: toString(args["network"]),
		Token:   toString(args["token"]),
	})
	return s.respond("list_wallets", wallets, err)
}

func (s *MCPServer) handleCreateChallenge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	walletID, err := request.RequireString("wallet_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.service.CreateChallenge(ctx, walletID, userID, toInt(request.GetArguments()["expires_in_minutes"]))
	return s.respond("create_wallet_challenge", result, err)
}

func (s *MCPServer) handleVerifyChallenge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	challengeID, err := request.RequireString("challenge_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	signature, err := request.RequireString("signature")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	result, err := s.service.VerifyChallenge(ctx, challengeID, signature, userID)
	return s.respond("verify_wallet_challenge", result, err)
}

func (s *MCPServer) handleListChallenges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID, errResult := requireUser(request)
	if errResult != nil {
		return errResult, nil
	}
	walletID, err := request.RequireString("wallet_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	challenges, err := s.service.ListChallenges(ctx, walletID, userID)
	return s.respond("list_wallet_challenges", challenges, err)
}
