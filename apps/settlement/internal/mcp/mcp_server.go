package mcp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
	"settlement/apps/settlement/internal/payment"
)

// MCPServer exposes the settlement service as MCP tools for agents
type MCPServer struct {
	mcpServer *server.MCPServer
	service   *payment.Service
	logger    *zap.Logger
}

type toolHandler = server.ToolHandlerFunc

// NewMCPServer creates a new MCP server using the mcp-go library
func NewMCPServer(service *payment.Service, logger *zap.Logger) *MCPServer {
	mcpServer := server.NewMCPServer(
		"Settlement MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		mcpServer: mcpServer,
		service:   service,
		logger:    logger,
	}

	s.registerTools()

	return s
}

// GetMCPServer returns the underlying MCP server for transport setup
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// HTTPHandler returns a streamable HTTP transport for mounting on the API router.
func (s *MCPServer) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcpServer)
}

// registerTools registers all MCP tools with the server
func (s *MCPServer) registerTools() {
	s.registerPolicyTools()
	s.registerWalletTools()
	s.registerPayoutTools()
	s.registerEscrowTools()
	s.registerMilestoneTools()
	s.registerDisputeTools()
	s.registerWebhookTools()
}

func (s *MCPServer) addTool(tool mcp.Tool, handler toolHandler) {
	s.mcpServer.AddTool(tool, handler)
}

func userIDOption() mcp.ToolOption {
	return mcp.WithString("user_id", mcp.Required(), mcp.Description("ID of the acting user"))
}

// requireUser reads the mandatory user_id argument.
func requireUser(request mcp.CallToolRequest) (string, *mcp.CallToolResult) {
	userID, err := request.RequireString("user_id")
	if err != nil || strings.TrimSpace(userID) == "" {
		return "", mcp.NewToolResultError("user_id is required")
	}
	return strings.TrimSpace(userID), nil
}

// bindArguments decodes the tool arguments into dst using its JSON tags.
func bindArguments(request mcp.CallToolRequest, dst any) *mcp.CallToolResult {
	raw, err := json.Marshal(request.GetArguments())
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}

// jsonResult renders value as indented JSON text.
func jsonResult(value any) (*mcp.CallToolResult, error) {
	body, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode tool result: %w", err)
	}
	return mcp.NewToolResultText(string(body)), nil
}

// errorResult reports domain failures to the agent and hides infrastructure errors.
func (s *MCPServer) errorResult(tool string, err error) (*mcp.CallToolResult, error) {
	if payment.KindOf(err) == "" {
		s.logger.Error("MCP tool failed", zap.String("tool", tool), zap.Error(err))
		return mcp.NewToolResultError("internal error"), nil
	}
	return mcp.NewToolResultError(err.Error()), nil
}

// respond is the common tail of every tool handler.
func (s *MCPServer) respond(tool string, value any, err error) (*mcp.CallToolResult, error) {
	if err != nil {
		return s.errorResult(tool, err)
	}
	return jsonResult(value)
}

func toString(val any) string {
	if str, ok := val.(string); ok {
		return strings.TrimSpace(str)
	}
	return ""
}

func toInt(val any) int {
	switch v := val.(type) {
	case float64:
		return int(v)
	case int:
		return v
	case int64:
		return int(v)
	}
	return 0
}
