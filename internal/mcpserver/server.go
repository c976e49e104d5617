// Package mcpserver exposes product search and the shop assistant as MCP tools.
package mcpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/assistant"
	"github.com/spherical-ai/spherical/libs/shop-assistant/internal/observability"
)

// Tool names.
const (
	ToolSearchProductContext = "search_product_context"
	ToolAskShopAssistant     = "ask_shop_assistant"
)

// ContextSearcher returns the rendered product context for a query.
type ContextSearcher interface {
	SearchProductContext(ctx context.Context, query string) (string, error)
}

// Answerer answers a product question.
type Answerer interface {
	Answer(ctx context.Context, query string) (*assistant.Answer, error)
}

// Server wraps an MCP server with the shop tools registered.
type Server struct {
	mcp      *server.MCPServer
	searcher ContextSearcher
	answerer Answerer
	logger   *observability.Logger
}

// New creates a Server. answerer may be nil, in which case ask_shop_assistant
// reports a tool error.
func New(name, version string, searcher ContextSearcher, answerer Answerer, logger *observability.Logger) *Server {
	if logger == nil {
		logger = observability.NewNopLogger()
	}
	s := &Server{
		mcp: server.NewMCPServer(
			name,
			version,
			server.WithToolCapabilities(true),
		),
		searcher: searcher,
		answerer: answerer,
		logger:   logger,
	}
	s.registerTools()
	return s
}

// ServeStdio serves MCP over stdin/stdout until the input closes.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// HTTPHandler serves MCP over stateless streamable HTTP.
func (s *Server) HTTPHandler() http.Handler {
	return server.NewStreamableHTTPServer(s.mcp, server.WithStateLess(true))
}

func (s *Server) registerTools() {
	searchTool := mcp.NewTool(ToolSearchProductContext,
		mcp.WithDescription("Find phones in the shop catalog matching a Vietnamese query and return their details"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Customer question, e.g. \"Điện thoại màu đen RAM 8GB dưới 20 triệu\""),
		),
	)
	s.mcp.AddTool(searchTool, s.handleSearchProductContext)

	askTool := mcp.NewTool(ToolAskShopAssistant,
		mcp.WithDescription("Answer a customer question about phones in Vietnamese using the shop catalog"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Customer question"),
		),
	)
	s.mcp.AddTool(askTool, s.handleAskShopAssistant)
}

func (s *Server) handleSearchProductContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}

	ctx, _ = observability.ContextWithNewTraceID(ctx)
	text, err := s.searcher.SearchProductContext(ctx, query)
	if err != nil {
		s.logger.WithContext(ctx).Error().Err(err).Str("tool", ToolSearchProductContext).Msg("Tool call failed")
		return mcp.NewToolResultError(fmt.Sprintf("search error: %v", err)), nil
	}
	return mcp.NewToolResultText(text), nil
}

var errNoAnswerer = errors.New("answer model not configured")

func (s *Server) handleAskShopAssistant(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query := request.GetString("query", "")
	if query == "" {
		return mcp.NewToolResultError("query is required"), nil
	}
	if s.answerer == nil {
		return mcp.NewToolResultError(errNoAnswerer.Error()), nil
	}

	ctx, _ = observability.ContextWithNewTraceID(ctx)
	answer, err := s.answerer.Answer(ctx, query)
	if err != nil {
		s.logger.WithContext(ctx).Error().Err(err).Str("tool", ToolAskShopAssistant).Msg("Tool call failed")
		return mcp.NewToolResultError(fmt.Sprintf("answer error: %v", err)), nil
	}
	return mcp.NewToolResultText(answer.Text), nil
}
