package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/sirupsen/logrus"

	"github.com/dshills/whycontext-mcp/internal/render"
)

// MCP error codes
const (
	ErrorCodeInvalidParams = -32602 // Invalid method parameters
	ErrorCodeInternalError = -32603 // Internal JSON-RPC error
	ErrorCodeEmptyQuestion = -32004 // Question parameter is empty
)

// handleGetContext handles the get_context tool invocation
func (s *Server) handleGetContext(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid arguments", nil)
	}

	filePath, ok := args["file_path"].(string)
	if !ok || strings.TrimSpace(filePath) == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "file_path parameter is required", map[string]interface{}{
			"param":  "file_path",
			"reason": "missing or empty",
		})
	}

	question, ok := args["question"].(string)
	if !ok || strings.TrimSpace(question) == "" {
		return nil, newMCPError(ErrorCodeEmptyQuestion, "question parameter is required and cannot be empty", map[string]interface{}{
			"param":  "question",
			"reason": "missing or empty",
		})
	}

	style := getStringDefault(args, "style", render.StyleMarkdown)
	if !render.ValidStyle(style) {
		return nil, newMCPError(ErrorCodeInvalidParams, "invalid style", map[string]interface{}{
			"param":   "style",
			"value":   style,
			"allowed": render.Styles(),
		})
	}

	result := s.provider.GetContext(ctx, filePath, question)

	out, err := render.Render(result, style)
	if err != nil {
		return nil, newMCPError(ErrorCodeInternalError, "failed to render context", map[string]interface{}{
			"error": err.Error(),
		})
	}

	s.logger.WithFields(logrus.Fields{
		"file":       result.FilePath,
		"confidence": result.Confidence,
		"cached":     result.Cached,
		"style":      style,
	}).Debug("get_context served")

	return mcp.NewToolResultText(out), nil
}

// handleGetCacheStats handles the get_cache_stats tool invocation
func (s *Server) handleGetCacheStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := s.provider.GetTierStats()
	return mcp.NewToolResultText(formatJSON(stats.ToMap())), nil
}

// handleClearCache handles the clear_cache tool invocation
func (s *Server) handleClearCache(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.provider.ClearCache()
	response := map[string]interface{}{
		"cleared": true,
		"stats":   s.provider.GetTierStats().ToMap(),
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	status := s.provider.Status()

	response := map[string]interface{}{
		"repo_path":     status.RepoPath,
		"state":         status.State,
		"initialized":   status.Initialized,
		"total_commits": status.TotalCommits,
		"capabilities":  status.Capabilities,
		"cache":         s.provider.GetTierStats().ToMap(),
	}
	if status.InitError != "" {
		response["init_error"] = status.InitError
	}
	if status.Index != nil {
		response["vector_index"] = status.Index
	}
	if status.Embedding != nil {
		response["embedding"] = status.Embedding
	}
	if status.EmbedCache != nil {
		response["embedding_cache"] = status.EmbedCache
	}
	if status.L2Cache != nil {
		response["semantic_cache"] = status.L2Cache.ToMap()
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// Helper functions

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// the framework encodes returned errors
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// getStringDefault extracts a string parameter with a default value
func getStringDefault(args map[string]interface{}, key string, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}
