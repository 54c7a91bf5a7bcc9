package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/whycontext-mcp/internal/render"
)

// Tool names
const (
	ToolGetContext    = "get_context"
	ToolGetCacheStats = "get_cache_stats"
	ToolClearCache    = "clear_cache"
	ToolGetStatus     = "get_status"
)

// getContextTool returns the tool definition for get_context
func getContextTool() mcp.Tool {
	return mcp.Tool{
		Name: ToolGetContext,
		Description: "Answer a historical question about a file (why code exists, why a decision was made) " +
			"from the repository's git history, with commit citations and a confidence score",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"file_path": map[string]interface{}{
					"type":        "string",
					"description": "File the question is about, relative to the repository root or absolute within it",
				},
				"question": map[string]interface{}{
					"type":        "string",
					"description": "Natural-language question, e.g. 'Why does this use JWT instead of sessions?'",
				},
				"style": map[string]interface{}{
					"type":        "string",
					"description": "Output format",
					"enum":        render.Styles(),
					"default":     render.StyleMarkdown,
				},
			},
			Required: []string{"file_path", "question"},
		},
	}
}

// getCacheStatsTool returns the tool definition for get_cache_stats
func getCacheStatsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolGetCacheStats,
		Description: "Report answer cache hit/miss counters and average query latency",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// clearCacheTool returns the tool definition for clear_cache
func clearCacheTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolClearCache,
		Description: "Drop all cached answers; lifetime counters are kept",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolGetStatus,
		Description: "Report provider initialization state, commit count and semantic backend health",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
