package mcp

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/whycontext-mcp/internal/archaeology"
	"github.com/dshills/whycontext-mcp/internal/history"
	"github.com/dshills/whycontext-mcp/pkg/types"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".git"), 0o755))

	commits := []types.Commit{
		{
			SHA:          "a1b2c3d4e5f60718293a4b5c6d7e8f9012345678",
			Author:       "Alice",
			Date:         time.Date(2024, 2, 1, 10, 0, 0, 0, time.UTC),
			Message:      "Switch auth to JWT tokens for stateless sessions",
			FilesChanged: []string{"src/auth.py"},
		},
		{
			SHA:          "b2c3d4e5f60718293a4b5c6d7e8f901234567890",
			Author:       "Bob",
			Date:         time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC),
			Message:      "Add README",
			FilesChanged: []string{"README.md"},
		},
	}

	p, err := archaeology.New(dir,
		archaeology.WithMiner(history.Static{Commits: commits}),
		archaeology.WithQueryTimeout(10*time.Second),
		archaeology.WithSemantic(false),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })

	s, err := NewServer(p, nil)
	require.NoError(t, err)
	return s
}

func callRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func decodeJSON(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(s), &out))
	return out
}

func TestNewServer(t *testing.T) {
	t.Run("nil provider is rejected", func(t *testing.T) {
		_, err := NewServer(nil, nil)
		assert.Error(t, err)
	})

	t.Run("server has all required components", func(t *testing.T) {
		s := newTestServer(t)
		assert.NotNil(t, s.mcp)
		assert.NotNil(t, s.provider)
		assert.NotNil(t, s.logger)
	})
}

func TestToolDefinitions(t *testing.T) {
	tool := getContextTool()
	assert.Equal(t, ToolGetContext, tool.Name)
	assert.ElementsMatch(t, []string{"file_path", "question"}, tool.InputSchema.Required)
	assert.Contains(t, tool.InputSchema.Properties, "style")

	for _, tool := range []mcp.Tool{getCacheStatsTool(), clearCacheTool(), getStatusTool()} {
		assert.Empty(t, tool.InputSchema.Required, tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type, tool.Name)
	}
}

func TestHandleGetContext(t *testing.T) {
	ctx := context.Background()

	t.Run("markdown by default", func(t *testing.T) {
		s := newTestServer(t)
		res, err := s.handleGetContext(ctx, callRequest(ToolGetContext, map[string]interface{}{
			"file_path": "src/auth.py",
			"question":  "Why JWT tokens?",
		}))
		require.NoError(t, err)

		out := resultText(t, res)
		assert.Contains(t, out, "# Archaeological Context: src/auth.py")
		assert.Contains(t, out, "a1b2c3d4")
		assert.Contains(t, out, "Alice")
	})

	t.Run("json style", func(t *testing.T) {
		s := newTestServer(t)
		res, err := s.handleGetContext(ctx, callRequest(ToolGetContext, map[string]interface{}{
			"file_path": "src/auth.py",
			"question":  "Why JWT tokens?",
			"style":     "json",
		}))
		require.NoError(t, err)

		body := decodeJSON(t, resultText(t, res))
		assert.Equal(t, "src/auth.py", body["file_path"])
		assert.Equal(t, false, body["cached"])
		assert.Greater(t, body["confidence"].(float64), 0.0)
	})

	t.Run("second call is served from cache", func(t *testing.T) {
		s := newTestServer(t)
		req := callRequest(ToolGetContext, map[string]interface{}{
			"file_path": "src/auth.py",
			"question":  "Why JWT tokens?",
			"style":     "json",
		})
		_, err := s.handleGetContext(ctx, req)
		require.NoError(t, err)
		res, err := s.handleGetContext(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, true, decodeJSON(t, resultText(t, res))["cached"])
	})

	tests := []struct {
		name string
		args map[string]interface{}
		code int
	}{
		{name: "missing file_path", args: map[string]interface{}{"question": "why?"}, code: ErrorCodeInvalidParams},
		{name: "blank file_path", args: map[string]interface{}{"file_path": "  ", "question": "why?"}, code: ErrorCodeInvalidParams},
		{name: "missing question", args: map[string]interface{}{"file_path": "a.go"}, code: ErrorCodeEmptyQuestion},
		{name: "non-string question", args: map[string]interface{}{"file_path": "a.go", "question": 42}, code: ErrorCodeEmptyQuestion},
		{name: "unknown style", args: map[string]interface{}{"file_path": "a.go", "question": "why?", "style": "html"}, code: ErrorCodeInvalidParams},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			_, err := s.handleGetContext(ctx, callRequest(ToolGetContext, tt.args))
			require.Error(t, err)

			var mcpErr *MCPError
			require.ErrorAs(t, err, &mcpErr)
			assert.Equal(t, tt.code, mcpErr.Code)
		})
	}

	t.Run("arguments must be an object", func(t *testing.T) {
		s := newTestServer(t)
		var req mcp.CallToolRequest
		req.Params.Arguments = "not a map"
		_, err := s.handleGetContext(ctx, req)
		var mcpErr *MCPError
		require.ErrorAs(t, err, &mcpErr)
		assert.Equal(t, ErrorCodeInvalidParams, mcpErr.Code)
	})
}

func TestHandleCacheTools(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	req := callRequest(ToolGetContext, map[string]interface{}{"file_path": "src/auth.py", "question": "Why JWT?"})
	_, err := s.handleGetContext(ctx, req)
	require.NoError(t, err)
	_, err = s.handleGetContext(ctx, req)
	require.NoError(t, err)

	res, err := s.handleGetCacheStats(ctx, callRequest(ToolGetCacheStats, nil))
	require.NoError(t, err)
	stats := decodeJSON(t, resultText(t, res))
	assert.EqualValues(t, 1, stats["hits"])
	assert.EqualValues(t, 1, stats["misses"])
	assert.EqualValues(t, 2, stats["total_queries"])
	assert.EqualValues(t, 1, stats["cache_size"])
	assert.InDelta(t, 0.5, stats["hit_rate"], 1e-9)
	assert.EqualValues(t, 1, stats["l1_hits"])
	assert.EqualValues(t, 0, stats["l2_hits"])
	assert.InDelta(t, 0.5, stats["combined_hit_rate"], 1e-9)
	assert.Equal(t, false, stats["semantic_cache_enabled"])
	assert.NotContains(t, stats, "semantic")

	res, err = s.handleClearCache(ctx, callRequest(ToolClearCache, nil))
	require.NoError(t, err)
	cleared := decodeJSON(t, resultText(t, res))
	assert.Equal(t, true, cleared["cleared"])
	after := cleared["stats"].(map[string]interface{})
	assert.EqualValues(t, 0, after["cache_size"])
	assert.EqualValues(t, 2, after["total_queries"], "lifetime counters survive a clear")
}

func TestHandleGetStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestServer(t)

	res, err := s.handleGetStatus(ctx, callRequest(ToolGetStatus, nil))
	require.NoError(t, err)
	before := decodeJSON(t, resultText(t, res))
	assert.Equal(t, "uninitialized", before["state"])
	assert.Equal(t, false, before["initialized"])

	_, err = s.handleGetContext(ctx, callRequest(ToolGetContext, map[string]interface{}{
		"file_path": "src/auth.py", "question": "Why JWT?",
	}))
	require.NoError(t, err)

	res, err = s.handleGetStatus(ctx, callRequest(ToolGetStatus, nil))
	require.NoError(t, err)
	after := decodeJSON(t, resultText(t, res))
	assert.Equal(t, "initialized", after["state"])
	assert.EqualValues(t, 2, after["total_commits"])
	caps := after["capabilities"].(map[string]interface{})
	assert.Equal(t, false, caps["semantic_enabled"])
	assert.Equal(t, false, caps["semantic_cache_enabled"])
	assert.NotContains(t, after, "init_error")
	assert.NotContains(t, after, "semantic_cache")
	cacheStats := after["cache"].(map[string]interface{})
	assert.Contains(t, cacheStats, "l1_hit_rate")
}
