// Package mcp implements the Model Context Protocol (MCP) server for WhyContext.
//
// The MCP server exposes four tools to AI coding assistants:
//   - get_context: Answer a historical question about a file from git history
//   - get_cache_stats: Report answer cache counters
//   - clear_cache: Drop cached answers
//   - get_status: Check initialization state and backend health
//
// # Protocol Overview
//
// MCP is a JSON-RPC 2.0 protocol over stdio transport:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// The server is typically started via the serve command:
//
//	whycontext serve --repo /path/to/repo
//
// # Tool: get_context
//
//	Request:
//	{
//	  "name": "get_context",
//	  "arguments": {
//	    "file_path": "src/auth.py",
//	    "question": "Why does this use JWT instead of sessions?",
//	    "style": "markdown"
//	  }
//	}
//
// The response is the rendered context in the requested style (markdown,
// text or json). A provider failure or timeout is not a tool error: the
// answer starts with "Archaeological context unavailable:" and has zero
// confidence. Missing arguments and unknown styles are reported as
// invalid-params errors.
//
// # Tools: get_cache_stats, clear_cache, get_status
//
// These take no arguments and return indented JSON objects. clear_cache
// empties both cache tiers but keeps the lifetime hit and miss counters.
// Cache stats split traffic into l1 (exact match) and l2 (similar question
// about the same file) counters alongside the overall ones; the semantic
// object is present only when the similarity tier is enabled.
//
// # Error Codes
//
//	-32602: Invalid parameters (missing file_path, bad style)
//	-32603: Internal error (rendering failure)
//	-32004: Empty question
package mcp
