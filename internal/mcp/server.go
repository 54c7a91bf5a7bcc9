package mcp

import (
	"context"
	"errors"
	"io"

	"github.com/mark3labs/mcp-go/server"
	"github.com/sirupsen/logrus"

	"github.com/dshills/whycontext-mcp/internal/archaeology"
)

const (
	// ServerName is the MCP server name
	ServerName = "whycontext-mcp"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the archaeology provider
type Server struct {
	mcp      *server.MCPServer
	provider *archaeology.Provider
	logger   logrus.FieldLogger
}

// NewServer creates a new MCP server instance over provider
func NewServer(provider *archaeology.Provider, logger logrus.FieldLogger) (*Server, error) {
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}

	s := &Server{
		mcp:      server.NewMCPServer(ServerName, ServerVersion, server.WithToolCapabilities(false)),
		provider: provider,
		logger:   logger.WithField("component", "mcp"),
	}
	s.registerTools()
	return s, nil
}

// registerTools registers all MCP tools with the server
func (s *Server) registerTools() {
	s.mcp.AddTool(getContextTool(), s.handleGetContext)
	s.mcp.AddTool(getCacheStatsTool(), s.handleGetCacheStats)
	s.mcp.AddTool(clearCacheTool(), s.handleClearCache)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
}

// Serve starts the MCP server with stdio transport. It returns when stdin
// closes or ctx is cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.WithField("repo", s.provider.RepoPath()).Info("serving MCP over stdio")

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ServeStdio(s.mcp)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
