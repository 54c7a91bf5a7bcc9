package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dshills/whycontext-mcp/internal/mcp"
)

var serveWarm bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Run the Model Context Protocol server on stdin/stdout. Logs go to
stderr because stdout carries the protocol.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWarm, "warm", false,
		"Mine history in the background at startup instead of on the first query")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.logger.WithError(err).Warn("shutdown incomplete")
		}
	}()

	a.logger.WithFields(map[string]interface{}{
		"version":  version,
		"repo":     a.cfg.RepoPath,
		"semantic": a.provider.Capabilities().SemanticEnabled,
	}).Info("whycontext MCP server starting")

	if serveWarm {
		go func() {
			if err := a.provider.Warm(ctx); err != nil {
				a.logger.WithError(err).Warn("background initialization failed")
			}
		}()
	}

	srv, err := mcp.NewServer(a.provider, a.logger)
	if err != nil {
		return err
	}

	err = srv.Serve(ctx)
	if errors.Is(err, context.Canceled) {
		a.logger.Info("received shutdown signal, stopping")
		return nil
	}
	return err
}
