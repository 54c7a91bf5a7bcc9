package main

import (
	"encoding/json"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/dshills/whycontext-mcp/internal/render"
)

var statsFormat string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Mine history and show provider, index and cache status",
	Long: `Initialize the provider (mining history and loading or building the
commit index) and report its status. Cache counters cover this process only;
use the get_cache_stats MCP tool for a running server.`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsFormat, "format", "human", "Output format (json, human)")
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if err := a.provider.Warm(ctx); err != nil {
		a.logger.WithError(err).Warn("initialization failed")
	}
	status := a.provider.Status()
	stats := a.provider.GetTierStats()
	w := cmd.OutOrStdout()

	if statsFormat == "json" {
		out, err := json.MarshalIndent(map[string]interface{}{
			"status": status,
			"cache":  stats.ToMap(),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(w, string(out))
		return nil
	}

	fmt.Fprintf(w, "Repository:     %s\n", status.RepoPath)
	fmt.Fprintf(w, "State:          %s\n", status.State)
	if status.InitError != "" {
		fmt.Fprintf(w, "Init error:     %s\n", status.InitError)
	}
	fmt.Fprintf(w, "Commits:        %s\n", humanize.Comma(int64(status.TotalCommits)))
	fmt.Fprintf(w, "Semantic:       %t\n", status.Capabilities.SemanticEnabled)
	if status.Embedding != nil {
		fmt.Fprintf(w, "Embedding:      %s/%s (dim %d, loaded %t)\n",
			status.Embedding.Provider, status.Embedding.Model, status.Embedding.Dimension, status.Embedding.Loaded)
	}
	if status.Index != nil {
		fmt.Fprintf(w, "Index:          %s commits, %s\n",
			humanize.Comma(int64(status.Index.Active)), humanize.Bytes(uint64(status.Index.MemoryBytes)))
	}
	if status.L2Cache != nil {
		fmt.Fprintf(w, "Similar cache:  %d/%d entries, threshold %.2f\n",
			status.L2Cache.Size, status.L2Cache.MaxSize, status.L2Cache.Threshold)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, render.Stats(stats.Overall))
	return nil
}
