package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/dshills/whycontext-mcp/internal/storage"
	"github.com/dshills/whycontext-mcp/internal/vectorindex"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version and build information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "WhyContext MCP Server\n")
		fmt.Fprintf(w, "Version: %s\n", version)
		fmt.Fprintf(w, "Build Time: %s\n", buildTime)
		fmt.Fprintf(w, "Go: %s\n", runtime.Version())
		fmt.Fprintf(w, "Build Mode: %s\n", storage.BuildMode)
		fmt.Fprintf(w, "SQLite Driver: %s\n", storage.DriverName)
		fmt.Fprintf(w, "Vector Index: %v\n", vectorindex.VectorIndexAvailable)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
