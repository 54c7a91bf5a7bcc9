package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/whycontext-mcp/internal/render"
)

var (
	queryStyle     string
	queryShowStats bool
)

var queryCmd = &cobra.Command{
	Use:   "query <file> <question...>",
	Short: "Answer a historical question about a file",
	Example: `  whycontext query src/auth.py "Why does this use JWT instead of sessions?"
  whycontext query --style json internal/cache/lru.go why is eviction LRU`,
	Args: cobra.MinimumNArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().StringVarP(&queryStyle, "style", "s", render.StyleMarkdown,
		"Output style: "+strings.Join(render.Styles(), ", "))
	queryCmd.Flags().BoolVar(&queryShowStats, "stats", false, "Print cache statistics after the answer")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	// checked before paying for history mining
	if !render.ValidStyle(queryStyle) {
		return fmt.Errorf("unknown style %q (want one of %s)", queryStyle, strings.Join(render.Styles(), ", "))
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	file := args[0]
	question := strings.Join(args[1:], " ")

	result := a.provider.GetContext(ctx, file, question)
	out, err := render.Render(result, queryStyle)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, out)
	if queryShowStats {
		fmt.Fprintln(w)
		fmt.Fprintln(w, render.Stats(a.provider.GetCacheStats()))
	}
	return nil
}
