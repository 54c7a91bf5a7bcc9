package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/dshills/whycontext-mcp/internal/config"
)

var (
	repoFlag      string
	configFile    string
	logLevelFlag  string
	logFormatFlag string
)

var rootCmd = &cobra.Command{
	Use:   "whycontext",
	Short: "WhyContext - historical context for code from git history",
	Long: `WhyContext answers "why" questions about files in a git repository
(why code exists, why a decision was made) from the commit history, with
commit citations and a confidence score. It runs as an MCP server over
stdio or answers one-off queries from the command line.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.SetVersionTemplate("whycontext version {{.Version}}\n")
	rootCmd.PersistentFlags().StringVarP(&repoFlag, "repo", "r", "",
		"Repository root (default: repo_path setting or the working directory)")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"Config file (default: whycontext.yaml in the repository or working directory)")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "",
		"Log level: trace, debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "",
		"Log format: text or json")
}

// loadConfig resolves settings from flags, .env files, the config file and the
// environment. Flags win over everything else.
func loadConfig() (*config.Config, error) {
	searchDir := "."
	if repoFlag != "" {
		searchDir = repoFlag
	}

	if err := loadDotEnv(filepath.Join(searchDir, ".env"), ".env"); err != nil {
		return nil, err
	}

	v := config.New()
	if repoFlag != "" {
		v.Set("repo_path", repoFlag)
	}
	if logLevelFlag != "" {
		v.Set("log.level", logLevelFlag)
	}
	if logFormatFlag != "" {
		v.Set("log.format", logFormatFlag)
	}

	cfg, err := config.Load(v, configFile, searchDir, ".")
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(cfg.RepoPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve repository path: %w", err)
	}
	cfg.RepoPath = abs
	return cfg, nil
}

// loadDotEnv loads each existing .env file once. Variables already set in the
// environment are not overridden.
func loadDotEnv(paths ...string) error {
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true

		if _, err := os.Stat(abs); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("failed to load %s: %w", abs, err)
		}
	}
	return nil
}
