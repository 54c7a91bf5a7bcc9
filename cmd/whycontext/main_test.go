package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/whycontext-mcp/internal/render"
	"github.com/dshills/whycontext-mcp/pkg/types"
)

func resetFlags(t *testing.T) {
	t.Helper()
	t.Cleanup(func() {
		repoFlag, configFile, logLevelFlag, logFormatFlag = "", "", "", ""
		queryStyle, queryShowStats = render.StyleMarkdown, false
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
	})
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("WHYCONTEXT_TEST_LOADED=from-file\nWHYCONTEXT_TEST_KEPT=from-file\n"), 0o600))

	t.Setenv("WHYCONTEXT_TEST_LOADED", "")
	require.NoError(t, os.Unsetenv("WHYCONTEXT_TEST_LOADED"))
	t.Setenv("WHYCONTEXT_TEST_KEPT", "from-env")

	require.NoError(t, loadDotEnv(path, path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "from-file", os.Getenv("WHYCONTEXT_TEST_LOADED"))
	assert.Equal(t, "from-env", os.Getenv("WHYCONTEXT_TEST_KEPT"), "existing variables win")
}

func TestLoadConfig_FileAndFlags(t *testing.T) {
	resetFlags(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "whycontext.yaml"),
		[]byte("cache_size: 42\nlog:\n  level: debug\n"), 0o600))

	repoFlag = dir
	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, dir, cfg.RepoPath)
	assert.Equal(t, 42, cfg.CacheSize)
	assert.Equal(t, "debug", cfg.Log.Level)

	logLevelFlag = "warn"
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	resetFlags(t)
	repoFlag = t.TempDir()
	configFile = filepath.Join(repoFlag, "nope.yaml")

	_, err := loadConfig()
	assert.Error(t, err)
}

func TestNewApp_NotARepository(t *testing.T) {
	resetFlags(t)
	repoFlag = t.TempDir()

	_, err := newApp(t.Context())
	require.Error(t, err)
	assert.True(t, types.IsKind(err, types.KindConfiguration))
}

func TestQueryCommand_UnknownStyle(t *testing.T) {
	resetFlags(t)
	rootCmd.SetArgs([]string{"query", "--style", "html", "auth.py", "why", "jwt"})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown style")
}

func TestQueryCommand_RequiresQuestion(t *testing.T) {
	resetFlags(t)
	rootCmd.SetArgs([]string{"query", "auth.py"})
	assert.Error(t, rootCmd.Execute())
}

func TestVersionCommand(t *testing.T) {
	resetFlags(t)
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs([]string{"version"})

	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, buf.String(), "Version: dev")
	assert.Contains(t, buf.String(), "SQLite Driver:")
}
