package history

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/whycontext-mcp/pkg/types"
)

// initRepo creates a git repository in a temp dir, skipping when git is missing
func initRepo(t *testing.T) string {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	git(t, dir, "init", "-q")
	return dir
}

func git(t *testing.T, dir string, args ...string) {
	t.Helper()
	full := append([]string{
		"-c", "user.name=Test Author",
		"-c", "user.email=test@example.com",
		"-c", "commit.gpgsign=false",
	}, args...)
	cmd := exec.Command("git", full...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, string(out))
}

func commitFile(t *testing.T, dir, name, content, message string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	git(t, dir, "add", name)
	git(t, dir, "commit", "-q", "-m", message)
}

func TestGitMiner_AnalyzeRepo(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "auth.py", "basic", "Add basic auth")
	commitFile(t, dir, "auth.py", "jwt", "Switch to JWT\n\nStateless tokens scale across replicas.")
	commitFile(t, dir, "README.md", "docs", "Document setup")

	h, err := NewGitMiner(dir).AnalyzeRepo(context.Background())
	require.NoError(t, err)

	require.Equal(t, 3, h.TotalCommits)
	newest := h.Commits[0]
	assert.Equal(t, "Document setup", newest.Subject())
	assert.Equal(t, []string{"README.md"}, newest.FilesChanged)

	jwt := h.Commits[1]
	assert.Equal(t, "Switch to JWT", jwt.Subject())
	assert.Equal(t, "Stateless tokens scale across replicas.", jwt.Excerpt)
	assert.Equal(t, "Test Author", jwt.Author)
	assert.True(t, jwt.Touches("auth.py"))
	assert.Len(t, jwt.SHA, 40)
	assert.WithinDuration(t, time.Now(), jwt.Date, time.Hour)

	got, ok := h.CommitBySHA(jwt.SHA)
	require.True(t, ok)
	assert.Equal(t, jwt.Message, got.Message)
}

func TestGitMiner_Limit(t *testing.T) {
	dir := initRepo(t)
	commitFile(t, dir, "a.txt", "1", "one")
	commitFile(t, dir, "a.txt", "2", "two")

	h, err := NewGitMiner(dir, WithLimit(1)).AnalyzeRepo(context.Background())
	require.NoError(t, err)
	require.Len(t, h.Commits, 1)
	assert.Equal(t, "two", h.Commits[0].Message)
}

func TestGitMiner_NonASCIIFileNames(t *testing.T) {
	dir := initRepo(t)
	git(t, dir, "config", "core.quotepath", "true")
	commitFile(t, dir, "données.py", "x", "Add data loader")

	h, err := NewGitMiner(dir).AnalyzeRepo(context.Background())
	require.NoError(t, err)
	require.Len(t, h.Commits, 1)
	assert.Equal(t, []string{"données.py"}, h.Commits[0].FilesChanged)
	assert.True(t, h.Commits[0].Touches("données.py"))
}

func TestGitMiner_EmptyRepository(t *testing.T) {
	dir := initRepo(t)

	h, err := NewGitMiner(dir).AnalyzeRepo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, h.TotalCommits)
}

func TestGitMiner_NotRepository(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not installed")
	}
	dir := t.TempDir()
	t.Setenv("GIT_CEILING_DIRECTORIES", filepath.Dir(dir))

	_, err := NewGitMiner(dir).AnalyzeRepo(context.Background())
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestParseLog(t *testing.T) {
	out := recordSep + "aaa" + fieldSep + "Alice" + fieldSep + "2024-01-02T03:04:05Z" + fieldSep + "Subject\n\nBody line\n" + fieldSep + "\n\nsrc/a.go\nsrc/b.go\n" +
		recordSep + "bbb" + fieldSep + "Bob" + fieldSep + "not-a-date" + fieldSep + "Only subject\n" + fieldSep + "\n"

	commits := ParseLog(out)
	require.Len(t, commits, 2)

	assert.Equal(t, "aaa", commits[0].SHA)
	assert.Equal(t, "Subject\n\nBody line", commits[0].Message)
	assert.Equal(t, "Body line", commits[0].Excerpt)
	assert.Equal(t, []string{"src/a.go", "src/b.go"}, commits[0].FilesChanged)
	assert.Equal(t, 2024, commits[0].Date.Year())

	assert.Equal(t, "Bob", commits[1].Author)
	assert.True(t, commits[1].Date.IsZero())
	assert.Empty(t, commits[1].FilesChanged)
	assert.Empty(t, commits[1].Excerpt)

	assert.Empty(t, ParseLog(""))
}

func TestExcerptTruncates(t *testing.T) {
	long := "subject\n" + strings.Repeat("x", ExcerptLength+10)
	got := excerpt(long)
	assert.Equal(t, strings.Repeat("x", ExcerptLength)+"...", got)
}

func TestStatic(t *testing.T) {
	ctx := context.Background()
	s := Static{Commits: []types.Commit{{SHA: "a"}, {SHA: "b"}}}

	h, err := s.AnalyzeRepo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, h.TotalCommits)

	boom := errors.New("boom")
	_, err = Static{Err: boom}.AnalyzeRepo(ctx)
	assert.ErrorIs(t, err, boom)
}
