package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/dshills/whycontext-mcp/pkg/types"
)

const (
	// DefaultTimeout bounds a single git invocation
	DefaultTimeout = 30 * time.Second

	// DefaultLimit caps how many commits are mined
	DefaultLimit = 10000

	// ExcerptLength caps the commit body excerpt, in runes
	ExcerptLength = 200

	recordSep = "\x1e"
	fieldSep  = "\x1f"

	// record separator first so --name-only output stays inside its record
	logFormat = "--format=" + recordSep + "%H" + fieldSep + "%an" + fieldSep + "%aI" + fieldSep + "%B" + fieldSep
)

// Common errors
var (
	ErrGitUnavailable = errors.New("git executable not found")
	ErrNotRepository  = errors.New("not a git repository")
	ErrTimeout        = errors.New("git command timed out")
)

// Miner produces the commit history of a repository
type Miner interface {
	AnalyzeRepo(ctx context.Context) (*types.History, error)
}

// GitMiner mines history by shelling out to git
type GitMiner struct {
	repoRoot string
	limit    int
	timeout  time.Duration
	logger   logrus.FieldLogger
}

// Option configures a GitMiner
type Option func(*GitMiner)

// WithLimit caps the number of mined commits; 0 or less means no limit
func WithLimit(n int) Option {
	return func(m *GitMiner) { m.limit = n }
}

// WithTimeout bounds each git invocation
func WithTimeout(d time.Duration) Option {
	return func(m *GitMiner) {
		if d > 0 {
			m.timeout = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *GitMiner) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewGitMiner creates a miner for the repository at repoRoot
func NewGitMiner(repoRoot string, opts ...Option) *GitMiner {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	m := &GitMiner{
		repoRoot: repoRoot,
		limit:    DefaultLimit,
		timeout:  DefaultTimeout,
		logger:   discard,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithField("component", "history")
	return m
}

// AnalyzeRepo returns the repository history, newest commit first.
// A repository without commits yields an empty history.
func (m *GitMiner) AnalyzeRepo(ctx context.Context) (*types.History, error) {
	if _, err := exec.LookPath("git"); err != nil {
		return nil, ErrGitUnavailable
	}

	start := time.Now()
	// quotepath off keeps non-ASCII file names verbatim in --name-only output
	args := []string{"-c", "core.quotepath=off", "log", logFormat, "--name-only", "--no-color"}
	if m.limit > 0 {
		args = append(args, fmt.Sprintf("-n%d", m.limit))
	}

	out, err := m.run(ctx, args...)
	if err != nil {
		if isEmptyRepoError(err) {
			m.logger.Debug("repository has no commits")
			return types.NewHistory(nil), nil
		}
		return nil, err
	}

	commits := ParseLog(out)
	m.logger.WithFields(logrus.Fields{
		"commits":     len(commits),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("mined repository history")

	return types.NewHistory(commits), nil
}

func (m *GitMiner) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = m.repoRoot
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	m.logger.WithField("args", args).Debug("executing git command")

	out, err := cmd.Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", fmt.Errorf("%w after %s", ErrTimeout, m.timeout)
		}
		msg := strings.TrimSpace(stderr.String())
		if strings.Contains(msg, "not a git repository") {
			return "", fmt.Errorf("%w: %s", ErrNotRepository, filepath.Clean(m.repoRoot))
		}
		return "", fmt.Errorf("git %s failed: %w: %s", args[0], err, msg)
	}
	return string(out), nil
}

func isEmptyRepoError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "does not have any commits") ||
		strings.Contains(msg, "bad default revision")
}

// ParseLog parses output produced with the miner's git log format
func ParseLog(out string) []types.Commit {
	records := strings.Split(out, recordSep)
	commits := make([]types.Commit, 0, len(records))

	for _, record := range records {
		if strings.TrimSpace(record) == "" {
			continue
		}
		fields := strings.SplitN(record, fieldSep, 5)
		if len(fields) < 4 {
			continue
		}

		date, err := time.Parse(time.RFC3339, strings.TrimSpace(fields[2]))
		if err != nil {
			date = time.Time{}
		}

		message := strings.TrimSpace(fields[3])
		var files []string
		if len(fields) == 5 {
			for _, line := range strings.Split(fields[4], "\n") {
				if line = strings.TrimSpace(line); line != "" {
					files = append(files, filepath.ToSlash(line))
				}
			}
		}

		commits = append(commits, types.Commit{
			SHA:          strings.TrimSpace(fields[0]),
			Author:       fields[1],
			Date:         date,
			Message:      message,
			Excerpt:      excerpt(message),
			FilesChanged: files,
		})
	}

	return commits
}

// excerpt returns the commit body without its subject line, truncated
func excerpt(message string) string {
	_, body, _ := strings.Cut(message, "\n")
	body = strings.TrimSpace(body)
	if utf8.RuneCountInString(body) <= ExcerptLength {
		return body
	}
	runes := []rune(body)
	return string(runes[:ExcerptLength]) + "..."
}

// Static is a Miner over a fixed commit list
type Static struct {
	Commits []types.Commit
	Err     error
}

// AnalyzeRepo returns the fixed history or error
func (s Static) AnalyzeRepo(ctx context.Context) (*types.History, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.Err != nil {
		return nil, s.Err
	}
	commits := make([]types.Commit, len(s.Commits))
	copy(commits, s.Commits)
	return types.NewHistory(commits), nil
}
