package types

import (
	"strings"
	"time"
)

// CommitDocPrefix prefixes commit SHAs to form vector index document ids
const CommitDocPrefix = "commit_"

// Commit is a single mined commit record
type Commit struct {
	SHA          string
	Message      string
	Author       string
	Date         time.Time
	Excerpt      string
	FilesChanged []string
}

// Subject returns the first line of the commit message
func (c Commit) Subject() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(subject)
}

// Touches reports whether the commit changed the given repository-relative path
func (c Commit) Touches(path string) bool {
	for _, f := range c.FilesChanged {
		if f == path {
			return true
		}
	}
	return false
}

// DocID returns the vector index document id for the commit
func (c Commit) DocID() string {
	return CommitDocPrefix + c.SHA
}

// SHAFromDocID extracts a commit SHA from a vector index document id
func SHAFromDocID(docID string) (string, bool) {
	if !strings.HasPrefix(docID, CommitDocPrefix) {
		return "", false
	}
	sha := strings.TrimPrefix(docID, CommitDocPrefix)
	return sha, sha != ""
}

// History is the result of mining a repository, commits ordered newest first
type History struct {
	TotalCommits int
	Commits      []Commit

	bySHA map[string]int
}

// NewHistory builds a History and its SHA lookup table
func NewHistory(commits []Commit) *History {
	h := &History{
		TotalCommits: len(commits),
		Commits:      commits,
		bySHA:        make(map[string]int, len(commits)),
	}
	for i, c := range commits {
		h.bySHA[c.SHA] = i
	}
	return h
}

// CommitBySHA looks up a commit by full SHA
func (h *History) CommitBySHA(sha string) (Commit, bool) {
	if h == nil {
		return Commit{}, false
	}
	if h.bySHA == nil {
		for _, c := range h.Commits {
			if c.SHA == sha {
				return c, true
			}
		}
		return Commit{}, false
	}
	i, ok := h.bySHA[sha]
	if !ok {
		return Commit{}, false
	}
	return h.Commits[i], true
}

// Answer is a synthesizer's response to a question
type Answer struct {
	Question   string
	Answer     string
	Confidence float64
	Citations  []Citation
	Reasoning  string
}
