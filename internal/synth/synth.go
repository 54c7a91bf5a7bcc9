package synth

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/dshills/whycontext-mcp/internal/embedder"
	"github.com/dshills/whycontext-mcp/pkg/types"
)

// Ranking defaults
const (
	DefaultMaxResults   = 10
	DefaultMaxCitations = 5
	MaxExcerptLength    = 200

	fileBoost      = 0.3
	candidateBoost = 0.2
	agreementBoost = 0.1
	agreementFloor = 0.7
)

// NoResultsAnswer is returned when no commit relates to the question
const NoResultsAnswer = "No relevant information found in repository history."

// ErrEmptyQuestion is returned for blank questions
var ErrEmptyQuestion = errors.New("question cannot be empty")

// Synthesizer answers a question from repository history.
// candidates optionally lists commit SHAs preferred by semantic search.
type Synthesizer interface {
	SynthesizeAnswer(ctx context.Context, question string, history *types.History, candidates []string) (*types.Answer, error)
}

// ScoredCommit is a commit with its relevance to a question
type ScoredCommit struct {
	Commit    types.Commit
	Relevance float64
}

// stopWords never contribute to relevance
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"did": {}, "do": {}, "does": {}, "for": {}, "from": {}, "file": {}, "how": {},
	"in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "was": {}, "we": {}, "were": {}, "what": {}, "when": {},
	"where": {}, "which": {}, "who": {}, "why": {}, "with": {},
}

// Extractive answers by quoting the most relevant commits
type Extractive struct {
	MaxResults   int
	MaxCitations int
}

// NewExtractive creates an extractive synthesizer with default limits
func NewExtractive() *Extractive {
	return &Extractive{MaxResults: DefaultMaxResults, MaxCitations: DefaultMaxCitations}
}

// SynthesizeAnswer implements Synthesizer
func (e *Extractive) SynthesizeAnswer(ctx context.Context, question string, history *types.History, candidates []string) (*types.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ranked := Rank(question, history, candidates, e.maxResults())
	return e.answerFrom(question, ranked), nil
}

func (e *Extractive) answerFrom(question string, ranked []ScoredCommit) *types.Answer {
	if len(ranked) == 0 {
		return &types.Answer{
			Question:  question,
			Answer:    NoResultsAnswer,
			Citations: []types.Citation{},
			Reasoning: "No relevant commits matched the question",
		}
	}

	return &types.Answer{
		Question:   question,
		Answer:     heuristicAnswer(ranked),
		Confidence: Confidence(ranked),
		Citations:  Citations(ranked, e.maxCitations()),
		Reasoning:  fmt.Sprintf("Based on %d relevant commits", len(ranked)),
	}
}

func (e *Extractive) maxResults() int {
	if e.MaxResults <= 0 {
		return DefaultMaxResults
	}
	return e.MaxResults
}

func (e *Extractive) maxCitations() int {
	if e.MaxCitations <= 0 {
		return DefaultMaxCitations
	}
	return e.MaxCitations
}

// Rank scores every commit against the question and returns up to limit
// commits with positive relevance, best first. Ties keep history order.
func Rank(question string, history *types.History, candidates []string, limit int) []ScoredCommit {
	if history == nil || len(history.Commits) == 0 {
		return nil
	}

	terms := queryTerms(question)
	preferred := make(map[string]struct{}, len(candidates))
	for _, sha := range candidates {
		preferred[sha] = struct{}{}
	}

	var ranked []ScoredCommit
	for _, c := range history.Commits {
		score := overlap(terms, c)
		if score == 0 {
			continue
		}
		if mentionsChangedFile(question, c) {
			score += fileBoost
		}
		if _, ok := preferred[c.SHA]; ok {
			score += candidateBoost
		}
		ranked = append(ranked, ScoredCommit{Commit: c, Relevance: types.Clamp01(score)})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Relevance > ranked[j].Relevance
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}

// Confidence averages the top three relevance scores, with a small boost
// when at least three commits agree strongly
func Confidence(ranked []ScoredCommit) float64 {
	if len(ranked) == 0 {
		return 0
	}
	top := ranked
	if len(top) > 3 {
		top = top[:3]
	}
	var sum float64
	for _, sc := range top {
		sum += sc.Relevance
	}
	avg := sum / float64(len(top))
	if len(ranked) >= 3 && avg > agreementFloor {
		avg += agreementBoost
	}
	return types.Clamp01(avg)
}

// Citations converts the best max commits into citations
func Citations(ranked []ScoredCommit, max int) []types.Citation {
	if len(ranked) > max {
		ranked = ranked[:max]
	}
	citations := make([]types.Citation, 0, len(ranked))
	for _, sc := range ranked {
		excerpt := sc.Commit.Excerpt
		if excerpt == "" {
			excerpt = sc.Commit.Message
		}
		citations = append(citations, types.Citation{
			CommitSHA:      sc.Commit.SHA,
			CommitMessage:  sc.Commit.Subject(),
			Author:         sc.Commit.Author,
			CommitDate:     sc.Commit.Date,
			SourceType:     types.SourceCommit,
			RelevanceScore: sc.Relevance,
			Excerpt:        truncate(strings.TrimSpace(excerpt), MaxExcerptLength),
		})
	}
	return citations
}

func heuristicAnswer(ranked []ScoredCommit) string {
	best := ranked[0].Commit

	var b strings.Builder
	b.WriteString("Based on repository history analysis:\n\n")
	fmt.Fprintf(&b, "The most relevant commit is %s by %s:\n", shortSHA(best.SHA), best.Author)
	fmt.Fprintf(&b, "\"%s\"\n", best.Subject())

	if len(ranked) > 1 {
		oldest, newest := best.Date, best.Date
		for _, sc := range ranked[1:] {
			if sc.Commit.Date.Before(oldest) {
				oldest = sc.Commit.Date
			}
			if sc.Commit.Date.After(newest) {
				newest = sc.Commit.Date
			}
		}
		fmt.Fprintf(&b, "\nFound %d related commits spanning from %s to %s.",
			len(ranked), oldest.Format("2006-01-02"), newest.Format("2006-01-02"))
	}
	return strings.TrimRight(b.String(), "\n")
}

func queryTerms(question string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, tok := range embedder.Tokenize(question) {
		if len(tok) < 2 {
			continue
		}
		if _, stop := stopWords[tok]; stop {
			continue
		}
		terms[tok] = struct{}{}
	}
	return terms
}

// overlap is the fraction of question terms found in the commit message or paths
func overlap(terms map[string]struct{}, c types.Commit) float64 {
	if len(terms) == 0 {
		return 0
	}
	words := make(map[string]struct{})
	for _, tok := range embedder.Tokenize(c.Message + " " + strings.Join(c.FilesChanged, " ")) {
		words[tok] = struct{}{}
	}
	matched := 0
	for t := range terms {
		if _, ok := words[t]; ok {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

func mentionsChangedFile(question string, c types.Commit) bool {
	for _, f := range c.FilesChanged {
		if f != "" && strings.Contains(question, f) {
			return true
		}
	}
	return false
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "..."
}
