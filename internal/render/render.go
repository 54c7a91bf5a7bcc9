// Package render formats archaeological contexts for agents and terminals.
package render

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dshills/whycontext-mcp/pkg/types"
)

// Supported styles
const (
	StyleMarkdown = "markdown"
	StyleText     = "text"
	StyleJSON     = "json"
)

// markdownExcerptLength caps source excerpts in markdown output
const markdownExcerptLength = 100

// Styles lists the supported styles
func Styles() []string {
	return []string{StyleMarkdown, StyleText, StyleJSON}
}

// ValidStyle reports whether style names a supported style
func ValidStyle(style string) bool {
	for _, s := range Styles() {
		if s == style {
			return true
		}
	}
	return false
}

// Render formats c in the named style. An unknown style is an argument error.
func Render(c *types.ArchaeologicalContext, style string) (string, error) {
	if c == nil {
		return "", types.NewError(types.KindArgument, "context cannot be nil", nil)
	}
	switch style {
	case StyleMarkdown:
		return Markdown(c), nil
	case StyleText:
		return Text(c), nil
	case StyleJSON:
		return JSON(c)
	default:
		return "", types.NewError(types.KindArgument,
			fmt.Sprintf("unknown style %q (want one of %s)", style, strings.Join(Styles(), ", ")), nil)
	}
}

// Markdown renders a headed section with the answer, sources and timing
func Markdown(c *types.ArchaeologicalContext) string {
	lines := []string{
		"# Archaeological Context: " + c.FilePath,
		"**Question**: " + c.Question,
		"",
		fmt.Sprintf("## Answer (Confidence: %s)", percent(c.Confidence, 1)),
		c.Answer,
		"",
	}

	if len(c.Sources) > 0 {
		lines = append(lines, "## Sources")
		for i, s := range c.Sources {
			lines = append(lines, fmt.Sprintf("%d. **%s** by %s (%s)", i+1, strings.ToUpper(s.SourceType), s.Author, dateWithAge(s.Date)))
			lines = append(lines, fmt.Sprintf("   - Commit: `%s`", shortSHA(s.CommitSHA)))
			lines = append(lines, fmt.Sprintf("   - Relevance: %s", percent(s.RelevanceScore, 1)))
			if excerpt := strings.TrimSpace(s.Excerpt); excerpt != "" {
				lines = append(lines, "   - "+clip(excerpt, markdownExcerptLength))
			}
			if s.URL != "" {
				lines = append(lines, "   - URL: "+s.URL)
			}
			lines = append(lines, "")
		}
	}

	lines = append(lines, fmt.Sprintf("*Query time: %.0fms | Cached: %t*", c.QueryTimeMs, c.Cached))
	return strings.Join(lines, "\n")
}

// Text renders labeled plain-text lines
func Text(c *types.ArchaeologicalContext) string {
	lines := []string{
		"Context for: " + c.FilePath,
		"Question: " + c.Question,
		"",
		fmt.Sprintf("Answer (Confidence: %s):", percent(c.Confidence, 0)),
		c.Answer,
	}

	if len(c.Sources) > 0 {
		lines = append(lines, "", "Sources:")
		for i, s := range c.Sources {
			lines = append(lines, fmt.Sprintf("%d. %s by %s (%s) - %s",
				i+1, s.CommitMessage, s.Author, formatDate(s.Date), s.SourceType))
		}
	}
	return strings.Join(lines, "\n")
}

type jsonSource struct {
	CommitSHA      string  `json:"commit_sha"`
	Author         string  `json:"author"`
	Date           string  `json:"date"`
	SourceType     string  `json:"source_type"`
	RelevanceScore float64 `json:"relevance_score"`
}

type jsonContext struct {
	FilePath    string       `json:"file_path"`
	Question    string       `json:"question"`
	Answer      string       `json:"answer"`
	Confidence  float64      `json:"confidence"`
	Sources     []jsonSource `json:"sources"`
	Cached      bool         `json:"cached"`
	QueryTimeMs float64      `json:"query_time_ms"`
}

// JSON renders an indented object with the context and its sources
func JSON(c *types.ArchaeologicalContext) (string, error) {
	out := jsonContext{
		FilePath:    c.FilePath,
		Question:    c.Question,
		Answer:      c.Answer,
		Confidence:  c.Confidence,
		Sources:     make([]jsonSource, 0, len(c.Sources)),
		Cached:      c.Cached,
		QueryTimeMs: c.QueryTimeMs,
	}
	for _, s := range c.Sources {
		out.Sources = append(out.Sources, jsonSource{
			CommitSHA:      s.CommitSHA,
			Author:         s.Author,
			Date:           s.Date.Format(time.RFC3339),
			SourceType:     s.SourceType,
			RelevanceScore: s.RelevanceScore,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal context: %w", err)
	}
	return string(data), nil
}

// Stats renders cache statistics as aligned lines
func Stats(s types.CacheStats) string {
	lines := []string{
		fmt.Sprintf("Total queries:  %s", humanize.Comma(int64(s.TotalQueries))),
		fmt.Sprintf("Cache hits:     %s", humanize.Comma(int64(s.Hits))),
		fmt.Sprintf("Cache misses:   %s", humanize.Comma(int64(s.Misses))),
		fmt.Sprintf("Hit rate:       %s", percent(s.HitRate(), 1)),
		fmt.Sprintf("Cache size:     %s / %s", humanize.Comma(int64(s.CacheSize)), humanize.Comma(int64(s.MaxCacheSize))),
		fmt.Sprintf("Avg query time: %sms", humanize.FormatFloat("#,###.##", s.AvgQueryTimeMs)),
	}
	return strings.Join(lines, "\n")
}

func percent(v float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, v*100)
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "unknown date"
	}
	return t.Format("2006-01-02")
}

func dateWithAge(t time.Time) string {
	if t.IsZero() {
		return "unknown date"
	}
	return formatDate(t) + ", " + humanize.Time(t)
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}
