package synth

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"github.com/dshills/whycontext-mcp/pkg/types"
)

// Gemini defaults
const (
	DefaultGeminiModel = "gemini-2.0-flash"
	EnvGeminiAPIKey    = "GEMINI_API_KEY"

	promptCommits = 10
)

const systemPrompt = `You explain why code is the way it is using its version-control history.
Answer only from the commits provided. Refer to commits by their short SHA.
If the commits do not answer the question, say so plainly. Keep the answer under 150 words.`

// TextGenerator produces a completion for a prompt
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// Gemini ranks commits extractively and asks a Gemini model to write the answer
type Gemini struct {
	generator  TextGenerator
	extractive *Extractive
	logger     logrus.FieldLogger
}

// NewGemini creates a Gemini-backed synthesizer. An empty apiKey falls back to GEMINI_API_KEY.
func NewGemini(ctx context.Context, apiKey, model string, logger logrus.FieldLogger) (*Gemini, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvGeminiAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s not set", EnvGeminiAPIKey)
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return NewGeminiWithGenerator(&genaiGenerator{client: client, model: model}, logger), nil
}

// NewGeminiWithGenerator wires an arbitrary generator, mainly for tests
func NewGeminiWithGenerator(gen TextGenerator, logger logrus.FieldLogger) *Gemini {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &Gemini{
		generator:  gen,
		extractive: NewExtractive(),
		logger:     logger.WithField("component", "synth"),
	}
}

// SynthesizeAnswer implements Synthesizer. Model failures fall back to the extractive answer.
func (g *Gemini) SynthesizeAnswer(ctx context.Context, question string, history *types.History, candidates []string) (*types.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	ranked := Rank(question, history, candidates, g.extractive.maxResults())
	answer := g.extractive.answerFrom(question, ranked)
	if len(ranked) == 0 {
		return answer, nil
	}

	text, err := g.generator.Generate(ctx, systemPrompt, buildPrompt(question, ranked))
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		g.logger.WithError(err).Warn("model synthesis failed, using extractive answer")
		return answer, nil
	}
	text = strings.TrimSpace(text)
	if text == "" {
		g.logger.Warn("model returned an empty answer, using extractive answer")
		return answer, nil
	}

	answer.Answer = text
	answer.Reasoning = fmt.Sprintf("Generated from %d relevant commits", len(ranked))
	return answer, nil
}

func buildPrompt(question string, ranked []ScoredCommit) string {
	if len(ranked) > promptCommits {
		ranked = ranked[:promptCommits]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Question: %s\n\nCommits (most relevant first):\n", question)
	for _, sc := range ranked {
		c := sc.Commit
		fmt.Fprintf(&b, "\n[%s] %s, %s\n", shortSHA(c.SHA), c.Author, c.Date.Format("2006-01-02"))
		fmt.Fprintf(&b, "%s\n", strings.TrimSpace(c.Message))
		if len(c.FilesChanged) > 0 {
			files := c.FilesChanged
			if len(files) > 5 {
				files = files[:5]
			}
			fmt.Fprintf(&b, "Files: %s\n", strings.Join(files, ", "))
		}
	}
	return b.String()
}

type genaiGenerator struct {
	client *genai.Client
	model  string
}

func (g *genaiGenerator) Generate(ctx context.Context, system, prompt string) (string, error) {
	contents := []*genai.Content{
		{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: prompt}},
		},
	}
	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
	}

	result, err := g.client.Models.GenerateContent(ctx, g.model, contents, cfg)
	if err != nil {
		return "", err
	}
	if result == nil || len(result.Candidates) == 0 || result.Candidates[0].Content == nil {
		return "", nil
	}

	var b strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		if p != nil && p.Text != "" {
			b.WriteString(p.Text)
		}
	}
	return b.String(), nil
}
