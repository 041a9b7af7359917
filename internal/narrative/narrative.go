// Package narrative asks an LLM to interpret an analysis result.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/KaramelBytes/statloom/internal/ai"
	"github.com/KaramelBytes/statloom/internal/analysis"
	"github.com/KaramelBytes/statloom/internal/utils"
)

// ErrEmpty is returned when the runtime answers with no text.
var ErrEmpty = errors.New("narrative: model returned no text")

const systemPrompt = `You are a careful statistician. Interpret the analysis results you are given
for a non-specialist reader. Use short Markdown paragraphs and at most one bullet list.
Mention effect sizes and uncertainty, state limitations, and do not invent numbers
that are not in the results.`

// Narrator turns results into prose through an ai.Runtime.
type Narrator struct {
	runtime     ai.Runtime
	model       string
	maxTokens   int
	temperature float64
}

// New returns a Narrator. maxTokens bounds the reply and defaults to 600.
func New(rt ai.Runtime, model string, maxTokens int, temperature float64) *Narrator {
	if maxTokens <= 0 {
		maxTokens = 600
	}
	return &Narrator{runtime: rt, model: model, maxTokens: maxTokens, temperature: temperature}
}

// Model reports the configured model name.
func (n *Narrator) Model() string { return n.model }

// Narrate returns a Markdown interpretation of res.
func (n *Narrator) Narrate(ctx context.Context, res *analysis.Result) (string, error) {
	if n == nil || n.runtime == nil {
		return "", errors.New("narrative: no runtime configured")
	}
	req := ai.GenerateRequest{
		Model: n.model,
		Messages: []ai.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: n.prompt(res)},
		},
		MaxTokens:   n.maxTokens,
		Temperature: n.temperature,
	}
	resp, err := n.runtime.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("narrative: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmpty
	}
	return text, nil
}

// prompt renders res as Markdown, cut to fit the model's context window
// after reserving room for the system prompt and the reply.
func (n *Narrator) prompt(res *analysis.Result) string {
	budget := ai.ContextWindow(n.model) - n.maxTokens - utils.CountTokens(systemPrompt) - 64
	if budget < 256 {
		budget = 256
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Method: %s\n\n", res.Method)
	b.WriteString(res.Markdown())
	return utils.TruncateToTokenLimit(b.String(), budget)
}

// HTML converts a Markdown narrative to an HTML fragment.
func HTML(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	return utils.MarkdownToHTML(md)
}
