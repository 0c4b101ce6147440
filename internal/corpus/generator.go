package corpus

import (
	"context"
	"fmt"
	"strings"

	"github.com/normanking/revoice/internal/llm"
	"github.com/normanking/revoice/internal/logging"
	"github.com/normanking/revoice/internal/profile"
	"github.com/normanking/revoice/pkg/types"
)

// Generator expands the base corpus with profile-targeted prompts produced
// by an LLM. Generation is best-effort: a category whose call fails is
// skipped, never fatal.
type Generator struct {
	provider llm.Provider
	model    string
	logger   *logging.Logger
}

// NewGenerator creates a prompt generator backed by the given provider.
func NewGenerator(provider llm.Provider, model string) *Generator {
	return &Generator{
		provider: provider,
		model:    model,
		logger:   logging.Global().WithComponent("corpus"),
	}
}

// Generate fills a corpus up to target prompts: the base corpus first, then
// generated prompts distributed across categories for the shortfall. The
// union is truncated to target. A nil profile still generates, without voice
// targeting.
func (g *Generator) Generate(ctx context.Context, p *profile.Profile, target int) []types.CorpusPrompt {
	prompts := BasePrompts()
	if target <= 0 {
		return prompts
	}
	if len(prompts) >= target {
		return prompts[:target]
	}

	needed := target - len(prompts)
	categories := types.AllCategories()
	perCategory := needed / len(categories)
	if perCategory < 1 {
		perCategory = 1
	}

	generated := 0
	for _, cat := range categories {
		if generated >= needed {
			break
		}
		n := perCategory
		if generated+n > needed {
			n = needed - generated
		}

		batch, err := g.generateForCategory(ctx, p, cat, n)
		if err != nil {
			g.logger.Warn("Prompt generation for category %s failed, skipping: %v", cat, err)
			continue
		}
		prompts = append(prompts, batch...)
		generated += len(batch)
	}

	if len(prompts) > target {
		prompts = prompts[:target]
	}
	g.logger.Info("Corpus ready: %d base + %d generated prompts", len(BasePrompts()), generated)
	return prompts
}

func (g *Generator) generateForCategory(ctx context.Context, p *profile.Profile, cat types.PromptCategory, n int) ([]types.CorpusPrompt, error) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Generate %d conversational prompts in the %q category, one per line.\n", n, cat)
	sb.WriteString("Write them as a real person would ask them. No numbering, no bullets, no commentary.\n")
	if p != nil {
		sb.WriteString("\nThe prompts will probe the voice of a persona described as:\n")
		if summary := p.DispositionSummary(); summary != "" {
			sb.WriteString(summary)
		}
		if vocab := p.VocabularySummary(); vocab != "" {
			fmt.Fprintf(&sb, "Characteristic vocabulary: %s\n", vocab)
		}
	}

	resp, err := g.provider.Chat(ctx, &llm.ChatRequest{
		Model:       g.model,
		Messages:    []llm.Message{{Role: "user", Content: sb.String()}},
		Temperature: 0.9,
		MaxTokens:   1024,
	})
	if err != nil {
		return nil, err
	}

	lines := ParsePromptLines(resp.Content)
	if len(lines) > n {
		lines = lines[:n]
	}

	out := make([]types.CorpusPrompt, 0, len(lines))
	for _, line := range lines {
		out = append(out, types.CorpusPrompt{
			Text:       line,
			Category:   cat,
			Difficulty: "medium",
		})
	}
	return out, nil
}

// ParsePromptLines splits model output into prompt lines, stripping list
// numbering, bullets, and surrounding quotes. Blank lines are dropped.
func ParsePromptLines(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = stripListPrefix(line)
		line = strings.Trim(line, `"`)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}

// stripListPrefix removes leading "1.", "2)", "-", "*" style markers.
func stripListPrefix(line string) string {
	line = strings.TrimLeft(line, "-*• \t")

	i := 0
	for i < len(line) && line[i] >= '0' && line[i] <= '9' {
		i++
	}
	if i > 0 && i < len(line) && (line[i] == '.' || line[i] == ')') {
		return strings.TrimSpace(line[i+1:])
	}
	return strings.TrimSpace(line)
}
