// Package distill captures (prompt, response) pairs from a subject model
// and scores them for quality and voice fidelity. This is the data-producing
// heart of a migration: everything downstream trains on what it emits.
package distill

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/normanking/revoice/internal/llm"
	"github.com/normanking/revoice/internal/logging"
	"github.com/normanking/revoice/internal/profile"
	"github.com/normanking/revoice/internal/scoring"
	"github.com/normanking/revoice/pkg/types"
)

// batchSize bounds concurrent subject-model calls per batch.
const batchSize = 5

// minResponseChars is the floor below which a response is treated as a
// failed generation and dropped.
const minResponseChars = 20

// ProgressFunc is invoked after each batch with pairs completed so far and
// the total prompt count.
type ProgressFunc func(completed, total int)

// Distiller drives batched response capture against the subject model.
type Distiller struct {
	provider llm.Provider
	model    string
	logger   *logging.Logger
}

// New creates a distiller that queries the given subject model.
func New(provider llm.Provider, model string) *Distiller {
	return &Distiller{
		provider: provider,
		model:    model,
		logger:   logging.Global().WithComponent("distill"),
	}
}

// Distill sends every corpus prompt to the subject model in batches of
// five, scores each response, and returns the surviving pairs. Individual
// call failures and degenerate responses drop that pair only; order of the
// surviving pairs follows corpus order. The profile is optional; when
// present each pair also carries a style consistency score.
func (d *Distiller) Distill(ctx context.Context, prompts []types.CorpusPrompt, p *profile.Profile, progress ProgressFunc) ([]types.DistillationPair, error) {
	systemPrompt := "Respond authentically in your own voice."
	if p != nil && p.ConstitutionPrompt != "" {
		systemPrompt = p.ConstitutionPrompt
	}

	pairs := make([]types.DistillationPair, 0, len(prompts))

	for start := 0; start < len(prompts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return pairs, err
		}

		end := start + batchSize
		if end > len(prompts) {
			end = len(prompts)
		}
		batch := prompts[start:end]

		// Results slot by index so batch order survives the fan-out.
		results := make([]*types.DistillationPair, len(batch))

		g, gctx := errgroup.WithContext(ctx)
		for i, prompt := range batch {
			i, prompt := i, prompt
			g.Go(func() error {
				pair := d.capture(gctx, prompt, systemPrompt, p)
				results[i] = pair
				return nil
			})
		}
		// Workers never return errors; failed captures are nil slots.
		_ = g.Wait()

		for _, r := range results {
			if r != nil {
				pairs = append(pairs, *r)
			}
		}

		if progress != nil {
			progress(len(pairs), len(prompts))
		}
		d.logger.Debug("Distillation batch %d-%d complete, %d pairs so far", start, end, len(pairs))
	}

	d.logger.Info("Distillation complete: %d pairs from %d prompts", len(pairs), len(prompts))
	return pairs, nil
}

// capture runs one subject-model call and scores the result. Returns nil
// when the call fails or the response is degenerate.
func (d *Distiller) capture(ctx context.Context, prompt types.CorpusPrompt, systemPrompt string, p *profile.Profile) *types.DistillationPair {
	resp, err := d.provider.Chat(ctx, &llm.ChatRequest{
		Model:        d.model,
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: prompt.Text}},
		Temperature:  0.7,
		MaxTokens:    1024,
	})
	if err != nil {
		d.logger.Warn("Subject call failed for prompt %q: %v", truncate(prompt.Text, 60), err)
		return nil
	}

	response := strings.TrimSpace(resp.Content)
	if len(response) < minResponseChars {
		d.logger.Debug("Dropping degenerate response (%d chars) for prompt %q", len(response), truncate(prompt.Text, 60))
		return nil
	}

	pair := &types.DistillationPair{
		ID:           uuid.NewString(),
		Prompt:       prompt.Text,
		Response:     response,
		Category:     prompt.Category,
		QualityScore: scoring.ScoreQuality(response, prompt.Text),
		CreatedAt:    time.Now().UTC(),
	}
	if p != nil {
		style := scoring.ScoreStyle(response, p)
		pair.StyleScore = &style
	}
	return pair
}

// FilterByQuality keeps pairs at or above minQuality. When minStyle is
// positive, pairs carrying a style score must also meet it; pairs without a
// style score are judged on quality alone.
func FilterByQuality(pairs []types.DistillationPair, minQuality, minStyle float64) []types.DistillationPair {
	out := make([]types.DistillationPair, 0, len(pairs))
	for _, pair := range pairs {
		if pair.QualityScore < minQuality {
			continue
		}
		if minStyle > 0 && pair.StyleScore != nil && *pair.StyleScore < minStyle {
			continue
		}
		out = append(out, pair)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
