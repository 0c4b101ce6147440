// Package judge wraps an LLM provider as a structured judge: it issues a
// scoring prompt and parses the reply into a typed result, falling back to
// a caller-supplied default when the model returns prose instead of the
// requested format.
package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/normanking/revoice/internal/llm"
	"github.com/normanking/revoice/internal/logging"
)

// Judge issues single-turn scoring calls against a provider.
type Judge struct {
	provider llm.Provider
	model    string
	logger   *logging.Logger
}

// New creates a judge bound to a provider and model.
func New(provider llm.Provider, model string) *Judge {
	return &Judge{
		provider: provider,
		model:    model,
		logger:   logging.Global().WithComponent("judge"),
	}
}

// Ask sends a system+user prompt pair and returns the raw reply text.
func (j *Judge) Ask(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	resp, err := j.provider.Chat(ctx, &llm.ChatRequest{
		Model:        j.model,
		SystemPrompt: systemPrompt,
		Messages:     []llm.Message{{Role: "user", Content: userPrompt}},
		Temperature:  0.0,
		MaxTokens:    1024,
	})
	if err != nil {
		return "", fmt.Errorf("judge call: %w", err)
	}
	return resp.Content, nil
}

// AskJSON sends a prompt and unmarshals the reply into out. The reply may
// wrap the JSON in prose or a markdown fence; ExtractJSON recovers it.
func (j *Judge) AskJSON(ctx context.Context, systemPrompt, userPrompt string, out any) error {
	raw, err := j.Ask(ctx, systemPrompt, userPrompt)
	if err != nil {
		return err
	}
	blob := ExtractJSON(raw)
	if blob == "" {
		return fmt.Errorf("judge reply contains no JSON object")
	}
	if err := json.Unmarshal([]byte(blob), out); err != nil {
		return fmt.Errorf("parse judge reply: %w", err)
	}
	return nil
}

// AskScalar sends a prompt expecting a bare number and parses it, clamped
// to [min, max]. A reply that cannot be parsed yields fallback.
func (j *Judge) AskScalar(ctx context.Context, systemPrompt, userPrompt string, fallback, min, max float64) float64 {
	raw, err := j.Ask(ctx, systemPrompt, userPrompt)
	if err != nil {
		j.logger.Warn("Scalar judge call failed, using fallback %.2f: %v", fallback, err)
		return fallback
	}
	return ParseScalar(raw, fallback, min, max)
}

// ExtractJSON returns the first balanced JSON object embedded in text, or
// "" when none exists. Handles markdown code fences and surrounding prose.
func ExtractJSON(text string) string {
	// Strip a code fence if the whole reply is fenced
	if idx := strings.Index(text, "```"); idx >= 0 {
		rest := text[idx+3:]
		rest = strings.TrimPrefix(rest, "json")
		if end := strings.Index(rest, "```"); end >= 0 {
			text = rest[:end]
		}
	}

	start := strings.Index(text, "{")
	if start < 0 {
		return ""
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = inString
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return text[start : i+1]
				}
			}
		}
	}
	return ""
}

// ParseScalar extracts the first parseable float from text and clamps it
// to [min, max]. Returns fallback when no number can be found.
func ParseScalar(text string, fallback, min, max float64) float64 {
	for _, field := range strings.Fields(text) {
		field = strings.Trim(field, ".,;:!?\"'`*()[]")
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			continue
		}
		if v < min {
			return min
		}
		if v > max {
			return max
		}
		return v
	}
	return fallback
}
