// Package calibrate measures distribution shift between an old and new
// model and re-anchors historical reward data to the new model's outputs.
package calibrate

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/normanking/revoice/internal/judge"
	"github.com/normanking/revoice/internal/llm"
	"github.com/normanking/revoice/internal/logging"
	"github.com/normanking/revoice/internal/scoring"
	"github.com/normanking/revoice/pkg/types"
)

const (
	// maxShiftSamples bounds how many prompts the shift probe replays.
	maxShiftSamples = 10

	// minValidPairs is the floor below which the probe refuses to judge
	// and conservatively assumes calibration is needed.
	minValidPairs = 3

	// judgeExcerptChars truncates responses shown to the judge.
	judgeExcerptChars = 300
)

// ShiftAssessment is the outcome of a distribution-shift probe.
type ShiftAssessment struct {
	Needed     bool    `json:"calibration_needed"`
	ShiftScore float64 `json:"shift_score"`
	Reasoning  string  `json:"reasoning"`
	ValidPairs int     `json:"valid_pairs"`
}

// ShiftAssessor replays historical prompts against both models and asks a
// judge how far the response distributions have drifted.
type ShiftAssessor struct {
	oldProvider llm.Provider
	oldModel    string
	newProvider llm.Provider
	newModel    string
	judge       *judge.Judge
	logger      *logging.Logger
}

// NewShiftAssessor wires the two generation endpoints and the judge.
func NewShiftAssessor(oldProvider llm.Provider, oldModel string, newProvider llm.Provider, newModel string, j *judge.Judge) *ShiftAssessor {
	return &ShiftAssessor{
		oldProvider: oldProvider,
		oldModel:    oldModel,
		newProvider: newProvider,
		newModel:    newModel,
		judge:       j,
		logger:      logging.Global().WithComponent("calibrate"),
	}
}

type responsePair struct {
	prompt string
	oldOut string
	newOut string
}

// Assess probes up to maxShiftSamples prompts. Both models answer each
// prompt concurrently, but prompts proceed one at a time to keep load on
// local backends bounded. When the assessor cannot gather enough evidence
// it errs toward calibration rather than silently trusting stale rewards.
func (s *ShiftAssessor) Assess(ctx context.Context, prompts []string) (*ShiftAssessment, error) {
	if len(prompts) > maxShiftSamples {
		prompts = prompts[:maxShiftSamples]
	}

	var pairs []responsePair
	for _, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pair, ok := s.generatePair(ctx, prompt)
		if ok {
			pairs = append(pairs, pair)
		}
	}

	if len(pairs) < minValidPairs {
		s.logger.Warn("Only %d valid response pairs (need %d), assuming calibration needed", len(pairs), minValidPairs)
		return &ShiftAssessment{
			Needed:     true,
			ShiftScore: 0.5,
			Reasoning:  fmt.Sprintf("insufficient evidence: only %d valid response pairs", len(pairs)),
			ValidPairs: len(pairs),
		}, nil
	}

	assessment, err := s.judgeShift(ctx, pairs)
	if err != nil {
		s.logger.Warn("Shift judge unparseable, assuming mild calibration needed: %v", err)
		return &ShiftAssessment{
			Needed:     true,
			ShiftScore: 0.3,
			Reasoning:  "judge response unparseable, defaulting to mild shift",
			ValidPairs: len(pairs),
		}, nil
	}

	assessment.ValidPairs = len(pairs)
	s.logger.Info("Shift assessment: needed=%v score=%.2f over %d pairs", assessment.Needed, assessment.ShiftScore, len(pairs))
	return assessment, nil
}

// generatePair runs both models on one prompt concurrently. Either side
// failing invalidates the pair.
func (s *ShiftAssessor) generatePair(ctx context.Context, prompt string) (responsePair, bool) {
	var (
		wg             sync.WaitGroup
		oldOut, newOut string
		oldErr, newErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		oldOut, oldErr = s.generate(ctx, s.oldProvider, s.oldModel, prompt)
	}()
	go func() {
		defer wg.Done()
		newOut, newErr = s.generate(ctx, s.newProvider, s.newModel, prompt)
	}()
	wg.Wait()

	if oldErr != nil || newErr != nil {
		s.logger.Debug("Dropping shift pair for %q (old err: %v, new err: %v)", excerpt(prompt, 60), oldErr, newErr)
		return responsePair{}, false
	}
	return responsePair{prompt: prompt, oldOut: oldOut, newOut: newOut}, true
}

func (s *ShiftAssessor) generate(ctx context.Context, p llm.Provider, model, prompt string) (string, error) {
	resp, err := p.Chat(ctx, &llm.ChatRequest{
		Model:       model,
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		Temperature: 0.7,
		MaxTokens:   512,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (s *ShiftAssessor) judgeShift(ctx context.Context, pairs []responsePair) (*ShiftAssessment, error) {
	var sb strings.Builder
	sb.WriteString("Compare response pairs from an old and a new language model answering the same prompts.\n")
	sb.WriteString("Estimate how much the response distribution has shifted in style, length, and content.\n\n")
	for i, p := range pairs {
		fmt.Fprintf(&sb, "--- Pair %d ---\nPrompt: %s\nOld: %s\nNew: %s\n\n",
			i+1, excerpt(p.prompt, judgeExcerptChars), excerpt(p.oldOut, judgeExcerptChars), excerpt(p.newOut, judgeExcerptChars))
	}
	sb.WriteString(`Reply with JSON only: {"calibration_needed": bool, "shift_score": float 0-1, "reasoning": "one sentence"}`)

	var out ShiftAssessment
	if err := s.judge.AskJSON(ctx, "You assess distribution shift between language models.", sb.String(), &out); err != nil {
		return nil, err
	}
	out.ShiftScore = scoring.Clamp(out.ShiftScore, 0, 1)
	return &out, nil
}

func excerpt(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// SamplePrompts takes up to n unique prompts from reward data, preserving
// first-seen order.
func SamplePrompts(points []types.RewardDataPoint, n int) []string {
	seen := make(map[string]struct{}, n)
	var out []string
	for _, p := range points {
		if _, ok := seen[p.Prompt]; ok {
			continue
		}
		seen[p.Prompt] = struct{}{}
		out = append(out, p.Prompt)
		if len(out) >= n {
			break
		}
	}
	return out
}
