package calibrate

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/normanking/revoice/internal/judge"
	"github.com/normanking/revoice/internal/llm"
	"github.com/normanking/revoice/internal/logging"
	"github.com/normanking/revoice/pkg/types"
)

const (
	// maxAssessmentSample bounds phase-1 shift probing.
	maxAssessmentSample = 20

	// maxDirectTransfer bounds how many strong-signal historical points
	// carry over without regeneration.
	maxDirectTransfer = 50

	// directTransferThreshold is the |reward| above which a historical
	// judgment is strong enough to transfer without re-anchoring.
	directTransferThreshold = 0.7
)

// CalibrationProgressFunc reports calibration progress per phase.
type CalibrationProgressFunc func(phase string, completed, total int)

// CalibrationResult bundles the assessment and the re-anchored reward set.
type CalibrationResult struct {
	Assessment *ShiftAssessment        `json:"assessment"`
	Rewards    []types.CalibratedReward `json:"rewards"`
}

// RewardCalibrator re-anchors historical reward data against a new model.
// Phase 1 decides whether calibration is needed at all; phase 2 regenerates
// responses with the new model and predicts rewards for them, carrying the
// strongest historical judgments across unchanged.
type RewardCalibrator struct {
	assessor    *ShiftAssessor
	newProvider llm.Provider
	newModel    string
	judge       *judge.Judge
	logger      *logging.Logger
}

// NewRewardCalibrator wires the assessor, the new model endpoint, and the
// reward-prediction judge.
func NewRewardCalibrator(assessor *ShiftAssessor, newProvider llm.Provider, newModel string, j *judge.Judge) *RewardCalibrator {
	return &RewardCalibrator{
		assessor:    assessor,
		newProvider: newProvider,
		newModel:    newModel,
		judge:       j,
		logger:      logging.Global().WithComponent("calibrate"),
	}
}

// Calibrate runs the full two-phase pipeline. When phase 1 finds no shift,
// every historical point passes through unchanged as a direct transfer.
func (c *RewardCalibrator) Calibrate(ctx context.Context, points []types.RewardDataPoint, progress CalibrationProgressFunc) (*CalibrationResult, error) {
	if len(points) == 0 {
		return &CalibrationResult{
			Assessment: &ShiftAssessment{Needed: false, Reasoning: "no historical reward data"},
		}, nil
	}

	report := func(phase string, completed, total int) {
		if progress != nil {
			progress(phase, completed, total)
		}
	}

	report("assessing", 0, 1)
	assessment, err := c.assessor.Assess(ctx, SamplePrompts(points, maxAssessmentSample))
	if err != nil {
		return nil, fmt.Errorf("assess distribution shift: %w", err)
	}
	report("assessing", 1, 1)

	if !assessment.Needed {
		c.logger.Info("No distribution shift detected, transferring %d reward points directly", len(points))
		rewards := make([]types.CalibratedReward, 0, len(points))
		for _, p := range points {
			rewards = append(rewards, types.CalibratedReward{
				Prompt:          p.Prompt,
				Response:        p.Response,
				PredictedReward: p.Reward,
				Source:          types.SourceDirectTransfer,
			})
		}
		return &CalibrationResult{Assessment: assessment, Rewards: rewards}, nil
	}

	rewards, err := c.regenerate(ctx, points, report)
	if err != nil {
		return nil, err
	}
	return &CalibrationResult{Assessment: assessment, Rewards: rewards}, nil
}

// regenerate is phase 2: one new-model response plus one reward prediction
// per unique historical prompt, then direct transfer of the strongest
// historical judgments without any model call.
func (c *RewardCalibrator) regenerate(ctx context.Context, points []types.RewardDataPoint, report CalibrationProgressFunc) ([]types.CalibratedReward, error) {
	byPrompt := groupByPrompt(points)
	prompts := uniquePrompts(points)

	rewards := make([]types.CalibratedReward, 0, len(prompts)+maxDirectTransfer)

	for i, prompt := range prompts {
		if err := ctx.Err(); err != nil {
			return rewards, err
		}

		resp, err := c.newProvider.Chat(ctx, &llm.ChatRequest{
			Model:       c.newModel,
			Messages:    []llm.Message{{Role: "user", Content: prompt}},
			Temperature: 0.7,
			MaxTokens:   512,
		})
		if err != nil {
			c.logger.Warn("Regeneration failed for prompt %q, skipping: %v", excerpt(prompt, 60), err)
			report("regenerating", i+1, len(prompts))
			continue
		}

		predicted := c.PredictReward(ctx, prompt, resp.Content, byPrompt[prompt], points)
		rewards = append(rewards, types.CalibratedReward{
			Prompt:          prompt,
			Response:        resp.Content,
			PredictedReward: predicted,
			Source:          types.SourceNewGeneration,
		})
		report("regenerating", i+1, len(prompts))
	}

	transferred := 0
	for _, p := range points {
		if transferred >= maxDirectTransfer {
			break
		}
		if math.Abs(p.Reward) > directTransferThreshold {
			rewards = append(rewards, types.CalibratedReward{
				Prompt:          p.Prompt,
				Response:        p.Response,
				PredictedReward: p.Reward,
				Source:          types.SourceDirectTransfer,
			})
			transferred++
		}
	}
	report("transferring", transferred, transferred)

	c.logger.Info("Calibration produced %d rewards (%d regenerated, %d transferred)", len(rewards), len(rewards)-transferred, transferred)
	return rewards, nil
}

// PredictReward asks the judge to score a new response against the
// historical reward pattern. The prompt's own historical mean anchors the
// estimate. A judge failure or unparseable reply yields 0, and results are
// always clamped to [-1, 1].
func (c *RewardCalibrator) PredictReward(ctx context.Context, prompt, response string, samePromptHistory []types.RewardDataPoint, all []types.RewardDataPoint) float64 {
	var sb strings.Builder
	sb.WriteString("Historical human preference rewards for this persona (reward in [-1, 1]):\n")
	for i, p := range all {
		if i >= 8 {
			break
		}
		fmt.Fprintf(&sb, "- prompt: %s | reward: %.2f\n", excerpt(p.Prompt, 80), p.Reward)
	}

	if len(samePromptHistory) > 0 {
		mean := 0.0
		for _, p := range samePromptHistory {
			mean += p.Reward
		}
		mean /= float64(len(samePromptHistory))
		fmt.Fprintf(&sb, "\nThis exact prompt previously averaged reward %.2f.\n", mean)
	}

	fmt.Fprintf(&sb, "\nPrompt: %s\nNew response: %s\n", excerpt(prompt, judgeExcerptChars), excerpt(response, judgeExcerptChars))
	sb.WriteString("\nPredict the reward a human rater would assign the new response. Reply with a single number in [-1, 1] and nothing else.")

	return c.judge.AskScalar(ctx, "You predict human preference rewards.", sb.String(), 0.0, -1.0, 1.0)
}

func groupByPrompt(points []types.RewardDataPoint) map[string][]types.RewardDataPoint {
	grouped := make(map[string][]types.RewardDataPoint)
	for _, p := range points {
		grouped[p.Prompt] = append(grouped[p.Prompt], p)
	}
	return grouped
}

func uniquePrompts(points []types.RewardDataPoint) []string {
	seen := make(map[string]struct{}, len(points))
	var out []string
	for _, p := range points {
		if _, ok := seen[p.Prompt]; ok {
			continue
		}
		seen[p.Prompt] = struct{}{}
		out = append(out, p.Prompt)
	}
	return out
}
