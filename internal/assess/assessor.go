// Package assess decides whether accumulated training data justifies a new
// fine-tuning run. An LLM weighs the data state when available; a
// deterministic rule stands in when it is not, so the decision path never
// blocks on a model.
package assess

import (
	"context"
	"fmt"

	"github.com/normanking/revoice/internal/judge"
	"github.com/normanking/revoice/internal/logging"
	"github.com/normanking/revoice/internal/scoring"
	"github.com/normanking/revoice/pkg/types"
)

const (
	// minPairsForTraining is the hard floor for any training run.
	minPairsForTraining = 50

	// fallbackMinPairs is the floor the deterministic rule requires.
	fallbackMinPairs = 100

	// defaultBaselinePairs substitutes for the last-trained set size when
	// no training has happened yet, so growth ratios stay meaningful.
	defaultBaselinePairs = 100

	// quickGrowthRatio triggers a quick-check train when new pairs exceed
	// this fraction of the last trained set.
	quickGrowthRatio = 0.5

	// fallbackGrowthRatio gates the deterministic fallback: available
	// pairs must exceed this fraction of the last training set.
	fallbackGrowthRatio = 0.3

	// quickFeedbackThreshold triggers a quick-check train on accumulated
	// feedback volume alone.
	quickFeedbackThreshold = 20

	// fromBaseFeedbackThreshold and fromBasePositiveRate gate the
	// restart-from-base recommendation on poor feedback.
	fromBaseFeedbackThreshold = 10
	fromBasePositiveRate      = 0.5
)

// Assessor makes training decisions from a data-state snapshot.
type Assessor struct {
	judge  *judge.Judge
	logger *logging.Logger
}

// New builds an assessor. The judge may be nil, in which case every full
// assessment uses the deterministic rule.
func New(j *judge.Judge) *Assessor {
	return &Assessor{
		judge:  j,
		logger: logging.Global().WithComponent("assess"),
	}
}

// QuickCheck is the cheap, model-free gate. It refuses below the pair
// floor, then trains on either significant data growth or accumulated
// feedback volume.
func (a *Assessor) QuickCheck(state types.DataState) types.TrainingDecision {
	if state.AvailablePairCount < minPairsForTraining {
		return types.TrainingDecision{
			ShouldTrain: false,
			Reasoning:   fmt.Sprintf("only %d pairs available, need at least %d", state.AvailablePairCount, minPairsForTraining),
			Confidence:  1.0,
		}
	}

	baseline := state.LastTrainedPairCount
	if baseline == 0 {
		baseline = defaultBaselinePairs
	}
	newPairs := state.AvailablePairCount - state.LastTrainedPairCount

	if float64(newPairs) > quickGrowthRatio*float64(baseline) {
		return types.TrainingDecision{
			ShouldTrain: true,
			Reasoning:   fmt.Sprintf("%d new pairs exceed %.0f%% of baseline %d", newPairs, quickGrowthRatio*100, baseline),
			Confidence:  0.8,
		}
	}
	if state.FeedbackSinceLastTrain > quickFeedbackThreshold {
		return types.TrainingDecision{
			ShouldTrain: true,
			Reasoning:   fmt.Sprintf("%d feedback signals since last training", state.FeedbackSinceLastTrain),
			Confidence:  0.7,
		}
	}

	return types.TrainingDecision{
		ShouldTrain: false,
		Reasoning:   "insufficient data growth or feedback since last training",
		Confidence:  0.6,
	}
}

// Assess asks the judge model for a nuanced decision over the full data
// state. Any judge failure falls back to FallbackDecision, so a broken or
// absent model endpoint degrades to rule-based behavior instead of an error.
func (a *Assessor) Assess(ctx context.Context, state types.DataState) types.TrainingDecision {
	if a.judge == nil {
		return a.fallbackWithLog(state, "no judge configured")
	}

	userPrompt := fmt.Sprintf(`Decide whether to fine-tune a persona model given this data state:
- available training pairs: %d
- pairs in last training run: %d
- feedback signals since last training: %d
- positive feedback rate: %.2f
- average quality score: %.2f
- current model: %q (empty means none deployed)
- last trained at: %q

Reply with JSON only:
{"should_train": bool, "train_from_base": bool, "reasoning": "one sentence", "confidence": float 0-1, "recommended_min_quality": float 0-1}`,
		state.AvailablePairCount,
		state.LastTrainedPairCount,
		state.FeedbackSinceLastTrain,
		state.PositiveFeedbackRate,
		state.AvgQualityScore,
		state.CurrentModelID,
		state.LastTrainedAt,
	)

	var decision types.TrainingDecision
	if err := a.judge.AskJSON(ctx, "You are a training operations advisor for persona model fine-tuning.", userPrompt, &decision); err != nil {
		return a.fallbackWithLog(state, err.Error())
	}

	decision.Confidence = scoring.Clamp(decision.Confidence, 0, 1)
	decision.RecommendedMinQuality = scoring.Clamp(decision.RecommendedMinQuality, 0, 1)

	a.logger.Info("Training assessment: train=%v fromBase=%v (%.2f confidence)", decision.ShouldTrain, decision.TrainFromBase, decision.Confidence)
	return decision
}

func (a *Assessor) fallbackWithLog(state types.DataState, reason string) types.TrainingDecision {
	a.logger.Warn("Judge assessment unavailable (%s), using deterministic rule", reason)
	return FallbackDecision(state)
}

// FallbackDecision is the deterministic stand-in for the judge. It trains
// only on a substantial corpus with real growth, and restarts from the base
// model when nothing is deployed or feedback has gone negative.
func FallbackDecision(state types.DataState) types.TrainingDecision {
	neverTrained := state.LastTrainedPairCount == 0

	shouldTrain := state.AvailablePairCount >= fallbackMinPairs &&
		(neverTrained || float64(state.AvailablePairCount) > fallbackGrowthRatio*float64(state.LastTrainedPairCount))

	trainFromBase := state.CurrentModelID == "" ||
		(state.PositiveFeedbackRate < fromBasePositiveRate && state.FeedbackSinceLastTrain > fromBaseFeedbackThreshold)

	return types.TrainingDecision{
		ShouldTrain:           shouldTrain,
		TrainFromBase:         trainFromBase,
		Reasoning:             "rule-based decision: judge model unavailable",
		Confidence:            0.5,
		RecommendedMinQuality: 0.6,
	}
}
