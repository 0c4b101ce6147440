// Package types defines the shared data model for the Revoice migration
// pipeline: prompts, distillation pairs, reward data, migration records, and
// the training package hand-off format.
package types

import (
	"time"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PROMPTS AND PAIRS
// ═══════════════════════════════════════════════════════════════════════════════

// PromptCategory classifies corpus prompts. Generation distributes new prompts
// evenly across all eight categories.
type PromptCategory string

const (
	CategoryEmotional     PromptCategory = "emotional"
	CategoryPhilosophical PromptCategory = "philosophical"
	CategoryCreative      PromptCategory = "creative"
	CategoryFactual       PromptCategory = "factual"
	CategoryPersonal      PromptCategory = "personal"
	CategoryEdgeCase      PromptCategory = "edge_case"
	CategorySocial        PromptCategory = "social"
	CategoryHumor         PromptCategory = "humor"
)

// AllCategories lists every prompt category in a fixed order.
func AllCategories() []PromptCategory {
	return []PromptCategory{
		CategoryEmotional,
		CategoryPhilosophical,
		CategoryCreative,
		CategoryFactual,
		CategoryPersonal,
		CategoryEdgeCase,
		CategorySocial,
		CategoryHumor,
	}
}

// CorpusPrompt is a single evaluation/distillation prompt. Immutable.
type CorpusPrompt struct {
	Text        string         `json:"text"`
	Category    PromptCategory `json:"category"`
	Subcategory string         `json:"subcategory,omitempty"`
	Difficulty  string         `json:"difficulty,omitempty"`
}

// DistillationPair is a scored (prompt, response) pair captured from the
// teacher model. Quality and style are independent axes; a pair may be
// high-quality but low style-fidelity. Immutable once scored.
type DistillationPair struct {
	ID       string         `json:"id"`
	Prompt   string         `json:"prompt"`
	Response string         `json:"response"`
	Category PromptCategory `json:"category"`

	// QualityScore is always present, in [0.1, 1.0]
	QualityScore float64 `json:"quality_score"`

	// StyleScore is set only when a personality profile was supplied, in [0.1, 1.0]
	StyleScore *float64 `json:"style_consistency_score,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// REWARD DATA
// ═══════════════════════════════════════════════════════════════════════════════

// RewardDataPoint is a historical human-preference judgment against the old
// model, with reward in [-1, 1]. Read-only input to calibration.
type RewardDataPoint struct {
	Prompt   string  `json:"prompt"`
	Response string  `json:"response"`
	Reward   float64 `json:"reward"`
}

// CalibrationSource identifies how a calibrated reward was produced.
type CalibrationSource string

const (
	// SourceDirectTransfer reuses the original triple verbatim
	SourceDirectTransfer CalibrationSource = "direct_transfer"
	// SourceInterpolated is reserved for blended cases; currently never emitted
	SourceInterpolated CalibrationSource = "interpolated"
	// SourceNewGeneration scores a fresh new-model response via the judge
	SourceNewGeneration CalibrationSource = "new_generation"
)

// CalibratedReward is a reward estimate for the new model's output
// distribution, with predicted reward in [-1, 1].
type CalibratedReward struct {
	Prompt          string            `json:"prompt"`
	Response        string            `json:"response"`
	PredictedReward float64           `json:"predicted_reward"`
	Source          CalibrationSource `json:"calibration_source"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// MIGRATION RECORDS
// ═══════════════════════════════════════════════════════════════════════════════

// MigrationStatus is a state in the migration state machine. Transitions are
// monotonic; the only backward-looking exit is to StatusFailed.
type MigrationStatus string

const (
	StatusPending           MigrationStatus = "pending"
	StatusExtractingProfile MigrationStatus = "extracting_profile"
	StatusDistilling        MigrationStatus = "distilling"
	StatusPreparingData     MigrationStatus = "preparing_data"
	StatusReadyToTrain      MigrationStatus = "ready_to_train"
	StatusTraining          MigrationStatus = "training"
	StatusValidating        MigrationStatus = "validating"
	StatusCompleted         MigrationStatus = "completed"
	StatusFailed            MigrationStatus = "failed"
)

// Terminal reports whether no further transitions are allowed from s.
func (s MigrationStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MigrationConfig holds immutable per-migration parameters. Created once at
// migration initiation; never mutated.
type MigrationConfig struct {
	TargetBaseModel  string  `json:"target_base_model"`
	PairTarget       int     `json:"pair_target"`
	MinQuality       float64 `json:"min_quality"`
	IncludeRaw       bool    `json:"include_raw"`
	IncludeDPO       bool    `json:"include_dpo"`
	IncludeDistilled bool    `json:"include_distilled"`
}

// MigrationRecord is the persistent unit of migration work. Mutated
// exclusively by the orchestrator as phases complete; never deleted.
type MigrationRecord struct {
	ID              string          `json:"id"`
	SubjectModelID  string          `json:"subject_model_id"`
	SourceExportRef string          `json:"source_export_ref,omitempty"`
	TargetBaseModel string          `json:"target_base_model"`
	Config          MigrationConfig `json:"config"`

	Status MigrationStatus `json:"status"`
	// Phase is a free-text sub-state within Status (e.g. "distilling/generating_responses")
	Phase string `json:"phase"`
	// Error holds the failure reason when Status is failed
	Error string `json:"error,omitempty"`

	DistillationPairCount int `json:"distillation_pair_count"`
	TrainingPairCount     int `json:"training_pair_count"`
	DPOPairCount          int `json:"dpo_pair_count"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// ReadinessStats are pre-aggregated counts used by the readiness guard.
type ReadinessStats struct {
	TrainingPairCount    int `json:"training_pair_count"`
	DistilledPairCount   int `json:"distilled_pair_count"`
	DPOPairCount         int `json:"dpo_pair_count"`
	ActiveMigrationCount int `json:"active_migration_count"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// TRAINING DECISION
// ═══════════════════════════════════════════════════════════════════════════════

// DataState is the aggregate snapshot the training assessor decides from.
// CurrentModelID is empty when no fine-tuned model exists yet.
type DataState struct {
	AvailablePairCount     int     `json:"available_pair_count"`
	LastTrainedPairCount   int     `json:"last_trained_pair_count"`
	TrainingPairCount      int     `json:"training_pair_count"`
	FeedbackSinceLastTrain int     `json:"feedback_since_last_train"`
	PositiveFeedbackRate   float64 `json:"positive_feedback_rate"`
	AvgQualityScore        float64 `json:"avg_quality_score"`
	CurrentModelID         string  `json:"current_model_id,omitempty"`
	LastTrainedAt          string  `json:"last_trained_at,omitempty"`
}

// TrainingDecision is the structured output of a training assessment.
type TrainingDecision struct {
	ShouldTrain           bool    `json:"should_train"`
	TrainFromBase         bool    `json:"train_from_base"`
	Reasoning             string  `json:"reasoning"`
	Confidence            float64 `json:"confidence"`
	RecommendedMinQuality float64 `json:"recommended_min_quality"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// TRAINING PACKAGE
// ═══════════════════════════════════════════════════════════════════════════════

// SFTExample is one supervised fine-tuning example: a (system, user,
// assistant) triple serialized as a chat-format JSONL line.
type SFTExample struct {
	System    string `json:"system"`
	User      string `json:"user"`
	Assistant string `json:"assistant"`
}

// DPOExample is one preference example for DPO-style training.
type DPOExample struct {
	Prompt   string `json:"prompt"`
	Chosen   string `json:"chosen"`
	Rejected string `json:"rejected"`
}

// TrainingDataPackage is the packaged, training-eligible data set handed to
// the fine-tuning provider.
type TrainingDataPackage struct {
	MigrationID string       `json:"migration_id"`
	SFT         []SFTExample `json:"sft"`
	DPO         []DPOExample `json:"dpo"`
	PackagedAt  time.Time    `json:"packaged_at"`
}
