package migration

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/normanking/revoice/internal/calibrate"
	"github.com/normanking/revoice/internal/config"
	"github.com/normanking/revoice/internal/corpus"
	"github.com/normanking/revoice/internal/data"
	"github.com/normanking/revoice/internal/distill"
	"github.com/normanking/revoice/internal/export"
	"github.com/normanking/revoice/internal/logging"
	"github.com/normanking/revoice/internal/profile"
	"github.com/normanking/revoice/pkg/types"
)

// minReadinessPairs is the hard floor of training pairs before a new
// migration may start.
const minReadinessPairs = 50

// dpoRewardGap is the minimum reward separation between two responses to
// the same prompt before they form a preference pair.
const dpoRewardGap = 0.3

// Trainer submits packaged training data to a fine-tuning provider and
// blocks until the run resolves.
type Trainer interface {
	Train(ctx context.Context, sftPath, baseModel string) (modelID string, err error)
}

// Readiness is the result of the initiation guard. Never an error: an
// unready subject gets a recommendation, not a failure.
type Readiness struct {
	Ready          bool                 `json:"ready"`
	Recommendation string               `json:"recommendation"`
	Stats          types.ReadinessStats `json:"stats"`
}

// Orchestrator sequences the migration pipeline and persists every
// transition. All collaborators are injected; the orchestrator owns no
// global state.
type Orchestrator struct {
	store      *data.Store
	generator  *corpus.Generator
	distiller  *distill.Distiller
	calibrator *calibrate.RewardCalibrator
	trainer    Trainer
	cfg        *config.Config
	logger     *logging.Logger
}

// NewOrchestrator wires the pipeline. The calibrator and trainer are
// optional: without a calibrator the preparing_data phase skips reward
// calibration, and without a trainer the pipeline parks at ready_to_train.
func NewOrchestrator(store *data.Store, generator *corpus.Generator, distiller *distill.Distiller, calibrator *calibrate.RewardCalibrator, trainer Trainer, cfg *config.Config) *Orchestrator {
	return &Orchestrator{
		store:      store,
		generator:  generator,
		distiller:  distiller,
		calibrator: calibrator,
		trainer:    trainer,
		cfg:        cfg,
		logger:     logging.Global().WithComponent("migration"),
	}
}

// CheckReadiness is the guard executed before any migration record exists.
// It refuses below the pair floor and while another migration is active for
// the subject.
func (o *Orchestrator) CheckReadiness(ctx context.Context, subjectModelID string) (*Readiness, error) {
	stats, err := o.store.GetReadinessStats(ctx, subjectModelID)
	if err != nil {
		return nil, fmt.Errorf("readiness stats: %w", err)
	}

	r := &Readiness{Stats: *stats}
	switch {
	case stats.ActiveMigrationCount > 0:
		r.Recommendation = fmt.Sprintf("a migration is already active for %s; wait for it to finish or fail it explicitly", subjectModelID)
	case stats.TrainingPairCount < minReadinessPairs:
		r.Recommendation = fmt.Sprintf("only %d training pairs available, need at least %d; run more distillation first", stats.TrainingPairCount, minReadinessPairs)
	default:
		r.Ready = true
		r.Recommendation = "ready to migrate"
	}
	return r, nil
}

// Start creates a pending migration record after the readiness guard
// passes.
func (o *Orchestrator) Start(ctx context.Context, subjectModelID, sourceExportRef string, mcfg types.MigrationConfig) (*types.MigrationRecord, error) {
	readiness, err := o.CheckReadiness(ctx, subjectModelID)
	if err != nil {
		return nil, err
	}
	if !readiness.Ready {
		return nil, fmt.Errorf("migration not ready: %s", readiness.Recommendation)
	}

	rec := &types.MigrationRecord{
		ID:              uuid.NewString(),
		SubjectModelID:  subjectModelID,
		SourceExportRef: sourceExportRef,
		TargetBaseModel: mcfg.TargetBaseModel,
		Config:          mcfg,
		Status:          types.StatusPending,
		Phase:           "pending/created",
	}
	if err := o.store.CreateMigration(ctx, rec); err != nil {
		return nil, err
	}

	o.logger.Info("Migration %s created for subject %s targeting %s", rec.ID, subjectModelID, mcfg.TargetBaseModel)
	return rec, nil
}

// Run drives a pending migration through every phase. Any phase error
// transitions the record to failed and is returned.
func (o *Orchestrator) Run(ctx context.Context, migrationID string) error {
	rec, err := o.store.GetMigration(ctx, migrationID)
	if err != nil {
		return err
	}
	if rec.Status != types.StatusPending {
		return fmt.Errorf("migration %s is %s, can only run from pending", migrationID, rec.Status)
	}

	if err := o.runPhases(ctx, rec); err != nil {
		o.fail(ctx, rec, err)
		return err
	}
	return nil
}

func (o *Orchestrator) runPhases(ctx context.Context, rec *types.MigrationRecord) error {
	// Profile extraction
	if err := o.transition(ctx, rec, types.StatusExtractingProfile, "extracting_profile/loading_profile"); err != nil {
		return err
	}
	prof := o.loadProfile()

	// Distillation
	if err := o.transition(ctx, rec, types.StatusDistilling, "distilling/generating_prompts"); err != nil {
		return err
	}
	pairs, err := o.distillPhase(ctx, rec, prof)
	if err != nil {
		return err
	}

	// Calibration and packaging
	if err := o.transition(ctx, rec, types.StatusPreparingData, "preparing_data/calibrating_rewards"); err != nil {
		return err
	}
	calibrated, err := o.calibratePhase(ctx, rec)
	if err != nil {
		return err
	}

	o.setPhase(ctx, rec, "preparing_data/packaging")
	pkg := o.buildPackage(rec, prof, pairs, calibrated)

	exportDir := filepath.Join(o.cfg.GetDataDir(), "exports", rec.ID)
	paths, err := export.WritePackage(exportDir, pkg)
	if err != nil {
		return fmt.Errorf("export training data: %w", err)
	}
	o.logger.Info("Migration %s exported %d files to %s", rec.ID, len(paths), exportDir)

	if err := o.store.UpdateMigrationCounts(ctx, rec.ID, rec.DistillationPairCount, len(pkg.SFT), len(pkg.DPO)); err != nil {
		return err
	}
	rec.TrainingPairCount = len(pkg.SFT)
	rec.DPOPairCount = len(pkg.DPO)

	if err := o.transition(ctx, rec, types.StatusReadyToTrain, "ready_to_train/exported"); err != nil {
		return err
	}

	// Without a trainer the pipeline parks here; an operator hands the
	// exported files to the provider and resumes.
	if o.trainer == nil {
		o.logger.Info("Migration %s ready to train, no trainer configured", rec.ID)
		return nil
	}

	return o.trainPhase(ctx, rec, paths[0])
}

func (o *Orchestrator) distillPhase(ctx context.Context, rec *types.MigrationRecord, prof *profile.Profile) ([]types.DistillationPair, error) {
	prompts := o.generator.Generate(ctx, prof, rec.Config.PairTarget)

	o.setPhase(ctx, rec, "distilling/generating_responses")
	pairs, err := o.distiller.Distill(ctx, prompts, prof, func(completed, total int) {
		o.logger.Debug("Migration %s distillation progress %d/%d", rec.ID, completed, total)
	})
	if err != nil {
		return nil, fmt.Errorf("distill: %w", err)
	}
	if len(pairs) == 0 {
		return nil, fmt.Errorf("distillation produced no pairs")
	}

	if err := o.store.InsertDistillationPairs(ctx, rec.ID, pairs); err != nil {
		return nil, err
	}
	rec.DistillationPairCount = len(pairs)
	if err := o.store.UpdateMigrationCounts(ctx, rec.ID, len(pairs), 0, 0); err != nil {
		return nil, err
	}
	return pairs, nil
}

func (o *Orchestrator) calibratePhase(ctx context.Context, rec *types.MigrationRecord) ([]types.CalibratedReward, error) {
	if o.calibrator == nil {
		return nil, nil
	}

	points, err := o.store.ListRewardData(ctx, rec.SubjectModelID)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		o.logger.Info("Migration %s has no historical reward data, skipping calibration", rec.ID)
		return nil, nil
	}

	result, err := o.calibrator.Calibrate(ctx, points, func(phase string, completed, total int) {
		o.logger.Debug("Migration %s calibration %s %d/%d", rec.ID, phase, completed, total)
	})
	if err != nil {
		return nil, fmt.Errorf("calibrate rewards: %w", err)
	}

	if err := o.store.InsertCalibratedRewards(ctx, rec.ID, result.Rewards); err != nil {
		return nil, err
	}
	return result.Rewards, nil
}

func (o *Orchestrator) trainPhase(ctx context.Context, rec *types.MigrationRecord, sftPath string) error {
	if err := o.transition(ctx, rec, types.StatusTraining, "training/submitting_job"); err != nil {
		return err
	}

	modelID, err := o.trainer.Train(ctx, sftPath, rec.TargetBaseModel)
	if err != nil {
		return fmt.Errorf("fine-tuning run: %w", err)
	}

	if err := o.transition(ctx, rec, types.StatusValidating, "validating/recording_run"); err != nil {
		return err
	}
	if err := o.store.RecordTrainingRun(ctx, rec.SubjectModelID, rec.ID, modelID, rec.TrainingPairCount); err != nil {
		return err
	}

	if err := o.transition(ctx, rec, types.StatusCompleted, "completed"); err != nil {
		return err
	}
	o.logger.Info("Migration %s completed, produced model %s", rec.ID, modelID)
	return nil
}

// buildPackage assembles the training data package from quality-filtered
// pairs and preference pairs derived from calibrated rewards.
func (o *Orchestrator) buildPackage(rec *types.MigrationRecord, prof *profile.Profile, pairs []types.DistillationPair, calibrated []types.CalibratedReward) *types.TrainingDataPackage {
	pkg := &types.TrainingDataPackage{
		MigrationID: rec.ID,
		PackagedAt:  time.Now().UTC(),
	}

	systemPrompt := ""
	if prof != nil {
		systemPrompt = prof.ConstitutionPrompt
	}

	if rec.Config.IncludeDistilled {
		kept := distill.FilterByQuality(pairs, rec.Config.MinQuality, 0)
		for _, p := range kept {
			pkg.SFT = append(pkg.SFT, types.SFTExample{
				System:    systemPrompt,
				User:      p.Prompt,
				Assistant: p.Response,
			})
		}
	}

	if rec.Config.IncludeDPO {
		pkg.DPO = BuildPreferencePairs(calibrated)
	}

	return pkg
}

// BuildPreferencePairs derives DPO examples from calibrated rewards: for
// each prompt with responses whose rewards are separated by at least
// dpoRewardGap, the best becomes chosen and the worst rejected.
func BuildPreferencePairs(rewards []types.CalibratedReward) []types.DPOExample {
	byPrompt := make(map[string][]types.CalibratedReward)
	var order []string
	for _, r := range rewards {
		if _, seen := byPrompt[r.Prompt]; !seen {
			order = append(order, r.Prompt)
		}
		byPrompt[r.Prompt] = append(byPrompt[r.Prompt], r)
	}

	var out []types.DPOExample
	for _, prompt := range order {
		group := byPrompt[prompt]
		if len(group) < 2 {
			continue
		}
		sort.SliceStable(group, func(i, j int) bool {
			return group[i].PredictedReward > group[j].PredictedReward
		})
		best, worst := group[0], group[len(group)-1]
		if best.PredictedReward-worst.PredictedReward < dpoRewardGap {
			continue
		}
		out = append(out, types.DPOExample{
			Prompt:   prompt,
			Chosen:   best.Response,
			Rejected: worst.Response,
		})
	}
	return out
}

// transition validates and persists a status change.
func (o *Orchestrator) transition(ctx context.Context, rec *types.MigrationRecord, to types.MigrationStatus, phase string) error {
	if err := ValidateTransition(rec.Status, to); err != nil {
		return err
	}
	if err := o.store.UpdateMigrationStatus(ctx, rec.ID, to, phase, ""); err != nil {
		return err
	}
	rec.Status = to
	rec.Phase = phase
	o.logger.Phase(rec.ID, string(to), phase)
	return nil
}

// setPhase updates the free-text phase without a status change.
func (o *Orchestrator) setPhase(ctx context.Context, rec *types.MigrationRecord, phase string) {
	if err := o.store.UpdateMigrationStatus(ctx, rec.ID, rec.Status, phase, ""); err != nil {
		o.logger.Warn("Failed to persist phase %s for migration %s: %v", phase, rec.ID, err)
		return
	}
	rec.Phase = phase
}

// fail moves the record to failed with the causing error. Uses a fresh
// context so a canceled pipeline context still persists the failure.
// fail records the failure even when the run context was cancelled mid-phase.
func (o *Orchestrator) fail(parent context.Context, rec *types.MigrationRecord, cause error) {
	ctx, cancel := logging.DetachContextWithTimeout(parent, 10*time.Second)
	defer cancel()

	if err := o.store.UpdateMigrationStatus(ctx, rec.ID, types.StatusFailed, rec.Phase, cause.Error()); err != nil {
		o.logger.Error("Failed to mark migration %s failed: %v", rec.ID, err)
		return
	}
	rec.Status = types.StatusFailed
	rec.Error = cause.Error()
	o.logger.Error("Migration %s failed during %s: %v", rec.ID, rec.Phase, cause)
}

// loadProfile reads the configured personality profile. Absence is not an
// error: distillation falls back to an unprofiled run.
func (o *Orchestrator) loadProfile() *profile.Profile {
	path := o.cfg.Migration.ProfilePath
	if path == "" {
		o.logger.Info("No personality profile configured, distilling without style scoring")
		return nil
	}

	prof, err := profile.LoadFromFile(path)
	if err != nil {
		o.logger.Warn("Failed to load profile from %s, continuing without: %v", path, err)
		return nil
	}
	return prof
}

// Status returns a record plus its derived progress fraction.
func (o *Orchestrator) Status(ctx context.Context, migrationID string) (*types.MigrationRecord, float64, error) {
	rec, err := o.store.GetMigration(ctx, migrationID)
	if err != nil {
		return nil, 0, err
	}
	return rec, Progress(rec.Status), nil
}
