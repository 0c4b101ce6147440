// Package data provides the unified data access layer for migration state,
// distillation pairs, reward data, and training feedback.
package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/normanking/revoice/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MIGRATION RECORDS
// ═══════════════════════════════════════════════════════════════════════════════

// CreateMigration inserts a new migration record. The ID must be unique;
// use UUID for generation.
func (s *Store) CreateMigration(ctx context.Context, rec *types.MigrationRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("migration ID cannot be empty")
	}

	configJSON, err := json.Marshal(rec.Config)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	query := `
		INSERT INTO migration_records (
			id, subject_model_id, source_export_ref, target_base_model, config,
			status, phase, error,
			distillation_pair_count, training_pair_count, dpo_pair_count,
			created_at, updated_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, query,
		rec.ID, rec.SubjectModelID, nullString(rec.SourceExportRef), rec.TargetBaseModel, string(configJSON),
		string(rec.Status), rec.Phase, nullString(rec.Error),
		rec.DistillationPairCount, rec.TrainingPairCount, rec.DPOPairCount,
		now, now, rec.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert migration record: %w", err)
	}

	rec.CreatedAt = now
	rec.UpdatedAt = now
	return nil
}

// GetMigration retrieves a migration record by ID.
func (s *Store) GetMigration(ctx context.Context, id string) (*types.MigrationRecord, error) {
	query := `
		SELECT
			id, subject_model_id, source_export_ref, target_base_model, config,
			status, phase, error,
			distillation_pair_count, training_pair_count, dpo_pair_count,
			created_at, updated_at, completed_at
		FROM migration_records
		WHERE id = ?
	`

	var rec types.MigrationRecord
	var sourceRef, errText sql.NullString
	var status, configJSON string
	var completedAt sql.NullTime

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.SubjectModelID, &sourceRef, &rec.TargetBaseModel, &configJSON,
		&status, &rec.Phase, &errText,
		&rec.DistillationPairCount, &rec.TrainingPairCount, &rec.DPOPairCount,
		&rec.CreatedAt, &rec.UpdatedAt, &completedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("migration not found: %s", id)
		}
		return nil, fmt.Errorf("query migration record: %w", err)
	}

	if err := json.Unmarshal([]byte(configJSON), &rec.Config); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	rec.Status = types.MigrationStatus(status)
	if sourceRef.Valid {
		rec.SourceExportRef = sourceRef.String
	}
	if errText.Valid {
		rec.Error = errText.String
	}
	if completedAt.Valid {
		rec.CompletedAt = &completedAt.Time
	}

	return &rec, nil
}

// UpdateMigrationStatus records a status/phase transition. A terminal
// status also stamps completed_at.
func (s *Store) UpdateMigrationStatus(ctx context.Context, id string, status types.MigrationStatus, phase, errText string) error {
	now := time.Now().UTC()

	var completedAt interface{}
	if status.Terminal() {
		completedAt = now
	}

	query := `
		UPDATE migration_records
		SET status = ?, phase = ?, error = ?, updated_at = ?,
		    completed_at = COALESCE(?, completed_at)
		WHERE id = ?
	`
	res, err := s.db.ExecContext(ctx, query, string(status), phase, nullString(errText), now, completedAt, id)
	if err != nil {
		return fmt.Errorf("update migration status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("migration not found: %s", id)
	}
	return nil
}

// UpdateMigrationCounts records data volumes as phases produce them.
func (s *Store) UpdateMigrationCounts(ctx context.Context, id string, distilled, training, dpo int) error {
	query := `
		UPDATE migration_records
		SET distillation_pair_count = ?, training_pair_count = ?, dpo_pair_count = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := s.db.ExecContext(ctx, query, distilled, training, dpo, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update migration counts: %w", err)
	}
	return nil
}

// ListMigrations returns migration records for a subject, newest first.
func (s *Store) ListMigrations(ctx context.Context, subjectModelID string, limit int) ([]*types.MigrationRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id FROM migration_records
		WHERE subject_model_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, subjectModelID, limit)
	if err != nil {
		return nil, fmt.Errorf("list migrations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan migration id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}

	out := make([]*types.MigrationRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetMigration(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

// CountActiveMigrations counts non-terminal migrations for a subject.
func (s *Store) CountActiveMigrations(ctx context.Context, subjectModelID string) (int, error) {
	query := `
		SELECT COUNT(*) FROM migration_records
		WHERE subject_model_id = ? AND status NOT IN ('completed', 'failed')
	`
	var n int
	if err := s.db.QueryRowContext(ctx, query, subjectModelID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active migrations: %w", err)
	}
	return n, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// DISTILLATION PAIRS
// ═══════════════════════════════════════════════════════════════════════════════

// InsertDistillationPairs stores a batch of scored pairs atomically.
func (s *Store) InsertDistillationPairs(ctx context.Context, migrationID string, pairs []types.DistillationPair) error {
	if len(pairs) == 0 {
		return nil
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO distillation_pairs (
				id, migration_id, prompt, response, category,
				quality_score, style_consistency_score, created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare pair insert: %w", err)
		}
		defer stmt.Close()

		for _, p := range pairs {
			var style interface{}
			if p.StyleScore != nil {
				style = *p.StyleScore
			}
			if _, err := stmt.ExecContext(ctx,
				p.ID, migrationID, p.Prompt, p.Response, string(p.Category),
				p.QualityScore, style, p.CreatedAt,
			); err != nil {
				return fmt.Errorf("insert pair %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// ListDistillationPairs returns all pairs for a migration in insertion order.
func (s *Store) ListDistillationPairs(ctx context.Context, migrationID string) ([]types.DistillationPair, error) {
	query := `
		SELECT id, prompt, response, category, quality_score, style_consistency_score, created_at
		FROM distillation_pairs
		WHERE migration_id = ?
		ORDER BY created_at, id
	`
	rows, err := s.db.QueryContext(ctx, query, migrationID)
	if err != nil {
		return nil, fmt.Errorf("list distillation pairs: %w", err)
	}
	defer rows.Close()

	var out []types.DistillationPair
	for rows.Next() {
		var p types.DistillationPair
		var category string
		var style sql.NullFloat64
		if err := rows.Scan(&p.ID, &p.Prompt, &p.Response, &category, &p.QualityScore, &style, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan distillation pair: %w", err)
		}
		p.Category = types.PromptCategory(category)
		if style.Valid {
			v := style.Float64
			p.StyleScore = &v
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distillation pairs: %w", err)
	}
	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// REWARD DATA
// ═══════════════════════════════════════════════════════════════════════════════

// InsertRewardData stores historical reward points for a subject.
func (s *Store) InsertRewardData(ctx context.Context, subjectModelID string, points []types.RewardDataPoint) error {
	if len(points) == 0 {
		return nil
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO reward_data (subject_model_id, prompt, response, reward, created_at)
			VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare reward insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, p := range points {
			if _, err := stmt.ExecContext(ctx, subjectModelID, p.Prompt, p.Response, p.Reward, now); err != nil {
				return fmt.Errorf("insert reward point: %w", err)
			}
		}
		return nil
	})
}

// ListRewardData returns all historical reward points for a subject in
// insertion order.
func (s *Store) ListRewardData(ctx context.Context, subjectModelID string) ([]types.RewardDataPoint, error) {
	query := `
		SELECT prompt, response, reward
		FROM reward_data
		WHERE subject_model_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, subjectModelID)
	if err != nil {
		return nil, fmt.Errorf("list reward data: %w", err)
	}
	defer rows.Close()

	var out []types.RewardDataPoint
	for rows.Next() {
		var p types.RewardDataPoint
		if err := rows.Scan(&p.Prompt, &p.Response, &p.Reward); err != nil {
			return nil, fmt.Errorf("scan reward point: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reward data: %w", err)
	}
	return out, nil
}

// InsertCalibratedRewards stores a calibration run's output atomically.
func (s *Store) InsertCalibratedRewards(ctx context.Context, migrationID string, rewards []types.CalibratedReward) error {
	if len(rewards) == 0 {
		return nil
	}

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO calibrated_rewards (migration_id, prompt, response, predicted_reward, calibration_source, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("prepare calibrated insert: %w", err)
		}
		defer stmt.Close()

		now := time.Now().UTC()
		for _, r := range rewards {
			if _, err := stmt.ExecContext(ctx, migrationID, r.Prompt, r.Response, r.PredictedReward, string(r.Source), now); err != nil {
				return fmt.Errorf("insert calibrated reward: %w", err)
			}
		}
		return nil
	})
}

// ListCalibratedRewards returns a migration's calibrated rewards in
// insertion order.
func (s *Store) ListCalibratedRewards(ctx context.Context, migrationID string) ([]types.CalibratedReward, error) {
	query := `
		SELECT prompt, response, predicted_reward, calibration_source
		FROM calibrated_rewards
		WHERE migration_id = ?
		ORDER BY id
	`
	rows, err := s.db.QueryContext(ctx, query, migrationID)
	if err != nil {
		return nil, fmt.Errorf("list calibrated rewards: %w", err)
	}
	defer rows.Close()

	var out []types.CalibratedReward
	for rows.Next() {
		var r types.CalibratedReward
		var source string
		if err := rows.Scan(&r.Prompt, &r.Response, &r.PredictedReward, &source); err != nil {
			return nil, fmt.Errorf("scan calibrated reward: %w", err)
		}
		r.Source = types.CalibrationSource(source)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate calibrated rewards: %w", err)
	}
	return out, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// FEEDBACK & TRAINING RUNS
// ═══════════════════════════════════════════════════════════════════════════════

// RecordFeedback stores one human feedback signal for a subject.
func (s *Store) RecordFeedback(ctx context.Context, subjectModelID string, positive bool, note string) error {
	query := `
		INSERT INTO training_feedback (subject_model_id, positive, note, created_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, subjectModelID, positive, nullString(note), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record feedback: %w", err)
	}
	return nil
}

// RecordTrainingRun stores the outcome of a completed fine-tuning run.
func (s *Store) RecordTrainingRun(ctx context.Context, subjectModelID, migrationID, modelID string, pairCount int) error {
	query := `
		INSERT INTO training_runs (subject_model_id, migration_id, model_id, pair_count, trained_at)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query, subjectModelID, nullString(migrationID), modelID, pairCount, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("record training run: %w", err)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// AGGREGATES
// ═══════════════════════════════════════════════════════════════════════════════

// GetReadinessStats returns the pre-aggregated counts the readiness guard
// consumes for a subject.
func (s *Store) GetReadinessStats(ctx context.Context, subjectModelID string) (*types.ReadinessStats, error) {
	var stats types.ReadinessStats

	query := `
		SELECT
			COALESCE(SUM(training_pair_count), 0),
			COALESCE(SUM(distillation_pair_count), 0),
			COALESCE(SUM(dpo_pair_count), 0),
			COALESCE(SUM(CASE WHEN status NOT IN ('completed', 'failed') THEN 1 ELSE 0 END), 0)
		FROM migration_records
		WHERE subject_model_id = ?
	`
	err := s.db.QueryRowContext(ctx, query, subjectModelID).Scan(
		&stats.TrainingPairCount,
		&stats.DistilledPairCount,
		&stats.DPOPairCount,
		&stats.ActiveMigrationCount,
	)
	if err != nil {
		return nil, fmt.Errorf("query readiness stats: %w", err)
	}

	return &stats, nil
}

// GetDataState assembles the aggregate snapshot the training assessor
// decides from.
func (s *Store) GetDataState(ctx context.Context, subjectModelID string) (*types.DataState, error) {
	var state types.DataState

	// Available pairs and average quality across all migrations
	pairQuery := `
		SELECT COUNT(*), COALESCE(AVG(p.quality_score), 0)
		FROM distillation_pairs p
		JOIN migration_records m ON m.id = p.migration_id
		WHERE m.subject_model_id = ?
	`
	if err := s.db.QueryRowContext(ctx, pairQuery, subjectModelID).Scan(&state.AvailablePairCount, &state.AvgQualityScore); err != nil {
		return nil, fmt.Errorf("query pair aggregates: %w", err)
	}
	state.TrainingPairCount = state.AvailablePairCount

	// Last training run, if any
	var lastTrainedAt sql.NullTime
	var lastPairs sql.NullInt64
	var modelID sql.NullString
	runQuery := `
		SELECT model_id, pair_count, trained_at
		FROM training_runs
		WHERE subject_model_id = ?
		ORDER BY trained_at DESC
		LIMIT 1
	`
	err := s.db.QueryRowContext(ctx, runQuery, subjectModelID).Scan(&modelID, &lastPairs, &lastTrainedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("query last training run: %w", err)
	}
	if modelID.Valid {
		state.CurrentModelID = modelID.String
	}
	if lastPairs.Valid {
		state.LastTrainedPairCount = int(lastPairs.Int64)
	}

	// Feedback since the last training run
	feedbackQuery := `
		SELECT COUNT(*), COALESCE(AVG(CASE WHEN positive THEN 1.0 ELSE 0.0 END), 0)
		FROM training_feedback
		WHERE subject_model_id = ? AND created_at > ?
	`
	since := time.Time{}
	if lastTrainedAt.Valid {
		since = lastTrainedAt.Time
		state.LastTrainedAt = lastTrainedAt.Time.UTC().Format(time.RFC3339)
	}
	if err := s.db.QueryRowContext(ctx, feedbackQuery, subjectModelID, since).Scan(&state.FeedbackSinceLastTrain, &state.PositiveFeedbackRate); err != nil {
		return nil, fmt.Errorf("query feedback aggregates: %w", err)
	}

	return &state, nil
}

// nullString converts an empty string to a SQL NULL.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
