package migration

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/normanking/revoice/internal/config"
	"github.com/normanking/revoice/internal/corpus"
	"github.com/normanking/revoice/internal/data"
	"github.com/normanking/revoice/internal/distill"
	"github.com/normanking/revoice/internal/llm"
	"github.com/normanking/revoice/pkg/types"
)

// pipelineProvider answers prompt-generation requests with a prompt list
// and everything else with a voiced response.
type pipelineProvider struct {
	mu      sync.Mutex
	failAll bool
}

func (p *pipelineProvider) Chat(_ context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failAll {
		return nil, errors.New("provider offline")
	}
	user := req.Messages[len(req.Messages)-1].Content
	if strings.Contains(user, "Generate") && strings.Contains(user, "one per line") {
		return &llm.ChatResponse{Content: "What keeps you up at night?\nDo you believe in luck?"}, nil
	}
	return &llm.ChatResponse{Content: "Honestly, I have been mulling this over for a while now, " +
		"and the answer keeps changing on me. Here is where I have landed for today, " +
		"for whatever that is worth to you."}, nil
}

func (p *pipelineProvider) Name() string    { return "pipeline" }
func (p *pipelineProvider) Available() bool { return true }

type fakeTrainer struct {
	modelID string
	err     error
	called  bool
}

func (f *fakeTrainer) Train(_ context.Context, _, _ string) (string, error) {
	f.called = true
	return f.modelID, f.err
}

func setupOrchestrator(t *testing.T, trainer Trainer) (*Orchestrator, *data.Store) {
	t.Helper()

	store, err := data.NewDB(t.TempDir())
	if err != nil {
		t.Fatalf("NewDB: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := config.Default()
	cfg.Migration.DataDir = t.TempDir()
	cfg.Migration.ProfilePath = ""

	provider := &pipelineProvider{}
	o := NewOrchestrator(
		store,
		corpus.NewGenerator(provider, "fast-judge"),
		distill.New(provider, "subject-model"),
		nil, // calibration covered by its own package tests
		trainer,
		cfg,
	)
	return o, store
}

// seedCompletedMigration gives a subject prior training-pair history so the
// readiness floor is satisfied.
func seedCompletedMigration(t *testing.T, store *data.Store, subject, id string, pairs int) {
	t.Helper()
	ctx := context.Background()

	rec := &types.MigrationRecord{
		ID: id, SubjectModelID: subject,
		TargetBaseModel: "base", Status: types.StatusCompleted,
	}
	if err := store.CreateMigration(ctx, rec); err != nil {
		t.Fatalf("CreateMigration: %v", err)
	}
	if err := store.UpdateMigrationCounts(ctx, id, pairs, pairs, 0); err != nil {
		t.Fatalf("UpdateMigrationCounts: %v", err)
	}
}

func migrationConfig() types.MigrationConfig {
	return types.MigrationConfig{
		TargetBaseModel:  "llama-3.1-8b",
		PairTarget:       8,
		MinQuality:       0.3,
		IncludeDistilled: true,
	}
}

func TestCheckReadinessGuards(t *testing.T) {
	o, store := setupOrchestrator(t, nil)
	ctx := context.Background()

	t.Run("fresh subject blocks below pair floor", func(t *testing.T) {
		r, err := o.CheckReadiness(ctx, "subject-fresh")
		if err != nil {
			t.Fatalf("CheckReadiness: %v", err)
		}
		if r.Ready {
			t.Error("expected not ready with zero training pairs")
		}
		if _, err := o.Start(ctx, "subject-fresh", "", migrationConfig()); err == nil {
			t.Error("Start must refuse below the pair floor")
		}
	})

	t.Run("subject at pair floor is ready", func(t *testing.T) {
		seedCompletedMigration(t, store, "subject-seeded", "seeded-1", 50)

		r, err := o.CheckReadiness(ctx, "subject-seeded")
		if err != nil {
			t.Fatalf("CheckReadiness: %v", err)
		}
		if !r.Ready {
			t.Errorf("expected ready at the pair floor, got: %s", r.Recommendation)
		}
	})

	t.Run("active migration blocks", func(t *testing.T) {
		rec := &types.MigrationRecord{
			ID: "busy-1", SubjectModelID: "subject-busy",
			TargetBaseModel: "base", Status: types.StatusDistilling,
		}
		if err := store.CreateMigration(ctx, rec); err != nil {
			t.Fatalf("CreateMigration: %v", err)
		}

		r, err := o.CheckReadiness(ctx, "subject-busy")
		if err != nil {
			t.Fatalf("CheckReadiness: %v", err)
		}
		if r.Ready {
			t.Error("expected not ready with an active migration")
		}
		if _, err := o.Start(ctx, "subject-busy", "", migrationConfig()); err == nil {
			t.Error("Start must refuse while another migration is active")
		}
	})

	t.Run("below pair floor blocks", func(t *testing.T) {
		rec := &types.MigrationRecord{
			ID: "done-1", SubjectModelID: "subject-thin",
			TargetBaseModel: "base", Status: types.StatusCompleted,
		}
		store.CreateMigration(ctx, rec)
		store.UpdateMigrationCounts(ctx, "done-1", 30, 30, 0)

		r, err := o.CheckReadiness(ctx, "subject-thin")
		if err != nil {
			t.Fatalf("CheckReadiness: %v", err)
		}
		if r.Ready {
			t.Error("expected not ready below the pair floor")
		}
		if r.Recommendation == "" {
			t.Error("expected a recommendation string")
		}
	})
}

func TestRunParksAtReadyToTrainWithoutTrainer(t *testing.T) {
	o, store := setupOrchestrator(t, nil)
	ctx := context.Background()
	seedCompletedMigration(t, store, "subject-a", "seed-1", 60)

	rec, err := o.Start(ctx, "subject-a", "export-ref-1", migrationConfig())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := o.Run(ctx, rec.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, err := store.GetMigration(ctx, rec.ID)
	if err != nil {
		t.Fatalf("GetMigration: %v", err)
	}
	if got.Status != types.StatusReadyToTrain {
		t.Errorf("expected ready_to_train, got %s (%s)", got.Status, got.Error)
	}
	if got.DistillationPairCount == 0 {
		t.Error("expected distillation pairs recorded")
	}
	if got.TrainingPairCount == 0 {
		t.Error("expected training pairs recorded")
	}

	pairs, err := store.ListDistillationPairs(ctx, rec.ID)
	if err != nil {
		t.Fatalf("ListDistillationPairs: %v", err)
	}
	if len(pairs) != got.DistillationPairCount {
		t.Errorf("stored pair count %d does not match record %d", len(pairs), got.DistillationPairCount)
	}
}

func TestRunCompletesWithTrainer(t *testing.T) {
	trainer := &fakeTrainer{modelID: "ft-new-voice-1"}
	o, store := setupOrchestrator(t, trainer)
	ctx := context.Background()
	seedCompletedMigration(t, store, "subject-a", "seed-1", 60)

	rec, err := o.Start(ctx, "subject-a", "", migrationConfig())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Run(ctx, rec.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}

	got, _ := store.GetMigration(ctx, rec.ID)
	if got.Status != types.StatusCompleted {
		t.Errorf("expected completed, got %s (%s)", got.Status, got.Error)
	}
	if !trainer.called {
		t.Error("trainer was never invoked")
	}
	if got.CompletedAt == nil {
		t.Error("completed migration missing completed_at")
	}

	state, err := store.GetDataState(ctx, "subject-a")
	if err != nil {
		t.Fatalf("GetDataState: %v", err)
	}
	if state.CurrentModelID != "ft-new-voice-1" {
		t.Errorf("training run not recorded: %q", state.CurrentModelID)
	}
}

func TestRunFailureMarksRecordFailed(t *testing.T) {
	o, store := setupOrchestrator(t, nil)
	ctx := context.Background()
	seedCompletedMigration(t, store, "subject-a", "seed-1", 60)

	rec, err := o.Start(ctx, "subject-a", "", migrationConfig())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Every model call fails, so distillation yields zero pairs.
	o.generator = corpus.NewGenerator(&pipelineProvider{failAll: true}, "fast-judge")
	o.distiller = distill.New(&pipelineProvider{failAll: true}, "subject-model")

	if err := o.Run(ctx, rec.ID); err == nil {
		t.Fatal("expected Run to fail with no distillation pairs")
	}

	got, _ := store.GetMigration(ctx, rec.ID)
	if got.Status != types.StatusFailed {
		t.Errorf("expected failed, got %s", got.Status)
	}
	if got.Error == "" {
		t.Error("failed record missing error text")
	}
	if got.CompletedAt == nil {
		t.Error("failed migration missing completed_at")
	}
}

func TestRunRefusesNonPending(t *testing.T) {
	o, store := setupOrchestrator(t, nil)
	ctx := context.Background()
	seedCompletedMigration(t, store, "subject-a", "seed-1", 60)

	rec, err := o.Start(ctx, "subject-a", "", migrationConfig())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := o.Run(ctx, rec.ID); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	if err := o.Run(ctx, rec.ID); err == nil {
		t.Error("expected Run to refuse a non-pending migration")
	}
}
