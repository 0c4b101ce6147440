// Package main is the entry point for the Revoice CLI.
// Revoice migrates a fine-tuned model's voice onto a new base model:
// it distills scored (prompt, response) pairs from the subject model,
// recalibrates historical reward data against the new base, packages
// training files, and hands them to a fine-tuning provider.
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/normanking/revoice/internal/assess"
	"github.com/normanking/revoice/internal/calibrate"
	"github.com/normanking/revoice/internal/config"
	"github.com/normanking/revoice/internal/corpus"
	"github.com/normanking/revoice/internal/data"
	"github.com/normanking/revoice/internal/distill"
	"github.com/normanking/revoice/internal/export"
	"github.com/normanking/revoice/internal/finetune"
	"github.com/normanking/revoice/internal/judge"
	"github.com/normanking/revoice/internal/llm"
	"github.com/normanking/revoice/internal/logging"
	"github.com/normanking/revoice/internal/migration"
	"github.com/normanking/revoice/internal/profile"
	"github.com/normanking/revoice/pkg/types"
)

var (
	version = "0.1.0"
	cfgPath string
	verbose bool
	log     *logging.Logger
)

// ═══════════════════════════════════════════════════════════════════════════════
// STATUS STYLES
// ═══════════════════════════════════════════════════════════════════════════════

var (
	styleHeading = lipgloss.NewStyle().Bold(true)
	styleActive  = lipgloss.NewStyle().Foreground(lipgloss.Color("11")) // yellow
	styleDone    = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	styleFailed  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	styleDim     = lipgloss.NewStyle().Faint(true)
)

func styledStatus(status types.MigrationStatus) string {
	switch status {
	case types.StatusCompleted:
		return styleDone.Render(string(status))
	case types.StatusFailed:
		return styleFailed.Render(string(status))
	default:
		return styleActive.Render(string(status))
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "revoice",
		Short: "Revoice - migrate a model's voice onto a new base model",
		Long: `Revoice captures a fine-tuned model's voice and retrains it onto a
new base model:
  • Distills scored (prompt, response) pairs from the subject model
  • Recalibrates historical reward data against the new base
  • Packages SFT and DPO training files for fine-tuning providers
  • Decides autonomously when retraining is worthwhile

Start a migration:   revoice migrate start --subject my-voice --target llama-3.1-8b
Run it:              revoice migrate run <id>
Check progress:      revoice migrate status <id>`,
		PersistentPreRunE: initLogging,
	}

	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file path (default ~/.revoice/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("Revoice v%s\n", version)
		},
	})

	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(distillCmd())
	rootCmd.AddCommand(calibrateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(assessCmd())
	rootCmd.AddCommand(rewardCmd())
	rootCmd.AddCommand(feedbackCmd())
	rootCmd.AddCommand(profileCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// LOGGING INITIALIZATION
// ═══════════════════════════════════════════════════════════════════════════════

func initLogging(cmd *cobra.Command, args []string) error {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	logDir := filepath.Join(home, ".revoice", "logs")
	if err := os.MkdirAll(logDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to create log directory: %v\n", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	logFile := filepath.Join(logDir, fmt.Sprintf("revoice_%s.log", timestamp))

	var cfg *logging.Config
	if verbose {
		cfg = logging.VerboseConfig()
	} else {
		cfg = logging.DefaultConfig()
	}
	cfg.FilePath = logFile

	log = logging.New(cfg)
	logging.SetGlobal(log)

	// Redirect zerolog (used as the structured audit trail for migration
	// runs) to its own file so console output stays readable.
	auditPath := filepath.Join(logDir, fmt.Sprintf("revoice_audit_%s.log", timestamp))
	auditFile, err := os.OpenFile(auditPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		log.Warn("Failed to open audit log: %v", err)
	} else {
		writer := zerolog.ConsoleWriter{Out: auditFile, NoColor: true}
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		auditLogger := zerolog.New(writer).With().Timestamp().Logger()
		zerolog.DefaultContextLogger = &auditLogger
		zlog.Logger = auditLogger
	}

	if verbose {
		log.Debug("Verbose logging enabled, session log at %s", logFile)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// WIRING HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

func loadConfig() (*config.Config, error) {
	if cfgPath != "" {
		return config.LoadFromPath(cfgPath)
	}
	return config.Load()
}

func openStore(cfg *config.Config) (*data.Store, error) {
	return data.NewDB(cfg.GetDataDir())
}

// buildOrchestrator wires every pipeline collaborator from config. The
// trainer is attached only when the fine-tuning endpoint is configured.
func buildOrchestrator(cfg *config.Config, store *data.Store) (*migration.Orchestrator, error) {
	provider, err := llm.NewProvider(cfg)
	if err != nil {
		return nil, fmt.Errorf("create LLM provider: %w", err)
	}

	generator := corpus.NewGenerator(provider, cfg.Models.FastJudge)
	distiller := distill.New(provider, cfg.Models.Teacher)

	shiftJudge := judge.New(provider, cfg.Models.FastJudge)
	rewardJudge := judge.New(provider, cfg.Models.QualityJudge)
	assessor := calibrate.NewShiftAssessor(provider, cfg.Models.Teacher, provider, cfg.Models.TargetBase, shiftJudge)
	calibrator := calibrate.NewRewardCalibrator(assessor, provider, cfg.Models.TargetBase, rewardJudge)

	var trainer migration.Trainer
	ftClient := finetune.NewClient(cfg.Finetune)
	if ftClient.Available() {
		trainer = ftClient
	}

	return migration.NewOrchestrator(store, generator, distiller, calibrator, trainer, cfg), nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONFIG COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Println("Revoice Configuration:")
			fmt.Println("──────────────────────")
			fmt.Printf("Provider:      %s\n", cfg.LLM.DefaultProvider)
			fmt.Printf("Subject Model: %s\n", cfg.Models.Teacher)
			fmt.Printf("Target Base:   %s\n", cfg.Models.TargetBase)
			fmt.Printf("Fast Judge:    %s\n", cfg.Models.FastJudge)
			fmt.Printf("Quality Judge: %s\n", cfg.Models.QualityJudge)
			fmt.Printf("Data Dir:      %s\n", cfg.GetDataDir())
			fmt.Printf("Pair Target:   %d\n", cfg.Migration.PairTarget)
			fmt.Printf("Min Quality:   %.2f\n", cfg.Migration.MinQuality)
			fmt.Printf("Log Level:     %s\n", cfg.Logging.Level)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			if err := cfg.Save(); err != nil {
				return err
			}
			fmt.Println("Default configuration written to ~/.revoice/config.yaml")
			return nil
		},
	})

	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// MIGRATE COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage voice migrations",
	}

	var (
		subject    string
		target     string
		sourceRef  string
		pairs      int
		minQuality float64
		includeDPO bool
	)

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Create a new migration after the readiness check",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			orch, err := buildOrchestrator(cfg, store)
			if err != nil {
				return err
			}

			if target == "" {
				target = cfg.Models.TargetBase
			}
			if pairs <= 0 {
				pairs = cfg.Migration.PairTarget
			}
			if minQuality <= 0 {
				minQuality = cfg.Migration.MinQuality
			}

			mcfg := types.MigrationConfig{
				TargetBaseModel:  target,
				PairTarget:       pairs,
				MinQuality:       minQuality,
				IncludeDPO:       includeDPO,
				IncludeDistilled: true,
			}

			rec, err := orch.Start(cmd.Context(), subject, sourceRef, mcfg)
			if err != nil {
				return err
			}

			zlog.Info().Str("migration", rec.ID).Str("subject", subject).Str("target", target).Msg("migration created")
			fmt.Printf("Migration %s created for %s -> %s\n", styleHeading.Render(rec.ID), subject, target)
			fmt.Printf("Run it with: revoice migrate run %s\n", rec.ID)
			return nil
		},
	}
	startCmd.Flags().StringVar(&subject, "subject", "", "subject model whose voice is migrating (required)")
	startCmd.Flags().StringVar(&target, "target", "", "target base model (default from config)")
	startCmd.Flags().StringVar(&sourceRef, "source-ref", "", "reference to the source data export")
	startCmd.Flags().IntVar(&pairs, "pairs", 0, "distillation pair target (default from config)")
	startCmd.Flags().Float64Var(&minQuality, "min-quality", 0, "minimum quality score for training pairs")
	startCmd.Flags().BoolVar(&includeDPO, "dpo", false, "build DPO preference pairs from calibrated rewards")
	startCmd.MarkFlagRequired("subject")
	cmd.AddCommand(startCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "run [migration-id]",
		Short: "Drive a pending migration through every phase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			orch, err := buildOrchestrator(cfg, store)
			if err != nil {
				return err
			}

			id := args[0]
			fmt.Printf("Running migration %s...\n", styleHeading.Render(id))
			zlog.Info().Str("migration", id).Msg("migration run started")

			if err := orch.Run(cmd.Context(), id); err != nil {
				zlog.Error().Str("migration", id).Err(err).Msg("migration run failed")
				return err
			}

			rec, progress, err := orch.Status(cmd.Context(), id)
			if err != nil {
				return err
			}
			zlog.Info().Str("migration", id).Str("status", string(rec.Status)).Msg("migration run finished")
			printMigration(rec, progress)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status [migration-id]",
		Short: "Show a migration's status and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			orch, err := buildOrchestrator(cfg, store)
			if err != nil {
				return err
			}

			rec, progress, err := orch.Status(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printMigration(rec, progress)
			return nil
		},
	})

	var listSubject string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List migrations for a subject, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			recs, err := store.ListMigrations(cmd.Context(), listSubject, 20)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				fmt.Printf("No migrations for %s\n", listSubject)
				return nil
			}

			for _, rec := range recs {
				fmt.Printf("%s  %s  %s  %s\n",
					rec.ID,
					styledStatus(rec.Status),
					styleDim.Render(rec.Phase),
					rec.CreatedAt.Local().Format("2006-01-02 15:04"),
				)
			}
			return nil
		},
	}
	listCmd.Flags().StringVar(&listSubject, "subject", "", "subject model (required)")
	listCmd.MarkFlagRequired("subject")
	cmd.AddCommand(listCmd)

	return cmd
}

func printMigration(rec *types.MigrationRecord, progress float64) {
	fmt.Printf("%s %s\n", styleHeading.Render("Migration"), rec.ID)
	fmt.Printf("  Subject:  %s\n", rec.SubjectModelID)
	fmt.Printf("  Target:   %s\n", rec.TargetBaseModel)
	fmt.Printf("  Status:   %s  (%.0f%%)\n", styledStatus(rec.Status), progress*100)
	fmt.Printf("  Phase:    %s\n", rec.Phase)
	fmt.Printf("  Pairs:    %d distilled, %d training, %d dpo\n",
		rec.DistillationPairCount, rec.TrainingPairCount, rec.DPOPairCount)
	if rec.Error != "" {
		fmt.Printf("  Error:    %s\n", styleFailed.Render(rec.Error))
	}
	if rec.CompletedAt != nil {
		fmt.Printf("  Finished: %s\n", rec.CompletedAt.Local().Format(time.RFC822))
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// STANDALONE PIPELINE COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

// distillCmd runs a small distillation pass without a migration record, so
// the subject model's voice capture can be sanity-checked before committing
// to a full run.
func distillCmd() *cobra.Command {
	var (
		prompts     int
		profilePath string
	)

	cmd := &cobra.Command{
		Use:   "distill",
		Short: "Preview distillation quality without starting a migration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			provider, err := llm.NewProvider(cfg)
			if err != nil {
				return err
			}

			var prof *profile.Profile
			if profilePath == "" {
				profilePath = cfg.Migration.ProfilePath
			}
			if p, err := profile.LoadFromFile(profilePath); err == nil {
				prof = p
			} else {
				log.Warn("No personality profile loaded: %v", err)
			}

			generator := corpus.NewGenerator(provider, cfg.Models.FastJudge)
			distiller := distill.New(provider, cfg.Models.Teacher)

			corpusPrompts := generator.Generate(cmd.Context(), prof, prompts)
			fmt.Printf("Distilling %d prompts from %s...\n", len(corpusPrompts), cfg.Models.Teacher)

			pairs, err := distiller.Distill(cmd.Context(), corpusPrompts, prof, func(completed, total int) {
				fmt.Printf("  %d/%d\n", completed, total)
			})
			if err != nil {
				return err
			}

			var qualitySum float64
			for _, p := range pairs {
				qualitySum += p.QualityScore
			}
			avg := 0.0
			if len(pairs) > 0 {
				avg = qualitySum / float64(len(pairs))
			}
			kept := distill.FilterByQuality(pairs, cfg.Migration.MinQuality, 0)

			fmt.Printf("\n%s\n", styleHeading.Render("Distillation preview"))
			fmt.Printf("  Pairs captured:    %d of %d prompts\n", len(pairs), len(corpusPrompts))
			fmt.Printf("  Average quality:   %.2f\n", avg)
			fmt.Printf("  Training-eligible: %d (min quality %.2f)\n", len(kept), cfg.Migration.MinQuality)
			return nil
		},
	}

	cmd.Flags().IntVar(&prompts, "prompts", 10, "number of prompts to distill")
	cmd.Flags().StringVar(&profilePath, "profile", "", "personality profile path (default from config)")
	return cmd
}

// calibrateCmd recalibrates a subject's stored reward data against the target
// base model and attaches the results to an existing migration.
func calibrateCmd() *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "calibrate [migration-id]",
		Short: "Recalibrate stored reward data for a migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			migrationID := args[0]
			if _, err := store.GetMigration(cmd.Context(), migrationID); err != nil {
				return err
			}

			points, err := store.ListRewardData(cmd.Context(), subject)
			if err != nil {
				return err
			}
			if len(points) == 0 {
				fmt.Printf("No reward data for %s, nothing to calibrate\n", subject)
				return nil
			}

			provider, err := llm.NewProvider(cfg)
			if err != nil {
				return err
			}
			shiftJudge := judge.New(provider, cfg.Models.FastJudge)
			rewardJudge := judge.New(provider, cfg.Models.QualityJudge)
			assessor := calibrate.NewShiftAssessor(provider, cfg.Models.Teacher, provider, cfg.Models.TargetBase, shiftJudge)
			calibrator := calibrate.NewRewardCalibrator(assessor, provider, cfg.Models.TargetBase, rewardJudge)

			result, err := calibrator.Calibrate(cmd.Context(), points, func(phase string, completed, total int) {
				fmt.Printf("  %s %d/%d\n", phase, completed, total)
			})
			if err != nil {
				return err
			}

			if err := store.InsertCalibratedRewards(cmd.Context(), migrationID, result.Rewards); err != nil {
				return err
			}

			fmt.Printf("\n%s\n", styleHeading.Render("Calibration"))
			fmt.Printf("  Shift detected: %t (score %.2f)\n", result.Assessment.Needed, result.Assessment.ShiftScore)
			fmt.Printf("  Reasoning:      %s\n", result.Assessment.Reasoning)
			fmt.Printf("  Calibrated:     %d of %d reward points\n", len(result.Rewards), len(points))
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "subject model (required)")
	cmd.MarkFlagRequired("subject")
	return cmd
}

// exportCmd rebuilds training files from a migration's stored pairs and
// calibrated rewards, for re-export after the original files are gone.
func exportCmd() *cobra.Command {
	var outDir string

	cmd := &cobra.Command{
		Use:   "export [migration-id]",
		Short: "Re-export training files from stored migration data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			migrationID := args[0]
			rec, err := store.GetMigration(cmd.Context(), migrationID)
			if err != nil {
				return err
			}

			pairs, err := store.ListDistillationPairs(cmd.Context(), migrationID)
			if err != nil {
				return err
			}
			calibrated, err := store.ListCalibratedRewards(cmd.Context(), migrationID)
			if err != nil {
				return err
			}

			systemPrompt := ""
			if prof, err := profile.LoadFromFile(cfg.Migration.ProfilePath); err == nil {
				systemPrompt = prof.ConstitutionPrompt
			}

			pkg := &types.TrainingDataPackage{
				MigrationID: migrationID,
				PackagedAt:  time.Now().UTC(),
			}
			if rec.Config.IncludeDistilled {
				for _, p := range distill.FilterByQuality(pairs, rec.Config.MinQuality, 0) {
					pkg.SFT = append(pkg.SFT, types.SFTExample{
						System:    systemPrompt,
						User:      p.Prompt,
						Assistant: p.Response,
					})
				}
			}
			if rec.Config.IncludeDPO {
				pkg.DPO = migration.BuildPreferencePairs(calibrated)
			}

			if outDir == "" {
				outDir = filepath.Join(cfg.GetDataDir(), "exports", migrationID)
			}
			paths, err := export.WritePackage(outDir, pkg)
			if err != nil {
				return err
			}

			fmt.Printf("Exported %d SFT and %d DPO examples:\n", len(pkg.SFT), len(pkg.DPO))
			for _, p := range paths {
				fmt.Printf("  %s\n", p)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "output directory (default <data-dir>/exports/<id>)")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// ASSESS COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func assessCmd() *cobra.Command {
	var (
		subject string
		quick   bool
	)

	cmd := &cobra.Command{
		Use:   "assess",
		Short: "Decide whether accumulated data justifies retraining",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			state, err := store.GetDataState(cmd.Context(), subject)
			if err != nil {
				return err
			}

			var decision types.TrainingDecision
			if quick {
				decision = assess.New(nil).QuickCheck(*state)
			} else {
				provider, err := llm.NewProvider(cfg)
				if err != nil {
					return err
				}
				j := judge.New(provider, cfg.Models.QualityJudge)
				decision = assess.New(j).Assess(cmd.Context(), *state)
			}

			verdict := "do not train"
			style := styleDim
			if decision.ShouldTrain {
				verdict = "train now"
				style = styleDone
			}
			fmt.Printf("%s: %s\n", styleHeading.Render("Decision"), style.Render(verdict))
			if decision.TrainFromBase {
				fmt.Println("  Start from the base model rather than the current checkpoint")
			}
			fmt.Printf("  Reasoning:  %s\n", decision.Reasoning)
			fmt.Printf("  Confidence: %.2f\n", decision.Confidence)
			if decision.RecommendedMinQuality > 0 {
				fmt.Printf("  Suggested min quality: %.2f\n", decision.RecommendedMinQuality)
			}
			fmt.Printf("  Data: %d pairs available, %d at last training, %d feedback signals\n",
				state.AvailablePairCount, state.LastTrainedPairCount, state.FeedbackSinceLastTrain)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "subject model (required)")
	cmd.Flags().BoolVar(&quick, "quick", false, "use the zero-LLM-call heuristic only")
	cmd.MarkFlagRequired("subject")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// REWARD COMMANDS
// ═══════════════════════════════════════════════════════════════════════════════

func rewardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reward",
		Short: "Manage historical reward data",
	}

	var subject string
	importCmd := &cobra.Command{
		Use:   "import [file.jsonl]",
		Short: "Import reward triples from a JSONL file",
		Long: `Import historical (prompt, response, reward) triples recorded against
the subject model. Each line is {"prompt": ..., "response": ..., "reward": float}.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			points, err := readRewardFile(args[0])
			if err != nil {
				return err
			}
			if err := store.InsertRewardData(cmd.Context(), subject, points); err != nil {
				return err
			}
			fmt.Printf("Imported %d reward points for %s\n", len(points), subject)
			return nil
		},
	}
	importCmd.Flags().StringVar(&subject, "subject", "", "subject model (required)")
	importCmd.MarkFlagRequired("subject")
	cmd.AddCommand(importCmd)

	return cmd
}

func readRewardFile(path string) ([]types.RewardDataPoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var points []types.RewardDataPoint
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var p types.RewardDataPoint
		if err := json.Unmarshal([]byte(line), &p); err != nil {
			return nil, fmt.Errorf("parse line %d: %w", lineNo, err)
		}
		if p.Reward < -1 || p.Reward > 1 {
			return nil, fmt.Errorf("line %d: reward %.2f outside [-1, 1]", lineNo, p.Reward)
		}
		points = append(points, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return points, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// FEEDBACK COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func feedbackCmd() *cobra.Command {
	var (
		subject  string
		negative bool
		note     string
	)

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record a human feedback signal for the current model",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.RecordFeedback(cmd.Context(), subject, !negative, note); err != nil {
				return err
			}
			kind := "positive"
			if negative {
				kind = "negative"
			}
			fmt.Printf("Recorded %s feedback for %s\n", kind, subject)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "subject model (required)")
	cmd.Flags().BoolVar(&negative, "negative", false, "record negative feedback (default positive)")
	cmd.Flags().StringVar(&note, "note", "", "optional free-text note")
	cmd.MarkFlagRequired("subject")
	return cmd
}

// ═══════════════════════════════════════════════════════════════════════════════
// PROFILE COMMAND
// ═══════════════════════════════════════════════════════════════════════════════

func profileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect personality profiles",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show [profile.yaml]",
		Short: "Validate and summarize a personality profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prof, err := profile.LoadFromFile(args[0])
			if err != nil {
				return err
			}
			if err := prof.Validate(); err != nil {
				return fmt.Errorf("invalid profile: %w", err)
			}

			fmt.Printf("%s %s\n", styleHeading.Render("Profile"), prof.Name)
			fmt.Printf("  Vocabulary:   %s\n", prof.VocabularySummary())
			fmt.Printf("  Formality:    %.2f\n", prof.Formality)
			fmt.Printf("  Em dash:      %t\n", prof.Punctuation.UsesEmDash)
			fmt.Printf("  Ellipsis:     %t\n", prof.Punctuation.UsesEllipsis)
			fmt.Printf("  Never exclaims: %t\n", prof.Punctuation.NeverExclaims)
			if summary := prof.DispositionSummary(); summary != "" {
				fmt.Printf("  Dispositions:\n%s\n", indent(summary, "    "))
			}
			return nil
		},
	})

	return cmd
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
